package controller

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

func (c controller) writeToConn(ctx context.Context, conn *wsutils.ThreadSafeWriter, ev protocol.Event) error {
	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "kind", ev.Kind(), "error", err)
		return err
	}

	return nil
}

// broadcast encodes ev once and writes it to every conn. Peer write failures
// are logged and never reported to the sender; only an encoding failure is
// returned.
func (c controller) broadcast(ctx context.Context, conns []*wsutils.ThreadSafeWriter, ev protocol.Event) error {
	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	c.metrics.fanout.Observe(float64(len(conns)))

	failed := 0
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed++
			c.logger.DebugContext(ctx, "failed to write to peer", "kind", ev.Kind(), "error", err)
		}
	}

	if failed > 0 {
		c.logger.InfoContext(ctx, "broadcast partially failed", "kind", ev.Kind(), "failed", failed, "total", len(conns))
	}

	return nil
}

func (c controller) writeError(ctx context.Context, conn *wsutils.ThreadSafeWriter, err error) {
	c.logger.InfoContext(ctx, "websocket message failed", "error", err)

	if werr := c.writeToConn(ctx, conn, protocol.Error{Message: c.publicError(err)}); werr != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", werr)
	}
}
