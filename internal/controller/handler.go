package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/internal/service/whiteboard"
	"github.com/sharetube/whiteboard/pkg/ctxlogger"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	tsw := wsutils.NewThreadSafeWriter(conn)
	defer tsw.Close()

	c.metrics.connections.Inc()
	defer c.metrics.connections.Dec()

	state := &connState{}
	ctx := context.WithValue(r.Context(), connStateCtxKey, state)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("remote_addr", r.RemoteAddr))
	defer c.disconnect(ctx, tsw, state)

	err = c.wsmux.ServeConn(ctx, tsw)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
		return
	}
	c.logger.InfoContext(ctx, "connection dropped", "error", err)
}

// disconnect ends the participant's stroke on every peer before releasing the
// membership.
func (c controller) disconnect(ctx context.Context, conn *wsutils.ThreadSafeWriter, state *connState) {
	if !state.joined() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	endStrokeResp, err := c.whiteboardService.EndStroke(ctx, &whiteboard.EndStrokeParams{
		SenderID:      state.participantID,
		JoinedRoomKey: state.roomKey,
		RoomKey:       state.roomKey,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to end stroke of leaving participant", "error", err)
	} else if err := c.broadcast(ctx, endStrokeResp.Conns, protocol.EndStroke{
		RoomKey:       state.roomKey,
		ParticipantID: state.participantID,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to end stroke of leaving participant", "error", err)
	}

	if err := c.whiteboardService.Disconnect(ctx, &whiteboard.DisconnectParams{
		Conn:    conn,
		RoomKey: state.roomKey,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect participant", "error", err)
		return
	}

	c.logger.InfoContext(ctx, "participant left", "room_key", state.roomKey, "participant_id", state.participantID)
}

func (c controller) listWhiteboards(w http.ResponseWriter, r *http.Request) {
	roomKey := r.URL.Query().Get("room")

	infos, err := c.whiteboardService.ListSnapshots(r.Context(), &whiteboard.ListSnapshotsParams{
		RoomKey: roomKey,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to list snapshots", "error", err)
		c.writeJSON(w, http.StatusInternalServerError, envelope{"error": "failed to list whiteboards"})
		return
	}

	c.writeJSON(w, http.StatusOK, infos)
}
