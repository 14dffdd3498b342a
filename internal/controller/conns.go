package controller

import (
	"github.com/gorilla/websocket"
)

// CloseConnections sends a going-away close frame to every joined participant
// and closes its connection. Read loops then end and release their
// memberships. Connections that never joined are left to the server's exit.
func (c controller) CloseConnections() {
	conns := c.whiteboardService.Conns()
	for _, conn := range conns {
		if err := conn.WriteClose(websocket.CloseGoingAway, "server shutting down"); err != nil {
			c.logger.Debug("failed to write close frame", "error", err)
		}
		conn.Close()
	}

	c.logger.Info("closed websocket connections", "count", len(conns))
}
