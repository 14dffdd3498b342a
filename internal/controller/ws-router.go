package controller

import (
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.SetReadLimit(c.cfg.MaxMessageBytes)

	mux.Use(c.wsRequestIdWSMw())
	mux.Use(c.loggerWSMw())
	mux.Use(c.metricsWSMw())

	// session
	wsrouter.Handle(mux, string(protocol.KindJoinRoom), c.handleJoinRoom)

	// strokes
	wsrouter.Handle(mux, string(protocol.KindDraw), c.handleDraw)
	wsrouter.Handle(mux, string(protocol.KindEndStroke), c.handleEndStroke)
	wsrouter.Handle(mux, string(protocol.KindClearWhiteboard), c.handleClearWhiteboard)

	// snapshots
	wsrouter.Handle(mux, string(protocol.KindSaveWhiteboard), c.handleSaveWhiteboard)
	wsrouter.Handle(mux, string(protocol.KindLoadWhiteboardRequest), c.handleLoadWhiteboard)

	mux.OnError(c.writeError)

	return mux
}
