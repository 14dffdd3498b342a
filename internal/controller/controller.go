package controller

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sharetube/whiteboard/internal/domain"
	"github.com/sharetube/whiteboard/internal/service/whiteboard"
	"github.com/sharetube/whiteboard/pkg/validator"
	"github.com/sharetube/whiteboard/pkg/wsrouter"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

type iWhiteboardService interface {
	JoinRoom(context.Context, *whiteboard.JoinRoomParams) (whiteboard.JoinRoomResponse, error)
	Disconnect(context.Context, *whiteboard.DisconnectParams) error
	Draw(context.Context, *whiteboard.DrawParams) (whiteboard.BroadcastResponse, error)
	EndStroke(context.Context, *whiteboard.EndStrokeParams) (whiteboard.BroadcastResponse, error)
	ClearWhiteboard(context.Context, *whiteboard.ClearWhiteboardParams) (whiteboard.BroadcastResponse, error)
	SaveWhiteboard(context.Context, *whiteboard.SaveWhiteboardParams) (whiteboard.SaveWhiteboardResponse, error)
	LoadWhiteboard(context.Context, *whiteboard.LoadWhiteboardParams) (whiteboard.LoadWhiteboardResponse, error)
	ListSnapshots(context.Context, *whiteboard.ListSnapshotsParams) ([]domain.SnapshotInfo, error)
	Conns() []*wsutils.ThreadSafeWriter
	ParticipantCount() int
}

type Config struct {
	// empty allows every origin
	AllowedOrigins []string
	// per message read limit
	MaxMessageBytes int64
}

type controller struct {
	whiteboardService iWhiteboardService
	upgrader          websocket.Upgrader
	validate          *validator.Validator
	wsmux             *wsrouter.WSRouter
	metrics           *metrics
	cfg               Config
	logger            *slog.Logger
}

func NewController(whiteboardService iWhiteboardService, cfg Config, registerer prometheus.Registerer, logger *slog.Logger) *controller {
	c := &controller{
		whiteboardService: whiteboardService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.AllowedOrigins) == 0 {
					return true
				}
				return slices.Contains(cfg.AllowedOrigins, r.Header.Get("Origin"))
			},
		},
		validate: validator.NewValidator(),
		cfg:      cfg,
		logger:   logger.With("component", "controller"),
	}
	c.metrics = newMetrics(registerer, whiteboardService.ParticipantCount)
	c.wsmux = c.getWSRouter()

	return c
}
