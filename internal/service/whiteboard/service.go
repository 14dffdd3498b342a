package whiteboard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sharetube/whiteboard/internal/repository/whiteboard"
	"github.com/sharetube/whiteboard/pkg/wsutils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sharetube/whiteboard/internal/service/whiteboard"

var (
	ErrRoomMismatch      = errors.New("room does not match joined room")
	ErrInvalidStroke     = errors.New("invalid stroke")
	ErrEmptyName         = errors.New("snapshot name is empty")
	ErrInvalidSnapshot   = errors.New("invalid snapshot image")
	ErrSnapshotTooLarge  = errors.New("snapshot image too large")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrParticipantExists = errors.New("participant already connected")
)

type iWhiteboardRepo interface {
	// participant
	SetParticipant(context.Context, *whiteboard.SetParticipantParams) error
	GetParticipant(context.Context, string) (whiteboard.Participant, error)
	RemoveParticipantFromList(context.Context, *whiteboard.RemoveParticipantFromListParams) error
	GetParticipantIDs(context.Context, string) ([]string, error)
	// snapshot
	SetSnapshot(context.Context, *whiteboard.SetSnapshotParams) error
	GetSnapshot(context.Context, string) (whiteboard.Snapshot, error)
	GetSnapshotIDs(context.Context, *whiteboard.GetSnapshotIDsParams) ([]string, error)
}

type iImageRepo interface {
	SetImage(ctx context.Context, snapshotID, encoded string) error
	GetImage(ctx context.Context, snapshotID string) (string, error)
}

type iConnRepo interface {
	Add(*wsutils.ThreadSafeWriter, string) error
	RemoveByConn(*wsutils.ThreadSafeWriter) (string, error)
	GetConn(string) (*wsutils.ThreadSafeWriter, error)
	Conns() []*wsutils.ThreadSafeWriter
	ParticipantIDs() []string
}

type Config struct {
	// encoded length limit, data URL prefix included
	MaxSnapshotBytes int
	// width and height limit in pixels
	MaxSnapshotSide int
	ListLimit       int64
}

type service struct {
	whiteboardRepo iWhiteboardRepo
	imageRepo      iImageRepo
	connRepo       iConnRepo
	cfg            Config
	tracer         trace.Tracer
	logger         *slog.Logger
}

func NewService(whiteboardRepo iWhiteboardRepo, imageRepo iImageRepo, connRepo iConnRepo, cfg Config, logger *slog.Logger) *service {
	return &service{
		whiteboardRepo: whiteboardRepo,
		imageRepo:      imageRepo,
		connRepo:       connRepo,
		cfg:            cfg,
		tracer:         otel.Tracer(tracerName),
		logger:         logger.With("component", "whiteboard.service"),
	}
}

// BroadcastResponse lists the connections a message has to be written to.
type BroadcastResponse struct {
	Conns []*wsutils.ThreadSafeWriter
}
