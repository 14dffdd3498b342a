package whiteboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/whiteboard/internal/domain"
	"github.com/sharetube/whiteboard/internal/repository/image"
	"github.com/sharetube/whiteboard/internal/repository/whiteboard"
	"github.com/sharetube/whiteboard/internal/snapshot"
	"github.com/sharetube/whiteboard/pkg/wsutils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SaveWhiteboardParams struct {
	SenderID      string
	JoinedRoomKey string
	RoomKey       string
	Name          string
	EncodedImage  string
}

type SaveWhiteboardResponse struct {
	SnapshotID string
}

// SaveWhiteboard validates and stores a snapshot. Only the image header is
// decoded here; pixels are never touched on the server.
func (s service) SaveWhiteboard(ctx context.Context, params *SaveWhiteboardParams) (_ SaveWhiteboardResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "SaveWhiteboard", trace.WithAttributes(
		attribute.String("room_key", params.RoomKey),
		attribute.Int("encoded_size", len(params.EncodedImage)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.checkRoom(params.JoinedRoomKey, params.RoomKey); err != nil {
		return SaveWhiteboardResponse{}, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return SaveWhiteboardResponse{}, ErrEmptyName
	}

	if s.cfg.MaxSnapshotBytes > 0 && len(params.EncodedImage) > s.cfg.MaxSnapshotBytes {
		return SaveWhiteboardResponse{}, fmt.Errorf("%w: %d bytes", ErrSnapshotTooLarge, len(params.EncodedImage))
	}

	cfg, format, err := snapshot.DecodeConfig(params.EncodedImage)
	if err != nil {
		return SaveWhiteboardResponse{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return SaveWhiteboardResponse{}, fmt.Errorf("%w: empty image", ErrInvalidSnapshot)
	}
	if s.cfg.MaxSnapshotSide > 0 && (cfg.Width > s.cfg.MaxSnapshotSide || cfg.Height > s.cfg.MaxSnapshotSide) {
		return SaveWhiteboardResponse{}, fmt.Errorf("%w: %dx%d", ErrSnapshotTooLarge, cfg.Width, cfg.Height)
	}
	span.SetAttributes(
		attribute.String("format", format),
		attribute.Int("width", cfg.Width),
		attribute.Int("height", cfg.Height),
	)

	snapshotID := uuid.NewString()
	span.SetAttributes(attribute.String("snapshot_id", snapshotID))

	if err := s.imageRepo.SetImage(ctx, snapshotID, params.EncodedImage); err != nil {
		s.logger.InfoContext(ctx, "failed to store image", "error", err)
		return SaveWhiteboardResponse{}, err
	}

	if err := s.whiteboardRepo.SetSnapshot(ctx, &whiteboard.SetSnapshotParams{
		SnapshotID:    snapshotID,
		Name:          name,
		RoomKey:       params.RoomKey,
		ParticipantID: params.SenderID,
		CreatedAt:     time.Now(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set snapshot", "error", err)
		return SaveWhiteboardResponse{}, err
	}

	s.logger.InfoContext(ctx, "snapshot saved", "snapshot_id", snapshotID, "name", name, "room_key", params.RoomKey)

	return SaveWhiteboardResponse{SnapshotID: snapshotID}, nil
}

type LoadWhiteboardParams struct {
	SenderID      string
	JoinedRoomKey string
	RoomKey       string
	SnapshotID    string
}

type LoadWhiteboardResponse struct {
	EncodedImage string
	// every member of the room, requester included
	Conns []*wsutils.ThreadSafeWriter
}

// LoadWhiteboard fetches a snapshot from any room for delivery into the
// requester's room.
func (s service) LoadWhiteboard(ctx context.Context, params *LoadWhiteboardParams) (_ LoadWhiteboardResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "LoadWhiteboard", trace.WithAttributes(
		attribute.String("room_key", params.RoomKey),
		attribute.String("snapshot_id", params.SnapshotID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.checkRoom(params.JoinedRoomKey, params.RoomKey); err != nil {
		return LoadWhiteboardResponse{}, err
	}

	if _, err := s.whiteboardRepo.GetSnapshot(ctx, params.SnapshotID); err != nil {
		if errors.Is(err, whiteboard.ErrSnapshotNotFound) {
			return LoadWhiteboardResponse{}, ErrSnapshotNotFound
		}
		return LoadWhiteboardResponse{}, err
	}

	encoded, err := s.imageRepo.GetImage(ctx, params.SnapshotID)
	if err != nil {
		if errors.Is(err, image.ErrImageNotFound) {
			return LoadWhiteboardResponse{}, ErrSnapshotNotFound
		}
		return LoadWhiteboardResponse{}, err
	}

	conns, err := s.getConnsByRoomKey(ctx, params.JoinedRoomKey, "")
	if err != nil {
		return LoadWhiteboardResponse{}, err
	}

	return LoadWhiteboardResponse{
		EncodedImage: encoded,
		Conns:        conns,
	}, nil
}

type ListSnapshotsParams struct {
	// empty lists every room
	RoomKey string
}

// ListSnapshots returns visible snapshots newest first.
func (s service) ListSnapshots(ctx context.Context, params *ListSnapshotsParams) ([]domain.SnapshotInfo, error) {
	ids, err := s.whiteboardRepo.GetSnapshotIDs(ctx, &whiteboard.GetSnapshotIDsParams{
		RoomKey: params.RoomKey,
		Limit:   s.cfg.ListLimit,
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get snapshot ids", "error", err)
		return nil, err
	}

	infos := make([]domain.SnapshotInfo, 0, len(ids))
	for _, id := range ids {
		snap, err := s.whiteboardRepo.GetSnapshot(ctx, id)
		if err != nil {
			if errors.Is(err, whiteboard.ErrSnapshotNotFound) {
				continue
			}
			return nil, err
		}

		infos = append(infos, domain.SnapshotInfo{
			ID:        id,
			Name:      snap.Name,
			CreatedAt: snap.CreatedTime(),
		})
	}

	return infos, nil
}
