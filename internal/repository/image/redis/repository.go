package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/whiteboard/internal/repository/image"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger.With("component", "image.redis"),
	}
}

func (r repo) getImageKey(snapshotID string) string {
	return "snapshot:" + snapshotID + ":image"
}

func (r repo) SetImage(ctx context.Context, snapshotID, encoded string) error {
	r.logger.DebugContext(ctx, "called", "snapshot_id", snapshotID, "size", len(encoded))
	if err := r.rc.Set(ctx, r.getImageKey(snapshotID), encoded, 0).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetImage(ctx context.Context, snapshotID string) (string, error) {
	r.logger.DebugContext(ctx, "called", "snapshot_id", snapshotID)
	encoded, err := r.rc.Get(ctx, r.getImageKey(snapshotID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = image.ErrImageNotFound
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return encoded, nil
}
