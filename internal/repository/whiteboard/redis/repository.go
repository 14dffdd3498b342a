package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	participantExp time.Duration
	logger         *slog.Logger
}

// NewRepo stores participants with a sliding expiry of participantExp so a
// dropped participant can resume its id within that window. Snapshots do not
// expire.
func NewRepo(rc *redis.Client, participantExp time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		participantExp: participantExp,
		logger:         logger.With("component", "whiteboard.redis"),
	}
}
