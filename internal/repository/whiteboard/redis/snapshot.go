package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/whiteboard/internal/repository/whiteboard"
)

const snapshotListKey = "snapshots"

func (r repo) getSnapshotKey(snapshotID string) string {
	return "snapshot:" + snapshotID
}

func (r repo) getRoomSnapshotListKey(roomKey string) string {
	return "room:" + roomKey + ":snapshots"
}

func (r repo) getSnapshotNameKey(roomKey, name string) string {
	return "room:" + roomKey + ":snapshot-name:" + name
}

// SetSnapshot stores snapshot metadata. A snapshot saved under a name already
// used in the same room supersedes the older one in listings; the older one
// stays loadable by id.
func (r repo) SetSnapshot(ctx context.Context, params *whiteboard.SetSnapshotParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	prevID, err := r.rc.GetSet(ctx, r.getSnapshotNameKey(params.RoomKey, params.Name), params.SnapshotID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	pipe := r.rc.TxPipeline()

	r.hSetStruct(ctx, pipe, r.getSnapshotKey(params.SnapshotID), whiteboard.Snapshot{
		Name:          params.Name,
		RoomKey:       params.RoomKey,
		ParticipantID: params.ParticipantID,
		CreatedAt:     params.CreatedAt.UnixMilli(),
	})

	z := redis.Z{
		Score:  float64(params.CreatedAt.UnixMilli()),
		Member: params.SnapshotID,
	}
	roomListKey := r.getRoomSnapshotListKey(params.RoomKey)
	if prevID != "" && prevID != params.SnapshotID {
		pipe.ZRem(ctx, snapshotListKey, prevID)
		pipe.ZRem(ctx, roomListKey, prevID)
	}
	pipe.ZAdd(ctx, snapshotListKey, z)
	pipe.ZAdd(ctx, roomListKey, z)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetSnapshot(ctx context.Context, snapshotID string) (whiteboard.Snapshot, error) {
	r.logger.DebugContext(ctx, "called", "snapshot_id", snapshotID)
	var snapshot whiteboard.Snapshot

	res := r.rc.HGetAll(ctx, r.getSnapshotKey(snapshotID))
	fields, err := res.Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return whiteboard.Snapshot{}, err
	}

	if len(fields) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", whiteboard.ErrSnapshotNotFound)
		return whiteboard.Snapshot{}, whiteboard.ErrSnapshotNotFound
	}

	if err := res.Scan(&snapshot); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return whiteboard.Snapshot{}, err
	}

	return snapshot, nil
}

// GetSnapshotIDs lists visible snapshot ids newest first.
func (r repo) GetSnapshotIDs(ctx context.Context, params *whiteboard.GetSnapshotIDsParams) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	key := snapshotListKey
	if params.RoomKey != "" {
		key = r.getRoomSnapshotListKey(params.RoomKey)
	}

	stop := int64(-1)
	if params.Limit > 0 {
		stop = params.Limit - 1
	}

	ids, err := r.rc.ZRevRange(ctx, key, 0, stop).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return ids, nil
}
