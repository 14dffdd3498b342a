package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/whiteboard/internal/repository/whiteboard"
)

func (r repo) getParticipantKey(participantID string) string {
	return "participant:" + participantID
}

func (r repo) getParticipantListKey(roomKey string) string {
	return "room:" + roomKey + ":participants"
}

// SetParticipant stores a connected participant. The record does not expire
// while connected; RemoveParticipantFromList starts its expiry.
func (r repo) SetParticipant(ctx context.Context, params *whiteboard.SetParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	participant := whiteboard.Participant{
		Name:    params.Name,
		Contact: params.Contact,
		RoomKey: params.RoomKey,
	}

	participantKey := r.getParticipantKey(params.ParticipantID)
	r.hSetStruct(ctx, pipe, participantKey, participant)
	pipe.Persist(ctx, participantKey)

	listKey := r.getParticipantListKey(params.RoomKey)
	pipe.ZAddNX(ctx, listKey, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: params.ParticipantID,
	})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, participantID string) (whiteboard.Participant, error) {
	r.logger.DebugContext(ctx, "called", "participant_id", participantID)
	var participant whiteboard.Participant

	res := r.rc.HGetAll(ctx, r.getParticipantKey(participantID))
	fields, err := res.Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return whiteboard.Participant{}, err
	}

	if len(fields) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", whiteboard.ErrParticipantNotFound)
		return whiteboard.Participant{}, whiteboard.ErrParticipantNotFound
	}

	if err := res.Scan(&participant); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return whiteboard.Participant{}, err
	}

	return participant, nil
}

// RemoveParticipantFromList drops the participant from its room and restarts
// the expiry of its record, which is what allows a later resume.
func (r repo) RemoveParticipantFromList(ctx context.Context, params *whiteboard.RemoveParticipantFromListParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.ZRem(ctx, r.getParticipantListKey(params.RoomKey), params.ParticipantID)
	pipe.Expire(ctx, r.getParticipantKey(params.ParticipantID), r.participantExp)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetParticipantIDs(ctx context.Context, roomKey string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "room_key", roomKey)
	ids, err := r.rc.ZRange(ctx, r.getParticipantListKey(roomKey), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return ids, nil
}
