package whiteboard

import (
	"context"
	"fmt"

	"github.com/sharetube/whiteboard/internal/domain"
)

type DrawParams struct {
	SenderID      string
	JoinedRoomKey string
	Stroke        domain.StrokeEvent
}

// Draw returns the peers a stroke sample has to be relayed to.
func (s service) Draw(ctx context.Context, params *DrawParams) (BroadcastResponse, error) {
	if err := s.checkRoom(params.JoinedRoomKey, params.Stroke.RoomKey); err != nil {
		return BroadcastResponse{}, err
	}

	if err := params.Stroke.Validate(); err != nil {
		return BroadcastResponse{}, fmt.Errorf("%w: %w", ErrInvalidStroke, err)
	}

	conns, err := s.getConnsByRoomKey(ctx, params.JoinedRoomKey, params.SenderID)
	if err != nil {
		return BroadcastResponse{}, err
	}

	return BroadcastResponse{Conns: conns}, nil
}

type EndStrokeParams struct {
	SenderID      string
	JoinedRoomKey string
	RoomKey       string
}

func (s service) EndStroke(ctx context.Context, params *EndStrokeParams) (BroadcastResponse, error) {
	if err := s.checkRoom(params.JoinedRoomKey, params.RoomKey); err != nil {
		return BroadcastResponse{}, err
	}

	conns, err := s.getConnsByRoomKey(ctx, params.JoinedRoomKey, params.SenderID)
	if err != nil {
		return BroadcastResponse{}, err
	}

	return BroadcastResponse{Conns: conns}, nil
}

type ClearWhiteboardParams struct {
	SenderID      string
	JoinedRoomKey string
	RoomKey       string
}

func (s service) ClearWhiteboard(ctx context.Context, params *ClearWhiteboardParams) (BroadcastResponse, error) {
	if err := s.checkRoom(params.JoinedRoomKey, params.RoomKey); err != nil {
		return BroadcastResponse{}, err
	}

	conns, err := s.getConnsByRoomKey(ctx, params.JoinedRoomKey, params.SenderID)
	if err != nil {
		return BroadcastResponse{}, err
	}

	s.logger.InfoContext(ctx, "whiteboard cleared", "room_key", params.RoomKey, "participant_id", params.SenderID)

	return BroadcastResponse{Conns: conns}, nil
}
