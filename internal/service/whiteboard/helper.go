package whiteboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/whiteboard/internal/repository/connection"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

// getConnsByRoomKey returns the live connections of a room, skipping
// excludeID. Members without a connection on this server are skipped.
func (s service) getConnsByRoomKey(ctx context.Context, roomKey, excludeID string) ([]*wsutils.ThreadSafeWriter, error) {
	participantIDs, err := s.whiteboardRepo.GetParticipantIDs(ctx, roomKey)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participant ids", "error", err)
		return nil, err
	}

	conns := make([]*wsutils.ThreadSafeWriter, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		if participantID == excludeID {
			continue
		}

		conn, err := s.connRepo.GetConn(participantID)
		if err != nil {
			if errors.Is(err, connection.ErrNotFound) {
				s.logger.DebugContext(ctx, "participant has no connection", "participant_id", participantID)
				continue
			}
			return nil, err
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

func (s service) checkRoom(joinedRoomKey, roomKey string) error {
	if joinedRoomKey != roomKey {
		return fmt.Errorf("%w: %q", ErrRoomMismatch, roomKey)
	}

	return nil
}
