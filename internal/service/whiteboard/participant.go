package whiteboard

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sharetube/whiteboard/internal/repository/connection"
	"github.com/sharetube/whiteboard/internal/repository/whiteboard"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

type JoinRoomParams struct {
	Conn                *wsutils.ThreadSafeWriter
	RoomKey             string
	Name                string
	Contact             string
	ResumeParticipantID string
}

type JoinRoomResponse struct {
	ParticipantID string
	Resumed       bool
}

// JoinRoom registers conn as a participant of a room. A resume id is honored
// when it belongs to the same room and is not connected right now; otherwise a
// fresh id is issued.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	participantID, resumed := s.resumeID(ctx, params.RoomKey, params.ResumeParticipantID)
	if !resumed {
		participantID = uuid.NewString()
	}

	if err := s.whiteboardRepo.SetParticipant(ctx, &whiteboard.SetParticipantParams{
		ParticipantID: participantID,
		Name:          params.Name,
		Contact:       params.Contact,
		RoomKey:       params.RoomKey,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set participant", "error", err)
		return JoinRoomResponse{}, err
	}

	if err := s.connRepo.Add(params.Conn, participantID); err != nil {
		s.logger.InfoContext(ctx, "failed to add conn", "error", err)
		if errors.Is(err, connection.ErrAlreadyExists) {
			return JoinRoomResponse{}, ErrParticipantExists
		}
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{
		ParticipantID: participantID,
		Resumed:       resumed,
	}, nil
}

func (s service) resumeID(ctx context.Context, roomKey, participantID string) (string, bool) {
	if participantID == "" {
		return "", false
	}

	participant, err := s.whiteboardRepo.GetParticipant(ctx, participantID)
	if err != nil {
		s.logger.DebugContext(ctx, "cannot resume participant", "participant_id", participantID, "error", err)
		return "", false
	}

	if participant.RoomKey != roomKey {
		s.logger.DebugContext(ctx, "resume id belongs to another room", "participant_id", participantID)
		return "", false
	}

	if _, err := s.connRepo.GetConn(participantID); err == nil {
		s.logger.DebugContext(ctx, "resume id is still connected", "participant_id", participantID)
		return "", false
	}

	return participantID, true
}

type DisconnectParams struct {
	Conn    *wsutils.ThreadSafeWriter
	RoomKey string
}

// Disconnect releases the membership held by conn. Connections that never
// joined are ignored.
func (s service) Disconnect(ctx context.Context, params *DisconnectParams) error {
	participantID, err := s.connRepo.RemoveByConn(params.Conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.whiteboardRepo.RemoveParticipantFromList(ctx, &whiteboard.RemoveParticipantFromListParams{
		ParticipantID: participantID,
		RoomKey:       params.RoomKey,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove participant", "error", err)
		return err
	}

	return nil
}

// Conns returns the connections of every participant joined on this server.
func (s service) Conns() []*wsutils.ThreadSafeWriter {
	return s.connRepo.Conns()
}

func (s service) ParticipantCount() int {
	return len(s.connRepo.ParticipantIDs())
}
