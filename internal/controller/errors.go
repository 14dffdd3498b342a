package controller

import (
	"errors"

	"github.com/sharetube/whiteboard/internal/service/whiteboard"
	"github.com/sharetube/whiteboard/pkg/validator"
	"github.com/sharetube/whiteboard/pkg/wsrouter"
)

var (
	ErrNotJoined     = errors.New("join a room first")
	ErrAlreadyJoined = errors.New("connection already joined a room")
)

var publicErrors = []error{
	ErrNotJoined,
	ErrAlreadyJoined,
	wsrouter.ErrUnknownMessageType,
	wsrouter.ErrInvalidMessage,
	whiteboard.ErrRoomMismatch,
	whiteboard.ErrInvalidStroke,
	whiteboard.ErrEmptyName,
	whiteboard.ErrInvalidSnapshot,
	whiteboard.ErrSnapshotTooLarge,
	whiteboard.ErrSnapshotNotFound,
	whiteboard.ErrParticipantExists,
}

// publicError hides internal failures from clients.
func (c controller) publicError(err error) string {
	var validationErrs validator.Errors
	if errors.As(err, &validationErrs) {
		return validationErrs.Error()
	}

	for _, target := range publicErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}

	return "internal server error"
}
