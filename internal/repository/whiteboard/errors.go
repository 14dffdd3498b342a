package whiteboard

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
)
