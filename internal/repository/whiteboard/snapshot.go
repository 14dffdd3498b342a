package whiteboard

import "time"

type Snapshot struct {
	Name          string `redis:"name" json:"name"`
	RoomKey       string `redis:"room_key" json:"room_key"`
	ParticipantID string `redis:"participant_id" json:"participant_id"`
	// unix milliseconds
	CreatedAt int64 `redis:"created_at" json:"created_at"`
}

func (s Snapshot) CreatedTime() time.Time {
	return time.UnixMilli(s.CreatedAt).UTC()
}

type SetSnapshotParams struct {
	SnapshotID    string    `json:"snapshot_id"`
	Name          string    `json:"name"`
	RoomKey       string    `json:"room_key"`
	ParticipantID string    `json:"participant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type GetSnapshotIDsParams struct {
	// empty lists every room
	RoomKey string `json:"room_key"`
	Limit   int64  `json:"limit"`
}
