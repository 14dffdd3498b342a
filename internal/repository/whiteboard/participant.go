package whiteboard

type Participant struct {
	Name    string `redis:"name" json:"name"`
	Contact string `redis:"contact" json:"contact"`
	RoomKey string `redis:"room_key" json:"room_key"`
}

type SetParticipantParams struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	RoomKey       string `json:"room_key"`
}

type RemoveParticipantFromListParams struct {
	ParticipantID string `json:"participant_id"`
	RoomKey       string `json:"room_key"`
}
