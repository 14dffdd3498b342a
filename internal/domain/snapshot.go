package domain

import "time"

// SnapshotInfo is a listing entry for a saved snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
