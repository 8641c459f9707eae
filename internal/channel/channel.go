// Package channel defines the channel entity. Channels are room-scoped; a
// private channel additionally carries an explicit member set that gates both
// reads and writes.
package channel

import "github.com/google/uuid"

// Channel holds the fields stored for a named conversation within a room.
type Channel struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"roomId"`
	CreatedAt   int64     `json:"createdAt"`
	DisplayName string    `json:"displayName"`
	Description *string   `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedBy   uuid.UUID `json:"createdBy"`
}
