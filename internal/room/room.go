// Package room defines the room entity. A room is the tenancy boundary: its
// users, channels, messages, and attachments are invisible to every other
// room.
package room

import "github.com/google/uuid"

// Room holds the fields stored for a tenant. Timestamps are UTC milliseconds.
type Room struct {
	ID               uuid.UUID  `json:"id"`
	CreatedAt        int64      `json:"createdAt"`
	DisplayName      string     `json:"displayName"`
	Description      *string    `json:"description,omitempty"`
	LogoAttachmentID *uuid.UUID `json:"logoAttachmentId,omitempty"`
	AdminInviteOnly  bool       `json:"adminInviteOnly"`
}

// GeneralChannelName is the display name of the public channel created
// together with every room.
const GeneralChannelName = "General"
