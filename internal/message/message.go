// Package message defines the message entity and the content sanitizer.
// Message ids are monotonically increasing integers; history is paged in
// descending id order below an exclusive cursor.
package message

import (
	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/user"
)

// Pagination defaults.
const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Message holds the fields stored for a posted message, including the author
// joined from the user table. Exactly one of ChannelID and
// DirectMessageUserID is set.
type Message struct {
	ID                  int64      `json:"id"`
	UserID              uuid.UUID  `json:"userId"`
	CreatedAt           int64      `json:"createdAt"`
	Content             Content    `json:"content"`
	ChannelID           *uuid.UUID `json:"channelId,omitempty"`
	DirectMessageUserID *uuid.UUID `json:"directMessageUserId,omitempty"`
	Edited              bool       `json:"edited"`

	// Author is joined at read time and never stored with the message.
	Author *user.User `json:"user,omitempty"`
}

// ClampLimit constrains a requested page size to [1, MaxLimit], defaulting to
// DefaultLimit when the input is zero or negative.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
