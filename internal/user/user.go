// Package user defines the user entity and token generation. A user belongs
// to exactly one room and authenticates with an opaque token resolved by
// lookup; rotating the token is how a user is revoked.
package user

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Role is the authorization level of a user within its room.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleParticipant
}

// User holds the fields stored for a room member. Token is only populated by
// operations that hand credentials to the caller (room creation, invite
// consumption, transfer bundles); listings leave it empty.
type User struct {
	ID                 uuid.UUID  `json:"id"`
	RoomID             uuid.UUID  `json:"roomId"`
	CreatedAt          int64      `json:"createdAt"`
	Token              string     `json:"token,omitempty"`
	DisplayName        string     `json:"displayName"`
	Description        *string    `json:"description,omitempty"`
	AvatarAttachmentID *uuid.UUID `json:"avatarAttachmentId,omitempty"`
	Role               Role       `json:"role"`
}

// Public returns a copy of u with the token stripped.
func (u User) Public() User {
	u.Token = ""
	return u
}

// NewToken generates a fresh 128-bit opaque token. Tokens are globally unique
// in practice; a rotated-away value never recurs.
func NewToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to a
		// UUID rather than panicking the request path.
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
