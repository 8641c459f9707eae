// Package attachment defines the uploaded-media record. The bytes live on a
// filesystem path managed by the media store; the record only references it.
package attachment

import "github.com/google/uuid"

// Type categorises an upload by its sniffed MIME class.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeFile  Type = "file"
)

// Valid reports whether t is one of the known attachment types.
func (t Type) Valid() bool {
	return t == TypeImage || t == TypeVideo || t == TypeFile
}

// Attachment holds the fields stored for an upload owned by a user. Width and
// height are only present for images whose dimensions could be decoded.
type Attachment struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	UserID    uuid.UUID `json:"userId"`
	FileName  string    `json:"fileName"`
	Path      string    `json:"path"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	CreatedAt int64     `json:"createdAt"`
}
