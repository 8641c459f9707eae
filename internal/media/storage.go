// Package media stores uploaded files under a configured directory and maps
// sniffed MIME types onto attachment categories. The chat service only ever
// references files by key; the bytes are written by the upload edge before
// the service is called.
package media

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/chitter-chat/chitter-server/internal/attachment"
)

// Sentinel errors for the media package.
var (
	ErrKeyNotFound        = errors.New("storage key not found")
	ErrUnsupportedContent = errors.New("this file type is not allowed")
)

// Store is the file-store contract the chat service depends on for upload
// cleanup and attachment removal.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the file at key. A missing file is not an error.
	Delete(ctx context.Context, key string) error
}

// Categorise maps a MIME type onto an attachment category. Only image, video,
// and application payloads are accepted.
func Categorise(contentType string) (attachment.Type, error) {
	mt := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mt = parsed
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return attachment.TypeImage, nil
	case strings.HasPrefix(mt, "video/"):
		return attachment.TypeVideo, nil
	case strings.HasPrefix(mt, "application/"):
		return attachment.TypeFile, nil
	default:
		return "", ErrUnsupportedContent
	}
}

// DetectContentType returns the MIME type from the multipart header, falling
// back to extension-based detection.
func DetectContentType(header, filename string) string {
	ct := strings.TrimSpace(header)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ext := filepath.Ext(filename); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return mt
		}
	}
	return ct
}

// ExtensionFromFilename returns the lower-cased extension including the dot,
// or an empty string.
func ExtensionFromFilename(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
