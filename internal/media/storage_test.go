package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/chitter-chat/chitter-server/internal/attachment"
)

func TestCategorise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		want        attachment.Type
		wantErr     error
	}{
		{"png", "image/png", attachment.TypeImage, nil},
		{"jpeg with params", "image/jpeg; charset=binary", attachment.TypeImage, nil},
		{"mp4", "video/mp4", attachment.TypeVideo, nil},
		{"pdf", "application/pdf", attachment.TypeFile, nil},
		{"zip", "application/zip", attachment.TypeFile, nil},
		{"plain text", "text/plain", "", ErrUnsupportedContent},
		{"html", "text/html; charset=utf-8", "", ErrUnsupportedContent},
		{"audio", "audio/mpeg", "", ErrUnsupportedContent},
		{"empty", "", "", ErrUnsupportedContent},
		{"garbage", "not a mime type", "", ErrUnsupportedContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Categorise(tt.contentType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Categorise(%q) error = %v, want %v", tt.contentType, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Categorise(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		filename string
		want     string
	}{
		{"header wins", "image/png", "cat.jpg", "image/png"},
		{"header trimmed", "  video/mp4  ", "x", "video/mp4"},
		{"octet-stream falls back to extension", "application/octet-stream", "doc.pdf", "application/pdf"},
		{"empty header falls back to extension", "", "pic.png", "image/png"},
		{"no extension keeps header", "application/octet-stream", "README", "application/octet-stream"},
		{"nothing to go on", "", "README", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DetectContentType(tt.header, tt.filename)
			// Extension lookups may carry parameters like charset.
			if got != tt.want && !strings.HasPrefix(got, tt.want+";") {
				t.Errorf("DetectContentType(%q, %q) = %q, want %q", tt.header, tt.filename, got, tt.want)
			}
		})
	}
}

func TestExtensionFromFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "cat.png", ".png"},
		{"upper-cased", "CAT.PNG", ".png"},
		{"multiple dots", "archive.tar.gz", ".gz"},
		{"no extension", "README", ""},
		{"trailing dot", "weird.", "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtensionFromFilename(tt.in); got != tt.want {
				t.Errorf("ExtensionFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLocal_PutOpenDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Put(ctx, "a/b/file.bin", strings.NewReader("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	f, err := s.Open(ctx, "a/b/file.bin")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil || string(data) != "payload" {
		t.Fatalf("read back %q, %v, want %q, nil", data, err, "payload")
	}

	if err := s.Delete(ctx, "a/b/file.bin"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, "a/b/file.bin"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Open() after delete error = %v, want ErrKeyNotFound", err)
	}
	// Deleting a missing key is fine.
	if err := s.Delete(ctx, "a/b/file.bin"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Put(ctx, "../outside.bin", strings.NewReader("x")); err == nil {
		t.Error("Put() with a traversal key succeeded, want error")
	}
	if _, err := s.Open(ctx, "../../etc/passwd"); err == nil {
		t.Error("Open() with a traversal key succeeded, want error")
	}
}
