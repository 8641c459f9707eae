package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores files on the local filesystem. All operations are scoped to a
// root directory using os.Root, which guarantees that no key can escape the
// base directory via traversal sequences, symbolic links, or OS-specific
// tricks.
type Local struct {
	root *os.Root
}

// NewLocal creates a store rooted at basePath, creating the directory if
// needed.
func NewLocal(basePath string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", basePath, err)
	}
	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("open upload root %s: %w", basePath, err)
	}
	return &Local{root: root}, nil
}

// Close releases the underlying root directory handle.
func (s *Local) Close() error {
	return s.root.Close()
}

// Put writes the contents of r to the file identified by key. Parent
// directories are created automatically. If the write fails partway through,
// the partially written file is removed.
func (s *Local) Put(_ context.Context, key string, r io.Reader) error {
	dir := filepath.Dir(key)
	if dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
	}

	f, err := s.root.Create(key)
	if err != nil {
		return fmt.Errorf("create storage file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.root.Remove(key)
		return fmt.Errorf("write storage file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = s.root.Remove(key)
		return fmt.Errorf("close storage file: %w", err)
	}
	return nil
}

// Open opens the file identified by key for reading. Returns ErrKeyNotFound
// when the file does not exist.
func (s *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.root.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("open storage file: %w", err)
	}
	return f, nil
}

// Delete removes the file at key. If the file does not exist, no error is
// returned.
func (s *Local) Delete(_ context.Context, key string) error {
	if err := s.root.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete storage file: %w", err)
	}
	return nil
}
