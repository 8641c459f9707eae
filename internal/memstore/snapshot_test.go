package memstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/credential"
)

// memorySnapshot is an in-process save/load pair shared between two stores.
type memorySnapshot struct {
	mu   sync.Mutex
	data []byte
}

func (m *memorySnapshot) save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memorySnapshot) load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := &memorySnapshot{}

	first, err := New(credential.NewMemory(), nopFiles{}, zerolog.Nop(),
		WithSnapshot(shared.save, shared.load, 0))
	if err != nil {
		t.Fatalf("New(first) error = %v", err)
	}

	r := mustCreateRoom(t, first, "Den", "alice", false)
	bob := mustJoin(t, first, r.Admin.Token, "bob")
	ch, err := first.CreateChannel(ctx, r.Admin.Token, "secret", true)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if err := first.AddUserToChannel(ctx, r.Admin.Token, bob.ID, ch.ID); err != nil {
		t.Fatalf("AddUserToChannel() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := first.CreateMessage(ctx, bob.Token, textContent("hi"), &r.GeneralChannel.ID, nil); err != nil {
			t.Fatalf("CreateMessage(%d) error = %v", i, err)
		}
	}
	// Close takes the final snapshot.
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close(first) error = %v", err)
	}

	second, err := New(credential.NewMemory(), nopFiles{}, zerolog.Nop(),
		WithSnapshot(shared.save, shared.load, 0))
	if err != nil {
		t.Fatalf("New(second) error = %v", err)
	}
	t.Cleanup(func() { _ = second.Close(ctx) })

	// Tokens survive the restart.
	users, err := second.GetUsers(ctx, r.Admin.Token, nil)
	if err != nil {
		t.Fatalf("GetUsers() after restore error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("restored users = %d, want 2", len(users))
	}

	// Private membership survives.
	if _, err := second.GetChannel(ctx, bob.Token, ch.ID); err != nil {
		t.Errorf("GetChannel(restored member) error = %v", err)
	}

	// Messages and their order survive.
	msgs, err := second.GetMessages(ctx, bob.Token, &r.GeneralChannel.ID, nil, nil, 0)
	if err != nil {
		t.Fatalf("GetMessages() after restore error = %v", err)
	}
	if len(msgs) != 3 || msgs[0].ID != 3 || msgs[2].ID != 1 {
		t.Errorf("restored messages = %+v, want ids 3,2,1", msgs)
	}

	// The id allocator resumes past the restored stream.
	next, err := second.CreateMessage(ctx, bob.Token, textContent("again"), &r.GeneralChannel.ID, nil)
	if err != nil {
		t.Fatalf("CreateMessage() after restore error = %v", err)
	}
	if next != 4 {
		t.Errorf("next message id = %d, want 4", next)
	}
}

func TestSnapshotFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "mem.json")

	first, err := New(credential.NewMemory(), nopFiles{}, zerolog.Nop(),
		WithSnapshotFile(path, 0))
	if err != nil {
		t.Fatalf("New(missing file) error = %v", err)
	}
	r := mustCreateRoom(t, first, "Den", "alice", false)
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := New(credential.NewMemory(), nopFiles{}, zerolog.Nop(),
		WithSnapshotFile(path, 0))
	if err != nil {
		t.Fatalf("New(existing file) error = %v", err)
	}
	t.Cleanup(func() { _ = second.Close(ctx) })

	got, err := second.GetRoom(ctx, r.Admin.Token, r.Room.ID)
	if err != nil {
		t.Fatalf("GetRoom() after restore error = %v", err)
	}
	if got.DisplayName != "Den" {
		t.Errorf("restored room = %+v", got)
	}
}

func TestSnapshotLoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := &memorySnapshot{}

	s, err := New(credential.NewMemory(), nopFiles{}, zerolog.Nop(),
		WithSnapshot(shared.save, shared.load, 5*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	mustCreateRoom(t, s, "Den", "alice", false)

	deadline := time.Now().Add(2 * time.Second)
	for {
		shared.mu.Lock()
		written := shared.data != nil
		shared.mu.Unlock()
		if written {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot loop never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	t.Parallel()
	shared := &memorySnapshot{data: []byte("{not json")}

	_, err := New(credential.NewMemory(), nopFiles{}, zerolog.Nop(),
		WithSnapshot(shared.save, shared.load, 0))
	if err == nil {
		t.Fatal("New() with corrupt snapshot succeeded, want error")
	}
	var tagged *apierrors.Error
	if errors.As(err, &tagged) {
		t.Errorf("corrupt snapshot surfaced a tagged error %v, want a plain decode error", tagged)
	}
}
