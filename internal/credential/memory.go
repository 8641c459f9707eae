package credential

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inviteEntry struct {
	roomID    uuid.UUID
	expiresAt time.Time
}

type transferEntry struct {
	userIDs   []uuid.UUID
	expiresAt time.Time
}

// Memory is the in-process registry: two TTL tables behind one mutex. Every
// consume holds the lock for the whole check-and-remove.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	invites   map[string]inviteEntry
	transfers map[string]transferEntry
}

// NewMemory creates an empty in-process registry.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		invites:   make(map[string]inviteEntry),
		transfers: make(map[string]transferEntry),
	}
}

// MintInvite registers a new invite code for roomID with a 24 h TTL.
func (m *Memory) MintInvite(_ context.Context, roomID uuid.UUID) (string, error) {
	code := NewCode()
	m.mu.Lock()
	m.invites[code] = inviteEntry{roomID: roomID, expiresAt: m.now().Add(InviteTTL)}
	m.mu.Unlock()
	return code, nil
}

// PeekInvite resolves an invite code without removing it. A code observed at
// exactly its expiry instant is already invalid.
func (m *Memory) PeekInvite(_ context.Context, code string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.invites[code]
	if !ok || !m.now().Before(entry.expiresAt) {
		return uuid.Nil, ErrInviteInvalid
	}
	return entry.roomID, nil
}

// ConsumeInvite atomically resolves and removes an invite code.
func (m *Memory) ConsumeInvite(_ context.Context, code string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.invites[code]
	if !ok {
		return uuid.Nil, ErrInviteInvalid
	}
	delete(m.invites, code)
	if !m.now().Before(entry.expiresAt) {
		return uuid.Nil, ErrInviteInvalid
	}
	return entry.roomID, nil
}

// MintTransfer registers a new transfer code for the given user ids with a
// 1 h TTL.
func (m *Memory) MintTransfer(_ context.Context, userIDs []uuid.UUID) (string, error) {
	code := NewCode()
	ids := make([]uuid.UUID, len(userIDs))
	copy(ids, userIDs)
	m.mu.Lock()
	m.transfers[code] = transferEntry{userIDs: ids, expiresAt: m.now().Add(TransferTTL)}
	m.mu.Unlock()
	return code, nil
}

// ConsumeTransfer atomically resolves and removes a transfer code.
func (m *Memory) ConsumeTransfer(_ context.Context, code string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.transfers[code]
	if !ok {
		return nil, ErrTransferInvalid
	}
	delete(m.transfers, code)
	if !m.now().Before(entry.expiresAt) {
		return nil, ErrTransferInvalid
	}
	return entry.userIDs, nil
}

// Sweep drops expired entries from both tables.
func (m *Memory) Sweep(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for code, entry := range m.invites {
		if !now.Before(entry.expiresAt) {
			delete(m.invites, code)
		}
	}
	for code, entry := range m.transfers {
		if !now.Before(entry.expiresAt) {
			delete(m.transfers, code)
		}
	}
	return nil
}
