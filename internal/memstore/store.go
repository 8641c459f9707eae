// Package memstore is the in-memory implementation of the chat service
// contract. All state lives behind one mutex; operations are atomic by
// construction. A snapshot loop can persist the full state as JSON so a
// restart resumes where the process left off.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/media"
	"github.com/chitter-chat/chitter-server/internal/message"
	"github.com/chitter-chat/chitter-server/internal/room"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// channelState pairs a channel with its private-member set. The set is only
// consulted when the channel is private.
type channelState struct {
	channel channel.Channel
	members map[uuid.UUID]struct{}
}

// roomState holds everything belonging to one tenant. Messages are kept in
// ascending id order; ids are allocated per room from nextMessageID.
type roomState struct {
	room          room.Room
	users         map[uuid.UUID]*user.User
	channels      map[uuid.UUID]*channelState
	attachments   map[uuid.UUID]*attachment.Attachment
	messages      []message.Message
	nextMessageID int64
}

// tokenRef locates a user from its token without scanning rooms.
type tokenRef struct {
	roomID uuid.UUID
	userID uuid.UUID
}

// Store implements chat.Service entirely in process memory.
type Store struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]*roomState
	tokens map[string]tokenRef

	registry credential.Registry
	files    media.Store
	log      zerolog.Logger
	now      func() time.Time

	save     SaveFunc
	load     LoadFunc
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSnapshot wires a persistence pair: load runs once during New, save runs
// every interval and once more on Close. A zero interval disables the loop
// but keeps the final save.
func WithSnapshot(save SaveFunc, load LoadFunc, interval time.Duration) Option {
	return func(s *Store) {
		s.save = save
		s.load = load
		s.interval = interval
	}
}

// WithSnapshotFile is WithSnapshot backed by a single JSON file. A missing
// file means a fresh empty state.
func WithSnapshotFile(path string, interval time.Duration) Option {
	save, load := fileSnapshot(path)
	return WithSnapshot(save, load, interval)
}

// New creates an in-memory chat service, restoring a snapshot when one is
// configured and present.
func New(registry credential.Registry, files media.Store, logger zerolog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		rooms:    make(map[uuid.UUID]*roomState),
		tokens:   make(map[string]tokenRef),
		registry: registry,
		files:    files,
		log:      logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.load != nil {
		data, err := s.load(context.Background())
		if err != nil {
			return nil, err
		}
		if data != nil {
			if err := s.restore(data); err != nil {
				return nil, err
			}
		}
	}

	if s.save != nil && s.interval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.snapshotLoop()
	}
	return s, nil
}

// Close stops the snapshot loop and writes one final snapshot.
func (s *Store) Close(ctx context.Context) error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
	}
	if s.save != nil {
		return s.snapshot(ctx)
	}
	return nil
}

// fail mirrors the SQL backend's boundary: tagged errors pass through, and
// anything else (registry transport failures, mostly) is logged and replaced
// by the operation's generic tag.
func (s *Store) fail(op string, err error, tag *apierrors.Error) error {
	if tagged, ok := errors.AsType[*apierrors.Error](err); ok {
		return tagged
	}
	s.log.Error().Err(err).Str("op", op).Msg("operation failed")
	return tag
}

// resolveToken resolves a token to its room and user. The caller must hold
// the mutex.
func (s *Store) resolveToken(token string, missing *apierrors.Error) (*roomState, *user.User, error) {
	ref, ok := s.tokens[token]
	if token == "" || !ok {
		return nil, nil, missing
	}
	rs := s.rooms[ref.roomID]
	if rs == nil {
		return nil, nil, missing
	}
	u := rs.users[ref.userID]
	if u == nil {
		return nil, nil, missing
	}
	return rs, u, nil
}

// resolveAdmin resolves a token that must belong to an admin.
func (s *Store) resolveAdmin(token string, missing *apierrors.Error) (*roomState, *user.User, error) {
	rs, u, err := s.resolveToken(token, missing)
	if err != nil {
		return nil, nil, err
	}
	if u.Role != user.RoleAdmin {
		return nil, nil, missing
	}
	return rs, u, nil
}

// attachmentIsImage reports whether the attachment exists in the room, is an
// image, and, when owner is non-nil, belongs to that user.
func (rs *roomState) attachmentIsImage(id uuid.UUID, owner *uuid.UUID) bool {
	a, ok := rs.attachments[id]
	if !ok || a.Type != attachment.TypeImage {
		return false
	}
	if owner != nil && a.UserID != *owner {
		return false
	}
	return true
}

// sortedUsers returns token-stripped copies in (createdAt, id) order.
func sortedUsers(users []*user.User) []user.User {
	out := make([]user.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
