// Package pgstore is the transactional SQL implementation of the chat
// service contract. Every multi-row mutation runs inside a transaction and
// rolls back on any failure; storage errors never escape as raw errors but
// surface as the operation's CouldNot tag.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/media"
	"github.com/chitter-chat/chitter-server/internal/user"
)

const userColumns = "id, room_id, created_at, token, display_name, description, avatar_id, role"

// Store implements chat.Service over a pgx connection pool.
type Store struct {
	pool     *pgxpool.Pool
	registry credential.Registry
	files    media.Store
	log      zerolog.Logger
}

// New creates a SQL-backed chat service.
func New(pool *pgxpool.Pool, registry credential.Registry, files media.Store, logger zerolog.Logger) *Store {
	return &Store{pool: pool, registry: registry, files: files, log: logger}
}

// Close releases the connection pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// fail converts an internal error into the operation's generic tag, letting
// already-tagged errors pass through unchanged. The underlying cause is
// logged here, at the mutation boundary, and nowhere else.
func (s *Store) fail(op string, err error, tag *apierrors.Error) error {
	if tagged, ok := errors.AsType[*apierrors.Error](err); ok {
		return tagged
	}
	s.log.Error().Err(err).Str("op", op).Msg("storage operation failed")
	return tag
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// resolveToken looks up the user owning the given token. A missing token
// returns the provided authentication tag.
func (s *Store) resolveToken(ctx context.Context, q querier, token string, missing *apierrors.Error) (*user.User, error) {
	if token == "" {
		return nil, missing
	}
	u, err := scanUser(q.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE token = $1", token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missing
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// resolveAdmin resolves a token that must belong to an admin.
func (s *Store) resolveAdmin(ctx context.Context, q querier, token string, missing *apierrors.Error) (*user.User, error) {
	u, err := s.resolveToken(ctx, q, token, missing)
	if err != nil {
		return nil, err
	}
	if u.Role != user.RoleAdmin {
		return nil, missing
	}
	return u, nil
}

// scanUser scans a full user row, including the token. Callers strip the
// token before returning users to anyone other than their owner.
func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var createdAt time.Time
	err := row.Scan(
		&u.ID, &u.RoomID, &createdAt, &u.Token,
		&u.DisplayName, &u.Description, &u.AvatarAttachmentID, &u.Role,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt.UnixMilli()
	return &u, nil
}

// attachmentIsImage reports whether the given attachment exists, is an image,
// and, when owner is non-nil, belongs to that user.
func (s *Store) attachmentIsImage(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (bool, error) {
	var typ string
	var userID uuid.UUID
	err := s.pool.QueryRow(ctx, "SELECT type, user_id FROM attachments WHERE id = $1", id).
		Scan(&typ, &userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if typ != "image" {
		return false, nil
	}
	if owner != nil && userID != *owner {
		return false, nil
	}
	return true, nil
}
