package pgstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateTransferBundle mints a 1 h transfer code for every supplied token
// that resolves to a user. The call is unauthenticated by design: supplying
// the tokens is the proof of control.
func (s *Store) CreateTransferBundle(ctx context.Context, userTokens []string) (string, error) {
	var userIDs []uuid.UUID
	for _, token := range userTokens {
		if token == "" {
			continue
		}
		var id uuid.UUID
		err := s.pool.QueryRow(ctx, "SELECT id FROM users WHERE token = $1", token).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", s.fail("createTransferBundle", err, apierrors.ErrCouldNotCreateTransferCode)
		}
		userIDs = append(userIDs, id)
	}
	if len(userIDs) == 0 {
		return "", apierrors.ErrNoValidTokens
	}

	code, err := s.registry.MintTransfer(ctx, userIDs)
	if err != nil {
		return "", s.fail("createTransferBundle", err, apierrors.ErrCouldNotCreateTransferCode)
	}
	return code, nil
}

// GetTransferBundleFromCode consumes a transfer code (one-shot) and returns
// the bundled users with their tokens, so a new device can take over the
// sessions.
func (s *Store) GetTransferBundleFromCode(ctx context.Context, code string) ([]user.User, error) {
	userIDs, err := s.registry.ConsumeTransfer(ctx, code)
	if errors.Is(err, credential.ErrTransferInvalid) {
		return nil, apierrors.ErrInvalidOrExpiredTransferCode
	}
	if err != nil {
		return nil, s.fail("getTransferBundleFromCode", err, apierrors.ErrCouldNotFetchUserDataFromTransferCode)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ANY($1) ORDER BY created_at, id",
		userIDs,
	)
	if err != nil {
		return nil, s.fail("getTransferBundleFromCode", err, apierrors.ErrCouldNotFetchUserDataFromTransferCode)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.fail("getTransferBundleFromCode", err, apierrors.ErrCouldNotFetchUserDataFromTransferCode)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("getTransferBundleFromCode", err, apierrors.ErrCouldNotFetchUserDataFromTransferCode)
	}
	return users, nil
}
