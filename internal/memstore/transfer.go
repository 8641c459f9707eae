package memstore

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateTransferBundle mints a 1 h transfer code for every supplied token
// that resolves to a user. Unknown tokens are skipped.
func (s *Store) CreateTransferBundle(ctx context.Context, userTokens []string) (string, error) {
	s.mu.RLock()
	var userIDs []uuid.UUID
	for _, token := range userTokens {
		if token == "" {
			continue
		}
		if ref, ok := s.tokens[token]; ok {
			userIDs = append(userIDs, ref.userID)
		}
	}
	s.mu.RUnlock()

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
// the bundled users with their tokens.
func (s *Store) GetTransferBundleFromCode(ctx context.Context, code string) ([]user.User, error) {
	userIDs, err := s.registry.ConsumeTransfer(ctx, code)
	if errors.Is(err, credential.ErrTransferInvalid) {
		return nil, apierrors.ErrInvalidOrExpiredTransferCode
	}
	if err != nil {
		return nil, s.fail("getTransferBundleFromCode", err, apierrors.ErrCouldNotFetchUserDataFromTransferCode)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	var users []user.User
	for _, rs := range s.rooms {
		for id := range wanted {
			if u, ok := rs.users[id]; ok {
				users = append(users, *u)
			}
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt != users[j].CreatedAt {
			return users[i].CreatedAt < users[j].CreatedAt
		}
		return users[i].ID.String() < users[j].ID.String()
	})
	return users, nil
}
