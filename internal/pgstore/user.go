package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/postgres"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateInviteCode mints a 24 h invite code scoped to the caller's room. In
// an admin-invite-only room only admins may mint.
func (s *Store) CreateInviteCode(ctx context.Context, userToken string) (string, error) {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrUserNotFound)
	if err != nil {
		return "", s.fail("createInviteCode", err, apierrors.ErrCouldNotCreateInviteCode)
	}

	var adminInviteOnly bool
	err = s.pool.QueryRow(ctx, "SELECT admin_invite_only FROM rooms WHERE id = $1", caller.RoomID).
		Scan(&adminInviteOnly)
	if err != nil {
		return "", s.fail("createInviteCode", err, apierrors.ErrCouldNotCreateInviteCode)
	}
	if adminInviteOnly && caller.Role != user.RoleAdmin {
		return "", apierrors.ErrUserIsNotAdminAndRoomIsAdminInviteOnly
	}

	code, err := s.registry.MintInvite(ctx, caller.RoomID)
	if err != nil {
		return "", s.fail("createInviteCode", err, apierrors.ErrCouldNotCreateInviteCode)
	}
	return code, nil
}

// CreateUserFromInviteCode creates a participant from a one-shot invite code.
// The display-name check runs before consumption so a collision leaves the
// code usable.
func (s *Store) CreateUserFromInviteCode(ctx context.Context, code, displayName string) (*user.User, error) {
	roomID, err := s.registry.PeekInvite(ctx, code)
	if errors.Is(err, credential.ErrInviteInvalid) {
		return nil, apierrors.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, s.fail("createUserFromInviteCode", err, apierrors.ErrCouldNotCreateUserFromInviteCode)
	}

	var taken bool
	err = s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE room_id = $1 AND display_name = $2)",
		roomID, displayName,
	).Scan(&taken)
	if err != nil {
		return nil, s.fail("createUserFromInviteCode", err, apierrors.ErrCouldNotCreateUserFromInviteCode)
	}
	if taken {
		return nil, apierrors.ErrDisplayNameAlreadyExists
	}

	// The consume is the one-shot step; a concurrent consumer racing us here
	// sees the code vanish and fails.
	roomID, err = s.registry.ConsumeInvite(ctx, code)
	if errors.Is(err, credential.ErrInviteInvalid) {
		return nil, apierrors.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, s.fail("createUserFromInviteCode", err, apierrors.ErrCouldNotCreateUserFromInviteCode)
	}

	created := &user.User{
		ID:          uuid.New(),
		RoomID:      roomID,
		Token:       user.NewToken(),
		DisplayName: displayName,
		Role:        user.RoleParticipant,
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, room_id, token, display_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		created.ID, roomID, created.Token, displayName, user.RoleParticipant,
	)
	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		return nil, s.fail("createUserFromInviteCode", err, apierrors.ErrCouldNotCreateUserFromInviteCode)
	}
	created.CreatedAt = createdAt.UnixMilli()
	return created, nil
}

// RemoveUser revokes a user in the admin's room: private-channel memberships
// are wiped and the token is rotated, atomically. The user row and its
// messages survive.
func (s *Store) RemoveUser(ctx context.Context, adminToken string, userID uuid.UUID) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return s.fail("removeUser", err, apierrors.ErrCouldNotRemoveUser)
	}

	err = postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var roomID uuid.UUID
		err := tx.QueryRow(ctx, "SELECT room_id FROM users WHERE id = $1", userID).Scan(&roomID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && roomID != admin.RoomID) {
			return apierrors.ErrUserNotFoundInAdminsRoom
		}
		if err != nil {
			return fmt.Errorf("resolve target user: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM private_channel_members WHERE user_id = $1", userID); err != nil {
			return fmt.Errorf("wipe private memberships: %w", err)
		}
		if _, err := tx.Exec(ctx, "UPDATE users SET token = $1 WHERE id = $2", user.NewToken(), userID); err != nil {
			return fmt.Errorf("rotate token: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.fail("removeUser", err, apierrors.ErrCouldNotRemoveUser)
	}
	return nil
}

// UpdateUser rewrites the caller's profile. The avatar, when provided, must
// be an image attachment owned by the caller.
func (s *Store) UpdateUser(ctx context.Context, userToken string, params chat.UpdateUserParams) error {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return s.fail("updateUser", err, apierrors.ErrCouldNotUpdateUser)
	}

	if params.Avatar != nil {
		ok, err := s.attachmentIsImage(ctx, *params.Avatar, &caller.ID)
		if err != nil {
			return s.fail("updateUser", err, apierrors.ErrCouldNotUpdateUser)
		}
		if !ok {
			return apierrors.ErrInvalidOrNonImageAvatarAttachment
		}
	}

	displayName := caller.DisplayName
	if params.DisplayName != nil {
		displayName = *params.DisplayName
	}
	_, err = s.pool.Exec(ctx,
		"UPDATE users SET display_name = $1, description = $2, avatar_id = $3 WHERE id = $4",
		displayName, params.Description, params.Avatar, caller.ID,
	)
	if err != nil {
		return s.fail("updateUser", err, apierrors.ErrCouldNotUpdateUser)
	}
	return nil
}

// SetUserRole changes the role of a user in the admin's room.
func (s *Store) SetUserRole(ctx context.Context, adminToken string, userID uuid.UUID, role user.Role) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return s.fail("setUserRole", err, apierrors.ErrCouldNotChangeUserRole)
	}
	if !role.Valid() {
		return apierrors.ErrInvalidParameters
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET role = $1 WHERE id = $2 AND room_id = $3",
		role, userID, admin.RoomID,
	)
	if err != nil {
		return s.fail("setUserRole", err, apierrors.ErrCouldNotChangeUserRole)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.ErrUserNotFoundInAdminsRoom
	}
	return nil
}

// GetUsers lists the caller's room members or, when channelID is given, the
// members visible through that channel: the explicit set for a private
// channel, everyone in the room for a public one.
func (s *Store) GetUsers(ctx context.Context, userToken string, channelID *uuid.UUID) ([]user.User, error) {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
	}

	var rows pgx.Rows
	if channelID == nil {
		rows, err = s.pool.Query(ctx,
			"SELECT "+userColumns+" FROM users WHERE room_id = $1 ORDER BY created_at, id",
			caller.RoomID,
		)
	} else {
		var isPrivate bool
		err = s.pool.QueryRow(ctx,
			"SELECT is_private FROM channels WHERE id = $1 AND room_id = $2",
			*channelID, caller.RoomID,
		).Scan(&isPrivate)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apierrors.ErrChannelNotFoundInUsersRoom
		}
		if err != nil {
			return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
		}

		if isPrivate {
			member, err := s.isMember(ctx, *channelID, caller.ID)
			if err != nil {
				return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
			}
			if !member {
				return nil, apierrors.ErrUserIsNotMemberOfPrivateChannel
			}
			rows, err = s.pool.Query(ctx,
				`SELECT `+userColumns+` FROM users
				 WHERE id IN (SELECT user_id FROM private_channel_members WHERE channel_id = $1)
				 ORDER BY created_at, id`,
				*channelID,
			)
			if err != nil {
				return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
			}
			return s.collectPublicUsers(rows)
		}
		rows, err = s.pool.Query(ctx,
			"SELECT "+userColumns+" FROM users WHERE room_id = $1 ORDER BY created_at, id",
			caller.RoomID,
		)
	}
	if err != nil {
		return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
	}
	return s.collectPublicUsers(rows)
}

// collectPublicUsers drains rows into token-stripped users.
func (s *Store) collectPublicUsers(rows pgx.Rows) ([]user.User, error) {
	defer rows.Close()
	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
		}
		users = append(users, u.Public())
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("getUsers", err, apierrors.ErrCouldNotGetUsers)
	}
	return users, nil
}

// GetUser returns a single member of the caller's room, token stripped.
func (s *Store) GetUser(ctx context.Context, userToken string, userID uuid.UUID) (*user.User, error) {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, s.fail("getUser", err, apierrors.ErrCouldNotRetrieveUserDetails)
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 AND room_id = $2",
		userID, caller.RoomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrUserNotFound
	}
	if err != nil {
		return nil, s.fail("getUser", err, apierrors.ErrCouldNotRetrieveUserDetails)
	}
	public := u.Public()
	return &public, nil
}

// isMember reports private-channel membership.
func (s *Store) isMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	var member bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM private_channel_members WHERE channel_id = $1 AND user_id = $2)",
		channelID, userID,
	).Scan(&member)
	return member, err
}
