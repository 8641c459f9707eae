package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/postgres"
)

const channelColumns = "id, room_id, created_at, display_name, description, is_private, created_by"

// CreateChannel creates a channel in the admin's room. A private channel
// starts with its creating admin as the only member; both inserts commit
// together.
func (s *Store) CreateChannel(ctx context.Context, adminToken, displayName string, isPrivate bool) (*channel.Channel, error) {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return nil, s.fail("createChannel", err, apierrors.ErrCouldNotCreateChannel)
	}

	created := &channel.Channel{
		ID:          uuid.New(),
		RoomID:      admin.RoomID,
		DisplayName: displayName,
		IsPrivate:   isPrivate,
		CreatedBy:   admin.ID,
	}
	err = postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var createdAt time.Time
		err := tx.QueryRow(ctx,
			`INSERT INTO channels (id, room_id, display_name, is_private, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			created.ID, admin.RoomID, displayName, isPrivate, admin.ID,
		).Scan(&createdAt)
		if err != nil {
			return fmt.Errorf("insert channel: %w", err)
		}
		created.CreatedAt = createdAt.UnixMilli()

		if isPrivate {
			_, err := tx.Exec(ctx,
				"INSERT INTO private_channel_members (channel_id, user_id) VALUES ($1, $2)",
				created.ID, admin.ID,
			)
			if err != nil {
				return fmt.Errorf("add creator membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("createChannel", err, apierrors.ErrCouldNotCreateChannel)
	}
	return created, nil
}

// RemoveChannel deletes a channel in the admin's room. Messages go with it
// through the cascade. Deleting a channel that does not exist in the room is
// a successful no-op.
func (s *Store) RemoveChannel(ctx context.Context, adminToken string, channelID uuid.UUID) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return s.fail("removeChannel", err, apierrors.ErrCouldNotRemoveChannel)
	}

	_, err = s.pool.Exec(ctx,
		"DELETE FROM channels WHERE id = $1 AND room_id = $2",
		channelID, admin.RoomID,
	)
	if err != nil {
		return s.fail("removeChannel", err, apierrors.ErrCouldNotRemoveChannel)
	}
	return nil
}

// UpdateChannel rewrites the non-nil fields of a channel in the admin's room.
func (s *Store) UpdateChannel(ctx context.Context, adminToken string, channelID uuid.UUID, params chat.UpdateChannelParams) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return s.fail("updateChannel", err, apierrors.ErrCouldNotUpdateChannel)
	}

	setClauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	argPos := 1

	if params.DisplayName != nil {
		setClauses = append(setClauses, fmt.Sprintf("display_name = $%d", argPos))
		args = append(args, *params.DisplayName)
		argPos++
	}
	if params.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *params.Description)
		argPos++
	}
	if len(setClauses) == 0 {
		// Nothing to change; still verify the channel is in scope.
		if _, err := s.channelInRoom(ctx, channelID, admin.RoomID); err != nil {
			return s.fail("updateChannel", err, apierrors.ErrCouldNotUpdateChannel)
		}
		return nil
	}

	query := fmt.Sprintf(
		"UPDATE channels SET %s WHERE id = $%d AND room_id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1,
	)
	args = append(args, channelID, admin.RoomID)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return s.fail("updateChannel", err, apierrors.ErrCouldNotUpdateChannel)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.ErrChannelNotFound
	}
	return nil
}

// GetChannels lists every public channel of the caller's room plus the
// private ones the caller belongs to.
func (s *Store) GetChannels(ctx context.Context, userToken string) ([]channel.Channel, error) {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, s.fail("getChannels", err, apierrors.ErrCouldNotRetrieveChannels)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels
		 WHERE room_id = $1
		   AND (is_private = false OR EXISTS(
		        SELECT 1 FROM private_channel_members
		        WHERE channel_id = channels.id AND user_id = $2))
		 ORDER BY created_at, id`,
		caller.RoomID, caller.ID,
	)
	if err != nil {
		return nil, s.fail("getChannels", err, apierrors.ErrCouldNotRetrieveChannels)
	}
	defer rows.Close()

	var channels []channel.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, s.fail("getChannels", err, apierrors.ErrCouldNotRetrieveChannels)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("getChannels", err, apierrors.ErrCouldNotRetrieveChannels)
	}
	return channels, nil
}

// GetChannel returns one channel under the same visibility filter as
// GetChannels.
func (s *Store) GetChannel(ctx context.Context, userToken string, channelID uuid.UUID) (*channel.Channel, error) {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, s.fail("getChannel", err, apierrors.ErrCouldNotRetrieveChannels)
	}

	ch, err := scanChannel(s.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels
		 WHERE id = $1 AND room_id = $2
		   AND (is_private = false OR EXISTS(
		        SELECT 1 FROM private_channel_members
		        WHERE channel_id = channels.id AND user_id = $3))`,
		channelID, caller.RoomID, caller.ID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrChannelNotFound
	}
	if err != nil {
		return nil, s.fail("getChannel", err, apierrors.ErrCouldNotRetrieveChannels)
	}
	return ch, nil
}

// AddUserToChannel adds a member of the admin's room to a private channel.
// Adding an existing member succeeds without changing the set.
func (s *Store) AddUserToChannel(ctx context.Context, adminToken string, userID, channelID uuid.UUID) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return s.fail("addUserToChannel", err, apierrors.ErrCouldNotAddUserToChannel)
	}
	if err := s.requirePrivateChannel(ctx, channelID, admin.RoomID); err != nil {
		return s.fail("addUserToChannel", err, apierrors.ErrCouldNotAddUserToChannel)
	}
	if err := s.requireUserInRoom(ctx, userID, admin.RoomID); err != nil {
		return s.fail("addUserToChannel", err, apierrors.ErrCouldNotAddUserToChannel)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO private_channel_members (channel_id, user_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		channelID, userID,
	)
	if err != nil {
		return s.fail("addUserToChannel", err, apierrors.ErrCouldNotAddUserToChannel)
	}
	return nil
}

// RemoveUserFromChannel removes a member from a private channel in the
// admin's room.
func (s *Store) RemoveUserFromChannel(ctx context.Context, adminToken string, userID, channelID uuid.UUID) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return s.fail("removeUserFromChannel", err, apierrors.ErrCouldNotRemoveUserFromChannel)
	}
	if err := s.requirePrivateChannel(ctx, channelID, admin.RoomID); err != nil {
		return s.fail("removeUserFromChannel", err, apierrors.ErrCouldNotRemoveUserFromChannel)
	}

	_, err = s.pool.Exec(ctx,
		"DELETE FROM private_channel_members WHERE channel_id = $1 AND user_id = $2",
		channelID, userID,
	)
	if err != nil {
		return s.fail("removeUserFromChannel", err, apierrors.ErrCouldNotRemoveUserFromChannel)
	}
	return nil
}

// channelInRoom loads a channel scoped to a room, mapping absence to
// ChannelNotFound.
func (s *Store) channelInRoom(ctx context.Context, channelID, roomID uuid.UUID) (*channel.Channel, error) {
	ch, err := scanChannel(s.pool.QueryRow(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE id = $1 AND room_id = $2",
		channelID, roomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// requirePrivateChannel fails with ChannelNotFoundOrNotPrivate unless the
// channel exists in the room and is private.
func (s *Store) requirePrivateChannel(ctx context.Context, channelID, roomID uuid.UUID) error {
	var isPrivate bool
	err := s.pool.QueryRow(ctx,
		"SELECT is_private FROM channels WHERE id = $1 AND room_id = $2",
		channelID, roomID,
	).Scan(&isPrivate)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !isPrivate) {
		return apierrors.ErrChannelNotFoundOrNotPrivate
	}
	return err
}

// requireUserInRoom fails with UserNotFoundInAdminsRoom unless the user
// belongs to the room.
func (s *Store) requireUserInRoom(ctx context.Context, userID, roomID uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND room_id = $2)",
		userID, roomID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apierrors.ErrUserNotFoundInAdminsRoom
	}
	return nil
}

// scanChannel scans a single channel row.
func scanChannel(row pgx.Row) (*channel.Channel, error) {
	var ch channel.Channel
	var createdAt time.Time
	err := row.Scan(&ch.ID, &ch.RoomID, &createdAt, &ch.DisplayName, &ch.Description, &ch.IsPrivate, &ch.CreatedBy)
	if err != nil {
		return nil, err
	}
	ch.CreatedAt = createdAt.UnixMilli()
	return &ch, nil
}
