package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/postgres"
	"github.com/chitter-chat/chitter-server/internal/room"
	"github.com/chitter-chat/chitter-server/internal/user"
)

const roomColumns = "id, created_at, display_name, description, logo_id, admin_invite_only"

// CreateRoomAndAdmin creates the room, its first admin, and the public
// General channel in one transaction; either all three commit or none do.
func (s *Store) CreateRoomAndAdmin(ctx context.Context, roomName, adminName string, adminInviteOnly bool) (*chat.RoomAndAdmin, error) {
	result := &chat.RoomAndAdmin{
		Room: room.Room{
			ID:              uuid.New(),
			DisplayName:     roomName,
			AdminInviteOnly: adminInviteOnly,
		},
		Admin: user.User{
			ID:          uuid.New(),
			Token:       user.NewToken(),
			DisplayName: adminName,
			Role:        user.RoleAdmin,
		},
		GeneralChannel: channel.Channel{
			ID:          uuid.New(),
			DisplayName: room.GeneralChannelName,
			IsPrivate:   false,
		},
	}
	result.Admin.RoomID = result.Room.ID
	result.GeneralChannel.RoomID = result.Room.ID
	result.GeneralChannel.CreatedBy = result.Admin.ID

	err := postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var createdAt time.Time
		err := tx.QueryRow(ctx,
			`INSERT INTO rooms (id, display_name, admin_invite_only)
			 VALUES ($1, $2, $3)
			 RETURNING created_at`,
			result.Room.ID, roomName, adminInviteOnly,
		).Scan(&createdAt)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		result.Room.CreatedAt = createdAt.UnixMilli()

		err = tx.QueryRow(ctx,
			`INSERT INTO users (id, room_id, token, display_name, role)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			result.Admin.ID, result.Room.ID, result.Admin.Token, adminName, user.RoleAdmin,
		).Scan(&createdAt)
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		result.Admin.CreatedAt = createdAt.UnixMilli()

		err = tx.QueryRow(ctx,
			`INSERT INTO channels (id, room_id, display_name, is_private, created_by)
			 VALUES ($1, $2, $3, false, $4)
			 RETURNING created_at`,
			result.GeneralChannel.ID, result.Room.ID, room.GeneralChannelName, result.Admin.ID,
		).Scan(&createdAt)
		if err != nil {
			return fmt.Errorf("insert general channel: %w", err)
		}
		result.GeneralChannel.CreatedAt = createdAt.UnixMilli()
		return nil
	})
	if err != nil {
		return nil, s.fail("createRoomAndAdmin", err, apierrors.ErrCouldNotCreateRoomAndAdmin)
	}
	return result, nil
}

// UpdateRoom rewrites the admin's room. The logo, when provided, must
// reference an image attachment.
func (s *Store) UpdateRoom(ctx context.Context, adminToken string, params chat.UpdateRoomParams) error {
	admin, err := s.resolveAdmin(ctx, s.pool, adminToken, apierrors.ErrInvalidAdminToken)
	if err != nil {
		return s.fail("updateRoom", err, apierrors.ErrCouldNotUpdateRoom)
	}

	if params.LogoID != nil {
		ok, err := s.attachmentIsImage(ctx, *params.LogoID, nil)
		if err != nil {
			return s.fail("updateRoom", err, apierrors.ErrCouldNotUpdateRoom)
		}
		if !ok {
			return apierrors.ErrInvalidOrNonImageLogoAttachment
		}
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE rooms SET display_name = $1, admin_invite_only = $2, description = $3, logo_id = $4
		 WHERE id = $5`,
		params.DisplayName, params.AdminInviteOnly, params.Description, params.LogoID, admin.RoomID,
	)
	if err != nil {
		return s.fail("updateRoom", err, apierrors.ErrCouldNotUpdateRoom)
	}
	return nil
}

// GetRoom returns the caller's own room; any other room id is RoomNotFound.
func (s *Store) GetRoom(ctx context.Context, userToken string, roomID uuid.UUID) (*room.Room, error) {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, s.fail("getRoom", err, apierrors.ErrUnknownServerError)
	}
	if caller.RoomID != roomID {
		return nil, apierrors.ErrRoomNotFound
	}

	r, err := scanRoom(s.pool.QueryRow(ctx, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", roomID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrRoomNotFound
	}
	if err != nil {
		return nil, s.fail("getRoom", err, apierrors.ErrUnknownServerError)
	}
	return r, nil
}

// scanRoom scans a single room row.
func scanRoom(row pgx.Row) (*room.Room, error) {
	var r room.Room
	var createdAt time.Time
	err := row.Scan(&r.ID, &createdAt, &r.DisplayName, &r.Description, &r.LogoAttachmentID, &r.AdminInviteOnly)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = createdAt.UnixMilli()
	return &r, nil
}
