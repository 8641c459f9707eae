package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/room"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateRoomAndAdmin creates the room, its first admin, and the public
// General channel as one atomic insert.
func (s *Store) CreateRoomAndAdmin(_ context.Context, roomName, adminName string, adminInviteOnly bool) (*chat.RoomAndAdmin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	result := &chat.RoomAndAdmin{
		Room: room.Room{
			ID:              uuid.New(),
			CreatedAt:       now,
			DisplayName:     roomName,
			AdminInviteOnly: adminInviteOnly,
		},
		Admin: user.User{
			ID:          uuid.New(),
			CreatedAt:   now,
			Token:       user.NewToken(),
			DisplayName: adminName,
			Role:        user.RoleAdmin,
		},
		GeneralChannel: channel.Channel{
			ID:          uuid.New(),
			CreatedAt:   now,
			DisplayName: room.GeneralChannelName,
			IsPrivate:   false,
		},
	}
	result.Admin.RoomID = result.Room.ID
	result.GeneralChannel.RoomID = result.Room.ID
	result.GeneralChannel.CreatedBy = result.Admin.ID

	admin := result.Admin
	rs := &roomState{
		room:          result.Room,
		users:         map[uuid.UUID]*user.User{admin.ID: &admin},
		channels:      map[uuid.UUID]*channelState{result.GeneralChannel.ID: {channel: result.GeneralChannel}},
		attachments:   make(map[uuid.UUID]*attachment.Attachment),
		nextMessageID: 1,
	}
	s.rooms[result.Room.ID] = rs
	s.tokens[admin.Token] = tokenRef{roomID: result.Room.ID, userID: admin.ID}
	return result, nil
}

// UpdateRoom rewrites the admin's room. The logo, when provided, must
// reference an image attachment.
func (s *Store) UpdateRoom(_ context.Context, adminToken string, params chat.UpdateRoomParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminToken)
	if err != nil {
		return err
	}
	if params.LogoID != nil && !rs.attachmentIsImage(*params.LogoID, nil) {
		return apierrors.ErrInvalidOrNonImageLogoAttachment
	}

	rs.room.DisplayName = params.DisplayName
	rs.room.AdminInviteOnly = params.AdminInviteOnly
	rs.room.Description = params.Description
	rs.room.LogoAttachmentID = params.LogoID
	return nil
}

// GetRoom returns the caller's own room; any other room id is RoomNotFound.
func (s *Store) GetRoom(_ context.Context, userToken string, roomID uuid.UUID) (*room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, err
	}
	if caller.RoomID != roomID {
		return nil, apierrors.ErrRoomNotFound
	}
	r := rs.room
	return &r, nil
}
