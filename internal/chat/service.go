// Package chat defines the service contract shared by the SQL and in-memory
// backends. Every operation authenticates by resolving its token to a user,
// then checks room and channel scope by id; callers never supply a trusted
// room id directly.
package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/message"
	"github.com/chitter-chat/chitter-server/internal/room"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// RoomAndAdmin is the payload of CreateRoomAndAdmin. The admin carries its
// freshly minted token.
type RoomAndAdmin struct {
	Room           room.Room       `json:"room"`
	Admin          user.User       `json:"admin"`
	GeneralChannel channel.Channel `json:"generalChannel"`
}

// UpdateRoomParams groups the inputs for UpdateRoom. DisplayName and
// AdminInviteOnly are always applied; nil optionals clear the stored value.
type UpdateRoomParams struct {
	DisplayName     string
	AdminInviteOnly bool
	Description     *string
	LogoID          *uuid.UUID
}

// UpdateUserParams groups the inputs for UpdateUser. Nil fields are left
// unchanged except Description, which is stored as given.
type UpdateUserParams struct {
	DisplayName *string
	Description *string
	Avatar      *uuid.UUID
}

// UpdateChannelParams groups the inputs for UpdateChannel. Nil fields are
// left unchanged.
type UpdateChannelParams struct {
	DisplayName *string
	Description *string
}

// UploadParams groups the inputs for UploadAttachment. The bytes are already
// at Path when the call is made; the service only records the reference.
type UploadParams struct {
	Type     attachment.Type
	FileName string
	Path     string
	Width    *int
	Height   *int
}

// Service is the contract implemented by both backends. Every method either
// returns its success payload or a single tagged *apierrors.Error; no
// operation partially commits.
type Service interface {
	// CreateRoomAndAdmin atomically creates a room, its first admin user with
	// a fresh token, and the public General channel.
	CreateRoomAndAdmin(ctx context.Context, roomName, adminName string, adminInviteOnly bool) (*RoomAndAdmin, error)

	// UpdateRoom rewrites the admin's room. A logo, when set, must reference
	// an image attachment.
	UpdateRoom(ctx context.Context, adminToken string, params UpdateRoomParams) error

	// GetRoom returns the caller's own room; any other id is RoomNotFound.
	GetRoom(ctx context.Context, userToken string, roomID uuid.UUID) (*room.Room, error)

	// CreateInviteCode mints a 24 h invite code for the caller's room. In an
	// admin-invite-only room only admins may mint.
	CreateInviteCode(ctx context.Context, userToken string) (string, error)

	// CreateUserFromInviteCode consumes an invite code (one-shot) and creates
	// a participant with a fresh token. A display-name collision fails
	// without consuming the code.
	CreateUserFromInviteCode(ctx context.Context, code, displayName string) (*user.User, error)

	// RemoveUser revokes a user in the admin's room: private-channel
	// memberships are wiped and the token is rotated. Authored messages
	// survive.
	RemoveUser(ctx context.Context, adminToken string, userID uuid.UUID) error

	// UpdateUser rewrites the caller's profile. An avatar, when set, must be
	// an image attachment owned by the caller.
	UpdateUser(ctx context.Context, userToken string, params UpdateUserParams) error

	// SetUserRole changes the role of a user in the admin's room.
	SetUserRole(ctx context.Context, adminToken string, userID uuid.UUID, role user.Role) error

	// GetUsers lists the caller's room members, or, when channelID is given,
	// the members visible through that channel.
	GetUsers(ctx context.Context, userToken string, channelID *uuid.UUID) ([]user.User, error)

	// GetUser returns a single user in the caller's room.
	GetUser(ctx context.Context, userToken string, userID uuid.UUID) (*user.User, error)

	// CreateTransferBundle mints a 1 h transfer code for every token that
	// resolves to a user. The call itself is unauthenticated: supplying the
	// tokens proves control of them.
	CreateTransferBundle(ctx context.Context, userTokens []string) (string, error)

	// GetTransferBundleFromCode consumes a transfer code (one-shot) and
	// returns the bundled users with their tokens.
	GetTransferBundleFromCode(ctx context.Context, code string) ([]user.User, error)

	// CreateMessage posts to exactly one of a channel or a direct-message
	// counterpart. Content passes the sanitizer; referenced attachments must
	// be owned by the caller. The returned id is strictly greater than every
	// earlier id in the same stream's room.
	CreateMessage(ctx context.Context, userToken string, content any, channelID, directMessageUserID *uuid.UUID) (int64, error)

	// RemoveMessage deletes a message if the caller authored it or is an
	// admin in the author's room.
	RemoveMessage(ctx context.Context, userToken string, messageID int64) error

	// EditMessage replaces a message's content under the same authorization
	// as RemoveMessage, re-sanitizing and re-resolving attachments, and sets
	// the edited flag.
	EditMessage(ctx context.Context, userToken string, messageID int64, content any) error

	// GetMessages pages one stream in descending id order. A cursor is an
	// exclusive upper bound; an empty result signals end-of-stream.
	GetMessages(ctx context.Context, userToken string, channelID, directMessageUserID *uuid.UUID, cursor *int64, limit int) ([]message.Message, error)

	// CreateChannel creates a channel in the admin's room. A private channel
	// starts with the creating admin as its only member.
	CreateChannel(ctx context.Context, adminToken, displayName string, isPrivate bool) (*channel.Channel, error)

	// RemoveChannel deletes a channel and its messages. A missing channel in
	// the admin's room is a successful no-op.
	RemoveChannel(ctx context.Context, adminToken string, channelID uuid.UUID) error

	// UpdateChannel rewrites the given fields of a channel in the admin's
	// room.
	UpdateChannel(ctx context.Context, adminToken string, channelID uuid.UUID, params UpdateChannelParams) error

	// GetChannels lists the public channels of the caller's room plus the
	// private ones the caller belongs to.
	GetChannels(ctx context.Context, userToken string) ([]channel.Channel, error)

	// GetChannel returns one channel under the same visibility filter.
	GetChannel(ctx context.Context, userToken string, channelID uuid.UUID) (*channel.Channel, error)

	// AddUserToChannel adds a room member to a private channel. Adding an
	// existing member is a no-op success.
	AddUserToChannel(ctx context.Context, adminToken string, userID, channelID uuid.UUID) error

	// RemoveUserFromChannel removes a member from a private channel.
	RemoveUserFromChannel(ctx context.Context, adminToken string, userID, channelID uuid.UUID) error

	// UploadAttachment records an upload owned by the caller.
	UploadAttachment(ctx context.Context, token string, params UploadParams) (*attachment.Attachment, error)

	// RemoveAttachment deletes an attachment the caller owns, unlinking the
	// file at its path if present.
	RemoveAttachment(ctx context.Context, token string, attachmentID uuid.UUID) error

	// Close releases the backend's resources: the SQL pool, or the in-memory
	// backend's snapshot loop after one final save.
	Close(ctx context.Context) error
}
