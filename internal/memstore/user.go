package memstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/credential"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateInviteCode mints a 24 h invite code scoped to the caller's room. In
// an admin-invite-only room only admins may mint.
func (s *Store) CreateInviteCode(ctx context.Context, userToken string) (string, error) {
	s.mu.RLock()
	rs, caller, err := s.resolveToken(userToken, apierrors.ErrUserNotFound)
	if err != nil {
		s.mu.RUnlock()
		return "", err
	}
	if rs.room.AdminInviteOnly && caller.Role != user.RoleAdmin {
		s.mu.RUnlock()
		return "", apierrors.ErrUserIsNotAdminAndRoomIsAdminInviteOnly
	}
	roomID := caller.RoomID
	s.mu.RUnlock()

	code, err := s.registry.MintInvite(ctx, roomID)
	if err != nil {
		return "", s.fail("createInviteCode", err, apierrors.ErrCouldNotCreateInviteCode)
	}
	return code, nil
}

// CreateUserFromInviteCode creates a participant from a one-shot invite code.
// The display-name check runs against a peeked code so a collision leaves the
// code usable; the consume is the one-shot step.
func (s *Store) CreateUserFromInviteCode(ctx context.Context, code, displayName string) (*user.User, error) {
	roomID, err := s.registry.PeekInvite(ctx, code)
	if errors.Is(err, credential.ErrInviteInvalid) {
		return nil, apierrors.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, s.fail("createUserFromInviteCode", err, apierrors.ErrCouldNotCreateUserFromInviteCode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.rooms[roomID]
	if !ok {
		return nil, apierrors.ErrInvalidInviteCode
	}
	for _, u := range rs.users {
		if u.DisplayName == displayName {
			return nil, apierrors.ErrDisplayNameAlreadyExists
		}
	}

	roomID, err = s.registry.ConsumeInvite(ctx, code)
	if errors.Is(err, credential.ErrInviteInvalid) {
		return nil, apierrors.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, s.fail("createUserFromInviteCode", err, apierrors.ErrCouldNotCreateUserFromInviteCode)
	}

	created := user.User{
		ID:          uuid.New(),
		RoomID:      roomID,
		CreatedAt:   s.now().UnixMilli(),
		Token:       user.NewToken(),
		DisplayName: displayName,
		Role:        user.RoleParticipant,
	}
	stored := created
	rs.users[created.ID] = &stored
	s.tokens[created.Token] = tokenRef{roomID: roomID, userID: created.ID}
	return &created, nil
}

// RemoveUser revokes a user in the admin's room: private-channel memberships
// are wiped and the token is rotated. The user and its messages survive.
func (s *Store) RemoveUser(_ context.Context, adminToken string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return err
	}
	target, ok := rs.users[userID]
	if !ok {
		return apierrors.ErrUserNotFoundInAdminsRoom
	}

	for _, cs := range rs.channels {
		delete(cs.members, userID)
	}
	delete(s.tokens, target.Token)
	target.Token = user.NewToken()
	s.tokens[target.Token] = tokenRef{roomID: rs.room.ID, userID: userID}
	return nil
}

// UpdateUser rewrites the caller's profile. The avatar, when provided, must
// be an image attachment owned by the caller.
func (s *Store) UpdateUser(_ context.Context, userToken string, params chat.UpdateUserParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return err
	}
	if params.Avatar != nil && !rs.attachmentIsImage(*params.Avatar, &caller.ID) {
		return apierrors.ErrInvalidOrNonImageAvatarAttachment
	}

	if params.DisplayName != nil {
		caller.DisplayName = *params.DisplayName
	}
	caller.Description = params.Description
	caller.AvatarAttachmentID = params.Avatar
	return nil
}

// SetUserRole changes the role of a user in the admin's room.
func (s *Store) SetUserRole(_ context.Context, adminToken string, userID uuid.UUID, role user.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return err
	}
	if !role.Valid() {
		return apierrors.ErrInvalidParameters
	}
	target, ok := rs.users[userID]
	if !ok {
		return apierrors.ErrUserNotFoundInAdminsRoom
	}
	target.Role = role
	return nil
}

// GetUsers lists the caller's room members or, when channelID is given, the
// members visible through that channel: the explicit set for a private
// channel, everyone in the room for a public one.
func (s *Store) GetUsers(_ context.Context, userToken string, channelID *uuid.UUID) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, err
	}

	if channelID != nil {
		cs, ok := rs.channels[*channelID]
		if !ok {
			return nil, apierrors.ErrChannelNotFoundInUsersRoom
		}
		if cs.channel.IsPrivate {
			if _, member := cs.members[caller.ID]; !member {
				return nil, apierrors.ErrUserIsNotMemberOfPrivateChannel
			}
			members := make([]*user.User, 0, len(cs.members))
			for id := range cs.members {
				if u, ok := rs.users[id]; ok {
					members = append(members, u)
				}
			}
			return sortedUsers(members), nil
		}
	}

	all := make([]*user.User, 0, len(rs.users))
	for _, u := range rs.users {
		all = append(all, u)
	}
	return sortedUsers(all), nil
}

// GetUser returns a single member of the caller's room, token stripped.
func (s *Store) GetUser(_ context.Context, userToken string, userID uuid.UUID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, _, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, err
	}
	u, ok := rs.users[userID]
	if !ok {
		return nil, apierrors.ErrUserNotFound
	}
	public := u.Public()
	return &public, nil
}
