package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/channel"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/message"
)

// CreateChannel creates a channel in the admin's room. A private channel
// starts with its creating admin as the only member.
func (s *Store) CreateChannel(_ context.Context, adminToken, displayName string, isPrivate bool) (*channel.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, admin, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return nil, err
	}

	created := channel.Channel{
		ID:          uuid.New(),
		RoomID:      rs.room.ID,
		CreatedAt:   s.now().UnixMilli(),
		DisplayName: displayName,
		IsPrivate:   isPrivate,
		CreatedBy:   admin.ID,
	}
	cs := &channelState{channel: created}
	if isPrivate {
		cs.members = map[uuid.UUID]struct{}{admin.ID: {}}
	}
	rs.channels[created.ID] = cs
	return &created, nil
}

// RemoveChannel deletes a channel in the admin's room along with its
// messages. Removing an absent channel is a successful no-op.
func (s *Store) RemoveChannel(_ context.Context, adminToken string, channelID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return err
	}
	if _, ok := rs.channels[channelID]; !ok {
		return nil
	}
	delete(rs.channels, channelID)

	kept := rs.messages[:0]
	for _, m := range rs.messages {
		if m.ChannelID != nil && *m.ChannelID == channelID {
			continue
		}
		kept = append(kept, m)
	}
	rs.messages = kept
	return nil
}

// UpdateChannel rewrites the non-nil fields of a channel in the admin's room.
func (s *Store) UpdateChannel(_ context.Context, adminToken string, channelID uuid.UUID, params chat.UpdateChannelParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return err
	}
	cs, ok := rs.channels[channelID]
	if !ok {
		return apierrors.ErrChannelNotFound
	}
	if params.DisplayName != nil {
		cs.channel.DisplayName = *params.DisplayName
	}
	if params.Description != nil {
		cs.channel.Description = params.Description
	}
	return nil
}

// GetChannels lists every public channel of the caller's room plus the
// private ones the caller belongs to.
func (s *Store) GetChannels(_ context.Context, userToken string) ([]channel.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, err
	}

	var channels []channel.Channel
	for _, cs := range rs.channels {
		if cs.channel.IsPrivate {
			if _, member := cs.members[caller.ID]; !member {
				continue
			}
		}
		channels = append(channels, cs.channel)
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].CreatedAt != channels[j].CreatedAt {
			return channels[i].CreatedAt < channels[j].CreatedAt
		}
		return channels[i].ID.String() < channels[j].ID.String()
	})
	return channels, nil
}

// GetChannel returns one channel under the same visibility filter as
// GetChannels.
func (s *Store) GetChannel(_ context.Context, userToken string, channelID uuid.UUID) (*channel.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, err
	}
	cs, ok := rs.channels[channelID]
	if !ok {
		return nil, apierrors.ErrChannelNotFound
	}
	if cs.channel.IsPrivate {
		if _, member := cs.members[caller.ID]; !member {
			return nil, apierrors.ErrChannelNotFound
		}
	}
	ch := cs.channel
	return &ch, nil
}

// AddUserToChannel adds a member of the admin's room to a private channel.
// Adding an existing member succeeds without changing the set.
func (s *Store) AddUserToChannel(_ context.Context, adminToken string, userID, channelID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return err
	}
	cs, ok := rs.channels[channelID]
	if !ok || !cs.channel.IsPrivate {
		return apierrors.ErrChannelNotFoundOrNotPrivate
	}
	if _, ok := rs.users[userID]; !ok {
		return apierrors.ErrUserNotFoundInAdminsRoom
	}
	if cs.members == nil {
		cs.members = make(map[uuid.UUID]struct{})
	}
	cs.members[userID] = struct{}{}
	return nil
}

// RemoveUserFromChannel removes a member from a private channel in the
// admin's room.
func (s *Store) RemoveUserFromChannel(_ context.Context, adminToken string, userID, channelID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, _, err := s.resolveAdmin(adminToken, apierrors.ErrInvalidAdminTokenOrNonAdmin)
	if err != nil {
		return err
	}
	cs, ok := rs.channels[channelID]
	if !ok || !cs.channel.IsPrivate {
		return apierrors.ErrChannelNotFoundOrNotPrivate
	}
	delete(cs.members, userID)
	return nil
}

// channelMessages reports whether m belongs to the given channel stream.
func channelMessage(m *message.Message, channelID uuid.UUID) bool {
	return m.ChannelID != nil && *m.ChannelID == channelID
}
