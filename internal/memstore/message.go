package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/message"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateMessage posts a sanitized message to exactly one of a channel or a
// direct-message counterpart in the caller's room.
func (s *Store) CreateMessage(_ context.Context, userToken string, content any, channelID, directMessageUserID *uuid.UUID) (int64, error) {
	if channelID != nil && directMessageUserID != nil {
		return 0, apierrors.ErrMessageCannotTargetBoth
	}
	if channelID == nil && directMessageUserID == nil {
		return 0, apierrors.ErrInvalidParameters
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return 0, err
	}

	sanitized, err := message.Sanitize(content)
	if err != nil {
		return 0, err
	}
	if err := rs.checkMessageTarget(caller, channelID, directMessageUserID); err != nil {
		return 0, err
	}
	if err := rs.resolveAttachments(sanitized, caller.ID); err != nil {
		return 0, err
	}

	msg := message.Message{
		ID:                  rs.nextMessageID,
		UserID:              caller.ID,
		CreatedAt:           s.now().UnixMilli(),
		Content:             *sanitized,
		ChannelID:           channelID,
		DirectMessageUserID: directMessageUserID,
	}
	rs.nextMessageID++
	rs.messages = append(rs.messages, msg)
	return msg.ID, nil
}

// RemoveMessage deletes a message if the caller authored it or is an admin in
// the author's room.
func (s *Store) RemoveMessage(_ context.Context, userToken string, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return err
	}
	idx, ok := rs.messageIndex(messageID)
	if !ok {
		return apierrors.ErrMessageNotFound
	}
	if err := authoriseMessageMutation(caller, &rs.messages[idx], apierrors.ErrUserNotAuthorizedToDeleteThisMessage); err != nil {
		return err
	}
	rs.messages = append(rs.messages[:idx], rs.messages[idx+1:]...)
	return nil
}

// EditMessage replaces a message's content under the same authorization as
// RemoveMessage. Content is re-sanitized and attachment ids re-resolved; the
// edited flag is set.
func (s *Store) EditMessage(_ context.Context, userToken string, messageID int64, content any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return err
	}
	sanitized, err := message.Sanitize(content)
	if err != nil {
		return err
	}
	idx, ok := rs.messageIndex(messageID)
	if !ok {
		return apierrors.ErrMessageNotFound
	}
	if err := authoriseMessageMutation(caller, &rs.messages[idx], apierrors.ErrUserNotAuthorizedToEditThisMessage); err != nil {
		return err
	}
	if err := rs.resolveAttachments(sanitized, caller.ID); err != nil {
		return err
	}

	rs.messages[idx].Content = *sanitized
	rs.messages[idx].Edited = true
	return nil
}

// GetMessages pages one message stream in descending id order below the
// exclusive cursor.
func (s *Store) GetMessages(_ context.Context, userToken string, channelID, directMessageUserID *uuid.UUID, cursor *int64, limit int) ([]message.Message, error) {
	if channelID != nil && directMessageUserID != nil {
		return nil, apierrors.ErrMessageCannotTargetBoth
	}
	if channelID == nil && directMessageUserID == nil {
		return nil, apierrors.ErrEitherChannelOrDirectUserRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, caller, err := s.resolveToken(userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, err
	}
	if err := rs.checkMessageTarget(caller, channelID, directMessageUserID); err != nil {
		return nil, err
	}
	limit = message.ClampLimit(limit)

	inStream := func(m *message.Message) bool {
		if channelID != nil {
			return channelMessage(m, *channelID)
		}
		if m.DirectMessageUserID == nil {
			return false
		}
		return (m.UserID == caller.ID && *m.DirectMessageUserID == *directMessageUserID) ||
			(m.UserID == *directMessageUserID && *m.DirectMessageUserID == caller.ID)
	}

	var out []message.Message
	for i := len(rs.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := rs.messages[i]
		if cursor != nil && m.ID >= *cursor {
			continue
		}
		if !inStream(&m) {
			continue
		}
		if author, ok := rs.users[m.UserID]; ok {
			public := author.Public()
			m.Author = &public
		}
		out = append(out, m)
	}
	return out, nil
}

// messageIndex locates a message by id in the ascending slice.
func (rs *roomState) messageIndex(id int64) (int, bool) {
	idx := sort.Search(len(rs.messages), func(i int) bool { return rs.messages[i].ID >= id })
	if idx < len(rs.messages) && rs.messages[idx].ID == id {
		return idx, true
	}
	return 0, false
}

// checkMessageTarget verifies that the selected stream is visible to the
// caller: the channel is in the caller's room (and the caller is a member
// when it is private), or the direct counterpart shares the caller's room.
func (rs *roomState) checkMessageTarget(caller *user.User, channelID, directMessageUserID *uuid.UUID) error {
	if channelID != nil {
		cs, ok := rs.channels[*channelID]
		if !ok {
			return apierrors.ErrChannelNotFoundInUsersRoom
		}
		if cs.channel.IsPrivate {
			if _, member := cs.members[caller.ID]; !member {
				return apierrors.ErrUserIsNotMemberOfPrivateChannel
			}
		}
		return nil
	}
	if _, ok := rs.users[*directMessageUserID]; !ok {
		return apierrors.ErrUserNotFound
	}
	return nil
}

// authoriseMessageMutation allows the author, or an admin in the author's
// room, to mutate a message. Messages only live in their author's room, so
// room scope is already established by the lookup.
func authoriseMessageMutation(caller *user.User, m *message.Message, denied *apierrors.Error) error {
	if caller.ID == m.UserID {
		return nil
	}
	if caller.Role == user.RoleAdmin {
		return nil
	}
	return denied
}

// resolveAttachments replaces the sanitized attachment ids with the full
// records, verifying each is owned by ownerID.
func (rs *roomState) resolveAttachments(content *message.Content, ownerID uuid.UUID) error {
	if len(content.AttachmentIDs) == 0 {
		return nil
	}
	resolved := make([]attachment.Attachment, 0, len(content.AttachmentIDs))
	for _, raw := range content.AttachmentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apierrors.ErrInvalidAttachmentIDs
		}
		a, ok := rs.attachments[id]
		if !ok || a.UserID != ownerID {
			return apierrors.ErrInvalidAttachmentIDs
		}
		resolved = append(resolved, *a)
	}
	content.Attachments = resolved
	return nil
}
