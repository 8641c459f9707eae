package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/message"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateMessage posts a sanitized message to exactly one of a channel or a
// direct-message counterpart in the caller's room.
func (s *Store) CreateMessage(ctx context.Context, userToken string, content any, channelID, directMessageUserID *uuid.UUID) (int64, error) {
	if channelID != nil && directMessageUserID != nil {
		return 0, apierrors.ErrMessageCannotTargetBoth
	}
	if channelID == nil && directMessageUserID == nil {
		return 0, apierrors.ErrInvalidParameters
	}

	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return 0, s.fail("createMessage", err, apierrors.ErrCouldNotCreateMessage)
	}

	sanitized, err := message.Sanitize(content)
	if err != nil {
		return 0, err
	}

	if err := s.checkMessageTarget(ctx, caller, channelID, directMessageUserID); err != nil {
		return 0, s.fail("createMessage", err, apierrors.ErrCouldNotCreateMessage)
	}

	if err := s.resolveAttachments(ctx, sanitized, caller.ID); err != nil {
		return 0, s.fail("createMessage", err, apierrors.ErrCouldNotCreateMessage)
	}

	payload, err := json.Marshal(sanitized)
	if err != nil {
		return 0, s.fail("createMessage", err, apierrors.ErrCouldNotCreateMessage)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO messages (user_id, content, channel_id, direct_message_user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		caller.ID, payload, channelID, directMessageUserID,
	).Scan(&id)
	if err != nil {
		return 0, s.fail("createMessage", err, apierrors.ErrCouldNotCreateMessage)
	}
	return id, nil
}

// RemoveMessage deletes a message if the caller authored it or is an admin in
// the author's room.
func (s *Store) RemoveMessage(ctx context.Context, userToken string, messageID int64) error {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return s.fail("removeMessage", err, apierrors.ErrCouldNotRemoveMessage)
	}

	if err := s.authoriseMessageMutation(ctx, caller, messageID, apierrors.ErrUserNotAuthorizedToDeleteThisMessage); err != nil {
		return s.fail("removeMessage", err, apierrors.ErrCouldNotRemoveMessage)
	}

	_, err = s.pool.Exec(ctx, "DELETE FROM messages WHERE id = $1", messageID)
	if err != nil {
		return s.fail("removeMessage", err, apierrors.ErrCouldNotRemoveMessage)
	}
	return nil
}

// EditMessage replaces a message's content under the same authorization as
// RemoveMessage. Content is re-sanitized and attachment ids re-resolved; the
// edited flag is set.
func (s *Store) EditMessage(ctx context.Context, userToken string, messageID int64, content any) error {
	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return s.fail("editMessage", err, apierrors.ErrCouldNotEditMessage)
	}

	sanitized, err := message.Sanitize(content)
	if err != nil {
		return err
	}

	if err := s.authoriseMessageMutation(ctx, caller, messageID, apierrors.ErrUserNotAuthorizedToEditThisMessage); err != nil {
		return s.fail("editMessage", err, apierrors.ErrCouldNotEditMessage)
	}

	if err := s.resolveAttachments(ctx, sanitized, caller.ID); err != nil {
		return s.fail("editMessage", err, apierrors.ErrCouldNotEditMessage)
	}

	payload, err := json.Marshal(sanitized)
	if err != nil {
		return s.fail("editMessage", err, apierrors.ErrCouldNotEditMessage)
	}

	_, err = s.pool.Exec(ctx,
		"UPDATE messages SET content = $1, edited = true WHERE id = $2",
		payload, messageID,
	)
	if err != nil {
		return s.fail("editMessage", err, apierrors.ErrCouldNotEditMessage)
	}
	return nil
}

// GetMessages pages one message stream in descending id order. The cursor is
// an exclusive upper bound, so pages taken under concurrent appends never
// interleave new messages into older pages.
func (s *Store) GetMessages(ctx context.Context, userToken string, channelID, directMessageUserID *uuid.UUID, cursor *int64, limit int) ([]message.Message, error) {
	if channelID != nil && directMessageUserID != nil {
		return nil, apierrors.ErrMessageCannotTargetBoth
	}
	if channelID == nil && directMessageUserID == nil {
		return nil, apierrors.ErrEitherChannelOrDirectUserRequired
	}

	caller, err := s.resolveToken(ctx, s.pool, userToken, apierrors.ErrInvalidUserToken)
	if err != nil {
		return nil, s.fail("getMessages", err, apierrors.ErrCouldNotGetMessages)
	}

	if err := s.checkMessageTarget(ctx, caller, channelID, directMessageUserID); err != nil {
		return nil, s.fail("getMessages", err, apierrors.ErrCouldNotGetMessages)
	}

	limit = message.ClampLimit(limit)

	const selectColumns = `m.id, m.user_id, m.created_at, m.content, m.channel_id, m.direct_message_user_id, m.edited,
	u.id, u.room_id, u.created_at, u.display_name, u.description, u.avatar_id, u.role`
	const baseJoin = "FROM messages m JOIN users u ON u.id = m.user_id"

	var rows pgx.Rows
	if channelID != nil {
		if cursor != nil {
			rows, err = s.pool.Query(ctx, fmt.Sprintf(
				"SELECT %s %s WHERE m.channel_id = $1 AND m.id < $2 ORDER BY m.id DESC LIMIT $3",
				selectColumns, baseJoin), *channelID, *cursor, limit)
		} else {
			rows, err = s.pool.Query(ctx, fmt.Sprintf(
				"SELECT %s %s WHERE m.channel_id = $1 ORDER BY m.id DESC LIMIT $2",
				selectColumns, baseJoin), *channelID, limit)
		}
	} else {
		const dmFilter = `((m.user_id = $1 AND m.direct_message_user_id = $2)
		 OR (m.user_id = $2 AND m.direct_message_user_id = $1))`
		if cursor != nil {
			rows, err = s.pool.Query(ctx, fmt.Sprintf(
				"SELECT %s %s WHERE %s AND m.id < $3 ORDER BY m.id DESC LIMIT $4",
				selectColumns, baseJoin, dmFilter), caller.ID, *directMessageUserID, *cursor, limit)
		} else {
			rows, err = s.pool.Query(ctx, fmt.Sprintf(
				"SELECT %s %s WHERE %s ORDER BY m.id DESC LIMIT $3",
				selectColumns, baseJoin, dmFilter), caller.ID, *directMessageUserID, limit)
		}
	}
	if err != nil {
		return nil, s.fail("getMessages", err, apierrors.ErrCouldNotGetMessages)
	}
	defer rows.Close()

	var messages []message.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, s.fail("getMessages", err, apierrors.ErrCouldNotGetMessages)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("getMessages", err, apierrors.ErrCouldNotGetMessages)
	}
	return messages, nil
}

// checkMessageTarget verifies that the selected stream is visible to the
// caller: the channel is in the caller's room (and the caller is a member
// when it is private), or the direct counterpart shares the caller's room.
func (s *Store) checkMessageTarget(ctx context.Context, caller *user.User, channelID, directMessageUserID *uuid.UUID) error {
	if channelID != nil {
		var isPrivate bool
		err := s.pool.QueryRow(ctx,
			"SELECT is_private FROM channels WHERE id = $1 AND room_id = $2",
			*channelID, caller.RoomID,
		).Scan(&isPrivate)
		if errors.Is(err, pgx.ErrNoRows) {
			return apierrors.ErrChannelNotFoundInUsersRoom
		}
		if err != nil {
			return err
		}
		if isPrivate {
			member, err := s.isMember(ctx, *channelID, caller.ID)
			if err != nil {
				return err
			}
			if !member {
				return apierrors.ErrUserIsNotMemberOfPrivateChannel
			}
		}
		return nil
	}

	return s.requireUserInRoomTagged(ctx, *directMessageUserID, caller.RoomID, apierrors.ErrUserNotFound)
}

// requireUserInRoomTagged is requireUserInRoom with a caller-chosen tag.
func (s *Store) requireUserInRoomTagged(ctx context.Context, userID, roomID uuid.UUID, tag *apierrors.Error) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND room_id = $2)",
		userID, roomID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return tag
	}
	return nil
}

// authoriseMessageMutation allows the author, or an admin in the author's
// room, to mutate a message. The author's room is looked up through the user
// record, never trusted from the message row alone.
func (s *Store) authoriseMessageMutation(ctx context.Context, caller *user.User, messageID int64, denied *apierrors.Error) error {
	var authorID, authorRoomID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT m.user_id, u.room_id FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.id = $1`,
		messageID,
	).Scan(&authorID, &authorRoomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierrors.ErrMessageNotFound
	}
	if err != nil {
		return err
	}

	if caller.ID == authorID {
		return nil
	}
	if caller.Role == user.RoleAdmin && caller.RoomID == authorRoomID {
		return nil
	}
	return denied
}

// resolveAttachments replaces the sanitized attachment ids with the full
// records, verifying each is owned by ownerID.
func (s *Store) resolveAttachments(ctx context.Context, content *message.Content, ownerID uuid.UUID) error {
	if len(content.AttachmentIDs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(content.AttachmentIDs))
	for _, raw := range content.AttachmentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apierrors.ErrInvalidAttachmentIDs
		}
		ids = append(ids, id)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE id = ANY($1) AND user_id = $2",
		ids, ownerID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	resolved := make([]attachment.Attachment, 0, len(ids))
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return err
		}
		resolved = append(resolved, *a)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(resolved) != len(ids) {
		return apierrors.ErrInvalidAttachmentIDs
	}
	content.Attachments = resolved
	return nil
}

// scanMessage scans a message row with its joined author.
func scanMessage(row pgx.Row) (*message.Message, error) {
	var msg message.Message
	var author user.User
	var raw []byte
	var msgCreatedAt, authorCreatedAt time.Time
	err := row.Scan(
		&msg.ID, &msg.UserID, &msgCreatedAt, &raw, &msg.ChannelID, &msg.DirectMessageUserID, &msg.Edited,
		&author.ID, &author.RoomID, &authorCreatedAt, &author.DisplayName, &author.Description,
		&author.AvatarAttachmentID, &author.Role,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &msg.Content); err != nil {
		return nil, fmt.Errorf("decode message content: %w", err)
	}
	msg.CreatedAt = msgCreatedAt.UnixMilli()
	author.CreatedAt = authorCreatedAt.UnixMilli()
	msg.Author = &author
	return &msg, nil
}
