package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/httputil"
)

type createMessageRequest struct {
	Content             any     `json:"content" validate:"required"`
	ChannelID           *string `json:"channelId" validate:"omitempty,uuid"`
	DirectMessageUserID *string `json:"directMessageUserId" validate:"omitempty,uuid"`
}

// CreateMessage handles POST /api/createMessage. Content is forwarded as
// decoded JSON; the sanitizer owns its validation.
func (h *Handler) CreateMessage(c fiber.Ctx) error {
	var body createMessageRequest
	if !h.bind(c, &body) {
		return nil
	}
	channelID, ok := optionalUUID(body.ChannelID)
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}
	dmUserID, ok := optionalUUID(body.DirectMessageUserID)
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	id, err := h.svc.CreateMessage(c, token(c), body.Content, channelID, dmUserID)
	if err != nil {
		return h.serviceErr(c, "createMessage", err)
	}
	return httputil.Success(c, fiber.Map{"messageId": id})
}

type removeMessageRequest struct {
	MessageID int64 `json:"messageId" validate:"required,min=1"`
}

// RemoveMessage handles POST /api/removeMessage.
func (h *Handler) RemoveMessage(c fiber.Ctx) error {
	var body removeMessageRequest
	if !h.bind(c, &body) {
		return nil
	}

	if err := h.svc.RemoveMessage(c, token(c), body.MessageID); err != nil {
		return h.serviceErr(c, "removeMessage", err)
	}
	return httputil.Success(c, nil)
}

type editMessageRequest struct {
	MessageID int64 `json:"messageId" validate:"required,min=1"`
	Content   any   `json:"content" validate:"required"`
}

// EditMessage handles POST /api/editMessage.
func (h *Handler) EditMessage(c fiber.Ctx) error {
	var body editMessageRequest
	if !h.bind(c, &body) {
		return nil
	}

	if err := h.svc.EditMessage(c, token(c), body.MessageID, body.Content); err != nil {
		return h.serviceErr(c, "editMessage", err)
	}
	return httputil.Success(c, nil)
}

// GetMessages handles GET /api/getMessages with channelId or
// directMessageUserId, an optional cursor, and an optional limit in [1, 100].
func (h *Handler) GetMessages(c fiber.Ctx) error {
	var channelID, dmUserID *uuid.UUID
	if raw := c.Query("channelId"); raw != "" {
		id, ok := parseUUID(raw)
		if !ok {
			return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
		}
		channelID = &id
	}
	if raw := c.Query("directMessageUserId"); raw != "" {
		id, ok := parseUUID(raw)
		if !ok {
			return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
		}
		dmUserID = &id
	}

	var cursor *int64
	if raw := c.Query("cursor"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
		}
		cursor = &n
	}
	limit, ok := queryLimit(c)
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	messages, err := h.svc.GetMessages(c, token(c), channelID, dmUserID, cursor, limit)
	if err != nil {
		return h.serviceErr(c, "getMessages", err)
	}
	return httputil.Success(c, messages)
}
