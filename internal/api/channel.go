package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/httputil"
)

type createChannelRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
	IsPrivate   bool   `json:"isPrivate"`
}

// CreateChannel handles POST /api/createChannel.
func (h *Handler) CreateChannel(c fiber.Ctx) error {
	var body createChannelRequest
	if !h.bind(c, &body) {
		return nil
	}

	ch, err := h.svc.CreateChannel(c, token(c), h.scrub(body.DisplayName), body.IsPrivate)
	if err != nil {
		return h.serviceErr(c, "createChannel", err)
	}
	return httputil.Success(c, ch)
}

type removeChannelRequest struct {
	ChannelID string `json:"channelId" validate:"required,uuid"`
}

// RemoveChannel handles POST /api/removeChannel.
func (h *Handler) RemoveChannel(c fiber.Ctx) error {
	var body removeChannelRequest
	if !h.bind(c, &body) {
		return nil
	}
	channelID, _ := parseUUID(body.ChannelID)

	if err := h.svc.RemoveChannel(c, token(c), channelID); err != nil {
		return h.serviceErr(c, "removeChannel", err)
	}
	return httputil.Success(c, nil)
}

type updateChannelRequest struct {
	ChannelID   string  `json:"channelId" validate:"required,uuid"`
	DisplayName *string `json:"displayName" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

// UpdateChannel handles POST /api/updateChannel.
func (h *Handler) UpdateChannel(c fiber.Ctx) error {
	var body updateChannelRequest
	if !h.bind(c, &body) {
		return nil
	}
	channelID, _ := parseUUID(body.ChannelID)

	err := h.svc.UpdateChannel(c, token(c), channelID, chat.UpdateChannelParams{
		DisplayName: h.scrubPtr(body.DisplayName),
		Description: h.scrubPtr(body.Description),
	})
	if err != nil {
		return h.serviceErr(c, "updateChannel", err)
	}
	return httputil.Success(c, nil)
}

// GetChannels handles GET /api/getChannels.
func (h *Handler) GetChannels(c fiber.Ctx) error {
	channels, err := h.svc.GetChannels(c, token(c))
	if err != nil {
		return h.serviceErr(c, "getChannels", err)
	}
	return httputil.Success(c, channels)
}

// GetChannel handles GET /api/getChannel?channelId=.
func (h *Handler) GetChannel(c fiber.Ctx) error {
	channelID, ok := parseUUID(c.Query("channelId"))
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	ch, err := h.svc.GetChannel(c, token(c), channelID)
	if err != nil {
		return h.serviceErr(c, "getChannel", err)
	}
	return httputil.Success(c, ch)
}

type channelMembershipRequest struct {
	UserID    string `json:"userId" validate:"required,uuid"`
	ChannelID string `json:"channelId" validate:"required,uuid"`
}

// AddUserToChannel handles POST /api/addUserToChannel.
func (h *Handler) AddUserToChannel(c fiber.Ctx) error {
	var body channelMembershipRequest
	if !h.bind(c, &body) {
		return nil
	}
	userID, _ := parseUUID(body.UserID)
	channelID, _ := parseUUID(body.ChannelID)

	if err := h.svc.AddUserToChannel(c, token(c), userID, channelID); err != nil {
		return h.serviceErr(c, "addUserToChannel", err)
	}
	return httputil.Success(c, nil)
}

// RemoveUserFromChannel handles POST /api/removeUserFromChannel.
func (h *Handler) RemoveUserFromChannel(c fiber.Ctx) error {
	var body channelMembershipRequest
	if !h.bind(c, &body) {
		return nil
	}
	userID, _ := parseUUID(body.UserID)
	channelID, _ := parseUUID(body.ChannelID)

	if err := h.svc.RemoveUserFromChannel(c, token(c), userID, channelID); err != nil {
		return h.serviceErr(c, "removeUserFromChannel", err)
	}
	return httputil.Success(c, nil)
}
