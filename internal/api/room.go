package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/httputil"
)

type createRoomAndAdminRequest struct {
	RoomName        string `json:"roomName" validate:"required,max=100"`
	AdminName       string `json:"adminName" validate:"required,max=100"`
	AdminInviteOnly bool   `json:"adminInviteOnly"`
}

// CreateRoomAndAdmin handles POST /api/createRoomAndAdmin. The response is the
// only place the admin token is ever sent for this user.
func (h *Handler) CreateRoomAndAdmin(c fiber.Ctx) error {
	var body createRoomAndAdminRequest
	if !h.bind(c, &body) {
		return nil
	}

	result, err := h.svc.CreateRoomAndAdmin(c, h.scrub(body.RoomName), h.scrub(body.AdminName), body.AdminInviteOnly)
	if err != nil {
		return h.serviceErr(c, "createRoomAndAdmin", err)
	}
	return httputil.Success(c, result)
}

type updateRoomRequest struct {
	DisplayName     string  `json:"displayName" validate:"required,max=100"`
	AdminInviteOnly bool    `json:"adminInviteOnly"`
	Description     *string `json:"description" validate:"omitempty,max=1024"`
	LogoID          *string `json:"logoId" validate:"omitempty,uuid"`
}

// UpdateRoom handles POST /api/updateRoom.
func (h *Handler) UpdateRoom(c fiber.Ctx) error {
	var body updateRoomRequest
	if !h.bind(c, &body) {
		return nil
	}
	logoID, ok := optionalUUID(body.LogoID)
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	err := h.svc.UpdateRoom(c, token(c), chat.UpdateRoomParams{
		DisplayName:     h.scrub(body.DisplayName),
		AdminInviteOnly: body.AdminInviteOnly,
		Description:     h.scrubPtr(body.Description),
		LogoID:          logoID,
	})
	if err != nil {
		return h.serviceErr(c, "updateRoom", err)
	}
	return httputil.Success(c, nil)
}

// GetRoom handles GET /api/getRoom?roomId=.
func (h *Handler) GetRoom(c fiber.Ctx) error {
	roomID, ok := parseUUID(c.Query("roomId"))
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	r, err := h.svc.GetRoom(c, token(c), roomID)
	if err != nil {
		return h.serviceErr(c, "getRoom", err)
	}
	return httputil.Success(c, r)
}
