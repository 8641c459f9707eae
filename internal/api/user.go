package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/httputil"
	"github.com/chitter-chat/chitter-server/internal/user"
)

// CreateInviteCode handles POST /api/createInviteCode. The body is empty; the
// caller is identified by the Authorization header alone.
func (h *Handler) CreateInviteCode(c fiber.Ctx) error {
	code, err := h.svc.CreateInviteCode(c, token(c))
	if err != nil {
		return h.serviceErr(c, "createInviteCode", err)
	}
	return httputil.Success(c, fiber.Map{"inviteCode": code})
}

type createUserFromInviteCodeRequest struct {
	InviteCode  string `json:"inviteCode" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
}

// CreateUserFromInviteCode handles POST /api/createUserFromInviteCode. The
// response carries the new participant's token.
func (h *Handler) CreateUserFromInviteCode(c fiber.Ctx) error {
	var body createUserFromInviteCodeRequest
	if !h.bind(c, &body) {
		return nil
	}

	u, err := h.svc.CreateUserFromInviteCode(c, body.InviteCode, h.scrub(body.DisplayName))
	if err != nil {
		return h.serviceErr(c, "createUserFromInviteCode", err)
	}
	return httputil.Success(c, u)
}

type removeUserRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// RemoveUser handles POST /api/removeUser.
func (h *Handler) RemoveUser(c fiber.Ctx) error {
	var body removeUserRequest
	if !h.bind(c, &body) {
		return nil
	}
	userID, _ := parseUUID(body.UserID)

	if err := h.svc.RemoveUser(c, token(c), userID); err != nil {
		return h.serviceErr(c, "removeUser", err)
	}
	return httputil.Success(c, nil)
}

type updateUserRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
	Avatar      *string `json:"avatar" validate:"omitempty,uuid"`
}

// UpdateUser handles POST /api/updateUser.
func (h *Handler) UpdateUser(c fiber.Ctx) error {
	var body updateUserRequest
	if !h.bind(c, &body) {
		return nil
	}
	avatar, ok := optionalUUID(body.Avatar)
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	err := h.svc.UpdateUser(c, token(c), chat.UpdateUserParams{
		DisplayName: h.scrubPtr(body.DisplayName),
		Description: h.scrubPtr(body.Description),
		Avatar:      avatar,
	})
	if err != nil {
		return h.serviceErr(c, "updateUser", err)
	}
	return httputil.Success(c, nil)
}

type setUserRoleRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=admin participant"`
}

// SetUserRole handles POST /api/setUserRole.
func (h *Handler) SetUserRole(c fiber.Ctx) error {
	var body setUserRoleRequest
	if !h.bind(c, &body) {
		return nil
	}
	userID, _ := parseUUID(body.UserID)

	if err := h.svc.SetUserRole(c, token(c), userID, user.Role(body.Role)); err != nil {
		return h.serviceErr(c, "setUserRole", err)
	}
	return httputil.Success(c, nil)
}

// GetUsers handles GET /api/getUsers?channelId=. Without a channel it lists
// the caller's whole room.
func (h *Handler) GetUsers(c fiber.Ctx) error {
	var channelID *uuid.UUID
	if raw := c.Query("channelId"); raw != "" {
		id, ok := parseUUID(raw)
		if !ok {
			return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
		}
		channelID = &id
	}

	users, err := h.svc.GetUsers(c, token(c), channelID)
	if err != nil {
		return h.serviceErr(c, "getUsers", err)
	}
	return httputil.Success(c, users)
}

// GetUser handles GET /api/getUser?userId=.
func (h *Handler) GetUser(c fiber.Ctx) error {
	userID, ok := parseUUID(c.Query("userId"))
	if !ok {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}

	u, err := h.svc.GetUser(c, token(c), userID)
	if err != nil {
		return h.serviceErr(c, "getUser", err)
	}
	return httputil.Success(c, u)
}

type createTransferBundleRequest struct {
	UserTokens []string `json:"userTokens" validate:"required,min=1"`
}

// CreateTransferBundle handles POST /api/createTransferBundle. No
// Authorization header: possessing the tokens is the proof of control.
func (h *Handler) CreateTransferBundle(c fiber.Ctx) error {
	var body createTransferBundleRequest
	if !h.bind(c, &body) {
		return nil
	}

	code, err := h.svc.CreateTransferBundle(c, body.UserTokens)
	if err != nil {
		return h.serviceErr(c, "createTransferBundle", err)
	}
	return httputil.Success(c, fiber.Map{"transferCode": code})
}

type getTransferBundleFromCodeRequest struct {
	TransferCode string `json:"transferCode" validate:"required"`
}

// GetTransferBundleFromCode handles POST /api/getTransferBundleFromCode. It
// mutates registry state (the code is consumed), hence POST.
func (h *Handler) GetTransferBundleFromCode(c fiber.Ctx) error {
	var body getTransferBundleFromCodeRequest
	if !h.bind(c, &body) {
		return nil
	}

	users, err := h.svc.GetTransferBundleFromCode(c, body.TransferCode)
	if err != nil {
		return h.serviceErr(c, "getTransferBundleFromCode", err)
	}
	return httputil.Success(c, users)
}
