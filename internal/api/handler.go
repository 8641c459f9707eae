// Package api exposes the chat service as a flat RPC surface under /api.
// Mutating operations use POST with JSON bodies, readers use GET with query
// parameters, and removeAttachment uses DELETE. Tokens travel in the
// Authorization header. Service errors surface as HTTP 400 with the stable
// tag; anything unexpected is a 500 with the unknown-error tag.
package api

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/httputil"
	"github.com/chitter-chat/chitter-server/internal/media"
	"github.com/chitter-chat/chitter-server/internal/message"
)

// Handler serves every /api endpoint over one chat.Service.
type Handler struct {
	svc            chat.Service
	files          media.Store
	validate       *validator.Validate
	policy         *bluemonday.Policy
	maxUploadBytes int64
	shutdownToken  string
	shutdown       func()
	log            zerolog.Logger
}

// New creates the API handler. shutdown is invoked asynchronously when the
// shutdown endpoint is hit with the configured token; a nil func disables the
// endpoint together with an empty token.
func New(svc chat.Service, files media.Store, maxUploadBytes int64, shutdownToken string, shutdown func(), logger zerolog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		files:          files,
		validate:       validator.New(),
		policy:         bluemonday.StrictPolicy(),
		maxUploadBytes: maxUploadBytes,
		shutdownToken:  shutdownToken,
		shutdown:       shutdown,
		log:            logger,
	}
}

// Register mounts every endpoint on the app.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/createRoomAndAdmin", h.CreateRoomAndAdmin)
	api.Post("/updateRoom", h.UpdateRoom)
	api.Get("/getRoom", h.GetRoom)

	api.Post("/createInviteCode", h.CreateInviteCode)
	api.Post("/createUserFromInviteCode", h.CreateUserFromInviteCode)
	api.Post("/removeUser", h.RemoveUser)
	api.Post("/updateUser", h.UpdateUser)
	api.Post("/setUserRole", h.SetUserRole)
	api.Get("/getUsers", h.GetUsers)
	api.Get("/getUser", h.GetUser)

	api.Post("/createTransferBundle", h.CreateTransferBundle)
	api.Post("/getTransferBundleFromCode", h.GetTransferBundleFromCode)

	api.Post("/createMessage", h.CreateMessage)
	api.Post("/removeMessage", h.RemoveMessage)
	api.Post("/editMessage", h.EditMessage)
	api.Get("/getMessages", h.GetMessages)

	api.Post("/createChannel", h.CreateChannel)
	api.Post("/removeChannel", h.RemoveChannel)
	api.Post("/updateChannel", h.UpdateChannel)
	api.Get("/getChannels", h.GetChannels)
	api.Get("/getChannel", h.GetChannel)
	api.Post("/addUserToChannel", h.AddUserToChannel)
	api.Post("/removeUserFromChannel", h.RemoveUserFromChannel)

	api.Post("/uploadAttachment", h.UploadAttachment)
	api.Delete("/removeAttachment", h.RemoveAttachment)

	api.Post("/shutdown", h.Shutdown)
}

// token returns the raw Authorization header value.
func token(c fiber.Ctx) string {
	return c.Get("Authorization")
}

// bind decodes and validates a JSON body, answering the response itself on
// failure. The boolean reports whether the handler should continue.
func (h *Handler) bind(c fiber.Ctx, body any) bool {
	if err := c.Bind().Body(body); err != nil {
		_ = httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
		return false
	}
	if err := h.validate.Struct(body); err != nil {
		_ = httputil.FailValidation(c, validationDetails(err))
		return false
	}
	return true
}

// serviceErr maps a service error onto the wire: tagged errors are 400 with
// the tag, anything else is logged and becomes a 500 unknown error.
func (h *Handler) serviceErr(c fiber.Ctx, op string, err error) error {
	if tagged, ok := errors.AsType[*apierrors.Error](err); ok {
		return httputil.Fail(c, fiber.StatusBadRequest, tagged.Tag)
	}
	h.log.Error().Err(err).Str("handler", op).Msg("unhandled service error")
	return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.ErrUnknownServerError.Tag)
}

// validationDetails flattens validator errors into field-level strings.
func validationDetails(err error) []string {
	verrs, ok := errors.AsType[validator.ValidationErrors](err)
	if !ok {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s failed validation on %q", fe.Field(), fe.Tag()))
	}
	return details
}

// parseUUID parses a required uuid field.
func parseUUID(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	return id, err == nil
}

// optionalUUID parses a nilable uuid field; nil stays nil.
func optionalUUID(s *string) (*uuid.UUID, bool) {
	if s == nil {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// queryLimit reads and bounds the limit parameter. Absent means the service
// default; anything present must parse and fall inside [1, MaxLimit].
func queryLimit(c fiber.Ctx) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > message.MaxLimit {
		return 0, false
	}
	return n, true
}

// scrub strips markup from a profile text field.
func (h *Handler) scrub(s string) string {
	return h.policy.Sanitize(s)
}

// scrubPtr strips markup from an optional profile text field.
func (h *Handler) scrubPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := h.policy.Sanitize(*s)
	return &clean
}
