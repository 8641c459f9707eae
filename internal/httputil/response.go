// Package httputil holds the response envelope and request logging shared by
// every endpoint.
package httputil

import (
	"github.com/gofiber/fiber/v3"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
)

// SuccessResponse wraps successful API responses.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse wraps failed API responses. Error carries the stable tag;
// ValidationErrors is only present for request-validation failures.
type ErrorResponse struct {
	Success          bool     `json:"success"`
	Error            string   `json:"error"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
}

// Success sends a 200 JSON response with the given data.
func Success(c fiber.Ctx, data any) error {
	return c.JSON(SuccessResponse{Success: true, Data: data})
}

// Fail sends a JSON error response with the given status and tag.
func Fail(c fiber.Ctx, status int, tag string) error {
	return c.Status(status).JSON(ErrorResponse{Success: false, Error: tag})
}

// FailValidation sends a 400 response carrying per-field validation details
// under the generic invalid-parameters tag.
func FailValidation(c fiber.Ctx, details []string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success:          false,
		Error:            apierrors.ErrInvalidParameters.Tag,
		ValidationErrors: details,
	})
}
