package api

import (
	"errors"
	"image"
	// Register standard image decoders for dimension detection.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/chat"
	"github.com/chitter-chat/chitter-server/internal/httputil"
	"github.com/chitter-chat/chitter-server/internal/media"
)

// UploadAttachment handles POST /api/uploadAttachment with multipart field
// "file". The bytes land on disk under a random-id filename that keeps the
// original extension; any downstream failure unlinks them again.
func (h *Handler) UploadAttachment(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidParameters.Tag)
	}
	if fh.Size > h.maxUploadBytes {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidFileType.Tag)
	}

	contentType := media.DetectContentType(fh.Header.Get("Content-Type"), fh.Filename)
	fileType, err := media.Categorise(contentType)
	if errors.Is(err, media.ErrUnsupportedContent) {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidFileType.Tag)
	}
	if err != nil {
		return h.serviceErr(c, "uploadAttachment", err)
	}

	f, err := fh.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open uploaded file")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.ErrUnknownServerError.Tag)
	}
	defer func() { _ = f.Close() }()

	// Image dimensions are best-effort; a file that does not decode is still
	// stored, just without width and height.
	var width, height *int
	if fileType == attachment.TypeImage {
		if cfg, _, decErr := image.DecodeConfig(f); decErr == nil {
			w, hgt := cfg.Width, cfg.Height
			width, height = &w, &hgt
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			h.log.Error().Err(err).Msg("failed to rewind uploaded file")
			return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.ErrUnknownServerError.Tag)
		}
	}

	key := uuid.New().String() + media.ExtensionFromFilename(fh.Filename)
	if err := h.files.Put(c, key, f); err != nil {
		h.log.Error().Err(err).Msg("failed to write upload to storage")
		return httputil.Fail(c, fiber.StatusInternalServerError, apierrors.ErrUnknownServerError.Tag)
	}

	a, err := h.svc.UploadAttachment(c, token(c), chat.UploadParams{
		Type:     fileType,
		FileName: fh.Filename,
		Path:     key,
		Width:    width,
		Height:   height,
	})
	if err != nil {
		if delErr := h.files.Delete(c, key); delErr != nil {
			h.log.Warn().Err(delErr).Str("key", key).Msg("failed to unlink rejected upload")
		}
		return h.serviceErr(c, "uploadAttachment", err)
	}
	return httputil.Success(c, a)
}

type removeAttachmentRequest struct {
	AttachmentID string `json:"attachmentId" validate:"required,uuid"`
}

// RemoveAttachment handles DELETE /api/removeAttachment.
func (h *Handler) RemoveAttachment(c fiber.Ctx) error {
	var body removeAttachmentRequest
	if !h.bind(c, &body) {
		return nil
	}
	attachmentID, _ := parseUUID(body.AttachmentID)

	if err := h.svc.RemoveAttachment(c, token(c), attachmentID); err != nil {
		return h.serviceErr(c, "removeAttachment", err)
	}
	return httputil.Success(c, nil)
}

// Shutdown handles POST /api/shutdown. The Authorization header must match
// the configured shutdown token; an unset token disables the endpoint.
func (h *Handler) Shutdown(c fiber.Ctx) error {
	if h.shutdownToken == "" || h.shutdown == nil || token(c) != h.shutdownToken {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ErrInvalidToken.Tag)
	}
	// Shut down after the response is written.
	go h.shutdown()
	return httputil.Success(c, fiber.Map{"shuttingDown": true})
}
