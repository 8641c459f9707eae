package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/chat"
)

const attachmentColumns = "id, type, user_id, file_name, path, width, height, created_at"

// UploadAttachment records an upload owned by the caller. The bytes are
// already on disk at params.Path; this only persists the reference.
func (s *Store) UploadAttachment(ctx context.Context, token string, params chat.UploadParams) (*attachment.Attachment, error) {
	caller, err := s.resolveToken(ctx, s.pool, token, apierrors.ErrInvalidToken)
	if err != nil {
		return nil, s.fail("uploadAttachment", err, apierrors.ErrCouldNotUploadAttachment)
	}
	if !params.Type.Valid() {
		return nil, apierrors.ErrInvalidFileType
	}

	created := &attachment.Attachment{
		ID:       uuid.New(),
		Type:     params.Type,
		UserID:   caller.ID,
		FileName: params.FileName,
		Path:     params.Path,
		Width:    params.Width,
		Height:   params.Height,
	}
	var createdAt time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO attachments (id, type, user_id, file_name, path, width, height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		created.ID, created.Type, caller.ID, params.FileName, params.Path, params.Width, params.Height,
	).Scan(&createdAt)
	if err != nil {
		return nil, s.fail("uploadAttachment", err, apierrors.ErrCouldNotUploadAttachment)
	}
	created.CreatedAt = createdAt.UnixMilli()
	return created, nil
}

// RemoveAttachment deletes an attachment the caller owns, then unlinks the
// stored file. A file already gone from disk does not fail the call.
func (s *Store) RemoveAttachment(ctx context.Context, token string, attachmentID uuid.UUID) error {
	caller, err := s.resolveToken(ctx, s.pool, token, apierrors.ErrInvalidToken)
	if err != nil {
		return s.fail("removeAttachment", err, apierrors.ErrCouldNotRemoveAttachment)
	}

	var path string
	err = s.pool.QueryRow(ctx,
		"DELETE FROM attachments WHERE id = $1 AND user_id = $2 RETURNING path",
		attachmentID, caller.ID,
	).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierrors.ErrAttachmentNotFound
	}
	if err != nil {
		return s.fail("removeAttachment", err, apierrors.ErrCouldNotRemoveAttachment)
	}

	if err := s.files.Delete(ctx, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("attachment row removed but file unlink failed")
	}
	return nil
}

// scanAttachment scans a single attachment row.
func scanAttachment(row pgx.Row) (*attachment.Attachment, error) {
	var a attachment.Attachment
	var createdAt time.Time
	err := row.Scan(&a.ID, &a.Type, &a.UserID, &a.FileName, &a.Path, &a.Width, &a.Height, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = createdAt.UnixMilli()
	return &a, nil
}
