package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
	"github.com/chitter-chat/chitter-server/internal/chat"
)

// UploadAttachment records an upload owned by the caller. The bytes are
// already on disk at params.Path; this only persists the reference.
func (s *Store) UploadAttachment(_ context.Context, token string, params chat.UploadParams) (*attachment.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, caller, err := s.resolveToken(token, apierrors.ErrInvalidToken)
	if err != nil {
		return nil, err
	}
	if !params.Type.Valid() {
		return nil, apierrors.ErrInvalidFileType
	}

	created := attachment.Attachment{
		ID:        uuid.New(),
		Type:      params.Type,
		UserID:    caller.ID,
		FileName:  params.FileName,
		Path:      params.Path,
		Width:     params.Width,
		Height:    params.Height,
		CreatedAt: s.now().UnixMilli(),
	}
	stored := created
	rs.attachments[created.ID] = &stored
	return &created, nil
}

// RemoveAttachment deletes an attachment the caller owns, then unlinks the
// stored file. A file already gone from disk does not fail the call.
func (s *Store) RemoveAttachment(ctx context.Context, token string, attachmentID uuid.UUID) error {
	s.mu.Lock()

	rs, caller, err := s.resolveToken(token, apierrors.ErrInvalidToken)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	a, ok := rs.attachments[attachmentID]
	if !ok || a.UserID != caller.ID {
		s.mu.Unlock()
		return apierrors.ErrAttachmentNotFound
	}
	delete(rs.attachments, attachmentID)
	path := a.Path
	s.mu.Unlock()

	if err := s.files.Delete(ctx, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("attachment record removed but file unlink failed")
	}
	return nil
}
