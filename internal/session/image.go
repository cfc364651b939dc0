package session

import (
	"context"

	"collabedge/internal/document"
	apperrors "collabedge/internal/errors"
)

// UploadImage pushes a binary payload for an image-bearing document to the
// backend. The local copy keeps its data URL either way; on failure the
// document is only flagged as pending upload.
func (s *Session) UploadImage(ctx context.Context, docID, filename string, data []byte) (*document.Document, error) {
	s.mu.Lock()
	doc := s.findLocked(docID)
	if doc == nil {
		s.mu.Unlock()
		return nil, apperrors.NotFound("Document not found", nil)
	}
	if document.IsProvisional(doc.ID) {
		// The document has to exist server-side before an upload can
		// target it.
		doc.PendingImageUpload = true
		s.mirrorLocked()
		s.scheduleCreateLocked(doc.ID)
		s.mu.Unlock()
		return nil, apperrors.Unavailable("Document not persisted yet, upload deferred", nil)
	}
	doc.PendingImageUpload = true
	s.mu.Unlock()

	saved, err := s.backend.UploadImage(ctx, s.roomID, docID, filename, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.findLocked(docID)
	if cur == nil {
		return nil, apperrors.NotFound("Document not found", nil)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("doc", docID).Msg("image upload failed, payload kept local")
		s.mirrorLocked()
		return nil, apperrors.Unavailable("Image upload failed", err)
	}

	cur.ContentType = saved.ContentType
	cur.PendingImageUpload = false
	s.mutations++
	s.mirrorLocked()
	return cur.Clone(), nil
}

// FetchImage proxies the stored binary payload for a document.
func (s *Session) FetchImage(ctx context.Context, docID string) ([]byte, string, error) {
	data, contentType, err := s.backend.FetchImage(ctx, s.roomID, docID)
	if err != nil {
		return nil, "", apperrors.Unavailable("Image fetch failed", err)
	}
	return data, contentType, nil
}
