package session

import (
	"context"
	"fmt"
	"time"

	"collabedge/internal/document"
	apperrors "collabedge/internal/errors"
	"collabedge/internal/transport"
)

// ApplyLocalEdit records a user edit: the in-memory copy is updated
// synchronously, the local store is mirrored at once, the trailing debounce
// timer is reset, and the raw edit is broadcast to every attached channel
// without waiting for the save.
func (s *Session) ApplyLocalEdit(docID, content, imageDataURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.findLocked(docID)
	if doc == nil {
		return apperrors.NotFound("Document not found", nil)
	}

	doc.Content = content
	if imageDataURL != "" {
		doc.ImageDataURL = imageDataURL
		doc.PendingImageUpload = true
	}
	s.mutations++

	if s.states[doc.ID] == document.StatePersisted {
		s.states[doc.ID] = document.StatePendingUpdate
	}

	// Mirror immediately: full snapshot plus the single-document fast path.
	s.mirrorLocked()
	if err := s.store.ForceSaveDocument(s.roomID, doc); err != nil {
		s.log.Warn().Err(err).Str("doc", doc.ID).Msg("single-document mirror failed")
	}

	s.armTimerLocked(doc.ID)

	s.broadcastLocked(transport.Envelope{
		Type:         transport.KindDocumentUpdate,
		DocumentID:   doc.ID,
		Content:      doc.Content,
		ImageDataURL: doc.ImageDataURL,
	})

	return nil
}

// AddDocument opens a new document with a provisional identifier and kicks
// off a background create. The per-room cap and name uniqueness are
// enforced locally, with no backend round-trip.
func (s *Session) AddDocument(name string, t document.Type) (*document.Document, error) {
	if !t.Valid() {
		return nil, apperrors.Validation("Unknown document type", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.docs) >= s.maxDocs {
		return nil, apperrors.LimitExceeded("Room document limit reached")
	}
	if name == "" {
		name = s.uniqueNameLocked(document.DefaultName(t))
	} else if s.nameInUseLocked(name, "") {
		return nil, apperrors.Conflict("A document with this name is already open", nil)
	}

	doc := &document.Document{
		ID:      document.NewProvisionalID(),
		Name:    name,
		Type:    t,
		Content: document.TemplateFor(t),
	}
	s.docs = append(s.docs, doc)
	s.states[doc.ID] = document.StateLocalOnly
	s.activeID = doc.ID
	s.mutations++

	s.mirrorLocked()
	s.storeRoomStateLocked()
	s.scheduleCreateLocked(doc.ID)

	return doc.Clone(), nil
}

// RenameDocument replaces the display name and propagates it.
func (s *Session) RenameDocument(docID, name string) error {
	if name == "" {
		return apperrors.Validation("Name cannot be empty", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.findLocked(docID)
	if doc == nil {
		return apperrors.NotFound("Document not found", nil)
	}
	if s.nameInUseLocked(name, doc.ID) {
		return apperrors.Conflict("A document with this name is already open", nil)
	}

	doc.Name = name
	s.mutations++
	if s.states[doc.ID] == document.StatePersisted {
		s.states[doc.ID] = document.StatePendingUpdate
	}

	s.mirrorLocked()
	s.armTimerLocked(doc.ID)

	s.broadcastLocked(transport.Envelope{
		Type:       transport.KindDocumentRename,
		DocumentID: doc.ID,
		Name:       name,
	})

	return nil
}

// DeleteDocument closes a document locally, notifies peers and removes it
// on the backend. The last remaining document of a room cannot be deleted.
func (s *Session) DeleteDocument(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.findLocked(docID)
	if doc == nil {
		return apperrors.NotFound("Document not found", nil)
	}
	if len(s.docs) == 1 {
		return apperrors.Validation("Cannot delete the last document in a room", nil)
	}

	s.removeLocked(docID)
	s.mutations++
	s.mirrorLocked()
	s.storeRoomStateLocked()

	s.broadcastLocked(transport.Envelope{
		Type:       transport.KindDocumentDelete,
		DocumentID: docID,
	})

	if !document.IsProvisional(docID) {
		roomID := s.roomID
		s.pool.Submit(func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := s.backend.DeleteDocument(ctx, roomID, docID); err != nil {
				s.log.Warn().Err(err).Str("doc", docID).Msg("backend delete failed")
			}
			return nil
		})
	}

	return nil
}

// nameInUseLocked reports whether another open document already carries
// the name. Remote renames bypass this; their origin already owns the name.
func (s *Session) nameInUseLocked(name, exceptID string) bool {
	for _, d := range s.docs {
		if d.ID != exceptID && d.Name == name {
			return true
		}
	}
	return false
}

// uniqueNameLocked suffixes a default name until it is free, so adding
// several unnamed documents of one type never collides.
func (s *Session) uniqueNameLocked(base string) string {
	name := base
	for n := 2; s.nameInUseLocked(name, ""); n++ {
		name = fmt.Sprintf("%s (%d)", base, n)
	}
	return name
}

// removeLocked drops a document from the open set, stops its timer and
// reassigns the active tab to the first remaining document if needed.
func (s *Session) removeLocked(docID string) {
	for i, d := range s.docs {
		if d.ID == docID {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			break
		}
	}
	if t := s.timers[docID]; t != nil {
		t.Stop()
		delete(s.timers, docID)
	}
	delete(s.states, docID)
	if s.activeID == docID && len(s.docs) > 0 {
		s.activeID = s.docs[0].ID
	}
}

// armTimerLocked resets the trailing debounce for a document. Only the
// content present when the timer finally fires is ever sent.
func (s *Session) armTimerLocked(docID string) {
	if s.closed {
		return
	}
	if t := s.timers[docID]; t != nil {
		t.Stop()
	}
	s.timers[docID] = time.AfterFunc(s.debounce, func() {
		s.flush(docID)
	})
}

// scheduleCreateLocked submits an immediate background create for a
// provisional document. Failure is tolerated; the document stays local.
func (s *Session) scheduleCreateLocked(docID string) {
	s.pool.Submit(func(ctx context.Context) error {
		return s.guardSave(func() error {
			return s.saveDocument(ctx, docID)
		})
	})
}

// OnExternalChange merges a snapshot rewritten by another process on this
// device. Merges are throttled and only applied where content actually
// differs, the same loop breaker used for remote echoes.
func (s *Session) OnExternalChange() {
	if !s.crosstab.Allow() {
		return
	}
	snapshot := s.store.GetDocuments(s.roomID)
	if snapshot == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ext := range snapshot {
		cur := s.findLocked(ext.ID)
		if cur == nil {
			added := ext.Clone()
			s.docs = append(s.docs, added)
			if document.IsProvisional(added.ID) {
				s.states[added.ID] = document.StateLocalOnly
			} else {
				s.states[added.ID] = document.StatePersisted
			}
			s.mutations++
			continue
		}
		if cur.Content == ext.Content && cur.ImageDataURL == ext.ImageDataURL && cur.Name == ext.Name {
			continue
		}
		cur.Content = ext.Content
		cur.ImageDataURL = ext.ImageDataURL
		cur.Name = ext.Name
		s.mutations++
	}
}
