package session

import (
	"context"
	"fmt"

	"collabedge/internal/document"
)

// flush is the debounce-timer callback: save whatever the document holds
// right now.
func (s *Session) flush(docID string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	_ = s.guardSave(func() error {
		return s.saveDocument(context.Background(), docID)
	})
}

// guardSave is the outermost save handler. A panic anywhere in the save
// pipeline is a data-loss risk, so it is caught here and answered with an
// emergency timestamped snapshot before the error is swallowed.
func (s *Session) guardSave(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("save pipeline panicked, writing emergency backup")
			s.mu.Lock()
			docs := make([]*document.Document, len(s.docs))
			for i, d := range s.docs {
				docs[i] = d.Clone()
			}
			s.mu.Unlock()
			if berr := s.store.StoreEmergencyBackup(s.roomID, docs); berr != nil {
				s.log.Error().Err(berr).Msg("emergency backup write failed")
			}
			err = fmt.Errorf("save pipeline panic: %v", r)
		}
	}()
	return fn()
}

// saveDocument performs exactly one of: a PUT for a server-persisted
// document, or a POST for a provisional one followed by identifier
// migration. Network failure degrades to local-only state; in-memory
// content is never reverted.
func (s *Session) saveDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	doc := s.findLocked(docID)
	if doc == nil {
		// Deleted or migrated since the timer was armed.
		s.mu.Unlock()
		return nil
	}

	provisional := document.IsProvisional(doc.ID)
	if provisional {
		if s.states[doc.ID] == document.StatePendingCreate {
			// A create is already in flight; re-arm so the latest content
			// still lands as an update after migration.
			s.armTimerLocked(doc.ID)
			s.mu.Unlock()
			return nil
		}
		s.states[doc.ID] = document.StatePendingCreate
	} else {
		s.states[doc.ID] = document.StatePendingUpdate
	}
	payload := doc.Clone()
	s.mu.Unlock()

	if provisional {
		return s.createAndMigrate(ctx, payload)
	}
	return s.update(ctx, payload)
}

func (s *Session) createAndMigrate(ctx context.Context, payload *document.Document) error {
	saved, err := s.backend.CreateDocument(ctx, s.roomID, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.findLocked(payload.ID)
	if cur == nil {
		return nil // deleted while the create was in flight
	}
	if err != nil {
		s.states[cur.ID] = document.StateLocalOnly
		s.log.Warn().Err(err).Str("doc", cur.ID).Msg("create failed, document stays local")
		return err
	}

	s.migrateLocked(cur, saved.ID)

	if cur.Content != payload.Content || cur.ImageDataURL != payload.ImageDataURL || cur.Name != payload.Name {
		// Edited while the create was in flight: queue an update.
		s.states[cur.ID] = document.StatePendingUpdate
		s.armTimerLocked(cur.ID)
	} else {
		s.states[cur.ID] = document.StatePersisted
	}
	s.mirrorLocked()
	return nil
}

func (s *Session) update(ctx context.Context, payload *document.Document) error {
	_, err := s.backend.UpdateDocument(ctx, s.roomID, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.findLocked(payload.ID)
	if cur == nil {
		return nil
	}
	if err != nil {
		// Local copy is trusted over a failed remote write; the document
		// just stays flagged as unsynced.
		s.states[cur.ID] = document.StatePendingUpdate
		s.log.Warn().Err(err).Str("doc", cur.ID).Msg("update failed, keeping local copy")
		return err
	}
	if cur.Content == payload.Content && cur.ImageDataURL == payload.ImageDataURL && cur.Name == payload.Name {
		s.states[cur.ID] = document.StatePersisted
	}
	return nil
}

// migrateLocked rebinds a provisional identifier to the server-assigned
// one: the in-memory document, its state entry and the active-tab pointer
// all move to the new id. A timer armed under the old id is stopped, not
// rekeyed; its closure flushes the old id, and the caller arms a fresh
// timer under the new id when an update is still owed.
func (s *Session) migrateLocked(doc *document.Document, newID string) {
	oldID := doc.ID
	doc.ID = newID

	if state, ok := s.states[oldID]; ok {
		delete(s.states, oldID)
		s.states[newID] = state
	}
	if t, ok := s.timers[oldID]; ok {
		t.Stop()
		delete(s.timers, oldID)
	}
	if s.activeID == oldID {
		s.activeID = newID
	}
	s.log.Debug().Str("from", oldID).Str("to", newID).Msg("identifier migrated")
}

// DocumentError records one failed save in a batch.
type DocumentError struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

// SaveReport aggregates a manual save-all run.
type SaveReport struct {
	Saved  int             `json:"saved"`
	Failed []DocumentError `json:"failed,omitempty"`
	OK     bool            `json:"ok"`
}

// SaveAll saves every open document in sequence with the same
// create-or-update logic as the debounce path. A failing document keeps its
// pre-save state and is reported; the batch continues.
func (s *Session) SaveAll(ctx context.Context) SaveReport {
	s.mu.Lock()
	ids := make([]string, len(s.docs))
	names := make(map[string]string, len(s.docs))
	for i, d := range s.docs {
		ids[i] = d.ID
		names[d.ID] = d.Name
	}
	s.mu.Unlock()

	var report SaveReport
	for _, id := range ids {
		err := s.guardSave(func() error {
			return s.saveDocument(ctx, id)
		})
		if err != nil {
			report.Failed = append(report.Failed, DocumentError{
				DocumentID: id,
				Name:       names[id],
				Error:      err.Error(),
			})
			continue
		}
		report.Saved++
	}
	report.OK = len(report.Failed) == 0
	return report
}
