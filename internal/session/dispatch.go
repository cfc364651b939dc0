package session

import (
	"collabedge/internal/transport"
)

// HandleEnvelope applies one incoming envelope as a state transition. The
// switch is exhaustive over the closed envelope set; delivery is unordered
// and at-most-once, so every branch must tolerate references to documents
// that are no longer (or not yet) open.
func (s *Session) HandleEnvelope(e transport.Envelope) {
	if !e.Known() {
		s.log.Warn().Str("type", string(e.Type)).Msg("unknown envelope kind")
		return
	}

	switch e.Type {
	case transport.KindConnected:
		// Handled at the connection drain; nothing to do here.

	case transport.KindDocumentUpdate:
		s.applyRemoteUpdate(e)

	case transport.KindDocumentRename:
		s.applyRemoteRename(e)

	case transport.KindDocumentDelete:
		s.applyRemoteDelete(e)

	case transport.KindJoin, transport.KindUserJoined:
		s.addUser(e.Username)

	case transport.KindUserLeft:
		s.removeUser(e.Username)

	case transport.KindUserListUpdate:
		s.replaceUsers(e.Users)

	case transport.KindTest:
		s.log.Debug().Msg("test envelope received")
	}
}

// applyRemoteUpdate overwrites in-memory content for one document. An
// update identical to the current copy is discarded: envelopes carry no
// origin marker, so content equality is the only way to break the echo
// loop between peers re-broadcasting each other's edits.
func (s *Session) applyRemoteUpdate(e transport.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.findLocked(e.DocumentID)
	if doc == nil {
		s.log.Debug().Str("doc", e.DocumentID).Msg("update for unopened document, ignoring")
		return
	}
	if doc.Content == e.Content && doc.ImageDataURL == e.ImageDataURL {
		return
	}

	doc.Content = e.Content
	if e.ImageDataURL != "" {
		doc.ImageDataURL = e.ImageDataURL
	}
	s.mutations++

	// Remote updates are assumed persisted by their origin: mirror them
	// locally but leave any local debounce timer alone.
	s.mirrorLocked()
}

func (s *Session) applyRemoteRename(e transport.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.findLocked(e.DocumentID)
	if doc == nil || doc.Name == e.Name {
		return
	}
	doc.Name = e.Name
	s.mutations++
	s.mirrorLocked()
}

// applyRemoteDelete removes the document and moves the active tab to the
// first remaining one. A delete that would empty the room, or that names an
// identifier not in the open set, is a no-op.
func (s *Session) applyRemoteDelete(e transport.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.findLocked(e.DocumentID)
	if doc == nil {
		s.log.Debug().Str("doc", e.DocumentID).Msg("delete for unknown document, ignoring")
		return
	}
	if len(s.docs) == 1 {
		s.log.Warn().Str("doc", e.DocumentID).Msg("refusing remote delete of the last document")
		return
	}

	s.removeLocked(e.DocumentID)
	s.mutations++
	s.mirrorLocked()
	s.storeRoomStateLocked()
}

func (s *Session) addUser(username string) {
	if username == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u == username {
			return
		}
	}
	s.users = append(s.users, username)
}

func (s *Session) removeUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u == username {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return
		}
	}
}

func (s *Session) replaceUsers(users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users[:0:0], users...)
}
