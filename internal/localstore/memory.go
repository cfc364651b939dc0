package localstore

import (
	"sync"

	"collabedge/internal/document"
)

// Ensure Memory implements the interface.
var _ Store = (*Memory)(nil)

// Memory is a map-backed Store for tests and environments without a
// writable disk.
type Memory struct {
	mu        sync.RWMutex
	documents map[string][]*document.Document
	singles   map[string]map[string]*document.Document
	states    map[string]document.RoomState
	passwords map[string]string
	backups   map[string][][]*document.Document
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string][]*document.Document),
		singles:   make(map[string]map[string]*document.Document),
		states:    make(map[string]document.RoomState),
		passwords: make(map[string]string),
		backups:   make(map[string][][]*document.Document),
	}
}

func (m *Memory) StoreDocuments(roomID string, docs []*document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[roomID] = cloneDocs(docs)
	return nil
}

func (m *Memory) GetDocuments(roomID string) []*document.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDocs(m.documents[roomID])
}

func (m *Memory) ForceSaveDocument(roomID string, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.singles[roomID] == nil {
		m.singles[roomID] = make(map[string]*document.Document)
	}
	m.singles[roomID][doc.ID] = doc.Clone()
	return nil
}

func (m *Memory) StoreRoomState(roomID string, partial document.RoomState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[roomID] = m.states[roomID].Merge(partial)
	return nil
}

func (m *Memory) GetRoomState(roomID string) document.RoomState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[roomID]
}

func (m *Memory) AllRoomKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.documents))
	for k := range m.documents {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) StoreRoomPassword(roomID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[roomID] = password
	return nil
}

func (m *Memory) GetRoomPassword(roomID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.passwords[roomID]
}

func (m *Memory) StoreEmergencyBackup(roomID string, docs []*document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backups[roomID] = append(m.backups[roomID], cloneDocs(docs))
	return nil
}

// Backups returns stored emergency snapshots, newest last. Test helper.
func (m *Memory) Backups(roomID string) [][]*document.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backups[roomID]
}

func cloneDocs(docs []*document.Document) []*document.Document {
	if docs == nil {
		return nil
	}
	out := make([]*document.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
