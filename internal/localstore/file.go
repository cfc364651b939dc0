package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collabedge/internal/document"
)

// Ensure File implements the interface.
var _ Store = (*File)(nil)

const (
	documentsSuffix = "-documents.json"
	stateSuffix     = "-state.json"
	passwordSuffix  = "-password.json"
)

// File stores each key as one JSON file under a root directory. Writes go
// through a temp file plus rename so a snapshot is either the old or the
// new version, never a torn read.
type File struct {
	root string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewFile creates the root directory if needed and returns a file-backed
// store.
func NewFile(root string, log zerolog.Logger) (*File, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &File{root: root, log: log.With().Str("component", "localstore").Logger()}, nil
}

// Root returns the directory backing this store.
func (f *File) Root() string {
	return f.root
}

func (f *File) StoreDocuments(roomID string, docs []*document.Document) error {
	return f.writeJSON("room-"+roomID+documentsSuffix, docs)
}

func (f *File) GetDocuments(roomID string) []*document.Document {
	var docs []*document.Document
	if !f.readJSON("room-"+roomID+documentsSuffix, &docs) {
		return nil
	}
	return docs
}

func (f *File) ForceSaveDocument(roomID string, doc *document.Document) error {
	return f.writeJSON("room-"+roomID+"-doc-"+sanitize(doc.ID)+".json", doc)
}

func (f *File) StoreRoomState(roomID string, partial document.RoomState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current document.RoomState
	f.readJSONLocked("room-"+roomID+stateSuffix, &current)
	return f.writeJSONLocked("room-"+roomID+stateSuffix, current.Merge(partial))
}

func (f *File) GetRoomState(roomID string) document.RoomState {
	var state document.RoomState
	f.readJSON("room-"+roomID+stateSuffix, &state)
	return state
}

func (f *File) AllRoomKeys() []string {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		f.log.Debug().Err(err).Msg("room key enumeration failed")
		return nil
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "room-") && strings.HasSuffix(name, documentsSuffix) {
			keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, "room-"), documentsSuffix))
		}
	}
	return keys
}

func (f *File) StoreRoomPassword(roomID, password string) error {
	return f.writeJSON("room-"+roomID+passwordSuffix, password)
}

func (f *File) GetRoomPassword(roomID string) string {
	var password string
	f.readJSON("room-"+roomID+passwordSuffix, &password)
	return password
}

func (f *File) StoreEmergencyBackup(roomID string, docs []*document.Document) error {
	name := fmt.Sprintf("room-%s-backup-%d.json", roomID, time.Now().UnixMilli())
	return f.writeJSON(name, docs)
}

func (f *File) writeJSON(name string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeJSONLocked(name, v)
}

func (f *File) writeJSONLocked(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(f.root, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// readJSON reports whether v was populated. Missing files, read errors and
// parse failures all degrade to false.
func (f *File) readJSON(name string, v any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readJSONLocked(name, v)
}

func (f *File) readJSONLocked(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(f.root, name))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		f.log.Warn().Err(err).Str("key", name).Msg("discarding unreadable local data")
		return false
	}
	return true
}

// sanitize keeps document ids usable as file names.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
