package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collabedge/internal/api"
	"collabedge/internal/localstore"
	"collabedge/internal/transport"
	"collabedge/internal/worker"
)

// ManagerOptions configures the room registry.
type ManagerOptions struct {
	Backend      api.Backend
	Store        localstore.Store
	Pool         *worker.Pool
	Transports   []transport.Transport
	Logger       zerolog.Logger
	Debounce     time.Duration
	MaxDocuments int
	Username     string
}

// Manager keeps one Session per joined room and wires each to every
// configured transport.
type Manager struct {
	opts     ManagerOptions
	mu       sync.Mutex
	sessions map[string]*Session
	log      zerolog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
		log:      opts.Logger.With().Str("component", "session-manager").Logger(),
	}
}

// Open returns the session for a room, creating and loading it on first
// use. Every caller blocks until the first load has finished, so a session
// is never observed before it holds at least one document. A transport that
// cannot connect is skipped; the session still works against local state.
func (m *Manager) Open(ctx context.Context, roomID string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		s = New(Options{
			RoomID:       roomID,
			Username:     m.opts.Username,
			Backend:      m.opts.Backend,
			Store:        m.opts.Store,
			Pool:         m.opts.Pool,
			Logger:       m.opts.Logger,
			Debounce:     m.opts.Debounce,
			MaxDocuments: m.opts.MaxDocuments,
		})
		m.sessions[roomID] = s
	}
	m.mu.Unlock()

	s.loadOnce.Do(func() {
		s.Load(ctx)
		for _, t := range m.opts.Transports {
			conn, err := t.Connect(ctx, roomID)
			if err != nil {
				m.log.Warn().Err(err).Str("room", roomID).Msg("transport connect failed, continuing local-only")
				continue
			}
			s.Attach(conn)
		}
	})
	return s
}

// Get returns an already open session.
func (m *Manager) Get(roomID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[roomID]
	return s, ok
}

// Rooms lists open room ids.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// WatchStore drains a local-store watcher and forwards change
// notifications to the affected sessions.
func (m *Manager) WatchStore(w *localstore.Watcher) {
	go func() {
		for roomID := range w.Changes() {
			if s, ok := m.Get(roomID); ok {
				s.OnExternalChange()
			}
		}
	}()
}

// Close shuts every session down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
}
