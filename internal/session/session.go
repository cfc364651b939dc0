// Package session owns the per-room synchronization state machine: it
// merges local edits, real-time envelopes and backend fetch results into one
// consistent document list, and drives the local store and the debounced
// backend save path.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"collabedge/internal/api"
	"collabedge/internal/document"
	"collabedge/internal/localstore"
	"collabedge/internal/transport"
	"collabedge/internal/worker"
)

// Options configures a Session.
type Options struct {
	RoomID       string
	Username     string
	Backend      api.Backend
	Store        localstore.Store
	Pool         *worker.Pool
	Logger       zerolog.Logger
	Debounce     time.Duration // quiet period before a save fires
	MaxDocuments int           // per-room open document cap
}

// Session is the synchronization controller for one room. All state is
// guarded by mu; handlers re-read current state under the lock at
// invocation time, so overlapping timers and message deliveries observe the
// latest view rather than stale captures.
type Session struct {
	roomID   string
	username string

	backend api.Backend
	store   localstore.Store
	pool    *worker.Pool
	log     zerolog.Logger

	debounce time.Duration
	maxDocs  int

	// loadOnce gates the initial Load; concurrent openers block on it
	// until the document set is populated.
	loadOnce sync.Once

	mu        sync.Mutex
	docs      []*document.Document
	states    map[string]document.State
	activeID  string
	timers    map[string]*time.Timer
	conns     []transport.Conn
	users     []string
	mutations uint64
	closed    bool

	// crosstab throttles merges of snapshots written by other processes.
	crosstab *rate.Limiter
}

// New builds a Session without loading anything. Call Load before use.
func New(opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = 10
	}
	return &Session{
		roomID:   opts.RoomID,
		username: opts.Username,
		backend:  opts.Backend,
		store:    opts.Store,
		pool:     opts.Pool,
		log:      opts.Logger.With().Str("room", opts.RoomID).Logger(),
		debounce: opts.Debounce,
		maxDocs:  opts.MaxDocuments,
		states:   make(map[string]document.State),
		timers:   make(map[string]*time.Timer),
		crosstab: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// Load populates the open-document set. Sources are tried in priority
// order and the first success wins: backend list, local snapshot, a
// synthesized default document.
func (s *Session) Load(ctx context.Context) {
	docs, err := s.backend.ListDocuments(ctx, s.roomID)
	if err != nil {
		s.log.Warn().Err(err).Msg("backend list failed, falling back to local snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.store.GetDocuments(s.roomID)

	switch {
	case err == nil && len(docs) > 0:
		// Backend is ground truth; mirror it locally right away.
		s.docs = docs
		for _, d := range docs {
			s.states[d.ID] = document.StatePersisted
		}
		s.mirrorLocked()

	case len(local) > 0:
		s.docs = local
		for _, d := range s.docs {
			if document.IsProvisional(d.ID) {
				s.states[d.ID] = document.StateLocalOnly
			} else {
				s.states[d.ID] = document.StatePersisted
			}
		}

	default:
		editorType := s.store.GetRoomState(s.roomID).LastEditorType
		doc := document.NewDefault(editorType)
		s.docs = []*document.Document{doc}
		s.states[doc.ID] = document.StateLocalOnly
		s.mirrorLocked()
		// Best-effort background create; tolerate failure, stay local.
		s.scheduleCreateLocked(doc.ID)
	}

	s.activeID = s.docs[0].ID
	s.storeRoomStateLocked()
}

// Attach binds a room channel to the session and starts draining it. The
// JOIN announcement goes out as soon as the channel reports CONNECTED.
func (s *Session) Attach(conn transport.Conn) {
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	go func() {
		for e := range conn.Receive() {
			if e.Type == transport.KindConnected {
				conn.Send(transport.Envelope{Type: transport.KindJoin, Username: s.username})
				continue
			}
			s.HandleEnvelope(e)
		}
	}()
}

// Documents returns a copy of the open set in tab order.
func (s *Session) Documents() []*document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*document.Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Clone()
	}
	return out
}

// Document returns a copy of one open document.
func (s *Session) Document(docID string) (*document.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findLocked(docID); d != nil {
		return d.Clone(), true
	}
	return nil, false
}

// ActiveID returns the identifier of the document bound to the visible tab.
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActive switches the visible tab.
func (s *Session) SetActive(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(docID) == nil {
		return false
	}
	s.activeID = docID
	return true
}

// State reports the save-pipeline state for a document.
func (s *Session) State(docID string) document.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[docID]
}

// Users returns the current presence roster.
func (s *Session) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.users))
	copy(out, s.users)
	return out
}

// Mutations counts in-memory document mutations. A suppressed remote echo
// leaves the counter unchanged.
func (s *Session) Mutations() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

// RoomID returns the room this session serves.
func (s *Session) RoomID() string {
	return s.roomID
}

// Close stops timers and detaches channels. Pending debounce saves are
// dropped; the local store already holds the latest content.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// findLocked returns the open document with the given id, or nil.
func (s *Session) findLocked(docID string) *document.Document {
	for _, d := range s.docs {
		if d.ID == docID {
			return d
		}
	}
	return nil
}

// mirrorLocked writes the full snapshot to the local store.
func (s *Session) mirrorLocked() {
	if err := s.store.StoreDocuments(s.roomID, s.docs); err != nil {
		s.log.Warn().Err(err).Msg("local snapshot write failed")
	}
}

func (s *Session) storeRoomStateLocked() {
	state := document.RoomState{
		DocumentCount: len(s.docs),
		LastAccessed:  time.Now().UTC(),
	}
	if active := s.findLocked(s.activeID); active != nil {
		state.LastEditorType = active.Type
	}
	if err := s.store.StoreRoomState(s.roomID, state); err != nil {
		s.log.Warn().Err(err).Msg("room state write failed")
	}
}

// broadcastLocked fans an envelope out to every attached channel off the
// caller's path. Failures never block or fail the local save path.
func (s *Session) broadcastLocked(e transport.Envelope) {
	conns := make([]transport.Conn, len(s.conns))
	copy(conns, s.conns)
	s.pool.Submit(func(ctx context.Context) error {
		for _, c := range conns {
			c.Send(e)
		}
		return nil
	})
}
