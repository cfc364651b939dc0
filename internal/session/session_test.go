package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabedge/internal/document"
	"collabedge/internal/localstore"
	"collabedge/internal/worker"
)

// fakeBackend is an in-memory stand-in for the backend REST API with
// controllable failures and latencies.
type fakeBackend struct {
	mu          sync.Mutex
	listDocs    []*document.Document
	listErr     error
	listDelay   time.Duration
	createErr   error
	updateErr   map[string]error
	createDelay time.Duration

	creates  int
	attempts int
	updates  []*document.Document
	deletes  []string
	panicOn  string
}

func (f *fakeBackend) ListDocuments(ctx context.Context, roomID string) ([]*document.Document, error) {
	f.mu.Lock()
	delay := f.listDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*document.Document, len(f.listDocs))
	for i, d := range f.listDocs {
		out[i] = d.Clone()
	}
	return out, nil
}

func (f *fakeBackend) CreateDocument(ctx context.Context, roomID string, doc *document.Document) (*document.Document, error) {
	f.mu.Lock()
	delay := f.createDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.creates++
	saved := doc.Clone()
	saved.ID = uuid.NewString()
	return saved, nil
}

func (f *fakeBackend) UpdateDocument(ctx context.Context, roomID string, doc *document.Document) (*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == f.panicOn {
		panic("backend exploded")
	}
	if err := f.updateErr[doc.ID]; err != nil {
		return nil, err
	}
	f.updates = append(f.updates, doc.Clone())
	return doc.Clone(), nil
}

func (f *fakeBackend) DeleteDocument(ctx context.Context, roomID, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, docID)
	return nil
}

func (f *fakeBackend) UploadImage(ctx context.Context, roomID, docID, filename string, data []byte) (*document.Document, error) {
	return &document.Document{ID: docID, ContentType: "image/png"}, nil
}

func (f *fakeBackend) FetchImage(ctx context.Context, roomID, docID string) ([]byte, string, error) {
	return []byte{1, 2, 3}, "image/png", nil
}

func (f *fakeBackend) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *fakeBackend) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeBackend) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeBackend) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deletes))
	copy(out, f.deletes)
	return out
}

func (f *fakeBackend) lastUpdate() *document.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

func serverDoc(name, content string) *document.Document {
	return &document.Document{
		ID:      uuid.NewString(),
		Name:    name,
		Type:    document.TypeCode,
		Content: content,
	}
}

type fixture struct {
	session *Session
	backend *fakeBackend
	store   *localstore.Memory
}

func newFixture(t *testing.T, backend *fakeBackend, opts ...func(*Options)) *fixture {
	t.Helper()
	store := localstore.NewMemory()
	pool := worker.NewPool(2, zerolog.Nop())
	t.Cleanup(pool.Shutdown)

	o := Options{
		RoomID:       "room1",
		Username:     "tester",
		Backend:      backend,
		Store:        store,
		Pool:         pool,
		Logger:       zerolog.Nop(),
		Debounce:     40 * time.Millisecond,
		MaxDocuments: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := New(o)
	t.Cleanup(s.Close)
	return &fixture{session: s, backend: backend, store: store}
}

func TestLoad_BackendIsGroundTruth(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{
		serverDoc("main", "x"),
		serverDoc("notes", "y"),
	}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	docs := fx.session.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, docs[0].ID, fx.session.ActiveID())
	assert.Equal(t, document.StatePersisted, fx.session.State(docs[0].ID))

	// The authoritative list is mirrored locally right away.
	assert.Len(t, fx.store.GetDocuments("room1"), 2)
}

func TestLoad_OfflineFallsBackToLocalSnapshot(t *testing.T) {
	backend := &fakeBackend{listErr: assert.AnError}
	fx := newFixture(t, backend)

	require.NoError(t, fx.store.StoreDocuments("room1", []*document.Document{
		serverDoc("main", "cached"),
		serverDoc("notes", "cached too"),
	}))

	fx.session.Load(context.Background())

	docs := fx.session.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "cached", docs[0].Content)
	assert.Equal(t, "cached too", docs[1].Content)
}

func TestLoad_SynthesizesDefaultDocument(t *testing.T) {
	backend := &fakeBackend{createErr: assert.AnError}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	docs := fx.session.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, document.TypeCode, docs[0].Type)
	assert.Equal(t, document.TemplateFor(document.TypeCode), docs[0].Content)

	// The background create fails; the document stays local.
	require.Eventually(t, func() bool {
		return backend.attemptCount() == 1 &&
			fx.session.State(fx.session.Documents()[0].ID) == document.StateLocalOnly
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, backend.createCount())
	assert.True(t, document.IsProvisional(fx.session.Documents()[0].ID))
}

func TestLoad_DefaultTypeFromRoomState(t *testing.T) {
	backend := &fakeBackend{createErr: assert.AnError}
	fx := newFixture(t, backend)
	require.NoError(t, fx.store.StoreRoomState("room1", document.RoomState{LastEditorType: document.TypeWord}))

	fx.session.Load(context.Background())

	docs := fx.session.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, document.TypeWord, docs[0].Type)
}

func TestSetActive(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{
		serverDoc("a", ""),
		serverDoc("b", ""),
	}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	docs := fx.session.Documents()
	assert.True(t, fx.session.SetActive(docs[1].ID))
	assert.Equal(t, docs[1].ID, fx.session.ActiveID())

	assert.False(t, fx.session.SetActive("missing"))
	assert.Equal(t, docs[1].ID, fx.session.ActiveID())
}

func TestOnExternalChange_MergesAndThrottles(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "v1")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	// Another process rewrote the snapshot.
	ext := fx.session.Documents()
	ext[0].Content = "v2"
	require.NoError(t, fx.store.StoreDocuments("room1", ext))

	before := fx.session.Mutations()
	fx.session.OnExternalChange()
	doc, _ := fx.session.Document(docID)
	assert.Equal(t, "v2", doc.Content)
	assert.Equal(t, before+1, fx.session.Mutations())

	// A second notification inside the throttle window is dropped.
	ext[0].Content = "v3"
	require.NoError(t, fx.store.StoreDocuments("room1", ext))
	fx.session.OnExternalChange()
	doc, _ = fx.session.Document(docID)
	assert.Equal(t, "v2", doc.Content)
}

func TestOnExternalChange_EqualContentIsIgnored(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "same")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	require.NoError(t, fx.store.StoreDocuments("room1", fx.session.Documents()))

	before := fx.session.Mutations()
	fx.session.OnExternalChange()
	assert.Equal(t, before, fx.session.Mutations())
}
