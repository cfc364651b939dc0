package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabedge/internal/document"
	"collabedge/internal/transport"
)

func recv(t *testing.T, conn transport.Conn) transport.Envelope {
	t.Helper()
	select {
	case e := <-conn.Receive():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return transport.Envelope{}
	}
}

func TestApplyLocalEdit_DebounceCoalesces(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "v0")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	// A burst of keystrokes well inside the quiet period.
	for _, content := range []string{"v1", "v2", "v3", "v4", "final"} {
		require.NoError(t, fx.session.ApplyLocalEdit(docID, content, ""))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return backend.updateCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// No further update follows once the burst is flushed.
	time.Sleep(3 * fx.session.debounce)
	assert.Equal(t, 1, backend.updateCount())
	assert.Equal(t, "final", backend.lastUpdate().Content)
	assert.Equal(t, document.StatePersisted, fx.session.State(docID))
}

func TestApplyLocalEdit_MirrorsImmediately(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "v0")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	require.NoError(t, fx.session.ApplyLocalEdit(docID, "typed", ""))

	// The local snapshot reflects the edit before any backend save fires.
	local := fx.store.GetDocuments("room1")
	require.Len(t, local, 1)
	assert.Equal(t, "typed", local[0].Content)
	assert.Equal(t, document.StatePendingUpdate, fx.session.State(docID))
}

func TestApplyLocalEdit_UnknownDocument(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	assert.Error(t, fx.session.ApplyLocalEdit("missing", "x", ""))
}

func TestEditDuringCreate_MigratesAndUpdatesOnce(t *testing.T) {
	backend := &fakeBackend{createDelay: 60 * time.Millisecond}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	// The synthesized document starts provisional; its create is in flight.
	docID := fx.session.Documents()[0].ID
	require.True(t, document.IsProvisional(docID))

	require.NoError(t, fx.session.ApplyLocalEdit(docID, "edited while posting", ""))

	require.Eventually(t, func() bool {
		docs := fx.session.Documents()
		return len(docs) == 1 &&
			!document.IsProvisional(docs[0].ID) &&
			backend.updateCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	// Exactly one POST, even though the debounce fired during the create.
	assert.Equal(t, 1, backend.attemptCount())

	serverID := fx.session.Documents()[0].ID
	assert.Equal(t, serverID, fx.session.ActiveID())
	assert.Equal(t, serverID, backend.lastUpdate().ID)
	assert.Equal(t, "edited while posting", backend.lastUpdate().Content)
	assert.Equal(t, document.StatePersisted, fx.session.State(serverID))

	// Nothing is left armed under the retired provisional id.
	fx.session.mu.Lock()
	_, stale := fx.session.timers[docID]
	fx.session.mu.Unlock()
	assert.False(t, stale)
}

func TestAddDocument(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	doc, err := fx.session.AddDocument("", document.TypeSpreadsheet)
	require.NoError(t, err)
	assert.True(t, document.IsProvisional(doc.ID))
	assert.Equal(t, document.DefaultName(document.TypeSpreadsheet), doc.Name)
	assert.Equal(t, doc.ID, fx.session.ActiveID())

	require.Eventually(t, func() bool {
		return backend.createCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAddDocument_InvalidType(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	_, err := fx.session.AddDocument("x", document.Type("sculpture"))
	assert.Error(t, err)
}

func TestAddDocument_CapIsLocal(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "")}}
	fx := newFixture(t, backend, func(o *Options) { o.MaxDocuments = 2 })
	fx.session.Load(context.Background())

	_, err := fx.session.AddDocument("second", document.TypeCode)
	require.NoError(t, err)

	_, err = fx.session.AddDocument("third", document.TypeCode)
	require.Error(t, err)
	assert.Len(t, fx.session.Documents(), 2)

	// The rejected document never reaches the backend.
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, backend.attemptCount(), 1)
}

func TestAddDocument_DuplicateNameConflicts(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	_, err := fx.session.AddDocument("main", document.TypeCode)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
	assert.Len(t, fx.session.Documents(), 1)
}

func TestAddDocument_DefaultNamesAreUniquified(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	first, err := fx.session.AddDocument("", document.TypeSpreadsheet)
	require.NoError(t, err)
	second, err := fx.session.AddDocument("", document.TypeSpreadsheet)
	require.NoError(t, err)

	assert.Equal(t, "Sheet 1", first.Name)
	assert.Equal(t, "Sheet 1 (2)", second.Name)
}

func TestRenameDocument_DuplicateNameConflicts(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{
		serverDoc("taken", ""),
		serverDoc("mine", ""),
	}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docs := fx.session.Documents()

	err := fx.session.RenameDocument(docs[1].ID, "taken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")

	// Renaming to its own current name is not a collision.
	require.NoError(t, fx.session.RenameDocument(docs[1].ID, "mine"))
}

func TestRenameDocument(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "body")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	require.Error(t, fx.session.RenameDocument(docID, ""))
	require.NoError(t, fx.session.RenameDocument(docID, "renamed"))

	doc, _ := fx.session.Document(docID)
	assert.Equal(t, "renamed", doc.Name)

	require.Eventually(t, func() bool {
		u := backend.lastUpdate()
		return u != nil && u.Name == "renamed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteDocument(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{
		serverDoc("keep", ""),
		serverDoc("drop", ""),
	}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	docs := fx.session.Documents()
	require.True(t, fx.session.SetActive(docs[1].ID))
	require.NoError(t, fx.session.DeleteDocument(docs[1].ID))

	remaining := fx.session.Documents()
	require.Len(t, remaining, 1)
	assert.Equal(t, "keep", remaining[0].Name)
	assert.Equal(t, remaining[0].ID, fx.session.ActiveID())

	require.Eventually(t, func() bool {
		return len(backend.deletedIDs()) == 1 && backend.deletedIDs()[0] == docs[1].ID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteDocument_LastDocumentRefused(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("only", "")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	assert.Error(t, fx.session.DeleteDocument(docID))
	assert.Len(t, fx.session.Documents(), 1)
}

func TestDeleteDocument_ProvisionalSkipsBackend(t *testing.T) {
	backend := &fakeBackend{
		listDocs:  []*document.Document{serverDoc("main", "")},
		createErr: assert.AnError, // the new document stays provisional
	}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())

	doc, err := fx.session.AddDocument("scratch", document.TypeFreeform)
	require.NoError(t, err)
	require.NoError(t, fx.session.DeleteDocument(doc.ID))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, backend.deletedIDs())
}

func TestAttach_JoinsAndBroadcasts(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "v0")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	local, remote := transport.Pipe()
	fx.session.Attach(local)

	// The remote peer sees its own CONNECTED, then our JOIN.
	assert.Equal(t, transport.KindConnected, recv(t, remote).Type)
	join := recv(t, remote)
	assert.Equal(t, transport.KindJoin, join.Type)
	assert.Equal(t, "tester", join.Username)

	require.NoError(t, fx.session.ApplyLocalEdit(docID, "broadcast me", ""))
	update := recv(t, remote)
	assert.Equal(t, transport.KindDocumentUpdate, update.Type)
	assert.Equal(t, docID, update.DocumentID)
	assert.Equal(t, "broadcast me", update.Content)
}

func TestAttach_InboundEnvelopesAreApplied(t *testing.T) {
	backend := &fakeBackend{listDocs: []*document.Document{serverDoc("main", "v0")}}
	fx := newFixture(t, backend)
	fx.session.Load(context.Background())
	docID := fx.session.Documents()[0].ID

	local, remote := transport.Pipe()
	fx.session.Attach(local)

	require.NoError(t, remote.Send(transport.Envelope{
		Type:       transport.KindDocumentUpdate,
		DocumentID: docID,
		Content:    "from the other side",
	}))

	require.Eventually(t, func() bool {
		doc, ok := fx.session.Document(docID)
		return ok && doc.Content == "from the other side"
	}, 2*time.Second, 10*time.Millisecond)
}
