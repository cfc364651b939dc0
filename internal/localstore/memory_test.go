package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabedge/internal/document"
)

func TestMemory_Isolation(t *testing.T) {
	store := NewMemory()
	doc := &document.Document{ID: "1", Content: "original"}
	require.NoError(t, store.StoreDocuments("room1", []*document.Document{doc}))

	// Mutating either side after the write must not leak through.
	doc.Content = "mutated"
	got := store.GetDocuments("room1")
	require.Len(t, got, 1)
	assert.Equal(t, "original", got[0].Content)

	got[0].Content = "mutated again"
	assert.Equal(t, "original", store.GetDocuments("room1")[0].Content)
}

func TestMemory_RoomStateMerge(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.StoreRoomState("room1", document.RoomState{DocumentCount: 1}))
	require.NoError(t, store.StoreRoomState("room1", document.RoomState{PasswordProtected: true}))

	state := store.GetRoomState("room1")
	assert.Equal(t, 1, state.DocumentCount)
	assert.True(t, state.PasswordProtected)
}

func TestMemory_Backups(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.StoreEmergencyBackup("room1", []*document.Document{{ID: "1"}}))
	require.NoError(t, store.StoreEmergencyBackup("room1", []*document.Document{{ID: "2"}}))

	backups := store.Backups("room1")
	require.Len(t, backups, 2)
	assert.Equal(t, "2", backups[1][0].ID)
}

func TestMemory_AllRoomKeys(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.StoreDocuments("a", nil))
	require.NoError(t, store.StoreDocuments("b", nil))
	assert.ElementsMatch(t, []string{"a", "b"}, store.AllRoomKeys())
}
