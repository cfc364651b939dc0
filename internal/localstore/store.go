// Package localstore is the device-local persistence layer: a best-effort
// key-value cache scoped by room, never the system of record. Reads degrade
// to empty results instead of failing; writes are last-write-wins.
package localstore

import "collabedge/internal/document"

// Store persists room snapshots and small metadata records on the local
// device. Implementations must be safe for concurrent use and must keep
// reads non-failing: a missing key, unreadable medium, or parse failure
// yields empty data, not an error.
type Store interface {
	// StoreDocuments overwrites the full document snapshot for a room.
	StoreDocuments(roomID string, docs []*document.Document) error

	// GetDocuments returns the last stored snapshot, or nil when none
	// exists or the medium is unavailable.
	GetDocuments(roomID string) []*document.Document

	// ForceSaveDocument persists a single document independent of the full
	// snapshot, a redundant fast path so one slow document write is not
	// lost if the full-list write is interrupted.
	ForceSaveDocument(roomID string, doc *document.Document) error

	// StoreRoomState shallow-merges a partial update into the stored
	// room-state record.
	StoreRoomState(roomID string, partial document.RoomState) error

	// GetRoomState returns the stored room state, zero-valued when absent.
	GetRoomState(roomID string) document.RoomState

	// AllRoomKeys enumerates every room with a stored snapshot.
	AllRoomKeys() []string

	// StoreRoomPassword / GetRoomPassword keep the room-key to password
	// map used for UX convenience. Not a security boundary.
	StoreRoomPassword(roomID, password string) error
	GetRoomPassword(roomID string) string

	// StoreEmergencyBackup writes a timestamped last-resort snapshot,
	// used only when the primary save path panics.
	StoreEmergencyBackup(roomID string, docs []*document.Document) error
}
