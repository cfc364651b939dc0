package document

// State tracks where a document sits in the save pipeline.
type State int

const (
	// StateLocalOnly: provisional identifier, no save scheduled.
	StateLocalOnly State = iota
	// StatePendingCreate: a create request is in flight; further creates
	// for the same document must not be issued.
	StatePendingCreate
	// StatePersisted: server identifier assigned, no save pending.
	StatePersisted
	// StatePendingUpdate: local edits newer than the last confirmed save.
	StatePendingUpdate
)

func (s State) String() string {
	switch s {
	case StateLocalOnly:
		return "local-only"
	case StatePendingCreate:
		return "pending-create"
	case StatePersisted:
		return "persisted"
	case StatePendingUpdate:
		return "pending-update"
	}
	return "unknown"
}

// CanTransition reports whether moving from s to next is a legal step in
// the save pipeline.
//
//	local-only     -> pending-create            (first save scheduled)
//	pending-create -> persisted                 (create confirmed, id migrated)
//	pending-create -> local-only                (create failed, stay local)
//	persisted      -> pending-update            (new local edit)
//	pending-update -> persisted                 (update confirmed)
//	pending-update -> pending-update            (edit while save in flight)
func (s State) CanTransition(next State) bool {
	switch s {
	case StateLocalOnly:
		return next == StatePendingCreate || next == StateLocalOnly
	case StatePendingCreate:
		return next == StatePersisted || next == StateLocalOnly || next == StatePendingCreate
	case StatePersisted:
		return next == StatePendingUpdate || next == StatePersisted
	case StatePendingUpdate:
		return next == StatePersisted || next == StatePendingUpdate
	}
	return false
}

// Synced reports whether the local copy is known to match the server.
func (s State) Synced() bool {
	return s == StatePersisted
}
