package document

import (
	"time"
)

// Type identifies what kind of editor a document is bound to.
// Immutable after creation.
type Type string

const (
	TypeCode         Type = "code"
	TypeWord         Type = "word"
	TypeSpreadsheet  Type = "spreadsheet"
	TypePresentation Type = "presentation"
	TypeFreeform     Type = "freeform"
	TypeCustom       Type = "custom"
)

// ValidTypes lists every allowed document type.
var ValidTypes = []Type{TypeCode, TypeWord, TypeSpreadsheet, TypePresentation, TypeFreeform, TypeCustom}

func (t Type) Valid() bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Document is a single editable artifact inside a room.
//
// Content carries UTF-8 text whose meaning depends on Type (source text,
// HTML, serialized structure). ImageDataURL carries a data-URL payload for
// image-bearing freeform documents and is mutually exclusive with meaningful
// Content. PendingImageUpload marks a binary payload that exists locally but
// has not been confirmed persisted remotely.
type Document struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Type               Type   `json:"type"`
	Content            string `json:"content"`
	ContentType        string `json:"contentType,omitempty"`
	ImageDataURL       string `json:"imageDataUrl,omitempty"`
	PendingImageUpload bool   `json:"pendingImageUpload,omitempty"`
}

// Clone returns a copy safe to hand outside the session lock.
func (d *Document) Clone() *Document {
	c := *d
	return &c
}

// RoomState is a small per-room metadata record used only to resume UX
// state. It may be stale relative to the server.
type RoomState struct {
	LastEditorType    Type      `json:"lastEditorType,omitempty"`
	DocumentCount     int       `json:"documentCount,omitempty"`
	LastAccessed      time.Time `json:"lastAccessed,omitempty"`
	PasswordProtected bool      `json:"passwordProtected,omitempty"`
}

// Merge shallow-merges a partial update into the receiver. Zero-value
// fields in the partial record leave the existing value untouched.
func (s RoomState) Merge(partial RoomState) RoomState {
	merged := s
	if partial.LastEditorType != "" {
		merged.LastEditorType = partial.LastEditorType
	}
	if partial.DocumentCount != 0 {
		merged.DocumentCount = partial.DocumentCount
	}
	if !partial.LastAccessed.IsZero() {
		merged.LastAccessed = partial.LastAccessed
	}
	if partial.PasswordProtected {
		merged.PasswordProtected = true
	}
	return merged
}
