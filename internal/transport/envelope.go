package transport

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates envelope types on the wire.
type Kind string

const (
	KindConnected      Kind = "CONNECTED"
	KindJoin           Kind = "JOIN"
	KindDocumentUpdate Kind = "DOCUMENT_UPDATE"
	KindDocumentRename Kind = "DOCUMENT_RENAME"
	KindDocumentDelete Kind = "DOCUMENT_DELETE"
	KindUserJoined     Kind = "USER_JOINED"
	KindUserLeft       Kind = "USER_LEFT"
	KindUserListUpdate Kind = "USER_LIST_UPDATE"
	KindTest           Kind = "TEST"
)

// Envelope is a discriminated JSON message exchanged over a room channel.
// The closed set of kinds is dispatched exhaustively by the session; an
// unknown Type is surfaced by Known() instead of being silently dropped in
// an else branch somewhere.
type Envelope struct {
	Type         Kind     `json:"type,omitempty"`
	DocumentID   string   `json:"documentId,omitempty"`
	Content      string   `json:"content,omitempty"`
	ImageDataURL string   `json:"imageDataUrl,omitempty"`
	Name         string   `json:"name,omitempty"`
	Username     string   `json:"username,omitempty"`
	Users        []string `json:"users,omitempty"`
}

// Known reports whether Type is part of the closed envelope set.
func (e Envelope) Known() bool {
	switch e.Type {
	case KindConnected, KindJoin, KindDocumentUpdate, KindDocumentRename,
		KindDocumentDelete, KindUserJoined, KindUserLeft, KindUserListUpdate, KindTest:
		return true
	}
	return false
}

// Decode parses a wire frame. A frame with no type but a documentId is a
// content update by contract, so Type is normalized to DOCUMENT_UPDATE.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.Type == "" && e.DocumentID != "" {
		e.Type = KindDocumentUpdate
	}
	return e, nil
}

// Encode serializes the envelope to a JSON text frame.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}
