package document

// TemplateFor returns the initial content for a freshly synthesized
// document of the given type.
func TemplateFor(t Type) string {
	switch t {
	case TypeCode:
		return "// Welcome to CollabEdge\n// Start typing to collaborate in real time.\n"
	case TypeWord:
		return "<h1>Untitled</h1><p>Start writing…</p>"
	case TypeSpreadsheet:
		return `{"cells":{}}`
	case TypePresentation:
		return `{"slides":[{"title":"Untitled","elements":[]}]}`
	case TypeFreeform:
		// Canvas documents start empty; content is filled by image uploads.
		return ""
	default:
		return ""
	}
}

// DefaultName returns the display name for a synthesized document.
func DefaultName(t Type) string {
	switch t {
	case TypeCode:
		return "main"
	case TypeWord:
		return "Untitled Document"
	case TypeSpreadsheet:
		return "Sheet 1"
	case TypePresentation:
		return "Presentation 1"
	case TypeFreeform:
		return "Canvas 1"
	default:
		return "Untitled"
	}
}

// NewDefault synthesizes the single default document a room starts with
// when neither the backend nor the local store has anything.
func NewDefault(t Type) *Document {
	if !t.Valid() {
		t = TypeCode
	}
	return &Document{
		ID:      NewProvisionalID(),
		Name:    DefaultName(t),
		Type:    t,
		Content: TemplateFor(t),
	}
}
