package gateway

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabedge/internal/diff"
	"collabedge/internal/document"
	apperrors "collabedge/internal/errors"
	"collabedge/internal/localstore"
	"collabedge/internal/session"
)

// Handler serves the local editor-facing API. Every route resolves through
// the session manager, never the backend directly, so a backend outage
// degrades to local state instead of failing the editor.
type Handler struct {
	manager *session.Manager
	store   localstore.Store
}

func NewHandler(manager *session.Manager, store localstore.Store) *Handler {
	return &Handler{manager: manager, store: store}
}

func (h *Handler) room(c *gin.Context) *session.Session {
	return h.manager.Open(c.Request.Context(), c.Param("roomId"))
}

func (h *Handler) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, h.room(c).Documents())
}

type createDocumentRequest struct {
	Name string `json:"name" binding:"omitempty,min=1,max=255"`
	Type string `json:"type" binding:"required,doctype"`
}

func (h *Handler) CreateDocument(c *gin.Context) {
	var form createDocumentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(apperrors.Validation("Invalid document payload", err))
		return
	}

	doc, err := h.room(c).AddDocument(form.Name, document.Type(form.Type))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

type updateDocumentRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=255"`
	Content      *string `json:"content"`
	ImageDataURL string  `json:"imageDataUrl"`
}

func (h *Handler) UpdateDocument(c *gin.Context) {
	var form updateDocumentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(apperrors.Validation("Invalid document payload", err))
		return
	}

	s := h.room(c)
	docID := c.Param("id")

	if form.Name != nil {
		if err := s.RenameDocument(docID, *form.Name); err != nil {
			c.Error(err)
			return
		}
	}
	if form.Content != nil || form.ImageDataURL != "" {
		content := ""
		if form.Content != nil {
			content = *form.Content
		} else if doc, ok := s.Document(docID); ok {
			content = doc.Content
		}
		if err := s.ApplyLocalEdit(docID, content, form.ImageDataURL); err != nil {
			c.Error(err)
			return
		}
	}

	doc, ok := s.Document(docID)
	if !ok {
		c.Error(apperrors.NotFound("Document not found", nil))
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.room(c).DeleteDocument(c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SaveAll(c *gin.Context) {
	report := h.room(c).SaveAll(c.Request.Context())
	status := http.StatusOK
	if !report.OK {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

func (h *Handler) SetActive(c *gin.Context) {
	if !h.room(c).SetActive(c.Param("id")) {
		c.Error(apperrors.NotFound("Document not found", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeId": c.Param("id")})
}

func (h *Handler) ShowRoomState(c *gin.Context) {
	s := h.room(c)
	docs := s.Documents()
	states := make(map[string]string, len(docs))
	synced := true
	for _, d := range docs {
		st := s.State(d.ID)
		states[d.ID] = st.String()
		if !st.Synced() {
			synced = false
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"room":      s.RoomID(),
		"activeId":  s.ActiveID(),
		"documents": states,
		"synced":    synced,
		"state":     h.store.GetRoomState(s.RoomID()),
	})
}

func (h *Handler) ShowUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.room(c).Users()})
}

type diffRequest struct {
	Content string `json:"content"`
}

// ShowDiff renders proposed content against the current in-memory document
// as a side-by-side text block, the way the editor previews suggested
// rewrites before applying them.
func (h *Handler) ShowDiff(c *gin.Context) {
	var form diffRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(apperrors.Validation("Invalid diff payload", err))
		return
	}

	doc, ok := h.room(c).Document(c.Param("id"))
	if !ok {
		c.Error(apperrors.NotFound("Document not found", nil))
		return
	}

	lines := diff.Diff(doc.Content, form.Content)
	summary := diff.Summarize(lines)
	c.JSON(http.StatusOK, gin.H{
		"added":      summary.Added,
		"removed":    summary.Removed,
		"hasChanges": summary.HasChanges,
		"rendered":   diff.SideBySide(lines),
	})
}

func (h *Handler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.Error(apperrors.Validation("Missing file field", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.Error(apperrors.Validation("Unreadable upload", err))
		return
	}

	doc, err := h.room(c).UploadImage(c.Request.Context(), c.Param("id"), header.Filename, data)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) FetchImage(c *gin.Context) {
	data, contentType, err := h.room(c).FetchImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) StorePassword(c *gin.Context) {
	var form passwordRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(apperrors.Validation("Password is required", err))
		return
	}
	roomID := c.Param("roomId")
	if err := h.store.StoreRoomPassword(roomID, form.Password); err != nil {
		c.Error(apperrors.Unavailable("Could not store password", err))
		return
	}
	if err := h.store.StoreRoomState(roomID, document.RoomState{PasswordProtected: true}); err != nil {
		c.Error(apperrors.Unavailable("Could not store room state", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ShowPassword(c *gin.Context) {
	password := h.store.GetRoomPassword(c.Param("roomId"))
	if password == "" {
		c.Error(apperrors.NotFound("No password stored for room", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"password": password})
}

func (h *Handler) ListRooms(c *gin.Context) {
	keys := h.store.AllRoomKeys()
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": keys})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
