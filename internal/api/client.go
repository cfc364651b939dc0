// Package api is the client for the external CollabEdge backend REST API.
// The backend is the system of record; every call here may fail and callers
// are expected to degrade to local state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"collabedge/internal/document"
)

// Client talks to the backend document endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Backend is the surface the session consumes.
type Backend interface {
	ListDocuments(ctx context.Context, roomID string) ([]*document.Document, error)
	CreateDocument(ctx context.Context, roomID string, doc *document.Document) (*document.Document, error)
	UpdateDocument(ctx context.Context, roomID string, doc *document.Document) (*document.Document, error)
	DeleteDocument(ctx context.Context, roomID, docID string) error
	UploadImage(ctx context.Context, roomID, docID, filename string, data []byte) (*document.Document, error)
	FetchImage(ctx context.Context, roomID, docID string) ([]byte, string, error)
}

var _ Backend = (*Client)(nil)

// NewClient returns a backend client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type documentPayload struct {
	Name    string        `json:"name"`
	Type    document.Type `json:"type"`
	Content string        `json:"content"`
}

// ListDocuments fetches the authoritative document list for a room.
func (c *Client) ListDocuments(ctx context.Context, roomID string) ([]*document.Document, error) {
	url := fmt.Sprintf("%s/api/rooms/%s/documents", c.baseURL, roomID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "list documents"); err != nil {
		return nil, err
	}

	var docs []*document.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CreateDocument persists a new document and returns it with the server id.
func (c *Client) CreateDocument(ctx context.Context, roomID string, doc *document.Document) (*document.Document, error) {
	url := fmt.Sprintf("%s/api/rooms/%s/documents", c.baseURL, roomID)
	return c.sendDocument(ctx, http.MethodPost, url, doc, "create document")
}

// UpdateDocument overwrites an existing server-persisted document.
func (c *Client) UpdateDocument(ctx context.Context, roomID string, doc *document.Document) (*document.Document, error) {
	url := fmt.Sprintf("%s/api/rooms/%s/documents/%s", c.baseURL, roomID, doc.ID)
	return c.sendDocument(ctx, http.MethodPut, url, doc, "update document")
}

func (c *Client) sendDocument(ctx context.Context, method, url string, doc *document.Document, op string) (*document.Document, error) {
	body, err := json.Marshal(documentPayload{
		Name:    doc.Name,
		Type:    doc.Type,
		Content: doc.Content,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, op); err != nil {
		return nil, err
	}

	var saved document.Document
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteDocument removes a document on the backend.
func (c *Client) DeleteDocument(ctx context.Context, roomID, docID string) error {
	url := fmt.Sprintf("%s/api/rooms/%s/documents/%s", c.baseURL, roomID, docID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkStatus(resp, "delete document")
}

// UploadImage sends a binary payload for an image-bearing document as a
// multipart form and returns the document with its updated content type.
func (c *Client) UploadImage(ctx context.Context, roomID, docID, filename string, data []byte) (*document.Document, error) {
	url := fmt.Sprintf("%s/api/rooms/%s/documents/%s/upload-image", c.baseURL, roomID, docID)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "upload image"); err != nil {
		return nil, err
	}

	var saved document.Document
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// FetchImage retrieves the binary image payload for a document along with
// its content type.
func (c *Client) FetchImage(ctx context.Context, roomID, docID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/api/rooms/%s/documents/%s/image", c.baseURL, roomID, docID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "fetch image"); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf(
		"backend %s error: status=%d body=%s",
		op,
		resp.StatusCode,
		string(b),
	)
}
