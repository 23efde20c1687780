package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yamunaarun/narrato-audio-book/internal/document"
	"github.com/yamunaarun/narrato-audio-book/internal/library"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "narrato.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close(db) })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	docs := store.NewDocuments(db)
	lib := library.New(docs, document.New(document.DefaultConfig()), "en", nil)
	return New(DefaultConfig(), lib, store.NewProgress(db), store.NewBookmarks(db), nil)
}

// do runs one request against the server's handler chain.
func do(t *testing.T, s *Server, method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path, user string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return do(t, s, method, path, user, bytes.NewReader(data), "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// createDoc imports an inline text document and returns its ID.
func createDoc(t *testing.T, s *Server, user, text string) string {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/documents", user,
		map[string]string{"text": text})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create document: status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp documentResponse
	decode(t, rec, &resp)
	return resp.ID
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireUser(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/documents", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = do(t, s, http.MethodGet, "/api/documents", strings.Repeat("x", 65), nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized user: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateDocumentJSON(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/documents", "alice",
		map[string]string{"title": "Notes", "text": "Hello there. This is a test."})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp documentResponse
	decode(t, rec, &resp)
	if resp.ID == "" {
		t.Fatal("response has no document ID")
	}
	if resp.Title != "Notes" {
		t.Errorf("Title = %q, want %q", resp.Title, "Notes")
	}
	if resp.Format != "txt" {
		t.Errorf("Format = %q, want %q", resp.Format, "txt")
	}
	if resp.NarrationText != "" {
		t.Error("create response should not carry the narration text")
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{name: "missing text", payload: map[string]string{"title": "Empty"}},
		{name: "bad format", payload: map[string]string{"text": "hi", "format": "pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/documents", "alice", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func multipartFile(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestCreateDocumentUpload(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartFile(t, "guide.md", "# Field Guide\n\nSpot the heron.\n")
	rec := do(t, s, http.MethodPost, "/api/documents", "alice", body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp documentResponse
	decode(t, rec, &resp)
	if resp.Title != "Field Guide" {
		t.Errorf("Title = %q, want %q", resp.Title, "Field Guide")
	}
	if resp.Format != "md" {
		t.Errorf("Format = %q, want %q", resp.Format, "md")
	}
}

func TestCreateDocumentUploadUnsupported(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartFile(t, "data.bin", "\x00\x01\x02")
	rec := do(t, s, http.MethodPost, "/api/documents", "alice", body, contentType)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d, body %s",
			rec.Code, http.StatusUnsupportedMediaType, rec.Body.String())
	}
}

func TestListDocumentsScopedToUser(t *testing.T) {
	s := newTestServer(t)

	createDoc(t, s, "alice", "Alice reads this aloud.")
	createDoc(t, s, "bob", "Bob reads this aloud.")

	rec := do(t, s, http.MethodGet, "/api/documents", "alice", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var docs []documentResponse
	decode(t, rec, &docs)
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t)
	id := createDoc(t, s, "alice", "Read me aloud.")

	rec := do(t, s, http.MethodGet, "/api/documents/"+id, "alice", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp documentResponse
	decode(t, rec, &resp)
	if resp.NarrationText == "" {
		t.Error("full document response is missing the narration text")
	}

	// Another user's document reads as not found.
	rec = do(t, s, http.MethodGet, "/api/documents/"+id, "bob", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t)
	id := createDoc(t, s, "alice", "Short lived.")

	rec := do(t, s, http.MethodDelete, "/api/documents/"+id, "alice", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = do(t, s, http.MethodDelete, "/api/documents/"+id, "alice", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProgressRoundtrip(t *testing.T) {
	s := newTestServer(t)
	id := createDoc(t, s, "alice", "One. Two. Three. Four.")

	// Nothing saved yet.
	rec := do(t, s, http.MethodGet, "/api/documents/"+id+"/progress", "alice", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty progress: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/documents/"+id+"/progress", "alice",
		map[string]interface{}{"chunk_index": 3, "position_seconds": 1.5, "rate": 1.25})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put progress: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/documents/"+id+"/progress", "alice", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get progress: status = %d", rec.Code)
	}

	var resp progressResponse
	decode(t, rec, &resp)
	if resp.ChunkIndex != 3 || resp.PositionSeconds != 1.5 || resp.Rate != 1.25 {
		t.Errorf("progress = %+v, want chunk 3 at 1.5s rate 1.25", resp)
	}

	// Progress is per user.
	rec = do(t, s, http.MethodGet, "/api/documents/"+id+"/progress", "bob", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign progress: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPutProgressValidation(t *testing.T) {
	s := newTestServer(t)
	id := createDoc(t, s, "alice", "Some text to read.")

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{name: "missing chunk index", payload: map[string]interface{}{"rate": 1.0}},
		{name: "negative chunk index", payload: map[string]interface{}{"chunk_index": -1, "rate": 1.0}},
		{name: "rate too high", payload: map[string]interface{}{"chunk_index": 0, "rate": 5.0}},
		{name: "rate too low", payload: map[string]interface{}{"chunk_index": 0, "rate": 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPut, "/api/documents/"+id+"/progress", "alice", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestPutProgressMissingDocument(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/api/documents/nope/progress", "alice",
		map[string]interface{}{"chunk_index": 0, "rate": 1.0})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestBookmarkFlow(t *testing.T) {
	s := newTestServer(t)
	id := createDoc(t, s, "alice", "A longer piece worth marking.")

	rec := doJSON(t, s, http.MethodPost, "/api/documents/"+id+"/bookmarks", "alice",
		map[string]interface{}{"label": "the good part", "chunk_index": 2, "elapsed_seconds": 12.5})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bookmark: status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created bookmarkResponse
	decode(t, rec, &created)
	if created.ID == "" {
		t.Fatal("bookmark has no ID")
	}
	if created.ChunkIndex != 2 || created.Label != "the good part" {
		t.Errorf("bookmark = %+v", created)
	}

	rec = do(t, s, http.MethodGet, "/api/documents/"+id+"/bookmarks", "alice", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list bookmarks: status = %d", rec.Code)
	}

	var listed []bookmarkResponse
	decode(t, rec, &listed)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("listed = %+v, want the created bookmark", listed)
	}

	// Deleting someone else's bookmark reads as not found.
	rec = do(t, s, http.MethodDelete, "/api/bookmarks/"+created.ID, "bob", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = do(t, s, http.MethodDelete, "/api/bookmarks/"+created.ID, "alice", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestBookmarkValidation(t *testing.T) {
	s := newTestServer(t)
	id := createDoc(t, s, "alice", "Text.")

	rec := doJSON(t, s, http.MethodPost, "/api/documents/"+id+"/bookmarks", "alice",
		map[string]interface{}{"label": "no position"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
