package server

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

// createDocumentRequest is the JSON import body. Multipart uploads
// carry the document in a "file" field instead.
type createDocumentRequest struct {
	// Title seeds the document title when the content provides none,
	// for example markdown without a level-1 heading.
	Title  string `json:"title" validate:"max=255"`
	Text   string `json:"text" validate:"required"`
	Format string `json:"format" validate:"omitempty,oneof=txt text md markdown mdown mkd"`
}

type documentResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Format        string    `json:"format"`
	Language      string    `json:"language,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	NarrationText string    `json:"narration_text,omitempty"`
	Paragraphs    []string  `json:"paragraphs,omitempty"`
}

// toDocumentResponse shapes a stored document for the wire. List
// responses stay light; full includes the speakable text.
func toDocumentResponse(doc *store.Document, full bool) documentResponse {
	resp := documentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		Format:    doc.SourceFormat,
		Language:  doc.LanguageCode,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if full {
		resp.NarrationText = doc.NarrationText
		resp.Paragraphs = doc.ParagraphList()
	}
	return resp
}

// createDocument handles POST /api/documents. It accepts either a
// multipart file upload or a JSON body with inline text.
func (s *Server) createDocument(c echo.Context) error {
	owner := currentUser(c)

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return s.createDocumentFromFile(c, owner)
	}

	var req createDocumentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("validation_failed", err.Error()))
	}

	name := req.Title
	if name == "" {
		name = "untitled"
	}
	format := req.Format
	if format == "" {
		format = "txt"
	}

	doc, err := s.lib.ImportReader(c.Request().Context(), owner, name, strings.NewReader(req.Text), format)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, toDocumentResponse(doc, false))
}

func (s *Server) createDocumentFromFile(c echo.Context, owner string) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			errorBody("missing_file", "multipart upload requires a file field"))
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_file", err.Error()))
	}
	defer src.Close()

	format := strings.TrimPrefix(filepath.Ext(fh.Filename), ".")
	doc, err := s.lib.ImportReader(c.Request().Context(), owner, fh.Filename, src, format)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, toDocumentResponse(doc, false))
}

// listDocuments handles GET /api/documents.
func (s *Server) listDocuments(c echo.Context) error {
	docs, err := s.lib.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.httpError(c, err)
	}

	resp := make([]documentResponse, 0, len(docs))
	for i := range docs {
		resp = append(resp, toDocumentResponse(&docs[i], false))
	}
	return c.JSON(http.StatusOK, resp)
}

// getDocument handles GET /api/documents/:id.
func (s *Server) getDocument(c echo.Context) error {
	doc, err := s.lib.Get(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc, true))
}

// deleteDocument handles DELETE /api/documents/:id. Playback state and
// bookmarks go with the document.
func (s *Server) deleteDocument(c echo.Context) error {
	if err := s.lib.Delete(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
