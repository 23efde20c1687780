package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

// bookmarkRequest is the POST body for a new bookmark. The chunk index
// rides a pointer so an explicit zero passes required.
type bookmarkRequest struct {
	Label          string  `json:"label" validate:"max=255"`
	ChunkIndex     *int    `json:"chunk_index" validate:"required,min=0"`
	ElapsedSeconds float64 `json:"elapsed_seconds" validate:"min=0"`
}

type bookmarkResponse struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	Label          string    `json:"label,omitempty"`
	ChunkIndex     int       `json:"chunk_index"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

func toBookmarkResponse(bm *store.Bookmark) bookmarkResponse {
	return bookmarkResponse{
		ID:             bm.ID,
		DocumentID:     bm.DocumentID,
		Label:          bm.Label,
		ChunkIndex:     bm.ChunkIndex,
		ElapsedSeconds: bm.ElapsedSeconds,
		CreatedAt:      bm.CreatedAt,
	}
}

// listBookmarks handles GET /api/documents/:id/bookmarks.
func (s *Server) listBookmarks(c echo.Context) error {
	ctx := c.Request().Context()
	owner := currentUser(c)
	docID := c.Param("id")

	if _, err := s.lib.Get(ctx, owner, docID); err != nil {
		return s.httpError(c, err)
	}

	bookmarks, err := s.bookmarks.ListByDocument(ctx, owner, docID)
	if err != nil {
		return s.httpError(c, err)
	}

	resp := make([]bookmarkResponse, 0, len(bookmarks))
	for i := range bookmarks {
		resp = append(resp, toBookmarkResponse(&bookmarks[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// createBookmark handles POST /api/documents/:id/bookmarks.
func (s *Server) createBookmark(c echo.Context) error {
	ctx := c.Request().Context()
	owner := currentUser(c)
	docID := c.Param("id")

	var req bookmarkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("validation_failed", err.Error()))
	}

	if _, err := s.lib.Get(ctx, owner, docID); err != nil {
		return s.httpError(c, err)
	}

	bm := store.Bookmark{
		UserID:         owner,
		DocumentID:     docID,
		Label:          req.Label,
		ChunkIndex:     *req.ChunkIndex,
		ElapsedSeconds: req.ElapsedSeconds,
	}
	if err := s.bookmarks.Create(ctx, &bm); err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookmarkResponse(&bm))
}

// deleteBookmark handles DELETE /api/bookmarks/:id. Deleting another
// user's bookmark reads as not found.
func (s *Server) deleteBookmark(c echo.Context) error {
	if err := s.bookmarks.Delete(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
