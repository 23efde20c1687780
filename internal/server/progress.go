package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// progressRequest is the PUT body for a playback checkpoint. The chunk
// index rides a pointer so an explicit zero passes required.
type progressRequest struct {
	ChunkIndex      *int    `json:"chunk_index" validate:"required,min=0"`
	PositionSeconds float64 `json:"position_seconds" validate:"min=0"`
	Rate            float64 `json:"rate" validate:"required,min=0.5,max=2"`
}

type progressResponse struct {
	DocumentID      string    `json:"document_id"`
	ChunkIndex      int       `json:"chunk_index"`
	PositionSeconds float64   `json:"position_seconds"`
	Rate            float64   `json:"rate"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// getProgress handles GET /api/documents/:id/progress.
func (s *Server) getProgress(c echo.Context) error {
	ctx := c.Request().Context()
	owner := currentUser(c)
	docID := c.Param("id")

	if _, err := s.lib.Get(ctx, owner, docID); err != nil {
		return s.httpError(c, err)
	}

	state, err := s.progress.State(ctx, owner, docID)
	if err != nil {
		return s.httpError(c, err)
	}

	return c.JSON(http.StatusOK, progressResponse{
		DocumentID:      state.DocumentID,
		ChunkIndex:      state.ChunkIndex,
		PositionSeconds: state.PositionSeconds,
		Rate:            state.Rate,
		UpdatedAt:       state.UpdatedAt,
	})
}

// putProgress handles PUT /api/documents/:id/progress, upserting the
// caller's checkpoint for the document.
func (s *Server) putProgress(c echo.Context) error {
	ctx := c.Request().Context()
	owner := currentUser(c)
	docID := c.Param("id")

	var req progressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("validation_failed", err.Error()))
	}

	if _, err := s.lib.Get(ctx, owner, docID); err != nil {
		return s.httpError(c, err)
	}

	cp := narrate.Checkpoint{
		ChunkIndex:      *req.ChunkIndex,
		PositionSeconds: req.PositionSeconds,
		Rate:            req.Rate,
	}
	if err := s.progress.SaveProgress(ctx, owner, docID, cp); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
