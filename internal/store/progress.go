package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// Progress persists playback checkpoints keyed by (user, document).
type Progress struct {
	db *gorm.DB
}

// NewProgress creates a progress repository.
func NewProgress(db *gorm.DB) *Progress {
	return &Progress{db: db}
}

// SaveProgress upserts the checkpoint row for the user and document.
func (r *Progress) SaveProgress(ctx context.Context, userID, documentID string, cp narrate.Checkpoint) error {
	row := PlaybackState{
		UserID:          userID,
		DocumentID:      documentID,
		ChunkIndex:      cp.ChunkIndex,
		PositionSeconds: cp.PositionSeconds,
		Rate:            cp.Rate,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chunk_index", "position_seconds", "rate", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: save progress: %v", narrate.ErrPersistenceFailed, err)
	}
	return nil
}

// LoadProgress returns the saved checkpoint, or ErrCheckpointMissing
// when the user has none for this document.
func (r *Progress) LoadProgress(ctx context.Context, userID, documentID string) (*narrate.Checkpoint, error) {
	var row PlaybackState
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, narrate.ErrCheckpointMissing
		}
		return nil, fmt.Errorf("%w: load progress: %v", narrate.ErrPersistenceFailed, err)
	}

	return &narrate.Checkpoint{
		ChunkIndex:      row.ChunkIndex,
		PositionSeconds: row.PositionSeconds,
		Rate:            row.Rate,
	}, nil
}

// State returns the full persisted row, or ErrCheckpointMissing when
// none exists. The REST API serves this shape directly.
func (r *Progress) State(ctx context.Context, userID, documentID string) (*PlaybackState, error) {
	var row PlaybackState
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, narrate.ErrCheckpointMissing
		}
		return nil, fmt.Errorf("%w: load progress: %v", narrate.ErrPersistenceFailed, err)
	}
	return &row, nil
}

var _ narrate.ProgressStore = (*Progress)(nil)
