package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// ErrBookmarkNotFound is returned when a bookmark ID does not exist or
// belongs to another user.
var ErrBookmarkNotFound = errors.New("bookmark not found")

// Bookmarks is the repository for reading-position bookmarks.
type Bookmarks struct {
	db *gorm.DB
}

// NewBookmarks creates a bookmark repository.
func NewBookmarks(db *gorm.DB) *Bookmarks {
	return &Bookmarks{db: db}
}

// Create stores a new bookmark, assigning an ID when absent.
func (r *Bookmarks) Create(ctx context.Context, bm *Bookmark) error {
	if err := r.db.WithContext(ctx).Create(bm).Error; err != nil {
		return fmt.Errorf("%w: create bookmark: %v", narrate.ErrPersistenceFailed, err)
	}
	return nil
}

// ListByDocument returns the user's bookmarks in a document, oldest
// first.
func (r *Bookmarks) ListByDocument(ctx context.Context, userID, documentID string) ([]Bookmark, error) {
	var bookmarks []Bookmark
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Order("created_at ASC").
		Find(&bookmarks).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list bookmarks: %v", narrate.ErrPersistenceFailed, err)
	}
	return bookmarks, nil
}

// Delete removes the user's bookmark with the given ID.
func (r *Bookmarks) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Bookmark{})
	if result.Error != nil {
		return fmt.Errorf("%w: delete bookmark: %v", narrate.ErrPersistenceFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bookmark %s: %w", id, ErrBookmarkNotFound)
	}
	return nil
}
