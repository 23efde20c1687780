package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// Documents is the repository for imported documents.
type Documents struct {
	db *gorm.DB
}

// NewDocuments creates a document repository.
func NewDocuments(db *gorm.DB) *Documents {
	return &Documents{db: db}
}

// Create stores a new document, assigning an ID when absent.
func (r *Documents) Create(ctx context.Context, doc *Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("%w: create document: %v", narrate.ErrPersistenceFailed, err)
	}
	return nil
}

// Get returns the document with the given ID.
func (r *Documents) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, narrate.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("%w: get document: %v", narrate.ErrPersistenceFailed, err)
	}
	return &doc, nil
}

// List returns the owner's documents, newest first.
func (r *Documents) List(ctx context.Context, owner string) ([]Document, error) {
	var docs []Document
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", narrate.ErrPersistenceFailed, err)
	}
	return docs, nil
}

// UpdateNarration replaces the speakable text of a document. The
// stored paragraph segmentation belongs to the old text, so it is
// cleared; chunking then follows the edited text itself.
func (r *Documents) UpdateNarration(ctx context.Context, id, text string) error {
	result := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"narration_text": text,
			"paragraphs":     nil,
		})
	if result.Error != nil {
		return fmt.Errorf("%w: update narration: %v", narrate.ErrPersistenceFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, narrate.ErrDocumentNotFound)
	}
	return nil
}

// Delete removes a document together with its playback state and
// bookmarks.
func (r *Documents) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("document_id = ?", id).Delete(&PlaybackState{}).Error; err != nil {
			return err
		}
		return tx.Where("document_id = ?", id).Delete(&Bookmark{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s: %w", id, narrate.ErrDocumentNotFound)
		}
		return fmt.Errorf("%w: delete document: %v", narrate.ErrPersistenceFailed, err)
	}
	return nil
}
