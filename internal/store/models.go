package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is an imported text prepared for narration. The source text
// is kept verbatim; the narration text is the speakable form and stays
// editable until the user converts the document to audio.
type Document struct {
	ID            string         `json:"id" gorm:"primaryKey;size:36"`
	Owner         string         `json:"owner" gorm:"size:64;not null;index"`
	Title         string         `json:"title" gorm:"size:255;not null"`
	SourceFormat  string         `json:"source_format" gorm:"size:16"`
	LanguageCode  string         `json:"language_code" gorm:"size:16"`
	SourceText    string         `json:"source_text" gorm:"type:text"`
	NarrationText string         `json:"narration_text" gorm:"type:text"`
	Paragraphs    datatypes.JSON `json:"paragraphs,omitempty"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns an ID when none was given.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// SetParagraphs stores an explicit paragraph segmentation.
func (d *Document) SetParagraphs(paragraphs []string) error {
	if len(paragraphs) == 0 {
		d.Paragraphs = nil
		return nil
	}
	data, err := json.Marshal(paragraphs)
	if err != nil {
		return err
	}
	d.Paragraphs = datatypes.JSON(data)
	return nil
}

// ParagraphList returns the stored segmentation, or nil when the
// document has none.
func (d *Document) ParagraphList() []string {
	if len(d.Paragraphs) == 0 {
		return nil
	}
	var paragraphs []string
	if err := json.Unmarshal(d.Paragraphs, &paragraphs); err != nil {
		return nil
	}
	return paragraphs
}

// PlaybackState is the last known playback position of one user in one
// document. One row per (user, document); upserted on every checkpoint.
// It is a resume hint, not an authoritative position.
type PlaybackState struct {
	UserID          string    `json:"user_id" gorm:"primaryKey;size:64"`
	DocumentID      string    `json:"document_id" gorm:"primaryKey;size:36"`
	ChunkIndex      int       `json:"chunk_index" gorm:"not null"`
	PositionSeconds float64   `json:"position_seconds"`
	Rate            float64   `json:"rate" gorm:"not null;default:1"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (PlaybackState) TableName() string {
	return "playback_states"
}

// Bookmark marks a position in a document the user wants to return to.
// The chunk index may go stale after the document is edited; readers
// must tolerate an out-of-range value.
type Bookmark struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	UserID         string    `json:"user_id" gorm:"size:64;not null;index:idx_bookmarks_user_doc"`
	DocumentID     string    `json:"document_id" gorm:"size:36;not null;index:idx_bookmarks_user_doc"`
	Label          string    `json:"label" gorm:"size:255"`
	ChunkIndex     int       `json:"chunk_index" gorm:"not null"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (Bookmark) TableName() string {
	return "bookmarks"
}

// BeforeCreate assigns an ID when none was given.
func (b *Bookmark) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
