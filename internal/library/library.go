// Package library manages the user's imported documents: filesystem
// import, listing, fuzzy title search and a watch folder.
package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
	"github.com/sahilm/fuzzy"

	"github.com/yamunaarun/narrato-audio-book/internal/document"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// searchPatterns are the file globs eligible for import sweeps.
var searchPatterns = []string{
	"*.md", "*.mdown", "*.mkd", "*.markdown", "*.txt", "*.text",
}

// Library ties document extraction to the document store.
type Library struct {
	docs      *store.Documents
	extractor *document.Extractor
	language  string
	logger    *log.Logger
}

// New creates a library. The language code is stamped on every import.
func New(docs *store.Documents, extractor *document.Extractor, language string, logger *log.Logger) *Library {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Library{
		docs:      docs,
		extractor: extractor,
		language:  language,
		logger:    logger,
	}
}

// Import extracts the file at path and stores it for owner.
func (l *Library) Import(ctx context.Context, owner, path string) (*store.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return l.ImportReader(ctx, owner, filepath.Base(path), file,
		strings.TrimPrefix(filepath.Ext(path), "."))
}

// ImportReader extracts a document from r and stores it for owner. The
// name seeds the title when the content provides none.
func (l *Library) ImportReader(ctx context.Context, owner, name string, r io.Reader, format string) (*store.Document, error) {
	extraction, err := l.extractor.Extract(r, format)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", name, err)
	}

	title := extraction.Title
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	doc := &store.Document{
		Owner:         owner,
		Title:         title,
		SourceFormat:  extraction.Format,
		LanguageCode:  l.language,
		SourceText:    extraction.SourceText,
		NarrationText: extraction.NarrationText,
	}
	if err := doc.SetParagraphs(extraction.Paragraphs); err != nil {
		return nil, fmt.Errorf("import %s: encode paragraphs: %w", name, err)
	}

	if err := l.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	l.logger.Info("imported document",
		"id", doc.ID, "title", title, "format", extraction.Format)
	return doc, nil
}

// ImportDir sweeps dir recursively and imports every eligible file.
// Files that fail extraction are skipped with a log line.
func (l *Library) ImportDir(ctx context.Context, owner, dir string) ([]store.Document, error) {
	ch, err := gitcha.FindAllFilesExcept(dir, searchPatterns, nil)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", dir, err)
	}

	var imported []store.Document
	for res := range ch {
		select {
		case <-ctx.Done():
			return imported, ctx.Err()
		default:
		}

		doc, err := l.Import(ctx, owner, res.Path)
		if err != nil {
			l.logger.Warn("skipping file", "path", res.Path, "err", err)
			continue
		}
		imported = append(imported, *doc)
	}
	return imported, nil
}

// List returns the owner's documents, newest first.
func (l *Library) List(ctx context.Context, owner string) ([]store.Document, error) {
	return l.docs.List(ctx, owner)
}

// Get returns one of the owner's documents. Another user's document
// reads as not found.
func (l *Library) Get(ctx context.Context, owner, id string) (*store.Document, error) {
	doc, err := l.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Owner != owner {
		return nil, fmt.Errorf("document %s: %w", id, narrate.ErrDocumentNotFound)
	}
	return doc, nil
}

// Delete removes one of the owner's documents with its playback state
// and bookmarks.
func (l *Library) Delete(ctx context.Context, owner, id string) error {
	if _, err := l.Get(ctx, owner, id); err != nil {
		return err
	}
	return l.docs.Delete(ctx, id)
}

// UpdateNarration replaces the speakable text of one of the owner's
// documents.
func (l *Library) UpdateNarration(ctx context.Context, owner, id, text string) error {
	if _, err := l.Get(ctx, owner, id); err != nil {
		return err
	}
	return l.docs.UpdateNarration(ctx, id, text)
}

// Find returns the owner's documents whose titles fuzzy-match query,
// best match first. An empty query returns everything.
func (l *Library) Find(ctx context.Context, owner, query string) ([]store.Document, error) {
	docs, err := l.docs.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return docs, nil
	}

	matches := fuzzy.FindFrom(query, titleSource(docs))
	found := make([]store.Document, 0, len(matches))
	for _, m := range matches {
		found = append(found, docs[m.Index])
	}
	return found, nil
}

type titleSource []store.Document

func (s titleSource) String(i int) string { return s[i].Title }
func (s titleSource) Len() int            { return len(s) }
