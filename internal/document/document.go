// Package document turns imported files into speakable narration text.
// Extraction keeps the source verbatim and derives a narration form plus
// an explicit paragraph segmentation where the format provides one.
package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// Config controls what the extractor reads aloud.
type Config struct {
	// IncludeCode reads code blocks and inline code aloud.
	IncludeCode bool
	// AnnounceLinks speaks links as "link to <text>" instead of bare text.
	AnnounceLinks bool
	// AnnounceImages speaks images as "image: <alt>".
	AnnounceImages bool
}

// DefaultConfig returns the extraction settings used when none are given.
func DefaultConfig() Config {
	return Config{
		IncludeCode:    false,
		AnnounceLinks:  true,
		AnnounceImages: true,
	}
}

// Extraction is the speakable form of one imported file.
type Extraction struct {
	Title         string   // First top-level heading, empty when absent
	SourceText    string   // Original content, verbatim
	NarrationText string   // Speakable text, paragraphs joined by blank lines
	Paragraphs    []string // Explicit segmentation, nil for flat formats
	Format        string   // Normalized format name
}

// Extractor converts supported formats into narration text.
type Extractor struct {
	cfg Config
}

// New creates an extractor with the given settings.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract reads r and produces the speakable form for the given format.
// Unknown formats and empty files fail with ExtractionFailed.
func (e *Extractor) Extract(r io.Reader, format string) (*Extraction, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read source: %v", narrate.ErrExtractionFailed, err)
	}

	switch normalizeFormat(format) {
	case "txt":
		return e.extractPlain(source)
	case "md":
		return e.extractMarkdown(source)
	default:
		return nil, fmt.Errorf("format %q: %w", format, narrate.ErrUnsupportedFormat)
	}
}

func (e *Extractor) extractPlain(source []byte) (*Extraction, error) {
	text := strings.ReplaceAll(string(source), "\r\n", "\n")

	// Blank lines mark paragraphs; clean each one separately so the
	// breaks survive whitespace normalization.
	var paragraphs []string
	for _, block := range blankLineSplit(text) {
		if cleaned := PrepareNarration(block); cleaned != "" {
			paragraphs = append(paragraphs, cleaned)
		}
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w: document is empty", narrate.ErrExtractionFailed)
	}

	return &Extraction{
		SourceText:    string(source),
		NarrationText: strings.Join(paragraphs, "\n\n"),
		Format:        "txt",
	}, nil
}

// Supported reports whether the extractor understands a format or file
// extension.
func Supported(format string) bool {
	switch normalizeFormat(format) {
	case "txt", "md":
		return true
	default:
		return false
	}
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch format {
	case "txt", "text", "":
		return "txt"
	case "md", "markdown", "mdown", "mkd":
		return "md"
	default:
		return format
	}
}
