package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

func TestExtractPlainText(t *testing.T) {
	source := "First paragraph.\r\n\r\nSecond paragraph here.\n\n\nThird."

	got, err := New(DefaultConfig()).Extract(strings.NewReader(source), "txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := "First paragraph.\n\nSecond paragraph here.\n\nThird."
	if got.NarrationText != want {
		t.Errorf("NarrationText = %q, want %q", got.NarrationText, want)
	}
	if got.SourceText != source {
		t.Error("SourceText was not kept verbatim")
	}
	if got.Format != "txt" {
		t.Errorf("Format = %q, want txt", got.Format)
	}
	if got.Paragraphs != nil {
		t.Errorf("Paragraphs = %v, want nil for plain text", got.Paragraphs)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	_, err := New(DefaultConfig()).Extract(strings.NewReader("   \n\n  "), "txt")
	if !errors.Is(err, narrate.ErrExtractionFailed) {
		t.Errorf("Extract returned %v, want ErrExtractionFailed", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := New(DefaultConfig()).Extract(strings.NewReader("content"), "pdf")
	if !errors.Is(err, narrate.ErrUnsupportedFormat) {
		t.Errorf("Extract returned %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractFormatAliases(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"txt", "txt"},
		{"TEXT", "txt"},
		{"", "txt"},
		{".md", "md"},
		{"Markdown", "md"},
	}

	for _, tt := range tests {
		got, err := New(DefaultConfig()).Extract(strings.NewReader("Some content."), tt.format)
		if err != nil {
			t.Fatalf("Extract(%q) failed: %v", tt.format, err)
		}
		if got.Format != tt.want {
			t.Errorf("Extract(%q).Format = %q, want %q", tt.format, got.Format, tt.want)
		}
	}
}

const sampleMarkdown = `# Field Guide

Read the [manual](https://example.com/manual) first.

- first item
- second item

> Stay calm.

` + "```go\nfmt.Println(\"hi\")\n```" + `

A closing paragraph.
`

func TestExtractMarkdown(t *testing.T) {
	got, err := New(DefaultConfig()).Extract(strings.NewReader(sampleMarkdown), "md")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if got.Title != "Field Guide" {
		t.Errorf("Title = %q, want %q", got.Title, "Field Guide")
	}
	if got.Format != "md" {
		t.Errorf("Format = %q, want md", got.Format)
	}

	// The code block is silent by default, five blocks speak.
	if len(got.Paragraphs) != 5 {
		t.Fatalf("Paragraphs = %d blocks %v, want 5", len(got.Paragraphs), got.Paragraphs)
	}
	if got.Paragraphs[0] != "Field Guide." {
		t.Errorf("heading spoken as %q, want %q", got.Paragraphs[0], "Field Guide.")
	}
	if !strings.Contains(got.Paragraphs[1], "link to manual") {
		t.Errorf("link spoken as %q, want a %q announcement", got.Paragraphs[1], "link to")
	}
	if got.Paragraphs[2] != "first item. second item." {
		t.Errorf("list spoken as %q, want %q", got.Paragraphs[2], "first item. second item.")
	}
	if got.Paragraphs[3] != "Quote: Stay calm." {
		t.Errorf("blockquote spoken as %q, want %q", got.Paragraphs[3], "Quote: Stay calm.")
	}
	if strings.Contains(got.NarrationText, "Println") {
		t.Error("code block leaked into narration")
	}
	if got.NarrationText != strings.Join(got.Paragraphs, "\n\n") {
		t.Error("NarrationText does not match the joined paragraphs")
	}
}

func TestExtractMarkdownIncludeCode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeCode = true

	got, err := New(cfg).Extract(strings.NewReader(sampleMarkdown), "md")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(got.NarrationText, "Code block in go") {
		t.Errorf("narration %q does not announce the code block", got.NarrationText)
	}
}

func TestExtractMarkdownImages(t *testing.T) {
	source := "Look at ![a diagram](pic.png) here."

	got, err := New(DefaultConfig()).Extract(strings.NewReader(source), "md")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.NarrationText != "Look at image: a diagram here." {
		t.Errorf("NarrationText = %q, want the image announced", got.NarrationText)
	}

	muted := DefaultConfig()
	muted.AnnounceImages = false
	got, err = New(muted).Extract(strings.NewReader(source), "md")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.NarrationText != "Look at here." {
		t.Errorf("NarrationText = %q, want the image dropped", got.NarrationText)
	}
}

func TestExtractMarkdownPlainLinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnnounceLinks = false

	got, err := New(cfg).Extract(strings.NewReader("See the [manual](https://example.com)."), "md")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.NarrationText != "See the manual." {
		t.Errorf("NarrationText = %q, want the bare link text", got.NarrationText)
	}
}

func TestExtractMarkdownEmpty(t *testing.T) {
	_, err := New(DefaultConfig()).Extract(strings.NewReader("<!-- nothing -->"), "md")
	if !errors.Is(err, narrate.ErrExtractionFailed) {
		t.Errorf("Extract returned %v, want ErrExtractionFailed", err)
	}
}
