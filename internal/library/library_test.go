package library

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/yamunaarun/narrato-audio-book/internal/document"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
	"github.com/yamunaarun/narrato-audio-book/narrate"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close(db) })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrating store: %v", err)
	}

	return New(store.NewDocuments(db), document.New(document.DefaultConfig()),
		"en", log.New(io.Discard))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestImportPlainFile(t *testing.T) {
	lib := newTestLibrary(t)
	path := writeFile(t, t.TempDir(), "story.txt", "One sentence.\n\nAnother one.")

	doc, err := lib.Import(context.Background(), "reader", path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if doc.Title != "story" {
		t.Errorf("Title = %q, want the file name stem", doc.Title)
	}
	if doc.SourceFormat != "txt" || doc.LanguageCode != "en" {
		t.Errorf("stored format/language = %s/%s, want txt/en", doc.SourceFormat, doc.LanguageCode)
	}
	if doc.NarrationText != "One sentence.\n\nAnother one." {
		t.Errorf("NarrationText = %q", doc.NarrationText)
	}

	got, err := lib.Get(context.Background(), "reader", doc.ID)
	if err != nil {
		t.Fatalf("Get after Import failed: %v", err)
	}
	if got.Title != doc.Title {
		t.Errorf("stored document title = %q, want %q", got.Title, doc.Title)
	}
}

func TestImportMarkdownUsesHeadingTitle(t *testing.T) {
	lib := newTestLibrary(t)
	path := writeFile(t, t.TempDir(), "notes.md", "# My Essay\n\nOpening thoughts.")

	doc, err := lib.Import(context.Background(), "reader", path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if doc.Title != "My Essay" {
		t.Errorf("Title = %q, want the level one heading", doc.Title)
	}
	if paragraphs := doc.ParagraphList(); len(paragraphs) != 2 {
		t.Errorf("ParagraphList = %v, want 2 blocks", paragraphs)
	}
}

func TestImportUnsupportedExtension(t *testing.T) {
	lib := newTestLibrary(t)
	path := writeFile(t, t.TempDir(), "data.bin", "\x00\x01")

	_, err := lib.Import(context.Background(), "reader", path)
	if !errors.Is(err, narrate.ErrUnsupportedFormat) {
		t.Errorf("Import returned %v, want ErrUnsupportedFormat", err)
	}
}

func TestImportDir(t *testing.T) {
	lib := newTestLibrary(t)
	dir := t.TempDir()
	writeFile(t, dir, "alpha.md", "# Alpha\n\nBody text.")
	writeFile(t, dir, "beta.txt", "Beta body.")
	writeFile(t, dir, "binary.bin", "\x00")

	imported, err := lib.ImportDir(context.Background(), "reader", dir)
	if err != nil {
		t.Fatalf("ImportDir failed: %v", err)
	}
	if len(imported) != 2 {
		t.Fatalf("ImportDir imported %d documents, want 2", len(imported))
	}

	titles := map[string]bool{}
	for _, doc := range imported {
		titles[doc.Title] = true
	}
	if !titles["Alpha"] || !titles["beta"] {
		t.Errorf("imported titles = %v, want Alpha and beta", titles)
	}
}

func TestGetScopedToOwner(t *testing.T) {
	lib := newTestLibrary(t)
	path := writeFile(t, t.TempDir(), "private.txt", "Secret notes.")

	doc, err := lib.Import(context.Background(), "alice", path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if _, err := lib.Get(context.Background(), "bob", doc.ID); !errors.Is(err, narrate.ErrDocumentNotFound) {
		t.Errorf("Get by another user returned %v, want ErrDocumentNotFound", err)
	}
	if err := lib.Delete(context.Background(), "bob", doc.ID); !errors.Is(err, narrate.ErrDocumentNotFound) {
		t.Errorf("Delete by another user returned %v, want ErrDocumentNotFound", err)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	lib := newTestLibrary(t)
	path := writeFile(t, t.TempDir(), "gone.txt", "Short lived.")
	ctx := context.Background()

	doc, err := lib.Import(ctx, "reader", path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if err := lib.Delete(ctx, "reader", doc.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := lib.Get(ctx, "reader", doc.ID); !errors.Is(err, narrate.ErrDocumentNotFound) {
		t.Errorf("Get after Delete returned %v, want ErrDocumentNotFound", err)
	}
}

func TestFindFuzzyMatchesTitles(t *testing.T) {
	lib := newTestLibrary(t)
	dir := t.TempDir()
	ctx := context.Background()

	for name, content := range map[string]string{
		"a.md": "# Winter Notes\n\nCold.",
		"b.md": "# Summer Journal\n\nWarm.",
		"c.md": "# Winter Nights\n\nDark.",
	} {
		if _, err := lib.Import(ctx, "reader", writeFile(t, dir, name, content)); err != nil {
			t.Fatalf("Import %s failed: %v", name, err)
		}
	}

	found, err := lib.Find(ctx, "reader", "winter")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Find(winter) returned %d documents, want 2", len(found))
	}
	for _, doc := range found {
		if doc.Title != "Winter Notes" && doc.Title != "Winter Nights" {
			t.Errorf("Find(winter) returned %q", doc.Title)
		}
	}

	all, err := lib.Find(ctx, "reader", "")
	if err != nil {
		t.Fatalf("Find with empty query failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Find(\"\") returned %d documents, want all 3", len(all))
	}

	none, err := lib.Find(ctx, "reader", "xyzzy")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Find(xyzzy) returned %v, want none", none)
	}
}
