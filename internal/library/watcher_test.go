package library

import (
	"context"
	"testing"
	"time"
)

func TestWatcherAutoImports(t *testing.T) {
	lib := newTestLibrary(t)
	dir := t.TempDir()

	w, err := lib.Watch("reader", dir)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "dropped.md", "# Dropped\n\nFresh content.")

	select {
	case doc := <-w.Imported:
		if doc.Title != "Dropped" {
			t.Errorf("auto-imported title = %q, want Dropped", doc.Title)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never imported the dropped file")
	}

	docs, err := lib.List(context.Background(), "reader")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("library holds %d documents after drop, want 1", len(docs))
	}
}

func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	lib := newTestLibrary(t)
	dir := t.TempDir()

	w, err := lib.Watch("reader", dir)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "noise.bin", "\x00\x01")

	// The unsupported file must not show up, the later markdown must.
	writeFile(t, dir, "signal.md", "# Signal\n\nContent.")

	select {
	case doc := <-w.Imported:
		if doc.Title != "Signal" {
			t.Errorf("imported %q, want only the markdown file", doc.Title)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never imported the markdown file")
	}

	docs, err := lib.List(context.Background(), "reader")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("library holds %d documents, want 1", len(docs))
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	lib := newTestLibrary(t)

	if _, err := lib.Watch("reader", "/no/such/directory"); err == nil {
		t.Error("Watch on a missing directory succeeded, want error")
	}
}
