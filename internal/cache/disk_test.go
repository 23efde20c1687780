package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDisk_RoundtripCompressed(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	defer d.Close()

	// Repetitive payload over the 1KB threshold so compression kicks in.
	payload := bytes.Repeat([]byte("narration audio frame "), 200)

	if err := d.Put("utterance", payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if d.Size() >= int64(len(payload)) {
		t.Errorf("on-disk size %d not smaller than raw %d", d.Size(), len(payload))
	}

	data, ok := d.Get("utterance")
	if !ok {
		t.Fatal("Get missed freshly stored key")
	}
	if !bytes.Equal(data, payload) {
		t.Error("Get returned different bytes than stored")
	}
}

func TestDisk_ReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()

	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	if err := d.Put("persisted", []byte("mp3 bytes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	data, ok := reopened.Get("persisted")
	if !ok {
		t.Fatal("entry lost across reopen")
	}
	if !bytes.Equal(data, []byte("mp3 bytes")) {
		t.Errorf("Get returned %q, want %q", data, "mp3 bytes")
	}
}

func TestDisk_MissingFileDropsEntry(t *testing.T) {
	dir := t.TempDir()

	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	defer d.Close()

	if err := d.Put("doomed", []byte("bytes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "doomed.audio")); err != nil {
		t.Fatalf("removing cache file: %v", err)
	}

	if _, ok := d.Get("doomed"); ok {
		t.Error("Get hit an entry whose file is gone")
	}
	if d.Contains("doomed") {
		t.Error("entry still indexed after its file vanished")
	}
}

func TestDisk_EvictsLeastRecentlyUsed(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	defer d.Close()

	for _, key := range []string{"first", "second", "third"} {
		if err := d.Put(key, make([]byte, 40)); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if d.Contains("first") {
		t.Error("oldest entry survived, want evicted")
	}
	for _, key := range []string{"second", "third"} {
		if !d.Contains(key) {
			t.Errorf("%s was evicted, want kept", key)
		}
	}
	if got := d.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestDisk_RemoveOlderThan(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	defer d.Close()

	d.Put("stale-1", []byte("a"))
	d.Put("stale-2", []byte("b"))
	time.Sleep(5 * time.Millisecond)

	if removed := d.RemoveOlderThan(time.Now()); removed != 2 {
		t.Errorf("RemoveOlderThan removed %d, want 2", removed)
	}
	if d.Size() != 0 {
		t.Errorf("Size = %d after sweep, want 0", d.Size())
	}
}

func TestDisk_EntryTooLarge(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	defer d.Close()

	err = d.Put("big", make([]byte, 20))
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("Put oversized entry returned %v, want ErrEntryTooLarge", err)
	}
}
