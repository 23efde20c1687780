package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "index.gob"

// Disk is the on-disk layer. Entries live as one file per key with a
// gob index for lookups, zstd-compressed when that actually shrinks
// them. Safe for concurrent use.
type Disk struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

// diskEntry fields are exported for gob.
type diskEntry struct {
	Key        string
	File       string
	Size       int64
	RawSize    int64
	Added      time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDisk opens or creates a disk layer under dir holding at most
// capacity bytes. A positive level enables zstd compression.
func NewDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if level > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		d.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
	}

	// A damaged index is not fatal, the layer restarts empty.
	if err := d.loadIndex(); err != nil {
		d.index = make(map[string]*diskEntry)
	}
	for _, entry := range d.index {
		d.size += entry.Size
	}

	return d, nil
}

// Get returns the entry for key, decompressing if needed. Entries whose
// file has gone missing or corrupt are dropped from the index.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.File)
	if err != nil {
		d.dropLocked(entry)
		d.stats.Misses++
		return nil, false
	}

	if entry.Compressed {
		if d.decoder == nil {
			d.dropLocked(entry)
			d.stats.Misses++
			return nil, false
		}
		raw, err := d.decoder.DecodeAll(data, nil)
		if err != nil {
			d.dropLocked(entry)
			d.stats.Misses++
			return nil, false
		}
		data = raw
	}

	entry.LastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put stores data under key, evicting least recently used entries until
// it fits.
func (d *Disk) Put(key string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rawSize := int64(len(data))

	payload := data
	compressed := false
	if d.encoder != nil && rawSize > 1024 {
		packed := d.encoder.EncodeAll(data, nil)
		if len(packed) < len(data) {
			payload = packed
			compressed = true
		}
	}
	diskSize := int64(len(payload))

	if existing, ok := d.index[key]; ok {
		d.dropLocked(existing)
	}

	if diskSize > d.capacity {
		return ErrEntryTooLarge
	}

	for d.size+diskSize > d.capacity && len(d.index) > 0 {
		d.evictOldestLocked()
	}

	path := filepath.Join(d.dir, key+".audio")
	if err := writeAtomic(path, payload); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		Key:        key,
		File:       path,
		Size:       diskSize,
		RawSize:    rawSize,
		Added:      now,
		LastAccess: now,
		Compressed: compressed,
	}
	d.size += diskSize
	return nil
}

// Delete removes key if present.
func (d *Disk) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.index[key]; ok {
		d.dropLocked(entry)
	}
}

// Clear removes every entry and persists the empty index.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.index {
		os.Remove(entry.File)
	}
	d.index = make(map[string]*diskEntry)
	d.size = 0
	return d.saveIndexLocked()
}

// Size returns the bytes currently held on disk.
func (d *Disk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Contains reports whether key is indexed without touching access time.
func (d *Disk) Contains(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.index[key]
	return ok
}

// Stats returns a snapshot of the layer counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	stats.Size = d.size
	stats.Entries = int64(len(d.index))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// RemoveOlderThan drops entries last used before cutoff and returns how
// many went.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for _, entry := range d.index {
		if entry.LastAccess.Before(cutoff) {
			d.dropLocked(entry)
			removed++
		}
	}
	return removed
}

// Close persists the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveIndexLocked()
}

// dropLocked is called with the lock held.
func (d *Disk) dropLocked(entry *diskEntry) {
	os.Remove(entry.File)
	delete(d.index, entry.Key)
	d.size -= entry.Size
}

// evictOldestLocked is called with the lock held.
func (d *Disk) evictOldestLocked() {
	var oldest *diskEntry
	for _, entry := range d.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest != nil {
		d.dropLocked(oldest)
		d.stats.Evictions++
	}
}

func (d *Disk) loadIndex() error {
	file, err := os.Open(filepath.Join(d.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&d.index)
}

// saveIndexLocked is called with the lock held.
func (d *Disk) saveIndexLocked() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(file).Encode(d.index)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
