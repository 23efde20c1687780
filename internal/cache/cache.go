// Package cache stores synthesized audio so repeated narration of the
// same text does not hit a synthesis backend twice. It layers a small
// in-memory LRU over a compressed on-disk store that survives restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrEntryTooLarge is returned when a single entry exceeds the capacity
// of the layer it was offered to.
var ErrEntryTooLarge = errors.New("cache: entry exceeds capacity")

// Config holds sizing and housekeeping settings for the audio cache.
type Config struct {
	// Dir is the directory for the disk layer. Empty disables the disk
	// layer and the cache runs in memory only.
	Dir string

	// MemoryCapacity is the in-memory layer budget in bytes.
	MemoryCapacity int64

	// DiskCapacity is the disk layer budget in bytes.
	DiskCapacity int64

	// CompressionLevel is the zstd level for disk entries. Zero or
	// negative disables compression.
	CompressionLevel int

	// TTL is how long an entry may sit unused before the janitor drops
	// it. Zero disables expiry.
	TTL time.Duration

	// CleanupInterval is how often the janitor runs. Zero disables the
	// janitor.
	CleanupInterval time.Duration
}

// DefaultConfig returns the cache settings used when none are given.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024,
		DiskCapacity:     1024 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Stats holds counters for one cache layer.
type Stats struct {
	Capacity  int64
	Size      int64
	Entries   int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

// Key derives the cache key for one synthesized utterance. The rate is
// quantized to two decimals so float jitter does not split entries that
// sound identical.
func Key(text, voice string, rate float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f", text, voice, rate)))
	return hex.EncodeToString(sum[:16])
}
