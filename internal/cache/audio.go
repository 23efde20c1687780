package cache

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

// Audio is the two-level synthesis cache handed to the playback engine.
// Lookups hit memory first and fall back to disk, promoting disk hits
// back into memory. Writes land in memory synchronously and on disk in
// the background so playback never waits on the filesystem.
type Audio struct {
	memory *Memory
	disk   *Disk
	logger *log.Logger

	ttl time.Duration

	janitorStop chan struct{}
	janitorWg   sync.WaitGroup

	writeWg sync.WaitGroup
}

// NewAudio builds the cache from cfg. An empty cfg.Dir disables the
// disk layer.
func NewAudio(cfg Config, logger *log.Logger) (*Audio, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	a := &Audio{
		memory:      NewMemory(cfg.MemoryCapacity),
		logger:      logger,
		ttl:         cfg.TTL,
		janitorStop: make(chan struct{}),
	}

	if cfg.Dir != "" {
		disk, err := NewDisk(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("open disk cache: %w", err)
		}
		a.disk = disk
	}

	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		a.janitorWg.Add(1)
		go a.janitor(cfg.CleanupInterval)
	}

	return a, nil
}

// Get returns cached audio for the utterance, if any.
func (a *Audio) Get(text, voice string, rate float64) ([]byte, bool) {
	key := Key(text, voice, rate)

	if data, ok := a.memory.Get(key); ok {
		return data, true
	}

	if a.disk != nil {
		if data, ok := a.disk.Get(key); ok {
			if err := a.memory.Put(key, data); err != nil {
				a.logger.Debug("cache promote skipped", "err", err)
			}
			return data, true
		}
	}

	return nil, false
}

// Put stores synthesized audio for the utterance. Failures are logged
// and swallowed, a cold cache only costs another synthesis call.
func (a *Audio) Put(text, voice string, rate float64, data []byte) {
	if len(data) == 0 {
		return
	}
	key := Key(text, voice, rate)

	if err := a.memory.Put(key, data); err != nil {
		a.logger.Debug("memory cache put failed", "err", err)
	}

	if a.disk != nil {
		a.writeWg.Add(1)
		go func() {
			defer a.writeWg.Done()
			if err := a.disk.Put(key, data); err != nil {
				a.logger.Warn("disk cache put failed", "err", err)
			}
		}()
	}
}

// Stats returns per-layer counters. The disk stats are zero when the
// disk layer is disabled.
func (a *Audio) Stats() (memory, disk Stats) {
	memory = a.memory.Stats()
	if a.disk != nil {
		disk = a.disk.Stats()
	}
	return memory, disk
}

// Clear drops every entry from both layers.
func (a *Audio) Clear() error {
	a.memory.Clear()
	if a.disk != nil {
		return a.disk.Clear()
	}
	return nil
}

// Close stops the janitor, waits for pending disk writes and persists
// the disk index.
func (a *Audio) Close() error {
	close(a.janitorStop)
	a.janitorWg.Wait()
	a.writeWg.Wait()

	if a.disk != nil {
		return a.disk.Close()
	}
	return nil
}

func (a *Audio) janitor(interval time.Duration) {
	defer a.janitorWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pruned := a.memory.Prune(a.ttl)
			removed := 0
			if a.disk != nil {
				removed = a.disk.RemoveOlderThan(time.Now().Add(-a.ttl))
			}
			if pruned+removed > 0 {
				a.logger.Debug("cache janitor swept",
					"memory", pruned, "disk", removed)
			}
		case <-a.janitorStop:
			return
		}
	}
}

var _ narrate.AudioCache = (*Audio)(nil)
