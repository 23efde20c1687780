package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the in-memory layer: a byte-budgeted LRU map. Safe for
// concurrent use.
type Memory struct {
	capacity int64
	size     int64

	entries map[string]*list.Element
	order   *list.List

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key   string
	data  []byte
	size  int64
	added time.Time
}

// NewMemory creates a memory layer holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the entry for key and marks it most recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}

	m.order.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).data, true
}

// Put stores data under key, evicting least recently used entries until
// it fits. An entry larger than the whole layer is refused.
func (m *Memory) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(len(data))

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		m.order.MoveToFront(elem)
		m.size += size - entry.size
		entry.data = data
		entry.size = size
		entry.added = time.Now()
		return nil
	}

	if size > m.capacity {
		return ErrEntryTooLarge
	}

	for m.size+size > m.capacity && m.order.Len() > 0 {
		m.evictOldest()
	}

	elem := m.order.PushFront(&memoryEntry{
		key:   key,
		data:  data,
		size:  size,
		added: time.Now(),
	})
	m.entries[key] = elem
	m.size += size
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.remove(elem)
	}
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*list.Element)
	m.order.Init()
	m.size = 0
}

// Size returns the bytes currently held.
func (m *Memory) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Contains reports whether key is cached without touching LRU order.
func (m *Memory) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	return ok
}

// Stats returns a snapshot of the layer counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats
	stats.Size = m.size
	stats.Entries = int64(len(m.entries))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Prune drops entries older than maxAge and returns how many went.
func (m *Memory) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0

	elem := m.order.Back()
	for elem != nil {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).added.Before(cutoff) {
			m.remove(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// evictOldest is called with the lock held.
func (m *Memory) evictOldest() {
	if elem := m.order.Back(); elem != nil {
		m.remove(elem)
		m.stats.Evictions++
	}
}

// remove is called with the lock held.
func (m *Memory) remove(elem *list.Element) {
	m.order.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.size -= entry.size
}
