// Package scorecache memoizes scorer output keyed by message fingerprint.
//
// The cache is deliberately NOT a strict LRU: when occupancy reaches the hard
// cap, a large batch of the oldest-inserted entries is purged in one pass.
// Eviction frequency is traded against per-insert cost, and callers must not
// assume most-recently-used retention beyond the last eviction cycle
package scorecache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Entry is an immutable cached score. Entries are evicted, never mutated
type Entry struct {
	Fingerprint string
	Probability float64
	ComputedAt  time.Time
}

// Stats is a point-in-time snapshot of cache counters
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evicted   uint64
	Occupancy int
}

// Cache is safe for concurrent use. An eviction pass plus the triggering
// insert appear atomic to concurrent readers
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string // insertion order, oldest first

	cap        int
	evictBatch int

	hits    atomic.Uint64
	misses  atomic.Uint64
	evicted atomic.Uint64
}

const (
	// DefaultCap is the occupancy ceiling that triggers a purge
	DefaultCap = 500
	// DefaultEvictBatch is how many oldest entries one purge removes
	DefaultEvictBatch = 300
)

// New constructs a Cache. Non-positive arguments fall back to the defaults;
// evictBatch is clamped to capacity
func New(capacity, evictBatch int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if evictBatch <= 0 {
		evictBatch = DefaultEvictBatch
	}
	if evictBatch > capacity {
		evictBatch = capacity
	}
	return &Cache{
		entries:    make(map[string]Entry, capacity),
		order:      make([]string, 0, capacity),
		cap:        capacity,
		evictBatch: evictBatch,
	}
}

// Get returns the cached entry for fp if present
func (c *Cache) Get(fp string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[fp]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Put inserts an entry, purging the oldest batch first when the cache is full.
// Re-inserting an existing fingerprint overwrites in place without changing
// its insertion position
func (c *Cache) Put(fp string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; exists {
		c.entries[fp] = e
		return
	}

	if len(c.entries) >= c.cap {
		n := c.evictBatch
		if n > len(c.order) {
			n = len(c.order)
		}
		for _, old := range c.order[:n] {
			delete(c.entries, old)
		}
		c.order = append(c.order[:0], c.order[n:]...)
		c.evicted.Add(uint64(n))
	}

	c.entries[fp] = e
	c.order = append(c.order, fp)
}

// Len returns the current occupancy
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns the current counters and occupancy
func (c *Cache) Snapshot() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evicted:   c.evicted.Load(),
		Occupancy: c.Len(),
	}
}
