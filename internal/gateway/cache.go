package gateway

import (
	"context"
	"sync"
	"time"
)

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Cache maps a fingerprint to a previously computed payload and the cost that
// was paid to compute it.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get never errors; a backing-store failure is a miss.
//   - Set never errors and never blocks the response; backing-store failures
//     are logged and swallowed by the implementation.
//   - Get must not return an entry past its TTL; expired entries are evicted
//     lazily on read.
type Cache[P any] interface {
	Get(ctx context.Context, fingerprint string) (payload P, cost float64, found bool)
	Set(ctx context.Context, fingerprint string, payload P, cost float64, ttl time.Duration)
	Clear(ctx context.Context)
	Stats() CacheStats
}

type memEntry[P any] struct {
	payload   P
	cost      float64
	expiresAt time.Time
}

// MemoryCache is the in-process Cache implementation.
type MemoryCache[P any] struct {
	mu      sync.Mutex
	entries map[string]memEntry[P]
	hits    int
	misses  int
	clock   Clock
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache[P any](clock Clock) *MemoryCache[P] {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryCache[P]{
		entries: make(map[string]memEntry[P]),
		clock:   clock,
	}
}

func (c *MemoryCache[P]) Get(_ context.Context, fingerprint string) (P, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		var zero P
		return zero, 0, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, fingerprint)
		c.misses++
		var zero P
		return zero, 0, false
	}

	c.hits++
	return entry.payload, entry.cost, true
}

// Set overwrites unconditionally; last write wins under races.
func (c *MemoryCache[P]) Set(_ context.Context, fingerprint string, payload P, cost float64, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[fingerprint] = memEntry[P]{
		payload:   payload,
		cost:      cost,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *MemoryCache[P]) Clear(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]memEntry[P])
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
}

func (c *MemoryCache[P]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

var _ Cache[string] = (*MemoryCache[string])(nil)
