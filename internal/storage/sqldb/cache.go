package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lumo-games/companion-gateway/internal/gateway"
)

// Cache is the durable gateway.Cache implementation. Payloads are stored as
// JSON text. Backend failures are never surfaced: a failed read is a miss
// and a failed write is logged and dropped, per the cache contract.
type Cache[P any] struct {
	db      queryer
	service string
	clock   gateway.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	hits   int
	misses int
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewCache returns the cache view for one service.
func NewCache[P any](store *Store, service string, clock gateway.Clock, logger *slog.Logger) *Cache[P] {
	if clock == nil {
		clock = gateway.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[P]{db: store.db, service: service, clock: clock, logger: logger}
}

type cacheRow struct {
	Payload   string    `db:"payload"`
	Cost      float64   `db:"cost"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (c *Cache[P]) Get(ctx context.Context, fingerprint string) (P, float64, bool) {
	var zero P

	var row cacheRow
	err := c.db.GetContext(ctx, &row, `
SELECT payload, cost, expires_at FROM cache_entries WHERE service = ? AND fingerprint = ?`,
		c.service, fingerprint)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("cache read failed, treating as miss",
				slog.String("service", c.service),
				slog.String("error", err.Error()))
		}
		c.miss()
		return zero, 0, false
	}

	if !c.clock.Now().Before(row.ExpiresAt) {
		if _, err := c.db.ExecContext(ctx, `
DELETE FROM cache_entries WHERE service = ? AND fingerprint = ?`, c.service, fingerprint); err != nil {
			c.logger.Warn("cache eviction failed",
				slog.String("service", c.service),
				slog.String("error", err.Error()))
		}
		c.miss()
		return zero, 0, false
	}

	var payload P
	if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss",
			slog.String("service", c.service),
			slog.String("error", err.Error()))
		c.miss()
		return zero, 0, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return payload, row.Cost, true
}

func (c *Cache[P]) Set(ctx context.Context, fingerprint string, payload P, cost float64, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("cache payload not serializable",
			slog.String("service", c.service),
			slog.String("error", err.Error()))
		return
	}

	now := c.clock.Now().UTC()
	_, err = c.db.ExecContext(ctx, `
INSERT INTO cache_entries (service, fingerprint, payload, cost, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(service, fingerprint) DO UPDATE SET
payload = excluded.payload,
cost = excluded.cost,
created_at = excluded.created_at,
expires_at = excluded.expires_at`,
		c.service, fingerprint, string(encoded), cost, now, now.Add(ttl))
	if err != nil {
		c.logger.Warn("cache write failed",
			slog.String("service", c.service),
			slog.String("error", err.Error()))
	}
}

func (c *Cache[P]) Clear(ctx context.Context) {
	if _, err := c.db.ExecContext(ctx, `
DELETE FROM cache_entries WHERE service = ?`, c.service); err != nil {
		c.logger.Warn("cache clear failed",
			slog.String("service", c.service),
			slog.String("error", err.Error()))
	}
	c.mu.Lock()
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
}

func (c *Cache[P]) Stats() gateway.CacheStats {
	var size int
	if err := c.db.GetContext(context.Background(), &size, `
SELECT COUNT(*) FROM cache_entries WHERE service = ?`, c.service); err != nil {
		size = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stats := gateway.CacheStats{Hits: c.hits, Misses: c.misses, Size: size}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *Cache[P]) miss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

var _ gateway.Cache[string] = (*Cache[string])(nil)
