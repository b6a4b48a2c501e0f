// Package sqldb provides the optional durable backing store for the gateway:
// budget days survive restarts and cached payloads can be shared across
// process lifetimes. It is SQLite-backed (modernc, no cgo) through sqlx.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/lumo-games/companion-gateway/internal/gateway"
)

// Store owns the database handle. Per-service DayStore and cache views are
// derived from it so the emotion and dialogue gateways never read each
// other's rows.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the SQLite database at path and initializes the
// schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS budget_days (
service TEXT NOT NULL,
date TEXT NOT NULL,
total_requests INTEGER NOT NULL DEFAULT 0,
cheap_requests INTEGER NOT NULL DEFAULT 0,
expensive_requests INTEGER NOT NULL DEFAULT 0,
cached_requests INTEGER NOT NULL DEFAULT 0,
total_cost REAL NOT NULL DEFAULT 0,
total_latency_ms REAL NOT NULL DEFAULT 0,
updated_at TIMESTAMP NOT NULL,
PRIMARY KEY (service, date)
)`,
		`CREATE TABLE IF NOT EXISTS cache_entries (
service TEXT NOT NULL,
fingerprint TEXT NOT NULL,
payload TEXT NOT NULL,
cost REAL NOT NULL DEFAULT 0,
created_at TIMESTAMP NOT NULL,
expires_at TIMESTAMP NOT NULL,
PRIMARY KEY (service, fingerprint)
)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sqlx handle for advanced operations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// DayStore returns the budget-day persistence view for one service.
func (s *Store) DayStore(service string) gateway.DayStore {
	return &dayStore{db: s.db, service: service}
}

type dayStore struct {
	db      *sqlx.DB
	service string
}

func (d *dayStore) SaveDay(ctx context.Context, day gateway.BudgetDay) error {
	_, err := d.db.ExecContext(ctx, `
INSERT INTO budget_days (service, date, total_requests, cheap_requests, expensive_requests, cached_requests, total_cost, total_latency_ms, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(service, date) DO UPDATE SET
total_requests = excluded.total_requests,
cheap_requests = excluded.cheap_requests,
expensive_requests = excluded.expensive_requests,
cached_requests = excluded.cached_requests,
total_cost = excluded.total_cost,
total_latency_ms = excluded.total_latency_ms,
updated_at = excluded.updated_at`,
		d.service, day.Date, day.TotalRequests, day.CheapRequests, day.ExpensiveRequests,
		day.CachedRequests, day.TotalCost, day.TotalLatencyMs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save budget day %s: %w", day.Date, err)
	}
	return nil
}

func (d *dayStore) LoadDay(ctx context.Context, date string) (gateway.BudgetDay, bool, error) {
	var day gateway.BudgetDay
	err := d.db.GetContext(ctx, &day, `
SELECT date, total_requests, cheap_requests, expensive_requests, cached_requests, total_cost, total_latency_ms
FROM budget_days WHERE service = ? AND date = ?`, d.service, date)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.BudgetDay{}, false, nil
	}
	if err != nil {
		return gateway.BudgetDay{}, false, fmt.Errorf("load budget day %s: %w", date, err)
	}
	return day, true, nil
}
