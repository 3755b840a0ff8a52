// Package store persists valuation runs and caches financial records in
// PostgreSQL, with a file-system fallback for records.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the database connection pool using the DATABASE_URL environment variable
func InitDB(ctx context.Context) error {
	var err error
	once.Do(func() {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// Schema creates the tables used by this package. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS valuation_runs (
		id          UUID PRIMARY KEY,
		ticker      TEXT NOT NULL,
		scenario    TEXT NOT NULL,
		as_of       DATE NOT NULL,
		assumptions JSONB NOT NULL,
		summary     JSONB NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS valuation_runs_ticker_idx ON valuation_runs (ticker, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS valuation_years (
		run_id     UUID NOT NULL REFERENCES valuation_runs (id) ON DELETE CASCADE,
		year       INT NOT NULL,
		date       DATE NOT NULL,
		line_items JSONB NOT NULL,
		PRIMARY KEY (run_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS financial_records (
		ticker     TEXT NOT NULL,
		as_of      DATE NOT NULL,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (ticker, as_of)
	)`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	if p == nil {
		return fmt.Errorf("database pool not initialized")
	}
	for _, stmt := range Schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}
