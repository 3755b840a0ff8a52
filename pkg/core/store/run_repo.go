package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finagle/pkg/core/assumption"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/valuation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned by Load for an unknown run id.
var ErrRunNotFound = errors.New("valuation run not found")

// RunRepo stores completed valuation runs: one header row with the
// assumptions and summary, and one row per ledger year.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo creates a repository. A nil pool uses the pool from InitDB.
func NewRunRepo(p *pgxpool.Pool) *RunRepo {
	if p == nil {
		p = GetPool()
	}
	return &RunRepo{pool: p}
}

// StoredRun is a run read back from the database.
type StoredRun struct {
	RunID       uuid.UUID
	Ticker      string
	Scenario    string
	AsOf        time.Time
	Assumptions assumption.Assumptions
	Summary     valuation.Summary
	Duration    time.Duration
	CreatedAt   time.Time
	Rows        []ledger.Row
}

// Save upserts the run header and batch-inserts the yearly rows.
func (r *RunRepo) Save(ctx context.Context, res *pipeline.Result) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	if res == nil || res.Ledger == nil {
		return fmt.Errorf("run has no ledger")
	}
	l := res.Ledger

	assumptionsJSON, err := json.Marshal(l.Assumptions)
	if err != nil {
		return fmt.Errorf("failed to marshal assumptions: %w", err)
	}
	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO valuation_runs (id, ticker, scenario, as_of, assumptions, summary, duration_ms)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			assumptions = EXCLUDED.assumptions,
			summary = EXCLUDED.summary,
			duration_ms = EXCLUDED.duration_ms
	`, res.RunID.String(), l.Ticker, res.Scenario.Name, l.Dates[0], assumptionsJSON, summaryJSON, res.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	rows := l.Rows()
	batch := &pgx.Batch{}
	for _, row := range rows {
		values, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal year %d: %w", row.Year, err)
		}
		batch.Queue(`
			INSERT INTO valuation_years (run_id, year, date, line_items)
			VALUES ($1::uuid, $2, $3, $4)
			ON CONFLICT (run_id, year) DO UPDATE SET
				date = EXCLUDED.date,
				line_items = EXCLUDED.line_items
		`, res.RunID.String(), row.Year, row.Date, values)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upserting valuation year: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}
	return tx.Commit(ctx)
}

// Load reads a run and its yearly rows.
func (r *RunRepo) Load(ctx context.Context, id uuid.UUID) (*StoredRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	run := &StoredRun{RunID: id}
	var assumptionsJSON, summaryJSON []byte
	var durationMS int64
	err := r.pool.QueryRow(ctx, `
		SELECT ticker, scenario, as_of, assumptions, summary, duration_ms, created_at
		FROM valuation_runs WHERE id = $1::uuid
	`, id.String()).Scan(&run.Ticker, &run.Scenario, &run.AsOf, &assumptionsJSON, &summaryJSON, &durationMS, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal(assumptionsJSON, &run.Assumptions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assumptions: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT year, date, line_items FROM valuation_years
		WHERE run_id = $1::uuid ORDER BY year
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load years: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row ledger.Row
		var values []byte
		if err := rows.Scan(&row.Year, &row.Date, &values); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		if err := json.Unmarshal(values, &row.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal year %d: %w", row.Year, err)
		}
		run.Rows = append(run.Rows, row)
	}
	return run, rows.Err()
}

// ListByTicker returns the ids of a ticker's runs, newest first.
func (r *RunRepo) ListByTicker(ctx context.Context, ticker string, limit int) ([]uuid.UUID, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text FROM valuation_runs
		WHERE ticker = $1 ORDER BY created_at DESC LIMIT $2
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("bad run id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
