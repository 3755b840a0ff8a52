package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"finagle/pkg/core/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidKey is returned for a ticker or date that cannot name a record.
var ErrInvalidKey = errors.New("invalid record key")

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// recordKey normalizes ticker and checks date is an ISO calendar date, so
// both are safe to embed in a file name.
func recordKey(ticker, date string) (string, error) {
	ticker = strings.ToUpper(ticker)
	if !tickerPattern.MatchString(ticker) || strings.Contains(ticker, "..") {
		return "", fmt.Errorf("%w: ticker %q", ErrInvalidKey, ticker)
	}
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return "", fmt.Errorf("%w: date %q", ErrInvalidKey, date)
		}
	}
	return ticker, nil
}

// RecordCache keeps financial records keyed by ticker and as-of date.
// With a pool it uses the database; without one it falls back to JSON files.
type RecordCache struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewRecordCache creates a cache. With a nil pool and empty dir, records go
// to .cache/records.
func NewRecordCache(p *pgxpool.Pool, dir string) *RecordCache {
	if p == nil && dir == "" {
		dir = filepath.Join(".cache", "records")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("[WARNING] Check RecordCache dir: %v\n", err)
		}
	}
	return &RecordCache{pool: p, fileDir: dir}
}

// Save stores rec, replacing any record with the same ticker and date.
func (c *RecordCache) Save(ctx context.Context, rec ledger.Record) error {
	if rec.Ticker == "" || rec.Date == "" {
		return fmt.Errorf("record needs a ticker and a date")
	}
	ticker, err := recordKey(rec.Ticker, rec.Date)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// 1. Database
	if c.pool != nil {
		_, err = c.pool.Exec(ctx, `
			INSERT INTO financial_records (ticker, as_of, data)
			VALUES ($1, $2::date, $3)
			ON CONFLICT (ticker, as_of) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = NOW()
		`, ticker, rec.Date, data)
		if err != nil {
			return fmt.Errorf("failed to save to db cache: %w", err)
		}
	}

	// 2. File
	if c.fileDir != "" {
		if err := os.WriteFile(c.recordPath(ticker, rec.Date), data, 0644); err != nil {
			return fmt.Errorf("failed to save to file cache: %w", err)
		}
	}
	return nil
}

// Get returns the record for ticker at date, or nil on a miss.
func (c *RecordCache) Get(ctx context.Context, ticker, date string) (*ledger.Record, error) {
	if date == "" {
		return nil, fmt.Errorf("%w: empty date", ErrInvalidKey)
	}
	ticker, err := recordKey(ticker, date)
	if err != nil {
		return nil, err
	}
	if c.pool != nil {
		return c.queryOne(ctx, `
			SELECT data FROM financial_records
			WHERE ticker = $1 AND as_of = $2::date
		`, ticker, date)
	}
	if c.fileDir != "" {
		return c.loadFromFile(c.recordPath(ticker, date))
	}
	return nil, nil
}

// Latest returns the most recent record for ticker, or nil on a miss.
func (c *RecordCache) Latest(ctx context.Context, ticker string) (*ledger.Record, error) {
	ticker, err := recordKey(ticker, "")
	if err != nil {
		return nil, err
	}
	if c.pool != nil {
		return c.queryOne(ctx, `
			SELECT data FROM financial_records
			WHERE ticker = $1 ORDER BY as_of DESC LIMIT 1
		`, ticker)
	}
	if c.fileDir == "" {
		return nil, nil
	}

	// File names embed ISO dates, so the lexical maximum is the latest.
	matches, err := filepath.Glob(filepath.Join(c.fileDir, ticker+"_*.json"))
	if err != nil || len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)
	return c.loadFromFile(matches[len(matches)-1])
}

func (c *RecordCache) queryOne(ctx context.Context, query string, args ...interface{}) (*ledger.Record, error) {
	var data []byte
	err := c.pool.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record cache: %w", err)
	}
	var rec ledger.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal db cached record: %w", err)
	}
	return &rec, nil
}

func (c *RecordCache) recordPath(ticker, date string) string {
	return filepath.Join(c.fileDir, ticker+"_"+date+".json")
}

func (c *RecordCache) loadFromFile(path string) (*ledger.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec ledger.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached record %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}
