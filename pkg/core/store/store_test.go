package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finagle/pkg/core/assumption"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/projection"
	"finagle/pkg/core/stream"

	"github.com/google/uuid"
)

func sampleRecord(date string) ledger.Record {
	return ledger.Record{
		Ticker:   "test",
		Date:     date,
		EBITDA:   stream.Scalar(100),
		Capex:    stream.Scalar(20),
		SBC:      stream.Scalar(5),
		DWC:      stream.Scalar(2),
		Debt:     stream.Partial([]float64{200, 190, 0}, 2),
		DA:       stream.Scalar(15),
		Tax:      15,
		Interest: 10,
		Cash:     50,
		NOA:      10,
	}
}

func TestRecordCache_FileFallback(t *testing.T) {
	ctx := context.Background()
	cache := NewRecordCache(nil, t.TempDir())

	for _, d := range []string{"2023-12-31", "2024-12-31", "2024-06-30"} {
		if err := cache.Save(ctx, sampleRecord(d)); err != nil {
			t.Fatalf("Save(%s) failed: %v", d, err)
		}
	}

	rec, err := cache.Get(ctx, "TEST", "2024-06-30")
	if err != nil || rec == nil {
		t.Fatalf("expected a cached record, got %v, %v", rec, err)
	}
	if rec.Debt.Kind() != stream.KindPartial || rec.Debt.Len() != 2 {
		t.Errorf("partial debt lost in the cache: %s", rec.Debt)
	}
	if !rec.Earnings.IsZero() {
		t.Errorf("absent earnings should stay empty, got %s", rec.Earnings)
	}

	latest, err := cache.Latest(ctx, "test")
	if err != nil || latest == nil {
		t.Fatalf("expected a latest record, got %v, %v", latest, err)
	}
	if latest.Date != "2024-12-31" {
		t.Errorf("expected latest 2024-12-31, got %s", latest.Date)
	}

	miss, err := cache.Get(ctx, "TEST", "2020-12-31")
	if err != nil || miss != nil {
		t.Errorf("expected a clean miss, got %v, %v", miss, err)
	}
	if none, _ := cache.Latest(ctx, "NONE"); none != nil {
		t.Errorf("expected no record for an unknown ticker")
	}
}

func TestRecordCache_RequiresKey(t *testing.T) {
	cache := NewRecordCache(nil, t.TempDir())
	if err := cache.Save(context.Background(), ledger.Record{Ticker: "X"}); err == nil {
		t.Error("expected an error for a record without a date")
	}
}

func TestRecordCache_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cache := NewRecordCache(nil, filepath.Join(root, "cache"))

	bad := []ledger.Record{
		sampleRecord("/../../escaped"),
		sampleRecord("2024-13-01"),
		{Ticker: "../../escaped", Date: "2024-12-31"},
		{Ticker: "a/b", Date: "2024-12-31"},
	}
	for _, rec := range bad {
		if err := cache.Save(ctx, rec); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Save(%q, %q): expected ErrInvalidKey, got %v", rec.Ticker, rec.Date, err)
		}
	}
	if _, err := cache.Get(ctx, "TEST", "../x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Get: expected ErrInvalidKey, got %v", err)
	}
	if _, err := cache.Latest(ctx, "../TEST"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Latest: expected ErrInvalidKey, got %v", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("expected only the cache dir under root, got %d entries", len(entries))
	}
	if files, _ := os.ReadDir(filepath.Join(root, "cache")); len(files) != 0 {
		t.Errorf("expected an empty cache, got %d files", len(files))
	}
	if err := cache.Save(ctx, ledger.Record{Ticker: "brk.b", Date: "2024-12-31"}); err != nil {
		t.Errorf("dotted tickers are valid: %v", err)
	}
}

func TestRunRepo_NoPool(t *testing.T) {
	repo := &RunRepo{}
	if err := repo.Save(context.Background(), &pipeline.Result{}); err == nil {
		t.Error("expected an error without a pool")
	}
	if _, err := repo.Load(context.Background(), uuid.New()); err == nil {
		t.Error("expected an error without a pool")
	}
}

func TestRunRepo_RoundTrip(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping: DATABASE_URL not set")
	}
	ctx := context.Background()
	if err := InitDB(ctx); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	if err := Migrate(ctx, GetPool()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	sc := pipeline.Scenario{
		Name: "store-test",
		Assumptions: assumption.Assumptions{
			CostOfEquity: 0.10, CostOfDebt: 0.05, TaxRate: 0.25, TerminalGrowth: 0.02,
			Horizon: 4, Shares: 10, Price: 40,
		},
		Forecast: pipeline.ForecastInputs{EBITDA: projection.EBITDAInput{Growth: stream.Scalar(0.05)}},
	}
	repo := NewRunRepo(nil)
	orch := pipeline.NewPipelineOrchestrator(nil)
	orch.SetRepository(repo)

	res, err := orch.Run(ctx, sampleRecord("2024-12-31"), sc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	run, err := repo.Load(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if run.Scenario != "store-test" || len(run.Rows) != res.Ledger.Len() {
		t.Errorf("unexpected run: %s with %d rows", run.Scenario, len(run.Rows))
	}
	if math.Abs(run.Summary.ValuePerShare-res.Summary.ValuePerShare) > 1e-9 {
		t.Errorf("expected value per share %.4f, got %.4f", res.Summary.ValuePerShare, run.Summary.ValuePerShare)
	}
	if got := run.Rows[1].Values[ledger.FCFE]; math.Abs(got-res.Ledger.FCFE[1]) > 1e-9 {
		t.Errorf("expected fcfe %.4f, got %.4f", res.Ledger.FCFE[1], got)
	}
	if !run.AsOf.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected as-of date %v", run.AsOf)
	}

	ids, err := repo.ListByTicker(ctx, "test", 5)
	if err != nil || len(ids) == 0 || ids[0] != res.RunID {
		t.Errorf("expected the new run first, got %v, %v", ids, err)
	}
}
