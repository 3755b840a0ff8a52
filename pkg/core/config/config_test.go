package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/stream"
)

func TestLoadRecord_Hjson(t *testing.T) {
	rec, err := LoadRecord(filepath.Join("testdata", "record.hjson"))
	if err != nil {
		t.Fatalf("LoadRecord failed: %v", err)
	}
	if rec.Ticker != "TEST" || rec.Date != "2024-12-31" {
		t.Errorf("unexpected header: %s %s", rec.Ticker, rec.Date)
	}
	if rec.EBITDA.Kind() != stream.KindScalar {
		t.Errorf("expected scalar EBITDA, got %s", rec.EBITDA.Kind())
	}
	if rec.Debt.Kind() != stream.KindPartial || rec.Debt.Len() != 2 {
		t.Errorf("expected partial debt with 2 known years, got %s", rec.Debt)
	}
	if rec.Cash != 50 || rec.NOA != 10 {
		t.Errorf("expected cash 50 and noa 10, got %.2f and %.2f", rec.Cash, rec.NOA)
	}
}

func TestParseRecord_RepairsTruncatedJSON(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"ticker": "TEST", "date": "2024-12-31", "ebitda": [100, 110]`))
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if rec.EBITDA.Kind() != stream.KindFull || rec.EBITDA.Len() != 2 {
		t.Errorf("expected full EBITDA of 2 years, got %s", rec.EBITDA)
	}
}

func TestParseRecord_RequiresDate(t *testing.T) {
	if _, err := ParseRecord([]byte(`{"ticker": "TEST"}`)); err == nil {
		t.Error("expected an error for a record without a date")
	}
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenario.yaml"))
	if err != nil {
		t.Fatalf("LoadScenario failed: %v", err)
	}
	if sc.Assumptions.Horizon != 5 || sc.Assumptions.CostOfEquity != 0.10 {
		t.Errorf("unexpected assumptions: %+v", sc.Assumptions)
	}
	if sc.Forecast.EBITDA.Growth.Len() != 2 {
		t.Errorf("expected 2 explicit growth years, got %d", sc.Forecast.EBITDA.Growth.Len())
	}
	if len(sc.Actions) != 2 || sc.Actions[0].Kind != pipeline.ActionTargetDebt || sc.Actions[1].Kind != pipeline.ActionAcquire {
		t.Fatalf("unexpected actions: %v", sc.Actions)
	}
	acq := sc.Actions[1].Acquisition
	if acq.Year != 2 || acq.Multiple != 8 {
		t.Errorf("expected the declared year 2 at 8x, got %+v", acq)
	}
	if acq.EBITDAFraction != 0.1 || acq.Leverage != 3 || acq.NextGrowth != 0.1 || acq.CapexFraction != 0.2 {
		t.Errorf("omitted deal terms should take their defaults, got %+v", acq)
	}
	if sc.Allocation == nil || sc.Allocation.PricePath != "constant" {
		t.Errorf("unexpected allocation: %+v", sc.Allocation)
	}
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: x\nassumptions: {re: 0.1}\nhorzion: 4\n", "failed to parse scenario"},
		{"unknown action", "name: x\nassumptions: {re: 0.1}\nactions: [{kind: merge}]\n", `unknown kind "merge"`},
		{"bad price path", "name: x\nassumptions: {re: 0.1}\nallocation: {price_path: linear}\n", "allocation"},
		{"cost of equity below growth", "name: x\nassumptions: {re: 0.01, gt: 0.02}\n", "assumption error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("FINAGLE_TEST_DSN=postgres://localhost/finagle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINAGLE_TEST_DSN", "")
	os.Unsetenv("FINAGLE_TEST_DSN")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if got := os.Getenv("FINAGLE_TEST_DSN"); got != "postgres://localhost/finagle" {
		t.Errorf("expected DSN from .env, got %q", got)
	}
}
