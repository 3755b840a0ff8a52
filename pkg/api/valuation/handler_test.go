package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finagle/pkg/core/ledger"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/store"

	"github.com/google/uuid"
)

// --- Mocks ---

type MockRecordSource struct {
	records map[string]ledger.Record
	saved   []ledger.Record
}

func (m *MockRecordSource) Get(ctx context.Context, ticker, date string) (*ledger.Record, error) {
	if rec, ok := m.records[ticker+"_"+date]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *MockRecordSource) Latest(ctx context.Context, ticker string) (*ledger.Record, error) {
	for k, rec := range m.records {
		if strings.HasPrefix(k, ticker+"_") {
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *MockRecordSource) Save(ctx context.Context, rec ledger.Record) error {
	m.saved = append(m.saved, rec)
	return nil
}

type MockRunLoader struct {
	LoadFunc func(ctx context.Context, id uuid.UUID) (*store.StoredRun, error)
}

func (m *MockRunLoader) Load(ctx context.Context, id uuid.UUID) (*store.StoredRun, error) {
	return m.LoadFunc(ctx, id)
}

const recordJSON = `{"ticker": "TEST", "date": "2024-12-31", "ebitda": 100, "capex": %g, "sbc": 5, "dwc": 2,
	"debt": 200, "da": 15, "tax": 15, "interest": 10, "cash": 50, "noa": 10}`

const scenarioJSON = `{"name": "base", "assumptions": {"re": 0.1, "rd": 0.05, "t": 0.25, "gt": 0.02,
	"horizon": 5, "shares": 10, "price": 40}, "forecast": {"ebitda": {"growth": 0.05}}}`

func newTestHandler() (*Handler, *MockRecordSource) {
	var cached ledger.Record
	json.Unmarshal([]byte(fmt.Sprintf(recordJSON, 20.0)), &cached)
	src := &MockRecordSource{records: map[string]ledger.Record{"TEST_2024-12-31": cached}}
	return NewHandler(pipeline.NewPipelineOrchestrator(nil), src, nil), src
}

// --- Tests ---

func TestHandleRun(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"inline record", http.MethodPost, `{"record": ` + fmt.Sprintf(recordJSON, 20.0) + `, "scenario": ` + scenarioJSON + `, "report": true}`, http.StatusOK},
		{"cached record", http.MethodPost, `{"ticker": "test", "scenario": ` + scenarioJSON + `}`, http.StatusOK},
		{"cached record by date", http.MethodPost, `{"ticker": "TEST", "date": "2024-12-31", "scenario": ` + scenarioJSON + `}`, http.StatusOK},
		{"unknown ticker", http.MethodPost, `{"ticker": "NOPE", "scenario": ` + scenarioJSON + `}`, http.StatusNotFound},
		{"no record", http.MethodPost, `{"scenario": ` + scenarioJSON + `}`, http.StatusBadRequest},
		{"infeasible terminal depreciation", http.MethodPost, `{"record": ` + fmt.Sprintf(recordJSON, 1.0) + `, "scenario": ` + scenarioJSON + `}`, http.StatusUnprocessableEntity},
		{"invalid body", http.MethodPost, `[1, 2]`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
		{"preflight", http.MethodOptions, ``, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler()
			req := httptest.NewRequest(tc.method, "/api/valuation/run", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			h.HandleRun(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantStatus != http.StatusOK || tc.method != http.MethodPost {
				return
			}
			var resp RunResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Summary.ValuePerShare <= 0 || len(resp.Rows) != 6 || len(resp.LineItems) != 2 {
				t.Errorf("unexpected response: %+v", resp.Summary)
			}
		})
	}
}

func TestHandleRun_CachesInlineRecord(t *testing.T) {
	h, src := newTestHandler()
	body := `{"record": ` + fmt.Sprintf(recordJSON, 20.0) + `, "scenario": ` + scenarioJSON + `, "report": true}`
	rec := httptest.NewRecorder()
	h.HandleRun(rec, httptest.NewRequest(http.MethodPost, "/api/valuation/run", strings.NewReader(body)))

	if len(src.saved) != 1 || src.saved[0].Ticker != "TEST" {
		t.Errorf("expected the inline record to be cached, got %v", src.saved)
	}
	var resp RunResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.Contains(resp.Report, "| value_per_share |") {
		t.Error("expected the markdown report in the response")
	}
}

func TestHandleRun_SkipsCacheOnFailedRun(t *testing.T) {
	h, src := newTestHandler()
	body := `{"record": ` + fmt.Sprintf(recordJSON, 1.0) + `, "scenario": ` + scenarioJSON + `}`
	rec := httptest.NewRecorder()
	h.HandleRun(rec, httptest.NewRequest(http.MethodPost, "/api/valuation/run", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(src.saved) != 0 {
		t.Errorf("a rejected record must not be cached, got %v", src.saved)
	}
}

func TestHandleRun_RecordKeysStayInCache(t *testing.T) {
	root := t.TempDir()
	h := NewHandler(pipeline.NewPipelineOrchestrator(nil), store.NewRecordCache(nil, filepath.Join(root, "cache")), nil)

	inline := func(ticker, date string) string {
		r := strings.Replace(fmt.Sprintf(recordJSON, 20.0), `"TEST"`, fmt.Sprintf("%q", ticker), 1)
		r = strings.Replace(r, `"2024-12-31"`, fmt.Sprintf("%q", date), 1)
		return `{"record": ` + r + `, "scenario": ` + scenarioJSON + `}`
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"date escapes", inline("x", "/../../escaped"), http.StatusBadRequest},
		{"ticker escapes", inline("../../escaped", "2024-12-31"), http.StatusOK},
		{"lookup ticker escapes", `{"ticker": "../escaped", "scenario": ` + scenarioJSON + `}`, http.StatusBadRequest},
		{"lookup date escapes", `{"ticker": "TEST", "date": "../../escaped", "scenario": ` + scenarioJSON + `}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleRun(rec, httptest.NewRequest(http.MethodPost, "/api/valuation/run", strings.NewReader(tc.body)))
			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			t.Errorf("unexpected file written: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
}

func TestHandleGetRun(t *testing.T) {
	id := uuid.New()
	h, _ := newTestHandler()

	// Storage not configured
	rec := httptest.NewRecorder()
	h.HandleGetRun(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/runs?id="+id.String(), nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}

	h.Runs = &MockRunLoader{LoadFunc: func(ctx context.Context, got uuid.UUID) (*store.StoredRun, error) {
		if got != id {
			return nil, fmt.Errorf("%w: %s", store.ErrRunNotFound, got)
		}
		return &store.StoredRun{RunID: id, Ticker: "TEST"}, nil
	}}

	cases := []struct {
		query string
		want  int
	}{
		{"id=" + id.String(), http.StatusOK},
		{"id=" + uuid.New().String(), http.StatusNotFound},
		{"id=not-a-uuid", http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.HandleGetRun(rec, httptest.NewRequest(http.MethodGet, "/api/valuation/runs?"+c.query, nil))
		if rec.Code != c.want {
			t.Errorf("%s: expected %d, got %d", c.query, c.want, rec.Code)
		}
	}
}
