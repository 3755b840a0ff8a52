package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/pipeline"
	"finagle/pkg/core/report"
	"finagle/pkg/core/store"
	"finagle/pkg/core/utils"
	"finagle/pkg/core/valuation"

	"github.com/google/uuid"
)

// RecordSource resolves a cached financial record.
type RecordSource interface {
	Get(ctx context.Context, ticker, date string) (*ledger.Record, error)
	Latest(ctx context.Context, ticker string) (*ledger.Record, error)
	Save(ctx context.Context, rec ledger.Record) error
}

// RunLoader reads stored runs back.
type RunLoader interface {
	Load(ctx context.Context, id uuid.UUID) (*store.StoredRun, error)
}

// RunRequest values a scenario against either an inline record or a cached
// one identified by ticker and optional date.
type RunRequest struct {
	Record   *ledger.Record    `json:"record,omitempty"`
	Ticker   string            `json:"ticker,omitempty"`
	Date     string            `json:"date,omitempty"`
	Scenario pipeline.Scenario `json:"scenario"`
	Report   bool              `json:"report,omitempty"`
}

type RunResponse struct {
	RunID     uuid.UUID                     `json:"run_id"`
	Ticker    string                        `json:"ticker"`
	Summary   valuation.Summary             `json:"summary"`
	LineItems []valuation.ValuationLineItem `json:"line_items"`
	Rows      []ledger.Row                  `json:"rows"`
	Report    string                        `json:"report,omitempty"`
	ElapsedMS int64                         `json:"elapsed_ms"`
}

// Handler holds dependencies for valuation endpoints
type Handler struct {
	Orchestrator *pipeline.PipelineOrchestrator
	Records      RecordSource
	Runs         RunLoader // nil when no database is configured
	Timeout      time.Duration
}

// NewHandler creates a new valuation handler
func NewHandler(orch *pipeline.PipelineOrchestrator, records RecordSource, runs RunLoader) *Handler {
	return &Handler{
		Orchestrator: orch,
		Records:      records,
		Runs:         runs,
		Timeout:      30 * time.Second,
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/valuation/run", h.HandleRun)
	mux.HandleFunc("/api/valuation/runs", h.HandleGetRun)
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// HandleRun runs a scenario. POST /api/valuation/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var req RunRequest
	if _, err := utils.DecodeLenient(string(body), &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	// 1. Resolve the record
	rec, status, err := h.resolveRecord(ctx, req)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	fmt.Printf("[VALUATION] Request: %s as of %s, scenario %q\n", rec.Ticker, rec.Date, req.Scenario.Name)

	// 2. Run
	res, err := h.Orchestrator.Run(ctx, rec, req.Scenario)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	// Inline records are cached only once the engine has accepted them.
	if req.Record != nil && h.Records != nil {
		if err := h.Records.Save(ctx, rec); err != nil {
			fmt.Printf("[WARNING] Failed to cache record: %v\n", err)
		}
	}

	// 3. Respond
	resp := RunResponse{
		RunID:     res.RunID,
		Ticker:    rec.Ticker,
		Summary:   res.Summary,
		LineItems: res.Summary.LineItems(),
		Rows:      res.Ledger.Rows(),
		ElapsedMS: res.Duration.Milliseconds(),
	}
	if req.Report {
		resp.Report = report.Markdown(res.Ledger, res.Summary)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Printf("[VALUATION] Failed to encode response: %v\n", err)
	}
}

func (h *Handler) resolveRecord(ctx context.Context, req RunRequest) (ledger.Record, int, error) {
	if req.Record != nil {
		return *req.Record, http.StatusOK, nil
	}
	if req.Ticker == "" {
		return ledger.Record{}, http.StatusBadRequest, fmt.Errorf("request needs a record or a ticker")
	}
	if h.Records == nil {
		return ledger.Record{}, http.StatusNotFound, fmt.Errorf("no record cache configured")
	}

	ticker := strings.ToUpper(req.Ticker)
	var rec *ledger.Record
	var err error
	if req.Date != "" {
		rec, err = h.Records.Get(ctx, ticker, req.Date)
	} else {
		rec, err = h.Records.Latest(ctx, ticker)
	}
	if errors.Is(err, store.ErrInvalidKey) {
		return ledger.Record{}, http.StatusBadRequest, err
	}
	if err != nil {
		return ledger.Record{}, http.StatusInternalServerError, err
	}
	if rec == nil {
		return ledger.Record{}, http.StatusNotFound, fmt.Errorf("no record cached for %s", ticker)
	}
	return *rec, http.StatusOK, nil
}

// HandleGetRun returns a stored run. GET /api/valuation/runs?id=<uuid>
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if h.Runs == nil {
		http.Error(w, "run storage is not configured", http.StatusNotImplemented)
		return
	}
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := h.Runs.Load(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// statusFor maps engine failures to HTTP codes: caller-fixable inputs are
// 422, everything else is a server error.
func statusFor(err error) int {
	var (
		ae *fault.AssumptionError
		de *fault.DataIncompleteError
		ne *fault.NegativeCashError
		pe *fault.PrerequisiteError
	)
	switch {
	case errors.As(err, &ae), errors.As(err, &de), errors.As(err, &ne):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case strings.HasPrefix(err.Error(), "scenario invalid"), strings.HasPrefix(err.Error(), "load failed"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
