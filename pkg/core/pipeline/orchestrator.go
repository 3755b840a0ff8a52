// Package pipeline runs a scenario through the engine in its mandatory order:
// load, forecast, compute FCF, capital actions, allocation, valuation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"finagle/pkg/core/allocation"
	"finagle/pkg/core/cashflow"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/projection"
	"finagle/pkg/core/valuation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is the outcome of one run.
type Result struct {
	RunID    uuid.UUID
	Scenario Scenario
	Ledger   *ledger.Ledger
	Summary  valuation.Summary
	Duration time.Duration
}

// RunRepository persists completed runs.
type RunRepository interface {
	Save(ctx context.Context, res *Result) error
}

// PipelineOrchestrator drives scenarios through the engine and, when a
// repository is set, stores the results.
type PipelineOrchestrator struct {
	logger *zap.Logger
	repo   RunRepository
}

// NewPipelineOrchestrator creates an orchestrator. A nil logger discards logs.
func NewPipelineOrchestrator(logger *zap.Logger) *PipelineOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineOrchestrator{logger: logger}
}

// SetRepository enables persistence of completed runs.
func (p *PipelineOrchestrator) SetRepository(repo RunRepository) {
	p.repo = repo
}

// Run executes sc against rec. On error the partially built ledger is
// discarded; no later stage runs after a failed one.
func (p *PipelineOrchestrator) Run(ctx context.Context, rec ledger.Record, sc Scenario) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New(), Scenario: sc}
	log := p.logger.With(zap.String("run_id", res.RunID.String()), zap.String("ticker", rec.Ticker))

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario invalid: %w", err)
	}

	// 1. Load
	l, err := ledger.New(rec, sc.Assumptions)
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	log.Info("ledger loaded", zap.Int("horizon", l.Horizon))

	// 2. Forecast + FCF
	if rec.EBITDA.IsZero() {
		if err := p.earningsPath(l, sc); err != nil {
			return nil, err
		}
		log.Info("fcf_from_earnings complete")
	} else {
		if err := p.ebitdaPath(l, sc); err != nil {
			return nil, err
		}
		log.Info("fcf_from_ebitda complete", zap.Float64("fcf_terminal", l.FCF[l.Horizon]))
	}

	// 3. Capital actions, each recomputing FCF
	for i, a := range sc.Actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := applyAction(l, a); err != nil {
			return nil, fmt.Errorf("action %d (%s) failed: %w", i, a, err)
		}
		log.Info("action complete",
			zap.Int("step", i),
			zap.String("action", a.String()),
			zap.Float64("leverage_terminal", allocation.Leverage(l)[l.Horizon]),
			zap.Float64("cash_terminal", l.Cash[l.Horizon]))
	}

	// 4. Allocation
	if plan := sc.Allocation; plan != nil {
		if err := allocate(l, *plan); err != nil {
			return nil, fmt.Errorf("allocation failed: %w", err)
		}
		log.Info("allocation complete", zap.Float64("shares_terminal", l.Shares[l.Horizon]))
	}

	// 5. Valuation
	summary, err := valuation.Value(l)
	if err != nil {
		return nil, fmt.Errorf("valuation failed: %w", err)
	}
	log.Info("value complete",
		zap.Float64("equity", summary.EquityValue),
		zap.Float64("value_per_share", summary.ValuePerShare))

	res.Ledger = l
	res.Summary = summary
	res.Duration = time.Since(start)

	// 6. Storage
	if p.repo != nil {
		if err := p.repo.Save(ctx, res); err != nil {
			return nil, fmt.Errorf("storage failed: %w", err)
		}
		log.Info("run stored")
	}
	return res, nil
}

func (p *PipelineOrchestrator) ebitdaPath(l *ledger.Ledger, sc Scenario) error {
	if err := projection.EBITDA(l, sc.Forecast.EBITDA); err != nil {
		return fmt.Errorf("forecast_ebitda failed: %w", err)
	}
	if err := projection.Capex(l); err != nil {
		return fmt.Errorf("forecast_capex failed: %w", err)
	}
	if err := projection.SBC(l, sc.Forecast.SBCTerminalRatio); err != nil {
		return fmt.Errorf("forecast_sbc failed: %w", err)
	}
	for _, c := range []ledger.Column{ledger.DWC, ledger.Debt} {
		if l.Complete(c) {
			continue
		}
		if err := projection.Hold(l, c); err != nil {
			return fmt.Errorf("forecast_%s failed: %w", c, err)
		}
	}
	if err := cashflow.Compute(l); err != nil {
		return fmt.Errorf("fcf_from_ebitda failed: %w", err)
	}
	return nil
}

func (p *PipelineOrchestrator) earningsPath(l *ledger.Ledger, sc Scenario) error {
	in := cashflow.EarningsInput{}
	if sc.Earnings != nil {
		in = *sc.Earnings
	}
	if err := cashflow.FromEarnings(l, in); err != nil {
		return fmt.Errorf("fcf_from_earnings failed: %w", err)
	}
	return nil
}

func applyAction(l *ledger.Ledger, a Action) error {
	switch a.Kind {
	case ActionTargetDebt:
		start := a.StartYear
		if start == 0 {
			start = 1
		}
		return allocation.TargetDebt(l, a.Leverage, start)
	case ActionAcquire:
		_, err := allocation.Acquire(l, *a.Acquisition)
		return err
	case ActionDispose:
		year := a.Year
		if year == 0 {
			year = 1
		}
		return allocation.Dispose(l, a.Amount, a.TaxRate, year)
	}
	return fmt.Errorf("unknown action kind %q", a.Kind)
}

func allocate(l *ledger.Ledger, plan AllocationPlan) error {
	if plan.BalanceSheetOnly {
		return allocation.ToBalanceSheet(l)
	}
	path, err := allocation.ParsePricePath(plan.PricePath)
	if err != nil {
		return err
	}
	price := plan.Price
	if price == 0 {
		price = l.Assumptions.Price
	}
	return allocation.Allocate(l, price, path, plan.Buybacks)
}
