package pipeline

import (
	"fmt"

	"finagle/pkg/core/allocation"
	"finagle/pkg/core/assumption"
	"finagle/pkg/core/cashflow"
	"finagle/pkg/core/projection"
)

// Scenario is everything needed to value one record: the assumptions, the
// forecast inputs, the ordered capital actions and the final allocation.
type Scenario struct {
	Name        string                 `json:"name" yaml:"name"`
	Assumptions assumption.Assumptions `json:"assumptions" yaml:"assumptions"`
	Forecast    ForecastInputs         `json:"forecast" yaml:"forecast"`

	// Earnings drives the earnings-only path, used when the record has no EBITDA.
	Earnings *cashflow.EarningsInput `json:"earnings,omitempty" yaml:"earnings"`

	// Actions run in order after the first cash flow computation. Order matters.
	Actions    []Action        `json:"actions,omitempty" yaml:"actions"`
	Allocation *AllocationPlan `json:"allocation,omitempty" yaml:"allocation"`
}

// ForecastInputs configures the ForecastEngine.
type ForecastInputs struct {
	EBITDA           projection.EBITDAInput `json:"ebitda" yaml:"ebitda"`
	SBCTerminalRatio *float64               `json:"sbc_terminal_ratio,omitempty" yaml:"sbc_terminal_ratio"`
}

// ActionKind names an optional capital action.
type ActionKind string

const (
	ActionTargetDebt ActionKind = "target_debt"
	ActionAcquire    ActionKind = "acquire"
	ActionDispose    ActionKind = "dispose"
)

// Action is one capital action. Only the fields of its Kind are read.
type Action struct {
	Kind ActionKind `json:"kind" yaml:"kind"`

	// target_debt; StartYear defaults to 1
	Leverage  float64 `json:"leverage,omitempty" yaml:"leverage"`
	StartYear int     `json:"year_d,omitempty" yaml:"year_d"`

	// acquire
	Acquisition *allocation.Acquisition `json:"acquisition,omitempty" yaml:"acquisition"`

	// dispose; Year defaults to 1
	Amount  float64 `json:"amount,omitempty" yaml:"amount"`
	TaxRate float64 `json:"tax,omitempty" yaml:"tax"`
	Year    int     `json:"year,omitempty" yaml:"year"`
}

// AllocationPlan is the closing capital allocation. A nil Buybacks schedule
// repurchases all FCFE not paid as dividends.
type AllocationPlan struct {
	Price     float64   `json:"price" yaml:"price"`
	PricePath string    `json:"price_path" yaml:"price_path"`
	Buybacks  []float64 `json:"buybacks,omitempty" yaml:"buybacks"`

	// BalanceSheetOnly skips buybacks and only accumulates cash.
	BalanceSheetOnly bool `json:"balance_sheet_only,omitempty" yaml:"balance_sheet_only"`
}

// Validate checks the parts of a scenario that can be checked without a record.
func (s Scenario) Validate() error {
	if err := s.Assumptions.WithDefaults().Validate(); err != nil {
		return err
	}
	for i, a := range s.Actions {
		switch a.Kind {
		case ActionTargetDebt, ActionDispose:
		case ActionAcquire:
			if a.Acquisition == nil {
				return fmt.Errorf("action %d: acquire needs an acquisition block", i)
			}
		default:
			return fmt.Errorf("action %d: unknown kind %q", i, a.Kind)
		}
	}
	if s.Allocation != nil && !s.Allocation.BalanceSheetOnly {
		if _, err := allocation.ParsePricePath(s.Allocation.PricePath); err != nil {
			return fmt.Errorf("allocation: %w", err)
		}
	}
	return nil
}

func (a Action) String() string {
	switch a.Kind {
	case ActionTargetDebt:
		return fmt.Sprintf("target_debt(leverage=%g, from year %d)", a.Leverage, a.StartYear)
	case ActionAcquire:
		if a.Acquisition != nil {
			return fmt.Sprintf("acquire(year %d, %gx)", a.Acquisition.Year, a.Acquisition.Multiple)
		}
	case ActionDispose:
		return fmt.Sprintf("dispose(%g in year %d)", a.Amount, a.Year)
	}
	return string(a.Kind)
}
