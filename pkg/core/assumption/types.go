// Package assumption holds the forecast assumptions shared by every stage of
// the engine: discount rates, tax rates, terminal closure and the share base.
package assumption

import (
	"fmt"

	"finagle/pkg/core/fault"
)

// Defaults applied when a field is left at its zero value.
const (
	DefaultHorizon = 6
	DefaultROICT   = 0.15
	DefaultShares  = 1
)

// Assumptions are the ForecastAssumptions for one company scenario.
type Assumptions struct {
	CostOfEquity float64 `json:"re" yaml:"re"`
	CostOfDebt   float64 `json:"rd" yaml:"rd"` // pre-tax
	TaxRate      float64 `json:"t" yaml:"t"`   // marginal

	// EffectiveTax is the year-1 effective rate; derived from year-0 actuals when nil.
	EffectiveTax *float64 `json:"te,omitempty" yaml:"te"`

	TerminalGrowth float64 `json:"gt" yaml:"gt"`
	TerminalROIC   float64 `json:"roict" yaml:"roict"`
	Horizon        int     `json:"horizon" yaml:"horizon"` // H, the final forecast year
	Shares         float64 `json:"shares" yaml:"shares"`
	Price          float64 `json:"price" yaml:"price"`

	// Dividends is the declared per-share schedule starting at year 0.
	Dividends []float64 `json:"dividends,omitempty" yaml:"dividends"`
}

// WithDefaults returns a copy with zero-valued optional fields filled in.
func (a Assumptions) WithDefaults() Assumptions {
	if a.Horizon == 0 {
		a.Horizon = DefaultHorizon
	}
	if a.TerminalROIC == 0 {
		a.TerminalROIC = DefaultROICT
	}
	if a.Shares == 0 {
		a.Shares = DefaultShares
	}
	if len(a.Dividends) == 0 {
		a.Dividends = []float64{0}
	} else {
		a.Dividends = append([]float64(nil), a.Dividends...)
	}
	return a
}

// ReinvestmentFactor is C = gt/roict*(1-t), the share of terminal EBITDA that
// net investment must absorb to sustain terminal growth.
func (a Assumptions) ReinvestmentFactor() float64 {
	return a.TerminalGrowth / a.TerminalROIC * (1 - a.TaxRate)
}

// Validate checks the assumptions for values that make the model unsolvable.
func (a Assumptions) Validate() error {
	if a.Horizon < 1 {
		return fault.Assumption(0, "horizon", float64(a.Horizon), "horizon must be at least one year")
	}
	if a.Shares <= 0 {
		return fault.Assumption(0, "shares", a.Shares, "shares outstanding must be positive")
	}
	if a.TerminalROIC <= 0 {
		return fault.Assumption(a.Horizon, "roict", a.TerminalROIC, "terminal return on invested capital must be positive")
	}
	if c := a.ReinvestmentFactor(); c >= 1 {
		return fault.Assumption(a.Horizon, "C", c, "terminal reinvestment exceeds EBITDA, lower gt or raise roict")
	}
	if a.CostOfEquity <= a.TerminalGrowth {
		return fault.Assumption(a.Horizon, "re", a.CostOfEquity, fmt.Sprintf("cost of equity must exceed terminal growth %g", a.TerminalGrowth))
	}
	return nil
}

// DividendAt returns the declared per-share dividend for year i and whether
// year i is inside the declared schedule.
func (a Assumptions) DividendAt(i int) (float64, bool) {
	if i < len(a.Dividends) {
		return a.Dividends[i], true
	}
	return 0, false
}
