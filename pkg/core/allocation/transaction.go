package allocation

import (
	"encoding/json"

	"finagle/pkg/core/cashflow"
	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/projection"
	"finagle/pkg/core/stream"
)

// Acquisition describes a bolt-on deal closing at the end of Year.
type Acquisition struct {
	Year int `json:"year" yaml:"year"`

	// EBITDAFraction is the target's EBITDA relative to the acquirer's EBITDA
	// in the close year. Multiple is the EV/EBITDA paid and Leverage the
	// acquisition debt per dollar of target EBITDA. NextGrowth is the target's
	// growth the year after close; CapexFraction its capex per dollar of EBITDA.
	EBITDAFraction float64 `json:"ebitda_frac" yaml:"ebitda_frac"`
	Multiple       float64 `json:"multiple" yaml:"multiple"`
	Leverage       float64 `json:"leverage" yaml:"leverage"`
	NextGrowth     float64 `json:"gnext" yaml:"gnext"`
	CapexFraction  float64 `json:"cap_frac" yaml:"cap_frac"`

	// AdjustCash pays a year-0 deal out of opening cash.
	AdjustCash bool `json:"adjust_cash" yaml:"adjust_cash"`
}

// DefaultAcquisition is a 10% bolt-on at 10x, financed at 3x, closing in year 1.
func DefaultAcquisition() Acquisition {
	return Acquisition{
		Year:           1,
		EBITDAFraction: 0.1,
		Multiple:       10,
		Leverage:       3,
		NextGrowth:     0.1,
		CapexFraction:  0.2,
	}
}

// UnmarshalYAML fills fields missing from the block with DefaultAcquisition.
func (a *Acquisition) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type raw Acquisition
	r := raw(DefaultAcquisition())
	if err := unmarshal(&r); err != nil {
		return err
	}
	*a = Acquisition(r)
	return nil
}

// UnmarshalJSON fills fields missing from the object with DefaultAcquisition.
func (a *Acquisition) UnmarshalJSON(data []byte) error {
	type raw Acquisition
	r := raw(DefaultAcquisition())
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*a = Acquisition(r)
	return nil
}

// Acquire adds the target's EBITDA, capex and acquisition debt to the ledger,
// books the purchase price in MnA at close and re-runs the cash flow engine.
// It returns the incremental EBITDA path.
//
// Depreciation after the close year is discarded so the terminal solve runs
// again on the combined company.
func Acquire(l *ledger.Ledger, acq Acquisition) ([]float64, error) {
	if err := l.RequireEBITDAPath("acquisition"); err != nil {
		return nil, err
	}
	h := l.Horizon
	y := acq.Year
	if y < 0 || y > h-1 {
		return nil, fault.Assumption(y, "year_a", float64(y), "acquisition must close before the terminal year")
	}

	// Flat until close, a step to the target's size, then the target's own growth.
	g := make([]float64, y+2)
	g[y] = acq.EBITDAFraction - 1
	g[y+1] = acq.NextGrowth
	dE, err := projection.Grow(l.EBITDA[y], stream.Full(g), l.Assumptions.TerminalGrowth, h)
	if err != nil {
		return nil, err
	}
	for i := 0; i <= y; i++ {
		dE[i] = 0
	}

	acqDebt := acq.Leverage * dE[y+1]
	for i := 0; i <= h; i++ {
		l.EBITDA[i] += dE[i]
		l.Capex[i] += acq.CapexFraction * dE[i]
		if i >= y {
			l.Debt[i] += acqDebt
		}
	}
	l.MnA[y] += acq.Multiple * dE[y+1]
	l.MarkKnown(ledger.DA, y+1)

	if y == 0 && acq.AdjustCash {
		l.Cash[0] -= (acq.Multiple - acq.Leverage) * dE[1]
		l.ExcessCash = l.Cash[0]
	}

	if err := cashflow.Compute(l); err != nil {
		return dE, err
	}
	if l.Cash[y] < 0 {
		return dE, &fault.NegativeCashError{Year: y, Cash: l.Cash[y]}
	}
	return dE, nil
}

// Dispose sells amount of non-operating assets in year, booking the after-tax
// proceeds as a negative MnA entry, and re-runs the cash flow engine.
// Year 0 holds actuals, so the sale must land in 1..H.
func Dispose(l *ledger.Ledger, amount, taxRate float64, year int) error {
	if err := l.RequireEBITDAPath("disposal"); err != nil {
		return err
	}
	if year < 1 || year > l.Horizon {
		return fault.Assumption(year, "year_dis", float64(year), "disposal year is outside the forecast")
	}
	l.MnA[year] -= amount * (1 - taxRate)
	for i := range l.NOA {
		l.NOA[i] -= amount
	}
	return cashflow.Compute(l)
}
