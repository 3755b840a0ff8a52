// Package projection is the ForecastEngine: it extends the TTM drivers of a
// ledger (EBITDA, revenue, capex, SBC) across the forecast horizon.
//
// Every function here writes only the years beyond a column's explicit
// window, so user-supplied forecast years are never overwritten.
package projection

import (
	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/stream"
)

// Grow applies the growth recurrence x[i+1] = x[i]*(1+g[i]) from base, where g
// is the growth series interpolated toward gt over the horizon.
func Grow(base float64, growth stream.Series, gt float64, horizon int) ([]float64, error) {
	g, err := stream.Interpolate(growth, gt, horizon)
	if err != nil {
		return nil, err
	}
	out := make([]float64, horizon+1)
	out[0] = base
	for i := 0; i < horizon; i++ {
		out[i+1] = out[i] * (1 + g[i])
	}
	return out, nil
}

// EBITDAInput drives the EBITDA forecast.
//
// Growth is consumed first. When Margin, ContributionMargin and
// NextSalesGrowth are all set, the years after the growth assumptions run out
// follow the margin glide: sales grow along a stream starting at
// NextSalesGrowth and each sales dollar adds ContributionMargin of EBITDA.
type EBITDAInput struct {
	Growth stream.Series `json:"growth" yaml:"growth"`

	// Margin is the EBITDA margin when Growth runs out, ContributionMargin
	// the incremental EBITDA per sales dollar, NextSalesGrowth the first
	// year of sales growth after Growth.
	Margin             *float64 `json:"margin,omitempty" yaml:"margin"`
	ContributionMargin *float64 `json:"contribution_margin,omitempty" yaml:"contribution_margin"`
	NextSalesGrowth    *float64 `json:"next_sales_growth,omitempty" yaml:"next_sales_growth"`
}

func (in EBITDAInput) glide() bool {
	return in.Margin != nil && *in.Margin != 0 &&
		in.ContributionMargin != nil && *in.ContributionMargin != 0 &&
		in.NextSalesGrowth != nil
}

// EBITDA forecasts EBITDA (and revenue on the margin glide) beyond the
// explicit window.
func EBITDA(l *ledger.Ledger, in EBITDAInput) error {
	a := l.Assumptions
	h := l.Horizon
	k := l.Known(ledger.EBITDA)
	if k == 0 {
		return fault.Incomplete(string(ledger.EBITDA), 0, "no TTM EBITDA to grow from")
	}

	g, err := stream.Interpolate(in.Growth, a.TerminalGrowth, h)
	if err != nil {
		return err
	}

	revKnown := l.Known(ledger.Revenue)
	if !in.glide() {
		for i := k - 1; i < h; i++ {
			l.EBITDA[i+1] = l.EBITDA[i] * (1 + g[i])
			if i+1 >= revKnown {
				l.Revenue[i+1] = 0
			}
		}
		l.MarkKnown(ledger.EBITDA, h+1)
		return nil
	}

	n := in.Growth.Len()
	gfs := make([]float64, n+1)
	gfs[n] = *in.NextSalesGrowth
	gs, err := stream.Interpolate(stream.Full(gfs), a.TerminalGrowth, h)
	if err != nil {
		return err
	}

	me := *in.Margin
	mc := *in.ContributionMargin
	for i := k - 1; i < h; i++ {
		if i < n {
			if i+1 >= revKnown {
				l.Revenue[i+1] = 0
			}
			l.EBITDA[i+1] = l.EBITDA[i] * (1 + g[i])
			continue
		}
		if me == 0 {
			return fault.Assumption(i, "margin", me, "EBITDA margin collapsed to zero on the glide")
		}
		rev := l.EBITDA[i] / me * (1 + gs[i])
		l.Revenue[i+1] = rev
		l.EBITDA[i+1] = l.EBITDA[i] * (1 + mc/me*gs[i])
		if rev == 0 {
			return fault.Assumption(i+1, "revenue", rev, "revenue is zero, margin cannot be derived")
		}
		// The margin drifts: it is re-derived from this year's outcome rather
		// than gliding to a fixed terminal margin.
		me = l.EBITDA[i+1] / rev
	}
	l.MarkKnown(ledger.EBITDA, h+1)
	return nil
}

// Capex scales the years beyond the explicit window with EBITDA, holding the
// capex/EBITDA ratio of the last explicit year.
func Capex(l *ledger.Ledger) error {
	k := l.Known(ledger.Capex)
	if k == 0 {
		return fault.Incomplete(string(ledger.Capex), 0, "no explicit capex")
	}
	if err := l.RequireComplete(ledger.EBITDA); err != nil {
		return err
	}
	if l.EBITDA[k-1] == 0 {
		return fault.Assumption(k-1, "ebitda", 0, "cannot scale capex from zero EBITDA")
	}
	for i := k; i <= l.Horizon; i++ {
		l.Capex[i] = l.Capex[k-1] / l.EBITDA[k-1] * l.EBITDA[i]
	}
	l.MarkKnown(ledger.Capex, l.Len())
	return nil
}

// SBC forecasts stock-based compensation as a share of EBITDA. The ratio
// glides from the last explicit ratio to terminalRatio, which defaults to that
// same last ratio.
func SBC(l *ledger.Ledger, terminalRatio *float64) error {
	k := l.Known(ledger.SBC)
	if k == 0 {
		return fault.Incomplete(string(ledger.SBC), 0, "no explicit stock-based compensation")
	}
	if err := l.RequireComplete(ledger.EBITDA); err != nil {
		return err
	}

	ratios := make([]float64, k)
	for i := 0; i < k; i++ {
		if l.EBITDA[i] == 0 {
			return fault.Assumption(i, "ebitda", 0, "cannot express SBC as a share of zero EBITDA")
		}
		ratios[i] = l.SBC[i] / l.EBITDA[i]
	}
	rt := ratios[k-1]
	if terminalRatio != nil {
		rt = *terminalRatio
	}

	rate, err := stream.Interpolate(stream.Full(ratios), rt, l.Horizon)
	if err != nil {
		return err
	}
	for i := k; i <= l.Horizon; i++ {
		l.SBC[i] = rate[i] * l.EBITDA[i]
	}
	l.MarkKnown(ledger.SBC, l.Len())
	return nil
}

// Hold carries the last explicit value of c across the rest of the horizon.
// It is meant for debt and working-capital change when only a TTM value is known.
func Hold(l *ledger.Ledger, c ledger.Column) error {
	k := l.Known(c)
	if k == 0 {
		return fault.Incomplete(string(c), 0, "no explicit value to hold")
	}
	col := l.Col(c)
	for i := k; i <= l.Horizon; i++ {
		col[i] = col[k-1]
	}
	l.MarkKnown(c, l.Len())
	return nil
}
