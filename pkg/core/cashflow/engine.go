// Package cashflow derives interest, depreciation, the tax and NOL waterfall
// and the three free cash flow measures from a ledger's drivers.
//
// Compute is a pure re-derivation: it reads drivers and year-0 actuals and
// rewrites every derived column for years 1..H. Calling it twice in a row
// leaves the ledger bit-identical, and it must be re-run after any change to
// debt, EBITDA, capex, M&A or non-operating assets.
package cashflow

import (
	"math"

	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/stream"
)

// TerminalDepreciation solves da_T = (capex_T - C*ebitda_T)/(1-C), the
// depreciation that makes terminal net investment consistent with terminal
// growth at the terminal ROIC. It fails when da_T would be negative.
func TerminalDepreciation(capexT, ebitdaT, c float64) (float64, error) {
	if c >= 1 {
		return 0, fault.Assumption(0, "C", c, "terminal reinvestment factor must be below 1")
	}
	daT := (capexT - c*ebitdaT) / (1 - c)
	if daT < 0 || math.IsNaN(daT) {
		return daT, fault.Assumption(0, "da_T", daT, "negative depreciation in terminal year, check roic and growth assumptions")
	}
	return daT, nil
}

// NOLWaterfall runs the net operating loss carryforward over pretax income.
// nol[i] = max(nol[i-1]-pretax[i], 0) and taxable[i] = max(0, pretax[i]-nol[i-1]).
// In year 0 taxable income is zero whenever a loss is carried.
func NOLWaterfall(nol0 float64, pretax []float64) (nol, taxable []float64) {
	nol = make([]float64, len(pretax))
	taxable = make([]float64, len(pretax))
	if len(pretax) == 0 {
		return nol, taxable
	}
	nol[0] = nol0
	if nol0 <= 0 {
		taxable[0] = math.Max(pretax[0], 0)
	}
	for i := 1; i < len(pretax); i++ {
		nol[i] = math.Max(nol[i-1]-pretax[i], 0)
		taxable[i] = math.Max(0, pretax[i]-nol[i-1])
	}
	return nol, taxable
}

// EffectiveRate derives the year-1 effective tax rate by applying the marginal
// rate to the change in pretax income over the year-0 tax. Year-0 tax is
// floored at the marginal rate on year-0 income so carried losses do not
// leave an unsustainably low rate.
func EffectiveRate(t, tax0Actual, pretax0, pretax1 float64) float64 {
	tax0 := math.Max(t*pretax0, tax0Actual)
	tax1 := tax0 + t*(pretax1-pretax0)
	if pretax1 == 0 {
		return 0
	}
	return tax1 / pretax1
}

// Compute runs the full FCF derivation on the EBITDA path.
func Compute(l *ledger.Ledger) error {
	if err := l.RequireComplete(ledger.EBITDADrivers...); err != nil {
		return err
	}
	if l.Known(ledger.DA) == 0 {
		return fault.Incomplete(string(ledger.DA), 0, "no TTM depreciation to anchor the schedule")
	}

	a := l.Assumptions
	h := l.Horizon
	t := a.TaxRate

	for i := 1; i <= h; i++ {
		l.Interest[i] = a.CostOfDebt * l.Debt[i-1]
	}

	daT, err := TerminalDepreciation(l.Capex[h], l.EBITDA[h], a.ReinvestmentFactor())
	if err != nil {
		if ae, ok := err.(*fault.AssumptionError); ok {
			ae.Year = h
		}
		return err
	}
	da, err := stream.Interpolate(stream.Partial(l.DA, l.Known(ledger.DA)), daT, h)
	if err != nil {
		return err
	}
	copy(l.DA, da)

	for i := 0; i <= h; i++ {
		l.IncomePretax[i] = l.EBITDA[i] - l.SBC[i] - l.DA[i] - l.Interest[i]
	}
	l.DDebt[0] = 0
	for i := 1; i <= h; i++ {
		l.DDebt[i] = l.Debt[i] - l.Debt[i-1]
	}

	var te float64
	if a.EffectiveTax != nil {
		te = *a.EffectiveTax
	} else {
		te = EffectiveRate(t, l.Tax[0], l.IncomePretax[0], l.IncomePretax[1])
	}

	nol, taxable := NOLWaterfall(l.NOL[0], l.IncomePretax)
	copy(l.NOL, nol)
	copy(l.IncomeTaxable, taxable)

	l.TaxCash[0] = l.Tax[0]
	for i := 1; i <= h; i++ {
		if i == 1 {
			l.Tax[1] = te * math.Max(l.IncomePretax[1], 0)
		} else {
			l.Tax[i] = l.Tax[i-1] + t*(math.Max(l.IncomePretax[i], 0)-math.Max(l.IncomePretax[i-1], 0))
		}
		// Drawing down the NOL shields that much income at the marginal rate.
		l.TaxCash[i] = l.Tax[i] + t*math.Min(l.NOL[i]-l.NOL[i-1], 0)
	}

	for i := 0; i <= h; i++ {
		fcf := l.EBITDA[i] - l.SBC[i] - l.TaxCash[i] - l.Capex[i] - l.DWC[i] - l.Interest[i]
		l.FCF[i] = fcf
		l.FCFE[i] = fcf + l.DDebt[i] - l.MnA[i]
		l.FCFF[i] = fcf - l.Interest[i]*t - l.MnA[i]
	}

	dividendPolicy(l)

	for i := 0; i <= h; i++ {
		l.Dividend[i] = (l.FCFE[i] - l.Buybacks[i]) / l.Shares[i]
	}
	for i := 1; i <= h; i++ {
		l.Cash[i] = l.Cash[i-1] + l.FCFE[i]
		l.NOA[i] = l.NOA[0]
	}

	l.FCFReady = true
	l.EBITDAPath = true
	return nil
}

// dividendPolicy sets the total dividend paid each year: the declared
// per-share schedule while it lasts, then growth in line with FCF, never
// falling below the prior year.
func dividendPolicy(l *ledger.Ledger) {
	divs := l.Assumptions.Dividends
	n := len(divs)
	for i := 0; i <= l.Horizon; i++ {
		if i < n {
			l.DividendPolicy[i] = divs[i] * l.Shares[i]
			continue
		}
		base := divs[n-1] * l.Shares[n-1]
		proportional := 0.0
		if f := l.FCF[n-1]; f != 0 {
			proportional = base / f * l.FCF[i]
		}
		l.DividendPolicy[i] = math.Max(proportional, l.DividendPolicy[i-1])
	}
}
