// Package allocation models management's capital allocation: debt targeting,
// buybacks, dividends, balance-sheet cash, acquisitions and disposals.
//
// Every action needs a computed cash flow path. Actions that change a driver
// re-run cashflow.Compute before returning. The actions do not commute; the
// order they are applied in is part of the scenario.
package allocation

import (
	"math"

	"finagle/pkg/core/cashflow"
	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
)

// DebtPasses is the number of relaxation passes TargetDebt makes. Interest
// depends on debt and the repayment capacity depends on interest, so each pass
// re-runs the cash flow engine. The count is fixed; there is no tolerance test.
const DebtPasses = 3

// DebtTarget returns leverage*ebitda for each year, zero where EBITDA is not positive.
func DebtTarget(l *ledger.Ledger, leverage float64) []float64 {
	target := make([]float64, l.Len())
	for i, e := range l.EBITDA {
		if e > 0 {
			target[i] = leverage * e
		}
	}
	return target
}

// TargetDebt moves debt toward leverage x EBITDA from startYear onward.
// Under-levered years draw debt up to the target. Over-levered years repay as
// much as the year's free cash flow allows after M&A and the dividend policy;
// year 1 can also spend the opening cash.
func TargetDebt(l *ledger.Ledger, leverage float64, startYear int) error {
	if err := l.RequireEBITDAPath("debt targeting"); err != nil {
		return err
	}
	h := l.Horizon
	if startYear < 1 || startYear > h {
		return fault.Assumption(startYear, "year_d", float64(startYear), "debt targeting must start inside the forecast")
	}
	if leverage < 0 {
		return fault.Assumption(startYear, "leverage", leverage, "leverage cannot be negative")
	}

	target := DebtTarget(l, leverage)
	for pass := 0; pass < DebtPasses; pass++ {
		for i := startYear - 1; i < h; i++ {
			excess := l.Debt[i] - target[i+1]
			if excess < 0 {
				l.Debt[i+1] = target[i+1]
				continue
			}
			available := l.FCF[i+1] - l.MnA[i+1] - l.DividendPolicy[i+1]
			if i == 0 {
				available += l.Cash[0]
			}
			if excess <= available {
				l.Debt[i+1] = target[i+1]
			} else {
				l.Debt[i+1] = l.Debt[i] - available
			}
		}
		if err := cashflow.Compute(l); err != nil {
			return err
		}
	}
	return nil
}

// Leverage reports debt/EBITDA per year, NaN where EBITDA is zero.
func Leverage(l *ledger.Ledger) []float64 {
	out := make([]float64, l.Len())
	for i := range out {
		if l.EBITDA[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = l.Debt[i] / l.EBITDA[i]
	}
	return out
}
