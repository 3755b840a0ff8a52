package valuation

import (
	"math"

	"finagle/pkg/core/ledger"
)

// TerminalFCFE is the flow capitalized at the horizon:
// (fcf_H - dDebt_H*rd + debt_H*gt) * (1+gt).
// Debt in the perpetuity grows at gt, so the terminal FCFE carries that
// borrowing instead of the final year's debt change.
func TerminalFCFE(l *ledger.Ledger) float64 {
	a := l.Assumptions
	h := l.Horizon
	return (l.FCF[h] - l.DDebt[h]*a.CostOfDebt + l.Debt[h]*a.TerminalGrowth) * (1 + a.TerminalGrowth)
}

// equityModels runs the EBITDA-path models: FCFE at the cost of equity, FCFF
// at the year-varying WACC and the dividend discount model.
func equityModels(l *ledger.Ledger) (fcfeT float64, err error) {
	a := l.Assumptions
	n := l.Len()
	h := l.Horizon
	re := Flat(a.CostOfEquity, n)

	// 1. Equity (FCFE)
	fcfeT = TerminalFCFE(l)
	equity, err := PresentValue(l.FCFE, re, a.TerminalGrowth, &fcfeT)
	if err != nil {
		return 0, err
	}
	copy(l.Equity, equity)

	// 2. Firm (FCFF at WACC)
	wacc, ev, err := WACC(l.Debt, l.Equity, a.CostOfDebt, a.CostOfEquity, a.TaxRate)
	if err != nil {
		return 0, err
	}
	copy(l.WACC, wacc)
	copy(l.EV, ev)
	firm, err := PresentValue(l.FCFF, l.WACC, a.TerminalGrowth, nil)
	if err != nil {
		return 0, err
	}
	copy(l.Firm, firm)

	// 3. Dividend discount
	divT := fcfeT / l.Shares[h]
	ddm, err := PresentValue(l.Dividend, re, a.TerminalGrowth, &divT)
	if err != nil {
		return 0, err
	}
	copy(l.DDM, ddm)

	// 4. Per share, crediting non-operating assets and cash outside the flows
	for i := 0; i < n; i++ {
		l.ValuePerShare[i] = (l.Equity[i] + l.NOA[i]) / a.Shares
		l.ValuePerShareDDM[i] = l.DDM[i] + l.NOA[i]/l.Shares[i]
	}
	l.ValuePerShare[0] += l.Cash[0] / a.Shares
	l.ValuePerShareDDM[0] += l.ExcessCash / l.Shares[0]
	l.ValuePerShareDDM[h] += l.CashBS[h] / l.Shares[h]
	return fcfeT, nil
}

// earningsModel values equity from earnings-path FCFE alone. Firm value and
// the dividend model are undefined without operating data, so their columns
// are left untouched.
func earningsModel(l *ledger.Ledger) error {
	a := l.Assumptions
	equity, err := PresentValue(l.FCFE, Flat(a.CostOfEquity, l.Len()), a.TerminalGrowth, nil)
	if err != nil {
		return err
	}
	copy(l.Equity, equity)
	for i := range l.ValuePerShare {
		l.ValuePerShare[i] = (l.Equity[i] + l.NOA[i]) / a.Shares
	}
	l.ValuePerShare[0] += l.Cash[0] / a.Shares
	return nil
}

// BuybackScenarioValue is the per-share value when all cash goes to
// repurchases until the horizon: the terminal per-share equity discounted H
// years at the cost of equity. It is zero unless buybacks were modeled.
func BuybackScenarioValue(l *ledger.Ledger) float64 {
	if !l.BuybacksModeled {
		return 0
	}
	h := l.Horizon
	perShare := (l.Equity[h] + l.NOA[h]) / l.Shares[h]
	return perShare / math.Pow(1+l.Assumptions.CostOfEquity, float64(h))
}
