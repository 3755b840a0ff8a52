package valuation

import "finagle/pkg/core/fault"

// WACC blends the after-tax cost of debt and the cost of equity per year,
// weighted by the debt and equity share of enterprise value (EV = debt + equity).
func WACC(debt, equity []float64, rd, re, tax float64) (wacc, ev []float64, err error) {
	wacc = make([]float64, len(debt))
	ev = make([]float64, len(debt))
	for i := range debt {
		ev[i] = debt[i] + equity[i]
		if ev[i] == 0 {
			return nil, nil, fault.Assumption(i, "EV", 0, "enterprise value is zero, capital weights are undefined")
		}
		// Kd is after tax
		wacc[i] = (debt[i]*rd*(1-tax) + equity[i]*re) / ev[i]
	}
	return wacc, ev, nil
}
