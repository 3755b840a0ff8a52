package valuation

import (
	"fmt"

	"finagle/pkg/core/fault"
)

// PresentValue discounts cfs (years 0..H) back through each year with a
// year-specific rate, closing with a growing perpetuity at year H.
//
// value[H] is terminalFlow/(r_H-g), or cfs[H]*(1+g)/(r_H-g) when no terminal
// flow is supplied. Earlier years walk backward:
// value[i] = (cfs[i+1] + value[i+1]) / (1 + r[i+1]).
// Year-0 flows never enter the result; value[0] is the value today.
func PresentValue(cfs, rates []float64, g float64, terminalFlow *float64) ([]float64, error) {
	n := len(cfs)
	if n == 0 {
		return nil, fmt.Errorf("present value of an empty cash flow stream")
	}
	if len(rates) != n {
		return nil, fmt.Errorf("present value: %d cash flows but %d discount rates", n, len(rates))
	}
	h := n - 1

	// 1. Terminal value (Gordon growth)
	r := rates[h]
	if r <= g {
		return nil, fault.Assumption(h, "r", r, fmt.Sprintf("discount rate must exceed terminal growth %g", g))
	}
	value := make([]float64, n)
	if terminalFlow != nil {
		value[h] = *terminalFlow / (r - g)
	} else {
		value[h] = cfs[h] * (1 + g) / (r - g)
	}

	// 2. Backward recursion
	for i := h - 1; i >= 0; i-- {
		value[i] = (cfs[i+1] + value[i+1]) / (1 + rates[i+1])
	}
	return value, nil
}

// Flat repeats r for n years.
func Flat(r float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}
