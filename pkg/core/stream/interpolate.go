package stream

import (
	"math"

	"finagle/pkg/core/fault"
)

// Interpolate builds the year 0..horizon sequence for s, closing on terminal at
// year horizon.
//
// Anchors are the known values of s at years 0..len-1 plus (horizon, terminal).
// Known values at or beyond horizon are dropped so the terminal anchor always
// owns the final year. Between anchors the sequence is linear and it is exact
// at every anchor. A series with no known value is flat at terminal.
func Interpolate(s Series, terminal float64, horizon int) ([]float64, error) {
	if math.IsNaN(terminal) || math.IsInf(terminal, 0) {
		return nil, fault.Assumption(horizon, "terminal", terminal, "terminal value is undefined, cannot create forecast")
	}
	if horizon < 1 {
		return nil, fault.Assumption(horizon, "horizon", float64(horizon), "horizon must be at least one year")
	}

	explicit := s.Explicit()
	if len(explicit) > horizon {
		explicit = explicit[:horizon]
	}
	for i, v := range explicit {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fault.Assumption(i, "anchor", v, "explicit anchor is undefined")
		}
	}

	xs := make([]int, 0, len(explicit)+1)
	ys := make([]float64, 0, len(explicit)+1)
	for i, v := range explicit {
		xs = append(xs, i)
		ys = append(ys, v)
	}
	xs = append(xs, horizon)
	ys = append(ys, terminal)

	out := make([]float64, horizon+1)
	if len(xs) == 1 {
		for i := range out {
			out[i] = terminal
		}
		return out, nil
	}

	for j := 0; j+1 < len(xs); j++ {
		a, b := xs[j], xs[j+1]
		ya, yb := ys[j], ys[j+1]
		for i := a; i < b; i++ {
			out[i] = ya + (yb-ya)*float64(i-a)/float64(b-a)
		}
	}
	out[horizon] = terminal
	return out, nil
}
