package cashflow

import (
	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/stream"
)

// EarningsInput drives the earnings-only cash flow path, used when operating
// drivers are unavailable.
type EarningsInput struct {
	// Payout is the share of earnings distributed to equity, default 1.
	Payout stream.Series `json:"payout" yaml:"payout"`
	// Growth starts at 0 when unset and glides to terminal growth.
	Growth stream.Series `json:"growth" yaml:"growth"`
	// ROE closes the payout: payout_T = 1 - gt/ROE. Default 1.
	ROE float64 `json:"roe" yaml:"roe"`
}

// FromEarnings grows earnings and sets FCFE to the payout share of them.
// Firm-level columns stay undefined on this path.
func FromEarnings(l *ledger.Ledger, in EarningsInput) error {
	k := l.Known(ledger.Earnings)
	if k == 0 {
		return fault.Incomplete(string(ledger.Earnings), 0, "no TTM earnings")
	}
	a := l.Assumptions
	h := l.Horizon

	roe := in.ROE
	if roe == 0 {
		roe = 1
	}
	payout := in.Payout
	if payout.IsZero() {
		payout = stream.Scalar(1)
	}
	growth := in.Growth
	if growth.IsZero() {
		growth = stream.Scalar(0)
	}

	g, err := stream.Interpolate(growth, a.TerminalGrowth, h)
	if err != nil {
		return err
	}
	for i := k - 1; i < h; i++ {
		l.Earnings[i+1] = l.Earnings[i] * (1 + g[i])
	}
	l.MarkKnown(ledger.Earnings, l.Len())

	payouts, err := stream.Interpolate(payout, 1-a.TerminalGrowth/roe, h)
	if err != nil {
		return err
	}
	for i := 0; i <= h; i++ {
		l.FCFE[i] = l.Earnings[i] * payouts[i]
		l.Dividend[i] = (l.FCFE[i] - l.Buybacks[i]) / l.Shares[i]
	}
	for i := 1; i <= h; i++ {
		l.NOA[i] = l.NOA[0]
	}

	l.FCFReady = true
	l.EarningsPath = true
	return nil
}
