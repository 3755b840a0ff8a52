package allocation

import (
	"fmt"
	"math"

	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
)

// PricePath decides how the share price evolves while shares are repurchased.
type PricePath string

const (
	// Constant holds the share price fixed.
	Constant PricePath = "constant"
	// Proportional keeps today's forward EV/EBITDA multiple, never letting the
	// price fall below the prior year.
	Proportional PricePath = "proportional"
)

// ParsePricePath accepts "constant" or "proportional"; empty means proportional.
func ParsePricePath(s string) (PricePath, error) {
	switch PricePath(s) {
	case "", Proportional:
		return Proportional, nil
	case Constant:
		return Constant, nil
	}
	return "", fmt.Errorf("unknown price path %q (want constant or proportional)", s)
}

// Buyback spends all FCFE not taken by the dividend policy on repurchases.
// Year 1 also spends the opening excess cash, so the excess is zeroed for
// valuation.
func Buyback(l *ledger.Ledger, price float64, path PricePath) error {
	if err := l.RequireFCF("buyback"); err != nil {
		return err
	}
	h := l.Horizon
	for i := 1; i <= h; i++ {
		l.Buybacks[i] = l.FCFE[i] - l.DividendPolicy[i]
	}
	l.Buybacks[1] += l.Cash[0]

	if err := repurchase(l, price, path); err != nil {
		return err
	}

	for i := 0; i <= h; i++ {
		l.Dividend[i] = (l.FCFE[i] - l.Buybacks[i]) / l.Shares[i]
	}
	if d, ok := l.Assumptions.DividendAt(0); ok {
		l.Dividend[0] = d
	}
	l.Dividend[1] = (l.FCFE[1] + l.ExcessCash - l.Buybacks[1]) / l.Shares[1]

	l.ExcessCash = 0
	l.BuybacksModeled = true
	return nil
}

// Allocate splits FCFE between dividends, buybacks and the balance sheet.
// A nil schedule buys back everything the dividend policy leaves. Otherwise
// buybacks follow the schedule for its declared years and then scale with FCF;
// whatever is left accumulates as balance-sheet cash.
func Allocate(l *ledger.Ledger, price float64, path PricePath, schedule []float64) error {
	if len(schedule) == 0 {
		if err := Buyback(l, price, path); err != nil {
			return err
		}
		return ToBalanceSheet(l)
	}
	if err := l.RequireFCF("allocation"); err != nil {
		return err
	}

	n := len(schedule)
	for i := 0; i <= l.Horizon; i++ {
		if i < n {
			l.Buybacks[i] = schedule[i]
			continue
		}
		l.Buybacks[i] = 0
		if f := l.FCF[n-1]; f != 0 {
			l.Buybacks[i] = schedule[n-1] / f * l.FCF[i]
		}
	}
	if err := repurchase(l, price, path); err != nil {
		return err
	}
	if err := ToBalanceSheet(l); err != nil {
		return err
	}
	l.BuybacksModeled = true
	return nil
}

// ToBalanceSheet accumulates the FCFE left after dividends and buybacks as
// balance-sheet cash and sweeps the closing balance into the terminal dividend.
func ToBalanceSheet(l *ledger.Ledger) error {
	if err := l.RequireFCF("balance-sheet allocation"); err != nil {
		return err
	}
	h := l.Horizon
	l.CashBS[0] = l.Cash[0]
	for i := 0; i < h; i++ {
		l.CashBS[i+1] = l.CashBS[i] + l.FCFE[i+1] - l.DividendPolicy[i+1] - l.Buybacks[i+1]
	}
	for i := 0; i <= h; i++ {
		l.Dividend[i] = l.DividendPolicy[i] / l.Shares[i]
	}
	l.Dividend[h] += l.CashBS[h] / l.Shares[h]

	// The swept cash now reaches shareholders as dividends.
	l.ExcessCash = 0
	return nil
}

// repurchase sets price and retires shares for the buybacks already on the ledger.
func repurchase(l *ledger.Ledger, price float64, path PricePath) error {
	if price <= 0 || math.IsNaN(price) {
		return fault.Assumption(0, "price", price, "share price must be positive to model buybacks")
	}
	h := l.Horizon
	for i := range l.Price {
		l.Price[i] = price
	}

	switch path {
	case Constant:
		for i := 0; i < h; i++ {
			if err := retire(l, i+1); err != nil {
				return err
			}
		}
	case Proportional:
		if err := l.RequireEBITDAPath("proportional buyback"); err != nil {
			return err
		}
		if l.EBITDA[1] == 0 {
			return fault.Assumption(1, "ebitda", 0, "forward EV/EBITDA multiple is undefined")
		}
		multiple := (price*l.Shares[0] + l.Debt[0] - l.Cash[0]) / l.EBITDA[1]
		for i := 0; i < h-1; i++ {
			if err := retire(l, i+1); err != nil {
				return err
			}
			// Cash is fully spent on buybacks or dividends, so it drops out of the bridge.
			implied := (multiple*l.EBITDA[i+2] - l.Debt[i+1]) / l.Shares[i+1]
			l.Price[i+1] = math.Max(implied, l.Price[i])
		}
		// The final year closes at the prior year's price.
		l.Price[h] = l.Price[h-1]
		if err := retire(l, h); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown price path %q", path)
	}
	return nil
}

func retire(l *ledger.Ledger, i int) error {
	l.Shares[i] = l.Shares[i-1] - l.Buybacks[i]/l.Price[i-1]
	if l.Shares[i] <= 0 {
		return fault.Assumption(i, "shares", l.Shares[i], "buybacks retire every outstanding share")
	}
	return nil
}
