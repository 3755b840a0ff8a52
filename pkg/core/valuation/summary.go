// Package valuation is the ValuationEngine: present value with growing
// perpetuity closure, WACC, equity, firm and dividend-discount values and
// their per-share reconciliation.
package valuation

import (
	"finagle/pkg/core/ledger"
)

// Summary holds the headline scalars of a valuation, all as of year 0.
type Summary struct {
	Ticker          string   `json:"ticker"`
	EquityValue     float64  `json:"equity_value"`
	FirmValue       *float64 `json:"firm_value"` // nil on the earnings path
	EnterpriseValue float64  `json:"enterprise_value"`

	ValuePerShare        float64 `json:"value_per_share"`
	ValuePerShareDDM     float64 `json:"value_per_share_ddm"`
	BuybackScenarioValue float64 `json:"vpsbb"`

	TerminalFCFE    float64 `json:"terminal_fcfe"`
	ImpliedMultiple float64 `json:"implied_multiple"` // EV / forward EBITDA
	EarningsPath    bool    `json:"earnings_path"`
}

// ValuationLineItem represents one row of the per-share summary table.
type ValuationLineItem struct {
	ModelName  string
	SharePrice float64
}

// LineItems lists the per-share results that apply to this summary.
func (s Summary) LineItems() []ValuationLineItem {
	items := []ValuationLineItem{
		{ModelName: "Free Cash Flow to Equity Valuation", SharePrice: s.ValuePerShare},
	}
	if s.EarningsPath {
		return items
	}
	items = append(items, ValuationLineItem{ModelName: "Dividend Based Valuation", SharePrice: s.ValuePerShareDDM})
	if s.BuybackScenarioValue != 0 {
		items = append(items, ValuationLineItem{ModelName: "Buyback Scenario Valuation", SharePrice: s.BuybackScenarioValue})
	}
	return items
}

// Value runs the valuation models on a computed ledger, writing the equity,
// firm, DDM, wacc, EV and per-share columns, and returns the year-0 summary.
// Without the EBITDA path it falls back to an earnings-only equity value.
func Value(l *ledger.Ledger) (Summary, error) {
	if err := l.RequireFCF("valuation"); err != nil {
		return Summary{}, err
	}
	s := Summary{Ticker: l.Ticker}

	if !l.EBITDAPath {
		if err := earningsModel(l); err != nil {
			return Summary{}, err
		}
		s.EarningsPath = true
	} else {
		fcfeT, err := equityModels(l)
		if err != nil {
			return Summary{}, err
		}
		firm := l.Firm[0]
		s.FirmValue = &firm
		s.EnterpriseValue = l.EV[0]
		s.ValuePerShareDDM = l.ValuePerShareDDM[0]
		s.TerminalFCFE = fcfeT
		if l.EBITDA[1] != 0 {
			s.ImpliedMultiple = l.EV[0] / l.EBITDA[1]
		}
	}

	s.EquityValue = l.Equity[0]
	s.ValuePerShare = l.ValuePerShare[0]
	s.BuybackScenarioValue = BuybackScenarioValue(l)
	return s, nil
}
