// Package ledger implements the FinancialDataset: one explicitly owned,
// year-indexed table that every stage of the engine reads and writes.
//
// Year 0 holds TTM actuals; years 1..H hold forecasts. Stages receive the
// ledger by reference, so the order of calls is the order of mutation:
//
//	load -> projection -> cashflow.Compute -> [allocation actions, each recomputing] -> allocation -> valuation
package ledger

import (
	"fmt"
	"math"
	"time"

	"finagle/pkg/core/assumption"
	"finagle/pkg/core/fault"
	"finagle/pkg/core/stream"
)

const dateLayout = "2006-01-02"

// Record is the raw financial record handed to the engine by a loader.
// Series fields may cover the TTM year alone or TTM plus explicit forecast years.
type Record struct {
	Ticker string `json:"ticker" yaml:"ticker"`
	Date   string `json:"date" yaml:"date"` // last reporting quarter, YYYY-MM-DD

	Revenue  stream.Series `json:"revenue" yaml:"revenue"`
	EBITDA   stream.Series `json:"ebitda" yaml:"ebitda"`
	Capex    stream.Series `json:"capex" yaml:"capex"`
	SBC      stream.Series `json:"sbc" yaml:"sbc"`
	DWC      stream.Series `json:"dwc" yaml:"dwc"` // change in non-cash working capital
	Debt     stream.Series `json:"debt" yaml:"debt"`
	DA       stream.Series `json:"da" yaml:"da"`
	Earnings stream.Series `json:"e" yaml:"e"`

	Tax      float64 `json:"tax" yaml:"tax"`
	Interest float64 `json:"interest" yaml:"interest"`
	NOL      float64 `json:"nol" yaml:"nol"`

	// Cash is excess cash not used for working capital; NOA are non-operating
	// assets such as land or businesses outside the cash flows.
	Cash float64 `json:"cash" yaml:"cash"`
	NOA  float64 `json:"noa" yaml:"noa"`
}

// Ledger is the FinancialDataset.
type Ledger struct {
	Ticker      string
	Horizon     int
	Assumptions assumption.Assumptions
	Dates       []time.Time

	Revenue, EBITDA, SBC, DA, Interest, Capex, DWC    []float64
	Tax, TaxCash, NOL, IncomePretax, IncomeTaxable    []float64
	Debt, DDebt, Cash, CashBS, NOA, MnA               []float64
	Buybacks, Dividend, DividendPolicy, Shares, Price []float64
	FCF, FCFE, FCFF                                   []float64
	Equity, Firm, DDM, WACC, EV                       []float64
	ValuePerShare, ValuePerShareDDM                   []float64
	Earnings                                          []float64

	// Window counts the leading years of a driver column that hold known
	// values. Forecast stages write only beyond it.
	Window map[Column]int

	// ExcessCash is the year-0 excess cash credited at valuation. It is zeroed
	// once buybacks or the balance-sheet sweep have consumed it.
	ExcessCash float64

	FCFReady        bool // a cash flow path has been computed
	EBITDAPath      bool // FCF was derived from EBITDA drivers
	EarningsPath    bool // FCFE was derived from earnings
	BuybacksModeled bool
}

// New creates the ledger for one record over the assumptions' horizon.
func New(rec Record, a assumption.Assumptions) (*Ledger, error) {
	a = a.WithDefaults()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if rec.Date == "" {
		return nil, fault.Incomplete("date", 0, "record has no anchor date")
	}
	anchor, err := time.Parse(dateLayout, rec.Date)
	if err != nil {
		return nil, fmt.Errorf("parse record date %q: %w", rec.Date, err)
	}

	h := a.Horizon
	l := &Ledger{
		Ticker:      rec.Ticker,
		Horizon:     h,
		Assumptions: a,
		Dates:       make([]time.Time, h+1),
		Window:      make(map[Column]int),
	}
	for i := range l.Dates {
		l.Dates[i] = anchor.AddDate(0, 0, 365*i)
	}
	l.alloc()

	series := []struct {
		col Column
		s   stream.Series
	}{
		{Revenue, rec.Revenue},
		{EBITDA, rec.EBITDA},
		{Capex, rec.Capex},
		{SBC, rec.SBC},
		{DWC, rec.DWC},
		{Debt, rec.Debt},
		{DA, rec.DA},
		{Earnings, rec.Earnings},
	}
	for _, f := range series {
		if err := l.load(f.col, f.s); err != nil {
			return nil, err
		}
	}

	scalars := []struct {
		col Column
		v   float64
	}{
		{Tax, rec.Tax},
		{Interest, rec.Interest},
		{Cash, rec.Cash},
		{NOL, rec.NOL},
		{NOA, rec.NOA},
	}
	for _, f := range scalars {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return nil, fault.Incomplete(string(f.col), 0, "year-0 actual is undefined")
		}
		l.Col(f.col)[0] = f.v
	}

	for i := 0; i <= h; i++ {
		l.Shares[i] = a.Shares
		l.Price[i] = a.Price
	}
	l.CashBS[0] = rec.Cash
	l.ExcessCash = rec.Cash
	return l, nil
}

func (l *Ledger) alloc() {
	n := l.Horizon + 1
	for _, c := range Columns {
		*l.ptr(c) = make([]float64, n)
	}
}

func (l *Ledger) load(c Column, s stream.Series) error {
	vals := s.Explicit()
	if len(vals) > l.Horizon+1 {
		return fault.Incomplete(string(c), len(vals)-1, fmt.Sprintf("series covers %d years, horizon is %d", len(vals), l.Horizon+1))
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Incomplete(string(c), i, "value is undefined")
		}
	}
	copy(l.Col(c), vals)
	l.Window[c] = len(vals)
	return nil
}

// Len is the number of rows, H+1.
func (l *Ledger) Len() int { return l.Horizon + 1 }

// Known is the number of leading known years of c.
func (l *Ledger) Known(c Column) int { return l.Window[c] }

// Complete reports whether every year of c is known.
func (l *Ledger) Complete(c Column) bool { return l.Window[c] >= l.Len() }

// MarkKnown records that the first n years of c are known.
func (l *Ledger) MarkKnown(c Column, n int) {
	if n > l.Len() {
		n = l.Len()
	}
	l.Window[c] = n
}

// RequireComplete returns a DataIncompleteError for the first driver column
// that is not fully known or holds an undefined value.
func (l *Ledger) RequireComplete(cols ...Column) error {
	for _, c := range cols {
		if !l.Complete(c) {
			return fault.Incomplete(string(c), l.Known(c), "forecast is missing")
		}
		for i, v := range l.Col(c) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fault.Incomplete(string(c), i, "value is undefined")
			}
		}
	}
	return nil
}

// RequireFCF fails with a PrerequisiteError until a cash flow path has been computed.
func (l *Ledger) RequireFCF(op string) error {
	if !l.FCFReady {
		return &fault.PrerequisiteError{Operation: op, Requires: "free cash flow computation"}
	}
	return nil
}

// RequireEBITDAPath fails unless FCF was computed from EBITDA drivers.
func (l *Ledger) RequireEBITDAPath(op string) error {
	if err := l.RequireFCF(op); err != nil {
		return err
	}
	if !l.EBITDAPath {
		return fault.Incomplete(string(EBITDA), 0, op+" needs the EBITDA cash flow path")
	}
	return nil
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Dates = append([]time.Time(nil), l.Dates...)
	c.Assumptions.Dividends = append([]float64(nil), l.Assumptions.Dividends...)
	if l.Assumptions.EffectiveTax != nil {
		te := *l.Assumptions.EffectiveTax
		c.Assumptions.EffectiveTax = &te
	}
	for _, col := range Columns {
		*c.ptr(col) = append([]float64(nil), l.Col(col)...)
	}
	c.Window = make(map[Column]int, len(l.Window))
	for k, v := range l.Window {
		c.Window[k] = v
	}
	return &c
}

// Row is one year of the ledger keyed by column name.
type Row struct {
	Year   int
	Date   time.Time
	Values map[Column]float64
}

// Rows returns the ledger as year rows, the shape consumed by exporters.
func (l *Ledger) Rows() []Row {
	rows := make([]Row, l.Len())
	for i := range rows {
		vals := make(map[Column]float64, len(Columns))
		for _, c := range Columns {
			vals[c] = l.Col(c)[i]
		}
		rows[i] = Row{Year: i, Date: l.Dates[i], Values: vals}
	}
	return rows
}

func (l *Ledger) ptr(c Column) *[]float64 {
	switch c {
	case Revenue:
		return &l.Revenue
	case EBITDA:
		return &l.EBITDA
	case SBC:
		return &l.SBC
	case DA:
		return &l.DA
	case Interest:
		return &l.Interest
	case Capex:
		return &l.Capex
	case DWC:
		return &l.DWC
	case Tax:
		return &l.Tax
	case TaxCash:
		return &l.TaxCash
	case NOL:
		return &l.NOL
	case IncomePretax:
		return &l.IncomePretax
	case IncomeTaxable:
		return &l.IncomeTaxable
	case Debt:
		return &l.Debt
	case DDebt:
		return &l.DDebt
	case Cash:
		return &l.Cash
	case CashBS:
		return &l.CashBS
	case NOA:
		return &l.NOA
	case MnA:
		return &l.MnA
	case Buybacks:
		return &l.Buybacks
	case Dividend:
		return &l.Dividend
	case DividendPolicy:
		return &l.DividendPolicy
	case Shares:
		return &l.Shares
	case Price:
		return &l.Price
	case FCF:
		return &l.FCF
	case FCFE:
		return &l.FCFE
	case FCFF:
		return &l.FCFF
	case Equity:
		return &l.Equity
	case Firm:
		return &l.Firm
	case DDM:
		return &l.DDM
	case WACC:
		return &l.WACC
	case EV:
		return &l.EV
	case ValuePerShare:
		return &l.ValuePerShare
	case ValuePerShareDDM:
		return &l.ValuePerShareDDM
	case Earnings:
		return &l.Earnings
	}
	panic("ledger: unknown column " + string(c))
}
