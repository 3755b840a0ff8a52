package ledger

import "fmt"

// Column names one year-indexed line item of the ledger.
type Column string

const (
	Revenue          Column = "revenue"
	EBITDA           Column = "ebitda"
	SBC              Column = "sbc"
	DA               Column = "da"
	Interest         Column = "interest"
	Capex            Column = "capex"
	DWC              Column = "dwc"
	Tax              Column = "tax"
	TaxCash          Column = "tax_cash"
	NOL              Column = "nol"
	IncomePretax     Column = "income_pretax"
	IncomeTaxable    Column = "income_taxable"
	Debt             Column = "debt"
	DDebt            Column = "dDebt"
	Cash             Column = "cash"
	CashBS           Column = "cashBS"
	NOA              Column = "noa"
	MnA              Column = "MnA"
	Buybacks         Column = "buybacks"
	Dividend         Column = "dividend"
	DividendPolicy   Column = "dividend_policy"
	Shares           Column = "shares"
	Price            Column = "price"
	FCF              Column = "fcf"
	FCFE             Column = "fcfe"
	FCFF             Column = "fcff"
	Equity           Column = "equity"
	Firm             Column = "firm"
	DDM              Column = "DDM"
	WACC             Column = "wacc"
	EV               Column = "EV"
	ValuePerShare    Column = "value_per_share"
	ValuePerShareDDM Column = "value_per_share_DDM"
	Earnings         Column = "e"
)

// Columns lists every column in table order.
var Columns = []Column{
	Revenue, EBITDA, SBC, DA, Interest, Capex, DWC,
	Tax, TaxCash, NOL, IncomePretax, IncomeTaxable,
	Debt, DDebt, Cash, CashBS, NOA, MnA,
	Buybacks, Dividend, DividendPolicy, Shares, Price,
	FCF, FCFE, FCFF,
	Equity, Firm, DDM, WACC, EV,
	ValuePerShare, ValuePerShareDDM,
	Earnings,
}

// EBITDADrivers must be complete before the FCF engine can run on the EBITDA path.
var EBITDADrivers = []Column{EBITDA, Capex, DWC, Debt, SBC}

// ParseColumn maps a column name back to its Column.
func ParseColumn(name string) (Column, error) {
	for _, c := range Columns {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown ledger column %q", name)
}

// Col returns the backing slice for c. Writes through the slice land in the ledger.
func (l *Ledger) Col(c Column) []float64 { return *l.ptr(c) }
