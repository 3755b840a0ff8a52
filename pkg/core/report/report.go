// Package report renders a valued ledger as a Markdown summary with the
// transposed line-item table, and as HTML.
package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"finagle/pkg/core/ledger"
	"finagle/pkg/core/valuation"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// DisplayColumns are the line items shown in the table, in display order.
var DisplayColumns = []ledger.Column{
	ledger.Revenue, ledger.EBITDA, ledger.SBC, ledger.DA, ledger.Interest,
	ledger.IncomePretax, ledger.NOL, ledger.IncomeTaxable, ledger.TaxCash, ledger.Tax,
	ledger.Capex, ledger.MnA, ledger.DDebt, ledger.DWC,
	ledger.FCF, ledger.FCFE, ledger.FCFF,
	ledger.Buybacks, ledger.Dividend, ledger.Cash, ledger.CashBS, ledger.NOA,
	ledger.Equity, ledger.Debt, ledger.EV, ledger.WACC, ledger.Firm,
	ledger.Shares, ledger.Price, ledger.ValuePerShare, ledger.ValuePerShareDDM,
}

// Format rounds v to one decimal. Undefined values render as "n/a".
func Format(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(1)
}

// formatRate keeps rates readable: WACC 0.0844 would otherwise print as 0.1.
func formatRate(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// Table writes the line items as a Markdown pipe table with one column per year.
func Table(l *ledger.Ledger) string {
	return RowsTable(l.Rows())
}

// RowsTable is Table over exported year rows, such as a stored run.
func RowsTable(rows []ledger.Row) string {
	var sb strings.Builder

	sb.WriteString("| line item |")
	for _, r := range rows {
		sb.WriteString(" " + r.Date.Format("2006-01-02") + " |")
	}
	sb.WriteString("\n|---|")
	for range rows {
		sb.WriteString("---:|")
	}
	sb.WriteString("\n")

	for _, c := range DisplayColumns {
		sb.WriteString("| " + string(c) + " |")
		for _, r := range rows {
			if c == ledger.WACC {
				sb.WriteString(" " + formatRate(r.Values[c]) + " |")
				continue
			}
			sb.WriteString(" " + Format(r.Values[c]) + " |")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Markdown writes the full report: assumptions, headline values, model line
// items and the line-item table.
func Markdown(l *ledger.Ledger, s valuation.Summary) string {
	a := l.Assumptions
	h := l.Horizon
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", l.Ticker)
	fmt.Fprintf(&sb, "As of %s, %d-year horizon.\n\n", l.Dates[0].Format("2006-01-02"), h)

	sb.WriteString("## Assumptions\n\n")
	sb.WriteString("| assumption | value |\n|---|---:|\n")
	fmt.Fprintf(&sb, "| cost of debt | %s |\n", formatRate(a.CostOfDebt))
	fmt.Fprintf(&sb, "| cost of equity | %s |\n", formatRate(a.CostOfEquity))
	fmt.Fprintf(&sb, "| terminal growth | %s |\n", formatRate(a.TerminalGrowth))
	fmt.Fprintf(&sb, "| tax rate | %s |\n\n", formatRate(a.TaxRate))

	sb.WriteString("## Valuation\n\n")
	sb.WriteString("| measure | value |\n|---|---:|\n")
	fmt.Fprintf(&sb, "| terminal cash | %s |\n", Format(l.Cash[h]))
	fmt.Fprintf(&sb, "| terminal FCFE | %s |\n", Format(s.TerminalFCFE))
	fmt.Fprintf(&sb, "| terminal equity | %s |\n", Format(l.Equity[h]))
	fmt.Fprintf(&sb, "| equity value | %s |\n", Format(s.EquityValue))
	if s.FirmValue != nil {
		fmt.Fprintf(&sb, "| firm value | %s |\n", Format(*s.FirmValue))
		fmt.Fprintf(&sb, "| implied EV/EBITDA | %s |\n", Format(s.ImpliedMultiple))
	}
	fmt.Fprintf(&sb, "| shares | %s |\n\n", Format(a.Shares))

	sb.WriteString("| model | value per share |\n|---|---:|\n")
	for _, item := range s.LineItems() {
		fmt.Fprintf(&sb, "| %s | %s |\n", item.ModelName, Format(item.SharePrice))
	}
	sb.WriteString("\n## Line items\n\n")
	sb.WriteString(Table(l))
	return sb.String()
}

// HTML renders Markdown output with GitHub-style tables.
func HTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
