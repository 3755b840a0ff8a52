package cashflow

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"finagle/pkg/core/assumption"
	"finagle/pkg/core/fault"
	"finagle/pkg/core/ledger"
	"finagle/pkg/core/projection"
	"finagle/pkg/core/stream"
)

func sampleRecord() ledger.Record {
	return ledger.Record{
		Ticker:   "TEST",
		Date:     "2024-12-31",
		EBITDA:   stream.Scalar(100),
		Capex:    stream.Scalar(20),
		SBC:      stream.Scalar(5),
		DWC:      stream.Scalar(2),
		Debt:     stream.Scalar(200),
		DA:       stream.Scalar(15),
		Tax:      15,
		Interest: 10,
		Cash:     50,
		NOA:      10,
	}
}

func sampleAssumptions() assumption.Assumptions {
	return assumption.Assumptions{
		CostOfEquity:   0.10,
		CostOfDebt:     0.05,
		TaxRate:        0.25,
		TerminalGrowth: 0.02,
		Horizon:        5,
		Shares:         10,
		Price:          40,
		Dividends:      []float64{1, 1.1},
	}
}

// forecastLedger builds a ledger with every EBITDA-path driver forecast.
func forecastLedger(t *testing.T, rec ledger.Record, a assumption.Assumptions) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(rec, a)
	if err != nil {
		t.Fatalf("ledger.New failed: %v", err)
	}
	if err := projection.EBITDA(l, projection.EBITDAInput{Growth: stream.Scalar(0.05)}); err != nil {
		t.Fatalf("EBITDA failed: %v", err)
	}
	if err := projection.Capex(l); err != nil {
		t.Fatalf("Capex failed: %v", err)
	}
	if err := projection.SBC(l, nil); err != nil {
		t.Fatalf("SBC failed: %v", err)
	}
	for _, c := range []ledger.Column{ledger.DWC, ledger.Debt} {
		if err := projection.Hold(l, c); err != nil {
			t.Fatalf("Hold(%s) failed: %v", c, err)
		}
	}
	return l
}

func TestNOLWaterfall(t *testing.T) {
	nol, taxable := NOLWaterfall(10, []float64{-10, 5, 20})

	if nol[1] != 5 || taxable[1] != 0 {
		t.Errorf("year 1: expected nol=5 taxable=0, got nol=%.2f taxable=%.2f", nol[1], taxable[1])
	}
	if nol[2] != 0 || taxable[2] != 15 {
		t.Errorf("year 2: expected nol=0 taxable=15, got nol=%.2f taxable=%.2f", nol[2], taxable[2])
	}
	if taxable[0] != 0 {
		t.Errorf("year 0 with a carried loss should have no taxable income, got %.2f", taxable[0])
	}
}

func TestNOLWaterfall_NeverNegative(t *testing.T) {
	nol, _ := NOLWaterfall(0, []float64{-5, -20, 10, 50, -3})
	for i, v := range nol {
		if v < 0 {
			t.Errorf("year %d: nol went negative (%.2f)", i, v)
		}
	}
	if nol[2] != 20 {
		t.Errorf("expected losses to accumulate to 20, got %.2f", nol[2])
	}
}

func TestTerminalDepreciation_Identity(t *testing.T) {
	cases := []struct{ capex, ebitda, gt, roict, tax float64 }{
		{20, 100, 0.02, 0.15, 0.25},
		{35, 120, 0.03, 0.10, 0.21},
		{8, 40, 0.00, 0.20, 0.30},
		{50, 80, 0.04, 0.08, 0.00},
	}
	for _, c := range cases {
		C := c.gt / c.roict * (1 - c.tax)
		daT, err := TerminalDepreciation(c.capex, c.ebitda, C)
		if err != nil {
			t.Fatalf("unexpected error for %+v: %v", c, err)
		}
		if got := c.capex - daT*(1-C); math.Abs(got-C*c.ebitda) > 1e-9 {
			t.Errorf("%+v: capex - da*(1-C) = %.9f, expected %.9f", c, got, C*c.ebitda)
		}
	}
}

func TestTerminalDepreciation_Infeasible(t *testing.T) {
	_, err := TerminalDepreciation(5, 100, 0.1)
	var ae *fault.AssumptionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AssumptionError, got %v", err)
	}
}

func TestCompute_FCFIdentities(t *testing.T) {
	l := forecastLedger(t, sampleRecord(), sampleAssumptions())
	l.Debt[3] = 260
	l.MnA[2] = 5
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	tax := l.Assumptions.TaxRate
	for i := 0; i <= l.Horizon; i++ {
		if math.Abs(l.FCFE[i]-(l.FCF[i]+l.DDebt[i]-l.MnA[i])) > 1e-9 {
			t.Errorf("year %d: fcfe identity broken", i)
		}
		if math.Abs(l.FCFF[i]-(l.FCF[i]-l.Interest[i]*tax-l.MnA[i])) > 1e-9 {
			t.Errorf("year %d: fcff identity broken", i)
		}
	}
	if l.DDebt[3] != 60 || l.DDebt[4] != -60 {
		t.Errorf("expected dDebt 60 then -60, got %.2f, %.2f", l.DDebt[3], l.DDebt[4])
	}
	if math.Abs(l.Interest[4]-13) > 1e-9 {
		t.Errorf("interest should follow prior-year debt: got %.2f", l.Interest[4])
	}
}

func TestCompute_Idempotent(t *testing.T) {
	l := forecastLedger(t, sampleRecord(), sampleAssumptions())
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	first := l.Clone()
	if err := Compute(l); err != nil {
		t.Fatalf("second Compute failed: %v", err)
	}
	if !reflect.DeepEqual(first, l) {
		t.Error("second Compute changed the ledger")
	}
}

func TestCompute_TerminalDepreciationAnchorsSchedule(t *testing.T) {
	l := forecastLedger(t, sampleRecord(), sampleAssumptions())
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	h := l.Horizon
	C := l.Assumptions.ReinvestmentFactor()
	if got := l.Capex[h] - l.DA[h]*(1-C); math.Abs(got-C*l.EBITDA[h]) > 1e-9 {
		t.Errorf("terminal depreciation identity broken: %.9f vs %.9f", got, C*l.EBITDA[h])
	}
	if l.DA[0] != 15 {
		t.Errorf("year-0 depreciation overwritten: got %.2f", l.DA[0])
	}
}

func TestCompute_CashAndDividendPolicy(t *testing.T) {
	l := forecastLedger(t, sampleRecord(), sampleAssumptions())
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	for i := 1; i <= l.Horizon; i++ {
		if math.Abs(l.Cash[i]-(l.Cash[i-1]+l.FCFE[i])) > 1e-9 {
			t.Errorf("year %d: cash does not accumulate fcfe", i)
		}
		if l.NOA[i] != 10 {
			t.Errorf("year %d: noa should stay flat, got %.2f", i, l.NOA[i])
		}
	}
	if math.Abs(l.DividendPolicy[0]-10) > 1e-9 || math.Abs(l.DividendPolicy[1]-11) > 1e-9 {
		t.Errorf("declared schedule: expected 10, 11 got %.2f, %.2f", l.DividendPolicy[0], l.DividendPolicy[1])
	}
	for i := 2; i <= l.Horizon; i++ {
		if l.DividendPolicy[i] < l.DividendPolicy[i-1] {
			t.Errorf("year %d: dividend policy decreased", i)
		}
	}
}

func TestCompute_EffectiveTaxYearOne(t *testing.T) {
	l := forecastLedger(t, sampleRecord(), sampleAssumptions())
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	tr := l.Assumptions.TaxRate
	p0, p1 := l.IncomePretax[0], l.IncomePretax[1]
	tax0 := math.Max(tr*p0, 15)
	want := tax0 + tr*(p1-p0)
	if math.Abs(l.Tax[1]-want) > 1e-9 {
		t.Errorf("expected year-1 tax %.6f, got %.6f", want, l.Tax[1])
	}

	te := 0.30
	a := sampleAssumptions()
	a.EffectiveTax = &te
	l = forecastLedger(t, sampleRecord(), a)
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if math.Abs(l.Tax[1]-te*l.IncomePretax[1]) > 1e-9 {
		t.Errorf("supplied effective rate ignored: got %.6f", l.Tax[1])
	}
}

func TestCompute_NOLShieldsCashTax(t *testing.T) {
	rec := sampleRecord()
	rec.NOL = 500
	l := forecastLedger(t, rec, sampleAssumptions())
	if err := Compute(l); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if l.IncomeTaxable[1] != 0 {
		t.Errorf("expected no taxable income while the loss is carried, got %.2f", l.IncomeTaxable[1])
	}
	if l.TaxCash[1] >= l.Tax[1] {
		t.Errorf("NOL drawdown should reduce cash tax below book tax: %.2f vs %.2f", l.TaxCash[1], l.Tax[1])
	}
}

func TestCompute_MissingDrivers(t *testing.T) {
	l, err := ledger.New(sampleRecord(), sampleAssumptions())
	if err != nil {
		t.Fatalf("ledger.New failed: %v", err)
	}
	err = Compute(l)
	var de *fault.DataIncompleteError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataIncompleteError, got %v", err)
	}
	if l.FCFReady {
		t.Error("ledger must not be marked FCF-ready after a failure")
	}
}

func TestCompute_InfeasibleTerminalDepreciation(t *testing.T) {
	rec := sampleRecord()
	rec.Capex = stream.Scalar(2)
	l := forecastLedger(t, rec, sampleAssumptions())

	err := Compute(l)
	var ae *fault.AssumptionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AssumptionError, got %v", err)
	}
	if ae.Year != l.Horizon {
		t.Errorf("expected the terminal year %d, got %d", l.Horizon, ae.Year)
	}
}

func TestFromEarnings(t *testing.T) {
	rec := ledger.Record{Ticker: "EPS", Date: "2024-12-31", Earnings: stream.Scalar(10), NOA: 7}
	a := sampleAssumptions()
	a.Dividends = nil
	l, err := ledger.New(rec, a)
	if err != nil {
		t.Fatalf("ledger.New failed: %v", err)
	}
	err = FromEarnings(l, EarningsInput{
		Payout: stream.Scalar(0.5),
		Growth: stream.Scalar(0.02),
		ROE:    0.1,
	})
	if err != nil {
		t.Fatalf("FromEarnings failed: %v", err)
	}
	if !l.FCFReady || !l.EarningsPath || l.EBITDAPath {
		t.Error("expected the earnings path flags")
	}
	h := l.Horizon
	if math.Abs(l.FCFE[0]-5) > 1e-9 {
		t.Errorf("year 0: expected 5, got %.4f", l.FCFE[0])
	}
	// payout_T = 1 - 0.02/0.1
	if math.Abs(l.FCFE[h]-l.Earnings[h]*0.8) > 1e-9 {
		t.Errorf("terminal payout: expected %.4f, got %.4f", l.Earnings[h]*0.8, l.FCFE[h])
	}
	if math.Abs(l.Earnings[h]-10*math.Pow(1.02, float64(h))) > 1e-9 {
		t.Errorf("earnings growth: got %.6f", l.Earnings[h])
	}
	for i := 0; i <= h; i++ {
		if l.NOA[i] != 7 {
			t.Errorf("year %d: expected noa carried at 7, got %.2f", i, l.NOA[i])
		}
	}
}
