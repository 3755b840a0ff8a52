// Package fault defines the error taxonomy of the forecasting engine.
//
// Every failure is deterministic (bad assumptions, missing data or a stage
// called out of order), so nothing here is retryable. Errors carry the year
// and the offending quantity so a caller can diagnose without the ledger.
package fault

import "fmt"

// AssumptionError reports an infeasible or missing assumption, such as a
// negative terminal depreciation or a missing terminal interpolation anchor.
type AssumptionError struct {
	Year     int
	Quantity string
	Value    float64
	Reason   string
}

func (e *AssumptionError) Error() string {
	return fmt.Sprintf("assumption error: %s (year %d, %s=%g)", e.Reason, e.Year, e.Quantity, e.Value)
}

// DataIncompleteError reports a required column that is missing or holds
// undefined values.
type DataIncompleteError struct {
	Column string
	Year   int
	Reason string
}

func (e *DataIncompleteError) Error() string {
	return fmt.Sprintf("data incomplete: column %q year %d: %s", e.Column, e.Year, e.Reason)
}

// PrerequisiteError reports a stage invoked before the stage it depends on.
type PrerequisiteError struct {
	Operation string
	Requires  string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite missing: %s requires %s", e.Operation, e.Requires)
}

// NegativeCashError reports a financing or M&A action that drives projected
// cash below zero.
type NegativeCashError struct {
	Year int
	Cash float64
}

func (e *NegativeCashError) Error() string {
	return fmt.Sprintf("negative cash: %.4g in year %d, lower the target EBITDA or raise leverage", e.Cash, e.Year)
}

// Assumption is shorthand for building an *AssumptionError.
func Assumption(year int, quantity string, value float64, reason string) error {
	return &AssumptionError{Year: year, Quantity: quantity, Value: value, Reason: reason}
}

// Incomplete is shorthand for building a *DataIncompleteError.
func Incomplete(column string, year int, reason string) error {
	return &DataIncompleteError{Column: column, Year: year, Reason: reason}
}
