// Package stream builds dense per-year value sequences from sparse anchors.
//
// A forecast input is either a single TTM value, an explicit run of years with
// an unknown tail, or a complete run. Series makes that shape explicit so no
// caller ever scans for missing-value markers.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the shape of a Series.
type Kind int

const (
	KindNone Kind = iota
	KindScalar
	KindPartial
	KindFull
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindPartial:
		return "partial"
	case KindFull:
		return "full"
	default:
		return "none"
	}
}

// Series is a tagged variant: Scalar(value) | Partial(values, valid) | Full(values).
// The zero value carries no data.
type Series struct {
	kind   Kind
	values []float64
	valid  int
}

// Scalar is a single value anchored at year 0.
func Scalar(v float64) Series {
	return Series{kind: KindScalar, values: []float64{v}, valid: 1}
}

// Partial holds values whose first valid entries are known; the rest is a placeholder tail.
func Partial(values []float64, valid int) Series {
	if valid < 0 {
		valid = 0
	}
	if valid > len(values) {
		valid = len(values)
	}
	return Series{kind: KindPartial, values: append([]float64(nil), values...), valid: valid}
}

// Full holds a complete run of known values.
func Full(values []float64) Series {
	return Series{kind: KindFull, values: append([]float64(nil), values...), valid: len(values)}
}

func (s Series) Kind() Kind { return s.kind }

// Len is the number of known leading values.
func (s Series) Len() int { return s.valid }

func (s Series) IsZero() bool { return s.kind == KindNone || s.valid == 0 }

// Explicit returns a copy of the known values.
func (s Series) Explicit() []float64 {
	return append([]float64(nil), s.values[:s.valid]...)
}

// Last returns the last known value.
func (s Series) Last() (float64, bool) {
	if s.valid == 0 {
		return 0, false
	}
	return s.values[s.valid-1], true
}

func (s Series) String() string {
	return fmt.Sprintf("%s%v", s.kind, s.Explicit())
}

type partialJSON struct {
	Values []float64 `json:"values" yaml:"values"`
	Valid  *int      `json:"valid" yaml:"valid"`
}

// UnmarshalJSON accepts a number (Scalar), an array (Full) or
// {"values": [...], "valid": n} (Partial). null leaves the zero Series.
func (s *Series) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = Series{}
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*s = Scalar(num)
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = Full(arr)
		return nil
	}
	var p partialJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("series: expected number, array or {values, valid}: %w", err)
	}
	return s.fromPartial(p)
}

// MarshalJSON writes the inverse of UnmarshalJSON.
func (s Series) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindScalar:
		return json.Marshal(s.values[0])
	case KindFull:
		return json.Marshal(s.values)
	case KindPartial:
		valid := s.valid
		return json.Marshal(partialJSON{Values: s.values, Valid: &valid})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalYAML implements the gopkg.in/yaml.v2 Unmarshaler with the same shapes as JSON.
func (s *Series) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var num float64
	if err := unmarshal(&num); err == nil {
		*s = Scalar(num)
		return nil
	}
	var arr []float64
	if err := unmarshal(&arr); err == nil {
		*s = Full(arr)
		return nil
	}
	var p partialJSON
	if err := unmarshal(&p); err != nil {
		return fmt.Errorf("series: expected number, sequence or {values, valid}: %w", err)
	}
	return s.fromPartial(p)
}

func (s *Series) fromPartial(p partialJSON) error {
	if p.Valid == nil {
		*s = Full(p.Values)
		return nil
	}
	if *p.Valid < 0 || *p.Valid > len(p.Values) {
		return fmt.Errorf("series: valid length %d out of range for %d values", *p.Valid, len(p.Values))
	}
	*s = Partial(p.Values, *p.Valid)
	return nil
}
