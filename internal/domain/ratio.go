package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Ratio is a float64 ratio with an explicit infinity sentinel in JSON.
// encoding/json refuses to marshal IEEE infinities, but the data contract
// requires division-by-zero cases (no-losses profit factor, zero-variance
// Sharpe) to surface as "+Inf" rather than an error or a fake large number.
type Ratio float64

// Inf returns the positive infinity sentinel.
func Inf() Ratio { return Ratio(math.Inf(1)) }

// IsInf reports whether the ratio is an infinity of either sign.
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 0) }

// MarshalJSON encodes infinities as the strings "+Inf"/"-Inf" and finite
// values as plain JSON numbers.
func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts plain numbers, the infinity sentinels, and null.
func (r *Ratio) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"+Inf"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-Inf"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case "null":
		*r = Ratio(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parse ratio %q: %w", string(b), err)
	}
	*r = Ratio(f)
	return nil
}
