// Package money converts between decimal strings at the API boundary and the
// integer minor units the ledger works in.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformed   = errors.New("amount is not a number")
	ErrSubMinor    = errors.New("amount has more precision than the minor unit")
	ErrOutOfRange  = errors.New("amount out of range")
	ErrNotPositive = errors.New("amount must be greater than zero")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinor parses s and scales it by 10^exponent. The result must be a whole
// number of minor units.
func ToMinor(s string, exponent int32) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformed
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrMalformed
	}
	scaled := d.Shift(exponent)
	if !scaled.IsInteger() {
		return 0, ErrSubMinor
	}
	if scaled.Abs().GreaterThan(maxMinor) {
		return 0, ErrOutOfRange
	}
	return scaled.IntPart(), nil
}

// PositiveToMinor is ToMinor restricted to strictly positive amounts.
func PositiveToMinor(s string, exponent int32) (int64, error) {
	v, err := ToMinor(s, exponent)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, ErrNotPositive
	}
	return v, nil
}

// FromMinor renders minor units as a fixed-point decimal string.
func FromMinor(minor int64, exponent int32) string {
	return decimal.New(minor, -exponent).StringFixed(exponent)
}

// AddChecked returns a+b and false if the sum overflows int64.
func AddChecked(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
