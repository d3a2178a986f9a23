// Package money holds the decimal arithmetic shared by the totals engine and
// the payment allocator.
package money

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	onePercent = decimal.New(1, -2)
	half       = decimal.New(5, -1)

	// Tolerance is the largest gap accepted between an allocated sum and a
	// declared payment total.
	Tolerance = decimal.New(1, -2)
)

// Round2 rounds half-up to two decimal places, ties going toward positive
// infinity. Shifting the input by any two-place amount shifts the result by
// exactly that amount.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Add(half).Floor().Mul(onePercent)
}

// NonNegative clamps negative values to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ClampPercent limits a rate to [0, 100].
func ClampPercent(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}

// Percent returns base × pct / 100.
func Percent(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Mul(onePercent)
}

// Sum adds the given values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// WithinTolerance reports whether |a - b| <= Tolerance.
func WithinTolerance(a decimal.Decimal, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Parse converts user input to a decimal. Blank or non-numeric input is zero.
func Parse(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromAny converts a decoded JSON value to a decimal. Anything that is not a
// number or a numeric string is zero.
func FromAny(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case json.Number:
		return Parse(val.String())
	case string:
		return Parse(val)
	default:
		return decimal.Zero
	}
}

var (
	maxInt = decimal.NewFromInt(math.MaxInt)
	minInt = decimal.NewFromInt(math.MinInt)
)

// IntFromAny converts a decoded JSON value to a whole count, truncating any
// fractional part. Non-numeric input and values outside the int range are zero.
func IntFromAny(v any) int {
	whole := FromAny(v).Truncate(0)
	if whole.GreaterThan(maxInt) || whole.LessThan(minInt) {
		return 0
	}
	return int(whole.IntPart())
}

// MustParse is for fixtures and constants.
func MustParse(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}
