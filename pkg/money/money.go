// Package money provides exact two-decimal currency helpers on top of shopspring/decimal.
//
// Accumulators keep full precision; values are rounded half away from zero only when
// they are emitted (Round2) and compared with a one-cent tolerance (Equal).
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the additive identity.
var Zero = decimal.Zero

// Cent is the comparison tolerance.
var Cent = decimal.New(1, -2)

// Hundred is used for percentage conversions.
var Hundred = decimal.NewFromInt(100)

// Parse converts a currency string from an export into a decimal.
//
// It accepts "$1,234.50", "(12.00)", "-12", "12.00-", " 1 234 " and "" (zero).
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || s == "$" {
		return decimal.Zero, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasSuffix(s, "-") {
		neg = !neg
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	// Keep digits and '.' only.
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '$', r == ',', r == ' ', r == '\u00a0', r == '+':
		default:
			return decimal.Zero, fmt.Errorf("invalid money value %q", raw)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("invalid money value %q", raw)
	}

	val, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid money value %q: %w", raw, err)
	}
	if neg {
		val = val.Neg()
	}
	return val, nil
}

// MustParse is Parse for literals in tables and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Equal reports |a - b| < 0.01.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Cent)
}

// IsZero reports |d| < 0.01.
func IsZero(d decimal.Decimal) bool {
	return Equal(d, decimal.Zero)
}

// Format renders two fixed decimals ("1234.50", "-3.00").
func Format(d decimal.Decimal) string {
	return Round2(d).StringFixed(2)
}

// Percent multiplies by rate/100 without rounding (e.g. Percent(x, "8.875")).
func Percent(d decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return d.Mul(rate).Div(Hundred)
}

// Sum adds values at full precision.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Float returns the rounded value as float64 for spreadsheet cells.
func Float(d decimal.Decimal) float64 {
	f, _ := Round2(d).Float64()
	return f
}
