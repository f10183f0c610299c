// Package money holds the rounding and comparison rules shared by the
// accounting engines. Engines compute in float64 and round only at their
// output boundary; the ledger works in decimal.Decimal end to end.
package money

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Tolerance is the largest debit/credit difference still treated as balanced.
const Tolerance = 0.01

var tolerance = decimal.NewFromFloat(Tolerance)

// Finite reports whether every value is neither NaN nor infinite. Engines
// check it before rounding, which panics on non-finite input.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Sum adds the values without accumulating binary floating point error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// FromFloat converts an engine amount into a ledger amount rounded to cents.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Balanced reports whether two ledger totals agree within Tolerance.
func Balanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThanOrEqual(tolerance)
}

// Max returns the larger of a and b.
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Format renders an amount in the given ISO currency for memos and logs.
// Unknown currency codes fall back to USD.
func Format(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%s %v", unit.String(), number.Decimal(amount, number.Scale(2)))
}
