// Package money centralizes the fixed-decimal boundary for every cash,
// quantity, and price value in the trading engine. Floating point is
// never a factor in a value that reaches an order or the portfolio.
package money

import (
	"github.com/shopspring/decimal"
)

func init() {
	decimal.DivisionPrecision = 8
}

// Zero is the canonical zero decimal value.
var Zero = decimal.Zero

// FromFloat converts a non-monetary floating point statistic (an
// indicator value, a coefficient) into a decimal at the boundary where
// it is about to be multiplied into a cash amount. Callers must not
// hold on to the float past this call.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// ToFloat extracts a float64 for use in a statistical computation
// (Sharpe, correlation) that is explicitly allowed to be floating
// point. Never feed the result back into an order field.
func ToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Round8 rounds to 8 fractional digits, the minimum precision used
// for monetary quantities throughout the engine.
func Round8(d decimal.Decimal) decimal.Decimal {
	return d.Round(8)
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// IsNegative reports whether d is strictly less than zero.
func IsNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Abs returns the absolute value of d.
func Abs(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

// PercentOf returns whole multiplied by the fraction pct, e.g.
// PercentOf(10000, 0.02) == 200.
func PercentOf(whole decimal.Decimal, pct float64) decimal.Decimal {
	return whole.Mul(decimal.NewFromFloat(pct))
}
