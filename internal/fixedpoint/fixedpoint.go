// Package fixedpoint implements the engine's scaled-integer numeric
// discipline: every price and every money amount is a distinct int64 type so
// the compiler rejects mixing a 10^6-scaled money value with a
// 10^digits-scaled price value by accident.
package fixedpoint

import (
	"math"

	"github.com/shopspring/decimal"
)

// Money is a signed 64-bit integer scaled by 10^6. Balances, equity, margin,
// profit, swap and commission are all Money.
type Money int64

// Price is a signed 64-bit integer scaled by 10^digits, where digits is a
// per-symbol property (5 for most FX, 2 for metals/indices). Bid, ask, and
// every OHLC field are Price.
type Price int64

// MoneyScale is the fixed decimal exponent for Money (10^6).
const MoneyScale = 1_000_000

// MoneyFromFloat converts a float64 to Money, rounding half away from zero.
func MoneyFromFloat(x float64) Money {
	return Money(roundHalfAwayFromZero(x * MoneyScale))
}

// ToFloat converts a Money back to float64.
func (m Money) ToFloat() float64 {
	return float64(m) / MoneyScale
}

// PriceFromFloat converts a float64 to a Price scaled by 10^digits, rounding
// half away from zero.
func PriceFromFloat(x float64, digits int) Price {
	return Price(roundHalfAwayFromZero(x * pow10(digits)))
}

// ToFloat converts a Price back to float64 using the given digit count.
func (p Price) ToFloat(digits int) float64 {
	return float64(p) / pow10(digits)
}

// MoneyFromDecimal converts an exact decimal.Decimal to Money, rounding
// half away from zero. Unlike MoneyFromFloat, the input never passes
// through a float64, so a config or CSV value like "10000.005" scales to
// exactly 10000005000 rather than whatever that literal's nearest float64
// happens to be.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(moneyScale).Round(0).IntPart())
}

// ToDecimal converts m back to an exact decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(moneyScale)
}

// PriceFromDecimal converts an exact decimal.Decimal to a Price scaled by
// 10^digits, rounding half away from zero.
func PriceFromDecimal(d decimal.Decimal, digits int) Price {
	return Price(d.Mul(decimal.New(1, int32(digits))).Round(0).IntPart())
}

// ToDecimal converts p back to an exact decimal.Decimal using the given
// digit count.
func (p Price) ToDecimal(digits int) decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Div(decimal.New(1, int32(digits)))
}

var moneyScale = decimal.NewFromInt(MoneyScale)

func roundHalfAwayFromZero(x float64) int64 {
	if x >= 0 {
		return int64(math.Floor(x + 0.5))
	}

	return int64(math.Ceil(x - 0.5))
}

func pow10(n int) float64 {
	if n <= 0 {
		return 1
	}

	result := 1.0
	for i := 0; i < n; i++ {
		result *= 10
	}

	return result
}

// MulDiv multiplies value (scaled by 10^valueDigits) by other (scaled by
// 10^otherDigits). The raw product carries valueDigits+otherDigits digits
// and is rescaled to resultDigits, rounding half away from zero when digits
// are dropped. A zero other returns zero. It performs no scale-aware
// division.
func MulDiv(value int64, valueDigits int, other int64, otherDigits int, resultDigits int) int64 {
	if other == 0 {
		return 0
	}

	scaleDiff := resultDigits - (valueDigits + otherDigits)

	numerator := value * other
	if scaleDiff > 0 {
		numerator *= int64(pow10(scaleDiff))
	} else if scaleDiff < 0 {
		divisor := int64(pow10(-scaleDiff))
		return divWithHalfRounding(numerator, divisor)
	}

	return numerator
}

// divWithHalfRounding divides numerator by divisor, rounding the quotient
// half away from zero rather than truncating toward zero.
func divWithHalfRounding(numerator, divisor int64) int64 {
	if divisor == 0 {
		return 0
	}

	neg := (numerator < 0) != (divisor < 0)

	n := numerator
	if n < 0 {
		n = -n
	}

	d := divisor
	if d < 0 {
		d = -d
	}

	q := n / d
	r := n % d
	if 2*r >= d {
		q++
	}

	if neg {
		return -q
	}

	return q
}

// Clamp restricts v to the inclusive range [lo, hi].
func Clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// Min returns the smaller of a and b.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}

// Max returns the larger of a and b.
func Max(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}
