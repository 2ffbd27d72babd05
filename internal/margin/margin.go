// Package margin implements the engine's required/free margin, stop-out,
// and max-volume formulas.
package margin

import (
	"math"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/currency"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// Calculator computes margin figures against a shared currency converter.
type Calculator struct {
	converter *currency.Converter
	logger    *backtestlog.Logger
}

// New constructs a Calculator over converter, logging missing conversion
// paths through logger (pass backtestlog.NewNop() in tests).
func New(converter *currency.Converter, logger *backtestlog.Logger) *Calculator {
	return &Calculator{converter: converter, logger: logger}
}

// RequiredMargin = volume*contract_size*price/leverage. Leverage <= 0 is
// clamped to 1.
func RequiredMargin(spec *symbol.Spec, volume float64, price fixedpoint.Price, leverage int64) fixedpoint.Money {
	if leverage <= 0 {
		leverage = 1
	}

	amount := volume * spec.ContractSize * price.ToFloat(spec.Digits) / float64(leverage)

	return fixedpoint.MoneyFromFloat(amount)
}

// MarginLevel returns equity/margin*100, or +Inf when margin <= 0.
func MarginLevel(equity, margin fixedpoint.Money) float64 {
	if margin <= 0 {
		return math.Inf(1)
	}

	return equity.ToFloat() / margin.ToFloat() * 100
}

// FreeMargin = equity - margin.
func FreeMargin(equity, margin fixedpoint.Money) fixedpoint.Money {
	return equity - margin
}

// PositionMargin is the per-position input to TotalMargin.
type PositionMargin struct {
	Ticket         uint64
	Margin         fixedpoint.Money
	MarginCurrency string
}

// TotalMargin sums each position's margin after converting from its margin
// currency to accountCurrency. A missing conversion path is treated as a
// unit rate — the position's contribution passes through unconverted —
// and logged as a warning rather than failing the computation, per the
// margin calculator's safety-default contract.
func (c *Calculator) TotalMargin(positions []PositionMargin, accountCurrency string) fixedpoint.Money {
	var total float64

	for _, pm := range positions {
		amount := pm.Margin.ToFloat()

		converted, err := c.converter.Convert(amount, pm.MarginCurrency, accountCurrency)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("margin: no conversion path, using unit rate")
			}

			converted = amount
		}

		total += converted
	}

	return fixedpoint.MoneyFromFloat(total)
}

// ShouldStopOut reports whether the current margin level lies below
// threshold.
func ShouldStopOut(account types.Account, threshold float64) bool {
	return MarginLevel(account.Equity, account.Margin) < threshold
}

// MaxVolume = floor((freeMargin*leverage)/(contract_size*price) to
// volume_step), clamped to [volume_min, volume_max].
func MaxVolume(spec *symbol.Spec, price fixedpoint.Price, freeMargin fixedpoint.Money, leverage int64) float64 {
	if leverage <= 0 {
		leverage = 1
	}

	priceFloat := price.ToFloat(spec.Digits)
	if priceFloat <= 0 || spec.ContractSize <= 0 {
		return spec.VolumeMin
	}

	raw := (freeMargin.ToFloat() * float64(leverage)) / (spec.ContractSize * priceFloat)

	if spec.VolumeStep > 0 {
		raw = math.Floor(raw/spec.VolumeStep) * spec.VolumeStep
	}

	return spec.ValidateVolume(raw)
}
