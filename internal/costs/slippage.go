// Package costs implements the four polymorphic cost-model families:
// slippage, commission, swap, and spread. Each family exposes a single
// Calculate-shaped contract; the engine treats concrete variants only
// through that contract, mirroring the teacher's CommissionFee interface
// generalized to all four concerns.
package costs

import (
	"math"

	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/rng"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// Slippage returns a non-negative fixed-point price increment to apply
// adverse to the trade direction (added to ask on buys, subtracted from
// bid on sells).
type Slippage interface {
	Calculate(spec *symbol.Spec, src *rng.Source, tick types.Tick, volume float64) fixedpoint.Price
}

func pointsToPrice(points float64, spec *symbol.Spec) fixedpoint.Price {
	return fixedpoint.PriceFromFloat(points*spec.Point, spec.Digits)
}

// ZeroSlippage always returns 0.
type ZeroSlippage struct{}

func (ZeroSlippage) Calculate(*symbol.Spec, *rng.Source, types.Tick, float64) fixedpoint.Price {
	return 0
}

// FixedSlippage returns Points * symbol.Point.
type FixedSlippage struct {
	Points int64
}

func (f FixedSlippage) Calculate(spec *symbol.Spec, _ *rng.Source, _ types.Tick, _ float64) fixedpoint.Price {
	return pointsToPrice(float64(f.Points), spec)
}

// RandomSlippage returns a uniform integer number of points in [Min, Max],
// times symbol.Point.
type RandomSlippage struct {
	Min, Max int64
}

func (r RandomSlippage) Calculate(spec *symbol.Spec, src *rng.Source, _ types.Tick, _ float64) fixedpoint.Price {
	points := src.NextInt(r.Min, r.Max)

	return pointsToPrice(float64(points), spec)
}

// VolumeSlippage returns round(Base + volume*PerLot) points, times
// symbol.Point.
type VolumeSlippage struct {
	Base   float64
	PerLot float64
}

func (v VolumeSlippage) Calculate(spec *symbol.Spec, _ *rng.Source, _ types.Tick, volume float64) fixedpoint.Price {
	points := math.Round(v.Base + volume*v.PerLot)

	return pointsToPrice(points, spec)
}

// LatencyProfileSlippage returns
// spread*SpreadFraction + |N(0, LatencyMS/100)| points, times symbol.Point.
type LatencyProfileSlippage struct {
	LatencyMS      float64
	SpreadFraction float64
}

func (l LatencyProfileSlippage) Calculate(spec *symbol.Spec, src *rng.Source, tick types.Tick, _ float64) fixedpoint.Price {
	spreadPoints := float64(tick.SpreadPoints)
	normal := src.NextNormal(0, l.LatencyMS/100)
	points := spreadPoints*l.SpreadFraction + math.Abs(normal)

	return pointsToPrice(points, spec)
}
