package costs

import (
	"math"

	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/rng"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// Spread returns a fixed-point spread to substitute for the tick's raw
// ask-bid.
type Spread interface {
	Calculate(spec *symbol.Spec, src *rng.Source, tick types.Tick) fixedpoint.Price
}

// FixedSpread always returns Points * symbol.Point.
type FixedSpread struct {
	Points int64
}

func (f FixedSpread) Calculate(spec *symbol.Spec, _ *rng.Source, _ types.Tick) fixedpoint.Price {
	return pointsToPrice(float64(f.Points), spec)
}

// HistoricalSpread passes through max(tick.ask-tick.bid, MinFloor).
type HistoricalSpread struct {
	MinFloor fixedpoint.Price
}

func (h HistoricalSpread) Calculate(_ *symbol.Spec, _ *rng.Source, tick types.Tick) fixedpoint.Price {
	raw := tick.Ask - tick.Bid
	if raw < h.MinFloor {
		return h.MinFloor
	}

	return raw
}

// TimeOfDaySpread multiplies BasePoints by a session-specific multiplier
// keyed on UTC hour: Asian [0,7), London [7,12), NY [12,20), Overlap
// [12,16) (London/NY overlap takes precedence over the plain NY bucket).
type TimeOfDaySpread struct {
	BasePoints        int64
	AsianMultiplier   float64
	LondonMultiplier  float64
	NYMultiplier      float64
	OverlapMultiplier float64
}

func (t TimeOfDaySpread) Calculate(spec *symbol.Spec, _ *rng.Source, tick types.Tick) fixedpoint.Price {
	hour := tick.Timestamp.HourOfDay()

	multiplier := 1.0
	switch {
	case hour >= 12 && hour < 16:
		multiplier = t.OverlapMultiplier
	case hour >= 0 && hour < 7:
		multiplier = t.AsianMultiplier
	case hour >= 7 && hour < 12:
		multiplier = t.LondonMultiplier
	case hour >= 12 && hour < 20:
		multiplier = t.NYMultiplier
	}

	return pointsToPrice(float64(t.BasePoints)*multiplier, spec)
}

// RandomSpread draws from N(MeanPoints, StdDevPoints), clamped at MinPoints.
type RandomSpread struct {
	MeanPoints   float64
	StdDevPoints float64
	MinPoints    int64
}

func (r RandomSpread) Calculate(spec *symbol.Spec, src *rng.Source, _ types.Tick) fixedpoint.Price {
	points := src.NextNormal(r.MeanPoints, r.StdDevPoints)
	if points < float64(r.MinPoints) {
		points = float64(r.MinPoints)
	}

	return pointsToPrice(points, spec)
}

// VolatilitySpread widens the spread with the running average absolute
// midprice change over a lookback window of ticks.
type VolatilitySpread struct {
	Lookback      int
	BasePoints    int64
	midprices     []float64
}

func (v *VolatilitySpread) Calculate(spec *symbol.Spec, _ *rng.Source, tick types.Tick) fixedpoint.Price {
	mid := (tick.Bid.ToFloat(spec.Digits) + tick.Ask.ToFloat(spec.Digits)) / 2

	avgAbsChange := 0.0
	if len(v.midprices) > 0 {
		sum := 0.0
		count := 0
		prev := v.midprices[0]
		for _, m := range v.midprices[1:] {
			sum += math.Abs(m - prev)
			prev = m
			count++
		}
		sum += math.Abs(mid - prev)
		count++
		if count > 0 {
			avgAbsChange = sum / float64(count)
		}
	}

	v.midprices = append(v.midprices, mid)
	if v.Lookback > 0 && len(v.midprices) > v.Lookback {
		v.midprices = v.midprices[len(v.midprices)-v.Lookback:]
	}

	basePrice := pointsToPrice(float64(v.BasePoints), spec)
	widenPrice := fixedpoint.PriceFromFloat(avgAbsChange, spec.Digits)

	return basePrice + widenPrice
}
