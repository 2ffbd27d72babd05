package costs

import (
	"sort"

	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/rng"
	"github.com/fxsim/backtester/internal/symbol"
)

// Commission returns an account-currency fixed-point charge for a fill.
type Commission interface {
	Calculate(spec *symbol.Spec, src *rng.Source, fillPrice fixedpoint.Price, volume float64) fixedpoint.Money
}

// ZeroCommission always returns 0.
type ZeroCommission struct{}

func (ZeroCommission) Calculate(*symbol.Spec, *rng.Source, fixedpoint.Price, float64) fixedpoint.Money {
	return 0
}

// FixedPerLotCommission charges PerLot per lot traded.
type FixedPerLotCommission struct {
	PerLot float64
}

func (f FixedPerLotCommission) Calculate(_ *symbol.Spec, _ *rng.Source, _ fixedpoint.Price, volume float64) fixedpoint.Money {
	return fixedpoint.MoneyFromFloat(f.PerLot * volume)
}

// FixedPerTradeCommission charges a flat amount regardless of volume.
type FixedPerTradeCommission struct {
	Amount float64
}

func (f FixedPerTradeCommission) Calculate(*symbol.Spec, *rng.Source, fixedpoint.Price, float64) fixedpoint.Money {
	return fixedpoint.MoneyFromFloat(f.Amount)
}

// SpreadMarkupCommission adds volume*contract_size*(points*point)/10^6.
type SpreadMarkupCommission struct {
	Points int64
}

func (s SpreadMarkupCommission) Calculate(spec *symbol.Spec, _ *rng.Source, _ fixedpoint.Price, volume float64) fixedpoint.Money {
	amount := volume * spec.ContractSize * (float64(s.Points) * spec.Point) / 1_000_000

	return fixedpoint.MoneyFromFloat(amount)
}

// PercentageOfValueCommission charges
// volume*contract_size*fill_price/10^6*Fraction.
type PercentageOfValueCommission struct {
	Fraction float64
}

func (p PercentageOfValueCommission) Calculate(spec *symbol.Spec, _ *rng.Source, fillPrice fixedpoint.Price, volume float64) fixedpoint.Money {
	amount := volume * spec.ContractSize * fillPrice.ToFloat(spec.Digits) / 1_000_000 * p.Fraction

	return fixedpoint.MoneyFromFloat(amount)
}

// TierEntry is one row of a Tiered commission schedule: at or above
// VolumeThreshold lots, charge CommissionPerLot per lot.
type TierEntry struct {
	VolumeThreshold  float64
	CommissionPerLot float64
}

// TieredCommission picks the highest threshold <= volume and charges that
// tier's per-lot rate.
type TieredCommission struct {
	Tiers []TierEntry
}

func (t TieredCommission) Calculate(_ *symbol.Spec, _ *rng.Source, _ fixedpoint.Price, volume float64) fixedpoint.Money {
	sorted := make([]TierEntry, len(t.Tiers))
	copy(sorted, t.Tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VolumeThreshold < sorted[j].VolumeThreshold })

	perLot := 0.0
	for _, tier := range sorted {
		if tier.VolumeThreshold <= volume {
			perLot = tier.CommissionPerLot
		}
	}

	return fixedpoint.MoneyFromFloat(perLot * volume)
}
