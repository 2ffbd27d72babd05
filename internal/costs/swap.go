package costs

import (
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// SwapMode selects how StandardSwap interprets its configured rate.
type SwapMode int

const (
	SwapModePoints SwapMode = iota
	SwapModePercentage
)

// Swap returns an account-currency fixed-point daily holding charge
// (positive = credit to the account).
type Swap interface {
	Calculate(spec *symbol.Spec, positionType types.PositionType, volume float64, currentPrice fixedpoint.Price, daysHeld int) fixedpoint.Money
	ShouldApply(ts clock.Timestamp) bool
	GetMultiplier(ts clock.Timestamp) int64
}

// ZeroSwap never charges swap.
type ZeroSwap struct{}

func (ZeroSwap) Calculate(*symbol.Spec, types.PositionType, float64, fixedpoint.Price, int) fixedpoint.Money {
	return 0
}
func (ZeroSwap) ShouldApply(clock.Timestamp) bool    { return false }
func (ZeroSwap) GetMultiplier(clock.Timestamp) int64 { return 1 }

// StandardSwap charges Long or Short per day at RolloverHour, tripling on
// TripleDay (the weekday most brokers roll three days of swap into one, to
// cover the weekend).
type StandardSwap struct {
	Long         float64
	Short        float64
	Mode         SwapMode
	RolloverHour int
	TripleDay    int // 0=Sunday .. 6=Saturday
}

func (s StandardSwap) Calculate(spec *symbol.Spec, positionType types.PositionType, volume float64, currentPrice fixedpoint.Price, daysHeld int) fixedpoint.Money {
	if daysHeld < 1 {
		return 0
	}

	rate := s.Long
	if positionType == types.PositionTypeSell {
		rate = s.Short
	}

	var perDay float64
	switch s.Mode {
	case SwapModePercentage:
		perDay = volume * spec.ContractSize * currentPrice.ToFloat(spec.Digits) / 1_000_000 * rate / 100
	default:
		perDay = volume * spec.ContractSize * (rate * spec.Point) / 1_000_000
	}

	return fixedpoint.MoneyFromFloat(perDay * float64(daysHeld))
}

func (s StandardSwap) ShouldApply(ts clock.Timestamp) bool {
	return ts.HourOfDay() == s.RolloverHour
}

func (s StandardSwap) GetMultiplier(ts clock.Timestamp) int64 {
	if ts.DayOfWeek() == s.TripleDay {
		return 3
	}

	return 1
}

// IslamicSwap charges zero swap but a flat daily holding fee once a
// position has been held longer than GracePeriodDays.
type IslamicSwap struct {
	GracePeriodDays  int
	HoldingFeePerDay float64
}

func (i IslamicSwap) Calculate(_ *symbol.Spec, _ types.PositionType, _ float64, _ fixedpoint.Price, daysHeld int) fixedpoint.Money {
	if daysHeld <= i.GracePeriodDays {
		return 0
	}

	extraDays := daysHeld - i.GracePeriodDays

	return fixedpoint.MoneyFromFloat(-i.HoldingFeePerDay * float64(extraDays))
}

func (IslamicSwap) ShouldApply(clock.Timestamp) bool    { return true }
func (IslamicSwap) GetMultiplier(clock.Timestamp) int64 { return 1 }
