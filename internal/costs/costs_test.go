package costs_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/costs"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/rng"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/stretchr/testify/suite"
)

type CostsTestSuite struct {
	suite.Suite
	spec *symbol.Spec
	src  *rng.Source
}

func (s *CostsTestSuite) SetupTest() {
	s.spec = symbol.New("EURUSD", 1, 5)
	s.spec.Point = 0.00001
	s.spec.ContractSize = 100000
	s.src = rng.New(1)
}

func (s *CostsTestSuite) TestZeroSlippage() {
	var sl costs.Slippage = costs.ZeroSlippage{}
	tick := types.Tick{Bid: 110000, Ask: 110015}
	s.Equal(fixedpoint.Price(0), sl.Calculate(s.spec, s.src, tick, 1))
}

func (s *CostsTestSuite) TestFixedSlippagePoints() {
	var sl costs.Slippage = costs.FixedSlippage{Points: 5}
	tick := types.Tick{Bid: 110000, Ask: 110015}
	got := sl.Calculate(s.spec, s.src, tick, 1)
	s.Equal(fixedpoint.PriceFromFloat(5*0.00001, 5), got)
}

func (s *CostsTestSuite) TestFixedPerLotCommission() {
	var c costs.Commission = costs.FixedPerLotCommission{PerLot: 7}
	got := c.Calculate(s.spec, s.src, 110015, 2)
	s.InDelta(14.0, got.ToFloat(), 1e-6)
}

func (s *CostsTestSuite) TestTieredCommissionPicksHighestThreshold() {
	c := costs.TieredCommission{Tiers: []costs.TierEntry{
		{VolumeThreshold: 0, CommissionPerLot: 10},
		{VolumeThreshold: 10, CommissionPerLot: 5},
	}}
	got := c.Calculate(s.spec, s.src, 0, 15)
	s.InDelta(75.0, got.ToFloat(), 1e-6)
}

func (s *CostsTestSuite) TestStandardSwapTripleDay() {
	sw := costs.StandardSwap{Long: -2, Mode: costs.SwapModePoints, RolloverHour: 22, TripleDay: 3}
	ts := clock.Timestamp(6 * 86400 * 1_000_000) // 1970-01-07, a Wednesday
	s.Equal(int64(3), sw.GetMultiplier(ts))
}

func (s *CostsTestSuite) TestIslamicSwapGracePeriod() {
	sw := costs.IslamicSwap{GracePeriodDays: 3, HoldingFeePerDay: 1.5}
	s.Equal(fixedpoint.Money(0), sw.Calculate(s.spec, types.PositionTypeBuy, 1, 0, 2))
	got := sw.Calculate(s.spec, types.PositionTypeBuy, 1, 0, 5)
	s.InDelta(-3.0, got.ToFloat(), 1e-6)
}

func (s *CostsTestSuite) TestHistoricalSpreadFloor() {
	sp := costs.HistoricalSpread{MinFloor: 20}
	tick := types.Tick{Bid: 110000, Ask: 110005}
	s.Equal(fixedpoint.Price(20), sp.Calculate(s.spec, s.src, tick))
}

func (s *CostsTestSuite) TestVolatilitySpreadWidensOverTime() {
	sp := &costs.VolatilitySpread{Lookback: 3, BasePoints: 10}
	tick1 := types.Tick{Bid: 110000, Ask: 110010, Timestamp: 1}
	tick2 := types.Tick{Bid: 110500, Ask: 110510, Timestamp: 2}

	first := sp.Calculate(s.spec, s.src, tick1)
	second := sp.Calculate(s.spec, s.src, tick2)
	s.True(second >= first)
}

func TestCostsSuite(t *testing.T) {
	suite.Run(t, new(CostsTestSuite))
}
