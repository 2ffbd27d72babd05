package costsengine_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/costs"
	"github.com/fxsim/backtester/internal/costsengine"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite
	spec   *symbol.Spec
	engine *costsengine.Engine
}

func (s *EngineTestSuite) SetupTest() {
	s.spec = symbol.New("EURUSD", 1, 5)
	s.spec.Point = 0.00001
	s.spec.ContractSize = 100000
	s.engine = costsengine.New(1, costs.ZeroSlippage{}, costs.ZeroCommission{}, costs.ZeroSwap{}, costs.FixedSpread{Points: 15})
}

func (s *EngineTestSuite) TestMarketBuyAlwaysTriggers() {
	order := types.PendingOrder{OrderType: types.OrderTypeBuy, VolumeCurrent: 0.1}
	tick := types.Tick{Bid: 110000, Ask: 110015}

	eval := s.engine.EvaluateOrder(order, tick, s.spec)
	s.True(eval.Executed)
	s.Equal(fixedpoint.Price(110015), eval.FillPrice)
}

func (s *EngineTestSuite) TestBuyStopBoundaryTriggersAtEqual() {
	// Invariant 16: BUY_STOP at p with tick.ask == p triggers (>= comparison).
	order := types.PendingOrder{OrderType: types.OrderTypeBuyStop, PriceOpen: 110015, VolumeCurrent: 0.1}
	tick := types.Tick{Bid: 110000, Ask: 110015}

	eval := s.engine.EvaluateOrder(order, tick, s.spec)
	s.True(eval.Executed)
	s.Equal(fixedpoint.Price(110015), eval.FillPrice)
}

func (s *EngineTestSuite) TestSellLimitBoundaryTriggersAtEqual() {
	// Invariant 17: SELL_LIMIT at p with tick.bid == p triggers (>= comparison).
	order := types.PendingOrder{OrderType: types.OrderTypeSellLimit, PriceOpen: 110000, VolumeCurrent: 0.1}
	tick := types.Tick{Bid: 110000, Ask: 110015}

	eval := s.engine.EvaluateOrder(order, tick, s.spec)
	s.True(eval.Executed)
}

func (s *EngineTestSuite) TestBuyStopLimitUsesMinOfAskAndPrice() {
	order := types.PendingOrder{OrderType: types.OrderTypeBuyStopLimit, PriceOpen: 110020, VolumeCurrent: 0.1}
	tick := types.Tick{Bid: 110000, Ask: 110030}

	eval := s.engine.EvaluateOrder(order, tick, s.spec)
	s.True(eval.Executed)
	s.Equal(fixedpoint.Price(110020), eval.FillPrice)
}

func (s *EngineTestSuite) TestGapThroughStopFillsWorseThanSL() {
	// Invariant 18 / scenario S2.
	position := types.Position{
		Type:      types.PositionTypeBuy,
		PriceOpen: fixedpoint.PriceFromFloat(1.10000, 5),
		StopLoss:  fixedpoint.PriceFromFloat(1.09500, 5),
		Volume:    1.0,
	}
	tick := types.Tick{
		Bid: fixedpoint.PriceFromFloat(1.09000, 5),
		Ask: fixedpoint.PriceFromFloat(1.09015, 5),
	}

	eval := s.engine.EvaluatePosition(position, tick, s.spec)
	s.True(eval.Triggered)
	s.True(eval.FillPrice <= position.StopLoss)
}

func (s *EngineTestSuite) TestSellPositionTakeProfitMirrorsComparison() {
	position := types.Position{
		Type:       types.PositionTypeSell,
		PriceOpen:  fixedpoint.PriceFromFloat(1.10000, 5),
		TakeProfit: fixedpoint.PriceFromFloat(1.09500, 5),
		Volume:     1.0,
	}
	tick := types.Tick{
		Bid: fixedpoint.PriceFromFloat(1.09490, 5),
		Ask: fixedpoint.PriceFromFloat(1.09495, 5),
	}

	eval := s.engine.EvaluatePosition(position, tick, s.spec)
	s.True(eval.Triggered)
}

func (s *EngineTestSuite) TestDeterministicReplaySameSeedSameOutputs() {
	// Invariant/law 11.
	engineA := costsengine.New(99, costs.RandomSlippage{Min: 1, Max: 5}, costs.ZeroCommission{}, costs.ZeroSwap{}, costs.FixedSpread{Points: 0})
	engineB := costsengine.New(99, costs.RandomSlippage{Min: 1, Max: 5}, costs.ZeroCommission{}, costs.ZeroSwap{}, costs.FixedSpread{Points: 0})

	order := types.PendingOrder{OrderType: types.OrderTypeBuy, VolumeCurrent: 0.1}
	tick := types.Tick{Bid: 110000, Ask: 110015}

	for i := 0; i < 5; i++ {
		a := engineA.EvaluateOrder(order, tick, s.spec)
		b := engineB.EvaluateOrder(order, tick, s.spec)
		s.Equal(a, b)
	}
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
