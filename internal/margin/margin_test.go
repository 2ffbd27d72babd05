package margin_test

import (
	"math"
	"testing"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/currency"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/stretchr/testify/suite"
)

type MarginTestSuite struct {
	suite.Suite
}

func (s *MarginTestSuite) TestRequiredMarginS1Scenario() {
	spec := symbol.New("EURUSD", 1, 5)
	spec.ContractSize = 100000

	price := fixedpoint.PriceFromFloat(1.10015, 5)
	m := margin.RequiredMargin(spec, 0.1, price, 100)
	s.InDelta(110.015, m.ToFloat(), 0.01)
}

func (s *MarginTestSuite) TestRequiredMarginClampsLeverage() {
	spec := symbol.New("EURUSD", 1, 5)
	spec.ContractSize = 100000
	price := fixedpoint.PriceFromFloat(1.1, 5)

	a := margin.RequiredMargin(spec, 1, price, 0)
	b := margin.RequiredMargin(spec, 1, price, 1)
	s.Equal(a, b)
}

func (s *MarginTestSuite) TestMarginLevelInfiniteWhenZeroMargin() {
	level := margin.MarginLevel(fixedpoint.MoneyFromFloat(100), 0)
	s.True(math.IsInf(level, 1))
}

func (s *MarginTestSuite) TestFreeMargin() {
	equity := fixedpoint.MoneyFromFloat(10000)
	usedMargin := fixedpoint.MoneyFromFloat(110)
	s.InDelta(9890.0, margin.FreeMargin(equity, usedMargin).ToFloat(), 1e-6)
}

func (s *MarginTestSuite) TestShouldStopOut() {
	account := types.Account{Equity: fixedpoint.MoneyFromFloat(50), Margin: fixedpoint.MoneyFromFloat(100)}
	s.True(margin.ShouldStopOut(account, 100))
	account.Equity = fixedpoint.MoneyFromFloat(200)
	s.False(margin.ShouldStopOut(account, 100))
}

func (s *MarginTestSuite) TestMaxVolumeFloorsToStep() {
	spec := symbol.New("EURUSD", 1, 5)
	spec.ContractSize = 100000
	spec.VolumeMin, spec.VolumeMax, spec.VolumeStep = 0.01, 100, 0.01

	price := fixedpoint.PriceFromFloat(1.1, 5)
	vol := margin.MaxVolume(spec, price, fixedpoint.MoneyFromFloat(1100), 100)
	s.InDelta(1.0, vol, 0.01)
}

func (s *MarginTestSuite) TestTotalMarginFallsBackToUnitRateOnMissingPath() {
	conv := currency.NewConverter()
	calc := margin.New(conv, backtestlog.NewNop())

	total := calc.TotalMargin([]margin.PositionMargin{
		{Ticket: 1, Margin: fixedpoint.MoneyFromFloat(50), MarginCurrency: "XYZ"},
	}, "USD")
	s.InDelta(50.0, total.ToFloat(), 1e-6)
}

func TestMarginSuite(t *testing.T) {
	suite.Run(t, new(MarginTestSuite))
}
