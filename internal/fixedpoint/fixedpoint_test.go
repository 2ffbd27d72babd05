package fixedpoint_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/fxsim/backtester/internal/fixedpoint"
)

type FixedPointTestSuite struct {
	suite.Suite
}

func (s *FixedPointTestSuite) TestMoneyRoundTrip() {
	m := fixedpoint.MoneyFromFloat(10008.50)
	s.Equal(10008.50, m.ToFloat())
}

func (s *FixedPointTestSuite) TestPriceRoundTrip() {
	p := fixedpoint.PriceFromFloat(1.10015, 5)
	s.InDelta(1.10015, p.ToFloat(5), 1e-9)
}

func (s *FixedPointTestSuite) TestRoundHalfAwayFromZero() {
	s.Equal(fixedpoint.Money(2), fixedpoint.MoneyFromFloat(0.0000015))
	s.Equal(fixedpoint.Money(-2), fixedpoint.MoneyFromFloat(-0.0000015))
}

func (s *FixedPointTestSuite) TestMulDivZeroDivisorReturnsZero() {
	s.Equal(int64(0), fixedpoint.MulDiv(100, 2, 0, 2, 2))
}

func (s *FixedPointTestSuite) TestMulDivSameScale() {
	// 1.50 (digits=2) * 2.00 (digits=2), result digits=2 -> 3.00
	result := fixedpoint.MulDiv(150, 2, 200, 2, 2)
	s.Equal(int64(300), result)
}

func (s *FixedPointTestSuite) TestClampMinMax() {
	s.Equal(int64(5), fixedpoint.Clamp(10, 0, 5))
	s.Equal(int64(0), fixedpoint.Clamp(-10, 0, 5))
	s.Equal(int64(3), fixedpoint.Clamp(3, 0, 5))
	s.Equal(int64(3), fixedpoint.Min(3, 7))
	s.Equal(int64(7), fixedpoint.Max(3, 7))
}

func (s *FixedPointTestSuite) TestMoneyFromDecimalAvoidsFloatRounding() {
	d, err := decimal.NewFromString("10000.005")
	s.Require().NoError(err)

	m := fixedpoint.MoneyFromDecimal(d)
	s.Equal(fixedpoint.Money(10_000_005_000), m)
	s.True(d.Equal(m.ToDecimal()))
}

func (s *FixedPointTestSuite) TestPriceFromDecimalRoundTrip() {
	d, err := decimal.NewFromString("1.10015")
	s.Require().NoError(err)

	p := fixedpoint.PriceFromDecimal(d, 5)
	s.Equal(fixedpoint.Price(110015), p)
	s.True(d.Equal(p.ToDecimal(5)))
}

func TestFixedPointSuite(t *testing.T) {
	suite.Run(t, new(FixedPointTestSuite))
}
