package currency_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/currency"
	"github.com/fxsim/backtester/pkg/ferrors"
	"github.com/stretchr/testify/suite"
)

type ConverterTestSuite struct {
	suite.Suite
}

func (s *ConverterTestSuite) TestSameCurrencyIdentity() {
	c := currency.NewConverter()
	c.RegisterPair("EUR", "USD", 1.10)

	amount, err := c.Convert(100, "USD", "USD")
	s.NoError(err)
	s.Equal(100.0, amount)
}

func (s *ConverterTestSuite) TestDirectAndInverse() {
	c := currency.NewConverter()
	c.RegisterPair("EUR", "USD", 1.10)

	direct, err := c.Convert(100, "EUR", "USD")
	s.NoError(err)
	s.InDelta(110.0, direct, 1e-9)

	inverse, err := c.Convert(110, "USD", "EUR")
	s.NoError(err)
	s.InDelta(100.0, inverse, 1e-9)
}

func (s *ConverterTestSuite) TestMultiHopConversion() {
	// S3 from the spec's concrete scenarios.
	c := currency.NewConverter()
	c.RegisterPair("EUR", "USD", 1.10)
	c.RegisterPair("USD", "JPY", 150)

	jpy, err := c.Convert(100, "EUR", "JPY")
	s.NoError(err)
	s.InDelta(16500.0, jpy, 1e-6)
}

func (s *ConverterTestSuite) TestNoPathError() {
	c := currency.NewConverter()
	c.RegisterPair("EUR", "USD", 1.10)
	c.RegisterPair("GBP", "CHF", 1.15)

	_, err := c.Convert(100, "EUR", "CHF")
	s.Error(err)
	s.True(ferrors.HasCode(err, ferrors.ErrCodeNoConversionPath))
}

func (s *ConverterTestSuite) TestValidatePathsDetectsDisconnection() {
	c := currency.NewConverter()
	c.RegisterPair("EUR", "USD", 1.10)
	c.RegisterPair("GBP", "CHF", 1.15)

	s.Error(c.ValidatePaths())
}

func (s *ConverterTestSuite) TestValidatePathsConnectedGraph() {
	c := currency.NewConverter()
	c.RegisterPair("EUR", "USD", 1.10)
	c.RegisterPair("USD", "JPY", 150)

	s.NoError(c.ValidatePaths())
}

func TestConverterSuite(t *testing.T) {
	suite.Run(t, new(ConverterTestSuite))
}
