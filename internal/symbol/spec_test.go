package symbol_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/stretchr/testify/suite"
)

type SpecTestSuite struct {
	suite.Suite
}

func (s *SpecTestSuite) TestUpdatePriceTracksSessionHighLow() {
	spec := symbol.New("EURUSD", 1, 5)
	spec.Point = 0.00001

	spec.UpdatePrice(fixedpoint.PriceFromFloat(1.10000, 5), fixedpoint.PriceFromFloat(1.10015, 5), 1)
	spec.UpdatePrice(fixedpoint.PriceFromFloat(1.10100, 5), fixedpoint.PriceFromFloat(1.10115, 5), 2)
	spec.UpdatePrice(fixedpoint.PriceFromFloat(1.09900, 5), fixedpoint.PriceFromFloat(1.09915, 5), 3)

	s.InDelta(1.10100, spec.SessionHighBid(), 1e-9)
	s.InDelta(1.09900, spec.SessionLowBid(), 1e-9)
}

func (s *SpecTestSuite) TestNormalizePrice() {
	spec := symbol.New("EURUSD", 1, 5)
	s.InDelta(1.10016, spec.NormalizePrice(1.100155), 1e-9)
}

func (s *SpecTestSuite) TestValidateVolumeStepsFromMin() {
	spec := symbol.New("EURUSD", 1, 5)
	spec.VolumeMin, spec.VolumeMax, spec.VolumeStep = 0.01, 100.0, 0.01

	s.InDelta(0.1, spec.ValidateVolume(0.103), 1e-9)
	s.Equal(0.01, spec.ValidateVolume(-1))
	s.Equal(100.0, spec.ValidateVolume(1000))
}

func TestSpecSuite(t *testing.T) {
	suite.Run(t, new(SpecTestSuite))
}
