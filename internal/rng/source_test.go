package rng_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/rng"
	"github.com/stretchr/testify/suite"
)

type SourceTestSuite struct {
	suite.Suite
}

func (s *SourceTestSuite) TestSameSeedSameSequence() {
	a := rng.New(42)
	b := rng.New(42)

	for i := 0; i < 10; i++ {
		s.Equal(a.NextInt(0, 1000), b.NextInt(0, 1000))
		s.Equal(a.NextFloat64(), b.NextFloat64())
	}
}

func (s *SourceTestSuite) TestResetReplaysSequence() {
	src := rng.New(7)
	first := make([]int64, 5)
	for i := range first {
		first[i] = src.NextInt(0, 100)
	}

	src.Reset()
	for i := range first {
		s.Equal(first[i], src.NextInt(0, 100))
	}
}

func (s *SourceTestSuite) TestNextIntBounds() {
	src := rng.New(1)
	for i := 0; i < 200; i++ {
		v := src.NextInt(5, 5)
		s.Equal(int64(5), v)
	}
}

func (s *SourceTestSuite) TestNextExponentialZeroLambda() {
	src := rng.New(1)
	s.Equal(0.0, src.NextExponential(0))
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}
