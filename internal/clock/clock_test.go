package clock_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/stretchr/testify/suite"
)

type ClockTestSuite struct {
	suite.Suite
}

func (s *ClockTestSuite) TestFloorToMinute() {
	ts := clock.Timestamp(90_500_000) // 90.5s
	s.Equal(clock.Timestamp(60_000_000), ts.FloorToMinute())
}

func (s *ClockTestSuite) TestFloorToDayNegative() {
	ts := clock.Timestamp(-1_000_000) // one second before epoch
	s.Equal(clock.Timestamp(-86_400_000_000), ts.FloorToDay())
}

func (s *ClockTestSuite) TestDayOfWeekEpoch() {
	// 1970-01-01 was a Thursday (4).
	s.Equal(4, clock.Timestamp(0).DayOfWeek())
}

func (s *ClockTestSuite) TestISORoundTrip() {
	ts, err := clock.ParseTimestamp("2024-01-15T10:30:00.500000Z")
	s.NoError(err)
	s.Equal("2024-01-15T10:30:00.500000Z", ts.String())
}

type GlobalClockTestSuite struct {
	suite.Suite
}

func (s *GlobalClockTestSuite) TestPITScenario() {
	// S4 from the spec's concrete scenarios.
	c := clock.NewGlobalClock()
	c.UpdateSymbol(1, 1_000_000)
	c.UpdateSymbol(2, 999_000)

	s.Equal(clock.Timestamp(999_000), c.GlobalTime())
	s.False(c.CanAdvance(1, 1_001_000))
	s.True(c.CanAdvance(2, 999_500))

	slowest, ok := c.GetSlowestSymbol()
	s.True(ok)
	s.Equal(uint32(2), slowest)
}

func (s *GlobalClockTestSuite) TestSingleSymbolAlwaysAdvances() {
	c := clock.NewGlobalClock()
	c.UpdateSymbol(7, 5)
	s.True(c.CanAdvance(7, 1_000_000))
}

func (s *GlobalClockTestSuite) TestPITEnforcerClamp() {
	c := clock.NewGlobalClock()
	c.UpdateSymbol(1, 100)
	c.UpdateSymbol(2, 50)

	enforcer := clock.NewPITEnforcer(c)
	s.Equal(clock.Timestamp(50), enforcer.ClampQueryTime(500))
	s.Equal(clock.Timestamp(10), enforcer.ClampQueryTime(10))
}

func TestClockSuite(t *testing.T) {
	suite.Run(t, new(ClockTestSuite))
}

func TestGlobalClockSuite(t *testing.T) {
	suite.Run(t, new(GlobalClockTestSuite))
}
