package feed_test

import (
	"testing"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/feed"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
	"github.com/stretchr/testify/suite"
)

type FeedTestSuite struct {
	suite.Suite
}

func bar(ts int64, o, h, l, c int64) types.Bar {
	return types.Bar{
		Timestamp: clock.Timestamp(ts),
		Open:      fixedpoint.Price(o),
		High:      fixedpoint.Price(h),
		Low:       fixedpoint.Price(l),
		Close:     fixedpoint.Price(c),
	}
}

func (s *FeedTestSuite) TestGetBarsBoundedNewestFirst() {
	f := feed.New()
	bars := []types.Bar{
		bar(100, 10, 12, 9, 11),
		bar(200, 11, 13, 10, 12),
		bar(300, 12, 14, 11, 13),
	}
	s.NoError(f.Load("EURUSD", types.M1, bars))

	got, err := f.GetBars("EURUSD", types.M1, 250, 0)
	s.NoError(err)
	s.Len(got, 2)
	s.EqualValues(200, got[0].Timestamp)
	s.EqualValues(100, got[1].Timestamp)
}

func (s *FeedTestSuite) TestGetBarsMaxCount() {
	f := feed.New()
	bars := []types.Bar{
		bar(100, 10, 12, 9, 11),
		bar(200, 11, 13, 10, 12),
		bar(300, 12, 14, 11, 13),
	}
	s.NoError(f.Load("EURUSD", types.M1, bars))

	got, err := f.GetBars("EURUSD", types.M1, 300, 2)
	s.NoError(err)
	s.Len(got, 2)
	s.EqualValues(300, got[0].Timestamp)
	s.EqualValues(200, got[1].Timestamp)
}

func (s *FeedTestSuite) TestGetBarsNeverLooksAhead() {
	f := feed.New()
	bars := []types.Bar{bar(100, 10, 12, 9, 11)}
	s.NoError(f.Load("EURUSD", types.M1, bars))

	got, err := f.GetBars("EURUSD", types.M1, 50, 0)
	s.NoError(err)
	s.Empty(got)
}

func (s *FeedTestSuite) TestUnloadedKeyFails() {
	f := feed.New()
	_, err := f.GetBars("GBPUSD", types.M1, 100, 0)
	s.Error(err)
	s.True(ferrors.HasCode(err, ferrors.ErrCodeSymbolNotLoaded))
}

func (s *FeedTestSuite) TestLoadRejectsInvalidBar() {
	f := feed.New()
	invalid := []types.Bar{bar(100, 10, 5, 9, 11)} // high < open
	s.Error(f.Load("EURUSD", types.M1, invalid))
}

func TestFeedSuite(t *testing.T) {
	suite.Run(t, new(FeedTestSuite))
}
