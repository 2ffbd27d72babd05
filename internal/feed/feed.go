// Package feed implements the point-in-time data feed: bars are loaded
// ahead of the run and queried by binary search, never look-ahead.
package feed

import (
	"sort"
	"sync"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
)

type key struct {
	symbol    string
	timeframe types.Timeframe
}

// Feed is keyed by (symbol, timeframe) to an ascending-by-timestamp slice of
// bars.
type Feed struct {
	mu   sync.RWMutex
	bars map[key][]types.Bar
}

// New returns an empty feed.
func New() *Feed {
	return &Feed{bars: make(map[key][]types.Bar)}
}

// Load installs bars for (symbol, timeframe), sorting them ascending by
// timestamp. Validates each bar's OHLC invariant before accepting it.
func (f *Feed) Load(symbol string, timeframe types.Timeframe, bars []types.Bar) error {
	sorted := make([]types.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	for _, bar := range sorted {
		if err := bar.Validate(); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[key{symbol, timeframe}] = sorted

	return nil
}

// GetBars performs binary search for the last index i with
// bars[i].timestamp <= asOf, then returns at most maxCount bars ending at
// i, newest first. maxCount = 0 means unbounded (all bars up to and
// including i). Fails with DataFeedError on an unloaded key.
func (f *Feed) GetBars(symbol string, timeframe types.Timeframe, asOf clock.Timestamp, maxCount int) ([]types.Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	series, ok := f.bars[key{symbol, timeframe}]
	if !ok {
		return nil, ferrors.Newf(ferrors.ErrCodeSymbolNotLoaded, "feed: no bars loaded for %s/%s", symbol, timeframe)
	}

	idx := lastIndexAtOrBefore(series, asOf)
	if idx < 0 {
		return nil, nil
	}

	count := idx + 1
	if maxCount > 0 && maxCount < count {
		count = maxCount
	}

	result := make([]types.Bar, count)
	for i := 0; i < count; i++ {
		result[i] = series[idx-i]
	}

	return result, nil
}

// GetLastBar is GetBars with count = 1.
func (f *Feed) GetLastBar(symbol string, timeframe types.Timeframe, asOf clock.Timestamp) (types.Bar, error) {
	bars, err := f.GetBars(symbol, timeframe, asOf, 1)
	if err != nil {
		return types.Bar{}, err
	}

	if len(bars) == 0 {
		return types.Bar{}, ferrors.Newf(ferrors.ErrCodeOutOfRange, "feed: no bar at or before %d for %s/%s", asOf, symbol, timeframe)
	}

	return bars[0], nil
}

// GetTimeRange returns (first.ts, last.ts) for a loaded key.
func (f *Feed) GetTimeRange(symbol string, timeframe types.Timeframe) (clock.Timestamp, clock.Timestamp, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	series, ok := f.bars[key{symbol, timeframe}]
	if !ok || len(series) == 0 {
		return 0, 0, ferrors.Newf(ferrors.ErrCodeSymbolNotLoaded, "feed: no bars loaded for %s/%s", symbol, timeframe)
	}

	return series[0].Timestamp, series[len(series)-1].Timestamp, nil
}

// lastIndexAtOrBefore returns the last index i with series[i].Timestamp <=
// asOf, or -1 if no such index exists. The feed never returns a bar whose
// timestamp is after asOf.
func lastIndexAtOrBefore(series []types.Bar, asOf clock.Timestamp) int {
	lo, hi := 0, len(series)-1
	result := -1

	for lo <= hi {
		mid := (lo + hi) / 2
		if series[mid].Timestamp <= asOf {
			result = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	return result
}
