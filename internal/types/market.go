package types

import (
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// Tick is a single quote update for a symbol.
type Tick struct {
	Timestamp    clock.Timestamp
	SymbolID     uint32
	Bid          fixedpoint.Price
	Ask          fixedpoint.Price
	BidVolume    float64
	AskVolume    float64
	SpreadPoints int64
}

// Validate enforces the tick invariant: bid > 0 && ask >= bid.
func (t Tick) Validate() error {
	if t.Bid <= 0 {
		return ferrors.Newf(ferrors.ErrCodeInvalidPrice, "tick bid must be positive, got %d", t.Bid)
	}

	if t.Ask < t.Bid {
		return ferrors.Newf(ferrors.ErrCodeInvalidPrice, "tick ask %d must be >= bid %d", t.Ask, t.Bid)
	}

	return nil
}

// Bar is an OHLCV candle for a symbol and timeframe.
type Bar struct {
	Timestamp   clock.Timestamp
	SymbolID    uint32
	Timeframe   Timeframe
	Open        fixedpoint.Price
	High        fixedpoint.Price
	Low         fixedpoint.Price
	Close       fixedpoint.Price
	TickVolume  int64
	RealVolume  int64
	SpreadPoints int64
}

// Validate enforces the bar invariant:
// high >= max(open, close) && low <= min(open, close) && high >= low.
func (b Bar) Validate() error {
	maxOC := b.Open
	if b.Close > maxOC {
		maxOC = b.Close
	}

	minOC := b.Open
	if b.Close < minOC {
		minOC = b.Close
	}

	if b.High < maxOC {
		return ferrors.Newf(ferrors.ErrCodeInvalidPrice, "bar high %d below max(open,close) %d", b.High, maxOC)
	}

	if b.Low > minOC {
		return ferrors.Newf(ferrors.ErrCodeInvalidPrice, "bar low %d above min(open,close) %d", b.Low, minOC)
	}

	if b.High < b.Low {
		return ferrors.Newf(ferrors.ErrCodeInvalidPrice, "bar high %d below low %d", b.High, b.Low)
	}

	return nil
}

// CurrencyPair is the converter's stored rate descriptor.
type CurrencyPair struct {
	Base      string
	Quote     string
	Rate      float64
	Timestamp clock.Timestamp
}
