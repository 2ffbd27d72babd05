// Package symbol implements SymbolSpec, the immutable-after-registration
// descriptor for a tradable instrument plus its mutable current-quote
// state.
package symbol

import (
	"math"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
)

// Spec is a SymbolSpec: registration-time fields are set once via the
// constructor and never mutated afterward; current-quote fields are
// updated by UpdatePrice as ticks arrive.
type Spec struct {
	Name     string
	ID       uint32
	Digits   int
	Point    float64
	ContractSize float64
	TickSize     float64
	TickValue    float64
	VolumeMin    float64
	VolumeMax    float64
	VolumeStep   float64
	SwapLong     float64
	SwapShort    float64
	SwapMode     string // "POINTS" | "PERCENTAGE"
	TripleSwapDay int    // day-of-week (0=Sunday) the swap triples
	BaseCurrency     string
	ProfitCurrency   string
	MarginCurrency   string
	StopsLevelPoints   int64
	FreezeLevelPoints  int64
	TradeMode          types.TradeMode

	// Mutable current-quote state.
	bid          fixedpoint.Price
	ask          fixedpoint.Price
	spreadPoints int64
	lastUpdate   clock.Timestamp
	sessionHighBid fixedpoint.Price
	sessionLowBid  fixedpoint.Price
	sessionHighAsk fixedpoint.Price
	sessionLowAsk  fixedpoint.Price
	hasQuote       bool
}

// New constructs a Spec with the given registration-time fields and
// returns a pointer to it; callers share that pointer through the symbol
// registry so UpdatePrice mutations are visible to all holders.
func New(name string, id uint32, digits int) *Spec {
	return &Spec{Name: name, ID: id, Digits: digits}
}

// UpdatePrice recomputes spread in points, maintains running session
// high/low of bid and ask, and stores the timestamp.
func (s *Spec) UpdatePrice(bid, ask fixedpoint.Price, ts clock.Timestamp) {
	s.bid = bid
	s.ask = ask
	s.lastUpdate = ts

	if s.Point > 0 {
		s.spreadPoints = int64(math.Round(float64(ask-bid) / (s.Point * pow10(s.Digits))))
	}

	if !s.hasQuote {
		s.sessionHighBid, s.sessionLowBid = bid, bid
		s.sessionHighAsk, s.sessionLowAsk = ask, ask
		s.hasQuote = true
		return
	}

	if bid > s.sessionHighBid {
		s.sessionHighBid = bid
	}
	if bid < s.sessionLowBid {
		s.sessionLowBid = bid
	}
	if ask > s.sessionHighAsk {
		s.sessionHighAsk = ask
	}
	if ask < s.sessionLowAsk {
		s.sessionLowAsk = ask
	}
}

// NormalizePrice rounds p to the symbol's digit precision:
// round(p * 10^digits) / 10^digits.
func (s *Spec) NormalizePrice(p float64) float64 {
	scale := pow10(s.Digits)

	return math.Round(p*scale) / scale
}

func pow10(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 10
	}

	return result
}

// Bid returns the current bid price as a double.
func (s *Spec) Bid() float64 {
	return s.bid.ToFloat(s.Digits)
}

// Ask returns the current ask price as a double.
func (s *Spec) Ask() float64 {
	return s.ask.ToFloat(s.Digits)
}

// BidFixed returns the current bid in fixed-point.
func (s *Spec) BidFixed() fixedpoint.Price {
	return s.bid
}

// AskFixed returns the current ask in fixed-point.
func (s *Spec) AskFixed() fixedpoint.Price {
	return s.ask
}

// SpreadPoints returns the most recently computed spread in points.
func (s *Spec) SpreadPoints() int64 {
	return s.spreadPoints
}

// LastUpdate returns the timestamp of the most recent UpdatePrice call.
func (s *Spec) LastUpdate() clock.Timestamp {
	return s.lastUpdate
}

// SessionHighBid returns the running session high of bid as a double.
func (s *Spec) SessionHighBid() float64 { return s.sessionHighBid.ToFloat(s.Digits) }

// SessionLowBid returns the running session low of bid as a double.
func (s *Spec) SessionLowBid() float64 { return s.sessionLowBid.ToFloat(s.Digits) }

// SessionHighAsk returns the running session high of ask as a double.
func (s *Spec) SessionHighAsk() float64 { return s.sessionHighAsk.ToFloat(s.Digits) }

// SessionLowAsk returns the running session low of ask as a double.
func (s *Spec) SessionLowAsk() float64 { return s.sessionLowAsk.ToFloat(s.Digits) }

// QuoteSnapshot is a deep copy of a Spec's mutable current-quote state, used
// by the ledger's create_snapshot/restore_snapshot exchange format with the
// WAL layer.
type QuoteSnapshot struct {
	Bid            fixedpoint.Price
	Ask            fixedpoint.Price
	SpreadPoints   int64
	LastUpdate     clock.Timestamp
	SessionHighBid fixedpoint.Price
	SessionLowBid  fixedpoint.Price
	SessionHighAsk fixedpoint.Price
	SessionLowAsk  fixedpoint.Price
	HasQuote       bool
}

// Snapshot captures the current mutable quote state.
func (s *Spec) Snapshot() QuoteSnapshot {
	return QuoteSnapshot{
		Bid:            s.bid,
		Ask:            s.ask,
		SpreadPoints:   s.spreadPoints,
		LastUpdate:     s.lastUpdate,
		SessionHighBid: s.sessionHighBid,
		SessionLowBid:  s.sessionLowBid,
		SessionHighAsk: s.sessionHighAsk,
		SessionLowAsk:  s.sessionLowAsk,
		HasQuote:       s.hasQuote,
	}
}

// Restore replaces the mutable quote state with a previously captured
// snapshot. Registration-time fields are untouched.
func (s *Spec) Restore(q QuoteSnapshot) {
	s.bid = q.Bid
	s.ask = q.Ask
	s.spreadPoints = q.SpreadPoints
	s.lastUpdate = q.LastUpdate
	s.sessionHighBid = q.SessionHighBid
	s.sessionLowBid = q.SessionLowBid
	s.sessionHighAsk = q.SessionHighAsk
	s.sessionLowAsk = q.SessionLowAsk
	s.hasQuote = q.HasQuote
}

// ValidateVolume clamps v to [VolumeMin, VolumeMax] and rounds it to the
// nearest multiple of VolumeStep away from VolumeMin (invariant 4).
func (s *Spec) ValidateVolume(v float64) float64 {
	if v < s.VolumeMin {
		return s.VolumeMin
	}
	if v > s.VolumeMax {
		return s.VolumeMax
	}

	if s.VolumeStep <= 0 {
		return v
	}

	steps := math.Round((v - s.VolumeMin) / s.VolumeStep)

	return s.VolumeMin + steps*s.VolumeStep
}
