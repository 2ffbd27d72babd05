package broadcast

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
)

// ErrQueueFull is returned by tryPublish when the frame queue has no room;
// the caller is expected to treat this as a drop, never as a fatal error.
var ErrQueueFull = errors.New("broadcast: frame queue full")

// ErrClosed is returned by tryPublish after Close.
var ErrClosed = errors.New("broadcast: closed")

// Broadcaster is the engine's optional outbound publisher. Publish* calls
// made from the simulator thread never block: frames are pushed onto a
// bounded channel and a single background goroutine drains them into sink.
// A full queue silently drops the frame, per the non-blocking guarantee the
// simulator's tick loop depends on.
type Broadcaster struct {
	sink   io.Writer
	logger *backtestlog.Logger

	sessionID SessionID

	frames chan []byte
	closed atomic.Bool
	done   chan struct{}

	sent  atomic.Uint64
	bytes atomic.Uint64

	mu sync.Mutex // guards writes to sink from the drain goroutine
}

// New constructs a Broadcaster writing to sink, with a frame queue of the
// given capacity. It starts its drain goroutine immediately.
func New(sink io.Writer, capacity int, logger *backtestlog.Logger) *Broadcaster {
	if capacity <= 0 {
		capacity = 1
	}

	b := &Broadcaster{
		sink:      sink,
		logger:    logger,
		sessionID: newSessionID(),
		frames:    make(chan []byte, capacity),
		done:      make(chan struct{}),
	}

	go b.drain()

	return b
}

// SessionID returns the identifier minted for this broadcaster's lifetime.
func (b *Broadcaster) SessionID() SessionID {
	return b.sessionID
}

// Sent returns the number of frames actually written to sink so far.
func (b *Broadcaster) Sent() uint64 {
	return b.sent.Load()
}

// BytesSent returns the number of bytes actually written to sink so far.
func (b *Broadcaster) BytesSent() uint64 {
	return b.bytes.Load()
}

func (b *Broadcaster) drain() {
	defer close(b.done)

	for frame := range b.frames {
		b.mu.Lock()
		n, err := b.sink.Write(frame)
		b.mu.Unlock()

		if err != nil {
			if b.logger != nil {
				b.logger.Warn("broadcast: sink write failed")
			}

			continue
		}

		b.sent.Add(1)
		b.bytes.Add(uint64(n))
	}
}

// tryPublish enqueues frame without blocking. A full queue or a closed
// broadcaster drops the frame; neither condition is surfaced to callers
// beyond the returned error, which engine code is expected to ignore or
// log at most, never propagate as a simulation failure.
func (b *Broadcaster) tryPublish(frame []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}

	select {
	case b.frames <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting new frames and waits for the drain goroutine to
// flush whatever was already queued.
func (b *Broadcaster) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.frames)
	<-b.done

	return nil
}

func (b *Broadcaster) PublishTick(symbolID uint32, ts clock.Timestamp, bid, ask fixedpoint.Price) {
	_ = b.tryPublish(encodeTick(symbolID, ts, bid, ask))
}

func (b *Broadcaster) PublishBar(symbolID uint32, timeframeCode uint16, bar types.Bar) {
	_ = b.tryPublish(encodeBar(symbolID, timeframeCode, bar))
}

func (b *Broadcaster) PublishTrade(symbolID uint32, deal types.Deal, digits int) {
	_ = b.tryPublish(encodeTrade(symbolID, deal, digits))
}

func (b *Broadcaster) PublishOrder(symbolID uint32, order types.PendingOrder, digits int) {
	_ = b.tryPublish(encodeOrder(symbolID, order, digits))
}

func (b *Broadcaster) PublishEquity(ts clock.Timestamp, account types.Account) {
	_ = b.tryPublish(encodeEquity(ts, account))
}

func (b *Broadcaster) PublishMargin(ts clock.Timestamp, account types.Account) {
	_ = b.tryPublish(encodeMargin(ts, account))
}

func (b *Broadcaster) PublishPosition(symbolID uint32, position types.Position) {
	_ = b.tryPublish(encodePosition(symbolID, position))
}

func (b *Broadcaster) PublishAccount(ts clock.Timestamp, account types.Account) {
	_ = b.tryPublish(encodeAccount(ts, account))
}
