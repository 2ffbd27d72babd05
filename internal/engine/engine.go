// Package engine wires one GlobalClock, one Feed, one Ledger, one
// CurrencyConverter, one MarginCalculator, and one costs Engine into the
// single orchestrator that drives a backtest run end to end: it owns the
// merged tick stream, dispatches the event loop, and is the only thing in
// the module that calls back into host code.
package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/broadcast"
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/costsengine"
	"github.com/fxsim/backtester/internal/currency"
	"github.com/fxsim/backtester/internal/eventloop"
	"github.com/fxsim/backtester/internal/feed"
	"github.com/fxsim/backtester/internal/ledger"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/internal/wal"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// Engine is the BacktestEngineV1 equivalent: it owns exactly one of every
// stateful collaborator and is the sole caller of host callbacks.
type Engine struct {
	logger *backtestlog.Logger

	loop   *eventloop.Loop
	gclock *clock.GlobalClock
	pit    *clock.PITEnforcer
	feed   *feed.Feed
	ledger *ledger.Ledger

	converter  *currency.Converter
	marginCalc *margin.Calculator
	costs      *costsengine.Engine

	wal         *wal.WAL
	broadcaster *broadcast.Broadcaster
	walErrors   atomic.Uint64

	stopOutThreshold float64

	mu            sync.Mutex
	symbolsByName map[string]uint32
	symbolsByID   map[uint32]string
	specsByID     map[uint32]*symbol.Spec

	ticks []types.Tick

	onTick  func(types.Tick, string)
	onBar   func(types.Bar, string, types.Timeframe)
	onTrade func(types.Deal)
	onOrder func(types.PendingOrder)
}

// New constructs an Engine over account and a fully-formed costs engine
// (the caller picks the four internal/costs model-family implementations
// that make up costs, since those choices are scenario-specific, not
// ledger-level).
func New(account types.Account, stopOutThreshold float64, costs *costsengine.Engine, logger *backtestlog.Logger) *Engine {
	conv := currency.NewConverter()
	marginCalc := margin.New(conv, logger)
	led := ledger.New(account, conv, marginCalc, logger)

	gclock := clock.NewGlobalClock()

	return &Engine{
		logger:           logger,
		loop:             eventloop.New(),
		gclock:           gclock,
		pit:              clock.NewPITEnforcer(gclock),
		feed:             feed.New(),
		ledger:           led,
		converter:        conv,
		marginCalc:       marginCalc,
		costs:            costs,
		stopOutThreshold: stopOutThreshold,
		symbolsByName:    make(map[string]uint32),
		symbolsByID:      make(map[uint32]string),
		specsByID:        make(map[uint32]*symbol.Spec),
	}
}

// RegisterSymbol makes spec known to the ledger and the engine's
// ID<->name registry, which neither types.Tick nor eventloop.Event carry.
func (e *Engine) RegisterSymbol(spec *symbol.Spec) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger.RegisterSymbol(spec)
	e.symbolsByName[spec.Name] = spec.ID
	e.symbolsByID[spec.ID] = spec.Name
	e.specsByID[spec.ID] = spec
}

// RegisterCurrencyPair registers a conversion edge on the engine's shared
// converter.
func (e *Engine) RegisterCurrencyPair(base, quote string, rate float64) {
	e.converter.RegisterPair(base, quote, rate)
}

// AttachWAL installs w as the engine's write-ahead log. Every
// state-changing ledger command appends a record after it succeeds.
func (e *Engine) AttachWAL(w *wal.WAL) {
	e.wal = w
}

// AttachBroadcaster installs b as the engine's optional event mirror.
func (e *Engine) AttachBroadcaster(b *broadcast.Broadcaster) {
	e.broadcaster = b
}

// OnTick registers the host callback invoked after step 7 of tick
// processing.
func (e *Engine) OnTick(fn func(types.Tick, string)) { e.onTick = fn }

// OnBar registers the host callback invoked on BAR_CLOSE dispatch.
func (e *Engine) OnBar(fn func(types.Bar, string, types.Timeframe)) { e.onBar = fn }

// OnTrade registers the host callback invoked once per new deal.
func (e *Engine) OnTrade(fn func(types.Deal)) { e.onTrade = fn }

// OnOrder registers the host callback invoked once per order state change.
func (e *Engine) OnOrder(fn func(types.PendingOrder)) { e.onOrder = fn }

// WALErrors returns the count of WAL append failures swallowed so far.
func (e *Engine) WALErrors() uint64 { return e.walErrors.Load() }

// Ledger exposes the underlying ledger for read-only host queries
// (positions, orders, deals, account state).
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Feed exposes the underlying bar feed for host queries.
func (e *Engine) Feed() *feed.Feed { return e.feed }

// BarsAsOf returns up to maxCount bars for (symbolName, tf) as of asOf,
// clamped through the point-in-time enforcer so a host callback querying
// historical bars can never see one the global clock hasn't reached yet,
// even if it passes a timestamp ahead of the current tick.
func (e *Engine) BarsAsOf(symbolName string, tf types.Timeframe, asOf clock.Timestamp, maxCount int) ([]types.Bar, error) {
	clamped := e.pit.ClampQueryTime(asOf)

	return e.feed.GetBars(symbolName, tf, clamped, maxCount)
}

// LoadBars installs bars for (symbolName, timeframe) into the feed and
// schedules one BAR_CLOSE event per bar, timed at the bar's open plus its
// timeframe duration.
func (e *Engine) LoadBars(symbolName string, tf types.Timeframe, bars []types.Bar) error {
	if err := e.feed.Load(symbolName, tf, bars); err != nil {
		return err
	}

	id, ok := e.symbolID(symbolName)
	if !ok {
		return ferrors.Newf(ferrors.ErrCodeSymbolNotLoaded, "engine: symbol %q not registered", symbolName)
	}

	events := make([]eventloop.Event, len(bars))
	for i, bar := range bars {
		events[i] = eventloop.Event{
			Timestamp: barCloseTime(bar.Timestamp, tf),
			Type:      eventloop.EventBarClose,
			SymbolID:  id,
			Timeframe: string(tf),
		}
	}
	e.loop.PushBatch(events)

	return nil
}

// LoadTicks validates and appends ticks to the engine's merged tick
// stream. Ticks are not scheduled as events until Prepare runs, since the
// EventTick.Custom index into the final, globally-sorted stream is only
// stable once every LoadTicks call has happened.
func (e *Engine) LoadTicks(symbolName string, ticks []types.Tick) error {
	id, ok := e.symbolID(symbolName)
	if !ok {
		return ferrors.Newf(ferrors.ErrCodeSymbolNotLoaded, "engine: symbol %q not registered", symbolName)
	}

	for _, t := range ticks {
		t.SymbolID = id
		if err := t.Validate(); err != nil {
			return err
		}
		e.ticks = append(e.ticks, t)
	}

	return nil
}

func (e *Engine) symbolID(symbolName string) (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.symbolsByName[symbolName]

	return id, ok
}

func (e *Engine) symbolName(id uint32) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, ok := e.symbolsByID[id]

	return name, ok
}

func (e *Engine) specByID(id uint32) (*symbol.Spec, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := e.specsByID[id]

	return spec, ok
}

// Prepare sorts the accumulated tick stream chronologically (stable, so
// same-timestamp ticks keep their load order) and schedules one EventTick
// per tick, with the tick's index into the sorted stream as Custom. Call
// once, after every LoadTicks/LoadBars call and before Run or Step.
func (e *Engine) Prepare() {
	sort.SliceStable(e.ticks, func(i, j int) bool { return e.ticks[i].Timestamp < e.ticks[j].Timestamp })

	events := make([]eventloop.Event, len(e.ticks))
	for i, t := range e.ticks {
		events[i] = eventloop.Event{
			Timestamp: t.Timestamp,
			Type:      eventloop.EventTick,
			SymbolID:  t.SymbolID,
			Custom:    uint64(i),
		}
	}
	e.loop.PushBatch(events)
}

// Ticks returns the prepared, chronologically-sorted tick stream.
func (e *Engine) Ticks() []types.Tick { return e.ticks }

// Run drives the event loop to completion, dispatching every queued event
// in timestamp order.
func (e *Engine) Run() error {
	return e.loop.Run(e.handleEvent)
}

// Step processes up to n queued events without blocking for more.
func (e *Engine) Step(n int) error {
	return e.loop.Step(n, e.handleEvent)
}

// Pause, Resume, and Stop forward to the underlying event loop.
func (e *Engine) Pause()  { e.loop.Pause() }
func (e *Engine) Resume() { e.loop.Resume() }
func (e *Engine) Stop()   { e.loop.Stop() }

func barCloseTime(open clock.Timestamp, tf types.Timeframe) clock.Timestamp {
	const microsPerMinute = int64(60_000_000)

	return clock.Timestamp(int64(open) + int64(tf.MinuteDuration())*microsPerMinute)
}
