package engine

import (
	"go.uber.org/zap"

	"github.com/fxsim/backtester/internal/eventloop"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/internal/wal"
)

// handleEvent is the event loop's single dispatch point: every queued
// event, in timestamp order, passes through here.
func (e *Engine) handleEvent(event eventloop.Event) {
	switch event.Type {
	case eventloop.EventTick:
		e.handleTick(event)
	case eventloop.EventBarClose:
		e.handleBarClose(event)
	case eventloop.EventOrderTrigger:
		// The tick path below already re-evaluates every pending order on
		// its symbol each tick; this event type exists for a host that
		// wants to force a re-check independent of a tick arriving.
		e.handleOrderTrigger(event)
	case eventloop.EventTimer, eventloop.EventCustom:
		// No default behavior; reserved for host-scheduled extensions.
	}
}

// handleTick runs the eight-step per-tick sequence: update prices, update
// the global clock, evaluate open positions, evaluate pending orders, run
// trailing stops, check stop-out, invoke the host tick callback, and
// optionally broadcast.
func (e *Engine) handleTick(event eventloop.Event) {
	idx := int(event.Custom)
	if idx < 0 || idx >= len(e.ticks) {
		if e.logger != nil {
			e.logger.Warn("engine: tick event index out of range", zap.Int("index", idx))
		}

		return
	}
	tick := e.ticks[idx]

	symbolName, ok := e.symbolName(tick.SymbolID)
	if !ok {
		return
	}
	spec, ok := e.specByID(tick.SymbolID)
	if !ok {
		return
	}

	// 1. Update symbol current prices.
	if err := e.ledger.UpdatePrices(symbolName, tick.Bid, tick.Ask, tick.Timestamp); err != nil {
		if e.logger != nil {
			e.logger.Warn("engine: update prices failed", zap.Error(err))
		}

		return
	}
	e.costs.RecordLastPrice(tick.SymbolID, tick.Bid)

	// 2. Update GlobalClock for that symbol.
	e.gclock.UpdateSymbol(tick.SymbolID, tick.Timestamp)

	// 3. Iterate open positions on that symbol, ticket ascending.
	e.evaluatePositions(symbolName, tick, spec)

	// 4. Iterate pending orders on that symbol, ticket ascending.
	e.evaluateOrders(symbolName, tick, spec)

	// 5. Trailing-stop update.
	e.ledger.UpdateTrailingStops()

	// 6. Recompute equity, then check stop-out; CheckStopOut itself loops
	// until margin_level recovers or no positions remain.
	if e.stopOutThreshold > 0 {
		for _, dealTicket := range e.ledger.CheckStopOut(e.stopOutThreshold) {
			e.logDeal(wal.EntryPositionClose, dealTicket)
			e.dispatchTrade(dealTicket)
		}
	}

	// 7. Invoke the host tick callback.
	e.invokeOnTick(tick, symbolName)

	// 8. Publish to the broadcaster, if attached.
	if e.broadcaster != nil {
		e.publishTickSnapshot(tick)
	}
}

// evaluatePositions checks every open position on symbolName against
// tick: swap accrual first (gated on the swap model's own ShouldApply, so
// most ticks are a no-op here), then SL/TP trigger detection. Positions
// come back ticket-ascending from the ledger already.
func (e *Engine) evaluatePositions(symbolName string, tick types.Tick, spec *symbol.Spec) {
	for _, position := range e.ledger.GetAllPositions() {
		if position.SymbolName != symbolName {
			continue
		}

		if e.costs.Swap.ShouldApply(tick.Timestamp) {
			total := e.costs.CalculateSwap(position, tick.Bid, spec, tick.Timestamp)
			e.ledger.ApplySwap(position.Ticket, total)
		}

		eval := e.costs.EvaluatePosition(position, tick, spec)
		if !eval.Triggered {
			continue
		}

		result := e.ledger.PositionCloseTriggered(position.Ticket, eval.FillPrice, eval.Commission, tick.Timestamp)
		if result.RetCode != types.RetCodeDone {
			continue
		}

		e.logDeal(wal.EntryPositionClose, result.DealTicket)
		e.dispatchTrade(result.DealTicket)
	}
}

// evaluateOrders checks every active pending order on symbolName against
// tick and fills it when the costs engine detects a trigger. Orders come
// back ticket-ascending from the ledger already.
func (e *Engine) evaluateOrders(symbolName string, tick types.Tick, spec *symbol.Spec) {
	for _, order := range e.ledger.GetAllOrders() {
		if order.SymbolName != symbolName || !order.State.IsActive() {
			continue
		}

		eval := e.costs.EvaluateOrder(order, tick, spec)
		if !eval.Executed {
			continue
		}

		result := e.ledger.FillOrder(order.Ticket, eval.FillPrice, eval.Commission, tick.Timestamp)
		if result.RetCode != types.RetCodeDone {
			continue
		}

		filled := order
		filled.State = types.OrderStateFilled
		e.invokeOnOrder(filled)

		e.logDeal(wal.EntryPositionOpen, result.DealTicket)
		e.dispatchTrade(result.DealTicket)
	}
}

// handleBarClose looks up the just-closed bar through the point-in-time
// feed and invokes the host bar callback.
func (e *Engine) handleBarClose(event eventloop.Event) {
	symbolName, ok := e.symbolName(event.SymbolID)
	if !ok {
		return
	}
	tf := types.Timeframe(event.Timeframe)

	bar, err := e.feed.GetLastBar(symbolName, tf, event.Timestamp)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("engine: bar_close lookup failed", zap.Error(err))
		}

		return
	}

	e.invokeOnBar(bar, symbolName, tf)
}

// handleOrderTrigger re-evaluates every active order on the event's symbol
// against the last-seen price, for hosts that schedule an out-of-band
// trigger check rather than relying on the next tick.
func (e *Engine) handleOrderTrigger(event eventloop.Event) {
	symbolName, ok := e.symbolName(event.SymbolID)
	if !ok {
		return
	}
	spec, ok := e.specByID(event.SymbolID)
	if !ok {
		return
	}

	tick := types.Tick{
		Timestamp: event.Timestamp,
		SymbolID:  event.SymbolID,
		Bid:       spec.BidFixed(),
		Ask:       spec.AskFixed(),
	}
	if tick.Bid <= 0 {
		return
	}

	e.evaluateOrders(symbolName, tick, spec)
}
