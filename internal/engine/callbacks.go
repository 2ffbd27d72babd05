package engine

import (
	"go.uber.org/zap"

	"github.com/fxsim/backtester/internal/types"
)

// invokeOnTick calls the host's tick callback, if registered, catching any
// panic at the boundary so a misbehaving callback cannot destabilize the
// engine.
func (e *Engine) invokeOnTick(tick types.Tick, symbolName string) {
	if e.onTick == nil {
		return
	}
	defer e.recoverCallback("on_tick")
	e.onTick(tick, symbolName)
}

// invokeOnBar calls the host's bar callback, if registered.
func (e *Engine) invokeOnBar(bar types.Bar, symbolName string, tf types.Timeframe) {
	if e.onBar == nil {
		return
	}
	defer e.recoverCallback("on_bar")
	e.onBar(bar, symbolName, tf)
}

// invokeOnTrade calls the host's trade callback, if registered.
func (e *Engine) invokeOnTrade(deal types.Deal) {
	if e.onTrade == nil {
		return
	}
	defer e.recoverCallback("on_trade")
	e.onTrade(deal)
}

// invokeOnOrder calls the host's order callback, if registered.
func (e *Engine) invokeOnOrder(order types.PendingOrder) {
	if e.onOrder == nil {
		return
	}
	defer e.recoverCallback("on_order")
	e.onOrder(order)
}

// recoverCallback logs and swallows a panic raised by a host callback.
// Callbacks run on the simulator thread, so a panic here would otherwise
// take the whole run down with it.
func (e *Engine) recoverCallback(name string) {
	if r := recover(); r != nil {
		if e.logger != nil {
			e.logger.Error("engine: host callback panicked", zap.String("callback", name), zap.Any("recovered", r))
		}
	}
}

// dispatchTrade looks up the deal recorded under ticket and hands it to
// the host trade callback, also mirroring it to the broadcaster if one is
// attached.
func (e *Engine) dispatchTrade(ticket uint64) {
	deal, ok := e.ledger.GetDeal(ticket)
	if !ok {
		return
	}

	e.invokeOnTrade(deal)

	if e.broadcaster == nil {
		return
	}

	id, ok := e.symbolID(deal.SymbolName)
	if !ok {
		return
	}
	spec, ok := e.specByID(id)
	if !ok {
		return
	}
	e.broadcaster.PublishTrade(id, deal, spec.Digits)
}

// publishTickSnapshot mirrors a processed tick plus the freshly-recomputed
// account figures to the broadcaster.
func (e *Engine) publishTickSnapshot(tick types.Tick) {
	e.broadcaster.PublishTick(tick.SymbolID, tick.Timestamp, tick.Bid, tick.Ask)

	account := e.ledger.Account()
	e.broadcaster.PublishEquity(tick.Timestamp, account)
	e.broadcaster.PublishMargin(tick.Timestamp, account)
	e.broadcaster.PublishAccount(tick.Timestamp, account)
}
