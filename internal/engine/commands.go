package engine

import (
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/internal/wal"
)

// These wrappers are the host-facing trading surface: everything a
// strategy callback calls back into during on_tick/on_bar. Each delegates
// to the ledger, then appends a WAL record and fires the on_trade/on_order
// callback on success, so a strategy never has to do that bookkeeping
// itself.

// OpenPosition places a market order immediately, at the current tick's
// bid or ask.
func (e *Engine) OpenPosition(req types.OpenPositionRequest, ts clock.Timestamp) types.Result {
	result := e.ledger.PositionOpen(req, ts)
	if result.RetCode == types.RetCodeDone {
		e.logDeal(wal.EntryPositionOpen, result.DealTicket)
		e.dispatchTrade(result.DealTicket)
	}

	return result
}

// ModifyPosition updates an open position's stop loss / take profit.
func (e *Engine) ModifyPosition(ticket uint64, sl, tp fixedpoint.Price) types.Result {
	result := e.ledger.PositionModify(ticket, sl, tp)
	if result.RetCode == types.RetCodeDone {
		if position, ok := e.ledger.GetPosition(ticket); ok {
			e.appendWAL(wal.EntryPositionModify, position)
		}
	}

	return result
}

// ClosePosition closes the full remaining volume of ticket.
func (e *Engine) ClosePosition(ticket uint64) types.Result {
	result := e.ledger.PositionClose(ticket)
	if result.RetCode == types.RetCodeDone || result.RetCode == types.RetCodeDonePartial {
		e.logDeal(wal.EntryPositionClose, result.DealTicket)
		e.dispatchTrade(result.DealTicket)
	}

	return result
}

// ClosePositionPartial closes volume of ticket's position.
func (e *Engine) ClosePositionPartial(ticket uint64, volume float64) types.Result {
	result := e.ledger.PositionClosePartial(ticket, volume)
	if result.RetCode == types.RetCodeDone || result.RetCode == types.RetCodeDonePartial {
		e.logDeal(wal.EntryPositionClose, result.DealTicket)
		e.dispatchTrade(result.DealTicket)
	}

	return result
}

// CloseBy nets two opposite-side, same-symbol positions against each
// other.
func (e *Engine) CloseBy(t1, t2 uint64) types.Result {
	result := e.ledger.PositionCloseBy(t1, t2)
	if result.RetCode == types.RetCodeDone {
		e.logDeal(wal.EntryPositionClose, result.DealTicket)
		e.dispatchTrade(result.DealTicket)
	}

	return result
}

// EnableTrailingStop configures a trailing stop on an open position.
func (e *Engine) EnableTrailingStop(ticket uint64, distancePoints, stepPoints int64) error {
	return e.ledger.TrailingStopEnable(ticket, distancePoints, stepPoints)
}

// PlaceOrder places a pending order. It is never triggered by this call —
// the costs engine matches it against subsequent ticks.
func (e *Engine) PlaceOrder(req types.OpenOrderRequest, ts clock.Timestamp) types.Result {
	result := e.ledger.OrderOpen(req, ts)
	if result.RetCode == types.RetCodePlaced {
		e.logOrder(wal.EntryOrderPlace, result.OrderTicket)
		if order, ok := e.ledger.GetOrder(result.OrderTicket); ok {
			e.invokeOnOrder(order)
		}
	}

	return result
}

// ModifyOrder mutates an active pending order's price, stops, stop-limit
// trigger, and expiration.
func (e *Engine) ModifyOrder(ticket uint64, price, sl, tp, stopLimit fixedpoint.Price, expiration clock.Timestamp) types.Result {
	result := e.ledger.OrderModify(ticket, price, sl, tp, stopLimit, expiration)
	if result.RetCode == types.RetCodeDone {
		if order, ok := e.ledger.GetOrder(ticket); ok {
			e.appendWAL(wal.EntryOrderPlace, order)
			e.invokeOnOrder(order)
		}
	}

	return result
}

// CancelOrder cancels an active pending order.
func (e *Engine) CancelOrder(ticket uint64, ts clock.Timestamp) types.Result {
	result := e.ledger.OrderDelete(ticket, ts)
	if result.RetCode == types.RetCodeDone {
		e.logOrder(wal.EntryOrderCancel, ticket)
		for _, h := range e.ledger.HistoryOrders() {
			if h.Ticket == ticket {
				e.invokeOnOrder(h.PendingOrder)
				break
			}
		}
	}

	return result
}
