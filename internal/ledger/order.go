package ledger

import (
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
)

// OrderOpen validates req and places a new pending order. The ledger never
// triggers the order itself; the costs engine matches it on subsequent
// ticks.
func (l *Ledger) OrderOpen(req types.OpenOrderRequest, ts clock.Timestamp) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastOrderRequest = req

	spec, err := l.spec(req.Symbol)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	volume := spec.ValidateVolume(req.Volume)
	if volume <= 0 {
		return l.fail(types.RetCodeInvalidVolume, "volume out of range")
	}

	if req.Price <= 0 {
		return l.fail(types.RetCodeInvalidPrice, "price must be positive")
	}

	ticket := l.nextTicketID()

	order := &types.PendingOrder{
		Ticket:         ticket,
		SymbolName:     req.Symbol,
		OrderType:      req.OrderType,
		State:          types.OrderStatePlaced,
		VolumeInitial:  volume,
		VolumeCurrent:  volume,
		PriceOpen:      fixedpoint.PriceFromFloat(req.Price, spec.Digits),
		PriceStopLimit: optionalPriceToFixed(req.StopLimitPrice, spec),
		StopLoss:       optionalPriceToFixed(req.StopLoss, spec),
		TakeProfit:     optionalPriceToFixed(req.TakeProfit, spec),
		TimeSetup:      ts,
		TypeFilling:    req.TypeFilling,
		TypeTime:       req.TypeTime,
		Magic:          req.Magic,
		Comment:        req.Comment,
	}

	l.orders[ticket] = order

	return l.succeed(types.RetCodePlaced, 0, ticket, volume, order.PriceOpen, spec, "order placed")
}

// OrderModify mutates an active pending order's price, stops, stop-limit
// trigger, and expiration.
func (l *Ledger) OrderModify(ticket uint64, price, sl, tp, stopLimit fixedpoint.Price, expiration clock.Timestamp) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[ticket]
	if !ok || !order.State.IsActive() {
		return l.fail(types.RetCodeInvalid, "order not found")
	}

	spec, err := l.spec(order.SymbolName)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	order.PriceOpen = price
	order.StopLoss = sl
	order.TakeProfit = tp
	order.PriceStopLimit = stopLimit
	order.TimeExpiration = expiration

	return l.succeed(types.RetCodeDone, 0, ticket, order.VolumeCurrent, price, spec, "order modified")
}

// OrderDelete cancels an active pending order, moving it to the
// history-order log.
func (l *Ledger) OrderDelete(ticket uint64, ts clock.Timestamp) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[ticket]
	if !ok || !order.State.IsActive() {
		return l.fail(types.RetCodeInvalid, "order not found")
	}

	return l.retireOrderLocked(order, types.OrderStateCanceled, ts, "order canceled")
}

// retireOrderLocked moves order from the active map to the history-order
// log under finalState. Callers must hold l.mu.
func (l *Ledger) retireOrderLocked(order *types.PendingOrder, finalState types.OrderState, ts clock.Timestamp, comment string) types.Result {
	order.State = finalState
	order.TimeDone = ts

	l.historyOrders = append(l.historyOrders, types.HistoryOrder{
		PendingOrder: *order,
		FinalState:   finalState,
	})
	delete(l.orders, order.Ticket)

	return l.fail(types.RetCodeDone, comment)
}

// FillOrder transitions a triggered pending order into a new position,
// emitting an IN deal. Called by the engine after the costs engine reports
// a trigger; the ledger itself never evaluates trigger conditions.
func (l *Ledger) FillOrder(ticket uint64, fillPrice fixedpoint.Price, commission fixedpoint.Money, ts clock.Timestamp) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[ticket]
	if !ok || !order.State.IsActive() {
		return l.fail(types.RetCodeInvalid, "order not found")
	}

	spec, err := l.spec(order.SymbolName)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	positionType := types.PositionTypeBuy
	if isSellOrder(order.OrderType) {
		positionType = types.PositionTypeSell
	}

	posTicket := l.nextTicketID()
	position := &types.Position{
		Ticket:       posTicket,
		Identifier:   posTicket,
		SymbolName:   order.SymbolName,
		Type:         positionType,
		Volume:       order.VolumeCurrent,
		PriceOpen:    fillPrice,
		PriceCurrent: fillPrice,
		StopLoss:     order.StopLoss,
		TakeProfit:   order.TakeProfit,
		Commission:   commission,
		OpenTime:     ts,
		TimeUpdate:   ts,
		Magic:        order.Magic,
		Comment:      order.Comment,
	}

	l.positions[posTicket] = position
	l.positionMargin[posTicket] = computePositionMargin(spec, position, l.account.Leverage)

	l.account.Balance -= commission
	l.account.TotalCommission += commission
	l.account.TradeCount++

	deal := l.recordDealLocked(types.Deal{
		Order:      order.Ticket,
		PositionID: posTicket,
		SymbolName: order.SymbolName,
		Type:       dealTypeFromPosition(positionType),
		Entry:      types.DealEntryIn,
		Volume:     order.VolumeCurrent,
		Price:      fillPrice,
		Commission: commission,
		Time:       ts,
		Comment:    order.Comment,
	})

	l.retireOrderLocked(order, types.OrderStateFilled, ts, "order filled")
	l.recomputeEquityLocked()

	return l.succeed(types.RetCodeDone, deal.Ticket, order.Ticket, position.Volume, fillPrice, spec, "order filled")
}

func isSellOrder(t types.OrderType) bool {
	switch t {
	case types.OrderTypeSell, types.OrderTypeSellLimit, types.OrderTypeSellStop, types.OrderTypeSellStopLimit:
		return true
	default:
		return false
	}
}
