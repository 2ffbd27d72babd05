package ledger

import (
	"github.com/moznion/go-optional"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// PositionOpen validates and executes req, reserving margin and creating a
// new position on success.
func (l *Ledger) PositionOpen(req types.OpenPositionRequest, ts clock.Timestamp) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastPositionRequest = req

	spec, err := l.spec(req.Symbol)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	volume := spec.ValidateVolume(req.Volume)
	if volume <= 0 {
		return l.fail(types.RetCodeInvalidVolume, "volume out of range")
	}

	var execPrice fixedpoint.Price
	if req.Type == types.PositionTypeBuy {
		execPrice = spec.AskFixed()
	} else {
		execPrice = spec.BidFixed()
	}
	if execPrice <= 0 {
		return l.fail(types.RetCodeInvalidPrice, "no market price for symbol")
	}

	requiredMargin := margin.RequiredMargin(spec, volume, execPrice, l.account.Leverage)
	candidate := margin.PositionMargin{Margin: requiredMargin, MarginCurrency: spec.MarginCurrency}

	if !l.marginAllowsLocked(candidate) {
		return l.fail(types.RetCodeNoMoney, "insufficient free margin")
	}

	ticket := l.nextTicketID()

	valuationPrice := closingPrice(req.Type, spec)

	position := &types.Position{
		Ticket:       ticket,
		Identifier:   ticket,
		SymbolName:   req.Symbol,
		Type:         req.Type,
		Volume:       volume,
		PriceOpen:    execPrice,
		PriceCurrent: valuationPrice,
		StopLoss:     optionalPriceToFixed(req.StopLoss, spec),
		TakeProfit:   optionalPriceToFixed(req.TakeProfit, spec),
		OpenTime:     ts,
		TimeUpdate:   ts,
		Comment:      req.Comment,
	}
	position.Profit = realizedProfit(req.Type, execPrice, valuationPrice, volume, spec)

	l.positions[ticket] = position
	candidate.Ticket = ticket
	l.positionMargin[ticket] = candidate

	deal := l.recordDealLocked(types.Deal{
		Order:      0,
		PositionID: ticket,
		SymbolName: req.Symbol,
		Type:       dealTypeFromPosition(req.Type),
		Entry:      types.DealEntryIn,
		Volume:     volume,
		Price:      execPrice,
		Time:       ts,
		Comment:    req.Comment,
	})

	l.account.TradeCount++
	l.recomputeEquityLocked()

	return l.succeed(types.RetCodeDone, deal.Ticket, 0, volume, execPrice, spec, "position opened")
}

// PositionModify validates the stops-level distance and mutates sl/tp
// in-place.
func (l *Ledger) PositionModify(ticket uint64, sl, tp fixedpoint.Price) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[ticket]
	if !ok {
		return l.fail(types.RetCodeInvalid, "position not found")
	}

	spec, err := l.spec(position.SymbolName)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	if !l.stopsRespectLevelLocked(position, spec, sl, tp) {
		return l.fail(types.RetCodeInvalidStops, "stops too close to market")
	}

	position.StopLoss = sl
	position.TakeProfit = tp

	return l.succeed(types.RetCodeDone, 0, 0, position.Volume, position.PriceCurrent, spec, "position modified")
}

func (l *Ledger) stopsRespectLevelLocked(position *types.Position, spec *symbol.Spec, sl, tp fixedpoint.Price) bool {
	minDistance := pointsToPriceDelta(spec.StopsLevelPoints, spec)

	if position.Type == types.PositionTypeBuy {
		market := spec.BidFixed()
		if sl > 0 && sl > market-minDistance {
			return false
		}
		if tp > 0 && tp < market+minDistance {
			return false
		}

		return true
	}

	market := spec.AskFixed()
	if sl > 0 && sl < market+minDistance {
		return false
	}
	if tp > 0 && tp > market-minDistance {
		return false
	}

	return true
}

// PositionClose closes the full remaining volume of ticket at the opposite
// side of the current tick.
func (l *Ledger) PositionClose(ticket uint64) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[ticket]
	if !ok {
		return l.fail(types.RetCodeInvalid, "position not found")
	}

	return l.closePositionVolumeLocked(position, position.Volume, types.DealEntryOut)
}

// PositionClosePartial closes volume of ticket's position; a volume at or
// above the remaining volume promotes to a full close.
func (l *Ledger) PositionClosePartial(ticket uint64, volume float64) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[ticket]
	if !ok {
		return l.fail(types.RetCodeInvalid, "position not found")
	}

	if volume <= 0 {
		return l.fail(types.RetCodeInvalidVolume, "close volume must be positive")
	}

	return l.closePositionVolumeLocked(position, volume, types.DealEntryOut)
}

// closePositionVolumeLocked realizes profit proportional to
// closeVolume/position.Volume, releases the corresponding margin share, and
// either removes the position (full close) or shrinks it (partial close).
// Callers must hold l.mu.
func (l *Ledger) closePositionVolumeLocked(position *types.Position, closeVolume float64, entry types.DealEntry) types.Result {
	spec, err := l.spec(position.SymbolName)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	if closeVolume >= position.Volume {
		closeVolume = position.Volume
	}

	closePrice := closingPrice(position.Type, spec)
	ratio := closeVolume / position.Volume

	profit := realizedProfit(position.Type, position.PriceOpen, closePrice, closeVolume, spec)
	consumedCommission := scaleMoney(position.Commission, ratio)
	consumedSwap := scaleMoney(position.Swap, ratio)

	deal := l.recordDealLocked(types.Deal{
		Order:      0,
		PositionID: position.Ticket,
		SymbolName: position.SymbolName,
		Type:       dealTypeFromPosition(position.Type),
		Entry:      entry,
		Volume:     closeVolume,
		Price:      closePrice,
		Profit:     profit,
		Commission: consumedCommission,
		Swap:       consumedSwap,
		Time:       position.TimeUpdate,
		Comment:    position.Comment,
	})

	l.account.Balance += profit
	l.account.TotalCommission += consumedCommission
	l.account.TotalSwap += consumedSwap
	if profit >= 0 {
		l.account.TotalProfit += profit
		l.account.WinningCount++
	} else {
		l.account.TotalLoss += -profit
		l.account.LosingCount++
	}

	fullClose := closeVolume >= position.Volume

	if fullClose {
		delete(l.positions, position.Ticket)
		delete(l.positionMargin, position.Ticket)
	} else {
		position.Volume -= closeVolume
		position.Commission -= consumedCommission
		position.Swap -= consumedSwap

		remainingMargin := margin.RequiredMargin(spec, position.Volume, position.PriceOpen, l.account.Leverage)
		l.positionMargin[position.Ticket] = margin.PositionMargin{
			Ticket:         position.Ticket,
			Margin:         remainingMargin,
			MarginCurrency: spec.MarginCurrency,
		}
	}

	l.recomputeEquityLocked()

	retCode := types.RetCodeDone
	if !fullClose {
		retCode = types.RetCodeDonePartial
	}

	return l.succeed(retCode, deal.Ticket, 0, closeVolume, closePrice, spec, "position closed")
}

// PositionCloseBy closes two opposite-side, same-symbol positions against
// each other at the current bid. The smaller volume is extinguished in
// both; the larger position reduces by that amount.
func (l *Ledger) PositionCloseBy(t1, t2 uint64) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	p1, ok1 := l.positions[t1]
	p2, ok2 := l.positions[t2]
	if !ok1 || !ok2 {
		return l.fail(types.RetCodeInvalid, "position not found")
	}
	if p1.SymbolName != p2.SymbolName || p1.Type == p2.Type {
		return l.fail(types.RetCodeInvalid, "positions must be opposite-side and same-symbol")
	}

	spec, err := l.spec(p1.SymbolName)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	closeVolume := p1.Volume
	if p2.Volume < closeVolume {
		closeVolume = p2.Volume
	}

	bid := spec.BidFixed()

	d1 := l.closeByLegLocked(p1, closeVolume, bid, spec, p2.Ticket)
	d2 := l.closeByLegLocked(p2, closeVolume, bid, spec, p1.Ticket)

	l.recomputeEquityLocked()

	return l.succeed(types.RetCodeDone, d1.DealTicket, d2.OrderTicket, closeVolume, bid, spec, "positions closed by")
}

// closeByLegLocked settles one leg of a close_by pair at the shared bid
// price, mirroring closePositionVolumeLocked but recording an OUT_BY deal
// that cross-references the opposite leg's ticket. Callers must hold l.mu.
func (l *Ledger) closeByLegLocked(position *types.Position, closeVolume float64, bid fixedpoint.Price, spec *symbol.Spec, counterpartTicket uint64) types.Result {
	ratio := closeVolume / position.Volume
	profit := realizedProfit(position.Type, position.PriceOpen, bid, closeVolume, spec)
	consumedCommission := scaleMoney(position.Commission, ratio)
	consumedSwap := scaleMoney(position.Swap, ratio)

	deal := l.recordDealLocked(types.Deal{
		Order:      counterpartTicket,
		PositionID: position.Ticket,
		SymbolName: position.SymbolName,
		Type:       dealTypeFromPosition(position.Type),
		Entry:      types.DealEntryOutBy,
		Volume:     closeVolume,
		Price:      bid,
		Profit:     profit,
		Commission: consumedCommission,
		Swap:       consumedSwap,
		Time:       position.TimeUpdate,
		Comment:    position.Comment,
	})

	l.account.Balance += profit
	l.account.TotalCommission += consumedCommission
	l.account.TotalSwap += consumedSwap
	if profit >= 0 {
		l.account.TotalProfit += profit
	} else {
		l.account.TotalLoss += -profit
	}

	if closeVolume >= position.Volume {
		delete(l.positions, position.Ticket)
		delete(l.positionMargin, position.Ticket)
	} else {
		position.Volume -= closeVolume
		position.Commission -= consumedCommission
		position.Swap -= consumedSwap

		remainingMargin := margin.RequiredMargin(spec, position.Volume, position.PriceOpen, l.account.Leverage)
		l.positionMargin[position.Ticket] = margin.PositionMargin{
			Ticket:         position.Ticket,
			Margin:         remainingMargin,
			MarginCurrency: spec.MarginCurrency,
		}
	}

	return types.Result{DealTicket: deal.Ticket, OrderTicket: counterpartTicket}
}

// TrailingStopEnable records a trailing-stop configuration on an open
// position.
func (l *Ledger) TrailingStopEnable(ticket uint64, distancePoints, stepPoints int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[ticket]
	if !ok {
		return ferrorsInvalid("position not found")
	}

	position.TrailingStop = types.TrailingStopConfig{
		Enabled:        true,
		DistancePoints: distancePoints,
		StepPoints:     stepPoints,
	}

	return nil
}

// UpdateTrailingStops recomputes the trailing SL candidate for every
// position with trailing stops enabled, applying it only when it improves
// on the existing SL by more than step points.
func (l *Ledger) UpdateTrailingStops() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, position := range l.positions {
		if !position.TrailingStop.Enabled {
			continue
		}

		spec, err := l.spec(position.SymbolName)
		if err != nil {
			continue
		}

		distance := pointsToPriceDelta(position.TrailingStop.DistancePoints, spec)
		step := pointsToPriceDelta(position.TrailingStop.StepPoints, spec)

		if position.Type == types.PositionTypeBuy {
			current := spec.BidFixed()
			candidate := current - distance

			if candidate > position.StopLoss && (step <= 0 || candidate-position.StopLoss > step) {
				position.StopLoss = candidate
				position.TrailingStop.TriggerPrice = current
			}

			continue
		}

		current := spec.AskFixed()
		candidate := current + distance

		if position.StopLoss == 0 || (candidate < position.StopLoss && (step <= 0 || position.StopLoss-candidate > step)) {
			position.StopLoss = candidate
			position.TrailingStop.TriggerPrice = current
		}
	}
}

// PositionCloseTriggered closes ticket's full position at an explicit fill
// price and commission, for SL/TP/pending-order triggers the costs engine
// has already composed (fill price includes slippage; the naive
// closingPrice PositionClose uses does not). Swap already accrued on the
// position was credited to balance by ApplySwap; the close records it on
// the deal but does not add it to balance again.
func (l *Ledger) PositionCloseTriggered(ticket uint64, fillPrice fixedpoint.Price, commission fixedpoint.Money, ts clock.Timestamp) types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[ticket]
	if !ok {
		return l.fail(types.RetCodeInvalid, "position not found")
	}

	spec, err := l.spec(position.SymbolName)
	if err != nil {
		return l.fail(types.RetCodeInvalid, "symbol not registered")
	}

	closeVolume := position.Volume
	profit := realizedProfit(position.Type, position.PriceOpen, fillPrice, closeVolume, spec)

	deal := l.recordDealLocked(types.Deal{
		PositionID: position.Ticket,
		SymbolName: position.SymbolName,
		Type:       dealTypeFromPosition(position.Type),
		Entry:      types.DealEntryOut,
		Volume:     closeVolume,
		Price:      fillPrice,
		Profit:     profit,
		Commission: commission,
		Swap:       position.Swap,
		Time:       ts,
		Comment:    position.Comment,
	})

	// position.Swap was already credited to balance and TotalSwap as it
	// accrued via ApplySwap; only the new closing commission settles here.
	l.account.Balance += profit - commission
	l.account.TotalCommission += commission
	if profit >= 0 {
		l.account.TotalProfit += profit
		l.account.WinningCount++
	} else {
		l.account.TotalLoss += -profit
		l.account.LosingCount++
	}

	delete(l.positions, position.Ticket)
	delete(l.positionMargin, position.Ticket)

	l.recomputeEquityLocked()

	return l.succeed(types.RetCodeDone, deal.Ticket, 0, closeVolume, fillPrice, spec, "position closed (triggered)")
}

// ApplySwap sets ticket's running swap total to newTotal, the costs engine's
// cumulative CalculateSwap result for the position's full holding period so
// far, and settles the difference against the previously stored total into
// balance. Recomputing from scratch and diffing against the stored total
// (rather than adding an increment) means calling this every rollover, or
// only once at close, charges the same net amount either way.
func (l *Ledger) ApplySwap(ticket uint64, newTotal fixedpoint.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()

	position, ok := l.positions[ticket]
	if !ok {
		return
	}

	delta := newTotal - position.Swap
	position.Swap = newTotal
	l.account.Balance += delta
	l.account.TotalSwap += delta
	l.recomputeEquityLocked()
}

func dealTypeFromPosition(t types.PositionType) types.DealType {
	if t == types.PositionTypeBuy {
		return types.DealTypeBuy
	}

	return types.DealTypeSell
}

func closingPrice(t types.PositionType, spec *symbol.Spec) fixedpoint.Price {
	if t == types.PositionTypeBuy {
		return spec.BidFixed()
	}

	return spec.AskFixed()
}

// realizedProfit computes the price-difference component of PnL in the
// symbol's profit currency; callers are responsible for converting to the
// account currency before crediting balance figures that mix currencies.
func realizedProfit(t types.PositionType, open, close fixedpoint.Price, volume float64, spec *symbol.Spec) fixedpoint.Money {
	openF := priceAsFloat(open, spec)
	closeF := priceAsFloat(close, spec)

	if t == types.PositionTypeBuy {
		return fixedpoint.MoneyFromFloat((closeF - openF) * volume * spec.ContractSize)
	}

	return fixedpoint.MoneyFromFloat((openF - closeF) * volume * spec.ContractSize)
}

// optionalPriceToFixed collapses an optional float64 stop level into
// fixedpoint.Price, with none mapping to the ledger's "no stop" sentinel of
// zero.
func optionalPriceToFixed(opt optional.Option[float64], spec *symbol.Spec) fixedpoint.Price {
	if opt.IsNone() {
		return 0
	}

	return fixedpoint.PriceFromFloat(opt.Unwrap(), spec.Digits)
}
