// Package costsengine composes the four cost-model families plus a shared
// RNG into the execution core: order-trigger detection, position SL/TP
// evaluation, fill-price composition, and deterministic swap accrual.
package costsengine

import (
	"sort"
	"sync"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/costs"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/rng"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// OrderEvaluation is the result of evaluating a pending order against a
// tick.
type OrderEvaluation struct {
	Executed   bool
	FillPrice  fixedpoint.Price
	Slippage   fixedpoint.Price
	Commission fixedpoint.Money
	SpreadCost fixedpoint.Price
}

// PositionEvaluation is the result of evaluating an open position's SL/TP
// against a tick.
type PositionEvaluation struct {
	Triggered  bool
	FillPrice  fixedpoint.Price
	Slippage   fixedpoint.Price
	Commission fixedpoint.Money
}

// Engine composes one instance of each cost-model family plus a seeded
// RNG, and holds the last-seen price per symbol (needed by volatility-
// sensitive spread models).
type Engine struct {
	Slippage   costs.Slippage
	Commission costs.Commission
	Swap       costs.Swap
	Spread     costs.Spread

	mu         sync.Mutex
	src        *rng.Source
	lastPrices map[uint32]fixedpoint.Price
}

// New constructs an Engine from a seed and the four model-family instances.
func New(seed int64, slippage costs.Slippage, commission costs.Commission, swap costs.Swap, spread costs.Spread) *Engine {
	return &Engine{
		Slippage:   slippage,
		Commission: commission,
		Swap:       swap,
		Spread:     spread,
		src:        rng.New(seed),
		lastPrices: make(map[uint32]fixedpoint.Price),
	}
}

// SetSeed reseeds the RNG — the operational knob for bit-identical
// re-runs.
func (e *Engine) SetSeed(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = rng.New(seed)
}

// RecordLastPrice updates the engine's memory of the last-seen price for a
// symbol, used by volatility-sensitive models.
func (e *Engine) RecordLastPrice(symbolID uint32, price fixedpoint.Price) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPrices[symbolID] = price
}

func isBuyOrderType(t types.OrderType) bool {
	switch t {
	case types.OrderTypeBuy, types.OrderTypeBuyLimit, types.OrderTypeBuyStop, types.OrderTypeBuyStopLimit:
		return true
	default:
		return false
	}
}

// EvaluateOrder implements the trigger matrix for all eight order types.
func (e *Engine) EvaluateOrder(order types.PendingOrder, tick types.Tick, spec *symbol.Spec) OrderEvaluation {
	triggered, triggerPrice := e.detectOrderTrigger(order, tick)
	if !triggered {
		return OrderEvaluation{}
	}

	buy := isBuyOrderType(order.OrderType)

	e.mu.Lock()
	slip := e.Slippage.Calculate(spec, e.src, tick, order.VolumeCurrent)
	spreadCost := e.Spread.Calculate(spec, e.src, tick)
	e.mu.Unlock()

	fillPrice := triggerPrice
	if buy {
		fillPrice += slip
	} else {
		fillPrice -= slip
	}

	commission := e.Commission.Calculate(spec, e.src, fillPrice, order.VolumeCurrent)

	return OrderEvaluation{
		Executed:   true,
		FillPrice:  fillPrice,
		Slippage:   slip,
		Commission: commission,
		SpreadCost: spreadCost,
	}
}

func (e *Engine) detectOrderTrigger(order types.PendingOrder, tick types.Tick) (bool, fixedpoint.Price) {
	switch order.OrderType {
	case types.OrderTypeBuy:
		return true, tick.Ask
	case types.OrderTypeSell:
		return true, tick.Bid
	case types.OrderTypeBuyLimit:
		if tick.Ask <= order.PriceOpen {
			return true, order.PriceOpen
		}
	case types.OrderTypeSellLimit:
		if tick.Bid >= order.PriceOpen {
			return true, order.PriceOpen
		}
	case types.OrderTypeBuyStop:
		if tick.Ask >= order.PriceOpen {
			return true, tick.Ask
		}
	case types.OrderTypeSellStop:
		if tick.Bid <= order.PriceOpen {
			return true, tick.Bid
		}
	case types.OrderTypeBuyStopLimit:
		if tick.Ask >= order.PriceOpen {
			return true, fixedpoint.Price(fixedpoint.Min(int64(tick.Ask), int64(order.PriceOpen)))
		}
	case types.OrderTypeSellStopLimit:
		if tick.Bid <= order.PriceOpen {
			return true, fixedpoint.Price(fixedpoint.Max(int64(tick.Bid), int64(order.PriceOpen)))
		}
	}

	return false, 0
}

// EvaluatePosition checks a position's SL/TP against a tick. Gap-through
// fills at the worse of the stop price and the current market.
func (e *Engine) EvaluatePosition(position types.Position, tick types.Tick, spec *symbol.Spec) PositionEvaluation {
	triggered, fillBase, closingBuy := e.detectPositionTrigger(position, tick)
	if !triggered {
		return PositionEvaluation{}
	}

	e.mu.Lock()
	slip := e.Slippage.Calculate(spec, e.src, tick, position.Volume)
	e.mu.Unlock()

	fillPrice := fillBase
	if closingBuy {
		// Closing a BUY position sells at bid; slippage is adverse (lower).
		fillPrice -= slip
	} else {
		fillPrice += slip
	}

	commission := e.Commission.Calculate(spec, e.src, fillPrice, position.Volume)

	return PositionEvaluation{Triggered: true, FillPrice: fillPrice, Slippage: slip, Commission: commission}
}

func (e *Engine) detectPositionTrigger(position types.Position, tick types.Tick) (triggered bool, fillBase fixedpoint.Price, isBuyPosition bool) {
	if position.Type == types.PositionTypeBuy {
		if position.StopLoss > 0 && tick.Bid <= position.StopLoss {
			return true, fixedpoint.Price(fixedpoint.Min(int64(tick.Bid), int64(position.StopLoss))), true
		}
		if position.TakeProfit > 0 && tick.Bid >= position.TakeProfit {
			return true, fixedpoint.Price(fixedpoint.Max(int64(tick.Bid), int64(position.TakeProfit))), true
		}

		return false, 0, true
	}

	// SELL position.
	if position.StopLoss > 0 && tick.Ask >= position.StopLoss {
		return true, fixedpoint.Price(fixedpoint.Max(int64(tick.Ask), int64(position.StopLoss))), false
	}
	if position.TakeProfit > 0 && tick.Ask <= position.TakeProfit {
		return true, fixedpoint.Price(fixedpoint.Min(int64(tick.Ask), int64(position.TakeProfit))), false
	}

	return false, 0, false
}

// CalculateSwap counts whole days from position.OpenTime to ts; when >= 1
// day and the swap model's ShouldApply holds, returns
// swap_model.Calculate(...) * GetMultiplier(ts).
func (e *Engine) CalculateSwap(position types.Position, currentPrice fixedpoint.Price, spec *symbol.Spec, ts clock.Timestamp) fixedpoint.Money {
	daysHeld := wholeDaysBetween(position.OpenTime, ts)
	if daysHeld < 1 {
		return 0
	}

	if !e.Swap.ShouldApply(ts) {
		return 0
	}

	base := e.Swap.Calculate(spec, position.Type, position.Volume, currentPrice, daysHeld)

	return fixedpoint.Money(int64(base) * e.Swap.GetMultiplier(ts))
}

func wholeDaysBetween(open, ts clock.Timestamp) int {
	openDay := open.FloorToDay()
	tsDay := ts.FloorToDay()
	const microsPerDay = int64(86_400_000_000)

	return int((int64(tsDay) - int64(openDay)) / microsPerDay)
}

// TicketAscending sorts tickets for the deterministic per-tick iteration
// order: pending orders and positions on a symbol are evaluated in ticket
// ascending order, and the RNG advances once per triggered order.
func TicketAscending(tickets []uint64) {
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })
}
