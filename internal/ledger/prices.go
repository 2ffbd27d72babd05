package ledger

import (
	"sort"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// UpdatePrices pushes a new bid/ask into symbolName's SymbolSpec, refreshes
// price_current and profit on every open position of that symbol (BUY
// tracks bid, SELL tracks ask), and recomputes equity.
func (l *Ledger) UpdatePrices(symbolName string, bid, ask fixedpoint.Price, ts clock.Timestamp) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	spec, err := l.spec(symbolName)
	if err != nil {
		return err
	}

	spec.UpdatePrice(bid, ask, ts)

	for _, position := range l.positions {
		if position.SymbolName != symbolName {
			continue
		}

		if position.Type == types.PositionTypeBuy {
			position.PriceCurrent = bid
		} else {
			position.PriceCurrent = ask
		}
		position.TimeUpdate = ts

		position.Profit = l.unrealizedProfitLocked(position, spec)
	}

	l.recomputeEquityLocked()

	return nil
}

func (l *Ledger) unrealizedProfitLocked(position *types.Position, spec *symbol.Spec) fixedpoint.Money {
	return realizedProfit(position.Type, position.PriceOpen, position.PriceCurrent, position.Volume, spec)
}

// recomputeEquityLocked recalculates equity, margin, margin level, and free
// margin from the current positions and balance. Callers must hold l.mu.
func (l *Ledger) recomputeEquityLocked() {
	var totalProfit float64
	for _, position := range l.positions {
		totalProfit += l.convertProfitLocked(position)
	}

	l.account.Profit = fixedpoint.MoneyFromFloat(totalProfit)
	l.account.Equity = l.account.Balance + l.account.Profit

	positions := l.positionMarginSliceLocked()
	l.account.Margin = l.marginCalc.TotalMargin(positions, l.account.Currency)
	l.account.MarginFree = margin.FreeMargin(l.account.Equity, l.account.Margin)
	l.account.MarginLevelPercent = margin.MarginLevel(l.account.Equity, l.account.Margin)
}

func (l *Ledger) convertProfitLocked(position *types.Position) float64 {
	spec, err := l.spec(position.SymbolName)
	if err != nil {
		return 0
	}

	return l.convert(position.Profit.ToFloat(), spec.ProfitCurrency)
}

// CheckStopOut repeatedly force-closes the largest losing position while
// margin_level stays below threshold, margin remains positive, and open
// positions remain. Returns the deal tickets generated by forced closes, in
// the order they were closed.
func (l *Ledger) CheckStopOut(threshold float64) []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var closed []uint64

	for {
		if l.account.Margin <= 0 || len(l.positions) == 0 {
			return closed
		}

		level := margin.MarginLevel(l.account.Equity, l.account.Margin)
		if level >= threshold {
			return closed
		}

		loser := l.largestLosingPositionLocked()
		if loser == nil {
			return closed
		}

		result := l.closePositionVolumeLocked(loser, loser.Volume, types.DealEntryOut)
		closed = append(closed, result.DealTicket)
	}
}

func (l *Ledger) largestLosingPositionLocked() *types.Position {
	tickets := make([]uint64, 0, len(l.positions))
	for t := range l.positions {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })

	var worst *types.Position
	for _, t := range tickets {
		p := l.positions[t]
		if worst == nil || p.Profit < worst.Profit {
			worst = p
		}
	}

	return worst
}
