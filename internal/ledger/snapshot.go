package ledger

import (
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

// Snapshot is a deep copy of the ledger's entire state — account,
// positions, orders, deals, history orders, the symbol map's quote state,
// and the next-ticket counter. It is the ledger's exchange format with the
// WAL layer.
type Snapshot struct {
	Account        types.Account
	Positions      map[uint64]types.Position
	PositionMargin map[uint64]margin.PositionMargin
	Orders         map[uint64]types.PendingOrder
	Deals          []types.Deal
	HistoryOrders  []types.HistoryOrder
	SymbolQuotes   map[string]symbol.QuoteSnapshot
	NextTicket     uint64
}

// CreateSnapshot returns a deep copy of the ledger's entire state.
func (l *Ledger) CreateSnapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make(map[uint64]types.Position, len(l.positions))
	for t, p := range l.positions {
		positions[t] = *p
	}

	positionMargin := make(map[uint64]margin.PositionMargin, len(l.positionMargin))
	for t, pm := range l.positionMargin {
		positionMargin[t] = pm
	}

	orders := make(map[uint64]types.PendingOrder, len(l.orders))
	for t, o := range l.orders {
		orders[t] = *o
	}

	deals := make([]types.Deal, len(l.deals))
	copy(deals, l.deals)

	historyOrders := make([]types.HistoryOrder, len(l.historyOrders))
	copy(historyOrders, l.historyOrders)

	quotes := make(map[string]symbol.QuoteSnapshot, len(l.symbols))
	for name, spec := range l.symbols {
		quotes[name] = spec.Snapshot()
	}

	return Snapshot{
		Account:        l.account,
		Positions:      positions,
		PositionMargin: positionMargin,
		Orders:         orders,
		Deals:          deals,
		HistoryOrders:  historyOrders,
		SymbolQuotes:   quotes,
		NextTicket:     l.nextTicket,
	}
}

// RestoreSnapshot atomically replaces all ledger state with snap. The
// ticket counter resumes from snap.NextTicket, even when tickets above it
// were issued after the snapshot was taken.
func (l *Ledger) RestoreSnapshot(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.account = snap.Account

	l.positions = make(map[uint64]*types.Position, len(snap.Positions))
	for t, p := range snap.Positions {
		pCopy := p
		l.positions[t] = &pCopy
	}

	l.positionMargin = make(map[uint64]margin.PositionMargin, len(snap.PositionMargin))
	for t, pm := range snap.PositionMargin {
		l.positionMargin[t] = pm
	}

	l.orders = make(map[uint64]*types.PendingOrder, len(snap.Orders))
	for t, o := range snap.Orders {
		oCopy := o
		l.orders[t] = &oCopy
	}

	l.deals = make([]types.Deal, len(snap.Deals))
	copy(l.deals, snap.Deals)

	l.historyOrders = make([]types.HistoryOrder, len(snap.HistoryOrders))
	copy(l.historyOrders, snap.HistoryOrders)

	for name, quote := range snap.SymbolQuotes {
		if spec, ok := l.symbols[name]; ok {
			spec.Restore(quote)
		}
	}

	l.nextTicket = snap.NextTicket
}
