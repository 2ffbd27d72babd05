// Package ledger implements the trade/account ledger: the core of the
// engine. It owns positions, pending orders, deals, and history orders,
// and orchestrates margin reservation, equity recomputation, and stop-out
// liquidation on top of the margin calculator and currency converter.
package ledger

import (
	"sort"
	"sync"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/currency"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// firstTicket is the initial value of the ledger's shared ticket counter;
// positions, orders, and deals all draw from the same monotonic stream.
const firstTicket uint64 = 1000

// Ledger is the account/trade ledger. All mutating methods are meant to be
// called exclusively from the simulator thread; the embedded mutex exists
// to make create_snapshot/restore_snapshot safe if a host calls them from a
// different goroutine than the one driving the event loop.
type Ledger struct {
	mu sync.Mutex

	account types.Account

	symbols map[string]*symbol.Spec

	positions      map[uint64]*types.Position
	positionMargin map[uint64]margin.PositionMargin

	orders map[uint64]*types.PendingOrder

	deals         []types.Deal
	historyOrders []types.HistoryOrder

	nextTicket uint64

	converter  *currency.Converter
	marginCalc *margin.Calculator
	logger     *backtestlog.Logger

	lastPositionRequest types.OpenPositionRequest
	lastOrderRequest    types.OpenOrderRequest
	lastResult          types.Result
}

// New constructs an empty Ledger over the given starting account state. The
// converter and marginCalc must be the same instances the rest of the
// engine uses, so margin/equity figures stay consistent.
func New(account types.Account, converter *currency.Converter, marginCalc *margin.Calculator, logger *backtestlog.Logger) *Ledger {
	return &Ledger{
		account:        account,
		symbols:        make(map[string]*symbol.Spec),
		positions:      make(map[uint64]*types.Position),
		positionMargin: make(map[uint64]margin.PositionMargin),
		orders:         make(map[uint64]*types.PendingOrder),
		nextTicket:     firstTicket,
		converter:      converter,
		marginCalc:     marginCalc,
		logger:         logger,
	}
}

// RegisterSymbol makes spec available to position/order validation and
// pricing. Must be called before any command referencing spec.Name.
func (l *Ledger) RegisterSymbol(spec *symbol.Spec) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.symbols[spec.Name] = spec
}

// nextTicketID draws the next value from the shared ticket stream. Callers
// must hold l.mu.
func (l *Ledger) nextTicketID() uint64 {
	t := l.nextTicket
	l.nextTicket++

	return t
}

// Account returns a copy of the current account state.
func (l *Ledger) Account() types.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.account
}

// GetPosition returns a copy of the position for ticket, if open.
func (l *Ledger) GetPosition(ticket uint64) (types.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[ticket]
	if !ok {
		return types.Position{}, false
	}

	return *p, true
}

// GetAllPositions returns a ticket-ascending copy of every open position.
func (l *Ledger) GetAllPositions() []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sortedPositionsLocked()
}

func (l *Ledger) sortedPositionsLocked() []types.Position {
	tickets := make([]uint64, 0, len(l.positions))
	for t := range l.positions {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })

	out := make([]types.Position, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, *l.positions[t])
	}

	return out
}

// GetOrder returns a copy of the active pending order for ticket.
func (l *Ledger) GetOrder(ticket uint64) (types.PendingOrder, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[ticket]
	if !ok {
		return types.PendingOrder{}, false
	}

	return *o, true
}

// GetAllOrders returns a ticket-ascending copy of every active pending
// order.
func (l *Ledger) GetAllOrders() []types.PendingOrder {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sortedOrdersLocked()
}

func (l *Ledger) sortedOrdersLocked() []types.PendingOrder {
	tickets := make([]uint64, 0, len(l.orders))
	for t := range l.orders {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })

	out := make([]types.PendingOrder, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, *l.orders[t])
	}

	return out
}

// Deals returns every recorded deal, oldest first.
func (l *Ledger) Deals() []types.Deal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Deal, len(l.deals))
	copy(out, l.deals)

	return out
}

// GetDeal returns the deal recorded under ticket, if any. Used by callers
// that receive a DealTicket from a Result and need the full record to hand
// to an on_trade callback.
func (l *Ledger) GetDeal(ticket uint64) (types.Deal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, d := range l.deals {
		if d.Ticket == ticket {
			return d, true
		}
	}

	return types.Deal{}, false
}

// HistoryOrders returns every order that has left the active-orders map.
func (l *Ledger) HistoryOrders() []types.HistoryOrder {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.HistoryOrder, len(l.historyOrders))
	copy(out, l.historyOrders)

	return out
}

// LastPositionRequest returns the most recently submitted position_open
// request.
func (l *Ledger) LastPositionRequest() types.OpenPositionRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastPositionRequest
}

// LastOrderRequest returns the most recently submitted order_open request.
func (l *Ledger) LastOrderRequest() types.OpenOrderRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastOrderRequest
}

// LastResult returns the Result of the most recently executed command.
func (l *Ledger) LastResult() types.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastResult
}

// GetSymbolSpec exposes the registered Spec for name, for callers outside
// the ledger (the costs engine and clock need the live quote state to
// evaluate triggers and enforce point-in-time ordering).
func (l *Ledger) GetSymbolSpec(name string) (*symbol.Spec, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	spec, ok := l.symbols[name]

	return spec, ok
}

func (l *Ledger) spec(name string) (*symbol.Spec, error) {
	spec, ok := l.symbols[name]
	if !ok {
		return nil, ferrors.Newf(ferrors.ErrCodeInvalidRequest, "ledger: symbol %q is not registered", name)
	}

	return spec, nil
}

// recordDealLocked appends a deal to the log, drawing a fresh ticket from the shared
// counter. Callers must hold l.mu.
func (l *Ledger) recordDealLocked(d types.Deal) types.Deal {
	d.Ticket = l.nextTicketID()
	l.deals = append(l.deals, d)

	return d
}

// convert converts money from a currency to the account currency, falling
// back to a unit rate (and a warning log) when no path exists — mirroring
// margin.Calculator's safety default.
func (l *Ledger) convert(amount float64, from string) float64 {
	if from == "" || from == l.account.Currency {
		return amount
	}

	converted, err := l.converter.Convert(amount, from, l.account.Currency)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("ledger: no conversion path, using unit rate")
		}

		return amount
	}

	return converted
}

// positionMarginSliceLocked returns the margin inputs for every open
// position, for feeding margin.Calculator.TotalMargin. Callers must hold
// l.mu.
func (l *Ledger) positionMarginSliceLocked() []margin.PositionMargin {
	out := make([]margin.PositionMargin, 0, len(l.positionMargin))
	for _, pm := range l.positionMargin {
		out = append(out, pm)
	}

	return out
}

func priceAsFloat(p fixedpoint.Price, spec *symbol.Spec) float64 {
	return p.ToFloat(spec.Digits)
}

func pointsToPriceDelta(points int64, spec *symbol.Spec) fixedpoint.Price {
	return fixedpoint.PriceFromFloat(float64(points)*spec.Point, spec.Digits)
}

// scaleMoney returns m scaled by ratio, rounding half away from zero rather
// than truncating — used to proportionally consume accumulated commission
// and swap on a partial close.
func scaleMoney(m fixedpoint.Money, ratio float64) fixedpoint.Money {
	return fixedpoint.MoneyFromFloat(m.ToFloat() * ratio)
}
