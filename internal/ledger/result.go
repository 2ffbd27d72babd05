package ledger

import (
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// fail records and returns a failure Result. Callers must hold l.mu.
func (l *Ledger) fail(code types.RetCode, comment string) types.Result {
	result := types.Result{RetCode: code, Comment: comment}
	l.lastResult = result

	return result
}

// succeed records and returns a success Result, filling in the bid/ask
// observed at execution from spec's current quote. Callers must hold l.mu.
func (l *Ledger) succeed(code types.RetCode, dealTicket, orderTicket uint64, volume float64, price fixedpoint.Price, spec *symbol.Spec, comment string) types.Result {
	result := types.Result{
		RetCode:     code,
		DealTicket:  dealTicket,
		OrderTicket: orderTicket,
		Volume:      volume,
		Price:       price,
		Bid:         spec.BidFixed(),
		Ask:         spec.AskFixed(),
		Comment:     comment,
	}
	l.lastResult = result

	return result
}

// marginAllowsLocked reports whether adding candidate to the current set of
// open positions would keep the post-trade margin level at or above 100%.
// Callers must hold l.mu.
func (l *Ledger) marginAllowsLocked(candidate margin.PositionMargin) bool {
	positions := l.positionMarginSliceLocked()
	positions = append(positions, candidate)

	hypotheticalMargin := l.marginCalc.TotalMargin(positions, l.account.Currency)
	level := margin.MarginLevel(l.account.Equity, hypotheticalMargin)

	return level >= 100
}

func ferrorsInvalid(message string) error {
	return ferrors.New(ferrors.ErrCodeInvalidRequest, message)
}

// computePositionMargin builds the margin.PositionMargin input for a
// freshly opened position.
func computePositionMargin(spec *symbol.Spec, position *types.Position, leverage int64) margin.PositionMargin {
	required := margin.RequiredMargin(spec, position.Volume, position.PriceOpen, leverage)

	return margin.PositionMargin{
		Ticket:         position.Ticket,
		Margin:         required,
		MarginCurrency: spec.MarginCurrency,
	}
}
