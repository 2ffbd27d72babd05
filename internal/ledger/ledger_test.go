package ledger_test

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/currency"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/ledger"
	"github.com/fxsim/backtester/internal/margin"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
)

type LedgerTestSuite struct {
	suite.Suite

	spec   *symbol.Spec
	ledger *ledger.Ledger
}

func (s *LedgerTestSuite) SetupTest() {
	s.spec = newEURUSD()

	account := types.Account{
		Balance:  fixedpoint.MoneyFromFloat(10000),
		Currency: "USD",
		Leverage: 100,
	}

	conv := currency.NewConverter()
	calc := margin.New(conv, backtestlog.NewNop())

	s.ledger = ledger.New(account, conv, calc, backtestlog.NewNop())
	s.ledger.RegisterSymbol(s.spec)
}

func newEURUSD() *symbol.Spec {
	spec := symbol.New("EURUSD", 1, 5)
	spec.ContractSize = 100000
	spec.Point = 0.00001
	spec.VolumeMin, spec.VolumeMax, spec.VolumeStep = 0.01, 100.0, 0.01
	spec.BaseCurrency = "EUR"
	spec.ProfitCurrency = "USD"
	spec.MarginCurrency = "USD"

	return spec
}

func price(p float64) fixedpoint.Price {
	return fixedpoint.PriceFromFloat(p, 5)
}

func some(v float64) optional.Option[float64] {
	return optional.Some(v)
}

func none() optional.Option[float64] {
	return optional.None[float64]()
}

// TestPositionOpenS1Scenario follows the single-symbol round trip scenario:
// register EURUSD, open a BUY at the ask, observe the spread loss in
// equity, tick the market up, close, and check the realized balance.
func (s *LedgerTestSuite) TestPositionOpenS1Scenario() {
	err := s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1_000_000))
	s.Require().NoError(err)

	result := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD",
		Type:   types.PositionTypeBuy,
		Volume: 0.1,
	}, clock.Timestamp(1_000_000))

	s.Equal(types.RetCodeDone, result.RetCode)
	s.Equal(price(1.10015), result.Price)

	positions := s.ledger.GetAllPositions()
	s.Require().Len(positions, 1)

	account := s.ledger.Account()
	s.InDelta(110.015, account.Margin.ToFloat(), 0.01)
	s.InDelta(10000.0-1.5, account.Equity.ToFloat(), 0.05)

	err = s.ledger.UpdatePrices("EURUSD", price(1.10100), price(1.10115), clock.Timestamp(2_000_000))
	s.Require().NoError(err)

	updated, ok := s.ledger.GetPosition(positions[0].Ticket)
	s.Require().True(ok)
	s.InDelta(8.50, updated.Profit.ToFloat(), 0.01)

	closeResult := s.ledger.PositionClose(positions[0].Ticket)
	s.Equal(types.RetCodeDone, closeResult.RetCode)

	deals := s.ledger.Deals()
	s.Len(deals, 2)

	account = s.ledger.Account()
	s.InDelta(10008.50, account.Balance.ToFloat(), 0.01)
}

func (s *LedgerTestSuite) TestPositionOpenFailsNoMoney() {
	err := s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.Require().NoError(err)

	result := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD",
		Type:   types.PositionTypeBuy,
		Volume: 100000,
	}, clock.Timestamp(1))

	s.Equal(types.RetCodeNoMoney, result.RetCode)
	s.Empty(s.ledger.GetAllPositions())
}

func (s *LedgerTestSuite) TestPositionOpenFailsUnregisteredSymbol() {
	result := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "GBPUSD",
		Type:   types.PositionTypeBuy,
		Volume: 0.1,
	}, clock.Timestamp(1))

	s.Equal(types.RetCodeInvalid, result.RetCode)
}

// TestTicketCounterMonotonicAcrossKinds exercises invariant 6: the shared
// ticket stream strictly increases across positions, orders, and deals.
func (s *LedgerTestSuite) TestTicketCounterMonotonicAcrossKinds() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	openResult := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.1,
	}, clock.Timestamp(1))

	orderResult := s.ledger.OrderOpen(types.OpenOrderRequest{
		Symbol: "EURUSD", OrderType: types.OrderTypeBuyLimit, Volume: 0.1, Price: 1.05,
	}, clock.Timestamp(1))

	positions := s.ledger.GetAllPositions()
	s.Require().Len(positions, 1)

	s.Less(positions[0].Ticket, openResult.DealTicket)
	s.Less(openResult.DealTicket, orderResult.OrderTicket)
}

func (s *LedgerTestSuite) TestPositionModifyRejectsStopsTooCloseToMarket() {
	s.spec.StopsLevelPoints = 100
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.1,
	}, clock.Timestamp(1))
	positions := s.ledger.GetAllPositions()
	s.Require().Len(positions, 1)

	result := s.ledger.PositionModify(positions[0].Ticket, price(1.09999), 0)
	s.Equal(types.RetCodeInvalidStops, result.RetCode)
}

func (s *LedgerTestSuite) TestPositionModifySucceedsWithValidStops() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.1,
	}, clock.Timestamp(1))
	positions := s.ledger.GetAllPositions()

	result := s.ledger.PositionModify(positions[0].Ticket, price(1.09000), price(1.11000))
	s.Equal(types.RetCodeDone, result.RetCode)

	updated, _ := s.ledger.GetPosition(positions[0].Ticket)
	s.Equal(price(1.09000), updated.StopLoss)
	s.Equal(price(1.11000), updated.TakeProfit)
}

func (s *LedgerTestSuite) TestPositionClosePartialKeepsRemainderOpen() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 1.0,
	}, clock.Timestamp(1))

	positions := s.ledger.GetAllPositions()
	ticket := positions[0].Ticket

	s.ledger.UpdatePrices("EURUSD", price(1.10100), price(1.10115), clock.Timestamp(2))

	result := s.ledger.PositionClosePartial(ticket, 0.4)
	s.Equal(types.RetCodeDonePartial, result.RetCode)

	remaining, ok := s.ledger.GetPosition(ticket)
	s.Require().True(ok)
	s.InDelta(0.6, remaining.Volume, 1e-9)

	deals := s.ledger.Deals()
	s.Require().Len(deals, 2)
	s.Equal(types.DealEntryOut, deals[1].Entry)
	s.InDelta(0.4, deals[1].Volume, 1e-9)
}

func (s *LedgerTestSuite) TestPositionClosePartialAtFullVolumePromotesToFullClose() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.5,
	}, clock.Timestamp(1))

	positions := s.ledger.GetAllPositions()
	ticket := positions[0].Ticket

	result := s.ledger.PositionClosePartial(ticket, 10)
	s.Equal(types.RetCodeDone, result.RetCode)
	s.Empty(s.ledger.GetAllPositions())
}

// TestPositionCloseByNetsOppositeLegs exercises position_close_by: two
// opposite-side same-symbol positions settle against each other at the
// current bid, the smaller volume fully extinguished in both.
func (s *LedgerTestSuite) TestPositionCloseByNetsOppositeLegs() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 1.0,
	}, clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeSell, Volume: 0.4,
	}, clock.Timestamp(1))

	positions := s.ledger.GetAllPositions()
	s.Require().Len(positions, 2)

	result := s.ledger.PositionCloseBy(positions[0].Ticket, positions[1].Ticket)
	s.Equal(types.RetCodeDone, result.RetCode)

	remaining := s.ledger.GetAllPositions()
	s.Require().Len(remaining, 1)
	s.InDelta(0.6, remaining[0].Volume, 1e-9)
	s.Equal(types.PositionTypeBuy, remaining[0].Type)
}

func (s *LedgerTestSuite) TestPositionCloseByRejectsSameSide() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 1.0,
	}, clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 1.0,
	}, clock.Timestamp(1))

	positions := s.ledger.GetAllPositions()
	result := s.ledger.PositionCloseBy(positions[0].Ticket, positions[1].Ticket)
	s.Equal(types.RetCodeInvalid, result.RetCode)
}

func (s *LedgerTestSuite) TestOrderOpenAndFillCreatesPosition() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	placed := s.ledger.OrderOpen(types.OpenOrderRequest{
		Symbol: "EURUSD", OrderType: types.OrderTypeBuyStop, Volume: 0.2, Price: 1.10500,
		StopLoss: some(1.10000), TakeProfit: none(),
	}, clock.Timestamp(1))
	s.Equal(types.RetCodePlaced, placed.RetCode)

	fillResult := s.ledger.FillOrder(placed.OrderTicket, price(1.10500), fixedpoint.MoneyFromFloat(2), clock.Timestamp(2))
	s.Equal(types.RetCodeDone, fillResult.RetCode)

	s.Empty(s.ledger.GetAllOrders())

	positions := s.ledger.GetAllPositions()
	s.Require().Len(positions, 1)
	s.Equal(price(1.10500), positions[0].PriceOpen)
	s.Equal(price(1.10000), positions[0].StopLoss)

	history := s.ledger.HistoryOrders()
	s.Require().Len(history, 1)
	s.Equal(types.OrderStateFilled, history[0].FinalState)
}

func (s *LedgerTestSuite) TestOrderDeleteMovesToHistory() {
	placed := s.ledger.OrderOpen(types.OpenOrderRequest{
		Symbol: "EURUSD", OrderType: types.OrderTypeBuyLimit, Volume: 0.1, Price: 1.05,
	}, clock.Timestamp(1))

	result := s.ledger.OrderDelete(placed.OrderTicket, clock.Timestamp(2))
	s.Equal(types.RetCodeDone, result.RetCode)
	s.Empty(s.ledger.GetAllOrders())

	history := s.ledger.HistoryOrders()
	s.Require().Len(history, 1)
	s.Equal(types.OrderStateCanceled, history[0].FinalState)
}

// TestTrailingStopS6Scenario follows the trailing-stop scenario: a 50-point
// trailing distance with zero step ratchets the SL upward as bid rises and
// never loosens it on a subsequent down-tick.
func (s *LedgerTestSuite) TestTrailingStopS6Scenario() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10005), clock.Timestamp(1))
	open := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 1.0,
	}, clock.Timestamp(1))
	s.Equal(types.RetCodeDone, open.RetCode)

	positions := s.ledger.GetAllPositions()
	ticket := positions[0].Ticket

	s.Require().NoError(s.ledger.TrailingStopEnable(ticket, 50, 0))

	s.ledger.UpdatePrices("EURUSD", price(1.10100), price(1.10105), clock.Timestamp(2))
	s.ledger.UpdateTrailingStops()

	afterRise, _ := s.ledger.GetPosition(ticket)
	s.Equal(price(1.10050), afterRise.StopLoss)

	s.ledger.UpdatePrices("EURUSD", price(1.10050), price(1.10055), clock.Timestamp(3))
	s.ledger.UpdateTrailingStops()

	afterDip, _ := s.ledger.GetPosition(ticket)
	s.Equal(price(1.10050), afterDip.StopLoss)
}

// TestCheckStopOutLiquidatesLargestLoser forces a losing position closed
// once margin level falls below the stop-out threshold.
func (s *LedgerTestSuite) TestCheckStopOutLiquidatesLargestLoser() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	open := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 5,
	}, clock.Timestamp(1))
	s.Require().Equal(types.RetCodeDone, open.RetCode)

	s.ledger.UpdatePrices("EURUSD", price(1.00000), price(1.00015), clock.Timestamp(2))

	closed := s.ledger.CheckStopOut(100)
	s.NotEmpty(closed)
	s.Empty(s.ledger.GetAllPositions())
}

func (s *LedgerTestSuite) TestCheckStopOutNoOpWhenHealthy() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.1,
	}, clock.Timestamp(1))

	closed := s.ledger.CheckStopOut(100)
	s.Empty(closed)
	s.Len(s.ledger.GetAllPositions(), 1)
}

// TestUpdatePricesRecomputesEquityInvariant exercises invariant 2: equity
// must equal balance plus the sum of every open position's profit.
func (s *LedgerTestSuite) TestUpdatePricesRecomputesEquityInvariant() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.3,
	}, clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeSell, Volume: 0.2,
	}, clock.Timestamp(1))

	s.ledger.UpdatePrices("EURUSD", price(1.10200), price(1.10215), clock.Timestamp(2))

	account := s.ledger.Account()
	var sumProfit float64
	for _, p := range s.ledger.GetAllPositions() {
		sumProfit += p.Profit.ToFloat()
	}

	s.InDelta(account.Balance.ToFloat()+sumProfit, account.Equity.ToFloat(), 0.01)
}

// TestCreateSnapshotRestoreSnapshotRoundTrip exercises invariant 9:
// create_snapshot followed by restore_snapshot yields an indistinguishable
// ledger.
func (s *LedgerTestSuite) TestCreateSnapshotRestoreSnapshotRoundTrip() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.3,
	}, clock.Timestamp(1))
	s.ledger.OrderOpen(types.OpenOrderRequest{
		Symbol: "EURUSD", OrderType: types.OrderTypeBuyLimit, Volume: 0.1, Price: 1.05,
	}, clock.Timestamp(1))

	snap := s.ledger.CreateSnapshot()

	s.ledger.UpdatePrices("EURUSD", price(1.12000), price(1.12015), clock.Timestamp(2))
	s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeSell, Volume: 0.5,
	}, clock.Timestamp(2))

	s.ledger.RestoreSnapshot(snap)

	s.Equal(snap.Account, s.ledger.Account())
	s.Equal(snap.Positions, positionsByTicket(s.ledger.GetAllPositions()))
	s.Equal(snap.Orders, ordersByTicket(s.ledger.GetAllOrders()))
}

func positionsByTicket(positions []types.Position) map[uint64]types.Position {
	out := make(map[uint64]types.Position, len(positions))
	for _, p := range positions {
		out[p.Ticket] = p
	}

	return out
}

func ordersByTicket(orders []types.PendingOrder) map[uint64]types.PendingOrder {
	out := make(map[uint64]types.PendingOrder, len(orders))
	for _, o := range orders {
		out[o.Ticket] = o
	}

	return out
}

// TestPositionCloseTriggeredAppliesExplicitFillAndCommission verifies that a
// triggered close, unlike PositionClose, settles at the caller-supplied
// price and charges the caller-supplied commission rather than the naive
// market closing price.
func (s *LedgerTestSuite) TestPositionCloseTriggeredAppliesExplicitFillAndCommission() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	result := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.1,
	}, clock.Timestamp(1))
	s.Require().Equal(types.RetCodeDone, result.RetCode)

	positions := s.ledger.GetAllPositions()
	s.Require().Len(positions, 1)
	ticket := positions[0].Ticket

	s.ledger.UpdatePrices("EURUSD", price(1.10200), price(1.10215), clock.Timestamp(2))

	triggerPrice := price(1.10190) // slipped one pip below the prevailing bid
	commission := fixedpoint.MoneyFromFloat(0.2)

	closeResult := s.ledger.PositionCloseTriggered(ticket, triggerPrice, commission, clock.Timestamp(2))
	s.Equal(types.RetCodeDone, closeResult.RetCode)
	s.Equal(triggerPrice, closeResult.Price)
	s.Empty(s.ledger.GetAllPositions())

	account := s.ledger.Account()
	s.InDelta(0.2, account.TotalCommission.ToFloat(), 1e-6)
	// profit = (1.10190 - 1.10015) * 0.1 * 100000 = 17.5, minus the 0.2 commission
	s.InDelta(10000.0+17.5-0.2, account.Balance.ToFloat(), 0.01)
}

// TestApplySwapAccruesOnceAgainstBalanceAndPosition checks that swap credits
// land on both the position's running total and the account balance, and
// that a triggered close afterward does not double-count it.
func (s *LedgerTestSuite) TestApplySwapAccruesOnceAgainstBalanceAndPosition() {
	s.ledger.UpdatePrices("EURUSD", price(1.10000), price(1.10015), clock.Timestamp(1))

	result := s.ledger.PositionOpen(types.OpenPositionRequest{
		Symbol: "EURUSD", Type: types.PositionTypeBuy, Volume: 0.1,
	}, clock.Timestamp(1))
	s.Require().Equal(types.RetCodeDone, result.RetCode)

	ticket := s.ledger.GetAllPositions()[0].Ticket
	balanceBeforeSwap := s.ledger.Account().Balance

	firstTotal := fixedpoint.MoneyFromFloat(-0.35)
	s.ledger.ApplySwap(ticket, firstTotal)

	position, ok := s.ledger.GetPosition(ticket)
	s.Require().True(ok)
	s.Equal(firstTotal, position.Swap)

	account := s.ledger.Account()
	s.Equal(balanceBeforeSwap+firstTotal, account.Balance)
	s.Equal(firstTotal, account.TotalSwap)

	// A second rollover recomputed from scratch settles only the delta, not
	// the whole new cumulative total again.
	secondTotal := fixedpoint.MoneyFromFloat(-0.70)
	s.ledger.ApplySwap(ticket, secondTotal)

	account = s.ledger.Account()
	s.Equal(secondTotal, account.TotalSwap)
	s.Equal(balanceBeforeSwap+secondTotal, account.Balance)

	closeResult := s.ledger.PositionCloseTriggered(ticket, price(1.10015), fixedpoint.Money(0), clock.Timestamp(2))
	s.Equal(types.RetCodeDone, closeResult.RetCode)

	account = s.ledger.Account()
	s.Equal(secondTotal, account.TotalSwap) // unchanged: close doesn't re-apply swap
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}
