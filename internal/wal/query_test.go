package wal_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/internal/wal"
)

type DealStoreTestSuite struct {
	suite.Suite
	dir string
}

func (s *DealStoreTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *DealStoreTestSuite) openStore() *wal.DealStore {
	store, err := wal.OpenDealStore(filepath.Join(s.dir, "deals.db"))
	s.Require().NoError(err)

	return store
}

func (s *DealStoreTestSuite) TestInsertAndQueryBySymbol() {
	store := s.openStore()
	defer store.Close()

	deal := types.Deal{
		Ticket: 1, SymbolName: "EURUSD", Type: types.DealTypeBuy, Entry: types.DealEntryOut,
		Volume: 0.1, Price: fixedpoint.PriceFromFloat(1.1, 5),
		Profit: fixedpoint.MoneyFromFloat(12.5), Time: clock.Timestamp(1000),
	}
	s.Require().NoError(store.InsertDeal(deal))

	deals, err := store.DealsBySymbol("EURUSD")
	s.Require().NoError(err)
	s.Require().Len(deals, 1)
	s.Equal(deal.Ticket, deals[0].Ticket)
	s.Equal(deal.Price, deals[0].Price)
	s.Equal(deal.Profit, deals[0].Profit)

	none, err := store.DealsBySymbol("GBPUSD")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *DealStoreTestSuite) TestSummaryAggregatesAcrossSymbols() {
	store := s.openStore()
	defer store.Close()

	s.Require().NoError(store.InsertDeal(types.Deal{
		Ticket: 1, SymbolName: "EURUSD", Entry: types.DealEntryOut,
		Profit: fixedpoint.MoneyFromFloat(100), Time: clock.Timestamp(1),
	}))
	s.Require().NoError(store.InsertDeal(types.Deal{
		Ticket: 2, SymbolName: "GBPUSD", Entry: types.DealEntryOut,
		Profit: fixedpoint.MoneyFromFloat(-25), Time: clock.Timestamp(2),
	}))

	summary, err := store.Summary(fixedpoint.MoneyFromFloat(1000))
	s.Require().NoError(err)
	s.Equal(2, summary.TradeResult.NumberOfTrades)
	s.Equal(1, summary.TradeResult.NumberOfWinningTrades)
	s.Equal(1, summary.TradeResult.NumberOfLosingTrades)
	s.InDelta(75.0, summary.TradePnL.NetProfit, 1e-9)
}

func TestDealStoreSuite(t *testing.T) {
	suite.Run(t, new(DealStoreTestSuite))
}
