package wal

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
)

// DealStore is an ad-hoc SQLite-backed query surface over a replayed WAL's
// deals, backing `backtest replay --export-sqlite`. It never participates
// in the deterministic replay itself; it is a sink a caller can point a
// query at afterward, mirroring the teacher's BacktestState's use of
// squirrel over a SQL driver for post-run inspection.
type DealStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// OpenDealStore opens (creating if necessary) a SQLite database at path
// and ensures its deals table exists. Pass ":memory:" for a throwaway
// in-process store.
func OpenDealStore(path string) (*DealStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("wal: open sqlite %s: %w", path, err)
	}

	store := &DealStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
	if err := store.createTable(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *DealStore) createTable() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS deals (
	ticket       INTEGER PRIMARY KEY,
	order_ticket INTEGER,
	position_id  INTEGER,
	symbol       TEXT,
	deal_type    INTEGER,
	entry        INTEGER,
	volume       REAL,
	price        INTEGER,
	profit       INTEGER,
	commission   INTEGER,
	swap         INTEGER,
	deal_time    INTEGER,
	magic        INTEGER,
	comment      TEXT
)`)
	if err != nil {
		return fmt.Errorf("wal: create deals table: %w", err)
	}

	return nil
}

// InsertDeal appends one replayed deal to the store.
func (s *DealStore) InsertDeal(deal types.Deal) error {
	_, err := s.sq.
		Insert("deals").
		Columns(
			"ticket", "order_ticket", "position_id", "symbol", "deal_type", "entry",
			"volume", "price", "profit", "commission", "swap", "deal_time", "magic", "comment",
		).
		Values(
			deal.Ticket, deal.Order, deal.PositionID, deal.SymbolName, int(deal.Type), int(deal.Entry),
			deal.Volume, int64(deal.Price), int64(deal.Profit), int64(deal.Commission), int64(deal.Swap),
			int64(deal.Time), deal.Magic, deal.Comment,
		).
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("wal: insert deal %d: %w", deal.Ticket, err)
	}

	return nil
}

// DealsBySymbol returns every stored deal for symbolName, oldest first.
func (s *DealStore) DealsBySymbol(symbolName string) ([]types.Deal, error) {
	rows, err := s.sq.
		Select(
			"ticket", "order_ticket", "position_id", "symbol", "deal_type", "entry",
			"volume", "price", "profit", "commission", "swap", "deal_time", "magic", "comment",
		).
		From("deals").
		Where(squirrel.Eq{"symbol": symbolName}).
		OrderBy("deal_time ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("wal: query deals for %s: %w", symbolName, err)
	}
	defer rows.Close()

	var deals []types.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}

	return deals, rows.Err()
}

// Summary aggregates every stored deal, across all symbols, through
// types.Summarize.
func (s *DealStore) Summary(startingBalance fixedpoint.Money) (types.Summary, error) {
	rows, err := s.sq.
		Select(
			"ticket", "order_ticket", "position_id", "symbol", "deal_type", "entry",
			"volume", "price", "profit", "commission", "swap", "deal_time", "magic", "comment",
		).
		From("deals").
		OrderBy("deal_time ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return types.Summary{}, fmt.Errorf("wal: query all deals: %w", err)
	}
	defer rows.Close()

	var deals []types.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return types.Summary{}, err
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return types.Summary{}, err
	}

	return types.Summarize(deals, startingBalance), nil
}

func scanDeal(rows *sql.Rows) (types.Deal, error) {
	var d types.Deal
	var dealType, entry int
	var price, profit, commission, swapAmt, ts int64

	if err := rows.Scan(
		&d.Ticket, &d.Order, &d.PositionID, &d.SymbolName, &dealType, &entry,
		&d.Volume, &price, &profit, &commission, &swapAmt, &ts, &d.Magic, &d.Comment,
	); err != nil {
		return types.Deal{}, fmt.Errorf("wal: scan deal row: %w", err)
	}

	d.Type = types.DealType(dealType)
	d.Entry = types.DealEntry(entry)
	d.Price = fixedpoint.Price(price)
	d.Profit = fixedpoint.Money(profit)
	d.Commission = fixedpoint.Money(commission)
	d.Swap = fixedpoint.Money(swapAmt)
	d.Time = clock.Timestamp(ts)

	return d, nil
}

// Close releases the underlying database handle.
func (s *DealStore) Close() error {
	return s.db.Close()
}
