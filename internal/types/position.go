package types

import "github.com/fxsim/backtester/internal/clock"
import "github.com/fxsim/backtester/internal/fixedpoint"

// TrailingStopConfig is the trailing-stop configuration attached to a
// Position.
type TrailingStopConfig struct {
	Enabled        bool
	DistancePoints int64
	StepPoints     int64
	TriggerPrice   fixedpoint.Price
}

// Position is an open leveraged exposure.
type Position struct {
	Ticket         uint64
	Identifier     uint64
	SymbolName     string
	Type           PositionType
	Volume         float64
	PriceOpen      fixedpoint.Price
	PriceCurrent   fixedpoint.Price
	StopLoss       fixedpoint.Price // 0 = none
	TakeProfit     fixedpoint.Price // 0 = none
	Commission     fixedpoint.Money
	Swap           fixedpoint.Money
	Profit         fixedpoint.Money // derived, in profit currency
	OpenTime       clock.Timestamp
	TimeUpdate     clock.Timestamp
	Magic          uint64
	Comment        string
	TrailingStop   TrailingStopConfig
}

// PendingOrder is an order that has not yet triggered.
type PendingOrder struct {
	Ticket          uint64
	SymbolName      string
	OrderType       OrderType
	State           OrderState
	VolumeInitial   float64
	VolumeCurrent   float64
	PriceOpen       fixedpoint.Price
	PriceStopLimit  fixedpoint.Price
	StopLoss        fixedpoint.Price
	TakeProfit      fixedpoint.Price
	TimeSetup       clock.Timestamp
	TimeExpiration  clock.Timestamp
	TimeDone        clock.Timestamp
	TypeFilling     TypeFilling
	TypeTime        TypeTime
	Magic           uint64
	Comment         string
}

// Deal is an immutable history record of an execution.
type Deal struct {
	Ticket       uint64
	Order        uint64
	PositionID   uint64
	SymbolName   string
	Type         DealType
	Entry        DealEntry
	Volume       float64
	Price        fixedpoint.Price
	Profit       fixedpoint.Money
	Commission   fixedpoint.Money
	Swap         fixedpoint.Money
	Time         clock.Timestamp
	Magic        uint64
	Comment      string
}

// HistoryOrder is a snapshot of a PendingOrder at the moment it became
// non-active.
type HistoryOrder struct {
	PendingOrder
	FinalState OrderState
}

// Account is the host's trading account state.
type Account struct {
	Balance            fixedpoint.Money
	Equity             fixedpoint.Money
	Margin             fixedpoint.Money
	MarginFree         fixedpoint.Money
	MarginLevelPercent float64
	Profit             fixedpoint.Money
	Credit             fixedpoint.Money
	Currency           string
	Leverage           int64
	TradeMode          TradeMode
	MarginMode         MarginMode
	MarginCallPercent  float64
	StopOutPercent     float64

	TotalProfit     fixedpoint.Money
	TotalLoss       fixedpoint.Money
	TotalCommission fixedpoint.Money
	TotalSwap       fixedpoint.Money
	TradeCount      int64
	WinningCount    int64
	LosingCount     int64
}

// Result is the structured outcome of a ledger command.
type Result struct {
	RetCode       RetCode
	DealTicket    uint64
	OrderTicket   uint64
	Volume        float64
	Price         fixedpoint.Price
	Bid           fixedpoint.Price
	Ask           fixedpoint.Price
	Comment       string
}
