package types

import (
	"github.com/shopspring/decimal"

	"github.com/fxsim/backtester/internal/fixedpoint"
)

// TradeResult is the count-based half of a Summary: how many deals closed,
// how many won or lost, and the running equity curve's worst drawdown.
type TradeResult struct {
	// Count of closing deals (DealEntryOut or DealEntryInOut).
	NumberOfTrades int `yaml:"number_of_trades" json:"number_of_trades"`
	// Count of closing deals with positive net profit.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	// Count of closing deals with negative net profit.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	// WinningTrades / NumberOfTrades, as a fraction in [0, 1].
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Largest peak-to-trough drop in the running equity curve, as a
	// fraction of the peak.
	MaxDrawdownPercent float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent"`
}

// TradePnL is the money half of a Summary. Every field is accumulated
// through shopspring/decimal rather than float64: a run with thousands of
// deals summing fixedpoint.Money int64s directly would still be exact, but
// ProfitFactor's division and the running-equity drawdown scan are not, and
// decimal keeps the whole aggregation in one precision discipline instead
// of mixing int64 sums with float64 ratios.
type TradePnL struct {
	// Sum of every closing deal's Profit, net of commission and swap.
	NetProfit float64 `yaml:"net_profit" json:"net_profit"`
	// Sum of positive per-deal net profit.
	GrossProfit float64 `yaml:"gross_profit" json:"gross_profit"`
	// Sum of negative per-deal net profit (a non-positive number).
	GrossLoss float64 `yaml:"gross_loss" json:"gross_loss"`
	// GrossProfit / |GrossLoss|. Zero when there is no loss to divide by.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// Sum of every deal's commission (both opening and closing fills).
	TotalCommission float64 `yaml:"total_commission" json:"total_commission"`
	// Sum of every deal's accrued swap.
	TotalSwap float64 `yaml:"total_swap" json:"total_swap"`
}

// Summary is the full post-run report: how a sequence of deals performed
// against a starting balance.
type Summary struct {
	TradeResult TradeResult `yaml:"trade_result" json:"trade_result"`
	TradePnL    TradePnL    `yaml:"trade_pnl" json:"trade_pnl"`
}

// Summarize aggregates deals, in the chronological order they closed,
// into a Summary. Only closing entries (DealEntryOut, DealEntryInOut)
// count toward trade counts and win rate; opening entries contribute only
// their commission/swap.
func Summarize(deals []Deal, startingBalance fixedpoint.Money) Summary {
	netProfit := decimal.Zero
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	totalCommission := decimal.Zero
	totalSwap := decimal.Zero

	closes, wins, losses := 0, 0, 0

	equity := decimal.NewFromInt(int64(startingBalance)).Div(moneyScaleDecimal)
	peak := equity
	maxDrawdown := decimal.Zero

	for _, deal := range deals {
		commission := moneyToDecimal(deal.Commission)
		swap := moneyToDecimal(deal.Swap)
		totalCommission = totalCommission.Add(commission)
		totalSwap = totalSwap.Add(swap)

		net := moneyToDecimal(deal.Profit).Add(commission).Add(swap)
		equity = equity.Add(net)

		if equity.GreaterThan(peak) {
			peak = equity
		} else if peak.GreaterThan(decimal.Zero) {
			drawdown := peak.Sub(equity).Div(peak)
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}

		if deal.Entry != DealEntryOut && deal.Entry != DealEntryInOut {
			continue
		}

		closes++
		netProfit = netProfit.Add(net)
		switch {
		case net.GreaterThan(decimal.Zero):
			wins++
			grossProfit = grossProfit.Add(net)
		case net.LessThan(decimal.Zero):
			losses++
			grossLoss = grossLoss.Add(net)
		}
	}

	winRate := 0.0
	if closes > 0 {
		winRate = float64(wins) / float64(closes)
	}

	profitFactor := 0.0
	if !grossLoss.IsZero() {
		profitFactor, _ = grossProfit.Div(grossLoss.Abs()).Float64()
	}

	netProfitF, _ := netProfit.Float64()
	grossProfitF, _ := grossProfit.Float64()
	grossLossF, _ := grossLoss.Float64()
	totalCommissionF, _ := totalCommission.Float64()
	totalSwapF, _ := totalSwap.Float64()
	maxDrawdownF, _ := maxDrawdown.Float64()

	return Summary{
		TradeResult: TradeResult{
			NumberOfTrades:        closes,
			NumberOfWinningTrades: wins,
			NumberOfLosingTrades:  losses,
			WinRate:               winRate,
			MaxDrawdownPercent:    maxDrawdownF,
		},
		TradePnL: TradePnL{
			NetProfit:       netProfitF,
			GrossProfit:     grossProfitF,
			GrossLoss:       grossLossF,
			ProfitFactor:    profitFactor,
			TotalCommission: totalCommissionF,
			TotalSwap:       totalSwapF,
		},
	}
}

var moneyScaleDecimal = decimal.NewFromInt(1_000_000)

func moneyToDecimal(m fixedpoint.Money) decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(moneyScaleDecimal)
}
