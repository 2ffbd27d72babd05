package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Deterministic margin-account backtest engine",
	Long: `backtest drives the engine over a replayed tick/bar stream against a
single margin trading account: position and order lifecycle, margin and
swap accrual, slippage/commission/spread cost models, and a crash-safe
write-ahead log of every state change.

It provides:
  - run: execute a configured backtest to completion
  - replay: re-derive ledger state from a WAL file, independent of the run
  - schema: print the JSON Schema for a run's YAML config`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
}
