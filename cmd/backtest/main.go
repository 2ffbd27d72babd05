package main

import (
	"os"

	"github.com/fxsim/backtester/cmd/backtest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
