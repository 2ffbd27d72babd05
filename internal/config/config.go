// Package config defines the YAML-driven configuration for a backtest run:
// account terms, the symbols traded, the four cost-model selections, the
// RNG seed, and the optional WAL/broadcaster sinks. It follows the
// teacher's BacktestEngineV1Config pattern: a custom UnmarshalYAML for the
// optional fields plain yaml.v3 cannot decode into moznion/go-optional on
// its own, plus JSON-Schema generation for the `schema` CLI subcommand.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/fxsim/backtester/internal/costs"
	"github.com/fxsim/backtester/internal/costsengine"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/symbol"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// Config is the top-level run configuration: account terms, the symbols
// traded, cost-model selection, and the optional sinks.
type Config struct {
	InitialBalance    float64                    `yaml:"initial_balance" json:"initial_balance" jsonschema:"title=Initial Balance,description=Starting account balance,minimum=0"`
	Currency          string                     `yaml:"currency" json:"currency" jsonschema:"title=Account Currency,default=USD"`
	Leverage          int64                      `yaml:"leverage" json:"leverage" jsonschema:"title=Leverage,minimum=1,default=100"`
	MarginMode        string                     `yaml:"margin_mode" json:"margin_mode" jsonschema:"title=Margin Mode,enum=retail_netting,enum=exchange,enum=retail_hedging,default=retail_netting"`
	StopOutPercent    float64                    `yaml:"stop_out_percent" json:"stop_out_percent" jsonschema:"title=Stop-Out Level,description=Margin level percent at which positions are force-closed,default=50"`
	MarginCallPercent float64                    `yaml:"margin_call_percent" json:"margin_call_percent" jsonschema:"title=Margin Call Level,default=100"`
	RNGSeed           int64                      `yaml:"rng_seed" json:"rng_seed" jsonschema:"title=RNG Seed,description=Seed for the deterministic randomness source shared by every cost model"`
	Symbols           []SymbolConfig             `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols"`
	Costs             CostModelConfig            `yaml:"costs" json:"costs" jsonschema:"title=Cost Models"`
	WALPath           optional.Option[string]    `yaml:"wal_path" json:"wal_path" jsonschema:"title=WAL Path,description=Optional write-ahead-log file path"`
	BroadcastAddr     optional.Option[string]    `yaml:"broadcast_addr" json:"broadcast_addr" jsonschema:"title=Broadcast Address,description=Optional TCP/WS address to mirror engine events to"`
	StartTime         optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time; parsed and stored but not applied to the tick/bar stream"`
	EndTime           optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time; parsed and stored but not applied to the tick/bar stream"`
}

// SymbolConfig is the registration-time descriptor for one tradable
// instrument, mirroring symbol.Spec's exported fields.
type SymbolConfig struct {
	Name              string  `yaml:"name" json:"name" jsonschema:"title=Symbol Name,required"`
	Digits            int     `yaml:"digits" json:"digits" jsonschema:"title=Digits,minimum=0"`
	Point             float64 `yaml:"point" json:"point" jsonschema:"title=Point Size"`
	ContractSize      float64 `yaml:"contract_size" json:"contract_size" jsonschema:"default=100000"`
	TickSize          float64 `yaml:"tick_size" json:"tick_size"`
	TickValue         float64 `yaml:"tick_value" json:"tick_value"`
	VolumeMin         float64 `yaml:"volume_min" json:"volume_min" jsonschema:"default=0.01"`
	VolumeMax         float64 `yaml:"volume_max" json:"volume_max" jsonschema:"default=100"`
	VolumeStep        float64 `yaml:"volume_step" json:"volume_step" jsonschema:"default=0.01"`
	SwapLong          float64 `yaml:"swap_long" json:"swap_long"`
	SwapShort         float64 `yaml:"swap_short" json:"swap_short"`
	SwapMode          string  `yaml:"swap_mode" json:"swap_mode" jsonschema:"enum=POINTS,enum=PERCENTAGE,default=POINTS"`
	TripleSwapDay     int     `yaml:"triple_swap_day" json:"triple_swap_day" jsonschema:"minimum=0,maximum=6,default=3"`
	BaseCurrency      string  `yaml:"base_currency" json:"base_currency"`
	ProfitCurrency    string  `yaml:"profit_currency" json:"profit_currency"`
	MarginCurrency    string  `yaml:"margin_currency" json:"margin_currency"`
	StopsLevelPoints  int64   `yaml:"stops_level_points" json:"stops_level_points"`
	FreezeLevelPoints int64   `yaml:"freeze_level_points" json:"freeze_level_points"`
}

// ToSpec builds a *symbol.Spec for id from c.
func (c SymbolConfig) ToSpec(id uint32) *symbol.Spec {
	spec := symbol.New(c.Name, id, c.Digits)
	spec.Point = c.Point
	spec.ContractSize = c.ContractSize
	spec.TickSize = c.TickSize
	spec.TickValue = c.TickValue
	spec.VolumeMin = c.VolumeMin
	spec.VolumeMax = c.VolumeMax
	spec.VolumeStep = c.VolumeStep
	spec.SwapLong = c.SwapLong
	spec.SwapShort = c.SwapShort
	spec.SwapMode = c.SwapMode
	spec.TripleSwapDay = c.TripleSwapDay
	spec.BaseCurrency = c.BaseCurrency
	spec.ProfitCurrency = c.ProfitCurrency
	spec.MarginCurrency = c.MarginCurrency
	spec.StopsLevelPoints = c.StopsLevelPoints
	spec.FreezeLevelPoints = c.FreezeLevelPoints
	spec.TradeMode = types.TradeModeFull

	return spec
}

// CostModelConfig selects one concrete implementation per cost family by
// name ("kind"), with the parameters that implementation needs. Each
// family defaults to its zero-cost variant when Kind is empty, so a
// config can omit a family entirely for a frictionless run.
type CostModelConfig struct {
	Slippage SlippageConfig  `yaml:"slippage" json:"slippage"`
	Commission CommissionConfig `yaml:"commission" json:"commission"`
	Swap     SwapConfig      `yaml:"swap" json:"swap"`
	Spread   SpreadConfig    `yaml:"spread" json:"spread"`
}

// SlippageConfig selects a costs.Slippage implementation.
type SlippageConfig struct {
	Kind     string  `yaml:"kind" json:"kind" jsonschema:"enum=zero,enum=fixed,enum=random,enum=volume,enum=latency_profile"`
	Points   int64   `yaml:"points,omitempty" json:"points,omitempty"`
	Min      int64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max      int64   `yaml:"max,omitempty" json:"max,omitempty"`
	Base     float64 `yaml:"base,omitempty" json:"base,omitempty"`
	PerLot   float64 `yaml:"per_lot,omitempty" json:"per_lot,omitempty"`
	LatencyMS      float64 `yaml:"latency_ms,omitempty" json:"latency_ms,omitempty"`
	SpreadFraction float64 `yaml:"spread_fraction,omitempty" json:"spread_fraction,omitempty"`
}

// Build returns the costs.Slippage implementation c selects.
func (c SlippageConfig) Build() (costs.Slippage, error) {
	switch c.Kind {
	case "", "zero":
		return costs.ZeroSlippage{}, nil
	case "fixed":
		return costs.FixedSlippage{Points: c.Points}, nil
	case "random":
		return costs.RandomSlippage{Min: c.Min, Max: c.Max}, nil
	case "volume":
		return costs.VolumeSlippage{Base: c.Base, PerLot: c.PerLot}, nil
	case "latency_profile":
		return costs.LatencyProfileSlippage{LatencyMS: c.LatencyMS, SpreadFraction: c.SpreadFraction}, nil
	default:
		return nil, ferrors.Newf(ferrors.ErrCodeInvalidConfiguration, "config: unknown slippage kind %q", c.Kind)
	}
}

// CommissionConfig selects a costs.Commission implementation.
type CommissionConfig struct {
	Kind     string      `yaml:"kind" json:"kind" jsonschema:"enum=zero,enum=fixed_per_lot,enum=fixed_per_trade,enum=spread_markup,enum=percentage_of_value,enum=tiered"`
	PerLot   float64     `yaml:"per_lot,omitempty" json:"per_lot,omitempty"`
	Amount   float64     `yaml:"amount,omitempty" json:"amount,omitempty"`
	Points   int64       `yaml:"points,omitempty" json:"points,omitempty"`
	Fraction float64     `yaml:"fraction,omitempty" json:"fraction,omitempty"`
	Tiers    []TierConfig `yaml:"tiers,omitempty" json:"tiers,omitempty"`
}

// TierConfig is one row of a tiered commission schedule.
type TierConfig struct {
	VolumeThreshold  float64 `yaml:"volume_threshold" json:"volume_threshold"`
	CommissionPerLot float64 `yaml:"commission_per_lot" json:"commission_per_lot"`
}

// Build returns the costs.Commission implementation c selects.
func (c CommissionConfig) Build() (costs.Commission, error) {
	switch c.Kind {
	case "", "zero":
		return costs.ZeroCommission{}, nil
	case "fixed_per_lot":
		return costs.FixedPerLotCommission{PerLot: c.PerLot}, nil
	case "fixed_per_trade":
		return costs.FixedPerTradeCommission{Amount: c.Amount}, nil
	case "spread_markup":
		return costs.SpreadMarkupCommission{Points: c.Points}, nil
	case "percentage_of_value":
		return costs.PercentageOfValueCommission{Fraction: c.Fraction}, nil
	case "tiered":
		tiers := make([]costs.TierEntry, len(c.Tiers))
		for i, t := range c.Tiers {
			tiers[i] = costs.TierEntry{VolumeThreshold: t.VolumeThreshold, CommissionPerLot: t.CommissionPerLot}
		}

		return costs.TieredCommission{Tiers: tiers}, nil
	default:
		return nil, ferrors.Newf(ferrors.ErrCodeInvalidConfiguration, "config: unknown commission kind %q", c.Kind)
	}
}

// SwapConfig selects a costs.Swap implementation.
type SwapConfig struct {
	Kind             string  `yaml:"kind" json:"kind" jsonschema:"enum=zero,enum=standard,enum=islamic"`
	Long             float64 `yaml:"long,omitempty" json:"long,omitempty"`
	Short            float64 `yaml:"short,omitempty" json:"short,omitempty"`
	Mode             string  `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=POINTS,enum=PERCENTAGE"`
	RolloverHour     int     `yaml:"rollover_hour,omitempty" json:"rollover_hour,omitempty"`
	TripleDay        int     `yaml:"triple_day,omitempty" json:"triple_day,omitempty"`
	GracePeriodDays  int     `yaml:"grace_period_days,omitempty" json:"grace_period_days,omitempty"`
	HoldingFeePerDay float64 `yaml:"holding_fee_per_day,omitempty" json:"holding_fee_per_day,omitempty"`
}

// Build returns the costs.Swap implementation c selects.
func (c SwapConfig) Build() (costs.Swap, error) {
	switch c.Kind {
	case "", "zero":
		return costs.ZeroSwap{}, nil
	case "standard":
		mode := costs.SwapModePoints
		if c.Mode == "PERCENTAGE" {
			mode = costs.SwapModePercentage
		}

		return costs.StandardSwap{
			Long: c.Long, Short: c.Short, Mode: mode,
			RolloverHour: c.RolloverHour, TripleDay: c.TripleDay,
		}, nil
	case "islamic":
		return costs.IslamicSwap{GracePeriodDays: c.GracePeriodDays, HoldingFeePerDay: c.HoldingFeePerDay}, nil
	default:
		return nil, ferrors.Newf(ferrors.ErrCodeInvalidConfiguration, "config: unknown swap kind %q", c.Kind)
	}
}

// SpreadConfig selects a costs.Spread implementation.
type SpreadConfig struct {
	Kind              string  `yaml:"kind" json:"kind" jsonschema:"enum=fixed,enum=historical,enum=time_of_day,enum=random,enum=volatility"`
	Points            int64   `yaml:"points,omitempty" json:"points,omitempty"`
	MinFloor          float64 `yaml:"min_floor,omitempty" json:"min_floor,omitempty"`
	BasePoints        int64   `yaml:"base_points,omitempty" json:"base_points,omitempty"`
	AsianMultiplier   float64 `yaml:"asian_multiplier,omitempty" json:"asian_multiplier,omitempty"`
	LondonMultiplier  float64 `yaml:"london_multiplier,omitempty" json:"london_multiplier,omitempty"`
	NYMultiplier      float64 `yaml:"ny_multiplier,omitempty" json:"ny_multiplier,omitempty"`
	OverlapMultiplier float64 `yaml:"overlap_multiplier,omitempty" json:"overlap_multiplier,omitempty"`
	MeanPoints        float64 `yaml:"mean_points,omitempty" json:"mean_points,omitempty"`
	StdDevPoints      float64 `yaml:"std_dev_points,omitempty" json:"std_dev_points,omitempty"`
	MinPoints         int64   `yaml:"min_points,omitempty" json:"min_points,omitempty"`
	Lookback          int     `yaml:"lookback,omitempty" json:"lookback,omitempty"`
}

// Build returns the costs.Spread implementation c selects. Unlike the
// other three families, Spread has no zero variant: a symbol always
// quotes some spread, so an empty Kind defaults to fixed, 0 points.
func (c SpreadConfig) Build(digits int) (costs.Spread, error) {
	switch c.Kind {
	case "", "fixed":
		return costs.FixedSpread{Points: c.Points}, nil
	case "historical":
		return costs.HistoricalSpread{MinFloor: fixedpoint.PriceFromFloat(c.MinFloor, digits)}, nil
	case "time_of_day":
		return costs.TimeOfDaySpread{
			BasePoints: c.BasePoints, AsianMultiplier: c.AsianMultiplier,
			LondonMultiplier: c.LondonMultiplier, NYMultiplier: c.NYMultiplier,
			OverlapMultiplier: c.OverlapMultiplier,
		}, nil
	case "random":
		return costs.RandomSpread{MeanPoints: c.MeanPoints, StdDevPoints: c.StdDevPoints, MinPoints: c.MinPoints}, nil
	case "volatility":
		return &costs.VolatilitySpread{Lookback: c.Lookback, BasePoints: c.BasePoints}, nil
	default:
		return nil, ferrors.Newf(ferrors.ErrCodeInvalidConfiguration, "config: unknown spread kind %q", c.Kind)
	}
}

// Build constructs a costsengine.Engine from c.Costs, seeded with
// c.RNGSeed. digits is the primary symbol's digit count, used only by the
// historical-spread floor; most configs leave it at the first symbol's.
func (c Config) Build() (*costsengine.Engine, error) {
	digits := 5
	if len(c.Symbols) > 0 {
		digits = c.Symbols[0].Digits
	}

	slippage, err := c.Costs.Slippage.Build()
	if err != nil {
		return nil, err
	}
	commission, err := c.Costs.Commission.Build()
	if err != nil {
		return nil, err
	}
	swap, err := c.Costs.Swap.Build()
	if err != nil {
		return nil, err
	}
	spread, err := c.Costs.Spread.Build(digits)
	if err != nil {
		return nil, err
	}

	return costsengine.New(c.RNGSeed, slippage, commission, swap, spread), nil
}

// MarginModeValue parses c.MarginMode into a types.MarginMode, defaulting
// to retail netting.
func (c Config) MarginModeValue() types.MarginMode {
	switch c.MarginMode {
	case "exchange":
		return types.MarginModeExchange
	case "retail_hedging":
		return types.MarginModeRetailHedging
	default:
		return types.MarginModeRetailNetting
	}
}

// Account builds the starting types.Account c describes.
func (c Config) Account() types.Account {
	return types.Account{
		Balance:           fixedpoint.MoneyFromFloat(c.InitialBalance),
		Equity:            fixedpoint.MoneyFromFloat(c.InitialBalance),
		Currency:          c.Currency,
		Leverage:          c.Leverage,
		MarginMode:        c.MarginModeValue(),
		TradeMode:         types.TradeModeFull,
		MarginCallPercent: c.MarginCallPercent,
		StopOutPercent:    c.StopOutPercent,
	}
}

// UnmarshalYAML implements custom unmarshaling for Config: moznion/go-
// optional's Option[T] has no yaml.Unmarshaler of its own, so every
// optional field is decoded into a plain pointer first and lifted into
// Some/None afterward.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		InitialBalance    float64         `yaml:"initial_balance"`
		Currency          string          `yaml:"currency"`
		Leverage          int64           `yaml:"leverage"`
		MarginMode        string          `yaml:"margin_mode"`
		StopOutPercent    float64         `yaml:"stop_out_percent"`
		MarginCallPercent float64         `yaml:"margin_call_percent"`
		RNGSeed           int64           `yaml:"rng_seed"`
		Symbols           []SymbolConfig  `yaml:"symbols"`
		Costs             CostModelConfig `yaml:"costs"`
		WALPath           *string         `yaml:"wal_path"`
		BroadcastAddr     *string         `yaml:"broadcast_addr"`
		StartTime         *time.Time      `yaml:"start_time"`
		EndTime           *time.Time      `yaml:"end_time"`
	}

	var p plain
	if err := unmarshal(&p); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeConfigParseFailed, "config: decode failed", err)
	}

	c.InitialBalance = p.InitialBalance
	c.Currency = p.Currency
	c.Leverage = p.Leverage
	c.MarginMode = p.MarginMode
	c.StopOutPercent = p.StopOutPercent
	c.MarginCallPercent = p.MarginCallPercent
	c.RNGSeed = p.RNGSeed
	c.Symbols = p.Symbols
	c.Costs = p.Costs

	c.WALPath = optional.None[string]()
	if p.WALPath != nil {
		c.WALPath = optional.Some(*p.WALPath)
	}
	c.BroadcastAddr = optional.None[string]()
	if p.BroadcastAddr != nil {
		c.BroadcastAddr = optional.Some(*p.BroadcastAddr)
	}
	c.StartTime = optional.None[time.Time]()
	if p.StartTime != nil {
		c.StartTime = optional.Some(*p.StartTime)
	}
	c.EndTime = optional.None[time.Time]()
	if p.EndTime != nil {
		c.EndTime = optional.Some(*p.EndTime)
	}

	return nil
}

// GenerateSchema produces a JSON Schema describing Config, for the
// `schema` CLI subcommand.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.HasPrefix(t.String(), "optional.Option[time.Time]") {
				return &jsonschema.Schema{Type: "string", Format: "date-time"}
			}
			if strings.HasPrefix(t.String(), "optional.Option[string]") {
				return &jsonschema.Schema{Type: "string"}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtester-config"
	schema.Description = "Configuration schema for a backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON renders GenerateSchema's result as indented JSON.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("config: marshal schema: %w", err)
	}

	return string(data), nil
}

// EmptyConfig returns a Config with safe zero defaults: no balance, no
// symbols, every cost model at its zero variant.
func EmptyConfig() Config {
	return Config{
		Currency:       "USD",
		Leverage:       1,
		MarginMode:     "retail_netting",
		StopOutPercent: 50,
		WALPath:        optional.None[string](),
		BroadcastAddr:  optional.None[string](),
		StartTime:      optional.None[time.Time](),
		EndTime:        optional.None[time.Time](),
	}
}

// TestConfig returns a small but complete Config for a single EURUSD
// symbol, for use in package tests that need a real *costsengine.Engine.
func TestConfig(startTime, endTime time.Time) Config {
	return Config{
		InitialBalance:    10000,
		Currency:          "USD",
		Leverage:          100,
		MarginMode:        "retail_netting",
		StopOutPercent:    50,
		MarginCallPercent: 100,
		RNGSeed:           1,
		Symbols: []SymbolConfig{
			{
				Name: "EURUSD", Digits: 5, Point: 0.00001, ContractSize: 100000,
				VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
				BaseCurrency: "EUR", ProfitCurrency: "USD", MarginCurrency: "USD",
			},
		},
		Costs:         CostModelConfig{Spread: SpreadConfig{Kind: "fixed", Points: 2}},
		WALPath:       optional.None[string](),
		BroadcastAddr: optional.None[string](),
		StartTime:     optional.Some(startTime),
		EndTime:       optional.Some(endTime),
	}
}
