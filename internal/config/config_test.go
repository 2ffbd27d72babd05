package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/fxsim/backtester/internal/costs"
	"github.com/fxsim/backtester/internal/types"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestEmptyConfig() {
	c := EmptyConfig()

	s.Equal(0.0, c.InitialBalance)
	s.Equal("USD", c.Currency)
	s.Equal("retail_netting", c.MarginMode)
	s.True(c.StartTime.IsNone())
	s.True(c.EndTime.IsNone())
	s.True(c.WALPath.IsNone())
}

func (s *ConfigTestSuite) TestTestConfig() {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	c := TestConfig(start, end)

	s.Equal(10000.0, c.InitialBalance)
	s.Len(c.Symbols, 1)
	s.Equal("EURUSD", c.Symbols[0].Name)
	s.True(c.StartTime.IsSome())
	s.Equal(start, c.StartTime.Unwrap())
	s.Equal(end, c.EndTime.Unwrap())
}

func (s *ConfigTestSuite) TestMarginModeValue() {
	c := EmptyConfig()
	s.Equal(types.MarginModeRetailNetting, c.MarginModeValue())

	c.MarginMode = "exchange"
	s.Equal(types.MarginModeExchange, c.MarginModeValue())

	c.MarginMode = "retail_hedging"
	s.Equal(types.MarginModeRetailHedging, c.MarginModeValue())
}

func (s *ConfigTestSuite) TestAccountReflectsConfig() {
	c := TestConfig(time.Now(), time.Now())
	account := c.Account()

	s.Equal(c.Currency, account.Currency)
	s.Equal(c.Leverage, account.Leverage)
	s.Equal(10000.0, account.Balance.ToFloat())
}

func (s *ConfigTestSuite) TestBuildDefaultsToZeroCostModels() {
	c := TestConfig(time.Now(), time.Now())
	c.Costs = CostModelConfig{}

	engine, err := c.Build()
	s.NoError(err)
	s.NotNil(engine)
}

func (s *ConfigTestSuite) TestBuildUnknownSlippageKindErrors() {
	c := TestConfig(time.Now(), time.Now())
	c.Costs.Slippage.Kind = "not_a_real_kind"

	_, err := c.Build()
	s.Error(err)
}

func (s *ConfigTestSuite) TestSlippageConfigBuildsEachKind() {
	kinds := []string{"zero", "fixed", "random", "volume", "latency_profile"}
	for _, kind := range kinds {
		built, err := SlippageConfig{Kind: kind}.Build()
		s.NoError(err, kind)
		s.NotNil(built, kind)
	}
}

func (s *ConfigTestSuite) TestSwapConfigStandardUsesPercentageMode() {
	built, err := SwapConfig{Kind: "standard", Mode: "PERCENTAGE", Long: 1.5}.Build()
	s.NoError(err)
	s.Equal(costs.StandardSwap{Long: 1.5, Mode: costs.SwapModePercentage}, built)
}

func (s *ConfigTestSuite) TestGenerateSchema() {
	c := &Config{}
	schema, err := c.GenerateSchema()

	s.NoError(err)
	s.NotNil(schema)
	s.Equal("backtester-config", schema.Title)
	s.Equal("http://json-schema.org/draft-07/schema#", schema.Version)
}

func (s *ConfigTestSuite) TestGenerateSchemaJSON() {
	c := &Config{}
	raw, err := c.GenerateSchemaJSON()

	s.NoError(err)
	s.NotEmpty(raw)

	var decoded map[string]interface{}
	s.NoError(json.Unmarshal([]byte(raw), &decoded))
	s.Equal("backtester-config", decoded["title"])
}

func (s *ConfigTestSuite) TestUnmarshalYAMLComplete() {
	raw := `
initial_balance: 50000
currency: USD
leverage: 50
margin_mode: exchange
stop_out_percent: 30
symbols:
  - name: EURUSD
    digits: 5
start_time: 2023-01-01T00:00:00Z
end_time: 2023-12-31T00:00:00Z
wal_path: /tmp/run.wal
`

	var c Config
	s.NoError(yaml.Unmarshal([]byte(raw), &c))

	s.Equal(50000.0, c.InitialBalance)
	s.Equal("exchange", c.MarginMode)
	s.True(c.StartTime.IsSome())
	s.True(c.EndTime.IsSome())
	s.True(c.WALPath.IsSome())
	s.Equal("/tmp/run.wal", c.WALPath.Unwrap())
	s.Len(c.Symbols, 1)
}

func (s *ConfigTestSuite) TestUnmarshalYAMLWithoutOptionalFields() {
	raw := `
initial_balance: 1000
currency: USD
leverage: 10
`

	var c Config
	s.NoError(yaml.Unmarshal([]byte(raw), &c))

	s.True(c.StartTime.IsNone())
	s.True(c.EndTime.IsNone())
	s.True(c.WALPath.IsNone())
	s.True(c.BroadcastAddr.IsNone())
}

func (s *ConfigTestSuite) TestUnmarshalYAMLInvalid() {
	raw := `initial_balance: not_a_number`

	var c Config
	err := yaml.Unmarshal([]byte(raw), &c)
	s.Error(err)
}

func (s *ConfigTestSuite) TestSymbolConfigToSpec() {
	sc := SymbolConfig{Name: "EURUSD", Digits: 5, Point: 0.00001, ContractSize: 100000}
	spec := sc.ToSpec(7)

	s.Equal("EURUSD", spec.Name)
	s.Equal(uint32(7), spec.ID)
	s.Equal(5, spec.Digits)
	s.Equal(types.TradeModeFull, spec.TradeMode)
}
