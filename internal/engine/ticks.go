package engine

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// TickManifestEntry describes one CSV tick file to ingest into an Engine.
// Ticks are not in the feed package's domain (Feed is bar-only), so the
// engine owns its own manifest format mirroring the feed's bar manifest.
type TickManifestEntry struct {
	Symbol string `yaml:"symbol"`
	Path   string `yaml:"path"`
}

// TickManifest lists the tick files a `run` invocation should load.
type TickManifest struct {
	Entries []TickManifestEntry `yaml:"entries"`
}

// LoadTickManifest parses a YAML tick manifest file.
func LoadTickManifest(path string) (TickManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TickManifest{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: read tick manifest %s", path)
	}

	var m TickManifest
	if err := yamlv3.Unmarshal(raw, &m); err != nil {
		return TickManifest{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: parse tick manifest %s", path)
	}

	return m, nil
}

// LoadTickManifestInto loads every manifest entry's CSV file through
// e.LoadTicks, which validates and registers each tick against the
// already-registered symbol.
func (e *Engine) LoadTickManifestInto(m TickManifest) error {
	for _, entry := range m.Entries {
		ticks, err := loadCSVTicks(entry.Path)
		if err != nil {
			return err
		}

		if err := e.LoadTicks(entry.Symbol, ticks); err != nil {
			return err
		}
	}

	return nil
}

// loadCSVTicks parses a CSV of
// timestamp_us,bid,ask,bid_volume,ask_volume,spread_points into Ticks, the
// two prices already scaled to the source file's digit count (mirroring
// the feed package's bar loader, which makes the same assumption).
func loadCSVTicks(path string) ([]types.Tick, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: open %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var ticks []types.Tick
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: parse %s", path)
		}
		if len(record) < 3 {
			continue
		}

		tick, err := parseCSVTick(record)
		if err != nil {
			return nil, err
		}

		ticks = append(ticks, tick)
	}

	return ticks, nil
}

func parseCSVTick(record []string) (types.Tick, error) {
	tsMicros, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return types.Tick{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: bad timestamp %q", record[0])
	}

	bid, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return types.Tick{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: bad bid %q", record[1])
	}

	ask, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return types.Tick{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "engine: bad ask %q", record[2])
	}

	tick := types.Tick{
		Timestamp: clock.Timestamp(tsMicros),
		Bid:       fixedpoint.Price(bid),
		Ask:       fixedpoint.Price(ask),
	}

	if len(record) > 3 {
		if v, err := strconv.ParseFloat(record[3], 64); err == nil {
			tick.BidVolume = v
		}
	}
	if len(record) > 4 {
		if v, err := strconv.ParseFloat(record[4], 64); err == nil {
			tick.AskVolume = v
		}
	}
	if len(record) > 5 {
		if v, err := strconv.ParseInt(record[5], 10, 64); err == nil {
			tick.SpreadPoints = v
		}
	}

	if err := tick.Validate(); err != nil {
		return types.Tick{}, err
	}

	return tick, nil
}
