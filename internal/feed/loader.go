package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	yamlv2 "gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
	"github.com/fxsim/backtester/pkg/ferrors"
)

// ManifestEntry describes one CSV bar file to ingest into a Feed.
type ManifestEntry struct {
	Symbol    string           `yaml:"symbol"`
	Timeframe types.Timeframe  `yaml:"timeframe"`
	Path      string           `yaml:"path"`
}

// Manifest lists the bar files a `run` invocation should load. Two
// generations of the same manifest format exist in the wild: the legacy
// one is tagged for yaml.v2, the current one for yaml.v3. LoadManifest
// tries v3 first (the superset parser) and falls back to v2 so that
// either generation of descriptor loads without a format flag.
type Manifest struct {
	Entries []ManifestEntry `yaml:"entries"`
}

// LoadManifest parses a YAML manifest file, preferring the yaml.v3 decoder
// and falling back to yaml.v2 for legacy manifests that predate it.
func LoadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: read manifest %s", path)
	}

	var m Manifest
	if err := yamlv3.Unmarshal(raw, &m); err == nil && len(m.Entries) > 0 {
		return m, nil
	}

	if err := yamlv2.Unmarshal(raw, &m); err != nil {
		return Manifest{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: parse manifest %s", path)
	}

	return m, nil
}

// LoadManifestInto loads every manifest entry's CSV file into f.
func LoadManifestInto(f *Feed, m Manifest) error {
	for _, entry := range m.Entries {
		bars, err := loadCSVBars(entry.Path, entry.Symbol)
		if err != nil {
			return err
		}

		if err := f.Load(entry.Symbol, entry.Timeframe, bars); err != nil {
			return err
		}
	}

	return nil
}

// loadCSVBars parses a CSV of
// timestamp_us,open,high,low,close,tick_volume,real_volume into Bars whose
// prices are the file's integers taken as-is (the caller's symbol registry supplies the symbol's
// true digit count at ledger-registration time; the feed itself is digit-
// agnostic and stores whatever scale the source file already encodes).
func loadCSVBars(path, symbolName string) ([]types.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: open %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var bars []types.Bar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: parse %s", path)
		}
		if len(record) < 5 {
			continue
		}

		bar, err := parseCSVBar(record, symbolName)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func parseCSVBar(record []string, symbolName string) (types.Bar, error) {
	tsMicros, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return types.Bar{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: bad timestamp %q", record[0])
	}

	open, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return types.Bar{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: bad open %q", record[1])
	}

	high, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return types.Bar{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: bad high %q", record[2])
	}

	low, err := strconv.ParseInt(record[3], 10, 64)
	if err != nil {
		return types.Bar{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: bad low %q", record[3])
	}

	closePrice, err := strconv.ParseInt(record[4], 10, 64)
	if err != nil {
		return types.Bar{}, ferrors.Wrapf(ferrors.ErrCodeConfigParseFailed, err, "feed: bad close %q", record[4])
	}

	bar := types.Bar{
		Timestamp: clock.Timestamp(tsMicros),
		Open:      fromScaledInt(open),
		High:      fromScaledInt(high),
		Low:       fromScaledInt(low),
		Close:     fromScaledInt(closePrice),
	}

	if len(record) > 5 {
		if v, err := strconv.ParseInt(record[5], 10, 64); err == nil {
			bar.TickVolume = v
		}
	}
	if len(record) > 6 {
		if v, err := strconv.ParseInt(record[6], 10, 64); err == nil {
			bar.RealVolume = v
		}
	}

	if err := bar.Validate(); err != nil {
		return types.Bar{}, ferrors.Wrapf(ferrors.ErrCodeInvalidPrice, err, "feed: invalid bar for %s", symbolName)
	}

	return bar, nil
}

func fromScaledInt(v int64) fixedpoint.Price {
	return fixedpoint.Price(v)
}
