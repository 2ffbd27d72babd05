// Package ferrors provides structured error handling with typed error codes
// for the backtesting engine.
//
// Error codes are organized into bands by category:
//   - General errors (1-99)
//   - Configuration errors (100-199): bad YAML, schema validation, CLI flags
//   - Validation errors (200-299): malformed orders, requests, symbol specs
//   - Solvency errors (300-399): margin calls, stop-outs, insufficient funds
//   - Data errors (400-499): feed gaps, missing bars, out-of-range queries
//   - Integrity errors (500-599): WAL corruption, checksum mismatches, replay drift
//   - Concurrency errors (600-699): event loop already running, double-close
//
// Usage:
//
//	err := ferrors.New(ferrors.ErrCodeInsufficientMargin, "cannot open position")
//	err := ferrors.Newf(ferrors.ErrCodeDataGap, "no bar for %s at %d", symbol, ts)
//	err := ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "bad checksum", cause)
//	if ferrors.HasCode(err, ferrors.ErrCodeDataGap) { ... }
package ferrors

// ErrorCode identifies a category and specific cause of failure.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeConfigSchemaFailed   ErrorCode = 101
	ErrCodeConfigMissingField   ErrorCode = 102
	ErrCodeConfigParseFailed    ErrorCode = 103

	// Validation errors (200-299)
	ErrCodeInvalidOrder       ErrorCode = 200
	ErrCodeInvalidSymbolSpec  ErrorCode = 201
	ErrCodeInvalidQuantity    ErrorCode = 202
	ErrCodeInvalidPrice       ErrorCode = 203
	ErrCodeInvalidTakeProfit  ErrorCode = 204
	ErrCodeInvalidStopLoss    ErrorCode = 205
	ErrCodeInvalidTimeframe   ErrorCode = 206
	ErrCodeInvalidRequest     ErrorCode = 207

	// Solvency errors (300-399)
	ErrCodeInsufficientMargin ErrorCode = 300
	ErrCodeStopOutTriggered   ErrorCode = 301
	ErrCodeMarginCallLevel    ErrorCode = 302
	ErrCodeNoMoney            ErrorCode = 303

	// Data errors (400-499)
	ErrCodeDataGap          ErrorCode = 400
	ErrCodeSymbolNotLoaded  ErrorCode = 401
	ErrCodeNoPriceYet       ErrorCode = 402
	ErrCodeOutOfRange       ErrorCode = 403
	ErrCodeNoConversionPath ErrorCode = 404

	// Integrity errors (500-599)
	ErrCodeWALCorrupt       ErrorCode = 500
	ErrCodeWALChecksum      ErrorCode = 501
	ErrCodeWALShortRead     ErrorCode = 502
	ErrCodeReplayDivergence ErrorCode = 503
	ErrCodeSnapshotInvalid  ErrorCode = 504

	// Concurrency errors (600-699)
	ErrCodeAlreadyRunning ErrorCode = 600
	ErrCodeAlreadyClosed  ErrorCode = 601
	ErrCodeNotRunning     ErrorCode = 602
)
