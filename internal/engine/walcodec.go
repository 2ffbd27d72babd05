package engine

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fxsim/backtester/internal/wal"
)

// appendWAL marshals payload as JSON and appends it under entryType. The
// WAL's own CRC32 already protects the record's integrity regardless of
// how the payload itself is encoded, so JSON costs nothing on the safety
// side and keeps every record human-readable during replay debugging.
// Failures here are non-critical I/O per the error-handling contract:
// logged, counted, and swallowed rather than propagated into the tick
// loop.
func (e *Engine) appendWAL(entryType wal.EntryType, payload any) {
	if e.wal == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.walErrors.Add(1)
		if e.logger != nil {
			e.logger.Warn("engine: wal payload marshal failed", zap.Error(err))
		}

		return
	}

	if err := e.wal.Append(entryType, data); err != nil {
		e.walErrors.Add(1)
		if e.logger != nil {
			e.logger.Warn("engine: wal append failed", zap.Error(err))
		}
	}
}

// logDeal appends the full Deal record for ticket under entryType. A deal
// is a complete, immutable description of the state change, so it doubles
// as the WAL payload for every position-lifecycle entry type.
func (e *Engine) logDeal(entryType wal.EntryType, ticket uint64) {
	if e.wal == nil {
		return
	}

	deal, ok := e.ledger.GetDeal(ticket)
	if !ok {
		return
	}

	e.appendWAL(entryType, deal)
}

// logOrder appends the active (or, failing that, historical) PendingOrder
// record for ticket under entryType.
func (e *Engine) logOrder(entryType wal.EntryType, ticket uint64) {
	if e.wal == nil {
		return
	}

	if order, ok := e.ledger.GetOrder(ticket); ok {
		e.appendWAL(entryType, order)
		return
	}

	for _, h := range e.ledger.HistoryOrders() {
		if h.Ticket == ticket {
			e.appendWAL(entryType, h)
			return
		}
	}
}
