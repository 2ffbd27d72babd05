// Package eventloop implements the timestamp-ordered priority queue that
// drives the simulation, with run/step/pause/resume/stop controls.
package eventloop

import "github.com/fxsim/backtester/internal/clock"

// EventType tags the kind of payload an Event carries.
type EventType uint8

const (
	EventTick        EventType = iota
	EventBarClose
	EventOrderTrigger
	EventTimer
	EventCustom
)

// Event is a single timestamp-ordered unit of work. Only the fields
// relevant to its Type are meaningful.
type Event struct {
	Timestamp   clock.Timestamp
	Type        EventType
	SymbolID    uint32
	Timeframe   string
	OrderTicket uint64
	TimerID     uint64
	Custom      uint64
	// seq breaks ties between events pushed at the same timestamp in
	// insertion order, giving a stable, documented tie-break (the spec
	// leaves the tie-break order to the implementer but requires it be
	// stable across runs).
	seq uint64
}
