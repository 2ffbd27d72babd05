// Package clock provides microsecond-resolution UTC timestamp utilities and
// the engine's global clock / point-in-time enforcer.
package clock

import (
	"fmt"
	"time"
)

// Timestamp is microseconds since the Unix epoch, UTC.
type Timestamp int64

const isoLayout = "2006-01-02T15:04:05.000000Z"

// Now returns the current wall-clock time as a Timestamp. Not used inside
// the deterministic simulation path; available for host-side bookkeeping
// (e.g. WAL record wall-clock annotations).
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Time converts a Timestamp back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}

// String renders the timestamp as ISO-8601 with microsecond precision.
func (ts Timestamp) String() string {
	return ts.Time().Format(isoLayout)
}

// ParseTimestamp parses an ISO-8601 string of the form
// YYYY-MM-DDTHH:MM:SS.ffffffZ.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return 0, fmt.Errorf("clock: parse timestamp %q: %w", s, err)
	}

	return FromTime(t), nil
}

// DayOfWeek returns 0=Sunday ... 6=Saturday.
func (ts Timestamp) DayOfWeek() int {
	return int(ts.Time().Weekday())
}

// HourOfDay returns the UTC hour, 0-23.
func (ts Timestamp) HourOfDay() int {
	return ts.Time().Hour()
}

const (
	microsPerSecond = int64(1_000_000)
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
	microsPerDay    = 24 * microsPerHour
)

// FloorToMinute floors the timestamp to the start of its minute using exact
// integer arithmetic against the epoch: floor = (ts / span) * span. Never
// calendar-aware.
func (ts Timestamp) FloorToMinute() Timestamp {
	return floorToSpan(ts, microsPerMinute)
}

// FloorToHour floors the timestamp to the start of its hour.
func (ts Timestamp) FloorToHour() Timestamp {
	return floorToSpan(ts, microsPerHour)
}

// FloorToDay floors the timestamp to the start of its UTC day.
func (ts Timestamp) FloorToDay() Timestamp {
	return floorToSpan(ts, microsPerDay)
}

func floorToSpan(ts Timestamp, spanMicros int64) Timestamp {
	v := int64(ts)
	// Integer division truncates toward zero; for negative v that rounds up,
	// not down, so correct by stepping back one span when there's a
	// remainder on the negative side.
	q := v / spanMicros
	if v%spanMicros != 0 && v < 0 {
		q--
	}

	return Timestamp(q * spanMicros)
}
