package clock

import "sort"

// GlobalClock tracks the latest observed timestamp per symbol id and caches
// the minimum across all mapped symbols as the "global time", enforcing
// multi-asset point-in-time ordering.
type GlobalClock struct {
	latest map[uint32]Timestamp
	global Timestamp
}

// NewGlobalClock returns an empty GlobalClock.
func NewGlobalClock() *GlobalClock {
	return &GlobalClock{latest: make(map[uint32]Timestamp)}
}

// UpdateSymbol installs or overwrites the latest timestamp for id and
// recomputes the global minimum.
func (c *GlobalClock) UpdateSymbol(id uint32, ts Timestamp) {
	c.latest[id] = ts
	c.recomputeGlobal()
}

func (c *GlobalClock) recomputeGlobal() {
	first := true
	var min Timestamp
	for _, ts := range c.latest {
		if first || ts < min {
			min = ts
			first = false
		}
	}

	if !first {
		c.global = min
	}
}

// GlobalTime returns the current minimum timestamp across all tracked
// symbols.
func (c *GlobalClock) GlobalTime() Timestamp {
	return c.global
}

// CanAdvance reports whether id may advance to target: true when target is
// less than or equal to the minimum timestamp among the *other* tracked
// symbols, so a single-symbol clock always admits any advance.
func (c *GlobalClock) CanAdvance(id uint32, target Timestamp) bool {
	first := true
	var min Timestamp
	for otherID, ts := range c.latest {
		if otherID == id {
			continue
		}
		if first || ts < min {
			min = ts
			first = false
		}
	}

	if first {
		return true
	}

	return target <= min
}

// GetSymbolLag returns ts[id] - global.
func (c *GlobalClock) GetSymbolLag(id uint32) Timestamp {
	return c.latest[id] - c.global
}

// GetSlowestSymbol returns the id holding back the global minimum, and
// false if no symbol is tracked.
func (c *GlobalClock) GetSlowestSymbol() (uint32, bool) {
	if len(c.latest) == 0 {
		return 0, false
	}

	ids := make([]uint32, 0, len(c.latest))
	for id := range c.latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	slowest := ids[0]
	min := c.latest[slowest]
	for _, id := range ids[1:] {
		if c.latest[id] < min {
			min = c.latest[id]
			slowest = id
		}
	}

	return slowest, true
}

// PITEnforcer borrows a GlobalClock and clamps query timestamps so a
// strategy can never see data past the global clock, even if it passes a
// future timestamp.
type PITEnforcer struct {
	clock *GlobalClock
}

// NewPITEnforcer wraps clock.
func NewPITEnforcer(clock *GlobalClock) *PITEnforcer {
	return &PITEnforcer{clock: clock}
}

// ClampQueryTime returns min(ts, global).
func (p *PITEnforcer) ClampQueryTime(ts Timestamp) Timestamp {
	if ts > p.clock.GlobalTime() {
		return p.clock.GlobalTime()
	}

	return ts
}
