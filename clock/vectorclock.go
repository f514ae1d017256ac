package clock

// VectorClock tracks, for every session this replica has observed, the
// highest logical time seen from that session. One session is distinguished
// as "local", the one this replica ticks forward when it originates new
// operations.
//
// VectorClock carries no mutex: a Model (and the clock it owns) is mutated
// by exactly one caller at a time, and callers serialize access externally.
type VectorClock struct {
	local uint64
	times map[uint64]uint64
}

// NewVectorClock creates a vector clock whose local session is local. The
// local entry starts at time 0, meaning the next Tick allocates time 1.
func NewVectorClock(local uint64) *VectorClock {
	return &VectorClock{
		local: local,
		times: make(map[uint64]uint64),
	}
}

// Local returns the local session id.
func (c *VectorClock) Local() uint64 {
	return c.local
}

// Max returns the highest observed time for sid, or 0 if never observed.
func (c *VectorClock) Max(sid uint64) uint64 {
	return c.times[sid]
}

// Sessions returns every session id this clock has observed, including the
// local one if it has ticked at least once.
func (c *VectorClock) Sessions() []uint64 {
	out := make([]uint64, 0, len(c.times))
	for sid := range c.times {
		out = append(out, sid)
	}
	return out
}

// Tick atomically advances the local session's entry by n and returns the
// first newly allocated timestamp, i.e. the timestamp the caller should
// stamp on an operation consuming the next n logical-time slots.
func (c *VectorClock) Tick(n uint64) Timestamp {
	start := c.times[c.local] + 1
	c.times[c.local] = start + n - 1
	return Timestamp{SID: c.local, Time: start}
}

// Observe merges the range [ts.Time, ts.Time+span) into the entry for
// ts.SID. Replaying the same or an overlapping range more than once is a
// no-op beyond raising the high-water mark, which is what makes replay
// idempotent at the clock layer.
func (c *VectorClock) Observe(ts Timestamp, span uint64) {
	if span == 0 {
		span = 1
	}
	high := ts.Time + span - 1
	if high > c.times[ts.SID] {
		c.times[ts.SID] = high
	}
}
