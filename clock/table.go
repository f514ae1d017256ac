package clock

import "github.com/pkg/errors"

// ErrUnknownSession is returned by Table.Decode when asked to resolve a
// table index that has no corresponding row.
var ErrUnknownSession = errors.New("clock: unknown session index")

// ErrTimeUnderflow is returned by Table.Decode when a relative time delta
// would put the reconstructed absolute time below zero, which can only
// happen on malformed wire bytes.
var ErrTimeUnderflow = errors.New("clock: relative time delta underflows session high-water mark")

// TableEntry is one row of a clock table: a session id and the highest
// logical time observed for it.
type TableEntry struct {
	SID  uint64
	Time uint64
}

// Table is the dense, ordered clock table the binary codecs use to encode
// timestamps relative to each session's high-water time instead of as
// absolute (sid, time) pairs. Encoding ts=(sid,t) looks up
// the session's row (index i, high-water T) and emits (i, T-t); decoding
// reverses the arithmetic.
type Table struct {
	rows    []TableEntry
	indexOf map[uint64]int
}

// NewTable builds an empty clock table.
func NewTable() *Table {
	return &Table{indexOf: make(map[uint64]int)}
}

// NewTableFromClock builds a clock table snapshot from a vector clock,
// rows ordered by ascending session id for determinism.
func NewTableFromClock(c *VectorClock) *Table {
	t := NewTable()
	sids := c.Sessions()
	// a simple quadratic sort is fine: session counts are small in practice, and
	// determinism (not speed) is what callers rely on here.
	for i := 0; i < len(sids); i++ {
		for j := i + 1; j < len(sids); j++ {
			if sids[j] < sids[i] {
				sids[i], sids[j] = sids[j], sids[i]
			}
		}
	}
	for _, sid := range sids {
		t.Put(sid, c.Max(sid))
	}
	return t
}

// Put inserts or updates the row for sid, raising its high-water time if
// necessary. It returns the row's index.
func (t *Table) Put(sid, time uint64) int {
	if i, ok := t.indexOf[sid]; ok {
		if time > t.rows[i].Time {
			t.rows[i].Time = time
		}
		return i
	}
	i := len(t.rows)
	t.rows = append(t.rows, TableEntry{SID: sid, Time: time})
	t.indexOf[sid] = i
	return i
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the table's rows in index order. The returned slice must not
// be mutated by the caller.
func (t *Table) Rows() []TableEntry { return t.rows }

// IndexOf returns the row index for sid and whether it exists.
func (t *Table) IndexOf(sid uint64) (int, bool) {
	i, ok := t.indexOf[sid]
	return i, ok
}

// Encode converts ts into a (table index, time delta) pair relative to the
// session's high-water mark, growing the table with a new row if the
// session or a higher time hasn't been observed yet.
func (t *Table) Encode(ts Timestamp) (index int, delta uint64) {
	i, ok := t.indexOf[ts.SID]
	if !ok || ts.Time > t.rows[i].Time {
		i = t.Put(ts.SID, ts.Time)
	}
	return i, t.rows[i].Time - ts.Time
}

// Decode reverses Encode: given a table index and a time delta, reconstruct
// the absolute timestamp.
func (t *Table) Decode(index int, delta uint64) (Timestamp, error) {
	if index < 0 || index >= len(t.rows) {
		return Timestamp{}, errors.Wrapf(ErrUnknownSession, "index %d", index)
	}
	row := t.rows[index]
	if delta > row.Time {
		return Timestamp{}, errors.Wrapf(ErrTimeUnderflow, "session %d: high-water %d, delta %d", row.SID, row.Time, delta)
	}
	return Timestamp{SID: row.SID, Time: row.Time - delta}, nil
}
