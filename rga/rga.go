// Package rga implements the chunked causal-tree sequence engine shared
// by the Str, Bin, and Arr CRDT node kinds. It is generic over the
// element type so one engine backs UTF-8 text (rune), binary data (byte),
// and arrays of child-node references (clock.Timestamp).
package rga

import "github.com/cshekharsharma/go-json-crdt/clock"

// chunk is one contiguous run of elements created by a single operation.
// Its id is the timestamp of its first element; id.Tick(i) is the
// timestamp of element i within the chunk. origin is the timestamp this
// chunk's first element was inserted after (clock.ORIGIN for chunks at
// the start of the sequence). values is nil when the chunk is tombstoned;
// a live chunk always has len(values) == span.
type chunk[T any] struct {
	id     clock.Timestamp
	origin clock.Timestamp
	span   uint64
	values []T
	prev   *chunk[T]
	next   *chunk[T]
}

func (c *chunk[T]) tombstoned() bool { return c.values == nil }

// Seq is a replicated growable array over elements of type T.
type Seq[T any] struct {
	head *chunk[T] // sentinel; id == clock.ORIGIN, span 0, never tombstoned/live
}

// New creates an empty sequence.
func New[T any]() *Seq[T] {
	return &Seq[T]{head: &chunk[T]{id: clock.ORIGIN}}
}

// locate returns the chunk containing ts and ts's zero-based offset within
// it. ts == clock.ORIGIN matches the sentinel head at offset 0 (used as
// the anchor for "insert at the very beginning").
func (s *Seq[T]) locate(ts clock.Timestamp) (*chunk[T], int, bool) {
	if ts == clock.ORIGIN {
		return s.head, 0, true
	}
	for c := s.head.next; c != nil; c = c.next {
		if c.id.SID == ts.SID && ts.Time >= c.id.Time && ts.Time < c.id.Time+c.span {
			return c, int(ts.Time - c.id.Time), true
		}
	}
	return nil, 0, false
}

// splitAt splits c so that its last element becomes the one at offset,
// returning (left, right). If offset is already c's last element, no
// split happens and left==c, right==c.next (possibly nil).
func (s *Seq[T]) splitAt(c *chunk[T], offset int) (left, right *chunk[T]) {
	if offset == int(c.span)-1 {
		return c, c.next
	}
	leftSpan := uint64(offset + 1)
	rightSpan := c.span - leftSpan
	r := &chunk[T]{
		id:     c.id.Tick(leftSpan),
		origin: c.id.Tick(uint64(offset)),
		span:   rightSpan,
		prev:   c,
		next:   c.next,
	}
	if !c.tombstoned() {
		r.values = append([]T(nil), c.values[leftSpan:]...)
		c.values = c.values[:leftSpan]
	}
	c.span = leftSpan
	c.next = r
	if r.next != nil {
		r.next.prev = r
	}
	return c, r
}

// Insert integrates a new chunk of values whose cause is the element at
// after (clock.ORIGIN to insert at the sequence's start). newID is the
// timestamp of the chunk's first element; its span is len(values).
//
// Among chunks sharing the same anchor, the one with the greatest id
// sits closest to the anchor; concurrent insertions converge without
// further coordination.
func (s *Seq[T]) Insert(after, newID clock.Timestamp, values []T) bool {
	if len(values) == 0 {
		return false
	}
	anchorChunk, offset, ok := s.locate(after)
	if !ok {
		return false
	}

	var leftBoundary *chunk[T]
	var origin clock.Timestamp
	if anchorChunk == s.head {
		leftBoundary = s.head
		origin = clock.ORIGIN
	} else {
		left, _ := s.splitAt(anchorChunk, offset)
		leftBoundary = left
		origin = after
	}

	newChunk := &chunk[T]{
		id:     newID,
		origin: origin,
		span:   uint64(len(values)),
		values: append([]T(nil), values...),
	}

	prevNode := leftBoundary
	cur := leftBoundary.next
	// A sibling with a greater id is skipped together with every chunk
	// descending from it (its origin lies inside an already-skipped chunk).
	var skipped []*chunk[T]
	for cur != nil {
		if cur.origin == origin {
			if cur.id.Less(newID) {
				break
			}
		} else {
			descends := false
			for _, sk := range skipped {
				if sk.id.SID == cur.origin.SID && cur.origin.Time >= sk.id.Time && cur.origin.Time < sk.id.Time+sk.span {
					descends = true
					break
				}
			}
			if !descends {
				break
			}
		}
		skipped = append(skipped, cur)
		prevNode = cur
		cur = cur.next
	}
	newChunk.prev = prevNode
	newChunk.next = cur
	prevNode.next = newChunk
	if cur != nil {
		cur.prev = newChunk
	}
	return true
}

// Delete tombstones every live element covered by spans. Chunks are split
// at span boundaries as needed so that a chunk is always either entirely
// live or entirely tombstoned; ids and spans of tombstoned chunks are kept
// so later operations can still reference their positions.
func (s *Seq[T]) Delete(spans []clock.Timespan) {
	for _, span := range spans {
		s.deleteOne(span)
	}
}

func (s *Seq[T]) deleteOne(span clock.Timespan) {
	remaining := span
	for remaining.Span > 0 {
		c, offset, ok := s.locate(clock.Timestamp{SID: remaining.SID, Time: remaining.Time})
		if !ok || c == s.head {
			return
		}
		available := int(c.span) - offset
		n := int(remaining.Span)
		if n > available {
			n = available
		}
		// Split off anything before offset, then anything after offset+n,
		// leaving exactly the covered run isolated in its own chunk.
		if offset > 0 {
			_, right := s.splitAt(c, offset-1)
			c = right
		}
		if n < int(c.span) {
			left, _ := s.splitAt(c, n-1)
			c = left
		}
		c.values = nil
		remaining.Time += uint64(n)
		remaining.Span -= uint64(n)
	}
}

// ValueAt returns the current value of the live element at ts, without
// regard to its position in the sequence.
func (s *Seq[T]) ValueAt(ts clock.Timestamp) (T, bool) {
	c, offset, ok := s.locate(ts)
	if !ok || c.tombstoned() {
		var zero T
		return zero, false
	}
	return c.values[offset], true
}

// SetValue replaces the value of the single live element at ts in place,
// without moving its position in the sequence. It reports whether ts was
// found live. Used by Arr.Upd to swap which node a slot points at.
func (s *Seq[T]) SetValue(ts clock.Timestamp, val T) bool {
	c, offset, ok := s.locate(ts)
	if !ok || c.tombstoned() {
		return false
	}
	c.values[offset] = val
	return true
}

// View concatenates every live chunk's payload in sequence order.
func (s *Seq[T]) View() []T {
	var out []T
	for c := s.head.next; c != nil; c = c.next {
		if !c.tombstoned() {
			out = append(out, c.values...)
		}
	}
	return out
}

// Len returns the number of live elements.
func (s *Seq[T]) Len() int {
	n := 0
	for c := s.head.next; c != nil; c = c.next {
		if !c.tombstoned() {
			n += int(c.span)
		}
	}
	return n
}

// Find returns the timestamp of the live element at position pos (0-based)
// and whether pos was in range.
func (s *Seq[T]) Find(pos int) (clock.Timestamp, bool) {
	seen := 0
	for c := s.head.next; c != nil; c = c.next {
		if c.tombstoned() {
			continue
		}
		if pos < seen+int(c.span) {
			return c.id.Tick(uint64(pos - seen)), true
		}
		seen += int(c.span)
	}
	return clock.Timestamp{}, false
}

// FindInterval returns the minimal, coalesced set of timespans covering
// the live range [pos, pos+n).
func (s *Seq[T]) FindInterval(pos, n int) []clock.Timespan {
	if n <= 0 {
		return nil
	}
	var out []clock.Timespan
	seen := 0
	remaining := n
	for c := s.head.next; c != nil && remaining > 0; c = c.next {
		if c.tombstoned() {
			continue
		}
		chunkLen := int(c.span)
		if pos >= seen+chunkLen {
			seen += chunkLen
			continue
		}
		start := 0
		if pos > seen {
			start = pos - seen
		}
		end := chunkLen
		if remaining < chunkLen-start {
			end = start + remaining
		}
		out = append(out, clock.Timespan{
			SID:  c.id.SID,
			Time: c.id.Time + uint64(start),
			Span: uint64(end - start),
		})
		remaining -= end - start
		seen += chunkLen
	}
	return clock.CoalesceAdjacent(out)
}

// ChunkView is a read-only snapshot of one chunk, exposed so callers
// outside this package (the binary codecs, which must serialize a
// sequence including its tombstones to round-trip correctly) can walk
// the full causal-tree structure without this package exposing mutable
// pointers into it.
type ChunkView[T any] struct {
	ID         clock.Timestamp
	Origin     clock.Timestamp
	Span       uint64
	Values     []T // nil if tombstoned
	Tombstoned bool
}

// Chunks returns every chunk in sequence order, live and tombstoned
// alike.
func (s *Seq[T]) Chunks() []ChunkView[T] {
	var out []ChunkView[T]
	for c := s.head.next; c != nil; c = c.next {
		var values []T
		if !c.tombstoned() {
			values = append([]T(nil), c.values...)
		}
		out = append(out, ChunkView[T]{ID: c.id, Origin: c.origin, Span: c.span, Values: values, Tombstoned: c.tombstoned()})
	}
	return out
}

// RestoreChunks rebuilds a sequence from an ordered list of chunk views,
// typically produced by Chunks on another replica or recovered from
// storage. Chunks must already be in causal/sequence order; this does
// not re-derive RGA ordering, it trusts the snapshot.
func RestoreChunks[T any](views []ChunkView[T]) *Seq[T] {
	s := New[T]()
	prev := s.head
	for _, v := range views {
		c := &chunk[T]{id: v.ID, origin: v.Origin, span: v.Span, prev: prev}
		if !v.Tombstoned {
			c.values = append([]T(nil), v.Values...)
		}
		prev.next = c
		prev = c
	}
	return s
}
