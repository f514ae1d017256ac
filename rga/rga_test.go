package rga

import (
	"testing"

	"github.com/cshekharsharma/go-json-crdt/clock"
)

func str(s *Seq[rune]) string {
	return string(s.View())
}

func TestInsertSequential(t *testing.T) {
	s := New[rune]()
	idH := clock.Timestamp{SID: 1, Time: 1}
	s.Insert(clock.ORIGIN, idH, []rune("hi"))

	if str(s) != "hi" {
		t.Fatalf("expected \"hi\", got %q", str(s))
	}
}

func TestConcurrentInsertSameAnchorHigherSidWins(t *testing.T) {
	// Two replicas both insert a single rune after ORIGIN with the same
	// logical time but different sid: the higher-sid insert must end up
	// on the left in every replica.
	a := New[rune]()
	b := New[rune]()

	idX := clock.Timestamp{SID: 10, Time: 10} // "A" session
	idY := clock.Timestamp{SID: 20, Time: 10} // "B" session

	for _, s := range []*Seq[rune]{a, b} {
		s.Insert(clock.ORIGIN, idX, []rune("X"))
		s.Insert(clock.ORIGIN, idY, []rune("Y"))
	}

	if str(a) != "YX" || str(b) != "YX" {
		t.Fatalf("expected convergent \"YX\" on both replicas, got a=%q b=%q", str(a), str(b))
	}

	// Apply in the opposite order: the result must still converge, since
	// the tie-break is derived purely from the ids, not arrival order.
	c := New[rune]()
	c.Insert(clock.ORIGIN, idY, []rune("Y"))
	c.Insert(clock.ORIGIN, idX, []rune("X"))
	if str(c) != "YX" {
		t.Fatalf("expected order-independent convergence to \"YX\", got %q", str(c))
	}
}

func TestDeleteMiddleRange(t *testing.T) {
	// "hello world", delete "llo w" (offset 2, length 5) -> "heorld"
	s := New[rune]()
	id := clock.Timestamp{SID: 1, Time: 1}
	s.Insert(clock.ORIGIN, id, []rune("hello world"))

	spans := s.FindInterval(2, 5)
	s.Delete(spans)

	if got := str(s); got != "heorld" {
		t.Fatalf("expected \"heorld\", got %q", got)
	}
}

func TestFindAndFindInterval(t *testing.T) {
	s := New[rune]()
	id := clock.Timestamp{SID: 1, Time: 1}
	s.Insert(clock.ORIGIN, id, []rune("abcdef"))

	ts, ok := s.Find(2)
	if !ok || ts != (clock.Timestamp{SID: 1, Time: 3}) {
		t.Fatalf("expected Find(2) = (1,3), got %v ok=%v", ts, ok)
	}

	spans := s.FindInterval(1, 3)
	if len(spans) != 1 || spans[0] != (clock.Timespan{SID: 1, Time: 2, Span: 3}) {
		t.Fatalf("expected a single coalesced span (1,2,3), got %+v", spans)
	}
}

func TestInsertAfterSplitsChunk(t *testing.T) {
	s := New[rune]()
	id := clock.Timestamp{SID: 1, Time: 1}
	s.Insert(clock.ORIGIN, id, []rune("ac")) // chunk (1,1) span 2: 'a'=(1,1), 'c'=(1,2)

	// Insert 'b' after the 'a' (ts (1,1)), which is mid-chunk: must split
	// the "ac" chunk. Its new id, (1,3), is greater than 'c''s id (1,2),
	// so 'b' becomes the new leftmost child of 'a'.
	s.Insert(clock.Timestamp{SID: 1, Time: 1}, clock.Timestamp{SID: 1, Time: 3}, []rune("b"))

	if got := str(s); got != "abc" {
		t.Fatalf("expected \"abc\", got %q", got)
	}
}

func TestConcurrentForkAtSameParentOrdersByID(t *testing.T) {
	// "ac" is really a->c (c's cause is a). Inserting 'b' with cause=a
	// forks a's single child into two: 'c' (id (1,2)) and 'b' (id (2,1)).
	// Since id comparison is time-first, 'c' (time 2) outranks 'b' (time
	// 1) regardless of session, so 'c' stays closer to the anchor 'a'.
	s := New[rune]()
	s.Insert(clock.ORIGIN, clock.Timestamp{SID: 1, Time: 1}, []rune("ac"))
	s.Insert(clock.Timestamp{SID: 1, Time: 1}, clock.Timestamp{SID: 2, Time: 1}, []rune("b"))

	if got := str(s); got != "acb" {
		t.Fatalf("expected \"acb\" (fork ordered by id, time dominates session), got %q", got)
	}
}

func TestTombstonesRetainAddressability(t *testing.T) {
	s := New[rune]()
	id := clock.Timestamp{SID: 1, Time: 1}
	s.Insert(clock.ORIGIN, id, []rune("ab"))
	s.Delete([]clock.Timespan{{SID: 1, Time: 1, Span: 1}}) // delete 'a'

	if got := str(s); got != "b" {
		t.Fatalf("expected \"b\", got %q", got)
	}

	// The tombstoned position is still a valid insertion anchor. 'b' (the
	// original next char) and the new 'X' both claim 'a' as their cause,
	// forking it; 'b' has the higher id (time 2 vs 1) so it stays closer
	// to the anchor.
	ok := s.Insert(clock.Timestamp{SID: 1, Time: 1}, clock.Timestamp{SID: 3, Time: 1}, []rune("X"))
	if !ok {
		t.Fatalf("expected insertion after a tombstoned anchor to succeed")
	}
	if got := str(s); got != "bX" {
		t.Fatalf("expected \"bX\", got %q", got)
	}
}

func TestArrRGAOverTimestamps(t *testing.T) {
	s := New[clock.Timestamp]()
	child1 := clock.Timestamp{SID: 99, Time: 5}
	child2 := clock.Timestamp{SID: 99, Time: 6}
	id := clock.Timestamp{SID: 1, Time: 1}

	s.Insert(clock.ORIGIN, id, []clock.Timestamp{child1, child2})
	view := s.View()
	if len(view) != 2 || view[0] != child1 || view[1] != child2 {
		t.Fatalf("expected [child1 child2], got %v", view)
	}
}
