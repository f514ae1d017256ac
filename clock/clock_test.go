package clock

import "testing"

func TestTimestampOrdering(t *testing.T) {
	a := Timestamp{SID: 5, Time: 10}
	b := Timestamp{SID: 1, Time: 10}
	c := Timestamp{SID: 5, Time: 11}

	if !b.Less(a) {
		t.Errorf("expected %v < %v (same time, lower sid wins tie-break)", b, a)
	}
	if !a.Less(c) {
		t.Errorf("expected %v < %v (time dominates sid)", a, c)
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected a.Compare(a) == 0")
	}
}

func TestVectorClockTickObserve(t *testing.T) {
	vc := NewVectorClock(42)

	first := vc.Tick(3)
	if first != (Timestamp{SID: 42, Time: 1}) {
		t.Fatalf("expected first tick at time 1, got %v", first)
	}
	if vc.Max(42) != 3 {
		t.Errorf("expected local high-water 3, got %d", vc.Max(42))
	}

	second := vc.Tick(1)
	if second != (Timestamp{SID: 42, Time: 4}) {
		t.Fatalf("expected second tick at time 4, got %v", second)
	}

	vc.Observe(Timestamp{SID: 7, Time: 100}, 5)
	if vc.Max(7) != 104 {
		t.Errorf("expected remote high-water 104, got %d", vc.Max(7))
	}
	vc.Observe(Timestamp{SID: 7, Time: 50}, 2)
	if vc.Max(7) != 104 {
		t.Errorf("observing a lower range must not regress the high-water mark, got %d", vc.Max(7))
	}
}

func TestTimespanCoalesceAdjacent(t *testing.T) {
	spans := []Timespan{
		{SID: 1, Time: 0, Span: 3},
		{SID: 1, Time: 3, Span: 2},
		{SID: 1, Time: 10, Span: 1},
		{SID: 2, Time: 0, Span: 4},
	}
	got := CoalesceAdjacent(spans)
	want := []Timespan{
		{SID: 1, Time: 0, Span: 5},
		{SID: 1, Time: 10, Span: 1},
		{SID: 2, Time: 0, Span: 4},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d spans, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTableEncodeDecodeRoundTrip(t *testing.T) {
	tbl := NewTable()
	ts := Timestamp{SID: 65536, Time: 7}
	idx, delta := tbl.Encode(ts)

	back, err := tbl.Decode(idx, delta)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back != ts {
		t.Errorf("round trip mismatch: got %v, want %v", back, ts)
	}

	// A later, higher timestamp from the same session updates the
	// high-water mark, so earlier timestamps now have a larger delta.
	ts2 := Timestamp{SID: 65536, Time: 12}
	idx2, delta2 := tbl.Encode(ts2)
	if idx2 != idx {
		t.Fatalf("expected same row index for same session, got %d vs %d", idx2, idx)
	}
	if delta2 != 0 {
		t.Errorf("high-water timestamp should encode with delta 0, got %d", delta2)
	}

	backEarlier, err := tbl.Decode(idx, ts2.Time-ts.Time)
	if err != nil {
		t.Fatalf("decode of earlier timestamp failed: %v", err)
	}
	if backEarlier != ts {
		t.Errorf("round trip of earlier timestamp mismatch: got %v, want %v", backEarlier, ts)
	}
}

func TestTableDecodeErrors(t *testing.T) {
	tbl := NewTable()
	tbl.Put(65536, 5)

	if _, err := tbl.Decode(9, 0); err == nil {
		t.Errorf("expected error for out-of-range index")
	}
	if _, err := tbl.Decode(0, 6); err == nil {
		t.Errorf("expected underflow error for delta exceeding high-water mark")
	}
}
