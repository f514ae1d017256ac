package sortedmap

import (
	"math/rand"
	"sort"
	"testing"
)

func intCompare(a, b int) int { return a - b }

func TestInsertGetAscendingOrder(t *testing.T) {
	m := New[int, string](intCompare)
	values := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	for _, v := range values {
		m.Insert(v, "")
	}
	if m.Len() != len(values) {
		t.Fatalf("expected len %d, got %d", len(values), m.Len())
	}

	var got []int
	for it := m.Begin(); it.Valid(); it = it.Next() {
		got = append(got, it.Key())
	}
	sort.Ints(values)
	for i, v := range values {
		if got[i] != v {
			t.Fatalf("out-of-order iteration: got %v, want %v", got, values)
		}
	}
}

func TestInsertOverwritesExistingKey(t *testing.T) {
	m := New[int, string](intCompare)
	m.Insert(1, "a")
	m.Insert(1, "b")
	if m.Len() != 1 {
		t.Fatalf("expected len 1, got %d", m.Len())
	}
	v, ok := m.Get(1)
	if !ok || v != "b" {
		t.Fatalf("expected (b, true), got (%v, %v)", v, ok)
	}
}

func TestFrontBack(t *testing.T) {
	m := New[int, string](intCompare)
	for _, v := range []int{4, 1, 7, 2} {
		m.Insert(v, "")
	}
	k, _, ok := m.Front()
	if !ok || k != 1 {
		t.Fatalf("expected front 1, got %v (%v)", k, ok)
	}
	k, _, ok = m.Back()
	if !ok || k != 7 {
		t.Fatalf("expected back 7, got %v (%v)", k, ok)
	}
}

func TestEraseByKeyRandomOrder(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	values := r.Perm(200)
	m := New[int, int](intCompare)
	for _, v := range values {
		m.Insert(v, v*2)
	}

	toRemove := r.Perm(200)[:80]
	removed := map[int]bool{}
	for _, v := range toRemove {
		if !m.EraseByKey(v) {
			t.Fatalf("EraseByKey(%d): expected true", v)
		}
		removed[v] = true
	}
	if m.Len() != 200-80 {
		t.Fatalf("expected len %d, got %d", 200-80, m.Len())
	}
	for v := 0; v < 200; v++ {
		_, ok := m.Get(v)
		if removed[v] && ok {
			t.Errorf("expected %d to be gone", v)
		}
		if !removed[v] && !ok {
			t.Errorf("expected %d to still be present", v)
		}
	}

	var prev int
	first := true
	for it := m.Begin(); it.Valid(); it = it.Next() {
		if !first && it.Key() <= prev {
			t.Fatalf("iteration order broken at key %d after prev %d", it.Key(), prev)
		}
		prev, first = it.Key(), false
	}
}

func TestEraseByIteratorReturnsFollowing(t *testing.T) {
	m := New[int, string](intCompare)
	for _, v := range []int{1, 2, 3} {
		m.Insert(v, "")
	}
	it := m.LowerBound(2)
	next := m.EraseByIterator(it)
	if !next.Valid() || next.Key() != 3 {
		t.Fatalf("expected iterator at 3 after erasing 2, got valid=%v", next.Valid())
	}
	if m.Has(2) {
		t.Errorf("expected 2 to be erased")
	}
}

func TestLowerUpperBound(t *testing.T) {
	m := New[int, string](intCompare)
	for _, v := range []int{10, 20, 30, 40} {
		m.Insert(v, "")
	}

	if it := m.LowerBound(25); !it.Valid() || it.Key() != 30 {
		t.Fatalf("LowerBound(25): expected 30, got valid=%v", it.Valid())
	}
	if it := m.LowerBound(20); !it.Valid() || it.Key() != 20 {
		t.Fatalf("LowerBound(20): expected 20 (inclusive), got valid=%v", it.Valid())
	}
	if it := m.UpperBound(20); !it.Valid() || it.Key() != 30 {
		t.Fatalf("UpperBound(20): expected 30 (exclusive), got valid=%v", it.Valid())
	}
	if it := m.LowerBound(41); it.Valid() {
		t.Fatalf("LowerBound(41): expected End(), got %v", it.Key())
	}

	if it := m.ReverseLowerBound(25); !it.Valid() || it.Key() != 20 {
		t.Fatalf("ReverseLowerBound(25): expected 20, got valid=%v", it.Valid())
	}
	if it := m.ReverseLowerBound(20); !it.Valid() || it.Key() != 20 {
		t.Fatalf("ReverseLowerBound(20): expected 20 (inclusive), got valid=%v", it.Valid())
	}
	if it := m.ReverseUpperBound(20); !it.Valid() || it.Key() != 10 {
		t.Fatalf("ReverseUpperBound(20): expected 10 (exclusive), got valid=%v", it.Valid())
	}
	if it := m.ReverseUpperBound(10); it.Valid() {
		t.Fatalf("ReverseUpperBound(10): expected End(), got %v", it.Key())
	}
}

func TestEraseDownToEmpty(t *testing.T) {
	m := New[int, string](intCompare)
	for _, v := range []int{1, 2, 3, 4, 5} {
		m.Insert(v, "")
	}
	for _, v := range []int{3, 1, 5, 2, 4} {
		if !m.EraseByKey(v) {
			t.Fatalf("EraseByKey(%d): expected true", v)
		}
	}
	if !m.IsEmpty() || m.Len() != 0 {
		t.Fatalf("expected empty map, got len %d", m.Len())
	}
	if it := m.Begin(); it.Valid() {
		t.Fatalf("expected Begin() invalid on empty map")
	}
	if _, _, ok := m.Front(); ok {
		t.Fatalf("expected Front() false on empty map")
	}
}

func TestEachVisitsAllInOrder(t *testing.T) {
	m := New[int, int](intCompare)
	for _, v := range []int{3, 1, 2} {
		m.Insert(v, v*v)
	}
	var keys []int
	var vals []int
	m.Each(func(k, v int) {
		keys = append(keys, k)
		vals = append(vals, v)
	})
	if len(keys) != 3 || keys[0] != 1 || keys[1] != 2 || keys[2] != 3 {
		t.Fatalf("expected ascending keys, got %v", keys)
	}
	if vals[0] != 1 || vals[1] != 4 || vals[2] != 9 {
		t.Fatalf("expected squared values, got %v", vals)
	}
}
