// Package sortedmap implements an order-statistics red-black tree keyed
// by a caller-supplied comparator. Nodes live in a single arena and are
// referenced by int32 indices rather than pointers, so the whole
// structure is one contiguous slice: no node is individually heap
// allocated, and an index survives reslicing the arena as it grows.
//
// Package codec/indexed uses it to walk a document's nodes in timestamp
// order, which is what makes re-encoding the same document deterministic.
package sortedmap

// Map is an order-statistics red-black tree from K to V. All operations
// are O(log n).
type Map[K, V any] struct {
	arena   []node[K, V]
	root    int32
	min     int32
	max     int32
	length  int
	compare func(a, b K) int
}

// New creates an empty map ordered by compare, which must return <0, 0,
// or >0 as a is less than, equal to, or greater than b.
func New[K, V any](compare func(a, b K) int) *Map[K, V] {
	return &Map[K, V]{root: nilIndex, min: nilIndex, max: nilIndex, compare: compare}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return m.length }

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool { return m.length == 0 }

func (m *Map[K, V]) findIndex(key K) int32 {
	curr := m.root
	for curr != nilIndex {
		c := m.compare(key, m.arena[curr].key)
		switch {
		case c == 0:
			return curr
		case c < 0:
			curr = m.arena[curr].left
		default:
			curr = m.arena[curr].right
		}
	}
	return nilIndex
}

// Get returns the value stored for key, if present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	i := m.findIndex(key)
	if i == nilIndex {
		var zero V
		return zero, false
	}
	return m.arena[i].val, true
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	return m.findIndex(key) != nilIndex
}

// Insert sets key to val, inserting a new entry or overwriting the
// existing one.
func (m *Map[K, V]) Insert(key K, val V) {
	if m.root == nilIndex {
		m.arena = append(m.arena, node[K, V]{key: key, val: val, parent: nilIndex, left: nilIndex, right: nilIndex})
		idx := int32(len(m.arena) - 1)
		m.root = insert(m.arena, nilIndex, idx, m.compare)
		m.min, m.max = idx, idx
		m.length = 1
		return
	}

	if i := m.findIndex(key); i != nilIndex {
		m.arena[i].val = val
		return
	}

	m.arena = append(m.arena, node[K, V]{key: key, val: val, parent: nilIndex, left: nilIndex, right: nilIndex})
	idx := int32(len(m.arena) - 1)

	switch {
	case m.compare(key, m.arena[m.max].key) > 0:
		m.root = insertRight(m.arena, m.root, idx, m.max)
		m.max = idx
	case m.compare(key, m.arena[m.min].key) < 0:
		m.root = insertLeft(m.arena, m.root, idx, m.min)
		m.min = idx
	default:
		curr := m.root
		for {
			c := m.compare(key, m.arena[curr].key)
			if c > 0 {
				if nxt := m.arena[curr].right; nxt != nilIndex {
					curr = nxt
					continue
				}
				m.root = insertRight(m.arena, m.root, idx, curr)
				break
			}
			if nxt := m.arena[curr].left; nxt != nilIndex {
				curr = nxt
				continue
			}
			m.root = insertLeft(m.arena, m.root, idx, curr)
			break
		}
	}
	m.length++
}

func (m *Map[K, V]) removeIndex(i int32) {
	m.root = remove(m.arena, m.root, i)
	if m.length > 0 {
		m.length--
	}
	if m.root == nilIndex {
		m.min, m.max, m.length = nilIndex, nilIndex, 0
		return
	}
	// remove uses copy-successor semantics: erasing a node that has a
	// right child physically unlinks the successor's arena slot, not i, so any cached
	// index may now point at a detached slot. Re-derive both ends.
	m.min = first(m.arena, m.root)
	m.max = last(m.arena, m.root)
}

// EraseByKey removes key if present, reporting whether it was found.
func (m *Map[K, V]) EraseByKey(key K) bool {
	i := m.findIndex(key)
	if i == nilIndex {
		return false
	}
	m.removeIndex(i)
	return true
}

// EraseByIterator removes the entry it points at and returns an iterator
// to the entry that followed it (End() if it was last).
func (m *Map[K, V]) EraseByIterator(it Iterator[K, V]) Iterator[K, V] {
	if !it.Valid() {
		return it
	}
	// The successor's arena slot may be the one remove physically unlinks
	// (copy-successor semantics), so re-find it by key afterwards rather
	// than holding its index across the removal.
	nxtIdx := next(m.arena, it.idx)
	if nxtIdx == nilIndex {
		m.removeIndex(it.idx)
		return m.End()
	}
	nxtKey := m.arena[nxtIdx].key
	m.removeIndex(it.idx)
	return m.LowerBound(nxtKey)
}

// Front returns the smallest entry.
func (m *Map[K, V]) Front() (K, V, bool) {
	if m.min == nilIndex {
		var k K
		var v V
		return k, v, false
	}
	n := m.arena[m.min]
	return n.key, n.val, true
}

// Back returns the largest entry.
func (m *Map[K, V]) Back() (K, V, bool) {
	if m.max == nilIndex {
		var k K
		var v V
		return k, v, false
	}
	n := m.arena[m.max]
	return n.key, n.val, true
}

// Iterator is a position in a Map's ascending key order. The zero value
// is not valid; obtain one from Begin, End, or a *Bound method.
type Iterator[K, V any] struct {
	m   *Map[K, V]
	idx int32
}

// Valid reports whether it refers to a live entry (false for End()).
func (it Iterator[K, V]) Valid() bool { return it.idx != nilIndex }

// Key returns the entry's key. Valid must be true.
func (it Iterator[K, V]) Key() K { return it.m.arena[it.idx].key }

// Value returns the entry's value. Valid must be true.
func (it Iterator[K, V]) Value() V { return it.m.arena[it.idx].val }

// Next returns an iterator to the following entry in ascending order.
func (it Iterator[K, V]) Next() Iterator[K, V] {
	if !it.Valid() {
		return it
	}
	return Iterator[K, V]{m: it.m, idx: next(it.m.arena, it.idx)}
}

// Prev returns an iterator to the preceding entry in ascending order.
func (it Iterator[K, V]) Prev() Iterator[K, V] {
	if !it.Valid() {
		return it
	}
	return Iterator[K, V]{m: it.m, idx: prev(it.m.arena, it.idx)}
}

// Begin returns an iterator to the smallest entry (End() if empty).
func (m *Map[K, V]) Begin() Iterator[K, V] { return Iterator[K, V]{m: m, idx: m.min} }

// End returns the sentinel "one past the largest entry" iterator.
func (m *Map[K, V]) End() Iterator[K, V] { return Iterator[K, V]{m: m, idx: nilIndex} }

// LowerBound returns an iterator to the first entry with key >= target.
func (m *Map[K, V]) LowerBound(target K) Iterator[K, V] {
	curr, res := m.root, int32(nilIndex)
	for curr != nilIndex {
		c := m.compare(m.arena[curr].key, target)
		switch {
		case c < 0:
			curr = m.arena[curr].right
		case c > 0:
			res = curr
			curr = m.arena[curr].left
		default:
			return Iterator[K, V]{m: m, idx: curr}
		}
	}
	return Iterator[K, V]{m: m, idx: res}
}

// UpperBound returns an iterator to the first entry with key > target.
func (m *Map[K, V]) UpperBound(target K) Iterator[K, V] {
	curr, res := m.root, int32(nilIndex)
	for curr != nilIndex {
		c := m.compare(m.arena[curr].key, target)
		if c <= 0 {
			curr = m.arena[curr].right
		} else {
			res = curr
			curr = m.arena[curr].left
		}
	}
	return Iterator[K, V]{m: m, idx: res}
}

// ReverseLowerBound returns an iterator to the last entry with key <= target.
func (m *Map[K, V]) ReverseLowerBound(target K) Iterator[K, V] {
	curr, res := m.root, int32(nilIndex)
	for curr != nilIndex {
		c := m.compare(m.arena[curr].key, target)
		switch {
		case c < 0:
			res = curr
			curr = m.arena[curr].right
		case c > 0:
			curr = m.arena[curr].left
		default:
			return Iterator[K, V]{m: m, idx: curr}
		}
	}
	return Iterator[K, V]{m: m, idx: res}
}

// ReverseUpperBound returns an iterator to the last entry with key < target.
func (m *Map[K, V]) ReverseUpperBound(target K) Iterator[K, V] {
	curr, res := m.root, int32(nilIndex)
	for curr != nilIndex {
		c := m.compare(m.arena[curr].key, target)
		if c < 0 {
			res = curr
			curr = m.arena[curr].right
		} else {
			curr = m.arena[curr].left
		}
	}
	return Iterator[K, V]{m: m, idx: res}
}

// Each calls fn for every entry in ascending key order.
func (m *Map[K, V]) Each(fn func(key K, val V)) {
	for it := m.Begin(); it.Valid(); it = it.Next() {
		fn(it.Key(), it.Value())
	}
}
