package crdtnode

import "github.com/cshekharsharma/go-json-crdt/clock"

// Vec is an LWW map keyed by small unsigned index, used for fixed-shape
// tuples. Semantics mirror Obj exactly, keyed by uint32 instead of string.
type Vec struct {
	Id     clock.Timestamp
	Fields map[uint32]clock.Timestamp
}

// NewVec creates an empty Vec node.
func NewVec(id clock.Timestamp) *Vec {
	return &Vec{Id: id, Fields: make(map[uint32]clock.Timestamp)}
}

func (v *Vec) ID() clock.Timestamp { return v.Id }

func (v *Vec) View(idx *Index) any {
	if len(v.Fields) == 0 {
		return []any{}
	}
	maxIdx := uint32(0)
	for i := range v.Fields {
		if i > maxIdx {
			maxIdx = i
		}
	}
	out := make([]any, maxIdx+1)
	for i, childTS := range v.Fields {
		child, ok := idx.Get(childTS)
		if !ok {
			continue
		}
		out[i] = child.View(idx)
	}
	return out
}

func (v *Vec) Children() []clock.Timestamp {
	out := make([]clock.Timestamp, 0, len(v.Fields))
	for _, ts := range v.Fields {
		out = append(out, ts)
	}
	return out
}

// Put attempts to LWW-replace index's value with newChild.
func (v *Vec) Put(index uint32, newChild clock.Timestamp) (prev clock.Timestamp, existed, changed bool) {
	old, existed := v.Fields[index]
	if !existed || newChild.Compare(old) > 0 {
		v.Fields[index] = newChild
		return old, existed, true
	}
	return clock.Timestamp{}, existed, false
}
