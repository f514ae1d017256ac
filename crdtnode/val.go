package crdtnode

import "github.com/cshekharsharma/go-json-crdt/clock"

// Val is an LWW single-child register. Its child starts at clock.ORIGIN,
// meaning "unset"; Set replaces the child only when the new timestamp
// strictly exceeds both the current child and the Val node's own id,
// which is what prevents a node from ever pointing at something created
// before it and gives the register its LWW semantics.
type Val struct {
	Id    clock.Timestamp
	Child clock.Timestamp
}

// NewVal creates an empty Val node.
func NewVal(id clock.Timestamp) *Val {
	return &Val{Id: id, Child: clock.ORIGIN}
}

func (v *Val) ID() clock.Timestamp { return v.Id }

func (v *Val) View(idx *Index) any {
	if v.Child == clock.ORIGIN {
		return nil
	}
	child, ok := idx.Get(v.Child)
	if !ok {
		return nil
	}
	return child.View(idx)
}

func (v *Val) Children() []clock.Timestamp {
	if v.Child == clock.ORIGIN {
		return nil
	}
	return []clock.Timestamp{v.Child}
}

// Set attempts to LWW-replace the child with newChild. It reports the
// previously-held child and whether the write took effect; callers use
// the previous child (when changed) to trigger GC of the displaced
// subtree.
func (v *Val) Set(newChild clock.Timestamp) (prev clock.Timestamp, changed bool) {
	if newChild.Compare(v.Child) > 0 && newChild.Compare(v.Id) > 0 {
		prev = v.Child
		v.Child = newChild
		return prev, true
	}
	return clock.Timestamp{}, false
}
