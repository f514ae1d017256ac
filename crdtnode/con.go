package crdtnode

import "github.com/cshekharsharma/go-json-crdt/clock"

// Con is an immutable constant node: it holds either a literal JSON value
// or a reference to another node's timestamp. It never changes after
// creation; it has no Set, Put or Insert method.
type Con struct {
	Id    clock.Timestamp
	Value any
	Ref   clock.Timestamp
	IsRef bool
}

// NewCon creates a Con node holding a literal value.
func NewCon(id clock.Timestamp, value any) *Con {
	return &Con{Id: id, Value: value}
}

// NewConRef creates a Con node that aliases another node's timestamp.
func NewConRef(id, ref clock.Timestamp) *Con {
	return &Con{Id: id, Ref: ref, IsRef: true}
}

func (c *Con) ID() clock.Timestamp { return c.Id }

// IsUndefined reports whether c is the reserved undefined marker: a
// reference Con pointing at clock.UNDEFINED. Writing one into an Obj or
// Vec key is how a key is "removed", since LWW registers have no true
// per-key tombstone; Obj.View renders such a key as absent.
func (c *Con) IsUndefined() bool {
	return c.IsRef && c.Ref == clock.UNDEFINED
}

// View returns the embedded literal, or, for a reference Con, the
// referenced node's view (nil if the reference is the reserved undefined
// sentinel or has been GC'd).
func (c *Con) View(idx *Index) any {
	if c.IsRef {
		if c.Ref == clock.UNDEFINED {
			return nil
		}
		target, ok := idx.Get(c.Ref)
		if !ok {
			return nil
		}
		return target.View(idx)
	}
	return c.Value
}

// Children always returns nil: Con (like Str and Bin) has no node-valued
// children for GC purposes, even when it holds a Ref; the referenced
// node is an alias, not ownership, so it is not recursively collected
// when this Con is.
func (c *Con) Children() []clock.Timestamp {
	return nil
}
