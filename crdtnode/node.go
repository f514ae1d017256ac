// Package crdtnode implements the seven CRDT node kinds that make up a
// JSON CRDT document: Con, Val, Obj, Vec, Str, Bin, and Arr. Nodes never
// hold pointers to each other: every reference is a clock.Timestamp
// resolved through an Index, so the node graph is a strict DAG by
// construction (a child's id is always strictly greater than its
// parent's).
package crdtnode

import "github.com/cshekharsharma/go-json-crdt/clock"

// Node is the common interface every node kind satisfies.
type Node interface {
	// ID returns the timestamp this node was created with.
	ID() clock.Timestamp

	// View resolves this node to a plain JSON-compatible Go value
	// (nil, bool, float64, string, []any, map[string]any), recursively
	// resolving any child references through idx.
	View(idx *Index) any

	// Children returns the node-valued timestamps this node directly
	// references, i.e. the set the GC walker must recurse into when this
	// node's owning slot is overwritten. Con, Str, and Bin have none.
	Children() []clock.Timestamp
}

// Index is the node-ts -> Node mapping that exclusively owns every live
// node in a document. No other part of the system holds a Node pointer
// directly; everything else refers to nodes by timestamp.
type Index struct {
	nodes map[clock.Timestamp]Node
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{nodes: make(map[clock.Timestamp]Node)}
}

// Get returns the node at ts, if present.
func (x *Index) Get(ts clock.Timestamp) (Node, bool) {
	n, ok := x.nodes[ts]
	return n, ok
}

// Has reports whether a node is present at ts.
func (x *Index) Has(ts clock.Timestamp) bool {
	_, ok := x.nodes[ts]
	return ok
}

// Put inserts or overwrites the node at its own id. Creation-op replay
// is idempotent at the caller's level: check Has first to detect a
// replayed node; Put itself is unconditional.
func (x *Index) Put(n Node) {
	x.nodes[n.ID()] = n
}

// Delete removes the node at ts. Callers are responsible for recursing
// into its Children first (see the model package's GC).
func (x *Index) Delete(ts clock.Timestamp) {
	delete(x.nodes, ts)
}

// Len returns the number of live nodes.
func (x *Index) Len() int { return len(x.nodes) }

// Each calls fn for every (timestamp, node) pair currently indexed. Order
// is unspecified.
func (x *Index) Each(fn func(clock.Timestamp, Node)) {
	for ts, n := range x.nodes {
		fn(ts, n)
	}
}
