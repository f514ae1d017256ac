package crdtnode

import "github.com/cshekharsharma/go-json-crdt/clock"

// Obj is an LWW map from string key to child timestamp: each key is an
// independent register, resolved by per-key LWW exactly like Val.
type Obj struct {
	Id     clock.Timestamp
	Fields map[string]clock.Timestamp
}

// NewObj creates an empty Obj node.
func NewObj(id clock.Timestamp) *Obj {
	return &Obj{Id: id, Fields: make(map[string]clock.Timestamp)}
}

func (o *Obj) ID() clock.Timestamp { return o.Id }

func (o *Obj) View(idx *Index) any {
	out := make(map[string]any, len(o.Fields))
	for k, childTS := range o.Fields {
		child, ok := idx.Get(childTS)
		if !ok {
			continue
		}
		// A key whose current value is the reserved undefined Con has been
		// removed; its register slot stays allocated but the view omits it.
		if con, isCon := child.(*Con); isCon && con.IsUndefined() {
			continue
		}
		out[k] = child.View(idx)
	}
	return out
}

func (o *Obj) Children() []clock.Timestamp {
	out := make([]clock.Timestamp, 0, len(o.Fields))
	for _, ts := range o.Fields {
		out = append(out, ts)
	}
	return out
}

// Put attempts to LWW-replace key's value with newChild. It reports the
// previous value (if any) and whether the write took effect.
func (o *Obj) Put(key string, newChild clock.Timestamp) (prev clock.Timestamp, existed, changed bool) {
	old, existed := o.Fields[key]
	if !existed || newChild.Compare(old) > 0 {
		o.Fields[key] = newChild
		return old, existed, true
	}
	return clock.Timestamp{}, existed, false
}
