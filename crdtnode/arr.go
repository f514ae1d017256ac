package crdtnode

import (
	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/rga"
)

// Arr is an RGA-replicated sequence of child-node references. Elements
// may additionally be LWW-updated in place via Upd, which changes which
// node a slot points to without moving the slot's position.
type Arr struct {
	Id  clock.Timestamp
	Seq *rga.Seq[clock.Timestamp]

	// lastWriter tracks, per slot (keyed by the slot's own creation
	// timestamp), the id of the most recent Upd that won the LWW race on
	// that slot. A slot absent from this map has never been Upd'd; its
	// baseline writer is its own creation timestamp.
	lastWriter map[clock.Timestamp]clock.Timestamp
}

// NewArr creates an empty Arr node.
func NewArr(id clock.Timestamp) *Arr {
	return &Arr{Id: id, Seq: rga.New[clock.Timestamp](), lastWriter: make(map[clock.Timestamp]clock.Timestamp)}
}

// RestoreArr reconstructs an Arr node from a previously-serialized
// sequence and per-slot last-writer map, for the binary codecs to use
// when decoding a node back out of storage.
func RestoreArr(id clock.Timestamp, seq *rga.Seq[clock.Timestamp], lastWriter map[clock.Timestamp]clock.Timestamp) *Arr {
	if lastWriter == nil {
		lastWriter = make(map[clock.Timestamp]clock.Timestamp)
	}
	return &Arr{Id: id, Seq: seq, lastWriter: lastWriter}
}

// LastWriter returns the slot->last-writer map backing this array's Upd
// LWW resolution, for the binary codecs to serialize.
func (a *Arr) LastWriter() map[clock.Timestamp]clock.Timestamp {
	return a.lastWriter
}

func (a *Arr) ID() clock.Timestamp { return a.Id }

func (a *Arr) View(idx *Index) any {
	live := a.Seq.View()
	out := make([]any, 0, len(live))
	for _, childTS := range live {
		child, ok := idx.Get(childTS)
		if !ok {
			out = append(out, nil)
			continue
		}
		out = append(out, child.View(idx))
	}
	return out
}

// Children returns the live, node-valued slots referenced by this array.
func (a *Arr) Children() []clock.Timestamp {
	return append([]clock.Timestamp(nil), a.Seq.View()...)
}

// Insert integrates values after the RGA anchor ref, stamped with id.
func (a *Arr) Insert(id, ref clock.Timestamp, values []clock.Timestamp) bool {
	return a.Seq.Insert(ref, id, values)
}

// Delete tombstones the listed timespans.
func (a *Arr) Delete(spans []clock.Timespan) {
	a.Seq.Delete(spans)
}

// Upd LWW-replaces the value at slot with newVal, stamped with the
// updating op's id opID. It reports the slot's previous value (for GC)
// and whether the write took effect.
func (a *Arr) Upd(slot, opID, newVal clock.Timestamp) (prev clock.Timestamp, changed bool) {
	currentWriter, ok := a.lastWriter[slot]
	if !ok {
		currentWriter = slot
	}
	if opID.Compare(currentWriter) <= 0 {
		return clock.Timestamp{}, false
	}
	old, found := a.Seq.ValueAt(slot)
	if !found {
		return clock.Timestamp{}, false
	}
	if !a.Seq.SetValue(slot, newVal) {
		return clock.Timestamp{}, false
	}
	a.lastWriter[slot] = opID
	return old, true
}
