package crdtnode

import (
	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/rga"
)

// Bin is an RGA-replicated byte sequence, used for binary payloads.
type Bin struct {
	Id  clock.Timestamp
	Seq *rga.Seq[byte]
}

// NewBin creates an empty Bin node.
func NewBin(id clock.Timestamp) *Bin {
	return &Bin{Id: id, Seq: rga.New[byte]()}
}

func (b *Bin) ID() clock.Timestamp { return b.Id }

func (b *Bin) View(*Index) any {
	return append([]byte(nil), b.Seq.View()...)
}

// Children is always empty: Bin holds bytes, not node references.
func (b *Bin) Children() []clock.Timestamp { return nil }

// Insert integrates data after the RGA anchor ref, stamped with id.
func (b *Bin) Insert(id, ref clock.Timestamp, data []byte) bool {
	return b.Seq.Insert(ref, id, data)
}

// Delete tombstones the listed timespans.
func (b *Bin) Delete(spans []clock.Timespan) {
	b.Seq.Delete(spans)
}
