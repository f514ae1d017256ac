package crdtnode

import (
	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/rga"
)

// Str is an RGA-replicated UTF text sequence. Equality and length are
// defined over Unicode scalars (runes), not bytes, throughout this
// package and the diff engine that targets it.
type Str struct {
	Id  clock.Timestamp
	Seq *rga.Seq[rune]
}

// NewStr creates an empty Str node.
func NewStr(id clock.Timestamp) *Str {
	return &Str{Id: id, Seq: rga.New[rune]()}
}

func (s *Str) ID() clock.Timestamp { return s.Id }

func (s *Str) View(*Index) any {
	return string(s.Seq.View())
}

// Children is always empty: Str holds text, not node references.
func (s *Str) Children() []clock.Timestamp { return nil }

// Insert integrates text after the RGA anchor ref, stamped with id.
func (s *Str) Insert(id, ref clock.Timestamp, text string) bool {
	return s.Seq.Insert(ref, id, []rune(text))
}

// Delete tombstones the listed timespans.
func (s *Str) Delete(spans []clock.Timespan) {
	s.Seq.Delete(spans)
}
