package patch

import "github.com/cshekharsharma/go-json-crdt/clock"

// Patch is an ordered list of operations sharing a leading patch id. The
// patch id is the timestamp of its first operation; operations within a
// patch are always applied in the order they appear.
type Patch struct {
	ID  clock.Timestamp
	Ops []Op
}

// Span returns the total number of logical-time slots this patch consumes,
// i.e. the sum of every operation's span.
func (p *Patch) Span() uint64 {
	var total uint64
	for _, op := range p.Ops {
		total += op.Span()
	}
	return total
}

// Append adds op to the end of the patch.
func (p *Patch) Append(op Op) {
	p.Ops = append(p.Ops, op)
}

// IsEmpty reports whether the patch carries no operations.
func (p *Patch) IsEmpty() bool {
	return len(p.Ops) == 0
}
