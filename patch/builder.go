package patch

import "github.com/cshekharsharma/go-json-crdt/clock"

// Builder is a stateful producer of well-formed patches. Given a local sid
// and a starting time, it exposes one method per operation kind, each
// returning the timestamp it allocated for that operation. The builder
// maintains an internal cursor and appends operations to a buffer;
// Flush returns the completed patch and empties the op buffer; the cursor
// keeps its position.
//
// Invariant: every id the builder hands out is >= every previously
// handed-out id from the same builder, because the cursor only ever moves
// forward by an op's span.
type Builder struct {
	sid    uint64
	cursor uint64
	ops    []Op
}

// NewBuilder creates a builder for local session sid, starting at
// logical time startTime (the time of the first op it will allocate).
func NewBuilder(sid uint64, startTime uint64) *Builder {
	return &Builder{sid: sid, cursor: startTime}
}

// SID returns the builder's local session id.
func (b *Builder) SID() uint64 { return b.sid }

// Cursor returns the next timestamp the builder will allocate.
func (b *Builder) Cursor() clock.Timestamp {
	return clock.Timestamp{SID: b.sid, Time: b.cursor}
}

// Flush returns the accumulated operations as a patch and resets the
// builder's op buffer (the clock cursor is left where it is, so a second
// Flush immediately after starts a fresh, empty, contiguous patch).
func (b *Builder) Flush() *Patch {
	if len(b.ops) == 0 {
		return nil
	}
	p := &Patch{ID: b.ops[0].ID(), Ops: b.ops}
	b.ops = nil
	return p
}

// Len reports how many operations are currently pending.
func (b *Builder) Len() int { return len(b.ops) }

func (b *Builder) alloc(span uint64) clock.Timestamp {
	if span == 0 {
		span = 1
	}
	ts := clock.Timestamp{SID: b.sid, Time: b.cursor}
	b.cursor += span
	return ts
}

func (b *Builder) emit(op Op) clock.Timestamp {
	b.ops = append(b.ops, op)
	return op.ID()
}

// NewCon allocates a Con node. Pass an IsRef RefValue to alias another
// node instead of embedding a literal.
func (b *Builder) NewCon(value RefValue) clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewCon{Id: id, Value: value})
}

// NewConLiteral is a convenience wrapper for the common case of a plain
// literal (non-ref) Con node.
func (b *Builder) NewConLiteral(v any) clock.Timestamp {
	return b.NewCon(RefValue{Literal: v})
}

// NewConUndefined allocates the reserved undefined Con: a reference Con
// pointing at clock.UNDEFINED, written into an Obj/Vec key to mark it
// removed.
func (b *Builder) NewConUndefined() clock.Timestamp {
	return b.NewCon(RefValue{Ref: clock.UNDEFINED, IsRef: true})
}

// NewVal allocates an empty Val register node.
func (b *Builder) NewVal() clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewVal{Id: id})
}

// NewObj allocates an empty Obj node.
func (b *Builder) NewObj() clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewObj{Id: id})
}

// NewVec allocates an empty Vec node.
func (b *Builder) NewVec() clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewVec{Id: id})
}

// NewStr allocates an empty Str node.
func (b *Builder) NewStr() clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewStr{Id: id})
}

// NewBin allocates an empty Bin node.
func (b *Builder) NewBin() clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewBin{Id: id})
}

// NewArr allocates an empty Arr node.
func (b *Builder) NewArr() clock.Timestamp {
	id := b.alloc(1)
	return b.emit(NewArr{Id: id})
}

// InsVal writes val into the Val register obj (pass clock.ORIGIN for the
// document root).
func (b *Builder) InsVal(obj, val clock.Timestamp) clock.Timestamp {
	id := b.alloc(1)
	return b.emit(InsVal{Id: id, Obj: obj, Val: val})
}

// InsObj writes one or more key->value entries into the Obj node obj.
func (b *Builder) InsObj(obj clock.Timestamp, entries ...ObjEntry) clock.Timestamp {
	id := b.alloc(1)
	return b.emit(InsObj{Id: id, Obj: obj, Entries: entries})
}

// InsVec writes one or more index->value entries into the Vec node obj.
func (b *Builder) InsVec(obj clock.Timestamp, entries ...VecEntry) clock.Timestamp {
	id := b.alloc(1)
	return b.emit(InsVec{Id: id, Obj: obj, Entries: entries})
}

// InsStr inserts text after anchor ref in the Str node obj. The allocated
// id's span equals the number of Unicode scalars in text, and per-rune
// slot ids are id.Tick(i) for offset i.
func (b *Builder) InsStr(obj, ref clock.Timestamp, text string) clock.Timestamp {
	span := uint64(len([]rune(text)))
	id := b.alloc(span)
	return b.emit(InsStr{Id: id, Obj: obj, Ref: ref, Text: text})
}

// InsBin inserts bytes after anchor ref in the Bin node obj.
func (b *Builder) InsBin(obj, ref clock.Timestamp, data []byte) clock.Timestamp {
	id := b.alloc(uint64(len(data)))
	return b.emit(InsBin{Id: id, Obj: obj, Ref: ref, Bytes: data})
}

// InsArr inserts values after anchor ref in the Arr node obj.
func (b *Builder) InsArr(obj, ref clock.Timestamp, values []clock.Timestamp) clock.Timestamp {
	id := b.alloc(uint64(len(values)))
	return b.emit(InsArr{Id: id, Obj: obj, Ref: ref, Values: values})
}

// UpdArr LWW-replaces the value at slot ref in the Arr node obj.
func (b *Builder) UpdArr(obj, ref, val clock.Timestamp) clock.Timestamp {
	id := b.alloc(1)
	return b.emit(UpdArr{Id: id, Obj: obj, Ref: ref, Val: val})
}

// Del tombstones the listed timespans in the sequence at obj.
func (b *Builder) Del(obj clock.Timestamp, what ...clock.Timespan) clock.Timestamp {
	id := b.alloc(1)
	return b.emit(Del{Id: id, Obj: obj, What: what})
}

// Nop reserves n timestamps without effect.
func (b *Builder) Nop(n uint64) clock.Timestamp {
	id := b.alloc(n)
	return b.emit(Nop{Id: id, Len: n})
}
