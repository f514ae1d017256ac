// Package patch defines the operation algebra and the stateful patch
// builder: the tagged union of CRDT operations, their span accounting,
// and a Patch as an ordered list of operations sharing a leading patch id.
package patch

import "github.com/cshekharsharma/go-json-crdt/clock"

// OpKind tags the concrete type of an Op without requiring a type switch
// at every call site; codecs use it as the wire discriminator.
type OpKind uint8

const (
	KindNewCon OpKind = iota
	KindNewVal
	KindNewObj
	KindNewVec
	KindNewStr
	KindNewBin
	KindNewArr
	KindInsVal
	KindInsObj
	KindInsVec
	KindInsStr
	KindInsBin
	KindInsArr
	KindUpdArr
	KindDel
	KindNop
)

// Op is the common interface every operation variant satisfies. Every
// variant carries its own id and knows how many consecutive timestamps
// it consumes.
type Op interface {
	ID() clock.Timestamp
	Span() uint64
	Kind() OpKind
}

// RefValue is the payload of a NewCon operation: either an immutable
// literal JSON value or a reference to another node's timestamp.
type RefValue struct {
	// Literal holds a JSON-compatible Go value (nil, bool, float64,
	// string, []any, map[string]any) when IsRef is false.
	Literal any
	// When IsRef is true this Con node is an alias for the node
	// identified by Ref rather than holding a literal value; a Ref of
	// clock.UNDEFINED marks the reserved undefined Con.
	Ref    clock.Timestamp
	IsRef  bool
}

// --- creation operations ---

// NewCon allocates a Con node holding an immutable literal or a reference.
type NewCon struct {
	Id    clock.Timestamp
	Value RefValue
}

func (o NewCon) ID() clock.Timestamp { return o.Id }
func (o NewCon) Span() uint64        { return 1 }
func (o NewCon) Kind() OpKind        { return KindNewCon }

// NewVal allocates a Val (LWW single-child register) node.
type NewVal struct{ Id clock.Timestamp }

func (o NewVal) ID() clock.Timestamp { return o.Id }
func (o NewVal) Span() uint64        { return 1 }
func (o NewVal) Kind() OpKind        { return KindNewVal }

// NewObj allocates an Obj (LWW map) node.
type NewObj struct{ Id clock.Timestamp }

func (o NewObj) ID() clock.Timestamp { return o.Id }
func (o NewObj) Span() uint64        { return 1 }
func (o NewObj) Kind() OpKind        { return KindNewObj }

// NewVec allocates a Vec (LWW fixed-index map) node.
type NewVec struct{ Id clock.Timestamp }

func (o NewVec) ID() clock.Timestamp { return o.Id }
func (o NewVec) Span() uint64        { return 1 }
func (o NewVec) Kind() OpKind        { return KindNewVec }

// NewStr allocates an empty Str (RGA text) node.
type NewStr struct{ Id clock.Timestamp }

func (o NewStr) ID() clock.Timestamp { return o.Id }
func (o NewStr) Span() uint64        { return 1 }
func (o NewStr) Kind() OpKind        { return KindNewStr }

// NewBin allocates an empty Bin (RGA bytes) node.
type NewBin struct{ Id clock.Timestamp }

func (o NewBin) ID() clock.Timestamp { return o.Id }
func (o NewBin) Span() uint64        { return 1 }
func (o NewBin) Kind() OpKind        { return KindNewBin }

// NewArr allocates an empty Arr (RGA of child-ts references) node.
type NewArr struct{ Id clock.Timestamp }

func (o NewArr) ID() clock.Timestamp { return o.Id }
func (o NewArr) Span() uint64        { return 1 }
func (o NewArr) Kind() OpKind        { return KindNewArr }

// --- container-set operations ---

// InsVal writes Val into the Val register identified by Obj (ORIGIN for
// the document root register).
type InsVal struct {
	Id  clock.Timestamp
	Obj clock.Timestamp
	Val clock.Timestamp
}

func (o InsVal) ID() clock.Timestamp { return o.Id }
func (o InsVal) Span() uint64        { return 1 }
func (o InsVal) Kind() OpKind        { return KindInsVal }

// ObjEntry is one key/value write in an InsObj operation.
type ObjEntry struct {
	Key   string
	Value clock.Timestamp
}

// InsObj writes one or more key->value entries into the Obj identified by
// Obj, each resolved independently by per-key LWW.
type InsObj struct {
	Id      clock.Timestamp
	Obj     clock.Timestamp
	Entries []ObjEntry
}

func (o InsObj) ID() clock.Timestamp { return o.Id }
func (o InsObj) Span() uint64        { return 1 }
func (o InsObj) Kind() OpKind        { return KindInsObj }

// VecEntry is one index/value write in an InsVec operation.
type VecEntry struct {
	Index uint32
	Value clock.Timestamp
}

// InsVec writes one or more index->value entries into the Vec identified
// by Obj.
type InsVec struct {
	Id      clock.Timestamp
	Obj     clock.Timestamp
	Entries []VecEntry
}

func (o InsVec) ID() clock.Timestamp { return o.Id }
func (o InsVec) Span() uint64        { return 1 }
func (o InsVec) Kind() OpKind        { return KindInsVec }

// --- sequence-insert operations ---

// InsStr inserts Text after the RGA anchor Ref in the Str node Obj.
type InsStr struct {
	Id   clock.Timestamp
	Obj  clock.Timestamp
	Ref  clock.Timestamp
	Text string
}

func (o InsStr) ID() clock.Timestamp { return o.Id }
func (o InsStr) Span() uint64        { return uint64(len([]rune(o.Text))) }
func (o InsStr) Kind() OpKind        { return KindInsStr }

// InsBin inserts Bytes after the RGA anchor Ref in the Bin node Obj.
type InsBin struct {
	Id    clock.Timestamp
	Obj   clock.Timestamp
	Ref   clock.Timestamp
	Bytes []byte
}

func (o InsBin) ID() clock.Timestamp { return o.Id }
func (o InsBin) Span() uint64        { return uint64(len(o.Bytes)) }
func (o InsBin) Kind() OpKind        { return KindInsBin }

// InsArr inserts Values (child node timestamps) after the RGA anchor Ref
// in the Arr node Obj.
type InsArr struct {
	Id     clock.Timestamp
	Obj    clock.Timestamp
	Ref    clock.Timestamp
	Values []clock.Timestamp
}

func (o InsArr) ID() clock.Timestamp { return o.Id }
func (o InsArr) Span() uint64        { return uint64(len(o.Values)) }
func (o InsArr) Kind() OpKind        { return KindInsArr }

// --- sequence-update operation ---

// UpdArr LWW-replaces the value referenced by slot Ref in the Arr node Obj,
// without moving the slot's position.
type UpdArr struct {
	Id  clock.Timestamp
	Obj clock.Timestamp
	Ref clock.Timestamp
	Val clock.Timestamp
}

func (o UpdArr) ID() clock.Timestamp { return o.Id }
func (o UpdArr) Span() uint64        { return 1 }
func (o UpdArr) Kind() OpKind        { return KindUpdArr }

// --- deletion & filler ---

// Del marks the listed timespans as tombstoned in the sequence at Obj.
type Del struct {
	Id  clock.Timestamp
	Obj clock.Timestamp
	What []clock.Timespan
}

func (o Del) ID() clock.Timestamp { return o.Id }
func (o Del) Span() uint64        { return 1 }
func (o Del) Kind() OpKind        { return KindDel }

// Nop reserves Len timestamps without effect, keeping clock allocation
// contiguous; Builder.Nop emits it.
type Nop struct {
	Id  clock.Timestamp
	Len uint64
}

func (o Nop) ID() clock.Timestamp { return o.Id }
func (o Nop) Span() uint64 {
	if o.Len == 0 {
		return 1
	}
	return o.Len
}
func (o Nop) Kind() OpKind { return KindNop }
