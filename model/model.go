// Package model implements the patch replay engine and the path-based
// model API: a Model owns a node index, a vector clock, and the
// document's virtual root register, applies patches with precondition
// checks and LWW resolution, and garbage-collects subtrees displaced by
// a winning write.
package model

import (
	"github.com/pkg/errors"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// Origin tags whether an applied patch originated at this model's own
// local session or arrived from a remote peer.
type Origin int

const (
	Local Origin = iota
	Remote
)

// Listener is invoked once per ApplyPatch call, after the patch has been
// fully applied, with the patch and its origin relative to this model.
type Listener func(p *patch.Patch, origin Origin)

// Model is the mutable owner of one replica's document state. It is
// single-threaded-cooperative and carries no lock of its own; callers
// serialize mutation externally, typically one Model per session.
// Distinct Model instances are fully independent and exchange only
// patches.
type Model struct {
	idx   *crdtnode.Index
	clk   *clock.VectorClock
	root  *crdtnode.Val
	tick  uint64

	// rootInferred records whether the root-inference shim (the first
	// ins_obj whose container id.time == 1 is treated as the initial
	// root object) has already fired, so it never fires twice.
	rootInferred bool

	listeners   []Listener
	gcListeners []func(clock.Timestamp)
}

// NewModel creates an empty model whose local session is sid.
func NewModel(sid uint64) *Model {
	idx := crdtnode.NewIndex()
	root := crdtnode.NewVal(clock.ORIGIN)
	idx.Put(root)
	return &Model{
		idx:  idx,
		clk:  clock.NewVectorClock(sid),
		root: root,
	}
}

// Index returns the model's node index.
func (m *Model) Index() *crdtnode.Index { return m.idx }

// Clock returns the model's vector clock.
func (m *Model) Clock() *clock.VectorClock { return m.clk }

// LocalSID returns the session id this model originates operations from.
func (m *Model) LocalSID() uint64 { return m.clk.Local() }

// Tick returns the number of ApplyPatch calls this model has processed.
// It increments exactly once per ApplyPatch and is what downstream view
// caches key their invalidation on.
func (m *Model) Tick() uint64 { return m.tick }

// View resolves the entire document to a plain JSON-compatible Go value.
func (m *Model) View() any {
	return m.root.View(m.idx)
}

// RootChild returns the timestamp currently held by the virtual root
// register, or clock.ORIGIN if nothing has been written to the document.
func (m *Model) RootChild() clock.Timestamp {
	return m.root.Child
}

// OnApply registers a listener invoked after every successful ApplyPatch.
func (m *Model) OnApply(l Listener) {
	m.listeners = append(m.listeners, l)
}

// OnGC registers a listener invoked with every timestamp the replay
// engine garbage-collects. It fires for displaced subtree roots even when
// the node at that timestamp is not present in this model's index, which
// is how a partial model (package partial) learns that a node it never
// loaded was displaced in storage.
func (m *Model) OnGC(fn func(clock.Timestamp)) {
	m.gcListeners = append(m.gcListeners, fn)
}

// ApplyPatch applies every operation in p in order, then advances Tick
// and notifies listeners. An empty or nil patch is a no-op that does not
// advance Tick or fire listeners.
func (m *Model) ApplyPatch(p *patch.Patch) error {
	if p == nil || p.IsEmpty() {
		return nil
	}
	for _, op := range p.Ops {
		if err := m.Apply(op); err != nil {
			return err
		}
	}
	m.tick++

	origin := Remote
	if p.ID.SID == m.LocalSID() {
		origin = Local
	}
	for _, l := range m.listeners {
		l(p, origin)
	}
	return nil
}

// Apply integrates a single operation. Replay is total: a
// precondition miss (missing container, stale timestamp) is silently
// dropped, which is the normal path for an op arriving after its target
// was garbage-collected. Apply only returns an error for a malformed Op
// value outside the closed set defined by package patch.
func (m *Model) Apply(op patch.Op) error {
	switch o := op.(type) {
	case patch.NewCon:
		m.applyNewCon(o)
	case patch.NewVal:
		m.applyNewVal(o)
	case patch.NewObj:
		m.applyNewObj(o)
	case patch.NewVec:
		m.applyNewVec(o)
	case patch.NewStr:
		m.applyNewStr(o)
	case patch.NewBin:
		m.applyNewBin(o)
	case patch.NewArr:
		m.applyNewArr(o)
	case patch.InsVal:
		m.applyInsVal(o)
	case patch.InsObj:
		m.applyInsObj(o)
	case patch.InsVec:
		m.applyInsVec(o)
	case patch.InsStr:
		m.applyInsStr(o)
	case patch.InsBin:
		m.applyInsBin(o)
	case patch.InsArr:
		m.applyInsArr(o)
	case patch.UpdArr:
		m.applyUpdArr(o)
	case patch.Del:
		m.applyDel(o)
	case patch.Nop:
		// reserves timestamps, no effect beyond the Observe below
	default:
		return errors.Errorf("model: unknown op type %T", op)
	}
	m.clk.Observe(op.ID(), op.Span())
	return nil
}

func (m *Model) applyNewCon(o patch.NewCon) {
	if m.idx.Has(o.Id) {
		return
	}
	if o.Value.IsRef {
		m.idx.Put(crdtnode.NewConRef(o.Id, o.Value.Ref))
	} else {
		m.idx.Put(crdtnode.NewCon(o.Id, o.Value.Literal))
	}
}

func (m *Model) applyNewVal(o patch.NewVal) {
	if m.idx.Has(o.Id) {
		return
	}
	m.idx.Put(crdtnode.NewVal(o.Id))
}

func (m *Model) applyNewObj(o patch.NewObj) {
	if m.idx.Has(o.Id) {
		return
	}
	m.idx.Put(crdtnode.NewObj(o.Id))
}

func (m *Model) applyNewVec(o patch.NewVec) {
	if m.idx.Has(o.Id) {
		return
	}
	m.idx.Put(crdtnode.NewVec(o.Id))
}

func (m *Model) applyNewStr(o patch.NewStr) {
	if m.idx.Has(o.Id) {
		return
	}
	m.idx.Put(crdtnode.NewStr(o.Id))
}

func (m *Model) applyNewBin(o patch.NewBin) {
	if m.idx.Has(o.Id) {
		return
	}
	m.idx.Put(crdtnode.NewBin(o.Id))
}

func (m *Model) applyNewArr(o patch.NewArr) {
	if m.idx.Has(o.Id) {
		return
	}
	m.idx.Put(crdtnode.NewArr(o.Id))
}

// applyInsVal handles both ordinary Val registers and the document root
// register at obj==ORIGIN, which is treated identically except that its
// container is the model's own virtual root Val rather than one looked
// up in the index.
func (m *Model) applyInsVal(o patch.InsVal) {
	if !m.idx.Has(o.Val) {
		return
	}
	if o.Obj == clock.ORIGIN {
		prev, changed := m.root.Set(o.Val)
		if changed {
			m.gc(prev)
		}
		return
	}
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	val, ok := n.(*crdtnode.Val)
	if !ok {
		return
	}
	prev, changed := val.Set(o.Val)
	if changed {
		m.gc(prev)
	}
}

// applyInsObj implements the per-key LWW write; any entry whose value ts
// is <= the container's own id is ignored, which is what rules out
// self-references and cycles. It also implements the root-inference
// shim: the first ins_obj whose container id.time == 1 arrives for a
// model whose root is still unset is treated as though a new_obj for
// that container had already been replayed, preserving parity with
// legacy snapshots that omit an explicit new_obj for the root object.
func (m *Model) applyInsObj(o patch.InsObj) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		obj, inferred := m.inferRootObj(o.Obj)
		if !inferred {
			return
		}
		n = obj
	}
	obj, ok := n.(*crdtnode.Obj)
	if !ok {
		return
	}
	for _, e := range o.Entries {
		if e.Value.Compare(obj.ID()) <= 0 || !m.idx.Has(e.Value) {
			continue
		}
		prev, existed, changed := obj.Put(e.Key, e.Value)
		if changed && existed {
			m.gc(prev)
		}
	}
}

func (m *Model) inferRootObj(obj clock.Timestamp) (*crdtnode.Obj, bool) {
	if m.rootInferred || m.root.Child != clock.ORIGIN || obj.Time != 1 {
		return nil, false
	}
	inferred := crdtnode.NewObj(obj)
	m.idx.Put(inferred)
	if _, changed := m.root.Set(obj); changed {
		m.rootInferred = true
	}
	return inferred, true
}

func (m *Model) applyInsVec(o patch.InsVec) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	vec, ok := n.(*crdtnode.Vec)
	if !ok {
		return
	}
	for _, e := range o.Entries {
		if e.Value.Compare(vec.ID()) <= 0 || !m.idx.Has(e.Value) {
			continue
		}
		prev, existed, changed := vec.Put(e.Index, e.Value)
		if changed && existed {
			m.gc(prev)
		}
	}
}

func (m *Model) applyInsStr(o patch.InsStr) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	str, ok := n.(*crdtnode.Str)
	if !ok {
		return
	}
	str.Insert(o.Id, o.Ref, o.Text)
}

func (m *Model) applyInsBin(o patch.InsBin) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	bin, ok := n.(*crdtnode.Bin)
	if !ok {
		return
	}
	bin.Insert(o.Id, o.Ref, o.Bytes)
}

func (m *Model) applyInsArr(o patch.InsArr) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	arr, ok := n.(*crdtnode.Arr)
	if !ok {
		return
	}
	for _, v := range o.Values {
		if !m.idx.Has(v) {
			return
		}
	}
	arr.Insert(o.Id, o.Ref, o.Values)
}

func (m *Model) applyUpdArr(o patch.UpdArr) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	arr, ok := n.(*crdtnode.Arr)
	if !ok {
		return
	}
	if !m.idx.Has(o.Val) {
		return
	}
	prev, changed := arr.Upd(o.Ref, o.Id, o.Val)
	if changed {
		m.gc(prev)
	}
}

func (m *Model) applyDel(o patch.Del) {
	n, ok := m.idx.Get(o.Obj)
	if !ok {
		return
	}
	switch seq := n.(type) {
	case *crdtnode.Str:
		seq.Delete(o.What)
	case *crdtnode.Bin:
		seq.Delete(o.What)
	case *crdtnode.Arr:
		// Arr slots hold node references, so deleting a slot must GC the
		// node it pointed at; unlike Str/Bin, whose elements are plain
		// runes/bytes with nothing to collect.
		for _, span := range o.What {
			for i := uint64(0); i < span.Span; i++ {
				slot := clock.Timestamp{SID: span.SID, Time: span.Time + i}
				if childTS, found := seq.Seq.ValueAt(slot); found {
					m.gc(childTS)
				}
			}
		}
		seq.Delete(o.What)
	}
}

// gc removes the node at ts and recursively removes every node reached
// through its node-valued Children (Val/Obj/Vec children, live Arr slot
// values; Str/Bin/Con have none). ts == clock.ORIGIN is the virtual root
// register itself and is never collected.
func (m *Model) gc(ts clock.Timestamp) {
	if ts == clock.ORIGIN {
		return
	}
	for _, fn := range m.gcListeners {
		fn(ts)
	}
	n, ok := m.idx.Get(ts)
	if !ok {
		return
	}
	// Snapshot children before deleting: each Children() implementation
	// already returns an owned copy, so mutating the index here never
	// aliases the slice we're about to range over.
	children := n.Children()
	m.idx.Delete(ts)
	for _, c := range children {
		m.gc(c)
	}
}
