// Package partial implements the two-phase partial-edit protocol: for a
// document persisted as indexed-binary fields (package codec/indexed),
// applying a patch usually only needs a handful of those fields rather
// than the whole tree.
//
// Discover: PopulateLoadList inspects a patch's operations and reports
// which field names the caller must load. Apply: the caller loads those
// fields (plus "c"), calls LoadPartialModel to decode a model holding
// just those nodes, applies the patch(es) with ApplyPatches, and merges
// the returned updates/deletes back into persistent storage.
package partial

import (
	"github.com/pkg/errors"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/codec/indexed"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// PopulateLoadList reports the indexed-binary field names a caller must
// load before applying patches against table. Only ops that target an
// existing container (their Obj) contribute a field: ORIGIN contributes
// "r" (the root pointer), everything else resolves its session through
// table and contributes "<i>_<t>". Creation ops (new_con/new_val/...)
// allocate a node rather than reading one, so they contribute nothing:
// the node doesn't exist in storage yet.
//
// A session that table doesn't know about yet is skipped: every
// non-creation op's Obj must already be present in the document, and the
// indexed clock table tracks every session that has ever written a live
// node, so this only happens for a malformed patch referencing a
// container that was never created.
func PopulateLoadList(table *clock.Table, patches ...*patch.Patch) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range patches {
		if p == nil {
			continue
		}
		for _, op := range p.Ops {
			obj, ok := objOf(op)
			if !ok {
				continue
			}
			if obj == clock.ORIGIN {
				out["r"] = struct{}{}
				continue
			}
			if _, ok := table.IndexOf(obj.SID); !ok {
				continue
			}
			out[indexed.FieldName(table, obj)] = struct{}{}
		}
	}
	return out
}

// objOf returns the container timestamp an op writes into, and whether it
// has one at all. Creation ops and Nop have none.
func objOf(op patch.Op) (clock.Timestamp, bool) {
	switch o := op.(type) {
	case patch.InsVal:
		return o.Obj, true
	case patch.InsObj:
		return o.Obj, true
	case patch.InsVec:
		return o.Obj, true
	case patch.InsStr:
		return o.Obj, true
	case patch.InsBin:
		return o.Obj, true
	case patch.InsArr:
		return o.Obj, true
	case patch.UpdArr:
		return o.Obj, true
	case patch.Del:
		return o.Obj, true
	default:
		return clock.Timestamp{}, false
	}
}

// LoadPartialModel decodes the fields the caller loaded (per
// PopulateLoadList, plus the mandatory "c") into a model holding just
// those nodes, and returns the clock table alongside it so ApplyPatches
// can grow it with sessions observed mid-apply.
func LoadPartialModel(fields indexed.Fields, localSID uint64) (*model.Model, *clock.Table, error) {
	return indexed.DecodeWithTable(fields, localSID)
}

// Result is what the caller merges into persistent storage after an
// apply: Updates holds every node still present in the partial model,
// re-encoded; Deletes names the fields of nodes the apply's garbage
// collection removed.
type Result struct {
	Updates indexed.Fields
	Deletes map[string]struct{}
}

// ApplyPatches applies patches in order against m (as loaded by
// LoadPartialModel), then assembles the commit set:
//   - grows table with any session observed during apply that it didn't
//     already know about (PopulateClockTable),
//   - re-encodes every node still present in m into Result.Updates,
//   - reports, as Result.Deletes, the field names of every node the
//     replay's GC displaced, including nodes the caller never loaded
//     into the partial model, which only storage still holds.
func ApplyPatches(m *model.Model, table *clock.Table, patches ...*patch.Patch) (*Result, error) {
	before := make(map[clock.Timestamp]struct{}, m.Index().Len())
	m.Index().Each(func(ts clock.Timestamp, _ crdtnode.Node) {
		if ts != clock.ORIGIN {
			before[ts] = struct{}{}
		}
	})

	// A displaced node that was never loaded is invisible to the
	// before/after index comparison below; the GC listener catches it.
	var collected []clock.Timestamp
	m.OnGC(func(ts clock.Timestamp) { collected = append(collected, ts) })

	for _, p := range patches {
		if err := m.ApplyPatch(p); err != nil {
			return nil, errors.Wrap(err, "partial: apply patch")
		}
	}

	PopulateClockTable(table, m)

	type liveNode struct {
		ts clock.Timestamp
		n  crdtnode.Node
	}
	var live []liveNode
	after := make(map[clock.Timestamp]struct{}, m.Index().Len())
	m.Index().Each(func(ts clock.Timestamp, n crdtnode.Node) {
		if ts == clock.ORIGIN {
			return
		}
		after[ts] = struct{}{}
		live = append(live, liveNode{ts, n})
	})

	updates := make(indexed.Fields, len(live)+2)
	if root := m.RootChild(); root != clock.ORIGIN {
		updates["r"] = indexed.EncodeRoot(table, root)
	}
	for _, ln := range live {
		data, err := indexed.EncodeNode(ln.n, table)
		if err != nil {
			return nil, errors.Wrapf(err, "partial: encode node %v", ln.ts)
		}
		updates[indexed.FieldName(table, ln.ts)] = data
	}
	updates["c"] = indexed.EncodeClockTable(table)

	deletes := make(map[string]struct{})
	for ts := range before {
		if _, stillLive := after[ts]; !stillLive {
			deletes[indexed.FieldName(table, ts)] = struct{}{}
		}
	}
	for _, ts := range collected {
		if _, stillLive := after[ts]; stillLive {
			continue
		}
		if _, known := table.IndexOf(ts.SID); !known {
			continue
		}
		deletes[indexed.FieldName(table, ts)] = struct{}{}
	}

	return &Result{Updates: updates, Deletes: deletes}, nil
}

// PopulateClockTable grows table with every session m's clock has
// observed, raising each row's high-water time where the model has
// advanced past what table already recorded. Sessions new to table (a
// remote patch's sid, or one introduced by a node that apply created)
// are added as new rows.
func PopulateClockTable(table *clock.Table, m *model.Model) {
	for _, sid := range m.Clock().Sessions() {
		table.Put(sid, m.Clock().Max(sid))
	}
}
