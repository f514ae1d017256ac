package partial

import (
	"testing"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/codec/indexed"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// buildABDocument builds {"a":"hi","b":42} with "a" as a genuine Str node
// (not a Con literal), so extending it exercises InsStr.
func buildABDocument(t *testing.T) (*model.Model, clock.Timestamp, clock.Timestamp) {
	t.Helper()
	const sid = 65536
	m := model.NewModel(sid)
	b := m.NewBuilder()
	objID := b.NewObj()
	strID := b.NewStr()
	b.InsStr(strID, clock.ORIGIN, "hi")
	conID := b.NewConLiteral(42.0)
	b.InsObj(objID, patch.ObjEntry{Key: "a", Value: strID}, patch.ObjEntry{Key: "b", Value: conID})
	b.InsVal(clock.ORIGIN, objID)
	if err := m.ApplyPatch(b.Flush()); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	return m, objID, strID
}

// TestPartialEditRoundTrip extends "a" to "hi!", confirms the load list
// names exactly the touched fields, and confirms applying through the
// partial-edit protocol and merging the result into the stored fields
// produces the same document as a direct full-model apply.
func TestPartialEditRoundTrip(t *testing.T) {
	const sid = 65536
	full, objID, strID := buildABDocument(t)

	storedFields, err := indexed.Encode(full)
	if err != nil {
		t.Fatalf("indexed.Encode: %v", err)
	}

	table, err := indexed.DecodeClockTable(storedFields["c"])
	if err != nil {
		t.Fatalf("DecodeClockTable: %v", err)
	}

	// The str's characters occupy the two slots after its creation id:
	// 'h' at strID.Tick(1), 'i' at strID.Tick(2). Appending anchors on 'i'.
	extendB := full.NewBuilder()
	extendB.InsStr(strID, strID.Tick(2), "!")
	p := extendB.Flush()

	loadList := PopulateLoadList(table, p)
	wantObjField := indexed.FieldName(table, objID)
	wantStrField := indexed.FieldName(table, strID)
	if len(loadList) != 1 {
		t.Fatalf("expected exactly 1 field in the load list, got %v", loadList)
	}
	if _, ok := loadList[wantStrField]; !ok {
		t.Fatalf("expected load list to contain the str field %q, got %v", wantStrField, loadList)
	}
	// The InsStr op's Obj is the str node itself, not the owning object -
	// the object's own field is untouched by this patch and correctly
	// absent from the load list.
	if _, ok := loadList[wantObjField]; ok {
		t.Fatalf("load list should not contain the untouched object field %q", wantObjField)
	}

	loaded := indexed.Fields{"c": storedFields["c"]}
	for name := range loadList {
		loaded[name] = storedFields[name]
	}
	if r, ok := storedFields["r"]; ok {
		loaded["r"] = r
	}

	partialModel, partialTable, err := LoadPartialModel(loaded, sid)
	if err != nil {
		t.Fatalf("LoadPartialModel: %v", err)
	}

	result, err := ApplyPatches(partialModel, partialTable, p)
	if err != nil {
		t.Fatalf("ApplyPatches: %v", err)
	}
	if len(result.Deletes) != 0 {
		t.Fatalf("expected no deletes extending a string, got %v", result.Deletes)
	}

	for name, data := range result.Updates {
		storedFields[name] = data
	}

	merged, err := indexed.Decode(storedFields, sid)
	if err != nil {
		t.Fatalf("indexed.Decode(merged): %v", err)
	}
	got, ok := merged.View().(map[string]any)
	if !ok {
		t.Fatalf("expected an object view, got %#v", merged.View())
	}
	if got["a"] != "hi!" {
		t.Fatalf("expected a=%q, got %#v", "hi!", got["a"])
	}
	if got["b"] != 42.0 {
		t.Fatalf("expected b=42, got %#v", got["b"])
	}
}

// TestPopulateLoadListAddsRootForRootWrites confirms an InsVal targeting
// ORIGIN contributes "r" rather than a resolved field name.
func TestPopulateLoadListAddsRootForRootWrites(t *testing.T) {
	table := clock.NewTable()
	table.Put(65536, 10)

	b := patch.Patch{Ops: []patch.Op{
		patch.InsVal{Id: clock.Timestamp{SID: 65536, Time: 11}, Obj: clock.ORIGIN, Val: clock.Timestamp{SID: 65536, Time: 5}},
	}}
	list := PopulateLoadList(table, &b)
	if _, ok := list["r"]; !ok {
		t.Fatalf("expected \"r\" in load list, got %v", list)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly 1 entry, got %v", list)
	}
}

// TestPopulateLoadListSkipsCreationOps confirms new_* ops, which allocate
// a node rather than reading one, contribute nothing to the load list.
func TestPopulateLoadListSkipsCreationOps(t *testing.T) {
	table := clock.NewTable()
	table.Put(65536, 10)

	p := patch.Patch{Ops: []patch.Op{
		patch.NewObj{Id: clock.Timestamp{SID: 65536, Time: 11}},
		patch.NewStr{Id: clock.Timestamp{SID: 65536, Time: 12}},
	}}
	list := PopulateLoadList(table, &p)
	if len(list) != 0 {
		t.Fatalf("expected an empty load list for creation-only ops, got %v", list)
	}
}

// TestApplyPatchesReportsDeletesForGCdNodes verifies that overwriting a
// key whose previous value is GC'd during apply is surfaced as a delete
// of that node's field.
func TestApplyPatchesReportsDeletesForGCdNodes(t *testing.T) {
	const sid = 65536
	full, objID, _ := buildABDocument(t)

	storedFields, err := indexed.Encode(full)
	if err != nil {
		t.Fatalf("indexed.Encode: %v", err)
	}
	table, err := indexed.DecodeClockTable(storedFields["c"])
	if err != nil {
		t.Fatalf("DecodeClockTable: %v", err)
	}

	replaceB := full.NewBuilder()
	newConID := replaceB.NewConLiteral("replaced")
	replaceB.InsObj(objID, patch.ObjEntry{Key: "a", Value: newConID})
	p := replaceB.Flush()

	loadList := PopulateLoadList(table, p)
	loaded := indexed.Fields{"c": storedFields["c"]}
	for name := range loadList {
		loaded[name] = storedFields[name]
	}

	partialModel, partialTable, err := LoadPartialModel(loaded, sid)
	if err != nil {
		t.Fatalf("LoadPartialModel: %v", err)
	}
	result, err := ApplyPatches(partialModel, partialTable, p)
	if err != nil {
		t.Fatalf("ApplyPatches: %v", err)
	}
	if len(result.Deletes) == 0 {
		t.Fatalf("expected the displaced str node to be reported as a delete")
	}
}
