package indexed

import (
	"testing"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

func TestEncodeDecodeRoundTripScalarDocument(t *testing.T) {
	const sid = 65536
	m := model.NewModel(sid)
	if err := m.Replace(nil, map[string]any{}); err != nil {
		t.Fatalf("Replace root: %v", err)
	}
	if err := m.ObjPut(nil, "name", "ada"); err != nil {
		t.Fatalf("ObjPut: %v", err)
	}
	if err := m.ObjPut(nil, "age", 37.0); err != nil {
		t.Fatalf("ObjPut: %v", err)
	}

	fields, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := fields["c"]; !ok {
		t.Fatalf("expected a clock table field")
	}
	if _, ok := fields["r"]; !ok {
		t.Fatalf("expected a root field")
	}

	decoded, err := Decode(fields, sid)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.View().(map[string]any)
	if !ok {
		t.Fatalf("expected an object view, got %#v", decoded.View())
	}
	if got["name"] != "ada" || got["age"] != 37.0 {
		t.Fatalf("unexpected view after round trip: %#v", got)
	}
}

func TestEncodeDecodeRoundTripSequencesAndArray(t *testing.T) {
	const sid = 65536
	m := model.NewModel(sid)

	// Build an Obj{text: Str} manually: ObjPut's buildValue would make a
	// bare "" a Con literal rather than a Str node.
	b := m.NewBuilder()
	objID := b.NewObj()
	strID := b.NewStr()
	b.InsStr(strID, clock.ORIGIN, "hello")
	b.InsObj(objID, patch.ObjEntry{Key: "text", Value: strID})
	b.InsVal(clock.ORIGIN, objID)
	if err := m.ApplyPatch(b.Flush()); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}

	if err := m.ObjPut(nil, "items", []any{1.0, 2.0, 3.0}); err != nil {
		t.Fatalf("ObjPut: %v", err)
	}
	if err := m.Remove(nil, "text"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	fields, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(fields, sid)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, ok := decoded.View().(map[string]any)
	if !ok {
		t.Fatalf("expected an object view, got %#v", decoded.View())
	}
	if got["text"] != nil {
		t.Fatalf("expected text to be removed, got %#v", got["text"])
	}
	items, ok := got["items"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("expected a 3-element array, got %#v", got["items"])
	}
}

func TestFieldNameRoundTrip(t *testing.T) {
	table := clock.NewTable()
	table.Put(65536, 10)
	table.Put(65537, 5)

	ts := clock.Timestamp{SID: 65537, Time: 3}
	name := FieldName(table, ts)
	got, err := ParseFieldName(table, name)
	if err != nil {
		t.Fatalf("ParseFieldName: %v", err)
	}
	if got != ts {
		t.Fatalf("expected %v, got %v", ts, got)
	}
}

func TestParseFieldNameRejectsMalformedNames(t *testing.T) {
	table := clock.NewTable()
	table.Put(65536, 10)
	if _, err := ParseFieldName(table, "noseparator"); err == nil {
		t.Fatalf("expected an error for a name with no underscore")
	}
	if _, err := ParseFieldName(table, "99_5"); err == nil {
		t.Fatalf("expected an error for an out-of-range session index")
	}
}

func TestDecodeRejectsMissingClockTable(t *testing.T) {
	if _, err := Decode(Fields{}, 65536); err == nil {
		t.Fatalf("expected an error decoding a document with no clock table field")
	}
}

func TestClockTableEncodeDecodeRoundTrip(t *testing.T) {
	table := clock.NewTable()
	table.Put(65536, 42)
	table.Put(65537, 7)

	data := EncodeClockTable(table)
	decoded, err := DecodeClockTable(data)
	if err != nil {
		t.Fatalf("DecodeClockTable: %v", err)
	}
	if decoded.Len() != table.Len() {
		t.Fatalf("expected %d rows, got %d", table.Len(), decoded.Len())
	}
	for i, row := range table.Rows() {
		if decoded.Rows()[i] != row {
			t.Fatalf("row %d: expected %+v, got %+v", i, row, decoded.Rows()[i])
		}
	}
}
