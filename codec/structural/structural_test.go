package structural

import (
	"testing"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const sid = 65536
	b := patch.NewBuilder(sid, 1)
	strID := b.NewStr()
	b.InsStr(strID, clock.ORIGIN, "hi")
	b.InsVal(clock.ORIGIN, strID)
	original := b.Flush()

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != original.ID {
		t.Fatalf("expected patch id %v, got %v", original.ID, decoded.ID)
	}
	if len(decoded.Ops) != len(original.Ops) {
		t.Fatalf("expected %d ops, got %d", len(original.Ops), len(decoded.Ops))
	}

	m := model.NewModel(sid)
	if err := m.ApplyPatch(decoded); err != nil {
		t.Fatalf("ApplyPatch(decoded): %v", err)
	}
	if got := m.View(); got != "hi" {
		t.Fatalf("expected \"hi\" after replaying the round-tripped patch, got %v", got)
	}
}

func TestEncodeDecodeAllOpKinds(t *testing.T) {
	const sid = 65536
	b := patch.NewBuilder(sid, 1)
	objID := b.NewObj()
	vecID := b.NewVec()
	strID := b.NewStr()
	binID := b.NewBin()
	arrID := b.NewArr()
	conID := b.NewConLiteral(map[string]any{"x": 1.0})
	b.InsObj(objID, patch.ObjEntry{Key: "a", Value: conID})
	b.InsVec(vecID, patch.VecEntry{Index: 0, Value: conID})
	b.InsStr(strID, clock.ORIGIN, "ab")
	b.InsBin(binID, clock.ORIGIN, []byte{1, 2, 3})
	b.InsArr(arrID, clock.ORIGIN, []clock.Timestamp{conID})
	upd := b.UpdArr(arrID, arrID, conID)
	_ = upd
	b.Del(strID, clock.Timespan{SID: sid, Time: 10, Span: 1})
	b.Nop(2)
	b.InsVal(clock.ORIGIN, objID)
	original := b.Flush()

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Ops) != len(original.Ops) {
		t.Fatalf("expected %d ops, got %d", len(original.Ops), len(decoded.Ops))
	}
	for i := range original.Ops {
		if original.Ops[i].Kind() != decoded.Ops[i].Kind() {
			t.Errorf("op %d: expected kind %v, got %v", i, original.Ops[i].Kind(), decoded.Ops[i].Kind())
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected an error decoding garbage bytes")
	}
}
