// Package structural implements the structural binary patch codec: a
// single compact stream carrying a patch id followed by its operations.
// Rather than hand-rolling major-type/minor-length tag bytes, it frames
// each operation as a CBOR envelope via github.com/fxamacker/cbor/v2,
// with the operation kind as an explicit discriminator field: CBOR's
// own framing already provides the varint length prefixes and
// self-describing structure a bespoke bit-packed format would have to
// reimplement.
package structural

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// ErrUnknownTag is returned by Decode when an envelope names an OpKind
// this codec version does not recognize.
var ErrUnknownTag = errors.New("structural: unknown operation kind")

// ErrTruncated is returned when the CBOR stream is structurally valid but
// missing a field a given operation kind requires.
var ErrTruncated = errors.New("structural: operation missing required field")

type wireID [2]uint64

func toWire(ts clock.Timestamp) wireID       { return wireID{ts.SID, ts.Time} }
func fromWire(w wireID) clock.Timestamp      { return clock.Timestamp{SID: w[0], Time: w[1]} }
func toWirePtr(ts clock.Timestamp) *wireID   { w := toWire(ts); return &w }

type wireSpan struct {
	SID  uint64 `cbor:"s"`
	Time uint64 `cbor:"t"`
	Span uint64 `cbor:"n"`
}

type wireObjEntry struct {
	Key   string `cbor:"k"`
	Value wireID `cbor:"v"`
}

type wireVecEntry struct {
	Index uint32 `cbor:"i"`
	Value wireID `cbor:"v"`
}

type wireRefValue struct {
	Literal any    `cbor:"lit,omitempty"`
	Ref     wireID `cbor:"ref,omitempty"`
	IsRef   bool   `cbor:"isref,omitempty"`
}

// wireOp is the flattened envelope for every operation kind. Kind is the
// discriminator; only the fields relevant to that kind are populated.
type wireOp struct {
	Kind       patch.OpKind   `cbor:"k"`
	Id         wireID         `cbor:"i"`
	Value      *wireRefValue  `cbor:"val,omitempty"`
	Obj        *wireID        `cbor:"o,omitempty"`
	Target     *wireID        `cbor:"x,omitempty"`
	Ref        *wireID        `cbor:"r,omitempty"`
	Entries    []wireObjEntry `cbor:"oe,omitempty"`
	VecEntries []wireVecEntry `cbor:"ve,omitempty"`
	Text       string         `cbor:"t,omitempty"`
	Bytes      []byte         `cbor:"b,omitempty"`
	Values     []wireID       `cbor:"vs,omitempty"`
	What       []wireSpan     `cbor:"w,omitempty"`
	Len        uint64         `cbor:"l,omitempty"`
}

type wireEnvelope struct {
	PatchID wireID   `cbor:"p"`
	Ops     []wireOp `cbor:"ops"`
}

// Encode serializes p into the structural binary wire format.
func Encode(p *patch.Patch) ([]byte, error) {
	env := wireEnvelope{PatchID: toWire(p.ID)}
	for _, op := range p.Ops {
		w, err := toWireOp(op)
		if err != nil {
			return nil, errors.Wrap(err, "structural: encode op")
		}
		env.Ops = append(env.Ops, w)
	}
	data, err := cbor.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "structural: marshal envelope")
	}
	return data, nil
}

// Decode parses the structural binary wire format back into a patch.
func Decode(data []byte) (*patch.Patch, error) {
	var env wireEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "structural: unmarshal envelope")
	}
	p := &patch.Patch{ID: fromWire(env.PatchID)}
	for _, w := range env.Ops {
		op, err := fromWireOp(w)
		if err != nil {
			return nil, errors.Wrap(err, "structural: decode op")
		}
		p.Append(op)
	}
	return p, nil
}

func toWireOp(op patch.Op) (wireOp, error) {
	w := wireOp{Kind: op.Kind(), Id: toWire(op.ID())}
	switch o := op.(type) {
	case patch.NewCon:
		w.Value = &wireRefValue{Literal: o.Value.Literal, Ref: toWire(o.Value.Ref), IsRef: o.Value.IsRef}
	case patch.NewVal, patch.NewObj, patch.NewVec, patch.NewStr, patch.NewBin, patch.NewArr:
		// no extra payload
	case patch.InsVal:
		w.Obj = toWirePtr(o.Obj)
		w.Target = toWirePtr(o.Val)
	case patch.InsObj:
		w.Obj = toWirePtr(o.Obj)
		for _, e := range o.Entries {
			w.Entries = append(w.Entries, wireObjEntry{Key: e.Key, Value: toWire(e.Value)})
		}
	case patch.InsVec:
		w.Obj = toWirePtr(o.Obj)
		for _, e := range o.Entries {
			w.VecEntries = append(w.VecEntries, wireVecEntry{Index: e.Index, Value: toWire(e.Value)})
		}
	case patch.InsStr:
		w.Obj = toWirePtr(o.Obj)
		w.Ref = toWirePtr(o.Ref)
		w.Text = o.Text
	case patch.InsBin:
		w.Obj = toWirePtr(o.Obj)
		w.Ref = toWirePtr(o.Ref)
		w.Bytes = o.Bytes
	case patch.InsArr:
		w.Obj = toWirePtr(o.Obj)
		w.Ref = toWirePtr(o.Ref)
		for _, v := range o.Values {
			w.Values = append(w.Values, toWire(v))
		}
	case patch.UpdArr:
		w.Obj = toWirePtr(o.Obj)
		w.Ref = toWirePtr(o.Ref)
		w.Target = toWirePtr(o.Val)
	case patch.Del:
		w.Obj = toWirePtr(o.Obj)
		for _, s := range o.What {
			w.What = append(w.What, wireSpan{SID: s.SID, Time: s.Time, Span: s.Span})
		}
	case patch.Nop:
		w.Len = o.Len
	default:
		return wireOp{}, errors.Wrapf(ErrUnknownTag, "kind %v", op.Kind())
	}
	return w, nil
}

func fromWireOp(w wireOp) (patch.Op, error) {
	id := fromWire(w.Id)
	switch w.Kind {
	case patch.KindNewCon:
		if w.Value == nil {
			return nil, errors.Wrapf(ErrTruncated, "new_con %v missing value", id)
		}
		return patch.NewCon{Id: id, Value: patch.RefValue{Literal: w.Value.Literal, Ref: fromWire(w.Value.Ref), IsRef: w.Value.IsRef}}, nil
	case patch.KindNewVal:
		return patch.NewVal{Id: id}, nil
	case patch.KindNewObj:
		return patch.NewObj{Id: id}, nil
	case patch.KindNewVec:
		return patch.NewVec{Id: id}, nil
	case patch.KindNewStr:
		return patch.NewStr{Id: id}, nil
	case patch.KindNewBin:
		return patch.NewBin{Id: id}, nil
	case patch.KindNewArr:
		return patch.NewArr{Id: id}, nil
	case patch.KindInsVal:
		if w.Obj == nil || w.Target == nil {
			return nil, errors.Wrapf(ErrTruncated, "ins_val %v", id)
		}
		return patch.InsVal{Id: id, Obj: fromWire(*w.Obj), Val: fromWire(*w.Target)}, nil
	case patch.KindInsObj:
		if w.Obj == nil {
			return nil, errors.Wrapf(ErrTruncated, "ins_obj %v", id)
		}
		entries := make([]patch.ObjEntry, len(w.Entries))
		for i, e := range w.Entries {
			entries[i] = patch.ObjEntry{Key: e.Key, Value: fromWire(e.Value)}
		}
		return patch.InsObj{Id: id, Obj: fromWire(*w.Obj), Entries: entries}, nil
	case patch.KindInsVec:
		if w.Obj == nil {
			return nil, errors.Wrapf(ErrTruncated, "ins_vec %v", id)
		}
		entries := make([]patch.VecEntry, len(w.VecEntries))
		for i, e := range w.VecEntries {
			entries[i] = patch.VecEntry{Index: e.Index, Value: fromWire(e.Value)}
		}
		return patch.InsVec{Id: id, Obj: fromWire(*w.Obj), Entries: entries}, nil
	case patch.KindInsStr:
		if w.Obj == nil || w.Ref == nil {
			return nil, errors.Wrapf(ErrTruncated, "ins_str %v", id)
		}
		return patch.InsStr{Id: id, Obj: fromWire(*w.Obj), Ref: fromWire(*w.Ref), Text: w.Text}, nil
	case patch.KindInsBin:
		if w.Obj == nil || w.Ref == nil {
			return nil, errors.Wrapf(ErrTruncated, "ins_bin %v", id)
		}
		return patch.InsBin{Id: id, Obj: fromWire(*w.Obj), Ref: fromWire(*w.Ref), Bytes: w.Bytes}, nil
	case patch.KindInsArr:
		if w.Obj == nil || w.Ref == nil {
			return nil, errors.Wrapf(ErrTruncated, "ins_arr %v", id)
		}
		values := make([]clock.Timestamp, len(w.Values))
		for i, v := range w.Values {
			values[i] = fromWire(v)
		}
		return patch.InsArr{Id: id, Obj: fromWire(*w.Obj), Ref: fromWire(*w.Ref), Values: values}, nil
	case patch.KindUpdArr:
		if w.Obj == nil || w.Ref == nil || w.Target == nil {
			return nil, errors.Wrapf(ErrTruncated, "upd_arr %v", id)
		}
		return patch.UpdArr{Id: id, Obj: fromWire(*w.Obj), Ref: fromWire(*w.Ref), Val: fromWire(*w.Target)}, nil
	case patch.KindDel:
		if w.Obj == nil {
			return nil, errors.Wrapf(ErrTruncated, "del %v", id)
		}
		what := make([]clock.Timespan, len(w.What))
		for i, s := range w.What {
			what[i] = clock.Timespan{SID: s.SID, Time: s.Time, Span: s.Span}
		}
		return patch.Del{Id: id, Obj: fromWire(*w.Obj), What: what}, nil
	case patch.KindNop:
		return patch.Nop{Id: id, Len: w.Len}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownTag, "kind %v", w.Kind)
	}
}
