// Package indexed implements the indexed binary codec: a document is
// represented as a mapping of field name to bytes, rather than one flat
// stream, so the partial-edit protocol (package partial) can load and
// re-save only the handful of nodes a patch actually touches.
//
// Field "c" carries the clock table; "r" (optional) carries the root
// pointer; every other field is named "<i>_<t>" (base-36 session index,
// base-36 node time) and holds one node's payload. References inside a
// node payload are relative (table row index, time delta) timestamps
// resolved through the same clock.Table, keeping records compact and
// stable across independent edits.
package indexed

import (
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/rga"
	"github.com/cshekharsharma/go-json-crdt/sortedmap"
)

// ErrUnknownTag is returned by DecodeNode for a node kind byte this codec
// version doesn't recognize.
var ErrUnknownTag = errors.New("indexed: unknown node kind")

// ErrBadFieldName is returned when a field name doesn't match the
// "<i>_<t>" base-36 schema.
var ErrBadFieldName = errors.New("indexed: malformed field name")

// Fields is the wire representation of a document: field name to bytes.
type Fields map[string][]byte

// node kind discriminators, in the same order as the node-kind tags of
// the structural codec.
const (
	kindCon uint8 = iota
	kindVal
	kindObj
	kindVec
	kindStr
	kindBin
	kindArr
)

type relTS struct {
	Idx   int    `cbor:"i"`
	Delta uint64 `cbor:"d"`
}

func rel(table *clock.Table, ts clock.Timestamp) relTS {
	i, d := table.Encode(ts)
	return relTS{Idx: i, Delta: d}
}

func abs(table *clock.Table, r relTS) (clock.Timestamp, error) {
	return table.Decode(r.Idx, r.Delta)
}

// FieldName returns the "<i>_<t>" field name for ts under table.
func FieldName(table *clock.Table, ts clock.Timestamp) string {
	i, _ := table.IndexOf(ts.SID)
	return strconv.FormatInt(int64(i), 36) + "_" + strconv.FormatUint(ts.Time, 36)
}

// ParseFieldName reverses FieldName, resolving the session index against
// table.
func ParseFieldName(table *clock.Table, name string) (clock.Timestamp, error) {
	i := strings.IndexByte(name, '_')
	if i < 0 {
		return clock.Timestamp{}, errors.Wrapf(ErrBadFieldName, "%q", name)
	}
	idx, err := strconv.ParseInt(name[:i], 36, 64)
	if err != nil {
		return clock.Timestamp{}, errors.Wrapf(ErrBadFieldName, "%q: session index", name)
	}
	t, err := strconv.ParseUint(name[i+1:], 36, 64)
	if err != nil {
		return clock.Timestamp{}, errors.Wrapf(ErrBadFieldName, "%q: time", name)
	}
	if idx < 0 || idx >= int64(table.Len()) {
		return clock.Timestamp{}, errors.Wrapf(clock.ErrUnknownSession, "%q: session index %d out of range", name, idx)
	}
	return clock.Timestamp{SID: table.Rows()[idx].SID, Time: t}, nil
}

// EncodeClockTable serializes table as "c"'s field value: varint(n)
// followed by n (varint sid, varint time) pairs.
func EncodeClockTable(table *clock.Table) []byte {
	var buf []byte
	buf = appendVarint(buf, uint64(table.Len()))
	for _, row := range table.Rows() {
		buf = appendVarint(buf, row.SID)
		buf = appendVarint(buf, row.Time)
	}
	return buf
}

// DecodeClockTable parses "c"'s field value back into a clock table.
func DecodeClockTable(data []byte) (*clock.Table, error) {
	n, data, err := readVarint(data)
	if err != nil {
		return nil, errors.Wrap(err, "indexed: clock table length")
	}
	table := clock.NewTable()
	for i := uint64(0); i < n; i++ {
		var sid, t uint64
		sid, data, err = readVarint(data)
		if err != nil {
			return nil, errors.Wrap(err, "indexed: clock table sid")
		}
		t, data, err = readVarint(data)
		if err != nil {
			return nil, errors.Wrap(err, "indexed: clock table time")
		}
		table.Put(sid, t)
	}
	return table, nil
}

// EncodeRoot serializes ts as "r"'s field value.
func EncodeRoot(table *clock.Table, ts clock.Timestamp) []byte {
	r := rel(table, ts)
	var buf []byte
	buf = appendVarint(buf, uint64(r.Idx))
	buf = appendVarint(buf, r.Delta)
	return buf
}

// DecodeRoot parses "r"'s field value back into an absolute timestamp.
func DecodeRoot(table *clock.Table, data []byte) (clock.Timestamp, error) {
	idx, data, err := readVarint(data)
	if err != nil {
		return clock.Timestamp{}, errors.Wrap(err, "indexed: root field")
	}
	delta, _, err := readVarint(data)
	if err != nil {
		return clock.Timestamp{}, errors.Wrap(err, "indexed: root field")
	}
	return abs(table, relTS{Idx: int(idx), Delta: delta})
}

type wireChunk struct {
	ID     relTS   `cbor:"i"`
	Origin relTS   `cbor:"o"`
	Span   uint64  `cbor:"n"`
	Tomb   bool    `cbor:"x,omitempty"`
	Runes  []int32 `cbor:"r,omitempty"`
	Bytes  []byte  `cbor:"b,omitempty"`
	Refs   []relTS `cbor:"v,omitempty"`
}

type wireWriter struct {
	Slot   relTS `cbor:"s"`
	Writer relTS `cbor:"w"`
}

type wireNode struct {
	Kind      uint8            `cbor:"k"`
	Literal   any              `cbor:"lit,omitempty"`
	IsRef     bool             `cbor:"isref,omitempty"`
	Ref       *relTS           `cbor:"ref,omitempty"`
	Child     *relTS           `cbor:"c,omitempty"`
	Fields    map[string]relTS `cbor:"f,omitempty"`
	VecFields map[uint32]relTS `cbor:"vf,omitempty"`
	Chunks    []wireChunk      `cbor:"ch,omitempty"`
	Writers   []wireWriter     `cbor:"lw,omitempty"`
}

// EncodeNode serializes n's current payload (not including its own id,
// which the field name already carries).
func EncodeNode(n crdtnode.Node, table *clock.Table) ([]byte, error) {
	w := wireNode{}
	switch node := n.(type) {
	case *crdtnode.Con:
		w.Kind = kindCon
		w.Literal = node.Value
		w.IsRef = node.IsRef
		if node.IsRef {
			r := rel(table, node.Ref)
			w.Ref = &r
		}
	case *crdtnode.Val:
		w.Kind = kindVal
		if node.Child != clock.ORIGIN {
			r := rel(table, node.Child)
			w.Child = &r
		}
	case *crdtnode.Obj:
		w.Kind = kindObj
		w.Fields = make(map[string]relTS, len(node.Fields))
		for k, ts := range node.Fields {
			w.Fields[k] = rel(table, ts)
		}
	case *crdtnode.Vec:
		w.Kind = kindVec
		w.VecFields = make(map[uint32]relTS, len(node.Fields))
		for i, ts := range node.Fields {
			w.VecFields[i] = rel(table, ts)
		}
	case *crdtnode.Str:
		w.Kind = kindStr
		for _, c := range node.Seq.Chunks() {
			wc := wireChunk{ID: rel(table, c.ID), Origin: rel(table, c.Origin), Span: c.Span, Tomb: c.Tombstoned}
			if !c.Tombstoned {
				for _, r := range c.Values {
					wc.Runes = append(wc.Runes, int32(r))
				}
			}
			w.Chunks = append(w.Chunks, wc)
		}
	case *crdtnode.Bin:
		w.Kind = kindBin
		for _, c := range node.Seq.Chunks() {
			wc := wireChunk{ID: rel(table, c.ID), Origin: rel(table, c.Origin), Span: c.Span, Tomb: c.Tombstoned}
			if !c.Tombstoned {
				wc.Bytes = c.Values
			}
			w.Chunks = append(w.Chunks, wc)
		}
	case *crdtnode.Arr:
		w.Kind = kindArr
		for _, c := range node.Seq.Chunks() {
			wc := wireChunk{ID: rel(table, c.ID), Origin: rel(table, c.Origin), Span: c.Span, Tomb: c.Tombstoned}
			if !c.Tombstoned {
				for _, ts := range c.Values {
					wc.Refs = append(wc.Refs, rel(table, ts))
				}
			}
			w.Chunks = append(w.Chunks, wc)
		}
		for slot, writer := range node.LastWriter() {
			w.Writers = append(w.Writers, wireWriter{Slot: rel(table, slot), Writer: rel(table, writer)})
		}
	default:
		return nil, errors.Errorf("indexed: unsupported node type %T", n)
	}
	data, err := cbor.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "indexed: marshal node")
	}
	return data, nil
}

// DecodeNode parses a node payload back into a crdtnode.Node, stamped
// with id (recovered from the field name by the caller).
func DecodeNode(id clock.Timestamp, data []byte, table *clock.Table) (crdtnode.Node, error) {
	var w wireNode
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "indexed: unmarshal node")
	}
	switch w.Kind {
	case kindCon:
		if w.IsRef {
			if w.Ref == nil {
				return nil, errors.Errorf("indexed: con %v marked isref but missing ref", id)
			}
			ref, err := abs(table, *w.Ref)
			if err != nil {
				return nil, errors.Wrap(err, "indexed: con ref")
			}
			return crdtnode.NewConRef(id, ref), nil
		}
		return crdtnode.NewCon(id, w.Literal), nil
	case kindVal:
		v := crdtnode.NewVal(id)
		if w.Child != nil {
			child, err := abs(table, *w.Child)
			if err != nil {
				return nil, errors.Wrap(err, "indexed: val child")
			}
			v.Set(child)
		}
		return v, nil
	case kindObj:
		o := crdtnode.NewObj(id)
		for k, r := range w.Fields {
			ts, err := abs(table, r)
			if err != nil {
				return nil, errors.Wrap(err, "indexed: obj field")
			}
			o.Fields[k] = ts
		}
		return o, nil
	case kindVec:
		v := crdtnode.NewVec(id)
		for idx, r := range w.VecFields {
			ts, err := abs(table, r)
			if err != nil {
				return nil, errors.Wrap(err, "indexed: vec field")
			}
			v.Fields[idx] = ts
		}
		return v, nil
	case kindStr:
		views := make([]rga.ChunkView[rune], 0, len(w.Chunks))
		for _, c := range w.Chunks {
			cv, err := toChunkView(table, c, func(wc wireChunk) ([]rune, error) {
				out := make([]rune, len(wc.Runes))
				for i, r := range wc.Runes {
					out[i] = rune(r)
				}
				return out, nil
			})
			if err != nil {
				return nil, errors.Wrap(err, "indexed: str chunk")
			}
			views = append(views, cv)
		}
		return &crdtnode.Str{Id: id, Seq: rga.RestoreChunks(views)}, nil
	case kindBin:
		views := make([]rga.ChunkView[byte], 0, len(w.Chunks))
		for _, c := range w.Chunks {
			cv, err := toChunkView(table, c, func(wc wireChunk) ([]byte, error) { return wc.Bytes, nil })
			if err != nil {
				return nil, errors.Wrap(err, "indexed: bin chunk")
			}
			views = append(views, cv)
		}
		return &crdtnode.Bin{Id: id, Seq: rga.RestoreChunks(views)}, nil
	case kindArr:
		views := make([]rga.ChunkView[clock.Timestamp], 0, len(w.Chunks))
		for _, c := range w.Chunks {
			cv, err := toChunkView(table, c, func(wc wireChunk) ([]clock.Timestamp, error) {
				out := make([]clock.Timestamp, len(wc.Refs))
				for i, r := range wc.Refs {
					ts, err := abs(table, r)
					if err != nil {
						return nil, err
					}
					out[i] = ts
				}
				return out, nil
			})
			if err != nil {
				return nil, errors.Wrap(err, "indexed: arr chunk")
			}
			views = append(views, cv)
		}
		lastWriter := make(map[clock.Timestamp]clock.Timestamp, len(w.Writers))
		for _, wr := range w.Writers {
			slot, err := abs(table, wr.Slot)
			if err != nil {
				return nil, errors.Wrap(err, "indexed: arr last-writer slot")
			}
			writer, err := abs(table, wr.Writer)
			if err != nil {
				return nil, errors.Wrap(err, "indexed: arr last-writer writer")
			}
			lastWriter[slot] = writer
		}
		return crdtnode.RestoreArr(id, rga.RestoreChunks(views), lastWriter), nil
	default:
		return nil, errors.Wrapf(ErrUnknownTag, "kind %d", w.Kind)
	}
}

func toChunkView[T any](table *clock.Table, c wireChunk, values func(wireChunk) ([]T, error)) (rga.ChunkView[T], error) {
	id, err := abs(table, c.ID)
	if err != nil {
		return rga.ChunkView[T]{}, err
	}
	origin, err := abs(table, c.Origin)
	if err != nil {
		return rga.ChunkView[T]{}, err
	}
	view := rga.ChunkView[T]{ID: id, Origin: origin, Span: c.Span, Tombstoned: c.Tomb}
	if !c.Tomb {
		v, err := values(c)
		if err != nil {
			return rga.ChunkView[T]{}, err
		}
		view.Values = v
	}
	return view, nil
}

// Encode serializes m's entire current state into Fields: "c" (clock
// table), "r" (root pointer, if set), and one field per live node.
func Encode(m *model.Model) (Fields, error) {
	table := clock.NewTableFromClock(m.Clock())
	out := Fields{}

	order := sortedmap.New[clock.Timestamp, crdtnode.Node](func(a, b clock.Timestamp) int { return a.Compare(b) })
	m.Index().Each(func(ts clock.Timestamp, n crdtnode.Node) {
		if ts == clock.ORIGIN {
			return // the root Val register itself has no field; "r" covers it
		}
		order.Insert(ts, n)
	})
	for it := order.Begin(); it.Valid(); it = it.Next() {
		ts, n := it.Key(), it.Value()
		data, err := EncodeNode(n, table)
		if err != nil {
			return nil, errors.Wrapf(err, "indexed: encode node %v", ts)
		}
		out[FieldName(table, ts)] = data
	}

	if root := m.RootChild(); root != clock.ORIGIN {
		out["r"] = EncodeRoot(table, root)
	}
	// "c" is written last: encoding a node payload can grow the table (a
	// chunk anchored at ORIGIN adds a row for the system session the vector
	// clock itself never observes), and the serialized table must cover
	// every row a node payload's relative timestamps refer to.
	out["c"] = EncodeClockTable(table)
	return out, nil
}

// Decode reconstructs a model from Fields. localSID is the session id
// the returned model originates new local operations from; it need not
// match any session already present in the document.
func Decode(fields Fields, localSID uint64) (*model.Model, error) {
	m, _, err := DecodeWithTable(fields, localSID)
	return m, err
}

// DecodeWithTable is Decode, additionally returning the clock.Table it
// decoded "c" into. Package partial needs the table itself (not just the
// model) so it can grow it with sessions observed mid-apply and re-derive
// field names for the nodes it re-encodes.
func DecodeWithTable(fields Fields, localSID uint64) (*model.Model, *clock.Table, error) {
	tableBytes, ok := fields["c"]
	if !ok {
		return nil, nil, errors.New("indexed: missing clock table field \"c\"")
	}
	table, err := DecodeClockTable(tableBytes)
	if err != nil {
		return nil, nil, err
	}

	m := model.NewModel(localSID)
	for name, data := range fields {
		if name == "c" || name == "r" {
			continue
		}
		ts, err := ParseFieldName(table, name)
		if err != nil {
			return nil, nil, err
		}
		n, err := DecodeNode(ts, data, table)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "indexed: decode field %q", name)
		}
		m.Index().Put(n)
	}

	if rootBytes, ok := fields["r"]; ok {
		rootTS, err := DecodeRoot(table, rootBytes)
		if err != nil {
			return nil, nil, err
		}
		rootReg, _ := m.Index().Get(clock.ORIGIN)
		if v, ok := rootReg.(*crdtnode.Val); ok {
			v.Set(rootTS)
		}
	}
	for _, row := range table.Rows() {
		m.Clock().Observe(clock.Timestamp{SID: row.SID, Time: row.Time}, 1)
	}
	return m, table, nil
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readVarint(data []byte) (uint64, []byte, error) {
	var v uint64
	var shift uint
	for i, b := range data {
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, data[i+1:], nil
		}
		shift += 7
		if shift >= 64 {
			return 0, nil, errors.New("indexed: varint overflow")
		}
	}
	return 0, nil, errors.New("indexed: truncated varint")
}
