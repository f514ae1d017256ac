// Package verbose implements the self-describing JSON codec: a
// diagnostics- and wire-compat-oriented form where every node spells out
// its own kind, id, and payload, unlike the compact structural/indexed
// binary codecs. The wire shape matches other producers of the format
// field-for-field, including the quirk of stamping the root wrapper's
// "id" with the root's child timestamp rather than the virtual root
// register's own id; decode never reads that field back, so the quirk
// is harmless and kept for compatibility.
package verbose

import (
	"encoding/base64"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/rga"
)

// ErrFormat is returned when the JSON document's shape doesn't match the
// verbose schema (missing object, wrong field type).
var ErrFormat = errors.New("verbose: malformed document")

// ErrUnknownType is returned by Decode for a node "type" this codec
// version doesn't recognize.
var ErrUnknownType = errors.New("verbose: unknown node type")

// ErrMissingField is returned when a node object is missing a field its
// type requires.
var ErrMissingField = errors.New("verbose: missing field")

// Encode serializes m into the verbose JSON form.
func Encode(m *model.Model) ([]byte, error) {
	doc := map[string]any{
		"time": encodeClock(m.Clock()),
		"root": encodeRoot(m),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "verbose: marshal document")
	}
	return data, nil
}

// Decode parses the verbose JSON form back into a Model. localSID is the
// session id the returned model originates new local operations from.
func Decode(data []byte, localSID uint64) (*model.Model, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "verbose: unmarshal document")
	}
	timeVal, ok := doc["time"]
	if !ok {
		return nil, errors.Wrapf(ErrMissingField, "time")
	}
	rootVal, ok := doc["root"]
	if !ok {
		return nil, errors.Wrapf(ErrMissingField, "root")
	}

	m := model.NewModel(localSID)
	if err := decodeClock(m.Clock(), timeVal); err != nil {
		return nil, err
	}
	if err := decodeRoot(m, rootVal); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeTS renders ts as a bare integer when its session is the reserved
// server sid, or a two-element [sid, time] array otherwise.
func encodeTS(ts clock.Timestamp) any {
	if ts.SID == clock.SessionServer {
		return ts.Time
	}
	return []any{ts.SID, ts.Time}
}

func decodeTS(v any) (clock.Timestamp, error) {
	switch t := v.(type) {
	case float64:
		return clock.Timestamp{SID: clock.SessionServer, Time: uint64(t)}, nil
	case []any:
		if len(t) < 2 {
			return clock.Timestamp{}, errors.Wrapf(ErrFormat, "timestamp array too short")
		}
		sid, ok1 := t[0].(float64)
		tm, ok2 := t[1].(float64)
		if !ok1 || !ok2 {
			return clock.Timestamp{}, errors.Wrapf(ErrFormat, "timestamp array elements must be numbers")
		}
		return clock.Timestamp{SID: uint64(sid), Time: uint64(tm)}, nil
	default:
		return clock.Timestamp{}, errors.Wrapf(ErrFormat, "invalid timestamp %v", v)
	}
}

// encodeClock renders "time": a bare server time when the local session
// is the reserved server sid, otherwise the local session's entry
// followed by every peer's, each as [sid, high-water time].
func encodeClock(c *clock.VectorClock) any {
	if c.Local() == clock.SessionServer {
		return c.Max(clock.SessionServer)
	}
	entries := []any{[]any{c.Local(), c.Max(c.Local())}}
	peers := make([]uint64, 0, len(c.Sessions()))
	for _, sid := range c.Sessions() {
		if sid != c.Local() {
			peers = append(peers, sid)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	for _, sid := range peers {
		entries = append(entries, []any{sid, c.Max(sid)})
	}
	return entries
}

func decodeClock(c *clock.VectorClock, v any) error {
	if n, ok := v.(float64); ok {
		c.Observe(clock.Timestamp{SID: clock.SessionServer, Time: uint64(n)}, 1)
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return errors.Wrapf(ErrFormat, "time must be a number or array")
	}
	for _, entry := range arr {
		ts, err := decodeTS(entry)
		if err != nil {
			return errors.Wrap(err, "verbose: clock entry")
		}
		c.Observe(ts, 1)
	}
	return nil
}

// encodeRoot renders the document's virtual root register. The wrapper's
// "id" carries the root's child timestamp (or UNDEFINED when the
// document is empty) rather than the root register's own id; decodeRoot
// below never reads it back.
func encodeRoot(m *model.Model) map[string]any {
	rootTS := m.RootChild()
	if rootTS == clock.ORIGIN {
		return map[string]any{"type": "val", "id": encodeTS(clock.UNDEFINED), "value": encodeConUndefined()}
	}
	child, ok := m.Index().Get(rootTS)
	var value any
	if ok {
		value = encodeNode(m.Index(), child)
	} else {
		value = encodeConUndefined()
	}
	return map[string]any{"type": "val", "id": encodeTS(rootTS), "value": value}
}

func encodeConUndefined() map[string]any {
	return map[string]any{"type": "con", "id": encodeTS(clock.UNDEFINED)}
}

func decodeRoot(m *model.Model, v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return errors.Wrapf(ErrFormat, "root must be an object")
	}
	valueVal, ok := obj["value"]
	if !ok {
		return errors.Wrapf(ErrMissingField, "root.value")
	}
	childTS, err := decodeNode(m, valueVal)
	if err != nil {
		return err
	}
	rootReg, _ := m.Index().Get(clock.ORIGIN)
	if v, ok := rootReg.(*crdtnode.Val); ok {
		v.Set(childTS)
	}
	return nil
}

func encodeNode(idx *crdtnode.Index, n crdtnode.Node) map[string]any {
	switch node := n.(type) {
	case *crdtnode.Con:
		return encodeCon(node)
	case *crdtnode.Val:
		return encodeVal(idx, node)
	case *crdtnode.Obj:
		return encodeObj(idx, node)
	case *crdtnode.Vec:
		return encodeVec(idx, node)
	case *crdtnode.Str:
		return encodeStr(node)
	case *crdtnode.Bin:
		return encodeBin(node)
	case *crdtnode.Arr:
		return encodeArr(idx, node)
	default:
		return encodeConUndefined()
	}
}

func encodeCon(n *crdtnode.Con) map[string]any {
	out := map[string]any{"type": "con", "id": encodeTS(n.Id)}
	if n.IsRef {
		out["timestamp"] = true
		out["value"] = encodeTS(n.Ref)
		return out
	}
	out["value"] = n.Value
	return out
}

func encodeVal(idx *crdtnode.Index, n *crdtnode.Val) map[string]any {
	var value any
	if child, ok := idx.Get(n.Child); ok {
		value = encodeNode(idx, child)
	} else {
		value = encodeConUndefined()
	}
	return map[string]any{"type": "val", "id": encodeTS(n.Id), "value": value}
}

func encodeObj(idx *crdtnode.Index, n *crdtnode.Obj) map[string]any {
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := make(map[string]any, len(keys))
	for _, k := range keys {
		if child, ok := idx.Get(n.Fields[k]); ok {
			m[k] = encodeNode(idx, child)
		}
	}
	return map[string]any{"type": "obj", "id": encodeTS(n.Id), "map": m}
}

func encodeVec(idx *crdtnode.Index, n *crdtnode.Vec) map[string]any {
	maxIdx := -1
	for i := range n.Fields {
		if int(i) > maxIdx {
			maxIdx = int(i)
		}
	}
	elements := make([]any, maxIdx+1)
	for i, childTS := range n.Fields {
		if child, ok := idx.Get(childTS); ok {
			elements[i] = encodeNode(idx, child)
		}
	}
	return map[string]any{"type": "vec", "id": encodeTS(n.Id), "map": elements}
}

func encodeStr(n *crdtnode.Str) map[string]any {
	chunks := make([]any, 0, len(n.Seq.Chunks()))
	for _, c := range n.Seq.Chunks() {
		if c.Tombstoned {
			chunks = append(chunks, map[string]any{"id": encodeTS(c.ID), "span": c.Span})
		} else {
			chunks = append(chunks, map[string]any{"id": encodeTS(c.ID), "value": string(c.Values)})
		}
	}
	return map[string]any{"type": "str", "id": encodeTS(n.Id), "chunks": chunks}
}

func encodeBin(n *crdtnode.Bin) map[string]any {
	chunks := make([]any, 0, len(n.Seq.Chunks()))
	for _, c := range n.Seq.Chunks() {
		if c.Tombstoned {
			chunks = append(chunks, map[string]any{"id": encodeTS(c.ID), "span": c.Span})
		} else {
			chunks = append(chunks, map[string]any{"id": encodeTS(c.ID), "value": base64.StdEncoding.EncodeToString(c.Values)})
		}
	}
	return map[string]any{"type": "bin", "id": encodeTS(n.Id), "chunks": chunks}
}

func encodeArr(idx *crdtnode.Index, n *crdtnode.Arr) map[string]any {
	chunks := make([]any, 0, len(n.Seq.Chunks()))
	for _, c := range n.Seq.Chunks() {
		if c.Tombstoned {
			chunks = append(chunks, map[string]any{"id": encodeTS(c.ID), "span": c.Span})
			continue
		}
		values := make([]any, 0, len(c.Values))
		for _, childTS := range c.Values {
			if child, ok := idx.Get(childTS); ok {
				values = append(values, encodeNode(idx, child))
			}
		}
		chunks = append(chunks, map[string]any{"id": encodeTS(c.ID), "value": values})
	}
	return map[string]any{"type": "arr", "id": encodeTS(n.Id), "chunks": chunks}
}

// decodeNode dispatches on the node object's "type" field, inserts the
// decoded node into m's index, and returns its timestamp.
func decodeNode(m *model.Model, v any) (clock.Timestamp, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return clock.Timestamp{}, errors.Wrapf(ErrFormat, "node must be an object")
	}
	typ, ok := obj["type"].(string)
	if !ok {
		return clock.Timestamp{}, errors.Wrapf(ErrMissingField, "type")
	}
	id, err := requireTS(obj, "id")
	if err != nil {
		return clock.Timestamp{}, err
	}
	// The ORIGIN id only appears as the undefined placeholder an encoder
	// emits for an unset register; it is never a real node, and decoding
	// one would plant it over the root Val register's own index slot.
	if id == clock.ORIGIN {
		return clock.ORIGIN, nil
	}
	switch typ {
	case "con":
		return decodeCon(m, obj, id)
	case "val":
		return decodeVal(m, obj, id)
	case "obj":
		return decodeObj(m, obj, id)
	case "vec":
		return decodeVec(m, obj, id)
	case "str":
		return decodeStr(m, obj, id)
	case "bin":
		return decodeBin(m, obj, id)
	case "arr":
		return decodeArr(m, obj, id)
	default:
		return clock.Timestamp{}, errors.Wrapf(ErrUnknownType, "%q", typ)
	}
}

func requireTS(obj map[string]any, field string) (clock.Timestamp, error) {
	v, ok := obj[field]
	if !ok {
		return clock.Timestamp{}, errors.Wrapf(ErrMissingField, "%s", field)
	}
	return decodeTS(v)
}

func decodeCon(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	if isTS, _ := obj["timestamp"].(bool); isTS {
		refVal, ok := obj["value"]
		if !ok {
			return clock.Timestamp{}, errors.Wrapf(ErrMissingField, "con.value (timestamp)")
		}
		ref, err := decodeTS(refVal)
		if err != nil {
			return clock.Timestamp{}, err
		}
		m.Index().Put(crdtnode.NewConRef(id, ref))
		return id, nil
	}
	m.Index().Put(crdtnode.NewCon(id, obj["value"]))
	return id, nil
}

func decodeVal(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	v := crdtnode.NewVal(id)
	if valueVal, ok := obj["value"]; ok {
		childTS, err := decodeNode(m, valueVal)
		if err != nil {
			return clock.Timestamp{}, err
		}
		v.Set(childTS)
	}
	m.Index().Put(v)
	return id, nil
}

func decodeObj(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	mapVal, ok := obj["map"].(map[string]any)
	if !ok {
		return clock.Timestamp{}, errors.Wrapf(ErrMissingField, "obj.map")
	}
	o := crdtnode.NewObj(id)
	for key, childVal := range mapVal {
		childTS, err := decodeNode(m, childVal)
		if err != nil {
			return clock.Timestamp{}, err
		}
		o.Fields[key] = childTS
	}
	m.Index().Put(o)
	return id, nil
}

func decodeVec(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	elements, ok := obj["map"].([]any)
	if !ok {
		return clock.Timestamp{}, errors.Wrapf(ErrMissingField, "vec.map")
	}
	v := crdtnode.NewVec(id)
	for i, elem := range elements {
		if elem == nil {
			continue
		}
		childTS, err := decodeNode(m, elem)
		if err != nil {
			return clock.Timestamp{}, err
		}
		v.Fields[uint32(i)] = childTS
	}
	m.Index().Put(v)
	return id, nil
}

func decodeChunks(obj map[string]any, field string) ([]any, error) {
	chunks, ok := obj[field].([]any)
	if !ok {
		return nil, errors.Wrapf(ErrMissingField, "%s", field)
	}
	return chunks, nil
}

func decodeStr(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	chunkVals, err := decodeChunks(obj, "chunks")
	if err != nil {
		return clock.Timestamp{}, err
	}
	views := make([]rga.ChunkView[rune], 0, len(chunkVals))
	for _, cv := range chunkVals {
		view, err := decodeChunk(cv, func(v any) ([]rune, error) {
			s, ok := v.(string)
			if !ok {
				return nil, errors.Wrapf(ErrFormat, "str chunk value must be a string")
			}
			return []rune(s), nil
		})
		if err != nil {
			return clock.Timestamp{}, errors.Wrap(err, "verbose: str chunk")
		}
		views = append(views, view)
	}
	m.Index().Put(&crdtnode.Str{Id: id, Seq: rga.RestoreChunks(views)})
	return id, nil
}

func decodeBin(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	chunkVals, err := decodeChunks(obj, "chunks")
	if err != nil {
		return clock.Timestamp{}, err
	}
	views := make([]rga.ChunkView[byte], 0, len(chunkVals))
	for _, cv := range chunkVals {
		view, err := decodeChunk(cv, func(v any) ([]byte, error) {
			s, ok := v.(string)
			if !ok {
				return nil, errors.Wrapf(ErrFormat, "bin chunk value must be base64 string")
			}
			data, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, errors.Wrap(err, "verbose: bin chunk base64")
			}
			return data, nil
		})
		if err != nil {
			return clock.Timestamp{}, errors.Wrap(err, "verbose: bin chunk")
		}
		views = append(views, view)
	}
	m.Index().Put(&crdtnode.Bin{Id: id, Seq: rga.RestoreChunks(views)})
	return id, nil
}

func decodeArr(m *model.Model, obj map[string]any, id clock.Timestamp) (clock.Timestamp, error) {
	chunkVals, err := decodeChunks(obj, "chunks")
	if err != nil {
		return clock.Timestamp{}, err
	}
	views := make([]rga.ChunkView[clock.Timestamp], 0, len(chunkVals))
	for _, cv := range chunkVals {
		view, err := decodeChunk(cv, func(v any) ([]clock.Timestamp, error) {
			elems, ok := v.([]any)
			if !ok {
				return nil, errors.Wrapf(ErrFormat, "arr chunk value must be an array")
			}
			out := make([]clock.Timestamp, 0, len(elems))
			for _, e := range elems {
				childTS, err := decodeNode(m, e)
				if err != nil {
					return nil, err
				}
				out = append(out, childTS)
			}
			return out, nil
		})
		if err != nil {
			return clock.Timestamp{}, errors.Wrap(err, "verbose: arr chunk")
		}
		views = append(views, view)
	}
	m.Index().Put(crdtnode.RestoreArr(id, rga.RestoreChunks(views), nil))
	return id, nil
}

// decodeChunk handles the shared {"id":…,"span":n} / {"id":…,"value":…}
// chunk shape; a tombstoned chunk carries its span in place of a
// payload. The verbose form carries no origin field; it is a
// diagnostics codec, not one meant to survive further concurrent RGA
// inserts, so reconstructed chunks are chained in document order with
// origin left at clock.ORIGIN; View() and Children() are unaffected.
func decodeChunk[T any](v any, values func(any) ([]T, error)) (rga.ChunkView[T], error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return rga.ChunkView[T]{}, errors.Wrapf(ErrFormat, "chunk must be an object")
	}
	id, err := requireTS(obj, "id")
	if err != nil {
		return rga.ChunkView[T]{}, err
	}
	if spanVal, ok := obj["span"]; ok {
		span, ok := spanVal.(float64)
		if !ok {
			return rga.ChunkView[T]{}, errors.Wrapf(ErrFormat, "chunk span must be a number")
		}
		return rga.ChunkView[T]{ID: id, Origin: clock.ORIGIN, Span: uint64(span), Tombstoned: true}, nil
	}
	valueVal, ok := obj["value"]
	if !ok {
		return rga.ChunkView[T]{}, errors.Wrapf(ErrFormat, "chunk must have span or value")
	}
	vals, err := values(valueVal)
	if err != nil {
		return rga.ChunkView[T]{}, err
	}
	return rga.ChunkView[T]{ID: id, Origin: clock.ORIGIN, Span: spanOf(vals), Values: vals}, nil
}

func spanOf[T any](vals []T) uint64 {
	return uint64(len(vals))
}
