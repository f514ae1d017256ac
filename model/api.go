package model

import (
	"fmt"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// PathError reports a Model API path that does not resolve to a usable
// node: a missing key, an out-of-range index, or a step applied to the
// wrong container kind. A failed path operation never mutates the model.
type PathError struct {
	Path   []any
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("model: invalid path %v: %s", e.Path, e.Reason)
}

// Read resolves path (a sequence of string object keys and int vec/array
// indices) starting at the document root and returns the plain JSON view
// of whatever node it lands on. An empty path reads the whole document.
func (m *Model) Read(path []any) (any, error) {
	n, err := m.walk(path)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	return n.View(m.idx), nil
}

// walk resolves path against the document root, returning the node at
// its end. An empty path returns the root's current child (nil, nil if
// the document has no root yet).
func (m *Model) walk(path []any) (crdtnode.Node, error) {
	node, ok := m.idx.Get(m.root.Child)
	if !ok || m.root.Child == clock.ORIGIN {
		if len(path) == 0 {
			return nil, nil
		}
		return nil, &PathError{Path: path, Reason: "document has no root"}
	}
	for i, step := range path {
		next, err := stepInto(node, step)
		if err != nil {
			err.(*PathError).Path = path[:i+1]
			return nil, err
		}
		child, ok := m.idx.Get(next)
		if !ok {
			return nil, &PathError{Path: path[:i+1], Reason: "referenced node has been collected"}
		}
		node = child
	}
	return node, nil
}

func stepInto(node crdtnode.Node, step any) (clock.Timestamp, error) {
	switch s := step.(type) {
	case string:
		obj, ok := node.(*crdtnode.Obj)
		if !ok {
			return clock.Timestamp{}, &PathError{Reason: "not an object"}
		}
		ts, ok := obj.Fields[s]
		if !ok {
			return clock.Timestamp{}, &PathError{Reason: "key not found: " + s}
		}
		return ts, nil
	case int:
		switch c := node.(type) {
		case *crdtnode.Vec:
			ts, ok := c.Fields[uint32(s)]
			if !ok {
				return clock.Timestamp{}, &PathError{Reason: "index not found"}
			}
			return ts, nil
		case *crdtnode.Arr:
			slot, ok := c.Seq.Find(s)
			if !ok {
				return clock.Timestamp{}, &PathError{Reason: "array index out of range"}
			}
			ts, ok := c.Seq.ValueAt(slot)
			if !ok {
				return clock.Timestamp{}, &PathError{Reason: "array index out of range"}
			}
			return ts, nil
		default:
			return clock.Timestamp{}, &PathError{Reason: "not indexable"}
		}
	default:
		return clock.Timestamp{}, &PathError{Reason: fmt.Sprintf("unsupported path step %T", step)}
	}
}

// newBuilder seeds a patch.Builder at the next unused local timestamp.
func (m *Model) newBuilder() *patch.Builder {
	return m.NewBuilder()
}

// NewBuilder seeds a patch.Builder at the next unused local timestamp for
// this model's session, for callers (such as package diff) that need to
// synthesize operations against this model from outside the package.
func (m *Model) NewBuilder() *patch.Builder {
	return patch.NewBuilder(m.clk.Local(), m.clk.Max(m.clk.Local())+1)
}

// buildValue recursively emits new_* (+ ins_obj/ins_arr) operations for
// an arbitrary JSON-compatible Go value, returning the timestamp of the
// node it created. Maps become Obj, slices become Arr, everything else
// becomes a literal Con.
func buildValue(b *patch.Builder, v any) clock.Timestamp {
	switch val := v.(type) {
	case map[string]any:
		objID := b.NewObj()
		entries := make([]patch.ObjEntry, 0, len(val))
		for k, vv := range val {
			entries = append(entries, patch.ObjEntry{Key: k, Value: buildValue(b, vv)})
		}
		if len(entries) > 0 {
			b.InsObj(objID, entries...)
		}
		return objID
	case []any:
		arrID := b.NewArr()
		ids := make([]clock.Timestamp, 0, len(val))
		for _, vv := range val {
			ids = append(ids, buildValue(b, vv))
		}
		if len(ids) > 0 {
			b.InsArr(arrID, clock.ORIGIN, ids)
		}
		return arrID
	default:
		return b.NewConLiteral(v)
	}
}

// ObjPut writes a single key into the Obj node at path, creating
// whatever node tree value needs and wiring it in by per-key LWW.
func (m *Model) ObjPut(path []any, key string, value any) error {
	node, err := m.walk(path)
	if err != nil {
		return err
	}
	obj, ok := node.(*crdtnode.Obj)
	if !ok {
		return &PathError{Path: path, Reason: "target is not an object"}
	}
	b := m.newBuilder()
	valTS := buildValue(b, value)
	b.InsObj(obj.ID(), patch.ObjEntry{Key: key, Value: valTS})
	return m.ApplyPatch(b.Flush())
}

// ArrPush appends value to the end of the Arr node at path.
func (m *Model) ArrPush(path []any, value any) error {
	node, err := m.walk(path)
	if err != nil {
		return err
	}
	arr, ok := node.(*crdtnode.Arr)
	if !ok {
		return &PathError{Path: path, Reason: "target is not an array"}
	}
	b := m.newBuilder()
	valTS := buildValue(b, value)
	ref := clock.ORIGIN
	if n := arr.Seq.Len(); n > 0 {
		if last, ok := arr.Seq.Find(n - 1); ok {
			ref = last
		}
	}
	b.InsArr(arr.ID(), ref, []clock.Timestamp{valTS})
	return m.ApplyPatch(b.Flush())
}

// StrIns inserts text at rune offset pos into the Str node at path.
func (m *Model) StrIns(path []any, pos int, text string) error {
	node, err := m.walk(path)
	if err != nil {
		return err
	}
	str, ok := node.(*crdtnode.Str)
	if !ok {
		return &PathError{Path: path, Reason: "target is not a string"}
	}
	ref := clock.ORIGIN
	if pos > 0 {
		anchor, ok := str.Seq.Find(pos - 1)
		if !ok {
			return &PathError{Path: path, Reason: "string insert position out of range"}
		}
		ref = anchor
	}
	b := m.newBuilder()
	b.InsStr(str.ID(), ref, text)
	return m.ApplyPatch(b.Flush())
}

// Remove deletes key from the Obj, Vec, or Arr node at path. Object and
// vec keys have no true tombstone: "removing" a key writes the reserved
// undefined Con as its value, which Obj.View renders as an absent key.
// Array elements are removed by tombstoning their RGA slot.
func (m *Model) Remove(path []any, key any) error {
	node, err := m.walk(path)
	if err != nil {
		return err
	}
	b := m.newBuilder()
	switch c := node.(type) {
	case *crdtnode.Obj:
		k, ok := key.(string)
		if !ok {
			return &PathError{Path: path, Reason: "object key must be a string"}
		}
		b.InsObj(c.ID(), patch.ObjEntry{Key: k, Value: b.NewConUndefined()})
	case *crdtnode.Vec:
		i, ok := key.(int)
		if !ok {
			return &PathError{Path: path, Reason: "vec index must be an int"}
		}
		b.InsVec(c.ID(), patch.VecEntry{Index: uint32(i), Value: b.NewConUndefined()})
	case *crdtnode.Arr:
		i, ok := key.(int)
		if !ok {
			return &PathError{Path: path, Reason: "array index must be an int"}
		}
		span := c.Seq.FindInterval(i, 1)
		if len(span) == 0 {
			return &PathError{Path: path, Reason: "array index out of range"}
		}
		b.Del(c.ID(), span...)
	default:
		return &PathError{Path: path, Reason: "target does not support removal"}
	}
	return m.ApplyPatch(b.Flush())
}

// Replace overwrites the value at path. For the document root this is an
// ins_val at ORIGIN; for an object/vec key it is identical to ObjPut's
// per-key LWW (a write is already a replace under LWW); for an array
// element it uses upd_arr so the slot's position is preserved.
func (m *Model) Replace(path []any, value any) error {
	if len(path) == 0 {
		b := m.newBuilder()
		valTS := buildValue(b, value)
		b.InsVal(clock.ORIGIN, valTS)
		return m.ApplyPatch(b.Flush())
	}
	parent := path[:len(path)-1]
	last := path[len(path)-1]
	node, err := m.walk(parent)
	if err != nil {
		return err
	}
	switch c := node.(type) {
	case *crdtnode.Obj:
		key, ok := last.(string)
		if !ok {
			return &PathError{Path: path, Reason: "object key must be a string"}
		}
		return m.ObjPut(parent, key, value)
	case *crdtnode.Vec:
		i, ok := last.(int)
		if !ok {
			return &PathError{Path: path, Reason: "vec index must be an int"}
		}
		b := m.newBuilder()
		valTS := buildValue(b, value)
		b.InsVec(c.ID(), patch.VecEntry{Index: uint32(i), Value: valTS})
		return m.ApplyPatch(b.Flush())
	case *crdtnode.Arr:
		i, ok := last.(int)
		if !ok {
			return &PathError{Path: path, Reason: "array index must be an int"}
		}
		slot, ok := c.Seq.Find(i)
		if !ok {
			return &PathError{Path: path, Reason: "array index out of range"}
		}
		b := m.newBuilder()
		valTS := buildValue(b, value)
		b.UpdArr(c.ID(), slot, valTS)
		return m.ApplyPatch(b.Flush())
	default:
		return &PathError{Path: path, Reason: "target does not support replace"}
	}
}

// Add writes value at a previously-absent location. For the root and for
// object/vec keys it behaves like Replace (their registers are LWW, so
// writing an absent key is already an add); for an array it appends.
func (m *Model) Add(path []any, value any) error {
	if len(path) == 0 {
		return m.Replace(path, value)
	}
	parent := path[:len(path)-1]
	node, err := m.walk(parent)
	if err != nil {
		return err
	}
	if _, ok := node.(*crdtnode.Arr); ok {
		return m.ArrPush(parent, value)
	}
	return m.Replace(path, value)
}
