// Package diff implements the structural diff engine: given a model and
// a target JSON value, it synthesizes the smallest patch that would
// bring the model's view to match the target. It is the structural
// counterpart to package model's direct mutation helpers; where
// model.ObjPut/ArrPush/StrIns know exactly which operation to emit,
// Diff works backwards from "here is the value I want" to the ops that
// produce it.
package diff

import (
	"reflect"
	"sort"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/model"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// Diff compares m's current view against target and returns a patch
// that, once applied to m, makes m.View() deep-equal to target. It
// returns a nil patch (and nil error) when the views already match.
func Diff(m *model.Model, target any) (*patch.Patch, error) {
	b := m.NewBuilder()
	root, _ := m.Index().Get(m.RootChild())

	if rootEqual(root, m.Index(), target) {
		return nil, nil
	}

	valTS := diffRoot(b, m.Index(), root, target)
	if valTS != m.RootChild() {
		b.InsVal(clock.ORIGIN, valTS)
	}
	return b.Flush(), nil
}

// ApplyDiff is the convenience composition Diff+ApplyPatch. It lives
// here rather than on Model because diff already imports model, so the
// reverse dependency would be a cycle.
func ApplyDiff(m *model.Model, target any) error {
	p, err := Diff(m, target)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	return m.ApplyPatch(p)
}

func rootEqual(root crdtnode.Node, idx *crdtnode.Index, target any) bool {
	if root == nil {
		return target == nil
	}
	return reflect.DeepEqual(root.View(idx), target)
}

// diffRoot decides which node the root register should end up pointing
// at and returns its timestamp. Scalar root replacement, empty-root
// bootstrap, and the full root-replace fallback all reduce to "build a
// fresh value and swap the register", differing only in how much of the
// existing tree can be reused; the recursive object diff is the one
// case that reuses the existing container wholesale (editing obj.Id in
// place) rather than allocating a new root value.
func diffRoot(b *patch.Builder, idx *crdtnode.Index, root crdtnode.Node, target any) clock.Timestamp {
	targetObj, targetIsObj := target.(map[string]any)
	currentObj, currentIsObj := root.(*crdtnode.Obj)

	if targetIsObj && currentIsObj {
		diffObj(b, idx, currentObj, targetObj)
		return currentObj.ID()
	}
	return buildValue(b, target)
}

// diffObj emits ins_obj entries turning obj's current key set and values
// into target: new keys are created, keys target no longer has become
// the reserved-undefined Con (there is no true per-key tombstone), and
// keys present on both sides recurse so an unchanged subtree costs
// nothing. Entries are emitted in sorted key order for deterministic
// byte-identical output across replicas computing the same diff.
func diffObj(b *patch.Builder, idx *crdtnode.Index, obj *crdtnode.Obj, target map[string]any) {
	keys := make(map[string]struct{}, len(obj.Fields)+len(target))
	for k := range obj.Fields {
		keys[k] = struct{}{}
	}
	for k := range target {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var entries []patch.ObjEntry
	for _, key := range sorted {
		targetVal, wanted := target[key]
		childTS, has := obj.Fields[key]

		switch {
		case !wanted:
			if child, ok := idx.Get(childTS); ok {
				if con, isCon := child.(*crdtnode.Con); isCon && con.IsUndefined() {
					continue // already removed
				}
			}
			entries = append(entries, patch.ObjEntry{Key: key, Value: b.NewConUndefined()})
		case !has:
			entries = append(entries, patch.ObjEntry{Key: key, Value: buildValue(b, targetVal)})
		default:
			child, ok := idx.Get(childTS)
			if !ok {
				entries = append(entries, patch.ObjEntry{Key: key, Value: buildValue(b, targetVal)})
				continue
			}
			// A removed key being written again is an add, not an edit of
			// the undefined marker.
			if con, isCon := child.(*crdtnode.Con); isCon && con.IsUndefined() {
				entries = append(entries, patch.ObjEntry{Key: key, Value: buildValue(b, targetVal)})
				continue
			}
			if reflect.DeepEqual(child.View(idx), targetVal) {
				continue
			}
			if newTS, changed := diffChild(b, idx, child, targetVal); changed {
				entries = append(entries, patch.ObjEntry{Key: key, Value: newTS})
			}
		}
	}
	if len(entries) > 0 {
		b.InsObj(obj.ID(), entries...)
	}
}

// diffChild dispatches on the existing node's kind: Obj recurses,
// Str/Bin/Arr take the per-sequence delta path, and anything else (a
// scalar Con, or a kind mismatch with the target value) is replaced
// wholesale. It
// reports false when the existing container was edited in place (its
// id is unchanged, so the parent's entry pointing at it is still
// correct and must NOT be re-emitted), true when a new node was
// allocated and the parent needs a fresh entry pointing at it.
func diffChild(b *patch.Builder, idx *crdtnode.Index, child crdtnode.Node, target any) (clock.Timestamp, bool) {
	switch c := child.(type) {
	case *crdtnode.Obj:
		if targetObj, ok := target.(map[string]any); ok {
			diffObj(b, idx, c, targetObj)
			return c.ID(), false
		}
	case *crdtnode.Str:
		if targetStr, ok := target.(string); ok {
			diffStr(b, c, targetStr)
			return c.ID(), false
		}
	case *crdtnode.Bin:
		if targetBin, ok := target.([]byte); ok {
			diffBin(b, c, targetBin)
			return c.ID(), false
		}
	case *crdtnode.Arr:
		if targetArr, ok := target.([]any); ok {
			diffArr(b, idx, c, targetArr)
			return c.ID(), false
		}
	}
	return buildValue(b, target), true
}

// buildValue recursively emits new_* (+ ins_obj/ins_arr) operations for
// an arbitrary JSON-compatible Go value, returning the timestamp of the
// node it created. Maps become Obj and slices become Arr; everything
// else, including strings and byte slices, becomes a literal Con,
// matching model.ObjPut/ArrPush/StrIns's own buildValue: a bare Go
// string has no way to say "this should be a collaboratively-editable
// Str" versus "this is just a scalar", so diff never guesses Str/Bin
// into existence. A value only becomes (and stays) a Str or Bin node
// once something has explicitly created it that way, after which
// diffChild's per-sequence delta is what edits it.
func buildValue(b *patch.Builder, v any) clock.Timestamp {
	switch val := v.(type) {
	case map[string]any:
		objID := b.NewObj()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]patch.ObjEntry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, patch.ObjEntry{Key: k, Value: buildValue(b, val[k])})
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
