package diff

import (
	"reflect"

	"github.com/cshekharsharma/go-json-crdt/clock"
	"github.com/cshekharsharma/go-json-crdt/crdtnode"
	"github.com/cshekharsharma/go-json-crdt/patch"
)

// diffStr emits the per-sequence delta turning str's current text into
// target: the longest common prefix and suffix (counted in Unicode
// scalars, not bytes) are left untouched, and the differing middle is
// expressed as a single ins_str plus a single del covering the displaced
// live slots. A full bisecting text diff is not attempted here; the
// prefix/suffix trim already produces a minimal patch for the
// overwhelming majority of real edits, the single contiguous insertion
// or deletion a text editor actually performs.
func diffStr(b *patch.Builder, str *crdtnode.Str, target string) {
	current := str.Seq.View()
	want := []rune(target)

	prefix := commonPrefixLen(current, want)
	suffix := commonSuffixLen(current[prefix:], want[prefix:])

	oldMid := current[prefix : len(current)-suffix]
	newMid := want[prefix : len(want)-suffix]
	if len(oldMid) == 0 && len(newMid) == 0 {
		return
	}

	if len(oldMid) > 0 {
		spans := str.Seq.FindInterval(prefix, len(oldMid))
		if len(spans) > 0 {
			b.Del(str.ID(), spans...)
		}
	}
	if len(newMid) > 0 {
		ref := clock.ORIGIN
		if prefix > 0 {
			if anchor, ok := str.Seq.Find(prefix - 1); ok {
				ref = anchor
			}
		}
		b.InsStr(str.ID(), ref, string(newMid))
	}
}

// diffBin is diffStr's analogue for byte sequences: equality is on raw
// bytes (there is no scalar-boundary concept for binary data).
func diffBin(b *patch.Builder, bin *crdtnode.Bin, target []byte) {
	current := bin.Seq.View()
	want := target

	prefix := commonPrefixLenBytes(current, want)
	suffix := commonSuffixLenBytes(current[prefix:], want[prefix:])

	oldMid := current[prefix : len(current)-suffix]
	newMid := want[prefix : len(want)-suffix]
	if len(oldMid) == 0 && len(newMid) == 0 {
		return
	}

	if len(oldMid) > 0 {
		spans := bin.Seq.FindInterval(prefix, len(oldMid))
		if len(spans) > 0 {
			b.Del(bin.ID(), spans...)
		}
	}
	if len(newMid) > 0 {
		ref := clock.ORIGIN
		if prefix > 0 {
			if anchor, ok := bin.Seq.Find(prefix - 1); ok {
				ref = anchor
			}
		}
		b.InsBin(bin.ID(), ref, newMid)
	}
}

// diffArr emits the per-sequence delta for array children. When the
// array's length is unchanged, differing slots are LWW-updated in place
// via upd_arr rather than delete+insert, preserving each surviving
// element's RGA position so concurrent edits against other slots keep
// their anchors. Otherwise it falls back to the same prefix/suffix trim
// used for Str/Bin, with elements compared by JSON-value equality.
func diffArr(b *patch.Builder, idx *crdtnode.Index, arr *crdtnode.Arr, target []any) {
	liveSlots := arr.Seq.View()
	current := make([]any, len(liveSlots))
	for i, ts := range liveSlots {
		if child, ok := idx.Get(ts); ok {
			current[i] = child.View(idx)
		}
	}

	if len(current) == len(target) {
		for i := range current {
			if reflect.DeepEqual(current[i], target[i]) {
				continue
			}
			slot, _ := arr.Seq.Find(i)
			valTS := buildValue(b, target[i])
			b.UpdArr(arr.ID(), slot, valTS)
		}
		return
	}

	prefix := commonPrefixLenAny(current, target)
	suffix := commonSuffixLenAny(current[prefix:], target[prefix:])

	oldMid := liveSlots[prefix : len(liveSlots)-suffix]
	newMid := target[prefix : len(target)-suffix]

	if len(oldMid) > 0 {
		spans := arr.Seq.FindInterval(prefix, len(oldMid))
		if len(spans) > 0 {
			b.Del(arr.ID(), spans...)
		}
	}
	if len(newMid) > 0 {
		ref := clock.ORIGIN
		if prefix > 0 {
			if anchor, ok := arr.Seq.Find(prefix - 1); ok {
				ref = anchor
			}
		}
		ids := make([]clock.Timestamp, len(newMid))
		for i, v := range newMid {
			ids[i] = buildValue(b, v)
		}
		b.InsArr(arr.ID(), ref, ids)
	}
}

func commonPrefixLen(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

func commonPrefixLenBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLenBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

func commonPrefixLenAny(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && reflect.DeepEqual(a[i], b[i]) {
		i++
	}
	return i
}

func commonSuffixLenAny(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && reflect.DeepEqual(a[len(a)-1-i], b[len(b)-1-i]) {
		i++
	}
	return i
}
