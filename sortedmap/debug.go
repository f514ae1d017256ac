//go:build sortedmap_debug

package sortedmap

import "fmt"

// assertRedBlackTree walks the whole tree and panics on the first
// violated invariant: BST key order, a black root, no red node with a
// red child, equal black-height on every root-to-leaf path, and parent
// backlinks that agree with their child links. Gated behind the
// sortedmap_debug build tag so it never runs in production builds.
func (m *Map[K, V]) assertRedBlackTree() {
	if m.root == nilIndex {
		if m.length != 0 {
			panic("sortedmap: empty root with nonzero length")
		}
		return
	}
	if arena := m.arena; arena[m.root].parent != nilIndex {
		panic("sortedmap: root has a parent")
	}
	if !isBlack(m.arena, m.root) {
		panic("sortedmap: root is red")
	}
	blackHeight(m.arena, m.root, m.compare)
}

// blackHeight recursively validates the subtree rooted at i and returns
// its black-height (the number of black nodes on any root-to-nil path,
// counting i itself when i is black).
func blackHeight[K, V any](arena []node[K, V], i int32, cmp func(a, b K) int) int {
	if i == nilIndex {
		return 0
	}
	n := arena[i]

	if l := n.left; l != nilIndex {
		if arena[l].parent != i {
			panic(fmt.Sprintf("sortedmap: node %d's left child has a mismatched parent backlink", i))
		}
		if cmp(arena[l].key, n.key) >= 0 {
			panic(fmt.Sprintf("sortedmap: node %d's left child is not strictly less", i))
		}
		if !n.black && !isBlack(arena, l) {
			panic(fmt.Sprintf("sortedmap: red node %d has a red left child", i))
		}
	}
	if r := n.right; r != nilIndex {
		if arena[r].parent != i {
			panic(fmt.Sprintf("sortedmap: node %d's right child has a mismatched parent backlink", i))
		}
		if cmp(arena[r].key, n.key) <= 0 {
			panic(fmt.Sprintf("sortedmap: node %d's right child is not strictly greater", i))
		}
		if !n.black && !isBlack(arena, r) {
			panic(fmt.Sprintf("sortedmap: red node %d has a red right child", i))
		}
	}

	lh := blackHeight(arena, n.left, cmp)
	rh := blackHeight(arena, n.right, cmp)
	if lh != rh {
		panic(fmt.Sprintf("sortedmap: node %d has unequal black-heights (%d vs %d)", i, lh, rh))
	}
	if isBlack(arena, i) {
		return lh + 1
	}
	return lh
}
