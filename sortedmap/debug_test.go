//go:build sortedmap_debug

package sortedmap

import (
	"math/rand"
	"testing"
)

func TestRedBlackInvariantsUnderRandomChurn(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	m := New[int, int](intCompare)
	live := map[int]bool{}
	for i := 0; i < 2000; i++ {
		k := r.Intn(500)
		if live[k] && r.Intn(2) == 0 {
			m.EraseByKey(k)
			delete(live, k)
		} else {
			m.Insert(k, i)
			live[k] = true
		}
		m.assertRedBlackTree()
	}
	if m.Len() != len(live) {
		t.Fatalf("expected %d entries after churn, got %d", len(live), m.Len())
	}
}
