package bptree

import (
	"math/rand"
	"sort"
	"testing"
)

func TestInsertGet(t *testing.T) {
	tree := New[string, int](4)
	words := []string{"delta", "alpha", "charlie", "bravo", "echo"}
	for i, w := range words {
		tree.Insert(w, i)
	}
	for i, w := range words {
		v, ok := tree.Get(w)
		if !ok || v != i {
			t.Fatalf("Get(%q) = %d, %v; want %d, true", w, v, ok, i)
		}
	}
	if _, ok := tree.Get("missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestInOrderIsSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := New[int, int](5)
	var want []int
	seen := make(map[int]bool)
	for len(want) < 200 {
		k := rng.Intn(10000)
		if seen[k] {
			continue
		}
		seen[k] = true
		want = append(want, k)
		tree.Insert(k, k*2)
	}
	sort.Ints(want)
	pairs := tree.InOrder()
	if len(pairs) != len(want) {
		t.Fatalf("got %d entries, want %d", len(pairs), len(want))
	}
	for i, p := range pairs {
		if p.Key != want[i] {
			t.Fatalf("entry %d: key=%d, want %d", i, p.Key, want[i])
		}
		if p.Value != p.Key*2 {
			t.Fatalf("entry %d: value=%d, want %d", i, p.Value, p.Key*2)
		}
	}
}

func TestInsertOverwrites(t *testing.T) {
	tree := New[string, int](3)
	tree.Insert("a", 1)
	tree.Insert("a", 2)
	v, ok := tree.Get("a")
	if !ok || v != 2 {
		t.Fatalf("expected overwritten value 2, got %d, %v", v, ok)
	}
	if tree.Len() != 1 {
		t.Fatalf("expected 1 key after overwrite, got %d", tree.Len())
	}
}

func TestLen(t *testing.T) {
	tree := New[int, struct{}](4)
	for i := 0; i < 50; i++ {
		tree.Insert(i, struct{}{})
	}
	if tree.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", tree.Len())
	}
}
