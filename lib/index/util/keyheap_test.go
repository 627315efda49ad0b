package util

import (
	"math/rand"
	"sort"
	"testing"
)

func TestKeyHeapAddDedup(t *testing.T) {
	kh := NewKeyHeap()

	if !kh.Add(42) {
		t.Errorf("First Add(42) should report newly added")
	}
	if kh.Add(42) {
		t.Errorf("Second Add(42) should be a no-op")
	}
	if kh.Len() != 1 {
		t.Errorf("Expected length 1 after duplicate Add, got %d", kh.Len())
	}
	if !kh.Contains(42) {
		t.Errorf("Contains(42) should be true")
	}
	if kh.Contains(7) {
		t.Errorf("Contains(7) should be false")
	}
}

func TestKeyHeapDrainAscending(t *testing.T) {
	kh := NewKeyHeap()

	rnd := rand.New(rand.NewSource(3))
	keys := make([]uint64, 0, 1000)
	for i := 0; i < 1000; i++ {
		k := uint64(rnd.Intn(10_000))
		if kh.Add(k) {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	drained := kh.Drain()
	if len(drained) != len(keys) {
		t.Fatalf("Drain returned %d keys, expected %d", len(drained), len(keys))
	}
	for i := range keys {
		if drained[i] != keys[i] {
			t.Fatalf("Drain position %d: expected %d, got %d", i, keys[i], drained[i])
		}
	}

	if kh.Len() != 0 {
		t.Errorf("Heap should be empty after Drain, has %d", kh.Len())
	}

	// the heap must be reusable after a drain
	if !kh.Add(1) {
		t.Errorf("Add after Drain failed")
	}
}

func TestKeyHeapDrainN(t *testing.T) {
	kh := NewKeyHeap()
	for _, k := range []uint64{5, 1, 9, 3, 7} {
		kh.Add(k)
	}

	got := kh.DrainN(3)
	want := []uint64{1, 3, 5}
	if len(got) != 3 {
		t.Fatalf("DrainN(3) returned %d keys", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DrainN position %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if kh.Len() != 2 {
		t.Errorf("Expected 2 keys left, got %d", kh.Len())
	}

	// over-asking drains everything
	rest := kh.DrainN(100)
	if len(rest) != 2 || rest[0] != 7 || rest[1] != 9 {
		t.Errorf("DrainN(100): expected [7 9], got %v", rest)
	}
}

func TestKeyHeapRemove(t *testing.T) {
	kh := NewKeyHeap()
	for _, k := range []uint64{5, 1, 9} {
		kh.Add(k)
	}

	if !kh.Remove(5) {
		t.Errorf("Remove(5) should report present")
	}
	if kh.Remove(5) {
		t.Errorf("Second Remove(5) should report absent")
	}

	if min, ok := kh.Min(); !ok || min != 1 {
		t.Errorf("Min: expected (1,true), got (%d,%v)", min, ok)
	}

	if got := kh.Drain(); len(got) != 2 || got[0] != 1 || got[1] != 9 {
		t.Errorf("Drain after Remove: expected [1 9], got %v", got)
	}
}
