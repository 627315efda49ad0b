package util

import (
	"container/heap"
)

// item is a single queued key. The index field is maintained by the heap
// package so the key can be removed in O(log n) after a map lookup.
type item struct {
	key   uint64
	index int
}

// KeyHeap is a deduplicated set of uint64 keys ordered ascending.
// It combines a binary min-heap with a hash map so that membership checks
// and the duplicate check on insertion are O(1) (amortized); adding a new key
// is O(log n) and ordered draining is O(n log n).
//
// Thread-safety: KeyHeap is not thread-safe; callers synchronize externally.
type KeyHeap struct {
	items    []*item
	itemsMap map[uint64]*item
}

// NewKeyHeap creates an empty key heap.
func NewKeyHeap() *KeyHeap {
	return &KeyHeap{
		items:    make([]*item, 0),
		itemsMap: make(map[uint64]*item),
	}
}

// Len returns the number of keys in the heap (part of heap.Interface)
func (kh *KeyHeap) Len() int { return len(kh.items) }

// Less orders keys ascending (part of heap.Interface)
func (kh *KeyHeap) Less(i, j int) bool {
	return kh.items[i].key < kh.items[j].key
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (kh *KeyHeap) Swap(i, j int) {
	kh.items[i], kh.items[j] = kh.items[j], kh.items[i]
	kh.items[i].index = i
	kh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (kh *KeyHeap) Push(x interface{}) {
	n := len(kh.items)
	it := x.(*item)
	it.index = n
	kh.items = append(kh.items, it)
	kh.itemsMap[it.key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (kh *KeyHeap) Pop() interface{} {
	old := kh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1  // For safety
	kh.items = old[:n-1]
	delete(kh.itemsMap, it.key)
	return it
}

// Add inserts a key. It returns whether the key was newly added; adding a
// key that is already present is a no-op.
func (kh *KeyHeap) Add(key uint64) bool {
	if _, exists := kh.itemsMap[key]; exists {
		return false
	}
	heap.Push(kh, &item{key: key})
	return true
}

// Remove deletes a key. It returns whether the key was present.
func (kh *KeyHeap) Remove(key uint64) bool {
	it, exists := kh.itemsMap[key]
	if !exists {
		return false
	}
	heap.Remove(kh, it.index)
	return true
}

// Contains checks if a key is present.
func (kh *KeyHeap) Contains(key uint64) bool {
	_, exists := kh.itemsMap[key]
	return exists
}

// Min returns the smallest key without removing it.
func (kh *KeyHeap) Min() (uint64, bool) {
	if len(kh.items) == 0 {
		return 0, false
	}
	return kh.items[0].key, true
}

// PopMin removes and returns the smallest key.
func (kh *KeyHeap) PopMin() (uint64, bool) {
	if len(kh.items) == 0 {
		return 0, false
	}
	it := heap.Pop(kh).(*item)
	return it.key, true
}

// Drain removes all keys and returns them in ascending order, leaving the
// heap empty and reusable.
func (kh *KeyHeap) Drain() []uint64 {
	if len(kh.items) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(kh.items))
	for len(kh.items) > 0 {
		out = append(out, heap.Pop(kh).(*item).key)
	}
	return out
}

// DrainN removes up to n of the smallest keys and returns them ascending.
func (kh *KeyHeap) DrainN(n int) []uint64 {
	if n <= 0 || len(kh.items) == 0 {
		return nil
	}
	if n > len(kh.items) {
		n = len(kh.items)
	}
	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, heap.Pop(kh).(*item).key)
	}
	return out
}
