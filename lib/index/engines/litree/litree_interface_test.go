package litree

import (
	"testing"

	"github.com/ValentinKolb/hIndex/lib/index"
	idxtesting "github.com/ValentinKolb/hIndex/lib/index/testing"
)

func Test(t *testing.T) {
	idxtesting.RunOrderedIndexTests(t, "LITree", func() index.OrderedIndex {
		return NewLITree(nil)
	})
}

func Benchmark(b *testing.B) {
	idxtesting.RunOrderedIndexBenchmarks(b, "LITree", func() index.OrderedIndex {
		return NewLITree(nil)
	})
}

// Dense sequential keys force slot conflicts and exercise the subtree
// rebuild path.
func TestDenseInsertRebuild(t *testing.T) {
	idx := NewLITree(nil)
	defer idx.Close()

	if _, err := idx.Build(nil, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	const n = 50_000
	for i := uint64(0); i < n; i++ {
		if err := idx.Insert(i, i*2); err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
	}

	if idx.Size() != n {
		t.Fatalf("Expected size %d, got %d", n, idx.Size())
	}

	for i := uint64(0); i < n; i++ {
		v, ok := idx.Lookup(i)
		if !ok {
			t.Fatalf("Key %d not found", i)
		}
		if v != i*2 {
			t.Fatalf("Key %d: expected %d, got %d", i, i*2, v)
		}
	}

	// ordered iteration must still be correct after rebuilds
	var prev uint64
	first := true
	idx.AscendRange(0, n, func(e index.Entry) bool {
		if !first && e.Key <= prev {
			t.Fatalf("Iteration out of order: %d after %d", e.Key, prev)
		}
		prev = e.Key
		first = false
		return true
	})
}

// BulkLoad on a populated tree must preserve entries outside the batch even
// when batch keys interleave tightly with existing ones.
func TestBulkLoadInterleaved(t *testing.T) {
	idx := NewLITree(nil).(*litreeImpl)
	defer idx.Close()

	entries := make([]index.Entry, 0, 500)
	for i := uint64(0); i < 1000; i += 2 {
		entries = append(entries, index.Entry{Key: i, Value: i})
	}
	if _, err := idx.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	batch := make([]index.Entry, 0, 500)
	for i := uint64(1); i < 1000; i += 2 {
		batch = append(batch, index.Entry{Key: i, Value: i * 100})
	}
	if err := idx.BulkLoad(batch); err != nil {
		t.Fatalf("BulkLoad failed: %v", err)
	}

	if idx.Size() != 1000 {
		t.Fatalf("Expected 1000 keys after merge, got %d", idx.Size())
	}

	for i := uint64(0); i < 1000; i++ {
		v, ok := idx.Lookup(i)
		if !ok {
			t.Fatalf("Key %d missing after merge", i)
		}
		want := i
		if i%2 == 1 {
			want = i * 100
		}
		if v != want {
			t.Fatalf("Key %d: expected %d, got %d", i, want, v)
		}
	}
}
