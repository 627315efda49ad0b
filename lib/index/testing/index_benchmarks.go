package testing

import (
	"math/rand"
	"testing"

	"github.com/ValentinKolb/hIndex/lib/index"
)

// RunOrderedIndexBenchmarks runs all benchmarks for an OrderedIndex
// implementation.
func RunOrderedIndexBenchmarks(b *testing.B, name string, factory IndexFactory) {
	b.Run(name+"/Build", func(b *testing.B) {
		benchmarkBuild(b, factory)
	})

	b.Run(name+"/Lookup", func(b *testing.B) {
		benchmarkLookup(b, factory())
	})

	b.Run(name+"/LookupMiss", func(b *testing.B) {
		benchmarkLookupMiss(b, factory())
	})

	b.Run(name+"/Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run(name+"/RangeSum", func(b *testing.B) {
		benchmarkRangeSum(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

const benchEntries = 1_000_000

func benchEntrySet() []index.Entry {
	entries := make([]index.Entry, benchEntries)
	for i := range entries {
		key := uint64(i)*17 + 3
		entries[i] = index.Entry{Key: key, Value: key + 1}
	}
	return entries
}

func benchmarkBuild(b *testing.B, factory IndexFactory) {
	entries := benchEntrySet()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx := factory()
		if _, err := idx.Build(entries, 1); err != nil {
			b.Fatalf("Build failed: %v", err)
		}
		idx.Close()
	}
}

func benchmarkLookup(b *testing.B, idx index.OrderedIndex) {
	b.Cleanup(func() {
		idx.Close()
	})

	entries := benchEntrySet()
	if _, err := idx.Build(entries, 1); err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	rnd := rand.New(rand.NewSource(1))
	probe := make([]uint64, 4096)
	for i := range probe {
		probe[i] = entries[rnd.Intn(len(entries))].Key
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Lookup(probe[i%len(probe)])
	}
}

func benchmarkLookupMiss(b *testing.B, idx index.OrderedIndex) {
	b.Cleanup(func() {
		idx.Close()
	})

	if _, err := idx.Build(benchEntrySet(), 1); err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// all built keys are == 3 mod 17
		idx.Lookup(uint64(i)*17 + 4)
	}
}

func benchmarkInsert(b *testing.B, idx index.OrderedIndex) {
	b.Cleanup(func() {
		idx.Close()
	})

	requireFeature(b, idx, index.FeatureInsert)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := uint64(i)*7 + 1
		if err := idx.Insert(key, key); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}
}

func benchmarkRangeSum(b *testing.B, idx index.OrderedIndex) {
	b.Cleanup(func() {
		idx.Close()
	})

	requireFeature(b, idx, index.FeatureRange)

	if _, err := idx.Build(benchEntrySet(), 1); err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	span := uint64(17 * 1000) // ~1000 entries per range
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lo := uint64(i%1000) * span
		idx.RangeSum(lo, lo+span)
	}
}
