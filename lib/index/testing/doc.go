// Package testing provides reusable test and benchmark suites for
// index.OrderedIndex implementations. Engine packages call
// RunOrderedIndexTests / RunOrderedIndexBenchmarks from their own _test.go
// files so every engine is held to the same contract: build/lookup
// round-trips, overwrite semantics, erase behavior, ordered range iteration,
// range sums, and (for engines that support it) merging bulk loads.
package testing
