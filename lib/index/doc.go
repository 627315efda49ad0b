// Package index defines the common surface for the ordered-key index engines
// used by this module. It plays the same role for index engines that a generic
// database interface plays for storage engines: implementations vary in their
// feature support (queryable via SupportsFeature), but any implementation must
// manage keys as a totally ordered uint64 space with at most one value per
// live key.
//
// The package contains:
//
//   - OrderedIndex: the interface every engine implements. It covers bulk
//     construction, point lookup, range aggregation, single-key mutation and
//     ordered iteration. Engines optimized for different halves of the
//     read/write trade-off (see the dpgm and litree engines) implement the
//     same surface so they can be composed behind one facade.
//
//   - BulkLoadable: an optional extension for engines that accept a sorted
//     batch and merge it into their current contents. Merge semantics are
//     load-bearing: prior entries for keys not in the batch survive the load.
//
//   - Error / RetCode: the error type shared by all engines and the composite.
//     Absence is not an error; it is reported through (value, ok) returns and,
//     for callers that need a flat uint64, through the NotFound sentinel.
//
//   - Feature: bit flags describing optional engine capabilities.
//
// Engines live under engines/ as subpackages with their own factories; the
// conformance suite in the testing subpackage exercises any OrderedIndex
// implementation against the shared contract.
package index
