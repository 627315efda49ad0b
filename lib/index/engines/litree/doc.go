// Package litree implements the lookup-optimized ordered index engine: a
// learned interpolation tree. It provides a complete implementation of the
// index.OrderedIndex interface (plus index.BulkLoadable) with a focus on
// constant-factor point lookups.
//
// Each node owns a gapped slot array and a linear model mapping a key
// directly to a slot; a lookup descends from the root computing one model
// prediction per level with no per-node search at all. A slot holds either
// nothing, one entry, or a child node created when several keys predict the
// same slot. Because the per-node model is monotone, slot order equals key
// order, so ordered iteration is a plain in-order traversal.
//
// Mutation is the expensive side of the trade-off:
//
//   - Insert places the entry at its predicted slot; a collision with a
//     different key replaces the slot with a child node built from both
//     entries. Subtrees that have absorbed more inserts than they had
//     entries at build time are rebuilt from scratch, which keeps chains of
//     conflict nodes from accumulating and restores the gapped layout.
//
//   - BulkLoad merges a sorted batch with the current contents (batch wins on
//     key conflicts) and rebuilds the tree from the merged set. Prior entries
//     for keys not in the batch survive; this is the merge semantics the
//     composite's migration path depends on.
//
//   - Build replaces the contents entirely.
//
// Thread-safety: the engine is not synchronized; the composite serializes
// access.
package litree
