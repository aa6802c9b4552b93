// Package nbtree implements the Necklace B-tree: a block-addressed,
// append-only storage structure for a single numeric time series. Series
// data lives in immutable, block-store-committed pages; the tree itself is
// a stack of per-level "extents" — the currently open, not-yet-committed
// node at each level — linked to previously committed siblings by
// back-links rather than by a conventional root pointer.
//
// A Tree is a single-writer object for one series. Callers serialize their
// own Append calls; a Search snapshot may be read concurrently with further
// appends.
package nbtree
