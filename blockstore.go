package nbtree

import "github.com/akumulidb/nbtree/page"

// LogicAddr is an opaque page address issued by a BlockStore on commit.
type LogicAddr = page.LogicAddr

// EmptyAddr denotes the absence of a predecessor page.
const EmptyAddr = page.EmptyAddr

// SeriesID identifies one time series.
type SeriesID = page.SeriesID

// MaxFanOut is the compile-time upper bound on a superblock's child count.
const MaxFanOut = page.MaxFanOut

// BlockStore is the opaque, address-indexed page repository the tree
// commits pages to and reads them back from. Implementations must make a
// committed page's bytes readable at its returned address for the lifetime
// of the process; ordering of any underlying flush to stable storage is the
// implementation's own concern.
type BlockStore interface {
	// Commit persists one page and returns the address it can be read back
	// from.
	Commit(page []byte) (LogicAddr, error)
	// Read returns the bytes previously committed at addr.
	Read(addr LogicAddr) ([]byte, error)
}
