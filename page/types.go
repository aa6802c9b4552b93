// Package page defines the on-disk layout of the two page kinds stored in an
// NB-tree: leaf pages (level 0) and superblock pages (level >= 1). It knows
// nothing about extents, appends, or scans — only how to serialize, checksum
// and validate one page.
package page

// LogicAddr is an opaque page address issued by a BlockStore on commit.
type LogicAddr uint64

// EmptyAddr denotes the absence of a predecessor page.
const EmptyAddr LogicAddr = ^LogicAddr(0)

// SeriesID identifies one time series. All pages belonging to one series form
// a disjoint set of linked lists, one per tree level.
type SeriesID uint64

// MaxFanOut is the compile-time upper bound on the number of child references
// a superblock page can hold. A store instance picks its own FanOut, 2 <=
// FanOut <= MaxFanOut, at construction time; MaxFanOut only bounds the fixed
// array backing SuperBlock.Children.
const MaxFanOut = 64

// Magic identifies the page format used by this module.
const Magic uint32 = 0x4e425401

// Flag bits stored in Header.Flags.
const (
	// FlagClosed marks the top-level page committed by a clean Close (the
	// top superblock, or the leaf itself for a single-level tree).
	FlagClosed uint16 = 1 << 0
)
