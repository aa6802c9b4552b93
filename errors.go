package nbtree

import (
	"github.com/pkg/errors"

	"github.com/akumulidb/nbtree/codec"
	"github.com/akumulidb/nbtree/page"
)

// ErrNoData is returned by ScanIterator.Read once the requested interval is
// exhausted.
var ErrNoData = errors.New("nbtree: no data")

// ErrBadData is returned when a page fails its checksum or header
// validation. It is the same sentinel page.ErrBadData resolves to, re-
// exported here so callers never need to import the page package directly.
var ErrBadData = page.ErrBadData

// ErrBadArg is returned for invalid construction arguments or use of an
// uninitialized Tree.
var ErrBadArg = errors.New("nbtree: bad argument")

// errOverflow is the internal "node full, commit and rotate" signal returned
// by SuperBlock.AppendChild (Leaf.Append returns the codec package's own
// overflow sentinel; IsOverflow recognizes both). It never crosses the Tree
// API boundary — Tree.Append and bubble consume it.
var errOverflow = errors.New("nbtree: overflow")

func isOverflow(err error) bool {
	return IsOverflow(err)
}

// IsOverflow reports whether err signals that a node is full and must be
// committed and rotated. It is exported so white-box tests in other
// packages can assert on the same condition tree.go checks internally.
func IsOverflow(err error) bool {
	return errors.Is(err, errOverflow) || codec.IsOverflow(err)
}
