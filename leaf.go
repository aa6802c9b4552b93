package nbtree

import (
	"github.com/pkg/errors"

	"github.com/akumulidb/nbtree/codec"
	"github.com/akumulidb/nbtree/page"
)

// LoadMode selects how much of a leaf page Load decodes.
type LoadMode int

const (
	// FullLoad decodes header and body.
	FullLoad LoadMode = iota
	// HeaderOnly decodes only the header, skipping the codec pass over the
	// body.
	HeaderOnly
)

// Leaf is a level-0 node: a pending or freshly loaded run of
// (timestamp, value) pairs for one series, plus the aggregates a superblock
// needs once this leaf commits.
type Leaf struct {
	id   SeriesID
	prev LogicAddr

	block  *page.LeafBlock
	writer *codec.Writer

	count  int
	closed bool
	minTS  uint64
	maxTS  uint64
	minV   float64
	maxV   float64
	sumV   float64
}

// NewLeaf creates an empty pending leaf for series id, linked back to prev.
func NewLeaf(id SeriesID, prev LogicAddr) *Leaf {
	block := page.NewLeafBlock(id, prev)
	return &Leaf{
		id:     id,
		prev:   prev,
		block:  block,
		writer: codec.NewWriter(block.Body[:]),
	}
}

// LoadLeaf fetches and decodes the leaf page at addr from store.
func LoadLeaf(store BlockStore, addr LogicAddr, mode LoadMode) (*Leaf, error) {
	raw, err := store.Read(addr)
	if err != nil {
		return nil, errors.Wrap(err, "nbtree: reading leaf page")
	}
	body, err := page.Verify(raw)
	if err != nil {
		return nil, err
	}
	block, err := page.LoadLeafBlock(body)
	if err != nil {
		return nil, err
	}

	// Both load modes decode the same header; ReadAll streams the body from
	// block.Body lazily on demand using block.Header.Count, so HeaderOnly
	// simply means the caller never calls ReadAll.
	_ = mode

	return &Leaf{
		id:     block.Header.SeriesID,
		prev:   block.Header.Prev,
		block:  block,
		count:  int(block.Header.Count),
		closed: block.Header.Flags&page.FlagClosed != 0,
		minTS:  block.Header.MinTS,
		maxTS:  block.Header.MaxTS,
		minV:   block.Header.MinV,
		maxV:   block.Header.MaxV,
		sumV:   block.Header.SumV,
	}, nil
}

// Closed reports whether this leaf carries the closed-tree sentinel.
func (l *Leaf) Closed() bool {
	return l.closed
}

// MarkClosed sets the closed-tree sentinel, written on the next Commit.
func (l *Leaf) MarkClosed() {
	l.closed = true
}

// NElements returns the number of elements currently in the leaf.
func (l *Leaf) NElements() int {
	return l.count
}

// TSRange returns the leaf's minimum and maximum timestamp.
func (l *Leaf) TSRange() (min, max uint64) {
	return l.minTS, l.maxTS
}

// PrevAddr returns the address of the previous committed leaf of this
// series, or EmptyAddr.
func (l *Leaf) PrevAddr() LogicAddr {
	return l.prev
}

// Append adds one (ts, v) pair to the pending leaf. It returns
// codec.IsOverflow(err) == true when the leaf has no room left; the caller
// (the level-0 extent) is responsible for committing this leaf, opening a
// fresh one, and re-appending the same pair there.
func (l *Leaf) Append(ts uint64, v float64) error {
	if l.writer == nil {
		return errors.WithStack(ErrBadArg)
	}
	if err := l.writer.Append(ts, v); err != nil {
		return err
	}

	if l.count == 0 {
		l.minTS, l.maxTS = ts, ts
		l.minV, l.maxV = v, v
	} else {
		if ts < l.minTS {
			l.minTS = ts
		}
		if ts > l.maxTS {
			l.maxTS = ts
		}
		if v < l.minV {
			l.minV = v
		}
		if v > l.maxV {
			l.maxV = v
		}
	}
	l.sumV += v
	l.count++

	return nil
}

// ReadAll decodes every element currently in the leaf — committed or still
// pending — into ts and vs, which must have at least NElements capacity.
// sizeOverride, when non-zero, limits the number of elements decoded; it is
// used to read a leaf mid-stream during a scan without disturbing further
// pending appends.
func (l *Leaf) ReadAll(ts []uint64, vs []float64, sizeOverride int) (int, error) {
	n := l.count
	if sizeOverride > 0 && sizeOverride < n {
		n = sizeOverride
	}
	if len(ts) < n || len(vs) < n {
		return 0, errors.WithStack(ErrBadArg)
	}

	r := codec.NewReader(l.block.Body[:], uint32(n))
	for i := 0; i < n; i++ {
		t, v, ok := r.Next()
		if !ok {
			return i, errors.WithStack(ErrBadData)
		}
		ts[i] = t
		vs[i] = v
	}
	return n, nil
}

// Aggregate returns this leaf's own aggregates as a ChildRef, as seen by the
// level-1 extent once the leaf commits.
func (l *Leaf) Aggregate(addr LogicAddr) ChildRef {
	return ChildRef{
		Address: addr,
		Level:   0,
		Count:   uint32(l.count),
		MinTS:   l.minTS,
		MaxTS:   l.maxTS,
		MinV:    l.minV,
		MaxV:    l.maxV,
		SumV:    l.sumV,
	}
}

// Commit finalizes the leaf's header and hands its sealed bytes to store,
// returning the address the leaf can be read back from.
func (l *Leaf) Commit(store BlockStore) (LogicAddr, error) {
	l.block.Header.Count = uint32(l.count)
	l.block.Header.MinTS = l.minTS
	l.block.Header.MaxTS = l.maxTS
	l.block.Header.MinV = l.minV
	l.block.Header.MaxV = l.maxV
	l.block.Header.SumV = l.sumV
	if l.closed {
		l.block.Header.Flags |= page.FlagClosed
	}

	addr, err := store.Commit(page.Seal(l.block.Bytes()))
	if err != nil {
		return 0, errors.Wrap(err, "nbtree: committing leaf page")
	}
	return addr, nil
}
