package nbtree

import (
	"github.com/pkg/errors"

	"github.com/akumulidb/nbtree/page"
)

// ChildRef is a superblock's reference to one of its children, carrying the
// subtree aggregates a scan or a check needs without descending further.
type ChildRef struct {
	Address LogicAddr
	Level   uint8
	Count   uint32
	MinTS   uint64
	MaxTS   uint64
	MinV    float64
	MaxV    float64
	SumV    float64
}

func fromPageRef(r page.ChildRef) ChildRef {
	return ChildRef{
		Address: r.Address,
		Level:   r.Level,
		Count:   r.Count,
		MinTS:   r.MinTS,
		MaxTS:   r.MaxTS,
		MinV:    r.MinV,
		MaxV:    r.MaxV,
		SumV:    r.SumV,
	}
}

func toPageRef(r ChildRef) page.ChildRef {
	return page.ChildRef{
		Address: r.Address,
		Level:   r.Level,
		Count:   r.Count,
		MinTS:   r.MinTS,
		MaxTS:   r.MaxTS,
		MinV:    r.MinV,
		MaxV:    r.MaxV,
		SumV:    r.SumV,
	}
}

// SuperBlock is a level>=1 node: a pending or freshly loaded array of child
// references, plus the aggregates a parent superblock needs once this one
// commits.
type SuperBlock struct {
	id     SeriesID
	level  uint8
	fanOut uint8
	prev   LogicAddr

	block    *page.SuperBlock
	nchild   int
	closed   bool
	minTS    uint64
	maxTS    uint64
	minV     float64
	maxV     float64
	sumV     float64
	subCount uint64
}

// NewSuperBlock creates an empty pending superblock at level (>=1) for
// series id, with the given fan-out and back-link.
func NewSuperBlock(id SeriesID, level uint8, fanOut uint8, prev LogicAddr) *SuperBlock {
	return &SuperBlock{
		id:     id,
		level:  level,
		fanOut: fanOut,
		prev:   prev,
		block:  page.NewSuperBlock(id, level, fanOut, prev),
	}
}

// LoadSuperBlock fetches and decodes the superblock page at addr, expecting
// the given level.
func LoadSuperBlock(store BlockStore, addr LogicAddr, level uint8) (*SuperBlock, error) {
	raw, err := store.Read(addr)
	if err != nil {
		return nil, errors.Wrap(err, "nbtree: reading superblock page")
	}
	body, err := page.Verify(raw)
	if err != nil {
		return nil, err
	}
	block, err := page.LoadSuperBlock(body, level)
	if err != nil {
		return nil, err
	}

	sb := &SuperBlock{
		id:     block.Header.SeriesID,
		level:  block.Header.Level,
		fanOut: block.Header.FanOut,
		prev:   block.Header.Prev,
		block:  block,
		nchild: int(block.Header.Count),
		closed: block.Header.Flags&page.FlagClosed != 0,
		minTS:  block.Header.MinTS,
		maxTS:  block.Header.MaxTS,
		minV:   block.Header.MinV,
		maxV:   block.Header.MaxV,
		sumV:   block.Header.SumV,
	}
	for i := 0; i < sb.nchild; i++ {
		sb.subCount += uint64(block.Children[i].Count)
	}
	return sb, nil
}

// NChildren returns the number of live children.
func (s *SuperBlock) NChildren() int {
	return s.nchild
}

// FanOut returns the maximum number of children this superblock can hold.
func (s *SuperBlock) FanOut() int {
	return int(s.fanOut)
}

// Level returns the tree level of this superblock (>=1).
func (s *SuperBlock) Level() uint8 {
	return s.level
}

// PrevAddr returns the address of the previous committed same-level
// superblock of this series, or EmptyAddr.
func (s *SuperBlock) PrevAddr() LogicAddr {
	return s.prev
}

// Closed reports whether this superblock carries the closed-tree sentinel.
func (s *SuperBlock) Closed() bool {
	return s.closed
}

// Children returns the live child references in stored order.
func (s *SuperBlock) Children() []ChildRef {
	out := make([]ChildRef, s.nchild)
	for i := 0; i < s.nchild; i++ {
		out[i] = fromPageRef(s.block.Children[i])
	}
	return out
}

// AppendChild appends one child reference. It returns errOverflow (for which
// IsOverflow reports true) once fanOut children are present; the caller
// (the level-L extent) commits and rotates in response.
func (s *SuperBlock) AppendChild(ref ChildRef) error {
	if s.nchild >= int(s.fanOut) {
		return errOverflow
	}
	s.block.Children[s.nchild] = toPageRef(ref)
	s.nchild++

	if s.nchild == 1 {
		s.minTS, s.maxTS = ref.MinTS, ref.MaxTS
		s.minV, s.maxV = ref.MinV, ref.MaxV
	} else {
		if ref.MinTS < s.minTS {
			s.minTS = ref.MinTS
		}
		if ref.MaxTS > s.maxTS {
			s.maxTS = ref.MaxTS
		}
		if ref.MinV < s.minV {
			s.minV = ref.MinV
		}
		if ref.MaxV > s.maxV {
			s.maxV = ref.MaxV
		}
	}
	s.sumV += ref.SumV
	s.subCount += uint64(ref.Count)

	return nil
}

// MarkClosed sets the closed-tree sentinel, written on the next Commit.
func (s *SuperBlock) MarkClosed() {
	s.closed = true
}

// Commit finalizes the superblock's header from its children's aggregates
// and hands its sealed bytes to store.
func (s *SuperBlock) Commit(store BlockStore) (LogicAddr, error) {
	s.block.Header.Count = uint32(s.nchild)
	s.block.Header.MinTS = s.minTS
	s.block.Header.MaxTS = s.maxTS
	s.block.Header.MinV = s.minV
	s.block.Header.MaxV = s.maxV
	s.block.Header.SumV = s.sumV
	if s.closed {
		s.block.Header.Flags |= page.FlagClosed
	}

	addr, err := store.Commit(page.Seal(s.block.Bytes()))
	if err != nil {
		return 0, errors.Wrap(err, "nbtree: committing superblock page")
	}
	return addr, nil
}

// Aggregate returns this superblock's own aggregates as a ChildRef, as seen
// by the level above once it commits.
func (s *SuperBlock) Aggregate(addr LogicAddr) ChildRef {
	return ChildRef{
		Address: addr,
		Level:   s.level,
		Count:   uint32(s.subCount),
		MinTS:   s.minTS,
		MaxTS:   s.maxTS,
		MinV:    s.minV,
		MaxV:    s.maxV,
		SumV:    s.sumV,
	}
}
