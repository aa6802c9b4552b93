package page

import "github.com/outofforest/photon"

// ChildRef describes one child of a superblock: enough of the child
// subtree's aggregates to route a scan without descending into the child
// itself.
type ChildRef struct {
	Address LogicAddr
	Level   uint8
	_       [3]byte
	Count   uint32
	MinTS   uint64
	MaxTS   uint64
	MinV    float64
	MaxV    float64
	SumV    float64
}

// SuperBlock is the persisted layout of a level>=1 page: a header plus a
// fixed-capacity array of child references. Header.Count of the Children
// slots are meaningful.
type SuperBlock struct {
	Header   Header
	Children [MaxFanOut]ChildRef
}

// NewSuperBlock returns an empty superblock page at level (>=1) for series
// id, using fanOut children per page once full, with the given back-link.
func NewSuperBlock(id SeriesID, level uint8, fanOut uint8, prev LogicAddr) *SuperBlock {
	return &SuperBlock{
		Header: Header{
			Magic:    Magic,
			Level:    level,
			FanOut:   fanOut,
			SeriesID: id,
			Prev:     prev,
		},
	}
}

// Bytes returns a zero-copy byte view of the superblock page.
func (b *SuperBlock) Bytes() []byte {
	return photon.NewFromValue(b).B
}

// LoadSuperBlock decodes a superblock page previously returned by Seal from
// raw, already-verified bytes, checking that its level matches wantLevel.
func LoadSuperBlock(raw []byte, wantLevel uint8) (*SuperBlock, error) {
	if wantLevel == 0 {
		return nil, ErrBadData
	}
	u := photon.NewFromBytes[SuperBlock](raw)
	if err := u.V.Header.Validate(wantLevel); err != nil {
		return nil, err
	}
	return u.V, nil
}
