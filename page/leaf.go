package page

import "github.com/outofforest/photon"

// LeafBodyCapacity is the number of body bytes available to the columnar
// codec inside one leaf page. It leaves generous headroom above Header's own
// size so struct padding never has to be computed exactly.
const LeafBodyCapacity = 4096 - 256

// LeafBlock is the persisted layout of a level-0 page: a header plus a
// fixed-capacity buffer holding a codec-compressed (timestamp, value)
// stream. Header.Count records are meaningful; the rest of Body is unused
// padding once the leaf has been sealed.
type LeafBlock struct {
	Header Header
	Body   [LeafBodyCapacity]byte
}

// NewLeafBlock returns an empty leaf page for series id with the given
// back-link.
func NewLeafBlock(id SeriesID, prev LogicAddr) *LeafBlock {
	return &LeafBlock{
		Header: Header{
			Magic:  Magic,
			Level:  0,
			SeriesID: id,
			Prev:   prev,
		},
	}
}

// Bytes returns a zero-copy byte view of the leaf page, suitable for sealing
// and handing to a BlockStore.
func (b *LeafBlock) Bytes() []byte {
	return photon.NewFromValue(b).B
}

// LoadLeafBlock decodes a leaf page previously returned by Seal from raw,
// verified bytes (i.e. after page.Verify has already stripped the checksum
// trailer).
func LoadLeafBlock(raw []byte) (*LeafBlock, error) {
	u := photon.NewFromBytes[LeafBlock](raw)
	if err := u.V.Header.Validate(0); err != nil {
		return nil, err
	}
	return u.V, nil
}
