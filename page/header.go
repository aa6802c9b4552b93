package page

import "github.com/pkg/errors"

// ErrBadData is returned when a page fails header or checksum validation.
var ErrBadData = errors.New("bad data")

// Header is the common prefix shared by leaf pages and superblock pages. Its
// field set and order matches the persisted page layout exactly: the
// checksum trailer applied by Seal/Verify lives outside this struct.
type Header struct {
	Magic    uint32
	Level    uint8
	FanOut   uint8
	Flags    uint16
	SeriesID SeriesID
	Count    uint32
	MinTS    uint64
	MaxTS    uint64
	MinV     float64
	MaxV     float64
	SumV     float64
	Prev     LogicAddr
}

// Validate checks the fields of the header that do not depend on the
// caller's own expectations about aggregates.
func (h Header) Validate(wantLevel uint8) error {
	if h.Magic != Magic {
		return errors.WithStack(ErrBadData)
	}
	if h.Level != wantLevel {
		return errors.WithStack(ErrBadData)
	}
	if h.Count == 0 {
		return errors.WithStack(ErrBadData)
	}
	if h.MinTS > h.MaxTS {
		return errors.WithStack(ErrBadData)
	}
	// Superblock pages back Children with a fixed MaxFanOut-sized array;
	// a corrupted Count or FanOut past that bound would index it out of
	// range instead of surfacing as bad data. Leaf pages have no such
	// bound: Count there counts codec records, not array slots.
	if wantLevel > 0 {
		if h.FanOut == 0 || uint32(h.FanOut) > MaxFanOut || h.Count > uint32(h.FanOut) {
			return errors.WithStack(ErrBadData)
		}
	}
	return nil
}
