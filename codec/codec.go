// Package codec implements the columnar (timestamp, value) stream stored in
// the body of a leaf page: a byte-oriented, self-delimiting delta/xor codec.
// It is the "black box writer/reader with known capacity signalling" the
// NB-tree core treats as an external collaborator.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// MaxRecordSize is the worst-case number of bytes one (timestamp, value)
// record can occupy: two LEB128-varint-encoded uint64s.
const MaxRecordSize = 2 * binary.MaxVarintLen64

// errOverflow signals that a leaf's body buffer has no room for another
// record. It never crosses the leaf/extent boundary: the extent consumes it
// by rotating to a fresh leaf and retrying the append there.
var errOverflow = errors.New("codec: overflow")

// IsOverflow reports whether err is the internal overflow signal.
func IsOverflow(err error) bool {
	return errors.Is(err, errOverflow)
}

// Writer appends (timestamp, value) pairs into a fixed-capacity buffer,
// encoding each as a delta-of-timestamp and xor-of-value-bits pair of
// unsigned varints relative to the previous record.
type Writer struct {
	buf      []byte
	off      int
	count    uint32
	started  bool
	prevTS   uint64
	prevBits uint64
}

// NewWriter returns a Writer appending into buf from offset zero. buf's
// capacity bounds how many records can be written before Append reports
// overflow.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Append encodes one record. It returns the internal overflow sentinel
// (checked with IsOverflow) when fewer than MaxRecordSize bytes remain,
// without touching the buffer or any writer state — the pair is safe for
// the caller to retry against a fresh Writer.
func (w *Writer) Append(ts uint64, v float64) error {
	if len(w.buf)-w.off < MaxRecordSize {
		return errOverflow
	}

	var deltaTS, xorBits uint64
	if !w.started {
		deltaTS = ts
		xorBits = math.Float64bits(v)
	} else {
		deltaTS = ts - w.prevTS
		xorBits = w.prevBits ^ math.Float64bits(v)
	}

	w.off += binary.PutUvarint(w.buf[w.off:], deltaTS)
	w.off += binary.PutUvarint(w.buf[w.off:], xorBits)

	w.started = true
	w.prevTS = ts
	w.prevBits = math.Float64bits(v)
	w.count++

	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() uint32 {
	return w.count
}

// Len returns the number of bytes consumed in the destination buffer.
func (w *Writer) Len() int {
	return w.off
}

// Reader decodes a stream of count records previously written by a Writer
// into buf. The format is self-delimiting: count alone (persisted in the
// page header) is all a Reader needs, no separate byte length.
type Reader struct {
	buf      []byte
	off      int
	count    uint32
	read     uint32
	prevTS   uint64
	prevBits uint64
}

// NewReader returns a Reader over buf that will decode exactly count
// records.
func NewReader(buf []byte, count uint32) *Reader {
	return &Reader{buf: buf, count: count}
}

// Next decodes the next record. ok is false once count records have been
// returned.
func (r *Reader) Next() (ts uint64, v float64, ok bool) {
	if r.read >= r.count {
		return 0, 0, false
	}

	deltaTS, n := binary.Uvarint(r.buf[r.off:])
	r.off += n
	xorBits, n := binary.Uvarint(r.buf[r.off:])
	r.off += n

	if r.read == 0 {
		ts = deltaTS
		v = math.Float64frombits(xorBits)
	} else {
		ts = r.prevTS + deltaTS
		v = math.Float64frombits(r.prevBits ^ xorBits)
	}

	r.prevTS = ts
	r.prevBits = math.Float64bits(v)
	r.read++

	return ts, v, true
}

// Remaining returns the number of records left to decode.
func (r *Reader) Remaining() uint32 {
	return r.count - r.read
}
