package page

import (
	"bytes"
	"crypto/sha256"

	"github.com/pkg/errors"
)

// Seal appends a SHA-256 digest of raw to raw itself, producing the bytes
// that should be handed to a BlockStore's Commit. The digest lives outside
// the page's own struct layout, so a page never needs to embed a hash of
// itself to validate itself.
func Seal(raw []byte) []byte {
	sum := sha256.Sum256(raw)
	sealed := make([]byte, 0, len(raw)+sha256.Size)
	sealed = append(sealed, raw...)
	sealed = append(sealed, sum[:]...)
	return sealed
}

// Verify strips and checks the trailing digest appended by Seal, returning
// the original page bytes on success.
func Verify(sealed []byte) ([]byte, error) {
	if len(sealed) < sha256.Size {
		return nil, errors.WithStack(ErrBadData)
	}
	body, trailer := sealed[:len(sealed)-sha256.Size], sealed[len(sealed)-sha256.Size:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, errors.WithStack(ErrBadData)
	}
	return body, nil
}
