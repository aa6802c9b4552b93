// Package filedev wraps an *os.File as a sequential ReadWriteSeeker with a
// tracked end-of-file offset, used by filestore as the append cursor for its
// length-prefixed page log.
package filedev

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

var _ io.ReadWriteSeeker = &FileDev{}

// FileDev uses a file handle as a sequential-write device. size tracks the
// current end of file so callers can learn the offset a Write will land at
// without a separate Seek(0, io.SeekEnd) round trip.
type FileDev struct {
	mu   sync.Mutex
	file *os.File
	size int64
}

// New returns new filedev.
func New(file *os.File) *FileDev {
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		panic(errors.WithStack(err))
	}
	return &FileDev{
		file: file,
		size: size,
	}
}

// Seek seeks the position.
func (fd *FileDev) Seek(offset int64, whence int) (int64, error) {
	n, err := fd.file.Seek(offset, whence)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Read reads data from the file.
func (fd *FileDev) Read(p []byte) (int, error) {
	n, err := fd.file.Read(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	return n, nil
}

// Write writes data to the file, extending size if it now reaches past the
// previously recorded end of file.
func (fd *FileDev) Write(p []byte) (int, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	pos, err := fd.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := fd.file.Write(p)
	if err != nil {
		return n, errors.WithStack(err)
	}
	if end := pos + int64(n); end > fd.size {
		fd.size = end
	}
	return n, nil
}

// Sync syncs data to the file.
func (fd *FileDev) Sync() error {
	if err := fd.file.Sync(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Size returns the current end-of-file offset.
func (fd *FileDev) Size() int64 {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.size
}

// File returns the underlying handle, for callers that need positioned
// reads (os.File.ReadAt) independent of this device's own Seek cursor.
func (fd *FileDev) File() *os.File {
	return fd.file
}
