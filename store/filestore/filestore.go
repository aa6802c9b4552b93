// Package filestore is a single-process, file-backed nbtree.BlockStore.
// Pages are appended sequentially as self-describing length-prefixed
// records, and a LogicAddr is simply the byte offset of a record's length
// prefix — no separate index to build or corrupt.
package filestore

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/akumulidb/nbtree"
	"github.com/akumulidb/nbtree/internal/xlog"
	"github.com/akumulidb/nbtree/pkg/filedev"
)

const lengthPrefixSize = 4

// Store appends pages to an append-only file. Commit serializes writers
// with mu; Read uses ReadAt against the shared file handle, so concurrent
// readers never contend with each other or with an in-flight Commit.
type Store struct {
	log *zap.Logger
	mu  sync.Mutex
	dev *filedev.FileDev
}

// Open opens (or creates) path and returns a Store appending to it. Any
// records already present are left untouched — reopening a Store after a
// clean or unclean shutdown just resumes appending at the current end of
// file. log, if nil, defaults to a no-op logger.
func Open(path string, log *zap.Logger) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "filestore: open")
	}
	return &Store{log: xlog.Or(log), dev: filedev.New(f)}, nil
}

// Commit appends page as a length-prefixed record and returns the byte
// offset of its length prefix.
func (s *Store) Commit(page []byte) (nbtree.LogicAddr, error) {
	if len(page) == 0 {
		return nbtree.EmptyAddr, errors.WithStack(nbtree.ErrBadArg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr := nbtree.LogicAddr(s.dev.Size())

	var lengthPrefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthPrefix[:], uint32(len(page)))

	if _, err := s.dev.Write(lengthPrefix[:]); err != nil {
		return nbtree.EmptyAddr, errors.Wrap(err, "filestore: writing length prefix")
	}
	if _, err := s.dev.Write(page); err != nil {
		return nbtree.EmptyAddr, errors.Wrap(err, "filestore: writing page")
	}
	if err := s.dev.Sync(); err != nil {
		return nbtree.EmptyAddr, errors.Wrap(err, "filestore: syncing page")
	}

	s.log.Debug("filestore: commit", zap.Uint64("addr", uint64(addr)), zap.Int("size", len(page)))
	return addr, nil
}

// Read decodes the record whose length prefix starts at addr.
func (s *Store) Read(addr nbtree.LogicAddr) ([]byte, error) {
	var lengthPrefix [lengthPrefixSize]byte
	if _, err := s.dev.File().ReadAt(lengthPrefix[:], int64(addr)); err != nil {
		s.log.Debug("filestore: reading length prefix failed", zap.Uint64("addr", uint64(addr)), zap.Error(err))
		return nil, errors.Wrap(err, "filestore: reading length prefix")
	}
	length := binary.BigEndian.Uint32(lengthPrefix[:])

	page := make([]byte, length)
	if _, err := s.dev.File().ReadAt(page, int64(addr)+lengthPrefixSize); err != nil {
		return nil, errors.Wrap(err, "filestore: reading page")
	}
	return page, nil
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return errors.WithStack(s.dev.File().Close())
}

var _ nbtree.BlockStore = (*Store)(nil)
