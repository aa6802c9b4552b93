// Package memstore is an in-memory nbtree.BlockStore, backing every unit
// test and the fast path of the property tests.
package memstore

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/akumulidb/nbtree"
	"github.com/akumulidb/nbtree/internal/xlog"
)

const shardCount = 16

// Store hands out addresses from a single monotonic counter but keeps pages
// in shardCount xxhash-keyed maps, each with its own lock, so concurrent
// series committing or scanning unrelated addresses don't serialize on one
// mutex.
type Store struct {
	log    *zap.Logger
	next   atomic.Uint64
	shards [shardCount]shard

	onCommitMu sync.Mutex
	onCommit   func(nbtree.LogicAddr, []byte)
}

type shard struct {
	mu    sync.RWMutex
	pages map[nbtree.LogicAddr][]byte
}

// New returns an empty Store. log, if nil, defaults to a no-op logger.
func New(log *zap.Logger) *Store {
	s := &Store{log: xlog.Or(log)}
	for i := range s.shards {
		s.shards[i].pages = make(map[nbtree.LogicAddr][]byte)
	}
	return s
}

// OnCommit installs a callback invoked, synchronously, after every
// successful Commit, with the address just assigned and the sealed page
// bytes committed there. It exists for tests that need to observe the
// "last committed" address without threading it back through the tree.
func (s *Store) OnCommit(fn func(nbtree.LogicAddr, []byte)) {
	s.onCommitMu.Lock()
	defer s.onCommitMu.Unlock()
	s.onCommit = fn
}

func (s *Store) shardFor(addr nbtree.LogicAddr) *shard {
	var key [8]byte
	for i := range key {
		key[i] = byte(addr >> (8 * i))
	}
	return &s.shards[xxhash.Sum64(key[:])%shardCount]
}

// Commit assigns page the next address and stores it.
func (s *Store) Commit(page []byte) (nbtree.LogicAddr, error) {
	if len(page) == 0 {
		return nbtree.EmptyAddr, errors.WithStack(nbtree.ErrBadArg)
	}

	addr := nbtree.LogicAddr(s.next.Add(1) - 1)
	sealed := append([]byte(nil), page...)

	sh := s.shardFor(addr)
	sh.mu.Lock()
	sh.pages[addr] = sealed
	sh.mu.Unlock()

	s.onCommitMu.Lock()
	cb := s.onCommit
	s.onCommitMu.Unlock()
	if cb != nil {
		cb(addr, sealed)
	}

	s.log.Debug("memstore: commit", zap.Uint64("addr", uint64(addr)), zap.Int("size", len(sealed)))
	return addr, nil
}

// Read returns the bytes previously committed at addr.
func (s *Store) Read(addr nbtree.LogicAddr) ([]byte, error) {
	sh := s.shardFor(addr)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	page, ok := sh.pages[addr]
	if !ok {
		s.log.Debug("memstore: read miss", zap.Uint64("addr", uint64(addr)))
		return nil, errors.Errorf("memstore: no page at address %d", addr)
	}
	return page, nil
}

var _ nbtree.BlockStore = (*Store)(nil)
