// Package cachedstore wraps any nbtree.BlockStore with a fixed-capacity
// read-through page cache, sized in slots rather than bytes since pages are
// immutable and never need eviction-on-write bookkeeping.
package cachedstore

import (
	"sync"

	"go.uber.org/zap"

	"github.com/akumulidb/nbtree"
	"github.com/akumulidb/nbtree/internal/xlog"
)

const maxProbeTries = 4

type slot struct {
	valid bool
	addr  nbtree.LogicAddr
	page  []byte
}

// Store caches pages already fetched from, or just committed to, an
// underlying BlockStore. Every page a superblock chain walk or scan
// revisits — most often the upper levels of the tree — is served from the
// cache instead of round-tripping to the backing store.
//
// Slot selection mirrors a direct-mapped cache: an address hashes to one of
// nSlots candidate slots, and probing tries up to maxProbeTries slots (each
// the previous one multiplied by 3 modulo nSlots) for an empty or matching
// one before evicting whatever occupies the first candidate.
type Store struct {
	log    *zap.Logger
	inner  nbtree.BlockStore
	mu     sync.Mutex
	slots  []slot
	nSlots uint64
}

// New wraps inner with a cache holding up to nSlots pages. log, if nil,
// defaults to a no-op logger.
func New(inner nbtree.BlockStore, nSlots int, log *zap.Logger) *Store {
	if nSlots <= 0 {
		nSlots = 1
	}
	return &Store{
		log:    xlog.Or(log),
		inner:  inner,
		slots:  make([]slot, nSlots),
		nSlots: uint64(nSlots),
	}
}

func (s *Store) findSlot(addr nbtree.LogicAddr) uint64 {
	candidate := uint64(addr) % s.nSlots
	for i, c := 0, candidate; i < maxProbeTries; i, c = i+1, (c*3)%s.nSlots {
		sl := &s.slots[c]
		if !sl.valid || sl.addr == addr {
			return c
		}
	}
	return candidate
}

// Commit delegates to the wrapped store and caches the sealed page under
// the address it was assigned.
func (s *Store) Commit(page []byte) (nbtree.LogicAddr, error) {
	addr, err := s.inner.Commit(page)
	if err != nil {
		return nbtree.EmptyAddr, err
	}

	s.mu.Lock()
	c := s.findSlot(addr)
	s.slots[c] = slot{valid: true, addr: addr, page: append([]byte(nil), page...)}
	s.mu.Unlock()

	s.log.Debug("cachedstore: cached committed page", zap.Uint64("addr", uint64(addr)))
	return addr, nil
}

// Read serves addr from the cache when present, otherwise fetches it from
// the wrapped store and caches the result.
func (s *Store) Read(addr nbtree.LogicAddr) ([]byte, error) {
	s.mu.Lock()
	c := s.findSlot(addr)
	if sl := s.slots[c]; sl.valid && sl.addr == addr {
		page := sl.page
		s.mu.Unlock()
		s.log.Debug("cachedstore: cache hit", zap.Uint64("addr", uint64(addr)))
		return page, nil
	}
	s.mu.Unlock()

	s.log.Debug("cachedstore: cache miss", zap.Uint64("addr", uint64(addr)))
	page, err := s.inner.Read(addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.slots[c] = slot{valid: true, addr: addr, page: page}
	s.mu.Unlock()

	return page, nil
}

var _ nbtree.BlockStore = (*Store)(nil)
