package cachedstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akumulidb/nbtree"
	"github.com/akumulidb/nbtree/store/memstore"
)

type countingStore struct {
	inner *memstore.Store
	reads int
}

func (c *countingStore) Commit(page []byte) (nbtree.LogicAddr, error) {
	return c.inner.Commit(page)
}

func (c *countingStore) Read(addr nbtree.LogicAddr) ([]byte, error) {
	c.reads++
	return c.inner.Read(addr)
}

func TestReadIsServedFromCacheAfterCommit(t *testing.T) {
	requireT := require.New(t)

	inner := &countingStore{inner: memstore.New(nil)}
	s := New(inner, 8, nil)

	addr, err := s.Commit([]byte("page-bytes"))
	requireT.NoError(err)

	got, err := s.Read(addr)
	requireT.NoError(err)
	requireT.Equal([]byte("page-bytes"), got)
	requireT.Equal(0, inner.reads, "Commit should have populated the cache slot")
}

func TestReadMissPopulatesCache(t *testing.T) {
	requireT := require.New(t)

	inner := &countingStore{inner: memstore.New(nil)}
	addr, err := inner.inner.Commit([]byte("uncached"))
	requireT.NoError(err)

	s := New(inner, 8, nil)

	got, err := s.Read(addr)
	requireT.NoError(err)
	requireT.Equal([]byte("uncached"), got)
	requireT.Equal(1, inner.reads)

	got2, err := s.Read(addr)
	requireT.NoError(err)
	requireT.Equal([]byte("uncached"), got2)
	requireT.Equal(1, inner.reads, "second read should hit the cache")
}

func TestCacheEvictsUnderCollision(t *testing.T) {
	requireT := require.New(t)

	inner := &countingStore{inner: memstore.New(nil)}
	s := New(inner, 1, nil)

	addr1, err := s.Commit([]byte("one"))
	requireT.NoError(err)
	addr2, err := s.Commit([]byte("two"))
	requireT.NoError(err)

	// With a single slot, committing addr2 evicted addr1's cached copy, but
	// the wrapped store still has it.
	got1, err := s.Read(addr1)
	requireT.NoError(err)
	requireT.Equal([]byte("one"), got1)

	got2, err := s.Read(addr2)
	requireT.NoError(err)
	requireT.Equal([]byte("two"), got2)
}
