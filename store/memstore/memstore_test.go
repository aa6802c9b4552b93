package memstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akumulidb/nbtree"
)

func TestCommitReadRoundTrip(t *testing.T) {
	requireT := require.New(t)

	s := New(nil)

	addr1, err := s.Commit([]byte("first"))
	requireT.NoError(err)
	addr2, err := s.Commit([]byte("second"))
	requireT.NoError(err)
	requireT.NotEqual(addr1, addr2)

	got1, err := s.Read(addr1)
	requireT.NoError(err)
	requireT.Equal([]byte("first"), got1)

	got2, err := s.Read(addr2)
	requireT.NoError(err)
	requireT.Equal([]byte("second"), got2)
}

func TestReadMissingAddressErrors(t *testing.T) {
	requireT := require.New(t)

	s := New(nil)
	_, err := s.Read(nbtree.LogicAddr(123))
	requireT.Error(err)
}

func TestCommitRejectsEmptyPage(t *testing.T) {
	requireT := require.New(t)

	s := New(nil)
	_, err := s.Commit(nil)
	requireT.Error(err)
}

func TestOnCommitCallback(t *testing.T) {
	requireT := require.New(t)

	s := New(nil)

	var mu sync.Mutex
	var seenAddr nbtree.LogicAddr
	var seenLen int
	s.OnCommit(func(addr nbtree.LogicAddr, page []byte) {
		mu.Lock()
		defer mu.Unlock()
		seenAddr = addr
		seenLen = len(page)
	})

	addr, err := s.Commit([]byte("abc"))
	requireT.NoError(err)

	mu.Lock()
	defer mu.Unlock()
	requireT.Equal(addr, seenAddr)
	requireT.Equal(3, seenLen)
}

func TestConcurrentCommitsAcrossShards(t *testing.T) {
	requireT := require.New(t)

	s := New(nil)

	const n = 500
	addrs := make([]nbtree.LogicAddr, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, err := s.Commit([]byte{byte(i), byte(i >> 8)})
			require.NoError(t, err)
			addrs[i] = addr
		}(i)
	}
	wg.Wait()

	seen := make(map[nbtree.LogicAddr]bool, n)
	for _, a := range addrs {
		requireT.False(seen[a], "address %d committed twice", a)
		seen[a] = true
	}
	requireT.Len(seen, n)
}
