package nbtree_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akumulidb/nbtree"
	"github.com/akumulidb/nbtree/store/memstore"
)

func drainForward(t *testing.T, it *nbtree.ScanIterator) ([]uint64, []float64) {
	t.Helper()
	requireT := require.New(t)

	var ts []uint64
	var vs []float64
	buf := make([]uint64, 37)
	vbuf := make([]float64, 37)
	for {
		n, err := it.Read(buf, vbuf)
		if err != nil {
			requireT.ErrorIs(err, nbtree.ErrNoData)
			break
		}
		ts = append(ts, buf[:n]...)
		vs = append(vs, vbuf[:n]...)
	}
	return ts, vs
}

func TestTreeSmallForwardScan(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(1), nil, store, 0, nil)
	requireT.NoError(err)

	samples := []struct {
		ts uint64
		v  float64
	}{
		{10, 1}, {20, 2}, {30, 3}, {40, 4},
	}
	for _, s := range samples {
		_, err := tree.Append(s.ts, s.v)
		requireT.NoError(err)
	}

	it, err := tree.Search(0, 100)
	requireT.NoError(err)

	ts, vs := drainForward(t, it)
	requireT.Equal([]uint64{10, 20, 30, 40}, ts)
	requireT.Equal([]float64{1, 2, 3, 4}, vs)
}

func TestTreeSearchNarrowsWindow(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(1), nil, store, 0, nil)
	requireT.NoError(err)

	for i := uint64(0); i < 10; i++ {
		_, err := tree.Append(i*10, float64(i))
		requireT.NoError(err)
	}

	it, err := tree.Search(20, 51)
	requireT.NoError(err)
	ts, vs := drainForward(t, it)
	requireT.Equal([]uint64{20, 30, 40, 50}, ts)
	requireT.Equal([]float64{2, 3, 4, 5}, vs)
}

func TestTreeLeafSpanningScan(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(2), nil, store, 0, nil)
	requireT.NoError(err)

	const n = 3000
	ts := make([]uint64, n)
	vs := make([]float64, n)
	var sawCommit bool
	for i := 0; i < n; i++ {
		ts[i] = uint64(i)
		vs[i] = math.Sin(float64(i))
		committed, err := tree.Append(ts[i], vs[i])
		requireT.NoError(err)
		sawCommit = sawCommit || committed
	}
	requireT.True(sawCommit, "expected at least one leaf rotation across %d elements", n)

	it, err := tree.Search(0, n)
	requireT.NoError(err)
	gotTS, gotVS := drainForward(t, it)
	requireT.Equal(ts, gotTS)
	requireT.Equal(vs, gotVS)
}

func TestTreeMultiLevelBubble(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	// A tight fan-out forces superblock commits (and a new top level) well
	// before the leaf-count alone would.
	tree, err := nbtree.New(nbtree.SeriesID(3), nil, store, 2, nil)
	requireT.NoError(err)

	const n = 5000
	ts := make([]uint64, n)
	vs := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = uint64(i)
		vs[i] = float64(i % 7)
		_, err := tree.Append(ts[i], vs[i])
		requireT.NoError(err)
	}

	roots, err := tree.Close()
	requireT.NoError(err)
	requireT.Greater(len(roots), 1, "expected the tree to have grown beyond one level")

	status, err := nbtree.RepairStatus(store, roots)
	requireT.NoError(err)
	requireT.Equal(nbtree.OK, status)

	reopened, err := nbtree.New(nbtree.SeriesID(3), roots, store, 2, nil)
	requireT.NoError(err)
	it, err := reopened.Search(0, n)
	requireT.NoError(err)
	gotTS, gotVS := drainForward(t, it)
	requireT.Equal(ts, gotTS)
	requireT.Equal(vs, gotVS)
}

func TestTreeBackwardScan(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(4), nil, store, 3, nil)
	requireT.NoError(err)

	const n = 1200
	ts := make([]uint64, n)
	vs := make([]float64, n)
	for i := 0; i < n; i++ {
		// Start at 1 so a backward window of (0, n] includes every sample.
		ts[i] = uint64(i + 1)
		vs[i] = float64(i)
		_, err := tree.Append(ts[i], vs[i])
		requireT.NoError(err)
	}

	it, err := tree.Search(uint64(n), 0)
	requireT.NoError(err)

	var gotTS []uint64
	var gotVS []float64
	buf := make([]uint64, 41)
	vbuf := make([]float64, 41)
	for {
		n, err := it.Read(buf, vbuf)
		if err != nil {
			requireT.ErrorIs(err, nbtree.ErrNoData)
			break
		}
		gotTS = append(gotTS, buf[:n]...)
		gotVS = append(gotVS, vbuf[:n]...)
	}

	requireT.Len(gotTS, len(ts))
	for i := range ts {
		requireT.Equal(ts[len(ts)-1-i], gotTS[i])
		requireT.Equal(vs[len(vs)-1-i], gotVS[i])
	}
}

func TestTreeCloseIsIdempotentAndBlocksAppend(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(5), nil, store, 0, nil)
	requireT.NoError(err)

	_, err = tree.Append(1, 1)
	requireT.NoError(err)

	roots1, err := tree.Close()
	requireT.NoError(err)
	roots2, err := tree.Close()
	requireT.NoError(err)
	requireT.Equal(roots1, roots2)

	_, err = tree.Append(2, 2)
	requireT.Error(err)
}

func TestTreeSearchRejectedAfterClose(t *testing.T) {
	requireT := require.New(t)

	// A tight fan-out gives the tree height >= 2, the case where the
	// pending leaf Close force-commits also gets bubbled into an
	// in-memory superblock and would otherwise be visible twice: once
	// through that superblock's Children and once as the stale pending
	// leaf still sitting in t.nodes[0].
	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(11), nil, store, 2, nil)
	requireT.NoError(err)

	const n = 5000
	for i := uint64(0); i < n; i++ {
		_, err := tree.Append(i, float64(i))
		requireT.NoError(err)
	}

	_, err = tree.Close()
	requireT.NoError(err)

	_, err = tree.Search(0, n)
	requireT.Error(err)
}

func TestTreeReopenAfterCloseAppendsMore(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	id := nbtree.SeriesID(6)

	tree, err := nbtree.New(id, nil, store, 0, nil)
	requireT.NoError(err)
	_, err = tree.Append(1, 100)
	requireT.NoError(err)
	_, err = tree.Append(2, 200)
	requireT.NoError(err)

	roots, err := tree.Close()
	requireT.NoError(err)

	status, err := nbtree.RepairStatus(store, roots)
	requireT.NoError(err)
	requireT.Equal(nbtree.OK, status)

	reopened, err := nbtree.New(id, roots, store, 0, nil)
	requireT.NoError(err)
	_, err = reopened.Append(3, 300)
	requireT.NoError(err)

	it, err := reopened.Search(0, 10)
	requireT.NoError(err)
	ts, vs := drainForward(t, it)
	requireT.Equal([]uint64{1, 2, 3}, ts)
	requireT.Equal([]float64{100, 200, 300}, vs)
}

func TestTreeRepairRecoversOrphanedLeaf(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	id := nbtree.SeriesID(7)

	tree, err := nbtree.New(id, nil, store, 2, nil)
	requireT.NoError(err)

	var ts []uint64
	var vs []float64
	var committed bool
	for i := uint64(0); !committed; i++ {
		var err error
		committed, err = tree.Append(i, float64(i))
		requireT.NoError(err)
		ts = append(ts, i)
		vs = append(vs, float64(i))
	}
	requireT.Greater(len(ts), 1)

	// Roots captured without a Close: the leaf that just committed is not
	// yet linked into any committed superblock.
	roots := tree.GetRoots()
	status, err := nbtree.RepairStatus(store, roots)
	requireT.NoError(err)
	requireT.Equal(nbtree.Repair, status)

	// The element that triggered the rotation landed in the fresh pending
	// leaf, which never committed and is lost across the simulated crash.
	wantTS, wantVS := ts[:len(ts)-1], vs[:len(vs)-1]

	reopened, err := nbtree.New(id, roots, store, 2, nil)
	requireT.NoError(err)
	it, err := reopened.Search(0, ts[len(ts)-1]+1)
	requireT.NoError(err)
	gotTS, gotVS := drainForward(t, it)
	requireT.Equal(wantTS, gotTS)
	requireT.Equal(wantVS, gotVS)
}

func TestTreeSearchEmptyRangeReturnsNoData(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(8), nil, store, 0, nil)
	requireT.NoError(err)
	_, err = tree.Append(5, 1)
	requireT.NoError(err)

	it, err := tree.Search(5, 5)
	requireT.NoError(err)

	buf := make([]uint64, 4)
	vbuf := make([]float64, 4)
	_, err = it.Read(buf, vbuf)
	requireT.ErrorIs(err, nbtree.ErrNoData)
}

func TestTreeSearchOutOfRangeReturnsNoData(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(9), nil, store, 0, nil)
	requireT.NoError(err)
	_, err = tree.Append(100, 1)
	requireT.NoError(err)
	_, err = tree.Append(200, 2)
	requireT.NoError(err)

	it, err := tree.Search(1000, 2000)
	requireT.NoError(err)

	buf := make([]uint64, 4)
	vbuf := make([]float64, 4)
	_, err = it.Read(buf, vbuf)
	requireT.ErrorIs(err, nbtree.ErrNoData)
}

func TestNewRejectsBadFanOut(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	_, err := nbtree.New(nbtree.SeriesID(1), nil, store, 1, nil)
	requireT.Error(err)

	_, err = nbtree.New(nbtree.SeriesID(1), nil, store, 255, nil)
	requireT.Error(err)
}

func TestNewRejectsNilStore(t *testing.T) {
	requireT := require.New(t)

	_, err := nbtree.New(nbtree.SeriesID(1), nil, nil, 0, nil)
	requireT.Error(err)
}

func TestGetExtentsAndCheckExtent(t *testing.T) {
	requireT := require.New(t)

	store := memstore.New(nil)
	tree, err := nbtree.New(nbtree.SeriesID(10), nil, store, 2, nil)
	requireT.NoError(err)

	const n = 2000
	for i := uint64(0); i < n; i++ {
		_, err := tree.Append(i, float64(i))
		requireT.NoError(err)
	}

	for _, info := range tree.GetExtents() {
		requireT.NoError(tree.CheckExtent(info))
	}
}
