package nbtree

// leafSource names one leaf worth of data a scan may need to visit: either
// a committed page to load by address, or a copy of the tree's still-pending
// leaf taken when Search ran (never committed, so it has no address yet).
type leafSource struct {
	addr    LogicAddr
	pending *Leaf
}

// collectLeafSources returns every leaf reachable from t's current state, in
// ascending chronological order: first the leaves reachable by descending
// the top level's committed back-link chain and its children (this alone is
// the complete series for a tree that was closed and reopened cleanly; in a
// live tree it also covers the leaves under the top level's pending node,
// whose Children() is read in-memory directly), then every committed leaf
// at level 0 not reached that way — leaves referenced only from a pending
// node below the top level, or never linked into a parent before a crash —
// found by walking level 0's own back-link chain until it reaches a leaf
// already visited above, then finally a copy of the pending leaf if it
// holds any elements, so later appends do not reach the iterator.
func collectLeafSources(t *Tree) ([]leafSource, error) {
	visited := make(map[LogicAddr]bool)
	var result []leafSource

	if len(t.nodes) > 1 {
		top, ok := t.nodes[len(t.nodes)-1].(*SuperBlock)
		if ok {
			r, err := expandChain(t.store, top, visited)
			if err != nil {
				return nil, err
			}
			result = append(result, r...)
		}
	}

	leaf0 := t.nodes[0].(*Leaf)
	var extra []leafSource
	cur := leaf0.PrevAddr()
	for cur != EmptyAddr && !visited[cur] {
		extra = append(extra, leafSource{addr: cur})
		visited[cur] = true
		l, err := LoadLeaf(t.store, cur, HeaderOnly)
		if err != nil {
			return nil, err
		}
		cur = l.PrevAddr()
	}
	for i, j := 0, len(extra)-1; i < j; i, j = i+1, j-1 {
		extra[i], extra[j] = extra[j], extra[i]
	}
	result = append(result, extra...)

	if leaf0.NElements() > 0 {
		snap := *leaf0
		block := *leaf0.block
		snap.block = &block
		snap.writer = nil
		result = append(result, leafSource{pending: &snap})
	}
	return result, nil
}

// expandChain walks top's own back-link chain oldest-first, expanding every
// node's children. Nodes below the top never need their own chain walked:
// their sibling order comes for free from their parent's children array.
func expandChain(store BlockStore, top *SuperBlock, visited map[LogicAddr]bool) ([]leafSource, error) {
	var chain []*SuperBlock
	for node := top; ; {
		chain = append(chain, node)
		if node.PrevAddr() == EmptyAddr {
			break
		}
		prev, err := LoadSuperBlock(store, node.PrevAddr(), node.Level())
		if err != nil {
			return nil, err
		}
		node = prev
	}

	var out []leafSource
	for i := len(chain) - 1; i >= 0; i-- {
		r, err := expandChildren(store, chain[i], visited)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func expandChildren(store BlockStore, sb *SuperBlock, visited map[LogicAddr]bool) ([]leafSource, error) {
	var out []leafSource
	for _, c := range sb.Children() {
		if c.Level == 0 {
			visited[c.Address] = true
			out = append(out, leafSource{addr: c.Address})
			continue
		}
		child, err := LoadSuperBlock(store, c.Address, c.Level)
		if err != nil {
			return nil, err
		}
		r, err := expandChildren(store, child, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

// ScanIterator is a bidirectional cursor over a half-open timestamp
// interval: [begin,end) when begin<end (forward, ascending), or (end,begin]
// when begin>end (backward, descending). begin==end is a valid, permanently
// empty iterator.
type ScanIterator struct {
	store   BlockStore
	sources []leafSource
	idx     int
	forward bool
	begin   uint64
	end     uint64

	curTS []uint64
	curVS []float64
	curPos int
	curLen int

	err error
}

func newScanIterator(store BlockStore, sources []leafSource, begin, end uint64) *ScanIterator {
	forward := begin <= end
	it := &ScanIterator{
		store:   store,
		sources: sources,
		begin:   begin,
		end:     end,
		forward: forward,
	}
	if forward {
		it.idx = 0
	} else {
		it.idx = len(sources) - 1
	}
	return it
}

// Read decodes up to min(len(tsOut), len(vsOut)) elements into tsOut and
// vsOut, in the iterator's direction, and returns how many it wrote. It
// returns ErrNoData, with n==0, once the interval is exhausted; any other
// non-nil error indicates the underlying store failed and the iterator is
// no longer usable.
func (it *ScanIterator) Read(tsOut []uint64, vsOut []float64) (int, error) {
	if it.err != nil {
		return 0, it.err
	}

	max := len(tsOut)
	if len(vsOut) < max {
		max = len(vsOut)
	}

	n := 0
	for n < max {
		if it.curPos >= it.curLen {
			if !it.loadNext() {
				break
			}
		}
		tsOut[n] = it.curTS[it.curPos]
		vsOut[n] = it.curVS[it.curPos]
		it.curPos++
		n++
	}

	if n == 0 {
		if it.err != nil {
			return 0, it.err
		}
		return 0, ErrNoData
	}
	return n, nil
}

// loadNext advances past exhausted or non-intersecting sources until it
// decodes one with at least one element inside the interval, filling
// curTS/curVS (already interval-filtered and direction-ordered) and
// resetting curPos. It returns false once sources are exhausted or a store
// read fails (in which case it.err is set).
func (it *ScanIterator) loadNext() bool {
	for {
		if it.forward {
			if it.idx >= len(it.sources) {
				return false
			}
		} else {
			if it.idx < 0 {
				return false
			}
		}
		src := it.sources[it.idx]
		if it.forward {
			it.idx++
		} else {
			it.idx--
		}

		var minTS, maxTS uint64
		var n int
		var allTS []uint64
		var allVS []float64

		if src.pending != nil {
			n = src.pending.NElements()
			if n == 0 {
				continue
			}
			minTS, maxTS = src.pending.TSRange()
			if !rangeOverlaps(minTS, maxTS, it.begin, it.end, it.forward) {
				continue
			}
			allTS = make([]uint64, n)
			allVS = make([]float64, n)
			if _, err := src.pending.ReadAll(allTS, allVS, 0); err != nil {
				it.err = err
				return false
			}
		} else {
			leaf, err := LoadLeaf(it.store, src.addr, FullLoad)
			if err != nil {
				it.err = err
				return false
			}
			minTS, maxTS = leaf.TSRange()
			if !rangeOverlaps(minTS, maxTS, it.begin, it.end, it.forward) {
				continue
			}
			n = leaf.NElements()
			allTS = make([]uint64, n)
			allVS = make([]float64, n)
			if _, err := leaf.ReadAll(allTS, allVS, 0); err != nil {
				it.err = err
				return false
			}
		}

		fts := make([]uint64, 0, n)
		fvs := make([]float64, 0, n)
		if it.forward {
			for i := 0; i < n; i++ {
				if allTS[i] >= it.begin && allTS[i] < it.end {
					fts = append(fts, allTS[i])
					fvs = append(fvs, allVS[i])
				}
			}
		} else {
			for i := n - 1; i >= 0; i-- {
				if allTS[i] > it.end && allTS[i] <= it.begin {
					fts = append(fts, allTS[i])
					fvs = append(fvs, allVS[i])
				}
			}
		}
		if len(fts) == 0 {
			continue
		}

		it.curTS, it.curVS = fts, fvs
		it.curPos, it.curLen = 0, len(fts)
		return true
	}
}

func rangeOverlaps(minTS, maxTS, begin, end uint64, forward bool) bool {
	if forward {
		return maxTS >= begin && minTS < end
	}
	return maxTS > end && minTS <= begin
}
