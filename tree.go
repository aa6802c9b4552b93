package nbtree

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/akumulidb/nbtree/internal/xlog"
)

// DefaultFanOut is the fan-out New uses when the caller passes zero.
const DefaultFanOut = 32

// Status classifies a roots vector as produced by a clean Close (OK) or
// captured mid-stream via GetRoots without a following Close (Repair).
type Status int

const (
	// OK means the roots vector's top committed page carries the
	// closed-tree sentinel: it was produced by Close.
	OK Status = iota
	// Repair means the roots vector was captured live, or the process died
	// before Close could run; some already-committed pages may not yet be
	// linked into a parent, and Search must fall back to walking level 0's
	// back-link chain to recover them.
	Repair
)

// Tree is the per-series ExtentsList: one open (pending) extent per level,
// each linked to its most recently committed same-level sibling by a
// back-link. Appends land in the level-0 extent; a full extent commits and
// bubbles its aggregates into the level above, growing the tree by one level
// whenever the current top overflows for the first time.
type Tree struct {
	id     SeriesID
	store  BlockStore
	fanOut uint8
	log    *zap.Logger

	initRoots []LogicAddr
	nodes     []interface{} // nodes[0]=*Leaf, nodes[L>=1]=*SuperBlock

	closed      bool
	closedRoots []LogicAddr
}

// New constructs an ExtentsList for series id, opening it from roots — nil
// or empty for a brand-new series, or a previously captured roots vector to
// reopen an existing one. fanOut, if zero, defaults to DefaultFanOut. log,
// if nil, defaults to a no-op logger.
func New(id SeriesID, roots []LogicAddr, store BlockStore, fanOut uint8, log *zap.Logger) (*Tree, error) {
	if store == nil {
		return nil, errors.WithStack(ErrBadArg)
	}
	if fanOut == 0 {
		fanOut = DefaultFanOut
	}
	if fanOut < 2 || int(fanOut) > MaxFanOut {
		return nil, errors.WithStack(ErrBadArg)
	}
	log = xlog.Or(log)

	t := &Tree{
		id:        id,
		store:     store,
		fanOut:    fanOut,
		log:       log,
		initRoots: append([]LogicAddr(nil), roots...),
	}
	if err := t.ForceInit(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) rootAt(level int) LogicAddr {
	if level < len(t.initRoots) {
		return t.initRoots[level]
	}
	return EmptyAddr
}

// ForceInit materializes the open extent for every level named in the roots
// the Tree was constructed with (or just level 0, for a brand-new series).
// It is idempotent; New calls it, so callers only need it after resetting a
// Tree they built by hand.
func (t *Tree) ForceInit() error {
	if len(t.nodes) > 0 {
		return nil
	}
	height := len(t.initRoots)
	if height == 0 {
		height = 1
	}

	nodes := make([]interface{}, height)
	nodes[0] = NewLeaf(t.id, t.rootAt(0))
	for level := 1; level < height; level++ {
		nodes[level] = NewSuperBlock(t.id, uint8(level), t.fanOut, t.rootAt(level))
	}
	t.nodes = nodes

	t.log.Debug("nbtree: force_init",
		zap.Uint64("series", uint64(t.id)),
		zap.Int("height", height))
	return nil
}

func (t *Tree) ensureLevel(level int) {
	for len(t.nodes) <= level {
		l := len(t.nodes)
		t.nodes = append(t.nodes, NewSuperBlock(t.id, uint8(l), t.fanOut, t.rootAt(l)))
	}
}

// Append adds one (timestamp, value) pair to the series, bubbling commits
// upward through as many levels as overflow, and growing the tree by a
// level whenever the current top overflows for the first time. It reports
// whether at least one page was committed as a side effect of this call.
// Timestamps must be non-decreasing across calls; Append does not check
// this itself. An out-of-order timestamp is accepted and stored as given
// (the codec's delta wraps modulo 2^64), so a later scan returns it out of
// order rather than Append reporting an error.
func (t *Tree) Append(ts uint64, v float64) (bool, error) {
	if t.closed {
		return false, errors.WithStack(ErrBadArg)
	}
	if len(t.nodes) == 0 {
		return false, errors.WithStack(ErrBadArg)
	}

	leaf := t.nodes[0].(*Leaf)
	err := leaf.Append(ts, v)
	if err == nil {
		return false, nil
	}
	if !isOverflow(err) {
		return false, err
	}

	addr, err := leaf.Commit(t.store)
	if err != nil {
		return false, errors.Wrap(err, "nbtree: append")
	}
	ref := leaf.Aggregate(addr)
	t.log.Debug("nbtree: leaf commit",
		zap.Uint64("series", uint64(t.id)), zap.Uint64("addr", uint64(addr)))

	fresh := NewLeaf(t.id, addr)
	if err := fresh.Append(ts, v); err != nil {
		return false, errors.Wrap(err, "nbtree: retrying append against rotated leaf")
	}
	t.nodes[0] = fresh

	if err := t.bubble(1, ref); err != nil {
		return true, err
	}
	return true, nil
}

// bubble appends ref as a child of the open extent at level, committing and
// rotating it (recursively bubbling its own aggregate upward) if it is
// already full. It creates level's extent, and any level above it needed by
// a cascading commit, on demand.
func (t *Tree) bubble(level int, ref ChildRef) error {
	t.ensureLevel(level)
	sb := t.nodes[level].(*SuperBlock)

	err := sb.AppendChild(ref)
	if err == nil {
		return nil
	}
	if !isOverflow(err) {
		return err
	}

	addr, err := sb.Commit(t.store)
	if err != nil {
		return errors.Wrap(err, "nbtree: bubble")
	}
	parentRef := sb.Aggregate(addr)
	t.log.Debug("nbtree: superblock commit",
		zap.Uint64("series", uint64(t.id)), zap.Int("level", level), zap.Uint64("addr", uint64(addr)))

	fresh := NewSuperBlock(t.id, uint8(level), t.fanOut, addr)
	if err := fresh.AppendChild(ref); err != nil {
		return errors.Wrap(err, "nbtree: retrying child append against rotated superblock")
	}
	t.nodes[level] = fresh

	return t.bubble(level+1, parentRef)
}

// GetRoots returns the back-link tip of every level currently known to the
// tree: the address of the most recently committed same-level node, or
// EmptyAddr if none has committed yet. Capturing this outside of Close
// yields a roots vector that RepairStatus will report as Repair.
func (t *Tree) GetRoots() []LogicAddr {
	if t.closed {
		return append([]LogicAddr(nil), t.closedRoots...)
	}
	roots := make([]LogicAddr, len(t.nodes))
	for i, n := range t.nodes {
		roots[i] = nodePrevAddr(n)
	}
	return roots
}

// Close force-commits every open extent bottom-up, so each level's final
// partial node is persisted, and marks the resulting top page with the
// closed-tree sentinel. It is idempotent: calling it again just returns the
// roots already produced. Reopening a Tree from Close's roots with New
// starts each level as a fresh, empty extent linked back to the persisted
// tip — Close never leaves a Tree usable for further Append or Search
// calls; read the closed series back through a Tree reopened with New.
func (t *Tree) Close() ([]LogicAddr, error) {
	if t.closed {
		return append([]LogicAddr(nil), t.closedRoots...), nil
	}

	roots := make([]LogicAddr, len(t.nodes))
	for i, n := range t.nodes {
		roots[i] = nodePrevAddr(n)
	}

	level := 0
	for level < len(t.nodes) {
		node := t.nodes[level]
		if nodeIsEmpty(node) {
			break
		}

		top := level == len(t.nodes)-1
		if top {
			nodeMarkClosed(node)
		}

		addr, ref, err := nodeCommit(t.store, node)
		if err != nil {
			t.closed = true
			t.closedRoots = roots
			return append([]LogicAddr(nil), roots...), errors.Wrap(err, "nbtree: close")
		}
		roots[level] = addr

		if top {
			level++
			break
		}

		if err := t.bubble(level+1, ref); err != nil {
			t.closed = true
			t.closedRoots = roots
			return append([]LogicAddr(nil), roots...), errors.Wrap(err, "nbtree: close")
		}
		for len(roots) < len(t.nodes) {
			roots = append(roots, nodePrevAddr(t.nodes[len(roots)]))
		}
		level++
	}
	for ; level < len(t.nodes); level++ {
		roots[level] = nodePrevAddr(t.nodes[level])
	}

	t.closed = true
	t.closedRoots = roots
	t.log.Debug("nbtree: close", zap.Uint64("series", uint64(t.id)), zap.Int("height", len(roots)))
	return append([]LogicAddr(nil), roots...), nil
}

// RepairStatus loads the highest non-empty page named by roots and reports
// whether it carries the closed-tree sentinel. A roots vector with no
// non-empty entries at all — nothing was ever appended — is vacuously OK.
func RepairStatus(store BlockStore, roots []LogicAddr) (Status, error) {
	top := -1
	for i, a := range roots {
		if a != EmptyAddr {
			top = i
		}
	}
	if top < 0 {
		return OK, nil
	}
	if top == 0 {
		leaf, err := LoadLeaf(store, roots[0], HeaderOnly)
		if err != nil {
			return Repair, err
		}
		if leaf.Closed() {
			return OK, nil
		}
		return Repair, nil
	}

	sb, err := LoadSuperBlock(store, roots[top], uint8(top))
	if err != nil {
		return Repair, err
	}
	if sb.Closed() {
		return OK, nil
	}
	return Repair, nil
}

// ExtentInfo is a debug/repair snapshot of one level's open extent.
type ExtentInfo struct {
	Level    uint8
	BackLink LogicAddr
}

// GetExtents returns one ExtentInfo per level currently known to the tree,
// ordered from level 0 upward.
func (t *Tree) GetExtents() []ExtentInfo {
	infos := make([]ExtentInfo, len(t.nodes))
	for i, n := range t.nodes {
		infos[i] = ExtentInfo{Level: uint8(i), BackLink: nodePrevAddr(n)}
	}
	return infos
}

// CheckExtent walks the committed back-link chain behind info, verifying
// header/child-reference invariants at every hop: level correctness,
// superblock aggregates consistent with their children, ts-ranges
// non-overlapping and increasing along the chain, and eventual termination
// at EmptyAddr.
func (t *Tree) CheckExtent(info ExtentInfo) error {
	return checkChain(t.store, info.BackLink, info.Level)
}

func checkChain(store BlockStore, tip LogicAddr, level uint8) error {
	addr := tip
	var prevMinTS uint64
	haveNewer := false

	for addr != EmptyAddr {
		if level == 0 {
			leaf, err := LoadLeaf(store, addr, HeaderOnly)
			if err != nil {
				return err
			}
			minTS, maxTS := leaf.TSRange()
			if minTS > maxTS {
				return errors.WithStack(ErrBadData)
			}
			if haveNewer && maxTS > prevMinTS {
				return errors.WithStack(ErrBadData)
			}
			prevMinTS, haveNewer = minTS, true
			addr = leaf.PrevAddr()
			continue
		}

		sb, err := LoadSuperBlock(store, addr, level)
		if err != nil {
			return err
		}
		if err := checkSuperBlockAggregates(sb); err != nil {
			return err
		}
		if haveNewer && sb.maxTS > prevMinTS {
			return errors.WithStack(ErrBadData)
		}
		prevMinTS, haveNewer = sb.minTS, true
		addr = sb.PrevAddr()
	}
	return nil
}

func checkSuperBlockAggregates(sb *SuperBlock) error {
	children := sb.Children()
	if len(children) == 0 {
		return nil
	}

	var minTS, maxTS uint64
	var minV, maxV, sum float64
	for i, c := range children {
		if c.Level != sb.level-1 {
			return errors.WithStack(ErrBadData)
		}
		if i == 0 {
			minTS, maxTS = c.MinTS, c.MaxTS
			minV, maxV = c.MinV, c.MaxV
		} else {
			if c.MinTS < maxTS {
				return errors.WithStack(ErrBadData)
			}
			if c.MaxTS > maxTS {
				maxTS = c.MaxTS
			}
			if c.MinV < minV {
				minV = c.MinV
			}
			if c.MaxV > maxV {
				maxV = c.MaxV
			}
		}
		sum += c.SumV
	}
	if minTS != sb.minTS || maxTS != sb.maxTS {
		return errors.WithStack(ErrBadData)
	}
	if minV != sb.minV || maxV != sb.maxV || sum != sb.sumV {
		return errors.WithStack(ErrBadData)
	}
	return nil
}

// Search returns a ScanIterator over [begin,end) when begin<end (forward),
// or over (end,begin] when begin>end (backward). begin==end yields an
// iterator that reports NoData immediately. Search returns ErrBadArg once
// the Tree has been Closed: Close force-commits the pending leaf without
// replacing it in t.nodes (there is no further Append to serve), so the
// same in-memory leaf would otherwise be visible both through the
// newly-committed superblock chain and as a second, stale pending source.
// Reopen the roots Close returned with New to read a closed series.
func (t *Tree) Search(begin, end uint64) (*ScanIterator, error) {
	if t.closed {
		return nil, errors.WithStack(ErrBadArg)
	}
	sources, err := collectLeafSources(t)
	if err != nil {
		return nil, err
	}
	return newScanIterator(t.store, sources, begin, end), nil
}
