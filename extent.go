package nbtree

import "github.com/pkg/errors"

// The per-level open node kept in Tree.nodes is either a *Leaf (level 0) or
// a *SuperBlock (level>=1). These helpers let Tree treat both uniformly for
// the append/commit/close bookkeeping that doesn't care which one it is.

func nodeIsEmpty(n interface{}) bool {
	switch v := n.(type) {
	case *Leaf:
		return v.NElements() == 0
	case *SuperBlock:
		return v.NChildren() == 0
	default:
		return true
	}
}

func nodeMarkClosed(n interface{}) {
	switch v := n.(type) {
	case *Leaf:
		v.MarkClosed()
	case *SuperBlock:
		v.MarkClosed()
	}
}

func nodeCommit(store BlockStore, n interface{}) (LogicAddr, ChildRef, error) {
	switch v := n.(type) {
	case *Leaf:
		addr, err := v.Commit(store)
		if err != nil {
			return EmptyAddr, ChildRef{}, err
		}
		return addr, v.Aggregate(addr), nil
	case *SuperBlock:
		addr, err := v.Commit(store)
		if err != nil {
			return EmptyAddr, ChildRef{}, err
		}
		return addr, v.Aggregate(addr), nil
	default:
		return EmptyAddr, ChildRef{}, errors.WithStack(ErrBadArg)
	}
}

func nodePrevAddr(n interface{}) LogicAddr {
	switch v := n.(type) {
	case *Leaf:
		return v.PrevAddr()
	case *SuperBlock:
		return v.PrevAddr()
	default:
		return EmptyAddr
	}
}
