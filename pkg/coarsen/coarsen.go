// Package coarsen implements the NeighborCoarsener and plan Builder of
// the plan-driven coarsener.
package coarsen

import (
	"errors"
	"fmt"
	"math"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/merger"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/selector"
)

var (
	ErrInvalidArgument   = errors.New("coarsen: invalid argument")
	ErrInvariantViolated = errors.New("coarsen: invariant violated")
)

// NeighborCoarsener composes a selector and a merger to reduce one layer
// by a target reduction factor.
type NeighborCoarsener struct {
	dao             *mlgdao.MLGDao
	sel             selector.Selector
	merge           *merger.Merger
	ReductionFactor float64
}

// New builds a coarsener over dao with the given selector, merger, and
// reduction factor in [0,1]. A factor of 0 still merges one pair: see
// exec's merge_count formula.
func New(dao *mlgdao.MLGDao, sel selector.Selector, merge *merger.Merger, reductionFactor float64) (*NeighborCoarsener, error) {
	if reductionFactor < 0 || reductionFactor > 1 {
		return nil, fmt.Errorf("%w: reduction_factor must be in [0,1], got %v", ErrInvalidArgument, reductionFactor)
	}
	return &NeighborCoarsener{dao: dao, sel: sel, merge: merge, ReductionFactor: reductionFactor}, nil
}

// Run executes preExec then exec, returning the new top layer id (L').
// Failure at any step aborts and reports the failing node/edge id
// alongside the error; transactional rollback is the host's
// responsibility.
func (c *NeighborCoarsener) Run() (entity.ID, error) {
	lPrime, err := c.preExec()
	if err != nil {
		return entity.InvalidID, err
	}
	if err := c.exec(lPrime); err != nil {
		return entity.InvalidID, err
	}
	// postExec is a no-op.
	return lPrime, nil
}

// preExec requires the top layer has >= 2 nodes, then mirrors it to a
// new layer L' where coarsening happens.
func (c *NeighborCoarsener) preExec() (entity.ID, error) {
	top, err := c.dao.Layers().TopLayer()
	if err != nil {
		return entity.InvalidID, err
	}
	if !top.Valid() {
		return entity.InvalidID, fmt.Errorf("%w: no layer to coarsen", ErrInvalidArgument)
	}
	count, err := c.layerNodeCount(top)
	if err != nil {
		return entity.InvalidID, err
	}
	if count < 2 {
		return entity.InvalidID, fmt.Errorf("%w: top layer must have at least 2 nodes to coarsen", ErrInvalidArgument)
	}
	return c.dao.MirrorTopLayer()
}

func (c *NeighborCoarsener) layerNodeCount(l entity.ID) (int, error) {
	owned, err := c.dao.OwnedNodes(l)
	if err != nil {
		return 0, err
	}
	return owned.Len(), nil
}

// exec computes merge_count = max(0, round(reduction_factor * |base
// layer|) + 1), clamped to |L'| - 1, then drains the selector until
// merge_count reaches zero. The base layer's size (not L''s) drives the
// target, so successive coarseners reduce monotonically relative to the
// original graph.
func (c *NeighborCoarsener) exec(lPrime entity.ID) error {
	base, err := c.dao.Layers().BaseLayer()
	if err != nil {
		return err
	}
	baseCount, err := c.layerNodeCount(base)
	if err != nil {
		return err
	}
	lPrimeCount, err := c.layerNodeCount(lPrime)
	if err != nil {
		return err
	}

	mergeCount := int(math.Round(c.ReductionFactor*float64(baseCount))) + 1
	if mergeCount < 0 {
		mergeCount = 0
	}
	if max := lPrimeCount - 1; mergeCount > max {
		mergeCount = max
	}

	if err := c.sel.Rank(lPrime); err != nil {
		return err
	}

	for mergeCount > 0 {
		if !c.sel.HasNext() {
			if err := c.sel.Rank(lPrime); err != nil {
				return err
			}
			if !c.sel.HasNext() {
				return nil
			}
		}
		root := c.sel.Next(true)
		neighbors, err := c.sel.GetNodesToMerge()
		if err != nil {
			return fmt.Errorf("%w: get_nodes_to_merge for node %d: %v", ErrInvalidArgument, root, err)
		}
		if err := c.merge.Merge(root, neighbors); err != nil {
			return fmt.Errorf("%w: merge into node %d: %v", ErrInvalidArgument, root, err)
		}
		if err := c.sel.FlagAndUpdate(root, true); err != nil {
			return err
		}
		dec := len(neighbors)
		if dec < 1 {
			dec = 1
		}
		mergeCount -= dec
	}
	return nil
}
