// Package merger implements the node-merge operation:
// folding a set of neighbor nodes into a target, conserving weight.
package merger

import (
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
)

// Merger composes a weight function and the merge procedure over an
// MLGDao. The additive merger (Func=nil defaults to mlgdao.AddMerger) is
// the only one the selector contracts assume.
type Merger struct {
	dao  *mlgdao.MLGDao
	Func mlgdao.Merger
}

// New builds a merger over dao. A nil fn defaults to addition.
func New(dao *mlgdao.MLGDao, fn mlgdao.Merger) *Merger {
	if fn == nil {
		fn = mlgdao.AddMerger
	}
	return &Merger{dao: dao, Func: fn}
}

// ComputeWeight returns target's weight plus the sum of neighbors'
// weights (generalized to whatever binary Func folds).
func (m *Merger) ComputeWeight(target float64, neighbors []float64) float64 {
	w := target
	for _, n := range neighbors {
		w = m.Func(w, n)
	}
	return w
}

// Merge folds every neighbor in neighbors into target:
//  1. for each neighbor s, horizontal_copy_vlinks(s, target) then
//     horizontal_copy_hlinks(s, target) (safety checks skipped — the
//     caller has already ensured same layer);
//  2. drop s (cascades through incident edges);
//  3. target.weight := ComputeWeight(target, neighbors), persisted.
//
// merge(n, ∅) is a no-op beyond re-persisting n's unchanged weight
// (Testable Property 4).
func (m *Merger) Merge(target entity.ID, neighbors []entity.ID) error {
	links := m.dao.Links()

	targetAttrs, err := links.GetNode(target)
	if err != nil {
		return err
	}
	targetWeight, _ := targetAttrs[entity.AttrWeight].Float64()

	neighborWeights := make([]float64, 0, len(neighbors))
	for _, s := range neighbors {
		attrs, err := links.GetNode(s)
		if err != nil {
			return err
		}
		w, _ := attrs[entity.AttrWeight].Float64()
		neighborWeights = append(neighborWeights, w)
	}

	for _, s := range neighbors {
		if err := m.dao.HorizontalCopyVLinks(s, target, m.Func); err != nil {
			return err
		}
		if err := m.dao.HorizontalCopyHLinks(s, target, m.Func); err != nil {
			return err
		}
	}

	for _, s := range neighbors {
		if err := m.dao.DropNodeCascade(s); err != nil {
			return err
		}
	}

	newWeight := m.ComputeWeight(targetWeight, neighborWeights)
	return links.UpdateNodeWeight(target, newWeight)
}
