// Package operator implements the time-series operator:
// the driver that runs a time-vertex filter bottom-up across the layer
// stack, deferring all writes to a commit phase so the filter computes
// against a consistent snapshot.
package operator

import (
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/tscache"
	"github.com/orneryd/mlgraph/pkg/tvfilter"
)

// pendingWrite is one computed OLink replacement, deferred until the
// whole pass has completed.
type pendingWrite struct {
	layer  entity.ID
	node   entity.ID
	weight float64
}

// Operator drives a Filter across every layer of the stack, excluding a
// caller-supplied node set from consideration.
type Operator struct {
	dao    *mlgdao.MLGDao
	filter *tvfilter.Filter
	cache  *tscache.Cache

	CacheSize int // 0 means unbounded
}

// New builds an operator over dao using filter. The operator owns a
// fresh cache for the duration of Run and attaches it to filter.
func New(dao *mlgdao.MLGDao, filter *tvfilter.Filter) *Operator {
	return &Operator{dao: dao, filter: filter}
}

// Run executes the filter pass: collect base-layer nodes minus excluded
// ones, walk the layer stack bottom-up scrolling the cache as it goes,
// buffer every computed observation, then persist the buffer in one
// commit phase.
func (o *Operator) Run(excluded map[entity.ID]struct{}) error {
	base, err := o.dao.Layers().BaseLayer()
	if err != nil {
		return err
	}
	if !base.Valid() {
		return nil
	}

	owned, err := o.dao.OwnedNodes(base)
	if err != nil {
		return err
	}
	subset := make([]entity.ID, 0, owned.Len())
	for _, n := range owned.Ids() {
		if _, skip := excluded[n]; !skip {
			subset = append(subset, n)
		}
	}

	layers, err := o.dao.Layers().AllLayersBottomUp()
	if err != nil {
		return err
	}

	o.cache = tscache.New(o.dao, o.CacheSize)
	o.cache.SetActiveLayer(base)
	o.cache.SetRadius(o.filter.Radius)
	o.cache.SetDirection(o.filter.Direction)
	o.filter.AttachCache(o.cache)
	o.filter.Excluded = excluded

	var buffer []pendingWrite
	for _, layer := range layers {
		for _, n := range subset {
			w, err := o.filter.Compute(layer, n)
			if err != nil {
				return err
			}
			buffer = append(buffer, pendingWrite{layer: layer, node: n, weight: w})
		}
		o.cache.Scroll()
	}

	return o.commit(buffer)
}

func (o *Operator) commit(buffer []pendingWrite) error {
	links := o.dao.Links()
	for _, w := range buffer {
		id, err := links.FindOLink(w.layer, w.node)
		if err != nil {
			return err
		}
		if !id.Valid() {
			if _, err := links.CreateOLink(w.layer, w.node, &w.weight); err != nil {
				return err
			}
			continue
		}
		if err := links.UpdateOLinkWeight(id, w.weight); err != nil {
			return err
		}
	}
	return nil
}
