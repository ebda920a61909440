// Package selector implements the priority-based node enumeration of
// a mutable priority queue over one layer's nodes, driving the
// coarsener's choice of which node to merge next.
package selector

import (
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

// Selector is the common selector contract.
type Selector interface {
	// Rank computes the score of every node on layer and populates the
	// priority queue.
	Rank(layer entity.ID) error
	// HasNext reports whether the queue holds any unflagged node.
	HasNext() bool
	// Next returns the current best node id. If pop is true, it is
	// removed from the queue.
	Next(pop bool) entity.ID
	// GetNodesToMerge returns, for the current best node, the set of
	// neighbors selected to merge into it.
	GetNodesToMerge() ([]entity.ID, error)
	// FlagAndUpdate moves root into the flagged set, optionally removes
	// its merge neighborhood from the queue, then recomputes scores in
	// root's 2-hop neighborhood.
	FlagAndUpdate(root entity.ID, removeNeighbors bool) error
}

// base holds the state and graph access shared by every selector
// implementation: the queue, the flagged set, and the memory-mode flag
// ("memory_mode").
type base struct {
	sess       store.Session
	layer      entity.ID
	queue      *pq
	flagged    map[entity.ID]struct{}
	MemoryMode bool
	current    entity.ID
}

func newBase(sess store.Session) base {
	return base{sess: sess, queue: newPQ(), flagged: make(map[entity.ID]struct{})}
}

func (b *base) isFlagged(n entity.ID) bool {
	_, ok := b.flagged[n]
	return ok
}

func (b *base) HasNext() bool {
	_, _, ok := b.queue.Peek()
	return ok
}

func (b *base) Next(pop bool) entity.ID {
	var id entity.ID
	var ok bool
	if pop {
		id, _, ok = b.queue.Pull()
	} else {
		id, _, ok = b.queue.Peek()
	}
	if !ok {
		return entity.InvalidID
	}
	b.current = id
	return id
}

// ScoreOf returns id's current queued score, if any. Exposed for testing
// selector monotonicity (spec Testable Property 5).
func (b *base) ScoreOf(id entity.ID) (float64, bool) {
	return b.queue.Score(id)
}

func (b *base) layerNodes() (store.Set, error) {
	return b.sess.Neighborhood(entity.TypeOwns, b.sess.NewSet(b.layer), store.Out)
}

// hlinkNeighbors returns n's 1-hop HLink neighborhood, excluding flagged
// nodes when memory mode is on.
func (b *base) hlinkNeighbors(n entity.ID) (store.Set, error) {
	neigh, err := b.sess.Neighborhood(entity.TypeHLink, b.sess.NewSet(n), store.Any)
	if err != nil {
		return nil, err
	}
	if b.MemoryMode {
		neigh = b.dropFlagged(neigh)
	}
	return neigh, nil
}

func (b *base) dropFlagged(s store.Set) store.Set {
	out := b.sess.NewSet()
	for _, id := range s.Ids() {
		if !b.isFlagged(id) {
			out.Add(id)
		}
	}
	return out
}

func (b *base) hlinkWeight(a, bID entity.ID) (float64, bool, error) {
	id, err := b.sess.FindEdgeByEndpoints(entity.TypeHLink, a, bID)
	if err != nil {
		return 0, false, err
	}
	if !id.Valid() {
		return 0, false, nil
	}
	attrs, err := b.sess.GetEdge(entity.TypeHLink, id)
	if err != nil {
		return 0, false, err
	}
	w, _ := attrs[entity.AttrHLinkWeight].Float64()
	return w, true, nil
}

func (b *base) nodeWeight(n entity.ID) (float64, error) {
	attrs, err := b.sess.GetNode(entity.TypeNode, n)
	if err != nil {
		return 0, err
	}
	w, ok := attrs[entity.AttrWeight].Float64()
	if !ok {
		return 1.0, nil
	}
	return w, nil
}

// twoHop returns the union of root's 1-hop and 2-hop HLink neighbors
// (not including root itself).
func (b *base) twoHop(root entity.ID) (store.Set, error) {
	oneHop, err := b.hlinkNeighbors(root)
	if err != nil {
		return nil, err
	}
	all := oneHop.Clone()
	for _, m := range oneHop.Ids() {
		twoHop, err := b.hlinkNeighbors(m)
		if err != nil {
			return nil, err
		}
		all = all.Union(twoHop)
	}
	all.Remove(root)
	return all, nil
}
