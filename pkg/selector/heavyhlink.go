package selector

import (
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

// HeavyHLink scores each node by the weight of its heaviest incident
// HLink (0 if none), and merges it with the single neighbor at the other
// end of that edge.
type HeavyHLink struct {
	base
	lastMerge []entity.ID
}

// NewHeavyHLink builds a Heavy-HLink selector over sess.
func NewHeavyHLink(sess store.Session) *HeavyHLink {
	return &HeavyHLink{base: newBase(sess)}
}

// heaviestIncident returns n's heaviest incident HLink weight and the
// neighbor at its far end, excluding flagged neighbors when memory mode
// is on. Returns (0, InvalidID, nil) if n has no eligible neighbors.
func (s *HeavyHLink) heaviestIncident(n entity.ID) (float64, entity.ID, error) {
	neigh, err := s.hlinkNeighbors(n)
	if err != nil {
		return 0, entity.InvalidID, err
	}
	best, bestW := entity.InvalidID, 0.0
	for _, m := range neigh.Ids() {
		w, ok, err := s.hlinkWeight(n, m)
		if err != nil {
			return 0, entity.InvalidID, err
		}
		if !ok {
			continue
		}
		if !best.Valid() || w > bestW {
			best, bestW = m, w
		}
	}
	return bestW, best, nil
}

func (s *HeavyHLink) Rank(layer entity.ID) error {
	s.layer = layer
	s.queue = newPQ()
	nodes, err := s.layerNodes()
	if err != nil {
		return err
	}
	for _, n := range nodes.Ids() {
		if s.isFlagged(n) {
			continue
		}
		w, _, err := s.heaviestIncident(n)
		if err != nil {
			return err
		}
		s.queue.Add(n, w)
	}
	return nil
}

func (s *HeavyHLink) GetNodesToMerge() ([]entity.ID, error) {
	root := s.current
	if !root.Valid() {
		return nil, nil
	}
	_, neighbor, err := s.heaviestIncident(root)
	if err != nil {
		return nil, err
	}
	if !neighbor.Valid() {
		s.lastMerge = nil
		return nil, nil
	}
	s.lastMerge = []entity.ID{neighbor}
	return s.lastMerge, nil
}

// FlagAndUpdate implements the Heavy-HLink-specific update rule: after
// merging, only triangle endpoints of root (nodes sharing a common
// neighbor with root) have their scores recomputed, and only if the new
// edge from root would raise their score (open question:
// updateScore only ever raises for the additive merger).
func (s *HeavyHLink) FlagAndUpdate(root entity.ID, removeNeighbors bool) error {
	s.flag(root)
	s.queue.Remove(root)
	if removeNeighbors {
		for _, n := range s.lastMerge {
			s.flag(n)
			s.queue.Remove(n)
		}
	}

	oneHop, err := s.hlinkNeighbors(root)
	if err != nil {
		return err
	}
	candidates := s.sess.NewSet()
	for _, k := range oneHop.Ids() {
		twoHopViaK, err := s.hlinkNeighbors(k)
		if err != nil {
			return err
		}
		for _, m := range twoHopViaK.Ids() {
			if m != root {
				candidates.Add(m)
			}
		}
	}

	for _, m := range candidates.Ids() {
		if s.isFlagged(m) {
			continue
		}
		w, ok, err := s.hlinkWeight(root, m)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		cur, present := s.queue.Score(m)
		if !present || w > cur {
			s.queue.Add(m, w)
		}
	}
	return nil
}

func (s *HeavyHLink) flag(n entity.ID) { s.flagged[n] = struct{}{} }
