package selector

import (
	"math"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

// X scores each node by root_centrality / (two_hop_hub_affinity * gravity)
// . Its merge neighborhood is the full 1-hop HLink
// neighborhood: this resolves an ambiguity in X's merge set
// by merging root with everything root_centrality is computed over (see
// DESIGN.md Open Question log).
type X struct {
	base
	lastMerge []entity.ID
}

// NewX builds an X selector over sess.
func NewX(sess store.Session) *X {
	return &X{base: newBase(sess)}
}

func (s *X) Rank(layer entity.ID) error {
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
		score, err := s.score(n)
		if err != nil {
			return err
		}
		s.queue.Add(n, score)
	}
	return nil
}

func (s *X) score(n entity.ID) (float64, error) {
	oneHop, err := s.hlinkNeighbors(n)
	if err != nil {
		return 0, err
	}

	rc, err := s.rootCentrality(n, oneHop)
	if err != nil {
		return 0, err
	}
	hub, err := s.twoHopHubAffinity(n, oneHop)
	if err != nil {
		return 0, err
	}
	grav, err := s.gravity(n, oneHop)
	if err != nil {
		return 0, err
	}
	denom := hub * grav
	if denom == 0 {
		return 0, nil
	}
	return rc / denom, nil
}

// rootCentrality = sum(w(n,m) for m in oneHop) / (1 + sum of HLink
// weights in the induced subgraph over oneHop).
func (s *X) rootCentrality(n entity.ID, oneHop store.Set) (float64, error) {
	var incident float64
	for _, m := range oneHop.Ids() {
		w, ok, err := s.hlinkWeight(n, m)
		if err != nil {
			return 0, err
		}
		if ok {
			incident += w
		}
	}

	var induced float64
	ids := oneHop.Ids()
	seen := make(map[[2]entity.ID]struct{})
	for _, a := range ids {
		neighOfA, err := s.hlinkNeighbors(a)
		if err != nil {
			return 0, err
		}
		for _, b := range neighOfA.Ids() {
			if b == n || !oneHop.Contains(b) {
				continue
			}
			key := [2]entity.ID{a, b}
			if a > b {
				key = [2]entity.ID{b, a}
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			w, ok, err := s.hlinkWeight(a, b)
			if err != nil {
				return 0, err
			}
			if ok {
				induced += w
			}
		}
	}

	return incident / (1 + induced), nil
}

// twoHopHubAffinity counts, over every m in n's 1-hop neighborhood, the
// number of m's HLinks reaching outside n ∪ n's 1-hop neighborhood,
// clamped to at least 1.
func (s *X) twoHopHubAffinity(n entity.ID, oneHop store.Set) (float64, error) {
	count := 0
	for _, m := range oneHop.Ids() {
		neighOfM, err := s.hlinkNeighbors(m)
		if err != nil {
			return 0, err
		}
		for _, k := range neighOfM.Ids() {
			if k == n || oneHop.Contains(k) {
				continue
			}
			count++
		}
	}
	return math.Max(1, float64(count)), nil
}

// gravity sums node weights over n and its 1-hop neighborhood.
func (s *X) gravity(n entity.ID, oneHop store.Set) (float64, error) {
	total, err := s.nodeWeight(n)
	if err != nil {
		return 0, err
	}
	for _, m := range oneHop.Ids() {
		w, err := s.nodeWeight(m)
		if err != nil {
			return 0, err
		}
		total += w
	}
	return total, nil
}

func (s *X) GetNodesToMerge() ([]entity.ID, error) {
	root := s.current
	if !root.Valid() {
		return nil, nil
	}
	oneHop, err := s.hlinkNeighbors(root)
	if err != nil {
		return nil, err
	}
	s.lastMerge = oneHop.Ids()
	return s.lastMerge, nil
}

func (s *X) FlagAndUpdate(root entity.ID, removeNeighbors bool) error {
	s.flagged[root] = struct{}{}
	s.queue.Remove(root)
	if removeNeighbors {
		for _, n := range s.lastMerge {
			s.flagged[n] = struct{}{}
			s.queue.Remove(n)
		}
	}

	candidates, err := s.twoHop(root)
	if err != nil {
		return err
	}
	for _, m := range candidates.Ids() {
		if s.isFlagged(m) {
			continue
		}
		score, err := s.score(m)
		if err != nil {
			return err
		}
		s.queue.Add(m, score)
	}
	return nil
}
