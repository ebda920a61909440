package store

import (
	"sort"

	"github.com/orneryd/mlgraph/pkg/entity"
)

// idSet is the reference Set implementation: a hash set with ascending-id
// iteration. The Store implementation in this module builds its result
// sets with NewIDSet.
type idSet struct {
	m map[entity.ID]struct{}
}

// NewIDSet builds a Set from the given ids.
func NewIDSet(ids ...entity.ID) Set {
	s := &idSet{m: make(map[entity.ID]struct{}, len(ids))}
	for _, id := range ids {
		s.m[id] = struct{}{}
	}
	return s
}

func (s *idSet) Add(id entity.ID)    { s.m[id] = struct{}{} }
func (s *idSet) Remove(id entity.ID) { delete(s.m, id) }
func (s *idSet) Contains(id entity.ID) bool {
	_, ok := s.m[id]
	return ok
}
func (s *idSet) Len() int { return len(s.m) }

func (s *idSet) Any() (entity.ID, bool) {
	for id := range s.m {
		return id, true
	}
	return entity.InvalidID, false
}

func (s *idSet) Ids() []entity.ID {
	ids := make([]entity.ID, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *idSet) Clone() Set {
	c := &idSet{m: make(map[entity.ID]struct{}, len(s.m))}
	for id := range s.m {
		c.m[id] = struct{}{}
	}
	return c
}

func (s *idSet) Union(other Set) Set {
	out := s.Clone().(*idSet)
	for _, id := range other.Ids() {
		out.m[id] = struct{}{}
	}
	return out
}

func (s *idSet) Intersect(other Set) Set {
	out := &idSet{m: make(map[entity.ID]struct{})}
	for id := range s.m {
		if other.Contains(id) {
			out.m[id] = struct{}{}
		}
	}
	return out
}

func (s *idSet) Diff(other Set) Set {
	out := &idSet{m: make(map[entity.ID]struct{})}
	for id := range s.m {
		if !other.Contains(id) {
			out.m[id] = struct{}{}
		}
	}
	return out
}
