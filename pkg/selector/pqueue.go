package selector

import (
	"container/heap"

	"github.com/orneryd/mlgraph/pkg/entity"
)

// pqItem is one entry of the mutable priority queue: a node id and its
// current score. Ordering is score descending, ties broken by id
// ascending.
type pqItem struct {
	id    entity.ID
	score float64
	index int
}

// pq is a container/heap-based decrease-key priority queue: the
// standard-library analogue of the pairing/Fibonacci heap with an
// id->handle side map (see DESIGN.md —
// this is the one place this module reaches for the standard library
// over a third-party heap).
type pq struct {
	items []*pqItem
	index map[entity.ID]*pqItem
}

func newPQ() *pq {
	return &pq{index: make(map[entity.ID]*pqItem)}
}

func (q *pq) Len() int { return len(q.items) }

func (q *pq) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

func (q *pq) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *pq) Push(x any) {
	it := x.(*pqItem)
	it.index = len(q.items)
	q.items = append(q.items, it)
}

func (q *pq) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return it
}

// Add inserts or replaces id's score.
func (q *pq) Add(id entity.ID, score float64) {
	if it, ok := q.index[id]; ok {
		it.score = score
		heap.Fix(q, it.index)
		return
	}
	it := &pqItem{id: id, score: score}
	q.index[id] = it
	heap.Push(q, it)
}

// Remove drops id from the queue, if present.
func (q *pq) Remove(id entity.ID) {
	it, ok := q.index[id]
	if !ok {
		return
	}
	heap.Remove(q, it.index)
	delete(q.index, id)
}

// Peek returns the current best id without removing it.
func (q *pq) Peek() (entity.ID, float64, bool) {
	if len(q.items) == 0 {
		return entity.InvalidID, 0, false
	}
	top := q.items[0]
	return top.id, top.score, true
}

// Pull removes and returns the current best id.
func (q *pq) Pull() (entity.ID, float64, bool) {
	id, score, ok := q.Peek()
	if !ok {
		return id, score, ok
	}
	it := heap.Pop(q).(*pqItem)
	delete(q.index, it.id)
	return id, score, true
}

// Score returns id's current score, if queued.
func (q *pq) Score(id entity.ID) (float64, bool) {
	it, ok := q.index[id]
	if !ok {
		return 0, false
	}
	return it.score, true
}

// Contains reports whether id is currently queued.
func (q *pq) Contains(id entity.ID) bool {
	_, ok := q.index[id]
	return ok
}
