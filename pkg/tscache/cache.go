package tscache

import (
	"container/list"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
)

// Cache is an LRU map from node id to a sliding TimeSeries, scrolled as
// the filter advances through layers. It is owned exclusively by the
// operator that constructed it and is discarded on commit.
type Cache struct {
	dao     *mlgdao.MLGDao
	maxSize int // 0 means unbounded

	lru   *list.List
	items map[entity.ID]*list.Element

	activeLayer entity.ID
	radius      int
	direction   mlgdao.Direction
}

type cacheEntry struct {
	id entity.ID
	ts *TimeSeries
}

// New builds a cache bound to dao. maxSize <= 0 means unbounded.
func New(dao *mlgdao.MLGDao, maxSize int) *Cache {
	return &Cache{
		dao:     dao,
		maxSize: maxSize,
		lru:     list.New(),
		items:   make(map[entity.ID]*list.Element),
	}
}

// SetActiveLayer resets the layer at which subsequent misses position
// the fetched window's current sample.
func (c *Cache) SetActiveLayer(l entity.ID) {
	c.activeLayer = l
}

func (c *Cache) SetRadius(r int) {
	c.radius = r
	for _, elem := range c.items {
		elem.Value.(*cacheEntry).ts.SetRadius(r)
	}
}

func (c *Cache) SetDirection(d mlgdao.Direction) {
	c.direction = d
	for _, elem := range c.items {
		elem.Value.(*cacheEntry).ts.SetDirection(d)
	}
}

// Get returns n's series, fetching from the database on miss.
func (c *Cache) Get(n entity.ID) (*TimeSeries, error) {
	if elem, ok := c.items[n]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).ts, nil
	}

	samples, currentIndex, err := c.dao.GetSignalAround(n, c.activeLayer, c.radius, c.direction)
	if err != nil {
		return nil, err
	}
	ts := NewTimeSeriesAt(samples, currentIndex)
	ts.SetDirection(c.direction)
	ts.SetRadius(c.radius)

	elem := c.lru.PushFront(&cacheEntry{id: n, ts: ts})
	c.items[n] = elem

	if c.maxSize > 0 {
		for c.lru.Len() > c.maxSize {
			c.evictOldest()
		}
	}
	return ts, nil
}

func (c *Cache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).id)
}

// Scroll advances every cached entry's current by +1, used when moving
// from layer k to k+1.
func (c *Cache) Scroll() {
	for _, elem := range c.items {
		elem.Value.(*cacheEntry).ts.Scroll(1)
	}
}

// UpdateEntries appends (or, if pushBack is false, prepends) the OLink
// weight at newLayer to every cached series.
func (c *Cache) UpdateEntries(newLayer entity.ID, pushBack bool) error {
	for id, elem := range c.items {
		w, err := c.olinkWeight(newLayer, id)
		if err != nil {
			return err
		}
		ts := elem.Value.(*cacheEntry).ts
		if pushBack {
			ts.PushBack(w)
		} else {
			ts.PushFront(w)
		}
	}
	return nil
}

func (c *Cache) olinkWeight(layer, node entity.ID) (float64, error) {
	links := c.dao.Links()
	id, err := links.FindOLink(layer, node)
	if err != nil {
		return 0, err
	}
	if !id.Valid() {
		return 0, nil
	}
	attrs, err := links.GetOLink(id)
	if err != nil {
		return 0, err
	}
	w, _ := attrs[entity.AttrOLinkWeight].Float64()
	return w, nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.lru.Init()
	c.items = make(map[entity.ID]*list.Element)
}
