package tscache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
	"github.com/orneryd/mlgraph/pkg/tscache"
)

// newStack builds a 3-layer stack (base, mid, top) each with one node n,
// OLink weights 10, 20, 30 bottom to top.
func newStack(t *testing.T) (*mlgdao.MLGDao, entity.ID, entity.ID, entity.ID, entity.ID) {
	t.Helper()
	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)

	d := mlgdao.New(sess)
	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)
	mid, err := d.Layers().AddLayerOnTop(nil)
	require.NoError(t, err)
	top, err := d.Layers().AddLayerOnTop(nil)
	require.NoError(t, err)

	w0 := 10.0
	n, err := d.AddNodeToLayer(base, nil, entity.AttrMap{entity.AttrOLinkWeight: entity.Float64Value(w0)})
	require.NoError(t, err)

	w1 := 20.0
	_, err = d.Links().CreateOLink(mid, n, &w1)
	require.NoError(t, err)
	w2 := 30.0
	_, err = d.Links().CreateOLink(top, n, &w2)
	require.NoError(t, err)

	return d, base, mid, top, n
}

func TestCacheGetFetchesWindowOnMiss(t *testing.T) {
	d, base, mid, top, n := newStack(t)
	_ = top

	c := tscache.New(d, 0)
	c.SetActiveLayer(mid)
	c.SetRadius(1)
	c.SetDirection(mlgdao.Both)

	ts, err := c.Get(n)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, ts.Slice())
	_ = base
}

func TestCacheGetIsLRUCached(t *testing.T) {
	d, _, mid, _, n := newStack(t)

	c := tscache.New(d, 0)
	c.SetActiveLayer(mid)
	c.SetRadius(1)
	c.SetDirection(mlgdao.Both)

	first, err := c.Get(n)
	require.NoError(t, err)
	second, err := c.Get(n)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLRUTailAtCapacity(t *testing.T) {
	d, base, _, _, n1 := newStack(t)

	n2, err := d.AddNodeToLayer(base, nil, nil)
	require.NoError(t, err)

	c := tscache.New(d, 1)
	c.SetActiveLayer(base)
	c.SetRadius(0)
	c.SetDirection(mlgdao.Both)

	_, err = c.Get(n1)
	require.NoError(t, err)
	_, err = c.Get(n2)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
}

func TestCacheScrollAdvancesEveryEntry(t *testing.T) {
	d, _, mid, _, n := newStack(t)

	c := tscache.New(d, 0)
	c.SetActiveLayer(mid)
	c.SetRadius(1)
	c.SetDirection(mlgdao.Both)

	ts, err := c.Get(n)
	require.NoError(t, err)
	before := ts.Current()

	c.Scroll()
	assert.Equal(t, before+1, ts.Current())
}

func TestCacheUpdateEntriesAppendsNewLayerWeight(t *testing.T) {
	d, _, mid, top, n := newStack(t)

	c := tscache.New(d, 0)
	c.SetActiveLayer(mid)
	c.SetRadius(1)
	c.SetDirection(mlgdao.Past)

	ts, err := c.Get(n)
	require.NoError(t, err)
	lenBefore := ts.Len()

	require.NoError(t, c.UpdateEntries(top, true))
	assert.Equal(t, lenBefore+1, ts.Len())
}
