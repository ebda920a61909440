package merger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/merger"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
)

func newDao(t *testing.T) *mlgdao.MLGDao {
	t.Helper()
	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)
	return mlgdao.New(sess)
}

func sumNodeWeights(t *testing.T, d *mlgdao.MLGDao, ids []entity.ID) float64 {
	t.Helper()
	var total float64
	for _, id := range ids {
		attrs, err := d.Links().GetNode(id)
		require.NoError(t, err)
		w, _ := attrs[entity.AttrWeight].Float64()
		total += w
	}
	return total
}

func TestMergeIdempotentOnEmptyNeighborhood(t *testing.T) {
	d := newDao(t)
	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	n, err := d.AddNodeToLayer(base, entity.AttrMap{entity.AttrWeight: entity.Float64Value(3.0)}, nil)
	require.NoError(t, err)

	m := merger.New(d, nil)
	require.NoError(t, m.Merge(n, nil))

	attrs, err := d.Links().GetNode(n)
	require.NoError(t, err)
	w, _ := attrs[entity.AttrWeight].Float64()
	assert.Equal(t, 3.0, w)
}

func TestMergeConservesWeightAdditive(t *testing.T) {
	d := newDao(t)
	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	n1, _ := d.AddNodeToLayer(base, entity.AttrMap{entity.AttrWeight: entity.Float64Value(1)}, nil)
	n2, _ := d.AddNodeToLayer(base, entity.AttrMap{entity.AttrWeight: entity.Float64Value(100)}, nil)
	n3, _ := d.AddNodeToLayer(base, entity.AttrMap{entity.AttrWeight: entity.Float64Value(1)}, nil)

	before := sumNodeWeights(t, d, []entity.ID{n1, n2, n3})

	w := 5.0
	_, err = d.AddHLink(n1, n2, &w)
	require.NoError(t, err)
	w2 := 1.0
	_, err = d.AddHLink(n1, n3, &w2)
	require.NoError(t, err)

	m := merger.New(d, nil)
	require.NoError(t, m.Merge(n1, []entity.ID{n2, n3}))

	after := sumNodeWeights(t, d, []entity.ID{n1})
	assert.Equal(t, before, after)
}

func TestMergeDropsNeighborsAndAvoidsSelfLoop(t *testing.T) {
	d := newDao(t)
	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	target, _ := d.AddNodeToLayer(base, nil, nil)
	neighbor, _ := d.AddNodeToLayer(base, nil, nil)
	kin, _ := d.AddNodeToLayer(base, nil, nil)

	w1, w2 := 2.0, 3.0
	_, err = d.AddHLink(target, neighbor, &w1)
	require.NoError(t, err)
	_, err = d.AddHLink(neighbor, kin, &w2)
	require.NoError(t, err)

	m := merger.New(d, nil)
	require.NoError(t, m.Merge(target, []entity.ID{neighbor}))

	_, err = d.Links().GetNode(neighbor)
	assert.Error(t, err)

	id, err := d.Links().FindHLink(target, kin)
	require.NoError(t, err)
	assert.True(t, id.Valid())

	self, err := d.Links().FindHLink(target, target)
	require.NoError(t, err)
	assert.False(t, self.Valid())
}
