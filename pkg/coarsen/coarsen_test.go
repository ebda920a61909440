package coarsen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/coarsen"
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/merger"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/selector"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
)

// newFixture builds the S1/S2 5-node base layer: weights 1,100,1,1,1 with
// HLinks (n1,n2,5), (n1,n4,4), (n2,n5,3), (n1,n3,1), (n2,n3,1).
func newFixture(t *testing.T) *mlgdao.MLGDao {
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

	nodes := make(map[string]entity.ID)
	for _, name := range []string{"n1", "n2", "n3", "n4", "n5"} {
		w := 1.0
		if name == "n2" {
			w = 100.0
		}
		n, err := d.AddNodeToLayer(base, entity.AttrMap{entity.AttrWeight: entity.Float64Value(w)}, nil)
		require.NoError(t, err)
		nodes[name] = n
	}

	edges := []struct {
		a, b string
		w    float64
	}{
		{"n1", "n2", 5}, {"n1", "n4", 4}, {"n2", "n5", 3}, {"n1", "n3", 1}, {"n2", "n3", 1},
	}
	for _, e := range edges {
		w := e.w
		_, err := d.AddHLink(nodes[e.a], nodes[e.b], &w)
		require.NoError(t, err)
	}
	return d
}

func onlyOwnedNode(t *testing.T, d *mlgdao.MLGDao, layer entity.ID) entity.ID {
	t.Helper()
	owned, err := d.OwnedNodes(layer)
	require.NoError(t, err)
	require.Equal(t, 1, owned.Len())
	return owned.Ids()[0]
}

func TestHeavyHLinkCoarseningCollapsesToSingleNode(t *testing.T) {
	d := newFixture(t)

	sel := selector.NewHeavyHLink(d.Links().Session())
	m := merger.New(d, mlgdao.AddMerger)
	c, err := coarsen.New(d, sel, m, 0.99)
	require.NoError(t, err)

	top, err := c.Run()
	require.NoError(t, err)

	sole := onlyOwnedNode(t, d, top)

	attrs, err := d.Links().GetNode(sole)
	require.NoError(t, err)
	w, _ := attrs[entity.AttrWeight].Float64()
	assert.Equal(t, 104.0, w)

	children, err := d.Children(sole)
	require.NoError(t, err)
	assert.Equal(t, 5, children.Len())

	heaviest, err := d.GetHeaviestHLink(top)
	require.NoError(t, err)
	assert.False(t, heaviest.Valid(), "top layer should have zero HLinks once fully collapsed")
}

func TestXSelectorCoarseningCollapsesToSingleNode(t *testing.T) {
	d := newFixture(t)

	sel := selector.NewX(d.Links().Session())
	m := merger.New(d, mlgdao.AddMerger)
	c, err := coarsen.New(d, sel, m, 1.0)
	require.NoError(t, err)

	top, err := c.Run()
	require.NoError(t, err)

	sole := onlyOwnedNode(t, d, top)
	attrs, err := d.Links().GetNode(sole)
	require.NoError(t, err)
	w, _ := attrs[entity.AttrWeight].Float64()
	assert.Equal(t, 104.0, w)
}

func TestNewRejectsOutOfRangeReductionFactor(t *testing.T) {
	d := newFixture(t)
	sel := selector.NewHeavyHLink(d.Links().Session())
	m := merger.New(d, mlgdao.AddMerger)

	_, err := coarsen.New(d, sel, m, -0.1)
	assert.ErrorIs(t, err, coarsen.ErrInvalidArgument)

	_, err = coarsen.New(d, sel, m, 1.5)
	assert.ErrorIs(t, err, coarsen.ErrInvalidArgument)
}

func TestZeroReductionFactorStillMergesOnePair(t *testing.T) {
	d := newFixture(t)
	sel := selector.NewHeavyHLink(d.Links().Session())
	m := merger.New(d, mlgdao.AddMerger)
	c, err := coarsen.New(d, sel, m, 0)
	require.NoError(t, err)

	top, err := c.Run()
	require.NoError(t, err)

	owned, err := d.OwnedNodes(top)
	require.NoError(t, err)
	assert.Equal(t, 4, owned.Len(), "merge_count=1 collapses exactly one heaviest pair")
}

func TestBuilderParsesMultiStepPlan(t *testing.T) {
	b, err := coarsen.Parse("Hs:[0.1,0.3] Xm:0.4")
	require.NoError(t, err)

	steps := b.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, coarsen.StepDesc{Name: "Hs", Fraction: 0.1}, steps[0])
	assert.Equal(t, coarsen.StepDesc{Name: "Hs", Fraction: 0.3}, steps[1])
	assert.Equal(t, coarsen.StepDesc{Name: "Xm", Fraction: 0.4}, steps[2])
}

func TestBuilderRejectsNonMonotoneFractions(t *testing.T) {
	b, err := coarsen.Parse("Hs:[0.4,0.1]")
	assert.ErrorIs(t, err, coarsen.ErrInvalidArgument)
	assert.Nil(t, b)
}

func TestBuilderRunExecutesStepsFIFO(t *testing.T) {
	d := newFixture(t)

	b, err := coarsen.Parse("Hs:0.5")
	require.NoError(t, err)
	require.Equal(t, 1, b.Remaining())

	results, err := b.Run(d)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, b.Remaining())

	top, err := d.Layers().TopLayer()
	require.NoError(t, err)
	assert.Equal(t, results[0], top)
}
