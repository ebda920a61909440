package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/selector"
	"github.com/orneryd/mlgraph/pkg/store"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
)

func newFixture(t *testing.T) (*mlgdao.MLGDao, store.Session, entity.ID, map[string]entity.ID) {
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
		var w float64 = 1.0
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

	return d, sess, base, nodes
}

func TestHeavyHLinkScoresAreMonotonicNonIncreasing(t *testing.T) {
	_, sess, base, _ := newFixture(t)

	sel := selector.NewHeavyHLink(sess)
	require.NoError(t, sel.Rank(base))

	var scores []float64
	for sel.HasNext() {
		id := sel.Next(false)
		score, ok := sel.ScoreOf(id)
		require.True(t, ok)
		scores = append(scores, score)
		sel.Next(true)
	}
	require.Len(t, scores, 5)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1], scores[i])
	}
}

func TestHeavyHLinkFirstNodeTouchesHeaviestEdge(t *testing.T) {
	_, sess, base, nodes := newFixture(t)

	sel := selector.NewHeavyHLink(sess)
	require.NoError(t, sel.Rank(base))

	order := make([]entity.ID, 0, 5)
	for sel.HasNext() {
		order = append(order, sel.Next(true))
	}

	expectedFirst := nodes["n1"] // heaviest incident edge (5) touches n1 and n2
	assert.Contains(t, []entity.ID{nodes["n1"], nodes["n2"]}, order[0])
	_ = expectedFirst
}

func TestHeavyHLinkGetNodesToMergeReturnsHeaviestNeighbor(t *testing.T) {
	_, sess, base, nodes := newFixture(t)

	sel := selector.NewHeavyHLink(sess)
	require.NoError(t, sel.Rank(base))

	root := sel.Next(true)
	merge, err := sel.GetNodesToMerge()
	require.NoError(t, err)
	require.Len(t, merge, 1)

	if root == nodes["n1"] {
		assert.Equal(t, nodes["n2"], merge[0])
	} else if root == nodes["n2"] {
		assert.Equal(t, nodes["n1"], merge[0])
	}
}

func TestXSelectorRanks(t *testing.T) {
	_, sess, base, _ := newFixture(t)

	sel := selector.NewX(sess)
	require.NoError(t, sel.Rank(base))

	count := 0
	for sel.HasNext() {
		sel.Next(true)
		count++
	}
	assert.Equal(t, 5, count)
}
