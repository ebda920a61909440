package layerdao_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/layerdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/store"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
)

func newSession(t *testing.T) store.Session {
	t.Helper()
	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)
	return sess
}

func TestAddBaseLayerFailsIfOneExists(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	_, err := d.AddBaseLayer(nil)
	require.NoError(t, err)

	_, err = d.AddBaseLayer(nil)
	assert.ErrorIs(t, err, layerdao.ErrInvalidArgument)
}

func TestStackBuildupAndLookups(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	base, err := d.AddBaseLayer(nil)
	require.NoError(t, err)

	mid, err := d.AddLayerOnTop(nil)
	require.NoError(t, err)
	top, err := d.AddLayerOnTop(nil)
	require.NoError(t, err)
	bottom, err := d.AddLayerOnBottom(nil)
	require.NoError(t, err)

	gotBase, err := d.BaseLayer()
	require.NoError(t, err)
	assert.Equal(t, base, gotBase)

	gotTop, err := d.TopLayer()
	require.NoError(t, err)
	assert.Equal(t, top, gotTop)

	gotBottom, err := d.BottomLayer()
	require.NoError(t, err)
	assert.Equal(t, bottom, gotBottom)

	all, err := d.AllLayersBottomUp()
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{bottom, base, mid, top}, all)

	count, err := d.LayerCount()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSetAsBaseLayerMovesFlag(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	base, err := d.AddBaseLayer(nil)
	require.NoError(t, err)
	top, err := d.AddLayerOnTop(nil)
	require.NoError(t, err)

	require.NoError(t, d.SetAsBaseLayer(top))

	gotBase, err := d.BaseLayer()
	require.NoError(t, err)
	assert.Equal(t, top, gotBase)
	assert.NotEqual(t, base, gotBase)
}

func TestRemoveTopLayerAllowedOnSoleBase(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	_, err := d.AddBaseLayer(nil)
	require.NoError(t, err)

	err = d.RemoveTopLayer()
	assert.NoError(t, err) // sole layer: top==base, count==1, allowed

	count, err := d.LayerCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRemoveTopLayerRemovesNonBaseTopThenSoleBase(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	base, err := d.AddBaseLayer(nil)
	require.NoError(t, err)
	_, err = d.AddLayerOnTop(nil)
	require.NoError(t, err)

	require.NoError(t, d.RemoveTopLayer()) // removes the non-base top

	err = d.RemoveTopLayer() // now top==base, but it's the sole layer
	require.NoError(t, err)

	count, err := d.LayerCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	_ = base
}

func TestRemoveAllButBase(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	base, err := d.AddBaseLayer(nil)
	require.NoError(t, err)
	_, err = d.AddLayerOnTop(nil)
	require.NoError(t, err)
	_, err = d.AddLayerOnBottom(nil)
	require.NoError(t, err)

	require.NoError(t, d.RemoveAllButBase())

	count, err := d.LayerCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	gotBase, err := d.BaseLayer()
	require.NoError(t, err)
	assert.Equal(t, base, gotBase)
}

func TestAffiliated(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	base, err := d.AddBaseLayer(nil)
	require.NoError(t, err)
	top, err := d.AddLayerOnTop(nil)
	require.NoError(t, err)

	ok, err := d.Affiliated(base, top)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Affiliated(top, base)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDropLayerCascadesOwnedNodes(t *testing.T) {
	sess := newSession(t)
	d := layerdao.New(sess)

	base, err := d.AddBaseLayer(nil)
	require.NoError(t, err)
	top, err := d.AddLayerOnTop(nil)
	require.NoError(t, err)

	nodeID, err := sess.CreateNode(entity.TypeNode, nil)
	require.NoError(t, err)
	_, err = sess.CreateEdge(entity.TypeOwns, top, nodeID, nil)
	require.NoError(t, err)
	_, err = sess.CreateEdge(entity.TypeOLink, top, nodeID, nil)
	require.NoError(t, err)

	require.NoError(t, d.RemoveTopLayer())

	_, err = sess.GetNode(entity.TypeNode, nodeID)
	assert.Error(t, err)
	_ = base
}
