package mlgdao_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/store"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
)

func newDao(t *testing.T) (*mlgdao.MLGDao, store.Session) {
	t.Helper()
	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)
	return mlgdao.New(sess), sess
}

func TestAddNodeToLayerCreatesOwnsAndOLink(t *testing.T) {
	d, sess := newDao(t)

	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	n, err := d.AddNodeToLayer(base, nil, entity.AttrMap{entity.AttrOLinkWeight: entity.Float64Value(4.0)})
	require.NoError(t, err)

	owner, err := d.OwningLayer(n)
	require.NoError(t, err)
	assert.Equal(t, base, owner)

	olink, err := sess.FindEdgeByEndpoints(entity.TypeOLink, base, n)
	require.NoError(t, err)
	assert.True(t, olink.Valid())
}

func TestAddHLinkSafetyRejectsCrossLayer(t *testing.T) {
	d, _ := newDao(t)

	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)
	top, err := d.Layers().AddLayerOnTop(nil)
	require.NoError(t, err)

	a, err := d.AddNodeToLayer(base, nil, nil)
	require.NoError(t, err)
	b, err := d.AddNodeToLayer(top, nil, nil)
	require.NoError(t, err)

	_, err = d.AddHLink(a, b, nil)
	assert.ErrorIs(t, err, mlgdao.ErrInvalidArgument)
}

func TestMirrorTopLayerRoundTrip(t *testing.T) {
	d, sess := newDao(t)

	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	a, err := d.AddNodeToLayer(base, nil, nil)
	require.NoError(t, err)
	b, err := d.AddNodeToLayer(base, nil, nil)
	require.NoError(t, err)

	w := 6.0
	_, err = d.AddHLink(a, b, &w)
	require.NoError(t, err)

	mirror, err := d.MirrorTopLayer()
	require.NoError(t, err)
	assert.NotEqual(t, base, mirror)

	parentsA, err := d.Parents(a)
	require.NoError(t, err)
	aMirror, ok := parentsA.Any()
	require.True(t, ok)

	parentsB, err := d.Parents(b)
	require.NoError(t, err)
	bMirror, ok := parentsB.Any()
	require.True(t, ok)

	hlink, err := sess.FindEdgeByEndpoints(entity.TypeHLink, aMirror, bMirror)
	require.NoError(t, err)
	require.True(t, hlink.Valid())

	attrs, err := d.Links().GetHLink(hlink)
	require.NoError(t, err)
	gotW, _ := attrs[entity.AttrHLinkWeight].Float64()
	assert.Equal(t, 6.0, gotW)
}

func TestGetHeaviestHLink(t *testing.T) {
	d, _ := newDao(t)

	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	a, _ := d.AddNodeToLayer(base, nil, nil)
	b, _ := d.AddNodeToLayer(base, nil, nil)
	c, _ := d.AddNodeToLayer(base, nil, nil)

	w1, w2 := 2.0, 9.0
	_, err = d.AddHLink(a, b, &w1)
	require.NoError(t, err)
	heaviest, err := d.AddHLink(b, c, &w2)
	require.NoError(t, err)

	got, err := d.GetHeaviestHLink(base)
	require.NoError(t, err)
	assert.Equal(t, heaviest, got)
}

func TestHorizontalCopyHLinksMergesIntoExistingEdge(t *testing.T) {
	d, _ := newDao(t)

	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)

	src, _ := d.AddNodeToLayer(base, nil, nil)
	tgt, _ := d.AddNodeToLayer(base, nil, nil)
	kin, _ := d.AddNodeToLayer(base, nil, nil)

	wSrcKin, wTgtKin := 3.0, 2.0
	_, err = d.AddHLink(src, kin, &wSrcKin)
	require.NoError(t, err)
	_, err = d.AddHLink(tgt, kin, &wTgtKin)
	require.NoError(t, err)

	require.NoError(t, d.HorizontalCopyHLinks(src, tgt, mlgdao.AddMerger))

	id, err := d.Links().FindHLink(tgt, kin)
	require.NoError(t, err)
	require.True(t, id.Valid())
	attrs, err := d.Links().GetHLink(id)
	require.NoError(t, err)
	w, _ := attrs[entity.AttrHLinkWeight].Float64()
	assert.Equal(t, 5.0, w)
}

func TestGetSignalWalksLayerStack(t *testing.T) {
	d, _ := newDao(t)

	base, err := d.Layers().AddBaseLayer(nil)
	require.NoError(t, err)
	top, err := d.Layers().AddLayerOnTop(nil)
	require.NoError(t, err)

	ow1 := entity.AttrMap{entity.AttrOLinkWeight: entity.Float64Value(1.0)}
	n, err := d.AddNodeToLayer(base, nil, ow1)
	require.NoError(t, err)

	// mirror does not apply here; manually add the node's OLink at top too.
	w := 2.0
	_, err = d.Links().CreateOLink(top, n, &w)
	require.NoError(t, err)

	signal, err := d.GetSignal(n, base, top)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, signal)
}
