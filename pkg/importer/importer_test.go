package importer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/importer"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/schema"
	"github.com/orneryd/mlgraph/pkg/store/badgerstore"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestImportNodesAndEdgesS5Like(t *testing.T) {
	dir := t.TempDir()
	nodesPath := writeFile(t, dir, "nodes.csv", ""+
		"#id,weight,label,category,ts:3\n"+
		"a1,2,alpha,x,5,6,1\n"+
		"a2,3,beta,y,-5,-8,1\n"+
		"a3,1,gamma,x,1,-1,7\n")
	edgesPath := writeFile(t, dir, "edges.csv", ""+
		"src,tgt,weight,kind\n"+
		"a1,a2,0.5,strong\n"+
		"a1,a3,0.25,weak\n"+
		"a2,a2,1.0,selfloop\n")

	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)

	dao := mlgdao.New(sess)

	res, err := importer.Import(s, dao, nodesPath, edgesPath, importer.Options{AutoCreateAttrs: true})
	require.NoError(t, err)

	assert.Equal(t, 3, res.NodesImported)
	assert.Equal(t, 2, res.EdgesImported)
	assert.Equal(t, 1, res.SkippedSelfLoops)
	assert.Equal(t, 3, res.LayersCreated)

	base, err := dao.Layers().BaseLayer()
	require.NoError(t, err)
	owned, err := dao.OwnedNodes(base)
	require.NoError(t, err)
	assert.Equal(t, 3, owned.Len())

	var a1 entity.ID
	for _, n := range owned.Ids() {
		attrs, err := dao.Links().GetNode(n)
		require.NoError(t, err)
		if s, ok := attrs["id"].String(); ok && s == "a1" {
			a1 = n
		}
	}
	require.True(t, a1.Valid(), "explicit id attribute must round-trip")

	attrs, err := dao.Links().GetNode(a1)
	require.NoError(t, err)
	w, _ := attrs[entity.AttrWeight].Float64()
	assert.Equal(t, 2.0, w)
	lbl, _ := attrs[entity.AttrLabel].String()
	assert.Equal(t, "alpha", lbl)
	cat, _ := attrs["category"].String()
	assert.Equal(t, "x", cat)

	id, err := dao.Links().FindOLink(base, a1)
	require.NoError(t, err)
	require.True(t, id.Valid())
	olinkAttrs, err := dao.Links().GetOLink(id)
	require.NoError(t, err)
	ow, _ := olinkAttrs[entity.AttrOLinkWeight].Float64()
	assert.Equal(t, 5.0, ow)
}

func TestImportAppliesSchemaOverlayKinds(t *testing.T) {
	dir := t.TempDir()
	nodesPath := writeFile(t, dir, "nodes.csv", ""+
		"#id,weight,active,hits,ts:1\n"+
		"a1,2,true,42,5\n")
	edgesPath := writeFile(t, dir, "edges.csv", "src,tgt\n")
	schemaPath := writeFile(t, dir, "schema.yaml", ""+
		"node_attrs:\n"+
		"  - name: active\n"+
		"    kind: bool\n"+
		"  - name: hits\n"+
		"    kind: int64\n"+
		"    indexed: true\n")

	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)

	dao := mlgdao.New(sess)
	res, err := importer.Import(s, dao, nodesPath, edgesPath, importer.Options{SchemaPath: schemaPath})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesImported)

	base, err := dao.Layers().BaseLayer()
	require.NoError(t, err)
	owned, err := dao.OwnedNodes(base)
	require.NoError(t, err)
	require.Equal(t, 1, owned.Len())

	attrs, err := dao.Links().GetNode(owned.Ids()[0])
	require.NoError(t, err)
	active, ok := attrs["active"].Bool()
	require.True(t, ok)
	assert.True(t, active)
	require.Equal(t, entity.KindInt64, attrs["hits"].Kind)
	assert.Equal(t, int64(42), attrs["hits"].I64)
}

func TestImportFallsBackToRowOrdinalWithoutIDColumn(t *testing.T) {
	dir := t.TempDir()
	nodesPath := writeFile(t, dir, "nodes.csv", ""+
		"#label,ts:1\n"+
		"first,10\n"+
		"second,20\n")
	edgesPath := writeFile(t, dir, "edges.csv", ""+
		"src,tgt\n"+
		"0,1\n")

	s, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, schema.Declare(s))
	t.Cleanup(func() { _ = s.Close() })
	sess, err := s.Begin()
	require.NoError(t, err)

	dao := mlgdao.New(sess)
	res, err := importer.Import(s, dao, nodesPath, edgesPath, importer.Options{AutoCreateAttrs: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.NodesImported)
	assert.Equal(t, 1, res.EdgesImported)
}
