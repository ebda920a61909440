package exporter_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/exporter"
	"github.com/orneryd/mlgraph/pkg/extract"
)

func TestBuildPreservesPositionsAndComponents(t *testing.T) {
	l1, l2 := entity.ID(10), entity.ID(20)
	n1, n2 := entity.ID(1), entity.ID(2)

	g := &extract.DynamicGraph{
		Nodes: []extract.DynNode{
			{ID: extract.DynID{Layer: l1, Node: n1}, BaseID: n1, Weight: 5, Component: 0, X: 0, Y: 0},
			{ID: extract.DynID{Layer: l2, Node: n1}, BaseID: n1, Weight: 6, Component: 0, X: 1, Y: 0},
			{ID: extract.DynID{Layer: l1, Node: n2}, BaseID: n2, Weight: -5, Component: 1, X: 0, Y: 1},
		},
		Edges: []extract.DynEdge{
			{From: extract.DynID{Layer: l1, Node: n1}, To: extract.DynID{Layer: l2, Node: n1}, Kind: extract.SelfEdge},
		},
	}

	doc := exporter.Build(g, []entity.ID{l1, l2})
	require.Len(t, doc.Nodes, 3)
	require.Len(t, doc.Links, 1)

	assert.Equal(t, 0, doc.Links[0].Source)
	assert.Equal(t, 1, doc.Links[0].Target)
	assert.Equal(t, "self", doc.Links[0].Kind)

	assert.Equal(t, 6.0, doc.Nodes[1].Weight)
	assert.Equal(t, 1, doc.Nodes[1].X)
	assert.Equal(t, 1, doc.Nodes[2].Component)

	require.Len(t, doc.Graph, 1)
	assert.Equal(t, "graph_data", doc.Graph[0][0])
	data, ok := doc.Graph[0][1].(exporter.GraphData)
	require.True(t, ok)
	assert.Equal(t, 2, data.TSCount)
	assert.Equal(t, 2, data.TSDataSize)
	assert.Equal(t, []entity.ID{l1, l2}, data.TS)
}

func TestWriteProducesValidJSONWithGraphDataEnvelope(t *testing.T) {
	g := &extract.DynamicGraph{
		Nodes: []extract.DynNode{
			{ID: extract.DynID{Layer: 1, Node: 1}, BaseID: 1, Weight: 5},
		},
	}
	doc := exporter.Build(g, []entity.ID{1})

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, doc))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Contains(t, parsed, "nodes")
	assert.Contains(t, parsed, "links")
	assert.Contains(t, parsed, "graph")

	graph, ok := parsed["graph"].([]any)
	require.True(t, ok)
	require.Len(t, graph, 1)
	entry, ok := graph[0].([]any)
	require.True(t, ok)
	assert.Equal(t, "graph_data", entry[0])
	payload, ok := entry[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), payload["ts_count"])
}
