// Package exporter implements the dynamic-graph JSON export of spec
// §4.14: the component extractor's output serialized as a node-link
// document. The importer reads CSV only and does not read this document
// back.
package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/extract"
)

// NodeJSON is one dynamic node, indexed by its position in the nodes
// array; links reference nodes by that position.
type NodeJSON struct {
	ID        int        `json:"id"`
	Layer     entity.ID  `json:"layer"`
	Node      entity.ID  `json:"node"`
	BaseID    entity.ID  `json:"baseid"`
	Weight    float64    `json:"weight"`
	Component int        `json:"component"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
}

// LinkJSON is one dynamic edge; Source/Target are NodeJSON.ID values.
type LinkJSON struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Kind   string `json:"kind"`
}

// GraphData is the payload of the graph[0][1] entry, matching the
// reference {ts_count, ts_data_size, ts} time-series envelope: ts_count
// is the number of distinct base nodes, ts_data_size the number of
// layers, and ts the layer ids in bottom-up order.
type GraphData struct {
	TSCount    int         `json:"ts_count"`
	TSDataSize int         `json:"ts_data_size"`
	TS         []entity.ID `json:"ts"`
}

// Document is the full exported shape: {nodes, links, graph}.
type Document struct {
	Nodes []NodeJSON `json:"nodes"`
	Links []LinkJSON `json:"links"`
	Graph [][2]any   `json:"graph"`
}

func edgeKindName(k extract.EdgeKind) string {
	switch k {
	case extract.SelfEdge:
		return "self"
	case extract.CrossEdge:
		return "cross"
	default:
		return "unknown"
	}
}

// Build converts a DynamicGraph into the export Document. Positions,
// components, and per-layer weights are copied exactly as computed by
// the extractor; layers lists the bottom-up layer stack so ts_data_size
// and ts reflect it.
func Build(g *extract.DynamicGraph, layers []entity.ID) *Document {
	index := make(map[extract.DynID]int, len(g.Nodes))
	doc := &Document{Nodes: make([]NodeJSON, 0, len(g.Nodes))}

	baseIDs := make(map[entity.ID]struct{})
	for i, n := range g.Nodes {
		index[n.ID] = i
		baseIDs[n.BaseID] = struct{}{}
		doc.Nodes = append(doc.Nodes, NodeJSON{
			ID:        i,
			Layer:     n.ID.Layer,
			Node:      n.ID.Node,
			BaseID:    n.BaseID,
			Weight:    n.Weight,
			Component: n.Component,
			X:         n.X,
			Y:         n.Y,
		})
	}

	doc.Links = make([]LinkJSON, 0, len(g.Edges))
	for _, e := range g.Edges {
		from, ok1 := index[e.From]
		to, ok2 := index[e.To]
		if !ok1 || !ok2 {
			continue
		}
		doc.Links = append(doc.Links, LinkJSON{Source: from, Target: to, Kind: edgeKindName(e.Kind)})
	}

	data := GraphData{
		TSCount:    len(baseIDs),
		TSDataSize: len(layers),
		TS:         append([]entity.ID(nil), layers...),
	}
	doc.Graph = [][2]any{{"graph_data", data}}

	return doc
}

// Write serializes doc as indented JSON to w.
func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFile writes doc to a new file at path.
func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exporter: %w", err)
	}
	defer f.Close()
	return Write(f, doc)
}
