// Package extract implements the component extractor: it
// thresholds a filtered MLG's observations against a single alpha
// computed once over the entire database (or per group, when grouped),
// builds the resulting dynamic graph, finds its connected components,
// and assigns a stable layout.
package extract

import (
	"fmt"
	"math"
	"sort"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/store"
)

// DynID identifies one dynamic node: a (layer, base node) pair.
type DynID struct {
	Layer entity.ID
	Node  entity.ID
}

// EdgeKind distinguishes a persistence edge (same base node across
// consecutive layers) from a propagation edge (distinct base-topology
// neighbors across consecutive layers).
type EdgeKind int

const (
	SelfEdge EdgeKind = iota
	CrossEdge
)

// DynNode is one active (layer, node) observation promoted into the
// dynamic graph.
type DynNode struct {
	ID        DynID
	BaseID    entity.ID
	Attrs     entity.AttrMap
	Weight    float64
	Component int
	X, Y      int
}

// DynEdge connects two dynamic nodes across consecutive layers.
type DynEdge struct {
	From, To DynID
	Kind     EdgeKind
}

// DynamicGraph is the directed, bundled-property result of one
// extraction pass.
type DynamicGraph struct {
	Nodes []DynNode
	Edges []DynEdge
}

// Extractor builds a DynamicGraph from dao's current (presumably
// filtered) state.
type Extractor struct {
	dao *mlgdao.MLGDao

	// AlphaOverride, if non-nil, replaces the automatic threshold for
	// every layer (and every group, if GroupAttr is set).
	AlphaOverride *float64

	// GroupAttr, if non-empty, names a node attribute used to partition
	// the automatic threshold: each distinct attribute value gets its
	// own alpha.
	GroupAttr string
}

// New builds an extractor over dao.
func New(dao *mlgdao.MLGDao) *Extractor {
	return &Extractor{dao: dao}
}

type observation struct {
	node   entity.ID
	weight float64
	group  string
}

// Run executes the full extraction pass.
func (e *Extractor) Run() (*DynamicGraph, error) {
	layers, err := e.dao.Layers().AllLayersBottomUp()
	if err != nil {
		return nil, err
	}

	var owned store.Set
	if len(layers) > 0 {
		base, err := e.dao.Layers().BaseLayer()
		if err != nil {
			return nil, err
		}
		if owned, err = e.dao.OwnedNodes(base); err != nil {
			return nil, err
		}
	}

	perLayerObs := make([][]observation, len(layers))
	for i, l := range layers {
		obs, err := e.layerObservations(l, owned)
		if err != nil {
			return nil, err
		}
		perLayerObs[i] = obs
	}

	var allObs []observation
	for _, obs := range perLayerObs {
		allObs = append(allObs, obs...)
	}
	alpha := e.thresholds(allObs)

	g := &DynamicGraph{}
	active := make(map[DynID]bool)
	nodeAttrsCache := make(map[entity.ID]entity.AttrMap)

	for i, l := range layers {
		for _, o := range perLayerObs[i] {
			if math.Abs(o.weight) < alpha[o.group] {
				continue
			}
			attrs, err := e.nodeAttrs(nodeAttrsCache, o.node)
			if err != nil {
				return nil, err
			}
			dyn := DynID{Layer: l, Node: o.node}
			active[dyn] = true
			g.Nodes = append(g.Nodes, DynNode{
				ID:     dyn,
				BaseID: o.node,
				Attrs:  cloneWithBaseID(attrs, o.node),
				Weight: o.weight,
			})
		}
	}

	baseHLinks, err := e.baseHLinks()
	if err != nil {
		return nil, err
	}

	for i := 0; i+1 < len(layers); i++ {
		lk, lk1 := layers[i], layers[i+1]
		for _, o := range perLayerObs[i] {
			self := DynID{Layer: lk, Node: o.node}
			next := DynID{Layer: lk1, Node: o.node}
			if active[self] && active[next] {
				g.Edges = append(g.Edges, DynEdge{From: self, To: next, Kind: SelfEdge})
			}
		}
		for _, hl := range baseHLinks {
			a, b := hl.a, hl.b
			aK, bK := DynID{Layer: lk, Node: a}, DynID{Layer: lk, Node: b}
			aK1, bK1 := DynID{Layer: lk1, Node: a}, DynID{Layer: lk1, Node: b}
			if !active[aK] || !active[aK1] || !active[bK] || !active[bK1] {
				continue
			}
			g.Edges = append(g.Edges, DynEdge{From: aK, To: bK1, Kind: CrossEdge})
			g.Edges = append(g.Edges, DynEdge{From: bK, To: aK1, Kind: CrossEdge})
		}
	}

	assignComponents(g)
	assignLayout(g, layers)

	return g, nil
}

func (e *Extractor) layerObservations(l entity.ID, owned store.Set) ([]observation, error) {
	links := e.dao.Links()
	out := make([]observation, 0, owned.Len())
	for _, n := range owned.Ids() {
		id, err := links.FindOLink(l, n)
		if err != nil {
			return nil, err
		}
		var w float64
		if id.Valid() {
			attrs, err := links.GetOLink(id)
			if err != nil {
				return nil, err
			}
			w, _ = attrs[entity.AttrOLinkWeight].Float64()
		}
		group := ""
		if e.GroupAttr != "" {
			attrs, err := links.GetNode(n)
			if err != nil {
				return nil, err
			}
			group = groupKeyOf(attrs[e.GroupAttr])
		}
		out = append(out, observation{node: n, weight: w, group: group})
	}
	return out, nil
}

// thresholds returns alpha(group) computed once over every observation
// in the database, either the override constant or max(|max|,|min|)/2
// within the group (the whole database is one group when GroupAttr is
// unset).
func (e *Extractor) thresholds(obs []observation) map[string]float64 {
	if e.AlphaOverride != nil {
		out := map[string]float64{}
		for _, o := range obs {
			out[o.group] = *e.AlphaOverride
		}
		return out
	}

	type bounds struct{ max, min float64 }
	seen := map[string]*bounds{}
	for _, o := range obs {
		b, ok := seen[o.group]
		if !ok {
			b = &bounds{max: o.weight, min: o.weight}
			seen[o.group] = b
			continue
		}
		if o.weight > b.max {
			b.max = o.weight
		}
		if o.weight < b.min {
			b.min = o.weight
		}
	}
	out := make(map[string]float64, len(seen))
	for group, b := range seen {
		out[group] = math.Max(math.Abs(b.max), math.Abs(b.min)) / 2
	}
	return out
}

func (e *Extractor) nodeAttrs(cache map[entity.ID]entity.AttrMap, n entity.ID) (entity.AttrMap, error) {
	if attrs, ok := cache[n]; ok {
		return attrs, nil
	}
	attrs, err := e.dao.Links().GetNode(n)
	if err != nil {
		return nil, err
	}
	cache[n] = attrs
	return attrs, nil
}

func cloneWithBaseID(attrs entity.AttrMap, n entity.ID) entity.AttrMap {
	out := make(entity.AttrMap, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out["baseid"] = entity.IDValue(n)
	return out
}

func groupKeyOf(v entity.Value) string {
	if s, ok := v.String(); ok {
		return s
	}
	if f, ok := v.Float64(); ok {
		return fmt.Sprintf("%v", f)
	}
	if b, ok := v.Bool(); ok {
		return fmt.Sprintf("%v", b)
	}
	return ""
}

type baseEdge struct{ a, b entity.ID }

func (e *Extractor) baseHLinks() ([]baseEdge, error) {
	base, err := e.dao.Layers().BaseLayer()
	if err != nil {
		return nil, err
	}
	if !base.Valid() {
		return nil, nil
	}
	owned, err := e.dao.OwnedNodes(base)
	if err != nil {
		return nil, err
	}
	sess := e.dao.Links().Session()
	seen := map[entity.ID]bool{}
	var out []baseEdge
	for _, n := range owned.Ids() {
		neigh, err := sess.Neighborhood(entity.TypeHLink, sess.NewSet(n), store.Any)
		if err != nil {
			return nil, err
		}
		for _, m := range neigh.Ids() {
			if seen[m] {
				continue
			}
			out = append(out, baseEdge{a: n, b: m})
		}
		seen[n] = true
	}
	return out, nil
}

// assignComponents runs connected components over the dynamic graph's
// undirected adjacency view (both self and cross edges), grounded on a
// plain adjacency-map BFS.
func assignComponents(g *DynamicGraph) {
	adj := make(map[DynID]map[DynID]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		adj[n.ID] = map[DynID]struct{}{}
	}
	for _, e := range g.Edges {
		adj[e.From][e.To] = struct{}{}
		adj[e.To][e.From] = struct{}{}
	}

	comp := make(map[DynID]int, len(g.Nodes))
	next := 0
	for _, n := range g.Nodes {
		if _, done := comp[n.ID]; done {
			continue
		}
		queue := []DynID{n.ID}
		comp[n.ID] = next
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for nb := range adj[cur] {
				if _, done := comp[nb]; !done {
					comp[nb] = next
					queue = append(queue, nb)
				}
			}
		}
		next++
	}

	for i := range g.Nodes {
		g.Nodes[i].Component = comp[g.Nodes[i].ID]
	}
}

// assignLayout sets x to the layer's bottom-up rank and y to a stable
// per-baseid ordinal.
func assignLayout(g *DynamicGraph, layers []entity.ID) {
	rank := make(map[entity.ID]int, len(layers))
	for i, l := range layers {
		rank[l] = i
	}

	baseIDs := make([]entity.ID, 0)
	seen := map[entity.ID]bool{}
	for _, n := range g.Nodes {
		if !seen[n.BaseID] {
			seen[n.BaseID] = true
			baseIDs = append(baseIDs, n.BaseID)
		}
	}
	sort.Slice(baseIDs, func(i, j int) bool { return baseIDs[i] < baseIDs[j] })
	ordinal := make(map[entity.ID]int, len(baseIDs))
	for i, id := range baseIDs {
		ordinal[id] = i
	}

	for i := range g.Nodes {
		g.Nodes[i].X = rank[g.Nodes[i].ID.Layer]
		g.Nodes[i].Y = ordinal[g.Nodes[i].BaseID]
	}
}
