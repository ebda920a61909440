// Package mlgdao composes layerdao and linkdao into the layer-aware
// mutating operations: every write that must respect layer
// affiliation goes through here instead of linkdao directly.
package mlgdao

import (
	"errors"
	"fmt"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/layerdao"
	"github.com/orneryd/mlgraph/pkg/linkdao"
	"github.com/orneryd/mlgraph/pkg/store"
)

var (
	ErrInvalidArgument   = errors.New("mlgdao: invalid argument")
	ErrInvariantViolated = errors.New("mlgdao: invariant violated")
)

// Merger combines a target weight with a neighbor weight, used by the
// copy operations below. The additive merger (the only one the
// selector contracts assume) is AddMerger.
type Merger func(target, neighbor float64) float64

// AddMerger is the default binary merger: addition.
func AddMerger(target, neighbor float64) float64 { return target + neighbor }

// MLGDao composes layerdao and linkdao over one shared session.
type MLGDao struct {
	sess     store.Session
	layers   *layerdao.LayerDAO
	links    *linkdao.LinkDAO
	SafetyOn bool // enforces layer-affiliation checks on add_hlink/add_vlink
}

// New wraps a session. Safety checks are on by default
// ("enforces ... when the safety flag is on").
func New(sess store.Session) *MLGDao {
	return &MLGDao{
		sess:     sess,
		layers:   layerdao.New(sess),
		links:    linkdao.New(sess),
		SafetyOn: true,
	}
}

func (d *MLGDao) Layers() *layerdao.LayerDAO { return d.layers }
func (d *MLGDao) Links() *linkdao.LinkDAO    { return d.links }

// OwnedNodes returns every node owned by layer l.
func (d *MLGDao) OwnedNodes(l entity.ID) (store.Set, error) {
	return d.sess.Neighborhood(entity.TypeOwns, d.sess.NewSet(l), store.Out)
}

// OwningLayer returns the layer that owns node n, or InvalidID.
func (d *MLGDao) OwningLayer(n entity.ID) (entity.ID, error) {
	owners, err := d.sess.Neighborhood(entity.TypeOwns, d.sess.NewSet(n), store.In)
	if err != nil {
		return entity.InvalidID, err
	}
	id, ok := owners.Any()
	if !ok {
		return entity.InvalidID, nil
	}
	return id, nil
}

// AddNodeToLayer creates a node, an Owns edge L->node, and an OLink
// L->node carrying the given (or default) observation weight.
func (d *MLGDao) AddNodeToLayer(l entity.ID, nodeAttrs, olinkAttrs entity.AttrMap) (entity.ID, error) {
	n, err := d.links.CreateNode(nodeAttrs)
	if err != nil {
		return entity.InvalidID, err
	}
	if _, err := d.sess.CreateEdge(entity.TypeOwns, l, n, nil); err != nil {
		return entity.InvalidID, err
	}
	if _, err := d.sess.CreateEdge(entity.TypeOLink, l, n, olinkAttrs); err != nil {
		return entity.InvalidID, err
	}
	return n, nil
}

// AddHLink enforces same owning layer when SafetyOn.
func (d *MLGDao) AddHLink(a, b entity.ID, weight *float64) (entity.ID, error) {
	if d.SafetyOn {
		la, err := d.OwningLayer(a)
		if err != nil {
			return entity.InvalidID, err
		}
		lb, err := d.OwningLayer(b)
		if err != nil {
			return entity.InvalidID, err
		}
		if !la.Valid() || la != lb {
			return entity.InvalidID, fmt.Errorf("%w: HLink endpoints must share an owning layer", ErrInvalidArgument)
		}
	}
	return d.links.CreateHLink(a, b, weight)
}

// AddVLink enforces adjacency of owning layers when SafetyOn.
func (d *MLGDao) AddVLink(child, parent entity.ID, weight *float64) (entity.ID, error) {
	if d.SafetyOn {
		lc, err := d.OwningLayer(child)
		if err != nil {
			return entity.InvalidID, err
		}
		lp, err := d.OwningLayer(parent)
		if err != nil {
			return entity.InvalidID, err
		}
		parentOfChildLayer, err := d.layers.Parent(lc)
		if err != nil {
			return entity.InvalidID, err
		}
		if parentOfChildLayer != lp {
			return entity.InvalidID, fmt.Errorf("%w: VLink endpoints must be on adjacent layers", ErrInvalidArgument)
		}
	}
	return d.links.CreateVLink(child, parent, weight)
}

// MirrorTopLayer creates a new layer above the current top and clones
// every node/HLink of the top layer onto it, linked by fresh VLinks.
func (d *MLGDao) MirrorTopLayer() (entity.ID, error) {
	top, err := d.layers.TopLayer()
	if err != nil {
		return entity.InvalidID, err
	}
	if !top.Valid() {
		return entity.InvalidID, fmt.Errorf("%w: no layer to mirror", ErrInvalidArgument)
	}
	return d.mirror(top, true)
}

// MirrorBottomLayer creates a new layer below the current bottom and
// clones every node/HLink of the bottom layer onto it.
func (d *MLGDao) MirrorBottomLayer() (entity.ID, error) {
	bottom, err := d.layers.BottomLayer()
	if err != nil {
		return entity.InvalidID, err
	}
	if !bottom.Valid() {
		return entity.InvalidID, fmt.Errorf("%w: no layer to mirror", ErrInvalidArgument)
	}
	return d.mirror(bottom, false)
}

func (d *MLGDao) mirror(src entity.ID, above bool) (entity.ID, error) {
	var dst entity.ID
	var err error
	if above {
		dst, err = d.layers.AddLayerOnTop(nil)
	} else {
		dst, err = d.layers.AddLayerOnBottom(nil)
	}
	if err != nil {
		return entity.InvalidID, err
	}

	owned, err := d.sess.Neighborhood(entity.TypeOwns, d.sess.NewSet(src), store.Out)
	if err != nil {
		return entity.InvalidID, err
	}

	mirrorOf := make(map[entity.ID]entity.ID, owned.Len())
	cloneNode := func(srcNode entity.ID) (entity.ID, error) {
		if m, ok := mirrorOf[srcNode]; ok {
			return m, nil
		}
		attrs, err := d.links.GetNode(srcNode)
		if err != nil {
			return entity.InvalidID, err
		}
		olinkID, err := d.sess.FindEdgeByEndpoints(entity.TypeOLink, src, srcNode)
		if err != nil {
			return entity.InvalidID, err
		}
		var olinkAttrs entity.AttrMap
		if olinkID.Valid() {
			olinkAttrs, err = d.links.GetOLink(olinkID)
			if err != nil {
				return entity.InvalidID, err
			}
		}
		m, err := d.AddNodeToLayer(dst, attrs, olinkAttrs)
		if err != nil {
			return entity.InvalidID, err
		}
		mirrorOf[srcNode] = m
		var childParent [2]entity.ID
		if above {
			childParent = [2]entity.ID{srcNode, m}
		} else {
			childParent = [2]entity.ID{m, srcNode}
		}
		if _, err := d.links.CreateVLink(childParent[0], childParent[1], nil); err != nil {
			return entity.InvalidID, err
		}
		return m, nil
	}

	for _, srcNode := range owned.Ids() {
		if _, err := cloneNode(srcNode); err != nil {
			return entity.InvalidID, err
		}
	}

	hlinks, err := d.sess.IncidentEdges(entity.TypeHLink, owned, store.Any)
	if err != nil {
		return entity.InvalidID, err
	}
	for _, h := range hlinks.Ids() {
		tail, head, err := d.sess.EdgeEndpoints(entity.TypeHLink, h)
		if err != nil {
			return entity.InvalidID, err
		}
		attrs, err := d.links.GetHLink(h)
		if err != nil {
			return entity.InvalidID, err
		}
		w, _ := attrs[entity.AttrHLinkWeight].Float64()
		mt, mh := mirrorOf[tail], mirrorOf[head]
		if !mt.Valid() || !mh.Valid() {
			continue
		}
		if _, err := d.links.CreateHLink(mt, mh, &w); err != nil {
			return entity.InvalidID, err
		}
	}

	return dst, nil
}

// DropNodeCascade removes n and every HLink/VLink/OLink/Owns edge
// incident to it, then the node itself. Used by merger.Merge when a
// neighbor is folded away.
func (d *MLGDao) DropNodeCascade(n entity.ID) error {
	for _, edgeType := range []string{entity.TypeHLink, entity.TypeVLink, entity.TypeOLink, entity.TypeOwns} {
		incident, err := d.sess.IncidentEdges(edgeType, d.sess.NewSet(n), store.Any)
		if err != nil {
			return err
		}
		for _, e := range incident.Ids() {
			if err := d.sess.DropEdge(edgeType, e); err != nil {
				return err
			}
		}
	}
	return d.sess.DropNode(entity.TypeNode, n)
}

// Parents returns id's VLink parents (one hop up).
func (d *MLGDao) Parents(id entity.ID) (store.Set, error) {
	return d.sess.Neighborhood(entity.TypeVLink, d.sess.NewSet(id), store.Out)
}

// Children returns id's VLink children (one hop down).
func (d *MLGDao) Children(id entity.ID) (store.Set, error) {
	return d.sess.Neighborhood(entity.TypeVLink, d.sess.NewSet(id), store.In)
}

// CheckAffiliation verifies that tgt is reachable from src across VLinks
// in the requested direction ("up" follows Parents, "down" follows
// Children).
func (d *MLGDao) CheckAffiliation(src, tgt entity.ID, up bool) (bool, error) {
	frontier := d.sess.NewSet(src)
	seen := d.sess.NewSet(src)
	for frontier.Len() > 0 {
		var next store.Set
		var err error
		if up {
			next, err = d.Parents2(frontier)
		} else {
			next, err = d.Children2(frontier)
		}
		if err != nil {
			return false, err
		}
		if next.Contains(tgt) {
			return true, nil
		}
		frontier = next.Diff(seen)
		seen = seen.Union(next)
	}
	return false, nil
}

// Parents2 returns the union of VLink parents across every id in ids.
func (d *MLGDao) Parents2(ids store.Set) (store.Set, error) {
	return d.sess.Neighborhood(entity.TypeVLink, ids, store.Out)
}

// Children2 returns the union of VLink children across every id in ids.
func (d *MLGDao) Children2(ids store.Set) (store.Set, error) {
	return d.sess.Neighborhood(entity.TypeVLink, ids, store.In)
}

// GetHeaviestHLink iterates HLink weights in descending order and returns
// the first whose edge belongs to layer l.
func (d *MLGDao) GetHeaviestHLink(l entity.ID) (entity.ID, error) {
	owned, err := d.sess.Neighborhood(entity.TypeOwns, d.sess.NewSet(l), store.Out)
	if err != nil {
		return entity.InvalidID, err
	}
	layerHLinks, err := d.sess.IncidentEdges(entity.TypeHLink, owned, store.Any)
	if err != nil {
		return entity.InvalidID, err
	}
	ordered, err := d.sess.IterateByAttrDesc(entity.TypeHLink, entity.AttrHLinkWeight, layerHLinks)
	if err != nil {
		return entity.InvalidID, err
	}
	if len(ordered) == 0 {
		return entity.InvalidID, nil
	}
	return ordered[0], nil
}

// HorizontalCopyHLinks copies every HLink incident to src onto tgt: an
// existing tgt-kin edge is merged via merge, otherwise a new edge with
// the same weight is created. Links between src and tgt are skipped to
// avoid self-loops once src is later dropped.
func (d *MLGDao) HorizontalCopyHLinks(src, tgt entity.ID, merge Merger) error {
	if merge == nil {
		merge = AddMerger
	}
	incident, err := d.sess.IncidentEdges(entity.TypeHLink, d.sess.NewSet(src), store.Any)
	if err != nil {
		return err
	}
	for _, h := range incident.Ids() {
		tail, head, err := d.sess.EdgeEndpoints(entity.TypeHLink, h)
		if err != nil {
			return err
		}
		other := tail
		if tail == src {
			other = head
		}
		if other == tgt || other == src {
			continue
		}
		attrs, err := d.links.GetHLink(h)
		if err != nil {
			return err
		}
		w, _ := attrs[entity.AttrHLinkWeight].Float64()

		existing, err := d.links.FindHLink(tgt, other)
		if err != nil {
			return err
		}
		if existing.Valid() {
			exAttrs, err := d.links.GetHLink(existing)
			if err != nil {
				return err
			}
			ew, _ := exAttrs[entity.AttrHLinkWeight].Float64()
			if err := d.links.UpdateHLinkWeight(existing, merge(ew, w)); err != nil {
				return err
			}
		} else {
			if _, err := d.links.CreateHLink(tgt, other, &w); err != nil {
				return err
			}
		}
	}
	return nil
}

// HorizontalCopyVLinks copies every VLink incident to src onto tgt, with
// the same merge-or-create semantics as HorizontalCopyHLinks.
func (d *MLGDao) HorizontalCopyVLinks(src, tgt entity.ID, merge Merger) error {
	if merge == nil {
		merge = AddMerger
	}
	out, err := d.sess.IncidentEdges(entity.TypeVLink, d.sess.NewSet(src), store.Out)
	if err != nil {
		return err
	}
	for _, v := range out.Ids() {
		_, parent, err := d.sess.EdgeEndpoints(entity.TypeVLink, v)
		if err != nil {
			return err
		}
		if err := d.copyVLink(tgt, parent, true, v, merge); err != nil {
			return err
		}
	}
	in, err := d.sess.IncidentEdges(entity.TypeVLink, d.sess.NewSet(src), store.In)
	if err != nil {
		return err
	}
	for _, v := range in.Ids() {
		child, _, err := d.sess.EdgeEndpoints(entity.TypeVLink, v)
		if err != nil {
			return err
		}
		if err := d.copyVLink(child, tgt, false, v, merge); err != nil {
			return err
		}
	}
	return nil
}

func (d *MLGDao) copyVLink(child, parent entity.ID, tgtIsChild bool, srcEdge entity.ID, merge Merger) error {
	attrs, err := d.links.GetVLink(srcEdge)
	if err != nil {
		return err
	}
	w, _ := attrs[entity.AttrVLinkWeight].Float64()

	existing, err := d.links.FindVLink(child, parent)
	if err != nil {
		return err
	}
	if existing.Valid() {
		exAttrs, err := d.links.GetVLink(existing)
		if err != nil {
			return err
		}
		ew, _ := exAttrs[entity.AttrVLinkWeight].Float64()
		return d.sess.SetEdgeAttrs(entity.TypeVLink, existing, entity.AttrMap{entity.AttrVLinkWeight: entity.Float64Value(merge(ew, w))})
	}
	_, err = d.links.CreateVLink(child, parent, &w)
	return err
}

// VerticalCopyHLinks finds src's kin (parents or children, per
// direction up/down) and creates or merge-updates HLinks from tgt to
// each kin, for every HLink neighbor of src restricted to subset (nil
// means unrestricted).
func (d *MLGDao) VerticalCopyHLinks(src, tgt entity.ID, up bool, subset store.Set, merge Merger) error {
	if merge == nil {
		merge = AddMerger
	}
	neigh, err := d.sess.Neighborhood(entity.TypeHLink, d.sess.NewSet(src), store.Any)
	if err != nil {
		return err
	}
	if subset != nil {
		neigh = neigh.Intersect(subset)
	}
	for _, m := range neigh.Ids() {
		var kin store.Set
		if up {
			kin, err = d.Parents(m)
		} else {
			kin, err = d.Children(m)
		}
		if err != nil {
			return err
		}
		hAttrs, err := d.hlinkBetween(src, m)
		if err != nil {
			return err
		}
		w, _ := hAttrs[entity.AttrHLinkWeight].Float64()

		for _, k := range kin.Ids() {
			if k == tgt {
				continue
			}
			existing, err := d.links.FindHLink(tgt, k)
			if err != nil {
				return err
			}
			if existing.Valid() {
				exAttrs, err := d.links.GetHLink(existing)
				if err != nil {
					return err
				}
				ew, _ := exAttrs[entity.AttrHLinkWeight].Float64()
				if err := d.links.UpdateHLinkWeight(existing, merge(ew, w)); err != nil {
					return err
				}
			} else {
				if _, err := d.links.CreateHLink(tgt, k, &w); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *MLGDao) hlinkBetween(a, b entity.ID) (entity.AttrMap, error) {
	id, err := d.links.FindHLink(a, b)
	if err != nil {
		return nil, err
	}
	if !id.Valid() {
		return entity.AttrMap{}, nil
	}
	return d.links.GetHLink(id)
}

// GetSignal returns the ordered sequence of OLink weights for node
// between bottom and top inclusive, walking the layer stack.
func (d *MLGDao) GetSignal(node, bottom, top entity.ID) ([]float64, error) {
	var out []float64
	cur := bottom
	for {
		id, err := d.links.FindOLink(cur, node)
		if err != nil {
			return nil, err
		}
		if id.Valid() {
			attrs, err := d.links.GetOLink(id)
			if err != nil {
				return nil, err
			}
			w, _ := attrs[entity.AttrOLinkWeight].Float64()
			out = append(out, w)
		} else {
			out = append(out, 0)
		}
		if cur == top {
			return out, nil
		}
		next, err := d.layers.Parent(cur)
		if err != nil {
			return nil, err
		}
		if !next.Valid() {
			return out, nil
		}
		cur = next
	}
}

// Direction selects a radius-bound signal window around a current layer.
type Direction int

const (
	Past Direction = iota
	Future
	Both
)

// GetSignalAround computes bottom/top from currentLayer by walking CLinks
// out to radius in the requested direction, then returns GetSignal over
// that window alongside the offset of currentLayer within the returned
// slice (the number of down-hops actually taken before hitting bottom;
// clamped below radius if a CLink is missing).
func (d *MLGDao) GetSignalAround(node, currentLayer entity.ID, radius int, dir Direction) ([]float64, int, error) {
	bottom, top := currentLayer, currentLayer
	downHops := 0
	if dir == Past || dir == Both {
		cur := currentLayer
		for i := 0; i < radius; i++ {
			next, err := d.layers.Child(cur)
			if err != nil {
				return nil, 0, err
			}
			if !next.Valid() {
				break
			}
			cur = next
			downHops++
		}
		bottom = cur
	}
	if dir == Future || dir == Both {
		cur := currentLayer
		for i := 0; i < radius; i++ {
			next, err := d.layers.Parent(cur)
			if err != nil {
				return nil, 0, err
			}
			if !next.Valid() {
				break
			}
			cur = next
		}
		top = cur
	}
	samples, err := d.GetSignal(node, bottom, top)
	return samples, downHops, err
}

// HLinkWeight returns the weight of the HLink between a and b, or
// ok=false if they are not HLinked.
func (d *MLGDao) HLinkWeight(a, b entity.ID) (float64, bool, error) {
	attrs, err := d.hlinkBetween(a, b)
	if err != nil {
		return 0, false, err
	}
	w, ok := attrs[entity.AttrHLinkWeight].Float64()
	if !ok {
		return 0, false, nil
	}
	return w, true, nil
}

// CLinkWeight returns the weight of the CLink from child to parent, or
// ok=false if the two layers are not CLinked.
func (d *MLGDao) CLinkWeight(child, parent entity.ID) (float64, bool, error) {
	id, err := d.links.FindCLink(child, parent)
	if err != nil {
		return 0, false, err
	}
	if !id.Valid() {
		return 0, false, nil
	}
	attrs, err := d.links.GetCLink(id)
	if err != nil {
		return 0, false, err
	}
	w, _ := attrs[entity.AttrCLinkWeight].Float64()
	return w, true, nil
}
