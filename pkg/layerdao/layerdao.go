// Package layerdao implements the layer stack operations: a
// doubly-linked list of MLD_LAYER nodes threaded by MLD_CHILD_OF edges,
// with exactly one layer carrying the base flag.
package layerdao

import (
	"errors"
	"fmt"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

var (
	ErrInvalidArgument   = errors.New("layerdao: invalid argument")
	ErrInvariantViolated = errors.New("layerdao: invariant violated")
)

// LayerDAO operates the layer stack over one session.
type LayerDAO struct {
	sess store.Session
}

// New wraps a session.
func New(sess store.Session) *LayerDAO {
	return &LayerDAO{sess: sess}
}

func (d *LayerDAO) layerSet() (store.Set, error) {
	ids, err := d.sess.AllIDs(entity.TypeLayer)
	if err != nil {
		return nil, err
	}
	return d.sess.NewSet(ids...), nil
}

// AddBaseLayer creates the first layer. Fails if any layer already exists.
func (d *LayerDAO) AddBaseLayer(attrs entity.AttrMap) (entity.ID, error) {
	set, err := d.layerSet()
	if err != nil {
		return entity.InvalidID, err
	}
	if set.Len() > 0 {
		return entity.InvalidID, fmt.Errorf("%w: a base layer already exists", ErrInvalidArgument)
	}
	full := cloneAttrs(attrs)
	full[entity.AttrIsBase] = entity.BoolValue(true)
	return d.sess.CreateNode(entity.TypeLayer, full)
}

// BaseLayer returns the base layer id, or InvalidID if none exists.
func (d *LayerDAO) BaseLayer() (entity.ID, error) {
	matches, err := d.sess.Select(entity.TypeLayer, entity.AttrIsBase, store.Eq, entity.BoolValue(true), nil)
	if err != nil {
		return entity.InvalidID, err
	}
	id, ok := matches.Any()
	if !ok {
		return entity.InvalidID, nil
	}
	return id, nil
}

// Parent returns the layer CLinked above L (L is CLink's child), or
// InvalidID if L is the top.
func (d *LayerDAO) Parent(l entity.ID) (entity.ID, error) {
	neigh, err := d.sess.Neighborhood(entity.TypeCLink, d.sess.NewSet(l), store.Out)
	if err != nil {
		return entity.InvalidID, err
	}
	id, ok := neigh.Any()
	if !ok {
		return entity.InvalidID, nil
	}
	return id, nil
}

// Child returns the layer CLinked below L, or InvalidID if L is the base.
func (d *LayerDAO) Child(l entity.ID) (entity.ID, error) {
	neigh, err := d.sess.Neighborhood(entity.TypeCLink, d.sess.NewSet(l), store.In)
	if err != nil {
		return entity.InvalidID, err
	}
	id, ok := neigh.Any()
	if !ok {
		return entity.InvalidID, nil
	}
	return id, nil
}

// TopLayer walks Parent until exhausted, starting from the base layer.
func (d *LayerDAO) TopLayer() (entity.ID, error) {
	cur, err := d.BaseLayer()
	if err != nil || !cur.Valid() {
		return cur, err
	}
	for {
		p, err := d.Parent(cur)
		if err != nil {
			return entity.InvalidID, err
		}
		if !p.Valid() {
			return cur, nil
		}
		cur = p
	}
}

// BottomLayer walks Child until exhausted, starting from the base layer.
func (d *LayerDAO) BottomLayer() (entity.ID, error) {
	cur, err := d.BaseLayer()
	if err != nil || !cur.Valid() {
		return cur, err
	}
	for {
		c, err := d.Child(cur)
		if err != nil {
			return entity.InvalidID, err
		}
		if !c.Valid() {
			return cur, nil
		}
		cur = c
	}
}

// AddLayerOnTop inserts a new layer above the current top, CLinked from
// the old top (child) to the new layer (parent). Fails if no base exists.
func (d *LayerDAO) AddLayerOnTop(attrs entity.AttrMap) (entity.ID, error) {
	top, err := d.TopLayer()
	if err != nil {
		return entity.InvalidID, err
	}
	if !top.Valid() {
		return entity.InvalidID, fmt.Errorf("%w: no base layer exists", ErrInvalidArgument)
	}
	newID, err := d.sess.CreateNode(entity.TypeLayer, cloneAttrs(attrs))
	if err != nil {
		return entity.InvalidID, err
	}
	if _, err := d.sess.CreateEdge(entity.TypeCLink, top, newID, defaultCLinkAttrs()); err != nil {
		return entity.InvalidID, err
	}
	return newID, nil
}

// AddLayerOnBottom inserts a new layer below the current bottom, CLinked
// from the new layer (child) to the old bottom (parent). Fails if no base
// exists.
func (d *LayerDAO) AddLayerOnBottom(attrs entity.AttrMap) (entity.ID, error) {
	bottom, err := d.BottomLayer()
	if err != nil {
		return entity.InvalidID, err
	}
	if !bottom.Valid() {
		return entity.InvalidID, fmt.Errorf("%w: no base layer exists", ErrInvalidArgument)
	}
	newID, err := d.sess.CreateNode(entity.TypeLayer, cloneAttrs(attrs))
	if err != nil {
		return entity.InvalidID, err
	}
	if _, err := d.sess.CreateEdge(entity.TypeCLink, newID, bottom, defaultCLinkAttrs()); err != nil {
		return entity.InvalidID, err
	}
	return newID, nil
}

// SetAsBaseLayer clears the previous base flag and sets l's.
func (d *LayerDAO) SetAsBaseLayer(l entity.ID) error {
	prev, err := d.BaseLayer()
	if err != nil {
		return err
	}
	if prev.Valid() && prev != l {
		if err := d.sess.SetNodeAttrs(entity.TypeLayer, prev, entity.AttrMap{entity.AttrIsBase: entity.BoolValue(false)}); err != nil {
			return err
		}
	}
	if err := d.sess.SetNodeAttrs(entity.TypeLayer, l, entity.AttrMap{entity.AttrIsBase: entity.BoolValue(true)}); err != nil {
		return err
	}
	base, err := d.BaseLayer()
	if err != nil {
		return err
	}
	if base != l {
		return fmt.Errorf("%w: base flag did not move to the requested layer", ErrInvariantViolated)
	}
	return nil
}

// Affiliated reports whether there is a CLink path from a to b or b to a.
func (d *LayerDAO) Affiliated(a, b entity.ID) (bool, error) {
	if a == b {
		return true, nil
	}
	if reachable, err := d.reachableVia(a, store.Out, b); err != nil || reachable {
		return reachable, err
	}
	if reachable, err := d.reachableVia(a, store.In, b); err != nil || reachable {
		return reachable, err
	}
	return false, nil
}

func (d *LayerDAO) reachableVia(start entity.ID, dir store.Direction, target entity.ID) (bool, error) {
	cur := start
	for {
		var next entity.ID
		var err error
		if dir == store.Out {
			next, err = d.Parent(cur)
		} else {
			next, err = d.Child(cur)
		}
		if err != nil {
			return false, err
		}
		if !next.Valid() {
			return false, nil
		}
		if next == target {
			return true, nil
		}
		cur = next
	}
}

// RemoveTopLayer removes the top layer. Forbidden if it is the base and
// other layers exist.
func (d *LayerDAO) RemoveTopLayer() error {
	top, err := d.TopLayer()
	if err != nil {
		return err
	}
	return d.removeEndLayer(top)
}

// RemoveBottomLayer removes the bottom layer, with the same base
// restriction as RemoveTopLayer.
func (d *LayerDAO) RemoveBottomLayer() error {
	bottom, err := d.BottomLayer()
	if err != nil {
		return err
	}
	return d.removeEndLayer(bottom)
}

func (d *LayerDAO) removeEndLayer(l entity.ID) error {
	if !l.Valid() {
		return fmt.Errorf("%w: no layer to remove", ErrInvalidArgument)
	}
	count, err := d.LayerCount()
	if err != nil {
		return err
	}
	isBase, err := d.isBase(l)
	if err != nil {
		return err
	}
	if isBase && count > 1 {
		return fmt.Errorf("%w: cannot remove the base layer while other layers exist", ErrInvalidArgument)
	}
	return d.dropLayer(l)
}

// RemoveBaseLayer only succeeds when the base is the sole layer.
func (d *LayerDAO) RemoveBaseLayer() error {
	base, err := d.BaseLayer()
	if err != nil {
		return err
	}
	if !base.Valid() {
		return fmt.Errorf("%w: no base layer exists", ErrInvalidArgument)
	}
	count, err := d.LayerCount()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("%w: base layer can only be removed when it is the sole layer", ErrInvalidArgument)
	}
	return d.dropLayer(base)
}

// RemoveAllButBase drops every non-base layer and its owned nodes.
func (d *LayerDAO) RemoveAllButBase() error {
	base, err := d.BaseLayer()
	if err != nil {
		return err
	}
	if !base.Valid() {
		return nil
	}
	for {
		top, err := d.TopLayer()
		if err != nil {
			return err
		}
		if top == base {
			return nil
		}
		if err := d.dropLayer(top); err != nil {
			return err
		}
	}
}

// dropLayer cascades: every node owned by l, and that node's adjacent
// HLinks/VLinks/OLinks, are dropped first, then l itself.
func (d *LayerDAO) dropLayer(l entity.ID) error {
	owned, err := d.sess.Neighborhood(entity.TypeOwns, d.sess.NewSet(l), store.Out)
	if err != nil {
		return err
	}
	for _, n := range owned.Ids() {
		if err := d.dropNodeCascade(n); err != nil {
			return err
		}
	}
	return d.sess.DropNode(entity.TypeLayer, l)
}

func (d *LayerDAO) dropNodeCascade(n entity.ID) error {
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

// LayerCount returns the number of layers currently alive.
func (d *LayerDAO) LayerCount() (int, error) {
	ids, err := d.sess.AllIDs(entity.TypeLayer)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// GetLayer returns l's attribute map.
func (d *LayerDAO) GetLayer(l entity.ID) (entity.AttrMap, error) {
	return d.sess.GetNode(entity.TypeLayer, l)
}

// AllLayersBottomUp returns every layer id from bottom to top.
func (d *LayerDAO) AllLayersBottomUp() ([]entity.ID, error) {
	bottom, err := d.BottomLayer()
	if err != nil || !bottom.Valid() {
		return nil, err
	}
	var out []entity.ID
	cur := bottom
	for {
		out = append(out, cur)
		next, err := d.Parent(cur)
		if err != nil {
			return nil, err
		}
		if !next.Valid() {
			return out, nil
		}
		cur = next
	}
}

func (d *LayerDAO) isBase(l entity.ID) (bool, error) {
	attrs, err := d.sess.GetNode(entity.TypeLayer, l)
	if err != nil {
		return false, err
	}
	v, ok := attrs[entity.AttrIsBase]
	if !ok {
		return false, nil
	}
	b, _ := v.Bool()
	return b, nil
}

func defaultCLinkAttrs() entity.AttrMap {
	return entity.AttrMap{entity.AttrCLinkWeight: entity.Float64Value(1.0)}
}

func cloneAttrs(attrs entity.AttrMap) entity.AttrMap {
	out := make(entity.AttrMap, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
