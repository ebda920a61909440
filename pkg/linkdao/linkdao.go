// Package linkdao implements the node/link CRUD: plain
// create/read/update/drop for nodes and the four link kinds, with the
// attribute-default and attribute-filtering contracts the store already
// guarantees.
package linkdao

import (
	"errors"
	"fmt"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

var ErrInvalidArgument = errors.New("linkdao: invalid argument")

// LinkDAO operates node/link CRUD over one session.
type LinkDAO struct {
	sess store.Session
}

// New wraps a session.
func New(sess store.Session) *LinkDAO {
	return &LinkDAO{sess: sess}
}

// Session returns the underlying store session, for callers (selectors,
// cache layers) that need raw access alongside the DAO's CRUD helpers.
func (d *LinkDAO) Session() store.Session {
	return d.sess
}

// CreateNode creates a base-topology node.
func (d *LinkDAO) CreateNode(attrs entity.AttrMap) (entity.ID, error) {
	return d.sess.CreateNode(entity.TypeNode, attrs)
}

// GetNode returns n's declared attributes.
func (d *LinkDAO) GetNode(n entity.ID) (entity.AttrMap, error) {
	return d.sess.GetNode(entity.TypeNode, n)
}

// UpdateNode accepts a whole attribute map patch.
func (d *LinkDAO) UpdateNode(n entity.ID, attrs entity.AttrMap) error {
	return d.sess.SetNodeAttrs(entity.TypeNode, n, attrs)
}

// UpdateNodeWeight patches just the weight.
func (d *LinkDAO) UpdateNodeWeight(n entity.ID, w float64) error {
	return d.sess.SetNodeAttrs(entity.TypeNode, n, entity.AttrMap{entity.AttrWeight: entity.Float64Value(w)})
}

// DropNode removes a node. Callers are responsible for dropping incident
// edges first (layerdao.dropNodeCascade does this for layer removal;
// mlgdao's merge path does it for merges).
func (d *LinkDAO) DropNode(n entity.ID) error {
	return d.sess.DropNode(entity.TypeNode, n)
}

// CreateHLink adds an undirected edge between a and b. weight is applied
// if non-nil, otherwise the schema default (1.0) applies.
func (d *LinkDAO) CreateHLink(a, b entity.ID, weight *float64) (entity.ID, error) {
	if a == b {
		return entity.InvalidID, fmt.Errorf("%w: HLink cannot be a self-loop", ErrInvalidArgument)
	}
	return d.sess.CreateEdge(entity.TypeHLink, a, b, weightAttrs(entity.AttrHLinkWeight, weight))
}

// FindHLink returns the HLink id between a and b, or InvalidID.
func (d *LinkDAO) FindHLink(a, b entity.ID) (entity.ID, error) {
	return d.sess.FindEdgeByEndpoints(entity.TypeHLink, a, b)
}

// GetHLink returns the HLink's declared attributes.
func (d *LinkDAO) GetHLink(id entity.ID) (entity.AttrMap, error) {
	return d.sess.GetEdge(entity.TypeHLink, id)
}

// UpdateHLink accepts a whole attribute map patch.
func (d *LinkDAO) UpdateHLink(id entity.ID, attrs entity.AttrMap) error {
	return d.sess.SetEdgeAttrs(entity.TypeHLink, id, attrs)
}

// UpdateHLinkWeight patches just the weight.
func (d *LinkDAO) UpdateHLinkWeight(id entity.ID, w float64) error {
	return d.sess.SetEdgeAttrs(entity.TypeHLink, id, entity.AttrMap{entity.AttrHLinkWeight: entity.Float64Value(w)})
}

// DropHLink removes an HLink.
func (d *LinkDAO) DropHLink(id entity.ID) error {
	return d.sess.DropEdge(entity.TypeHLink, id)
}

// CreateVLink adds a directed affiliation edge from child to parent.
func (d *LinkDAO) CreateVLink(child, parent entity.ID, weight *float64) (entity.ID, error) {
	return d.sess.CreateEdge(entity.TypeVLink, child, parent, weightAttrs(entity.AttrVLinkWeight, weight))
}

// FindVLink returns the VLink id from child to parent, or InvalidID.
func (d *LinkDAO) FindVLink(child, parent entity.ID) (entity.ID, error) {
	return d.sess.FindEdgeByEndpoints(entity.TypeVLink, child, parent)
}

// GetVLink returns the VLink's declared attributes.
func (d *LinkDAO) GetVLink(id entity.ID) (entity.AttrMap, error) {
	return d.sess.GetEdge(entity.TypeVLink, id)
}

// DropVLink removes a VLink.
func (d *LinkDAO) DropVLink(id entity.ID) error {
	return d.sess.DropEdge(entity.TypeVLink, id)
}

// CreateOLink adds a directed observation edge from layer to node.
func (d *LinkDAO) CreateOLink(layer, node entity.ID, weight *float64) (entity.ID, error) {
	return d.sess.CreateEdge(entity.TypeOLink, layer, node, weightAttrs(entity.AttrOLinkWeight, weight))
}

// FindOLink returns the OLink id for (layer, node), or InvalidID.
func (d *LinkDAO) FindOLink(layer, node entity.ID) (entity.ID, error) {
	return d.sess.FindEdgeByEndpoints(entity.TypeOLink, layer, node)
}

// GetOLink returns the OLink's declared attributes.
func (d *LinkDAO) GetOLink(id entity.ID) (entity.AttrMap, error) {
	return d.sess.GetEdge(entity.TypeOLink, id)
}

// UpdateOLinkWeight patches just the observation value.
func (d *LinkDAO) UpdateOLinkWeight(id entity.ID, w float64) error {
	return d.sess.SetEdgeAttrs(entity.TypeOLink, id, entity.AttrMap{entity.AttrOLinkWeight: entity.Float64Value(w)})
}

// DropOLink removes an OLink.
func (d *LinkDAO) DropOLink(id entity.ID) error {
	return d.sess.DropEdge(entity.TypeOLink, id)
}

// CreateCLink adds a directed edge from the lower layer (child) to the
// layer above (parent).
func (d *LinkDAO) CreateCLink(child, parent entity.ID, weight *float64) (entity.ID, error) {
	return d.sess.CreateEdge(entity.TypeCLink, child, parent, weightAttrs(entity.AttrCLinkWeight, weight))
}

// FindCLink returns the CLink id from child to parent, or InvalidID.
func (d *LinkDAO) FindCLink(child, parent entity.ID) (entity.ID, error) {
	return d.sess.FindEdgeByEndpoints(entity.TypeCLink, child, parent)
}

// GetCLink returns the CLink's declared attributes.
func (d *LinkDAO) GetCLink(id entity.ID) (entity.AttrMap, error) {
	return d.sess.GetEdge(entity.TypeCLink, id)
}

// DropCLink removes a CLink.
func (d *LinkDAO) DropCLink(id entity.ID) error {
	return d.sess.DropEdge(entity.TypeCLink, id)
}

func weightAttrs(attrName string, w *float64) entity.AttrMap {
	if w == nil {
		return nil
	}
	return entity.AttrMap{attrName: entity.Float64Value(*w)}
}
