// Package entity defines the in-memory value types of the multi-layer graph
// data model: nodes, layers, and the four link kinds that connect them.
//
// Entities are plain value types with public fields. Identity is an opaque
// id assigned by the store (see package store); no entity holds a reference
// to another entity, only its id, so traversal always goes back through the
// store and the object graph cannot form cycles outside the store itself.
package entity

import "strings"

// ID is a store-assigned identifier. InvalidID indicates absence, the way
// a zero value indicates "no row" in a database primary key.
type ID uint64

// InvalidID is the sentinel for "no such entity". Badger sequences (see
// store/badgerstore) never hand out 0, so it is safe as a sentinel.
const InvalidID ID = 0

// Valid reports whether id refers to a real entity.
func (id ID) Valid() bool { return id != InvalidID }

// Well-known type and attribute names, matching the database schema of
// the declared schema exactly.
const (
	TypeNode    = "MLD_NODE"
	TypeLayer   = "MLD_LAYER"
	TypeHLink   = "MLD_HLINK"
	TypeVLink   = "MLD_VLINK"
	TypeOLink   = "MLD_OLINK"
	TypeCLink   = "MLD_CHILD_OF"
	TypeOwns    = "MLD_OWNS"

	AttrWeight      = "MLD_N_WEIGHT"
	AttrLabel       = "MLD_N_LABEL"
	AttrIsBase      = "MLD_LAYER_IS_BASE"
	AttrDescription = "MLD_LAYER_DESCRIPTION"
	AttrHLinkWeight = "MLD_HLINK_WEIGHT"
	AttrVLinkWeight = "MLD_VLINK_WEIGHT"
	AttrOLinkWeight = "MLD_OLINK_WEIGHT"
	AttrCLinkWeight = "MLD_CLINK_WEIGHT"
)

// Node is a vertex of the base topology. Weight defaults to 1.0.
type Node struct {
	ID    ID
	Attrs AttrMap
}

// Weight returns the node's scalar weight, defaulting to 1.0 if unset.
func (n Node) Weight() float64 {
	if v, ok := n.Attrs[AttrWeight]; ok {
		f, _ := v.Float64()
		return f
	}
	return 1.0
}

// Label returns the node's label string, or "" if unset.
func (n Node) Label() string {
	if v, ok := n.Attrs[AttrLabel]; ok {
		s, _ := v.String()
		return s
	}
	return ""
}

// Layer is a node of distinct type representing one time slice of the
// stack. Exactly one layer carries IsBase() == true while the stack is
// non-empty (Invariant 1).
type Layer struct {
	ID    ID
	Attrs AttrMap
}

// IsBase reports whether this layer is the base layer.
func (l Layer) IsBase() bool {
	if v, ok := l.Attrs[AttrIsBase]; ok {
		b, _ := v.Bool()
		return b
	}
	return false
}

// HLink is an undirected intra-layer edge between two nodes sharing the
// same owning layer. No self-loops; at most one HLink per unordered pair
// within a layer.
type HLink struct {
	ID       ID
	A, B     ID
	Attrs    AttrMap
}

// Weight returns the HLink's similarity weight, defaulting to 1.0.
func (h HLink) Weight() float64 {
	if v, ok := h.Attrs[AttrHLinkWeight]; ok {
		f, _ := v.Float64()
		return f
	}
	return 1.0
}

// Other returns the endpoint of h that is not n. Callers must ensure n is
// one of h.A or h.B.
func (h HLink) Other(n ID) ID {
	if h.A == n {
		return h.B
	}
	return h.A
}

// VLink is a directed affiliation edge from a node in layer k to its twin
// in the adjacent layer k+1 (Invariant 5).
type VLink struct {
	ID           ID
	Child, Parent ID
	Attrs        AttrMap
}

// Weight returns the VLink's weight, defaulting to 1.0.
func (v VLink) Weight() float64 {
	if val, ok := v.Attrs[AttrVLinkWeight]; ok {
		f, _ := val.Float64()
		return f
	}
	return 1.0
}

// OLink is a directed observation edge from a layer to a node, carrying
// that node's scalar time-series sample at that layer. Exactly one OLink
// exists per (layer, node) pair (Invariant 6).
type OLink struct {
	ID      ID
	Layer   ID
	Node    ID
	Attrs   AttrMap
}

// Weight returns the OLink's observation value, defaulting to 1.0.
func (o OLink) Weight() float64 {
	if v, ok := o.Attrs[AttrOLinkWeight]; ok {
		f, _ := v.Float64()
		return f
	}
	return 1.0
}

// SetWeight returns a copy of o with its observation value replaced,
// matching tvfilter's "same (layer, node) identity, only weight changes".
func (o OLink) SetWeight(w float64) OLink {
	attrs := make(AttrMap, len(o.Attrs))
	for k, v := range o.Attrs {
		attrs[k] = v
	}
	attrs[AttrOLinkWeight] = Float64Value(w)
	o.Attrs = attrs
	return o
}

// CLink is a directed inter-layer edge linking adjacent layers in the
// stack, from the layer below to the layer above. Its weight is the
// inter-layer resistivity used by the time-vertex filter.
type CLink struct {
	ID            ID
	Child, Parent ID
	Attrs         AttrMap
}

// Weight returns the CLink's resistivity weight, defaulting to 1.0.
func (c CLink) Weight() float64 {
	if v, ok := c.Attrs[AttrCLinkWeight]; ok {
		f, _ := v.Float64()
		return f
	}
	return 1.0
}

// Owns is a directed edge from a layer to a node recording the node's
// single owning layer (Invariant 3).
type Owns struct {
	ID    ID
	Layer ID
	Node  ID
}

// Equal compares two attribute maps element-wise. String attributes are
// compared by content; unrecognized kinds are ignored rather than causing
// a mismatch, matching the "opaque blob attributes ignored" rule.
func (m AttrMap) Equal(other AttrMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok {
			return false
		}
		if v.Kind > KindID || ov.Kind > KindID {
			continue
		}
		if !v.Equal(ov) {
			return false
		}
	}
	return true
}

// NormalizeAttrName lower-cases and trims an attribute name for lookups
// coming from user-facing surfaces (CSV headers, CLI flags).
func NormalizeAttrName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
