// Package store declares the thin, typed contract the multi-layer graph
// engine requires of its backing out-of-core graph database. The engine
// never assumes anything about on-disk layout; every selector, DAO, and
// filter in this module is expressed only in terms of the operations
// declared here.
//
// package store/badgerstore provides the one implementation shipped with
// this module, backed by BadgerDB.
package store

import "github.com/orneryd/mlgraph/pkg/entity"

// Direction restricts a neighborhood or edge-explosion query to outgoing
// edges, incoming edges, or either.
type Direction uint8

const (
	Out Direction = iota
	In
	Any
)

// CompareOp is a comparison used by Select.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Ge
	Le
	Gt
	Lt
)

// AttrDef declares one attribute of a node or edge type: its data kind,
// whether it is indexed or merely basic, and its default value applied
// when a caller omits it. Select/AttrStats/IterateByAttrDesc answer both;
// an indexed float64 attribute is served from its secondary index, any
// other attribute by a full scan.
type AttrDef struct {
	Name    string
	Kind    entity.Kind
	Indexed bool
	Default entity.Value
}

// NodeTypeDef declares a node type: a name and its attribute schema.
type NodeTypeDef struct {
	Name  string
	Attrs []AttrDef
}

// EdgeTypeDef declares an edge type. TailType/HeadType optionally restrict
// the node types an edge of this type may connect; empty means
// unrestricted. NeighborIndexed mirrors the store's ability to answer
// neighborhood queries for this edge type efficiently.
type EdgeTypeDef struct {
	Name            string
	Directed        bool
	NeighborIndexed bool
	TailType        string
	HeadType        string
	Attrs           []AttrDef
}

// Set is an opaque, id-ordered collection of entity ids, the result type
// of every query primitive. Iteration order is ascending by id, required
// by callers that need reproducible iteration order.
type Set interface {
	Add(id entity.ID)
	Remove(id entity.ID)
	Contains(id entity.ID) bool
	Len() int
	Any() (entity.ID, bool)
	Ids() []entity.ID
	Union(other Set) Set
	Intersect(other Set) Set
	Diff(other Set) Set
	Clone() Set
}

// Store is the typed contract over the external graph database.
type Store interface {
	// Schema declares the node and edge types used by the engine. Declaring
	// a type again replaces its definition; declaring a name already used
	// by the other kind (node vs. edge) is an invalid-argument error.
	DeclareNodeType(def NodeTypeDef) error
	DeclareEdgeType(def EdgeTypeDef) error

	// Begin opens the single ambient session/transaction. Only one session
	// may be open at a time.
	Begin() (Session, error)

	NewSet(ids ...entity.ID) Set

	Close() error
}

// Session is the ambient transaction scope: every mutating or reading
// operation happens within one. Commit persists; Rollback (or letting the
// session be dropped without commit) discards all writes.
type Session interface {
	Commit() error
	Rollback() error

	// Node operations.
	CreateNode(typeName string, attrs entity.AttrMap) (entity.ID, error)
	GetNode(typeName string, id entity.ID) (entity.AttrMap, error)
	SetNodeAttrs(typeName string, id entity.ID, attrs entity.AttrMap) error
	DropNode(typeName string, id entity.ID) error

	// Edge operations. tail/head are meaningless for an undirected type
	// beyond "the two endpoints"; FindEdgeByEndpoints treats an undirected
	// type's pair as unordered.
	CreateEdge(typeName string, tail, head entity.ID, attrs entity.AttrMap) (entity.ID, error)
	FindEdgeByEndpoints(typeName string, tail, head entity.ID) (entity.ID, error)
	EdgeEndpoints(typeName string, id entity.ID) (tail, head entity.ID, err error)
	GetEdge(typeName string, id entity.ID) (entity.AttrMap, error)
	SetEdgeAttrs(typeName string, id entity.ID, attrs entity.AttrMap) error
	DropEdge(typeName string, id entity.ID) error

	// Attributes.
	GetAttr(typeName string, id entity.ID, attr string) (entity.Value, error)
	SetAttr(typeName string, id entity.ID, attr string, val entity.Value) error

	// Neighborhood/explosion queries. ids may be a single-element Set or a
	// larger one; the result is the union across all ids in the input.
	Neighborhood(edgeType string, ids Set, dir Direction) (Set, error)
	IncidentEdges(edgeType string, ids Set, dir Direction) (Set, error)

	// Selection and statistics over an indexed attribute.
	Select(typeName, attr string, op CompareOp, val entity.Value, within Set) (Set, error)
	AttrStats(typeName, attr string) (min, max entity.Value, err error)

	// IterateByAttrDesc returns the ids of typeName ordered by attr
	// descending, ties broken by id ascending, restricted to within (nil
	// means "no restriction"). Used by get_heaviest_hlink and
	// by any selector with "iterate in descending score order" semantics.
	IterateByAttrDesc(typeName, attr string, within Set) ([]entity.ID, error)

	// AllIDs returns every id of typeName currently alive, ascending.
	AllIDs(typeName string) ([]entity.ID, error)

	NewSet(ids ...entity.ID) Set
}
