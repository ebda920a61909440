// Package schema declares the database schema on a store.Store:
// the MLD_NODE/MLD_LAYER node types and the MLD_HLINK/MLD_VLINK/MLD_OLINK/
// MLD_CHILD_OF/MLD_OWNS edge types, with their attribute defaults. Every
// DAO in this module assumes this schema has already been declared on the
// store it is handed.
package schema

import (
	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

// Declare registers the full MLG database schema on s. Safe to call more
// than once against the same store (Store.DeclareNodeType/DeclareEdgeType
// are no-ops on a repeated identical definition).
func Declare(s store.Store) error {
	if err := s.DeclareNodeType(store.NodeTypeDef{
		Name: entity.TypeNode,
		Attrs: []store.AttrDef{
			{Name: entity.AttrWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
			{Name: entity.AttrLabel, Kind: entity.KindString, Indexed: true, Default: entity.StringValue("")},
		},
	}); err != nil {
		return err
	}

	if err := s.DeclareNodeType(store.NodeTypeDef{
		Name: entity.TypeLayer,
		Attrs: []store.AttrDef{
			{Name: entity.AttrIsBase, Kind: entity.KindBool, Indexed: true, Default: entity.BoolValue(false)},
			{Name: entity.AttrDescription, Kind: entity.KindString, Indexed: false, Default: entity.StringValue("")},
		},
	}); err != nil {
		return err
	}

	if err := s.DeclareEdgeType(store.EdgeTypeDef{
		Name:            entity.TypeHLink,
		Directed:        false,
		NeighborIndexed: true,
		TailType:        entity.TypeNode,
		HeadType:        entity.TypeNode,
		Attrs: []store.AttrDef{
			{Name: entity.AttrHLinkWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
		},
	}); err != nil {
		return err
	}

	if err := s.DeclareEdgeType(store.EdgeTypeDef{
		Name:            entity.TypeVLink,
		Directed:        true,
		NeighborIndexed: true,
		TailType:        entity.TypeNode,
		HeadType:        entity.TypeNode,
		Attrs: []store.AttrDef{
			{Name: entity.AttrVLinkWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
		},
	}); err != nil {
		return err
	}

	if err := s.DeclareEdgeType(store.EdgeTypeDef{
		Name:            entity.TypeOLink,
		Directed:        true,
		NeighborIndexed: true,
		TailType:        entity.TypeLayer,
		HeadType:        entity.TypeNode,
		Attrs: []store.AttrDef{
			{Name: entity.AttrOLinkWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
		},
	}); err != nil {
		return err
	}

	if err := s.DeclareEdgeType(store.EdgeTypeDef{
		Name:            entity.TypeCLink,
		Directed:        true,
		NeighborIndexed: true,
		TailType:        entity.TypeLayer,
		HeadType:        entity.TypeLayer,
		Attrs: []store.AttrDef{
			{Name: entity.AttrCLinkWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
		},
	}); err != nil {
		return err
	}

	return s.DeclareEdgeType(store.EdgeTypeDef{
		Name:            entity.TypeOwns,
		Directed:        true,
		NeighborIndexed: true,
		TailType:        entity.TypeLayer,
		HeadType:        entity.TypeNode,
	})
}
