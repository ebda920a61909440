package badgerstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

// session is the single ambient transaction scope. Every read and write
// the engine issues in one coarsening/filter/extraction pass goes through
// one session.
type session struct {
	store     *BadgerStore
	txn       *badger.Txn
	nodeTypes map[string]store.NodeTypeDef
	edgeTypes map[string]store.EdgeTypeDef
}

func (s *session) Commit() error {
	if err := s.txn.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStoreError, err)
	}
	return nil
}

func (s *session) Rollback() error {
	s.txn.Discard()
	return nil
}

func (s *session) NewSet(ids ...entity.ID) store.Set { return store.NewIDSet(ids...) }

func (s *session) nodeDef(typeName string) (store.NodeTypeDef, error) {
	def, ok := s.nodeTypes[typeName]
	if !ok {
		return store.NodeTypeDef{}, fmt.Errorf("%w: unknown node type %q", ErrInvalidArgument, typeName)
	}
	return def, nil
}

func (s *session) edgeDef(typeName string) (store.EdgeTypeDef, error) {
	def, ok := s.edgeTypes[typeName]
	if !ok {
		return store.EdgeTypeDef{}, fmt.Errorf("%w: unknown edge type %q", ErrInvalidArgument, typeName)
	}
	return def, nil
}

// -----------------------------------------------------------------------
// Node operations
// -----------------------------------------------------------------------

func (s *session) CreateNode(typeName string, attrs entity.AttrMap) (entity.ID, error) {
	def, err := s.nodeDef(typeName)
	if err != nil {
		return entity.InvalidID, err
	}
	id, err := s.store.nextID()
	if err != nil {
		return entity.InvalidID, err
	}
	full := applyDefaults(def.Attrs, attrs)
	data, err := attrsToJSON(full)
	if err != nil {
		return entity.InvalidID, err
	}
	if err := s.txn.Set(objectKey(typeName, id), data); err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	s.indexAttrs(typeName, def.Attrs, id, full)
	return id, nil
}

func (s *session) GetNode(typeName string, id entity.ID) (entity.AttrMap, error) {
	def, err := s.nodeDef(typeName)
	if err != nil {
		return nil, err
	}
	attrs, err := s.readObject(typeName, id)
	if err != nil {
		return nil, err
	}
	return filterDeclared(def.Attrs, attrs), nil
}

func (s *session) SetNodeAttrs(typeName string, id entity.ID, attrs entity.AttrMap) error {
	def, err := s.nodeDef(typeName)
	if err != nil {
		return err
	}
	return s.mergeAttrs(typeName, def.Attrs, id, attrs)
}

func (s *session) DropNode(typeName string, id entity.ID) error {
	if _, err := s.nodeDef(typeName); err != nil {
		return err
	}
	def := s.nodeTypes[typeName]
	attrs, err := s.readObject(typeName, id)
	if err == nil {
		s.unindexAttrs(typeName, def.Attrs, id, attrs)
	}
	if err := s.txn.Delete(objectKey(typeName, id)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	return nil
}

// -----------------------------------------------------------------------
// Edge operations
// -----------------------------------------------------------------------

func (s *session) CreateEdge(typeName string, tail, head entity.ID, attrs entity.AttrMap) (entity.ID, error) {
	def, err := s.edgeDef(typeName)
	if err != nil {
		return entity.InvalidID, err
	}
	id, err := s.store.nextID()
	if err != nil {
		return entity.InvalidID, err
	}
	full := applyDefaults(def.Attrs, attrs)
	data, err := attrsToJSON(full)
	if err != nil {
		return entity.InvalidID, err
	}
	if err := s.txn.Set(objectKey(typeName, id), data); err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	if err := s.txn.Set(edgeEndsKey(typeName, id), append(beID(tail), beID(head)...)); err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	if def.Directed {
		if err := s.txn.Set(adjKey(prefixAdjOut, typeName, tail, id), beID(head)); err != nil {
			return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
		}
		if err := s.txn.Set(adjKey(prefixAdjIn, typeName, head, id), beID(tail)); err != nil {
			return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
		}
	} else {
		if err := s.txn.Set(adjKey(prefixAdjOut, typeName, tail, id), beID(head)); err != nil {
			return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
		}
		if err := s.txn.Set(adjKey(prefixAdjOut, typeName, head, id), beID(tail)); err != nil {
			return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
		}
	}
	if err := s.txn.Set(endpointsKey(typeName, def.Directed, tail, head), beID(id)); err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	s.indexAttrs(typeName, def.Attrs, id, full)
	return id, nil
}

func (s *session) FindEdgeByEndpoints(typeName string, tail, head entity.ID) (entity.ID, error) {
	def, err := s.edgeDef(typeName)
	if err != nil {
		return entity.InvalidID, err
	}
	item, err := s.txn.Get(endpointsKey(typeName, def.Directed, tail, head))
	if err == badger.ErrKeyNotFound {
		return entity.InvalidID, nil
	}
	if err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	var id entity.ID
	err = item.Value(func(val []byte) error {
		id = decodeID(val)
		return nil
	})
	if err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	return id, nil
}

func (s *session) EdgeEndpoints(typeName string, id entity.ID) (entity.ID, entity.ID, error) {
	if _, err := s.edgeDef(typeName); err != nil {
		return entity.InvalidID, entity.InvalidID, err
	}
	item, err := s.txn.Get(edgeEndsKey(typeName, id))
	if err == badger.ErrKeyNotFound {
		return entity.InvalidID, entity.InvalidID, fmt.Errorf("%w: edge %d", ErrNotFound, id)
	}
	if err != nil {
		return entity.InvalidID, entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	var tail, head entity.ID
	err = item.Value(func(val []byte) error {
		tail = decodeID(val[:8])
		head = decodeID(val[8:])
		return nil
	})
	if err != nil {
		return entity.InvalidID, entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	return tail, head, nil
}

func (s *session) GetEdge(typeName string, id entity.ID) (entity.AttrMap, error) {
	def, err := s.edgeDef(typeName)
	if err != nil {
		return nil, err
	}
	attrs, err := s.readObject(typeName, id)
	if err != nil {
		return nil, err
	}
	return filterDeclared(def.Attrs, attrs), nil
}

func (s *session) SetEdgeAttrs(typeName string, id entity.ID, attrs entity.AttrMap) error {
	def, err := s.edgeDef(typeName)
	if err != nil {
		return err
	}
	return s.mergeAttrs(typeName, def.Attrs, id, attrs)
}

func (s *session) DropEdge(typeName string, id entity.ID) error {
	def, err := s.edgeDef(typeName)
	if err != nil {
		return err
	}
	tail, head, err := s.EdgeEndpoints(typeName, id)
	if err != nil {
		return err
	}
	attrs, attrsErr := s.readObject(typeName, id)
	if attrsErr == nil {
		s.unindexAttrs(typeName, def.Attrs, id, attrs)
	}
	if def.Directed {
		_ = s.txn.Delete(adjKey(prefixAdjOut, typeName, tail, id))
		_ = s.txn.Delete(adjKey(prefixAdjIn, typeName, head, id))
	} else {
		_ = s.txn.Delete(adjKey(prefixAdjOut, typeName, tail, id))
		_ = s.txn.Delete(adjKey(prefixAdjOut, typeName, head, id))
	}
	_ = s.txn.Delete(endpointsKey(typeName, def.Directed, tail, head))
	_ = s.txn.Delete(edgeEndsKey(typeName, id))
	if err := s.txn.Delete(objectKey(typeName, id)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	return nil
}

// -----------------------------------------------------------------------
// Attribute access
// -----------------------------------------------------------------------

func (s *session) readObject(typeName string, id entity.ID) (entity.AttrMap, error) {
	item, err := s.txn.Get(objectKey(typeName, id))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, typeName, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	var attrs entity.AttrMap
	err = item.Value(func(val []byte) error {
		a, uerr := attrsFromJSON(val)
		if uerr != nil {
			return uerr
		}
		attrs = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

func (s *session) mergeAttrs(typeName string, defs []store.AttrDef, id entity.ID, patch entity.AttrMap) error {
	current, err := s.readObject(typeName, id)
	if err != nil {
		return err
	}
	s.unindexAttrs(typeName, defs, id, current)
	for k, v := range patch {
		current[k] = v
	}
	data, err := attrsToJSON(current)
	if err != nil {
		return err
	}
	if err := s.txn.Set(objectKey(typeName, id), data); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	s.indexAttrs(typeName, defs, id, current)
	return nil
}

func (s *session) GetAttr(typeName string, id entity.ID, attr string) (entity.Value, error) {
	defs, err := s.declaredAttrs(typeName)
	if err != nil {
		return entity.NullValue(), err
	}
	if _, ok := findAttrDef(defs, attr); !ok {
		return entity.NullValue(), fmt.Errorf("%w: attr %q not declared on %q", ErrInvalidArgument, attr, typeName)
	}
	attrs, err := s.readObject(typeName, id)
	if err != nil {
		return entity.NullValue(), err
	}
	if v, ok := attrs[attr]; ok {
		return v, nil
	}
	return entity.NullValue(), nil
}

func (s *session) SetAttr(typeName string, id entity.ID, attr string, val entity.Value) error {
	return s.mergeAttrs(typeName, mustDefs(s, typeName), id, entity.AttrMap{attr: val})
}

func (s *session) declaredAttrs(typeName string) ([]store.AttrDef, error) {
	if def, ok := s.nodeTypes[typeName]; ok {
		return def.Attrs, nil
	}
	if def, ok := s.edgeTypes[typeName]; ok {
		return def.Attrs, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidArgument, typeName)
}

func mustDefs(s *session, typeName string) []store.AttrDef {
	defs, _ := s.declaredAttrs(typeName)
	return defs
}

// -----------------------------------------------------------------------
// Indexing
// -----------------------------------------------------------------------

func (s *session) indexAttrs(typeName string, defs []store.AttrDef, id entity.ID, attrs entity.AttrMap) {
	for _, d := range defs {
		if !d.Indexed || d.Kind != entity.KindFloat64 {
			continue
		}
		v, ok := attrs[d.Name]
		if !ok {
			continue
		}
		f, ok := v.Float64()
		if !ok {
			continue
		}
		_ = s.txn.Set(attrIndexKey(typeName, d.Name, f, id), []byte{})
	}
}

func (s *session) unindexAttrs(typeName string, defs []store.AttrDef, id entity.ID, attrs entity.AttrMap) {
	for _, d := range defs {
		if !d.Indexed || d.Kind != entity.KindFloat64 {
			continue
		}
		v, ok := attrs[d.Name]
		if !ok {
			continue
		}
		f, ok := v.Float64()
		if !ok {
			continue
		}
		_ = s.txn.Delete(attrIndexKey(typeName, d.Name, f, id))
	}
}

// -----------------------------------------------------------------------
// Neighborhood / explosion / selection
// -----------------------------------------------------------------------

func (s *session) Neighborhood(edgeType string, ids store.Set, dir store.Direction) (store.Set, error) {
	def, err := s.edgeDef(edgeType)
	if err != nil {
		return nil, err
	}
	result := store.NewIDSet()
	for _, id := range ids.Ids() {
		if def.Directed {
			if dir == store.Out || dir == store.Any {
				s.scanAdj(prefixAdjOut, edgeType, id, func(other entity.ID) { result.Add(other) })
			}
			if dir == store.In || dir == store.Any {
				s.scanAdj(prefixAdjIn, edgeType, id, func(other entity.ID) { result.Add(other) })
			}
		} else {
			s.scanAdj(prefixAdjOut, edgeType, id, func(other entity.ID) { result.Add(other) })
		}
	}
	return result, nil
}

func (s *session) IncidentEdges(edgeType string, ids store.Set, dir store.Direction) (store.Set, error) {
	def, err := s.edgeDef(edgeType)
	if err != nil {
		return nil, err
	}
	result := store.NewIDSet()
	collect := func(prefix byte, id entity.ID) {
		it := s.txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := adjPrefix(prefix, edgeType, id)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			key := it.Item().KeyCopy(nil)
			result.Add(decodeID(key[len(key)-8:]))
		}
	}
	for _, id := range ids.Ids() {
		if def.Directed {
			if dir == store.Out || dir == store.Any {
				collect(prefixAdjOut, id)
			}
			if dir == store.In || dir == store.Any {
				collect(prefixAdjIn, id)
			}
		} else {
			collect(prefixAdjOut, id)
		}
	}
	return result, nil
}

func (s *session) scanAdj(prefix byte, edgeType string, nodeID entity.ID, fn func(entity.ID)) {
	it := s.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	p := adjPrefix(prefix, edgeType, nodeID)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		_ = it.Item().Value(func(val []byte) error {
			fn(decodeID(val))
			return nil
		})
	}
}

func (s *session) AllIDs(typeName string) ([]entity.ID, error) {
	it := s.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	p := objectPrefix(typeName)
	var ids []entity.ID
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		key := it.Item().KeyCopy(nil)
		ids = append(ids, decodeID(key[len(key)-8:]))
	}
	return ids, nil
}

func (s *session) Select(typeName, attr string, op store.CompareOp, val entity.Value, within store.Set) (store.Set, error) {
	defs, err := s.declaredAttrs(typeName)
	if err != nil {
		return nil, err
	}
	def, ok := findAttrDef(defs, attr)
	if !ok {
		return nil, fmt.Errorf("%w: attr %q not declared on %q", ErrInvalidArgument, attr, typeName)
	}

	result := store.NewIDSet()
	match := func(stored entity.Value) bool {
		cmp, err := stored.Compare(val)
		if err != nil {
			return stored.Equal(val) && op == store.Eq
		}
		switch op {
		case store.Eq:
			return cmp == 0
		case store.Ne:
			return cmp != 0
		case store.Ge:
			return cmp >= 0
		case store.Le:
			return cmp <= 0
		case store.Gt:
			return cmp > 0
		case store.Lt:
			return cmp < 0
		default:
			return false
		}
	}

	if def.Indexed && def.Kind == entity.KindFloat64 {
		it := s.txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := attrIndexPrefix(typeName, attr)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := attrIndexTailID(key)
			fBytes := key[len(key)-9 : len(key)-1]
			f := reverseSortableFloat64(fBytes)
			if match(entity.Float64Value(f)) {
				if within == nil || within.Contains(id) {
					result.Add(id)
				}
			}
		}
		return result, nil
	}

	ids, err := s.AllIDs(typeName)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if within != nil && !within.Contains(id) {
			continue
		}
		attrs, err := s.readObject(typeName, id)
		if err != nil {
			continue
		}
		stored, ok := attrs[attr]
		if !ok {
			stored = def.Default
		}
		if match(stored) {
			result.Add(id)
		}
	}
	return result, nil
}

func (s *session) AttrStats(typeName, attr string) (entity.Value, entity.Value, error) {
	defs, err := s.declaredAttrs(typeName)
	if err != nil {
		return entity.NullValue(), entity.NullValue(), err
	}
	def, ok := findAttrDef(defs, attr)
	if !ok || def.Kind != entity.KindFloat64 {
		return entity.NullValue(), entity.NullValue(), fmt.Errorf("%w: attr %q is not a numeric attribute", ErrInvalidArgument, attr)
	}

	var min, max float64
	seen := false
	if def.Indexed {
		it := s.txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := attrIndexPrefix(typeName, attr)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			key := it.Item().KeyCopy(nil)
			f := reverseSortableFloat64(key[len(key)-9 : len(key)-1])
			if !seen || f < min {
				min = f
			}
			if !seen || f > max {
				max = f
			}
			seen = true
		}
	} else {
		ids, err := s.AllIDs(typeName)
		if err != nil {
			return entity.NullValue(), entity.NullValue(), err
		}
		for _, id := range ids {
			attrs, err := s.readObject(typeName, id)
			if err != nil {
				continue
			}
			v, ok := attrs[attr]
			if !ok {
				v = def.Default
			}
			f, ok := v.Float64()
			if !ok {
				continue
			}
			if !seen || f < min {
				min = f
			}
			if !seen || f > max {
				max = f
			}
			seen = true
		}
	}
	if !seen {
		return entity.NullValue(), entity.NullValue(), fmt.Errorf("%w: %s.%s has no values", ErrNotFound, typeName, attr)
	}
	return entity.Float64Value(min), entity.Float64Value(max), nil
}

func (s *session) IterateByAttrDesc(typeName, attr string, within store.Set) ([]entity.ID, error) {
	defs, err := s.declaredAttrs(typeName)
	if err != nil {
		return nil, err
	}
	def, ok := findAttrDef(defs, attr)
	if !ok {
		return nil, fmt.Errorf("%w: attr %q not declared on %q", ErrInvalidArgument, attr, typeName)
	}

	type scored struct {
		id  entity.ID
		val float64
	}
	var items []scored

	if def.Indexed && def.Kind == entity.KindFloat64 {
		it := s.txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := attrIndexPrefix(typeName, attr)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := attrIndexTailID(key)
			if within != nil && !within.Contains(id) {
				continue
			}
			f := reverseSortableFloat64(key[len(key)-9 : len(key)-1])
			items = append(items, scored{id, f})
		}
	} else {
		ids, err := s.AllIDs(typeName)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if within != nil && !within.Contains(id) {
				continue
			}
			attrs, err := s.readObject(typeName, id)
			if err != nil {
				continue
			}
			v, ok := attrs[attr]
			if !ok {
				v = def.Default
			}
			f, _ := v.Float64()
			items = append(items, scored{id, f})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].val != items[j].val {
			return items[i].val > items[j].val
		}
		return items[i].id < items[j].id
	})

	ids := make([]entity.ID, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// reverseSortableFloat64 inverts sortableFloat64's sign-flip trick to
// recover the original value from an attribute-index key segment.
func reverseSortableFloat64(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
