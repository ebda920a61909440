// Package badgerstore implements store.Store on top of BadgerDB, an
// embedded out-of-core key-value engine. Single-byte key prefixes,
// JSON-encoded object records, and key-only secondary indexes for
// adjacency and ordered attribute scans.
//
// BadgerStore owns the schema (declared once, held in memory — the store
// never guesses at on-disk layout, the schema is the single source of
// truth for attribute kinds, defaults, and indexing) and hands out
// sessions backed by a single Badger transaction, matching the
// "one ambient session with explicit begin/commit".
package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/store"
)

// Sentinel errors for the engine's documented error kinds.
var (
	ErrNotFound          = errors.New("badgerstore: not found")
	ErrInvalidArgument   = errors.New("badgerstore: invalid argument")
	ErrStoreError        = errors.New("badgerstore: store error")
	ErrInvariantViolated = errors.New("badgerstore: invariant violated")
)

// BadgerStore is the typed store adapter backed by BadgerDB.
type BadgerStore struct {
	db *badger.DB

	mu        sync.RWMutex
	nodeTypes map[string]store.NodeTypeDef
	edgeTypes map[string]store.EdgeTypeDef

	seq *badger.Sequence
}

// Options configures Open.
type Options struct {
	// Dir is the on-disk directory. Ignored if InMemory is true.
	Dir string
	// InMemory runs BadgerDB in memory-only mode, for tests.
	InMemory bool
}

// Open creates or opens a BadgerDB-backed store at the given path.
func Open(opts Options) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	bopts = bopts.WithInMemory(opts.InMemory)
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	seq, err := db.GetSequence([]byte("mlg_id_seq"), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badgerstore: sequence: %w", err)
	}

	return &BadgerStore{
		db:        db,
		nodeTypes: make(map[string]store.NodeTypeDef),
		edgeTypes: make(map[string]store.EdgeTypeDef),
		seq:       seq,
	}, nil
}

// Close releases the sequence and closes the database.
func (s *BadgerStore) Close() error {
	if s.seq != nil {
		_ = s.seq.Release()
	}
	return s.db.Close()
}

// DeclareNodeType registers a node type's schema. Safe to call more than
// once with an identical definition.
func (s *BadgerStore) DeclareNodeType(def store.NodeTypeDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.edgeTypes[def.Name]; exists {
		return fmt.Errorf("%w: %q already declared as an edge type", ErrInvalidArgument, def.Name)
	}
	s.nodeTypes[def.Name] = def
	return nil
}

// DeclareEdgeType registers an edge type's schema.
func (s *BadgerStore) DeclareEdgeType(def store.EdgeTypeDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodeTypes[def.Name]; exists {
		return fmt.Errorf("%w: %q already declared as a node type", ErrInvalidArgument, def.Name)
	}
	s.edgeTypes[def.Name] = def
	return nil
}

// NewSet builds a fresh result set.
func (s *BadgerStore) NewSet(ids ...entity.ID) store.Set {
	return store.NewIDSet(ids...)
}

func (s *BadgerStore) nextID() (entity.ID, error) {
	n, err := s.seq.Next()
	if err != nil {
		return entity.InvalidID, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	// Sequence starts at 0; keep 0 reserved as InvalidID.
	return entity.ID(n + 1), nil
}

// Begin opens a new session backed by one Badger read-write transaction.
func (s *BadgerStore) Begin() (store.Session, error) {
	s.mu.RLock()
	nodeTypes := make(map[string]store.NodeTypeDef, len(s.nodeTypes))
	for k, v := range s.nodeTypes {
		nodeTypes[k] = v
	}
	edgeTypes := make(map[string]store.EdgeTypeDef, len(s.edgeTypes))
	for k, v := range s.edgeTypes {
		edgeTypes[k] = v
	}
	s.mu.RUnlock()

	return &session{
		store:     s,
		txn:       s.db.NewTransaction(true),
		nodeTypes: nodeTypes,
		edgeTypes: edgeTypes,
	}, nil
}

func attrsToJSON(attrs entity.AttrMap) ([]byte, error) {
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal attrs: %v", ErrStoreError, err)
	}
	return data, nil
}

func attrsFromJSON(data []byte) (entity.AttrMap, error) {
	var attrs entity.AttrMap
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("%w: unmarshal attrs: %v", ErrStoreError, err)
	}
	return attrs, nil
}

// applyDefaults fills in any attribute declared by defs that attrs omits.
func applyDefaults(defs []store.AttrDef, attrs entity.AttrMap) entity.AttrMap {
	out := make(entity.AttrMap, len(defs))
	for k, v := range attrs {
		out[k] = v
	}
	for _, d := range defs {
		if _, ok := out[d.Name]; !ok {
			out[d.Name] = d.Default
		}
	}
	return out
}

// filterDeclared drops any attribute not declared in defs, matching
// "reading attribute maps returns only attributes declared in the schema"
// .
func filterDeclared(defs []store.AttrDef, attrs entity.AttrMap) entity.AttrMap {
	declared := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		declared[d.Name] = struct{}{}
	}
	out := make(entity.AttrMap, len(attrs))
	for k, v := range attrs {
		if _, ok := declared[k]; ok {
			out[k] = v
		}
	}
	return out
}

func findAttrDef(defs []store.AttrDef, name string) (store.AttrDef, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return store.AttrDef{}, false
}
