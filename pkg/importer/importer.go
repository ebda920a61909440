// Package importer implements the CSV bulk-import contract:
// a nodes file carrying one row per base node plus its observation
// time series, and an edges file carrying the base HLink topology,
// replicated logically across every layer of the resulting stack.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/store"
)

// Options configures one import pass.
type Options struct {
	// AutoCreateAttrs declares unrecognized CSV columns as String/Indexed
	// attributes on MLD_NODE (or MLD_HLINK) before importing rows that use
	// them. When false, unrecognized columns are parsed but dropped: the
	// schema has nowhere declared to put them, so a read returns nothing
	// for that name (see store/badgerstore's filterDeclared).
	AutoCreateAttrs bool

	// SchemaPath, if set, names a YAML file declaring the kind and
	// indexing of specific node/edge attribute columns ahead of time,
	// overriding the generic String/Indexed guess AutoCreateAttrs would
	// otherwise make for the same column name. See SchemaOverlay.
	SchemaPath string
}

// SchemaOverlay declares attribute kinds for CSV columns the importer
// would otherwise have to guess at. A column named in NodeAttrs/EdgeAttrs
// is declared with the given kind instead of the AutoCreateAttrs default
// of String.
type SchemaOverlay struct {
	NodeAttrs []AttrOverlay `yaml:"node_attrs"`
	EdgeAttrs []AttrOverlay `yaml:"edge_attrs"`
}

// AttrOverlay names one attribute's kind: "bool", "int32", "int64",
// "float64", "string", or "time".
type AttrOverlay struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Indexed bool   `yaml:"indexed"`
}

func loadSchemaOverlay(path string) (*SchemaOverlay, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema overlay: %w", err)
	}
	var ov SchemaOverlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parsing schema overlay: %w", err)
	}
	return &ov, nil
}

func overlayAttrDef(a AttrOverlay) (store.AttrDef, error) {
	def := store.AttrDef{Name: a.Name, Indexed: a.Indexed}
	switch strings.ToLower(a.Kind) {
	case "bool":
		def.Kind, def.Default = entity.KindBool, entity.BoolValue(false)
	case "int32":
		def.Kind, def.Default = entity.KindInt32, entity.Int32Value(0)
	case "int64":
		def.Kind, def.Default = entity.KindInt64, entity.Int64Value(0)
	case "float64":
		def.Kind, def.Default = entity.KindFloat64, entity.Float64Value(0)
	case "string", "":
		def.Kind, def.Default = entity.KindString, entity.StringValue("")
	case "time":
		def.Kind, def.Default = entity.KindTime, entity.TimeValue(time.Time{})
	default:
		return store.AttrDef{}, fmt.Errorf("schema overlay: unrecognized kind %q for attribute %q", a.Kind, a.Name)
	}
	return def, nil
}

// parseValueByKind parses a raw CSV cell according to an overlay-declared
// kind, the counterpart to overlayAttrDef's schema-side declaration.
func parseValueByKind(kindStr, raw string) (entity.Value, error) {
	switch kindStr {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return entity.Value{}, err
		}
		return entity.BoolValue(b), nil
	case "int32":
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return entity.Value{}, err
		}
		return entity.Int32Value(int32(n)), nil
	case "int64":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return entity.Value{}, err
		}
		return entity.Int64Value(n), nil
	case "float64":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return entity.Value{}, err
		}
		return entity.Float64Value(f), nil
	case "time":
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return entity.Value{}, err
		}
		return entity.TimeValue(t), nil
	default:
		return entity.StringValue(raw), nil
	}
}

// overlayIndex maps attribute name -> declared kind, for quick lookup
// while classifying CSV columns.
func overlayIndex(items []AttrOverlay) map[string]AttrOverlay {
	m := make(map[string]AttrOverlay, len(items))
	for _, a := range items {
		m[strings.ToLower(a.Name)] = a
	}
	return m
}

// Result reports what an import pass did.
type Result struct {
	LayersCreated    int
	NodesImported    int
	EdgesImported    int
	SkippedSelfLoops int
}

// Import runs the full nodes+edges pass against dao, using st only to
// extend the MLD_NODE/MLD_HLINK schema with any auto-created attributes
// discovered in the CSV headers.
func Import(st store.Store, dao *mlgdao.MLGDao, nodesPath, edgesPath string, opts Options) (*Result, error) {
	res := &Result{}

	overlay, err := loadSchemaOverlay(opts.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}

	nodeIDs, layers, err := importNodes(st, dao, nodesPath, opts, overlay, res)
	if err != nil {
		return nil, fmt.Errorf("importer: nodes: %w", err)
	}
	res.LayersCreated = len(layers)

	if err := importEdges(st, dao, edgesPath, nodeIDs, opts, overlay, res); err != nil {
		return nil, fmt.Errorf("importer: edges: %w", err)
	}

	return res, nil
}

// baseNodeAttrDefs mirrors schema.Declare's MLD_NODE definition, needed
// whenever the node type is re-declared with extra auto-created columns
// (DeclareNodeType replaces the whole attribute list, not just appends).
func baseNodeAttrDefs() []store.AttrDef {
	return []store.AttrDef{
		{Name: entity.AttrWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
		{Name: entity.AttrLabel, Kind: entity.KindString, Indexed: true, Default: entity.StringValue("")},
	}
}

func baseHLinkAttrDefs() []store.AttrDef {
	return []store.AttrDef{
		{Name: entity.AttrHLinkWeight, Kind: entity.KindFloat64, Indexed: true, Default: entity.Float64Value(1.0)},
	}
}

// importNodes reads the nodes CSV and returns the join-key -> created-id
// map used to resolve edges, plus the layer stack it created.
//
// Open question: the importer honors an explicit id column when
// the header names one (case-insensitive, any position), using each
// row's value there as the edge join key; otherwise the 0-based row
// ordinal is the join key.
func importNodes(st store.Store, dao *mlgdao.MLGDao, path string, opts Options, overlay *SchemaOverlay, res *Result) (map[string]entity.ID, []entity.ID, error) {
	var nodeOverlay map[string]AttrOverlay
	if overlay != nil {
		nodeOverlay = overlayIndex(overlay.NodeAttrs)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = cleanCell(header[i])
	}
	if len(header) < 2 {
		return nil, nil, fmt.Errorf("header too short: %v", header)
	}

	tsTok := strings.SplitN(header[len(header)-1], ":", 2)
	if len(tsTok) != 2 || !strings.EqualFold(tsTok[0], "ts") {
		return nil, nil, fmt.Errorf("header last column must be ts:<K>, got %q", header[len(header)-1])
	}
	tsSize, err := strconv.Atoi(tsTok[1])
	if err != nil || tsSize < 1 {
		return nil, nil, fmt.Errorf("invalid ts size in %q", header[len(header)-1])
	}

	attrCols := header[:len(header)-1]
	idCol := -1
	kind := make([]string, len(attrCols))       // "weight", "label", "id", or "" (generic)
	overlayKind := make([]string, len(attrCols)) // overlay-declared value kind for generic columns
	var extraDefs []store.AttrDef
	for i, name := range attrCols {
		switch strings.ToLower(name) {
		case "weight":
			kind[i] = "weight"
		case "label":
			kind[i] = "label"
		case "id":
			kind[i] = "id"
			idCol = i
			extraDefs = append(extraDefs, store.AttrDef{
				Name: name, Kind: entity.KindString, Indexed: true, Default: entity.StringValue(""),
			})
		default:
			kind[i] = ""
			if ov, ok := nodeOverlay[strings.ToLower(name)]; ok {
				def, err := overlayAttrDef(ov)
				if err != nil {
					return nil, nil, err
				}
				def.Name = name
				extraDefs = append(extraDefs, def)
				overlayKind[i] = strings.ToLower(ov.Kind)
			} else if opts.AutoCreateAttrs {
				extraDefs = append(extraDefs, store.AttrDef{
					Name: name, Kind: entity.KindString, Indexed: true, Default: entity.StringValue(""),
				})
			}
		}
	}

	if len(extraDefs) > 0 {
		if err := st.DeclareNodeType(store.NodeTypeDef{
			Name:  entity.TypeNode,
			Attrs: append(baseNodeAttrDefs(), extraDefs...),
		}); err != nil {
			return nil, nil, fmt.Errorf("declaring node attributes: %w", err)
		}
	}

	layers, err := buildLayerStack(dao, tsSize)
	if err != nil {
		return nil, nil, err
	}

	joinKeys := make(map[string]entity.ID)
	ordinal := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(row) == 0 {
			continue
		}
		for i := range row {
			row[i] = cleanCell(row[i])
		}
		if len(row) < len(attrCols)+1 {
			return nil, nil, fmt.Errorf("row %d: expected at least %d columns, got %d", ordinal, len(attrCols)+1, len(row))
		}

		nodeAttrs := entity.AttrMap{}
		for i, name := range attrCols {
			val := row[i]
			switch kind[i] {
			case "weight":
				w, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, nil, fmt.Errorf("row %d: bad weight %q: %w", ordinal, val, err)
				}
				nodeAttrs[entity.AttrWeight] = entity.Float64Value(w)
			case "label":
				nodeAttrs[entity.AttrLabel] = entity.StringValue(val)
			case "id":
				nodeAttrs[name] = entity.StringValue(val)
			default:
				if overlayKind[i] != "" {
					v, err := parseValueByKind(overlayKind[i], val)
					if err != nil {
						return nil, nil, fmt.Errorf("row %d: column %q: %w", ordinal, name, err)
					}
					nodeAttrs[name] = v
				} else if opts.AutoCreateAttrs {
					nodeAttrs[name] = entity.StringValue(val)
				}
			}
		}

		firstWeight, err := strconv.ParseFloat(row[len(attrCols)], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: bad ts[0] %q: %w", ordinal, row[len(attrCols)], err)
		}
		n, err := dao.AddNodeToLayer(layers[0], nodeAttrs, entity.AttrMap{entity.AttrOLinkWeight: entity.Float64Value(firstWeight)})
		if err != nil {
			return nil, nil, err
		}

		for i := 1; i < tsSize; i++ {
			col := len(attrCols) + i
			if col >= len(row) {
				break
			}
			w, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d: bad ts[%d] %q: %w", ordinal, i, row[col], err)
			}
			if _, err := dao.Links().CreateOLink(layers[i], n, &w); err != nil {
				return nil, nil, err
			}
		}

		key := strconv.Itoa(ordinal)
		if idCol >= 0 {
			key = row[idCol]
		}
		joinKeys[key] = n
		res.NodesImported++
		ordinal++
	}

	return joinKeys, layers, nil
}

func buildLayerStack(dao *mlgdao.MLGDao, tsSize int) ([]entity.ID, error) {
	base, err := dao.Layers().AddBaseLayer(nil)
	if err != nil {
		return nil, err
	}
	layers := make([]entity.ID, tsSize)
	layers[0] = base
	for i := 1; i < tsSize; i++ {
		l, err := dao.Layers().AddLayerOnTop(nil)
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}
	return layers, nil
}

// importEdges reads the edges CSV. A single HLink is created per row: in
// this store's model the same node id is observed across every layer via
// OLink (not re-created per layer), so one HLink between two node ids
// already governs every layer's topology reads — no per-layer
// duplication is needed, unlike the mirrored-node architecture this
// format was originally written against.
func importEdges(st store.Store, dao *mlgdao.MLGDao, path string, joinKeys map[string]entity.ID, opts Options, overlay *SchemaOverlay, res *Result) error {
	var edgeOverlay map[string]AttrOverlay
	if overlay != nil {
		edgeOverlay = overlayIndex(overlay.EdgeAttrs)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = cleanCell(header[i])
	}
	if len(header) < 2 {
		return fmt.Errorf("header too short: %v", header)
	}

	attrCols := header[2:]
	kind := make([]string, len(attrCols))
	overlayKind := make([]string, len(attrCols))
	var extraDefs []store.AttrDef
	for i, name := range attrCols {
		if strings.EqualFold(name, "weight") {
			kind[i] = "weight"
			continue
		}
		kind[i] = ""
		if ov, ok := edgeOverlay[strings.ToLower(name)]; ok {
			def, err := overlayAttrDef(ov)
			if err != nil {
				return err
			}
			def.Name = name
			extraDefs = append(extraDefs, def)
			overlayKind[i] = strings.ToLower(ov.Kind)
		} else if opts.AutoCreateAttrs {
			extraDefs = append(extraDefs, store.AttrDef{
				Name: name, Kind: entity.KindString, Indexed: true, Default: entity.StringValue(""),
			})
		}
	}

	if len(extraDefs) > 0 {
		if err := st.DeclareEdgeType(store.EdgeTypeDef{
			Name:            entity.TypeHLink,
			Directed:        false,
			NeighborIndexed: true,
			TailType:        entity.TypeNode,
			HeadType:        entity.TypeNode,
			Attrs:           append(baseHLinkAttrDefs(), extraDefs...),
		}); err != nil {
			return fmt.Errorf("declaring HLink attributes: %w", err)
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}
		for i := range row {
			row[i] = cleanCell(row[i])
		}
		if len(row) < 2 {
			return fmt.Errorf("edge row too short: %v", row)
		}

		src, ok := joinKeys[row[0]]
		if !ok {
			return fmt.Errorf("edge row references unknown src %q", row[0])
		}
		tgt, ok := joinKeys[row[1]]
		if !ok {
			return fmt.Errorf("edge row references unknown tgt %q", row[1])
		}
		if src == tgt {
			res.SkippedSelfLoops++
			continue
		}

		var weightPtr *float64
		extraAttrs := entity.AttrMap{}
		for i, name := range attrCols {
			col := 2 + i
			if col >= len(row) {
				break
			}
			val := row[col]
			if kind[i] == "weight" {
				w, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return fmt.Errorf("bad edge weight %q: %w", val, err)
				}
				weightPtr = &w
				continue
			}
			if overlayKind[i] != "" {
				v, err := parseValueByKind(overlayKind[i], val)
				if err != nil {
					return fmt.Errorf("edge row: column %q: %w", name, err)
				}
				extraAttrs[name] = v
			} else if opts.AutoCreateAttrs {
				extraAttrs[name] = entity.StringValue(val)
			}
		}

		id, err := dao.AddHLink(src, tgt, weightPtr)
		if err != nil {
			return err
		}
		if len(extraAttrs) > 0 {
			if err := dao.Links().UpdateHLink(id, extraAttrs); err != nil {
				return err
			}
		}
		res.EdgesImported++
	}

	return nil
}

// cleanCell strips the stray '#', quote, and carriage-return characters
// that show up in hand-edited export files (mirrors the reference
// tokenizer's cell cleanup).
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "#", "")
	s = strings.ReplaceAll(s, "\"", "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}
