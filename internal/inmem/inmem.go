// Package inmem accumulates exported entities into per-type
// rectangular tables instead of part files. It applies the same
// reference-schema validation as the file backends, so a table's rows
// always align with its columns.
package inmem

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"graphbulk/internal/batch"
	"graphbulk/internal/config"
	"graphbulk/internal/dedup"
	"graphbulk/internal/graph"
	"graphbulk/internal/ontology"
)

// Table is a rectangular snapshot of one type's entities. Every row
// has exactly one value per column; absent declared properties hold
// nil.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

type nodeTable struct {
	ref    *batch.PropertyRef
	label  string
	labels string
	rows   [][]any
}

type edgeTable struct {
	ref     *batch.PropertyRef
	label   string
	useID   bool
	relType string
	rows    [][]any
}

// Store is the in-memory export target. Safe for concurrent use.
type Store struct {
	cfg config.Config
	ont ontology.Ontology
	dd  dedup.Deduplicator
	log *zap.Logger

	mu           sync.RWMutex
	nodeOrder    []string
	nodes        map[string]*nodeTable
	edgeOrder    []string
	edges        map[string]*edgeTable
	nodesDropped int
	edgesDropped int
}

// NewStore creates an empty store. A nil logger is replaced with a
// no-op logger.
func NewStore(cfg config.Config, ont ontology.Ontology, dd dedup.Deduplicator, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		cfg:   cfg,
		ont:   ont,
		dd:    dd,
		log:   log.Named("inmem"),
		nodes: make(map[string]*nodeTable),
		edges: make(map[string]*edgeTable),
	}
}

// AddNodes drains a node stream into per-type tables.
func (s *Store) AddNodes(src graph.NodeSource) error {
	if src == nil {
		return batch.ErrNilSource
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		n, ok := src.Next()
		if !ok {
			return nil
		}
		if err := s.addNode(n); err != nil {
			return err
		}
	}
}

// AddEdges drains an edge stream. Relationship-as-node composites are
// decomposed into their node and auxiliary edges first.
func (s *Store) AddEdges(src graph.EdgeSource) error {
	if src == nil {
		return batch.ErrNilSource
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		item, ok := src.Next()
		if !ok {
			return nil
		}
		switch v := item.(type) {
		case *graph.Edge:
			if s.dd.SeenEdge(v) {
				continue
			}
			if err := s.addEdge(v); err != nil {
				return err
			}
		case *graph.RelAsNode:
			if s.dd.SeenRelAsNode(v) {
				continue
			}
			node, aux := v.Decompose()
			if err := s.addNode(node); err != nil {
				return err
			}
			for _, e := range aux {
				if err := s.addEdge(e); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unsupported edge stream item %T", item)
		}
	}
}

func (s *Store) addNode(n *graph.Node) error {
	if n.ID == "" {
		s.nodesDropped++
		s.log.Warn("Dropping node without id", zap.String("label", n.Label))
		return nil
	}
	if s.dd.SeenNode(n) {
		return nil
	}
	name := ontology.PascalCase(n.Label)
	t, ok := s.nodes[name]
	if !ok {
		t = &nodeTable{
			ref:    s.nodeRef(n),
			label:  n.Label,
			labels: s.labelField(n.Label),
		}
		s.nodes[name] = t
		s.nodeOrder = append(s.nodeOrder, name)
	}
	if err := validate(name, t.ref, n.Properties); err != nil {
		return err
	}
	row := make([]any, 0, t.ref.Len()+2)
	row = append(row, n.ID)
	for _, col := range t.ref.Names() {
		row = append(row, t.ref.Value(n.Properties, col))
	}
	row = append(row, t.labels)
	t.rows = append(t.rows, row)
	return nil
}

func (s *Store) addEdge(e *graph.Edge) error {
	if e.SourceID == "" || e.TargetID == "" {
		s.edgesDropped++
		s.log.Warn("Dropping edge without endpoints", zap.String("label", e.Label))
		return nil
	}
	name := ontology.PascalCase(e.Label)
	aux := e.Label == graph.LabelIsSourceOf || e.Label == graph.LabelIsTargetOf
	if aux {
		name = e.Label
	}
	t, ok := s.edges[name]
	if !ok {
		t = s.newEdgeTable(e, aux)
		s.edges[name] = t
		s.edgeOrder = append(s.edgeOrder, name)
	}
	if err := validate(name, t.ref, e.Properties); err != nil {
		return err
	}
	row := make([]any, 0, t.ref.Len()+4)
	row = append(row, e.SourceID)
	if t.useID {
		row = append(row, e.ID)
	}
	for _, col := range t.ref.Names() {
		row = append(row, t.ref.Value(e.Properties, col))
	}
	row = append(row, e.TargetID, t.relType)
	t.rows = append(t.rows, row)
	return nil
}

func (s *Store) newEdgeTable(first *graph.Edge, aux bool) *edgeTable {
	t := &edgeTable{label: first.Label, useID: true, relType: ontology.PascalCase(first.Label)}
	if aux {
		t.useID = false
		t.relType = first.Label
	} else if schema, ok := s.ont.Schema(first.Label); ok {
		t.useID = schema.UseID
		if schema.LabelAsEdge != "" {
			t.relType = schema.LabelAsEdge
		}
	}
	if schema, ok := s.ont.Schema(first.Label); ok && len(schema.Properties) > 0 {
		t.ref = batch.SchemaRef(schema, false, s.cfg.Strict)
	} else {
		t.ref = batch.InferRef(first.Properties)
	}
	return t
}

func (s *Store) nodeRef(first *graph.Node) *batch.PropertyRef {
	if schema, ok := s.ont.Schema(first.Label); ok && len(schema.Properties) > 0 {
		return batch.SchemaRef(schema, true, s.cfg.Strict)
	}
	return batch.InferRef(first.Properties)
}

func (s *Store) labelField(label string) string {
	if s.cfg.Force {
		return ontology.PascalCase(label)
	}
	return ontology.JoinLabels(s.ont.Ancestors(label), label, s.cfg.ArrayDelimiter)
}

// validate applies the reference-schema rule: an entity's key set must
// match the reference exactly in both directions, with only the
// engine-filled auto columns exempt.
func validate(name string, ref *batch.PropertyRef, props map[string]any) error {
	missing, extra := ref.Diff(props)
	if len(missing) > 0 || len(extra) > 0 {
		return fmt.Errorf("type %s: %w: missing %v, extra %v",
			name, batch.ErrSchemaDivergence, missing, extra)
	}
	return nil
}

// NodeLabels returns node table names in first-seen order.
func (s *Store) NodeLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.nodeOrder))
	copy(out, s.nodeOrder)
	return out
}

// EdgeLabels returns edge table names in first-seen order.
func (s *Store) EdgeLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.edgeOrder))
	copy(out, s.edgeOrder)
	return out
}

// NodeTable snapshots one node type's table.
func (s *Store) NodeTable(name string) (Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.nodes[name]
	if !ok {
		return Table{}, false
	}
	cols := append([]string{"id"}, t.ref.Names()...)
	cols = append(cols, "labels")
	return Table{Name: name, Columns: cols, Rows: copyRows(t.rows)}, true
}

// EdgeTable snapshots one edge type's table.
func (s *Store) EdgeTable(name string) (Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.edges[name]
	if !ok {
		return Table{}, false
	}
	cols := []string{"source_id"}
	if t.useID {
		cols = append(cols, "id")
	}
	cols = append(cols, t.ref.Names()...)
	cols = append(cols, "target_id", "label")
	return Table{Name: name, Columns: cols, Rows: copyRows(t.rows)}, true
}

// EachNode replays every stored node in insertion order, rebuilding
// the entity from its row. Engine-filled auto columns and nil cells
// are not carried back as properties.
func (s *Store) EachNode(fn func(*graph.Node) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.nodeOrder {
		t := s.nodes[name]
		cols := t.ref.Names()
		for _, row := range t.rows {
			n := &graph.Node{
				ID:         row[0].(string),
				Label:      t.label,
				Properties: make(map[string]any, len(cols)),
			}
			for i, col := range cols {
				if t.ref.Auto(col) {
					continue
				}
				if v := row[i+1]; v != nil {
					n.Properties[col] = v
				}
			}
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// EachEdge replays every stored edge in insertion order.
func (s *Store) EachEdge(fn func(*graph.Edge) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.edgeOrder {
		t := s.edges[name]
		cols := t.ref.Names()
		for _, row := range t.rows {
			e := &graph.Edge{
				SourceID:   row[0].(string),
				TargetID:   row[len(row)-2].(string),
				Label:      t.label,
				Properties: make(map[string]any, len(cols)),
			}
			propStart := 1
			if t.useID {
				e.ID = row[1].(string)
				propStart = 2
			}
			for i, col := range cols {
				if t.ref.Auto(col) {
					continue
				}
				if v := row[propStart+i]; v != nil {
					e.Properties[col] = v
				}
			}
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// NodeCount returns the number of stored node rows across all types.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, t := range s.nodes {
		total += len(t.rows)
	}
	return total
}

// EdgeCount returns the number of stored edge rows across all types.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, t := range s.edges {
		total += len(t.rows)
	}
	return total
}

// Dropped returns how many nodes and edges were discarded for missing
// identity or endpoints.
func (s *Store) Dropped() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodesDropped, s.edgesDropped
}

func copyRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(r))
		copy(row, r)
		out[i] = row
	}
	return out
}
