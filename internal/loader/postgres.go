package loader

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"graphbulk/internal/batch"
	"graphbulk/internal/config"
	"graphbulk/internal/graph"
	"graphbulk/internal/ontology"
)

// Postgres loads entities into live relational tables with COPY. The
// tables are created from the same DDL the offline COPY backend emits,
// so both paths land in identical shapes.
type Postgres struct {
	pool *pgxpool.Pool
	cfg  config.Config
	ont  ontology.Ontology
	log  *zap.Logger

	nodeTables map[string]*pgNodeTable
	edgeTables map[string]*pgEdgeTable
}

type pgNodeTable struct {
	ref    *batch.PropertyRef
	labels []string
}

type pgEdgeTable struct {
	ref     *batch.PropertyRef
	useID   bool
	relType string
}

// ConnectPostgres opens and verifies a pool from credentials.
func ConnectPostgres(ctx context.Context, creds config.Credentials) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, creds.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connectivity check failed: %w", err)
	}
	return pool, nil
}

// NewPostgres creates a loader. A nil logger is replaced with a no-op
// logger.
func NewPostgres(pool *pgxpool.Pool, cfg config.Config, ont ontology.Ontology, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{
		pool:       pool,
		cfg:        cfg,
		ont:        ont,
		log:        log.Named("postgres-loader"),
		nodeTables: make(map[string]*pgNodeTable),
		edgeTables: make(map[string]*pgEdgeTable),
	}
}

// LoadNodes drains a node stream into one table per type, creating
// each table on first sighting. Returns the number of rows copied.
func (l *Postgres) LoadNodes(ctx context.Context, src graph.NodeSource) (int, error) {
	if src == nil {
		return 0, batch.ErrNilSource
	}
	bins := make(map[string][][]any)
	total := 0
	for {
		n, ok := src.Next()
		if !ok {
			break
		}
		if n.ID == "" {
			l.log.Warn("Skipping node without id", zap.String("label", n.Label))
			continue
		}
		name := ontology.PascalCase(n.Label)
		t, known := l.nodeTables[name]
		if !known {
			var err error
			if t, err = l.ensureNodeTable(ctx, name, n); err != nil {
				return total, err
			}
		}
		bins[name] = append(bins[name], nodeValues(n, t))
		if len(bins[name]) >= l.cfg.BatchSize {
			if err := l.copyNodes(ctx, name, bins[name]); err != nil {
				return total, err
			}
			total += len(bins[name])
			bins[name] = bins[name][:0]
		}
	}
	for name, rows := range bins {
		if len(rows) == 0 {
			continue
		}
		if err := l.copyNodes(ctx, name, rows); err != nil {
			return total, err
		}
		total += len(rows)
	}
	return total, nil
}

// LoadEdges drains an edge stream, decomposing relationship-as-node
// composites. Returns the number of edge rows copied.
func (l *Postgres) LoadEdges(ctx context.Context, src graph.EdgeSource) (int, error) {
	if src == nil {
		return 0, batch.ErrNilSource
	}
	bins := make(map[string][][]any)
	total := 0
	flush := func(name string) error {
		if len(bins[name]) == 0 {
			return nil
		}
		if err := l.copyEdges(ctx, name, bins[name]); err != nil {
			return err
		}
		total += len(bins[name])
		bins[name] = bins[name][:0]
		return nil
	}
	add := func(e *graph.Edge) error {
		if e.SourceID == "" || e.TargetID == "" {
			l.log.Warn("Skipping edge without endpoints", zap.String("label", e.Label))
			return nil
		}
		name := ontology.PascalCase(e.Label)
		if e.Label == graph.LabelIsSourceOf || e.Label == graph.LabelIsTargetOf {
			name = e.Label
		}
		t, known := l.edgeTables[name]
		if !known {
			var err error
			if t, err = l.ensureEdgeTable(ctx, name, e); err != nil {
				return err
			}
		}
		bins[name] = append(bins[name], edgeValues(e, t))
		if len(bins[name]) >= l.cfg.BatchSize {
			return flush(name)
		}
		return nil
	}

	for {
		item, ok := src.Next()
		if !ok {
			break
		}
		switch v := item.(type) {
		case *graph.Edge:
			if err := add(v); err != nil {
				return total, err
			}
		case *graph.RelAsNode:
			node, aux := v.Decompose()
			name := ontology.PascalCase(node.Label)
			t, known := l.nodeTables[name]
			if !known {
				var err error
				if t, err = l.ensureNodeTable(ctx, name, node); err != nil {
					return total, err
				}
			}
			if err := l.copyNodes(ctx, name, [][]any{nodeValues(node, t)}); err != nil {
				return total, err
			}
			for _, e := range aux {
				if err := add(e); err != nil {
					return total, err
				}
			}
		default:
			return total, fmt.Errorf("unsupported edge stream item %T", item)
		}
	}
	for name := range bins {
		if err := flush(name); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Wipe truncates every table created by this loader.
func (l *Postgres) Wipe(ctx context.Context) error {
	for name := range l.nodeTables {
		if _, err := l.pool.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{name}.Sanitize()); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", name, err)
		}
	}
	for name := range l.edgeTables {
		if _, err := l.pool.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{name}.Sanitize()); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", name, err)
		}
	}
	return nil
}

func (l *Postgres) ensureNodeTable(ctx context.Context, name string, first *graph.Node) (*pgNodeTable, error) {
	ref := l.nodeRef(first)
	if _, err := l.pool.Exec(ctx, batch.NodeTableDDL(name, ref)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	t := &pgNodeTable{ref: ref, labels: l.nodeLabels(first.Label)}
	l.nodeTables[name] = t
	l.log.Debug("Node table ready", zap.String("table", name))
	return t, nil
}

func (l *Postgres) ensureEdgeTable(ctx context.Context, name string, first *graph.Edge) (*pgEdgeTable, error) {
	t := &pgEdgeTable{useID: true, relType: ontology.PascalCase(first.Label)}
	if first.Label == graph.LabelIsSourceOf || first.Label == graph.LabelIsTargetOf {
		t.useID = false
		t.relType = first.Label
	} else if schema, ok := l.ont.Schema(first.Label); ok {
		t.useID = schema.UseID
		if schema.LabelAsEdge != "" {
			t.relType = schema.LabelAsEdge
		}
	}
	if schema, ok := l.ont.Schema(first.Label); ok && len(schema.Properties) > 0 {
		t.ref = batch.SchemaRef(schema, false, l.cfg.Strict)
	} else {
		t.ref = batch.InferRef(first.Properties)
	}
	if _, err := l.pool.Exec(ctx, batch.EdgeTableDDL(name, t.ref, t.useID)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	l.edgeTables[name] = t
	l.log.Debug("Edge table ready", zap.String("table", name))
	return t, nil
}

func (l *Postgres) nodeRef(first *graph.Node) *batch.PropertyRef {
	if schema, ok := l.ont.Schema(first.Label); ok && len(schema.Properties) > 0 {
		return batch.SchemaRef(schema, true, l.cfg.Strict)
	}
	return batch.InferRef(first.Properties)
}

func (l *Postgres) nodeLabels(label string) []string {
	if l.cfg.Force {
		return []string{ontology.PascalCase(label)}
	}
	return ontology.Labels(l.ont.Ancestors(label), label)
}

func (l *Postgres) copyNodes(ctx context.Context, name string, rows [][]any) error {
	t := l.nodeTables[name]
	return l.copyRows(ctx, name, nodeColumns(t.ref), rows)
}

func (l *Postgres) copyEdges(ctx context.Context, name string, rows [][]any) error {
	t := l.edgeTables[name]
	return l.copyRows(ctx, name, edgeColumns(t.ref, t.useID), rows)
}

func (l *Postgres) copyRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	copyCount, err := l.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s failed: %w", table, err)
	}
	if copyCount != int64(len(rows)) {
		return fmt.Errorf("copy into %s wrote %d of %d rows", table, copyCount, len(rows))
	}
	l.log.Debug("Rows copied", zap.String("table", table), zap.Int64("rows", copyCount))
	return nil
}

func nodeColumns(ref *batch.PropertyRef) []string {
	cols := append([]string{"id"}, ref.Names()...)
	return append(cols, "labels")
}

func edgeColumns(ref *batch.PropertyRef, useID bool) []string {
	cols := []string{"source_id"}
	if useID {
		cols = append(cols, "id")
	}
	cols = append(cols, ref.Names()...)
	return append(cols, "target_id", "label")
}

func nodeValues(n *graph.Node, t *pgNodeTable) []any {
	row := make([]any, 0, t.ref.Len()+2)
	row = append(row, n.ID)
	for _, col := range t.ref.Names() {
		row = append(row, t.ref.Value(n.Properties, col))
	}
	return append(row, t.labels)
}

func edgeValues(e *graph.Edge, t *pgEdgeTable) []any {
	row := make([]any, 0, t.ref.Len()+4)
	row = append(row, e.SourceID)
	if t.useID {
		row = append(row, e.ID)
	}
	for _, col := range t.ref.Names() {
		row = append(row, t.ref.Value(e.Properties, col))
	}
	return append(row, e.TargetID, t.relType)
}
