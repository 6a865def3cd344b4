// Package loader pushes entity streams into a running database over
// its native driver. It is the online alternative to the offline
// bulk-file export: same streams, same ontology-driven labels and
// schemas, but MERGE/COPY semantics instead of part files.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"graphbulk/internal/batch"
	"graphbulk/internal/config"
	"graphbulk/internal/graph"
	"graphbulk/internal/ontology"
)

// Neo4j loads entities into a live Neo4j database with batched UNWIND
// queries. MERGE keys on id, so repeated loads are idempotent.
type Neo4j struct {
	driver neo4j.DriverWithContext
	cfg    config.Config
	ont    ontology.Ontology
	log    *zap.Logger
}

// ConnectNeo4j opens and verifies a driver from credentials.
func ConnectNeo4j(ctx context.Context, creds config.Credentials) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(creds.Neo4jURI,
		neo4j.BasicAuth(creds.Neo4jUser, creds.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity check failed: %w", err)
	}
	return driver, nil
}

// NewNeo4j creates a loader. A nil logger is replaced with a no-op
// logger.
func NewNeo4j(driver neo4j.DriverWithContext, cfg config.Config, ont ontology.Ontology, log *zap.Logger) *Neo4j {
	if log == nil {
		log = zap.NewNop()
	}
	return &Neo4j{driver: driver, cfg: cfg, ont: ont, log: log.Named("neo4j-loader")}
}

// LoadNodes drains a node stream into the database, one UNWIND batch
// per type. Returns the number of nodes submitted.
func (l *Neo4j) LoadNodes(ctx context.Context, src graph.NodeSource) (int, error) {
	if src == nil {
		return 0, batch.ErrNilSource
	}
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.cfg.DatabaseName})
	defer session.Close(ctx)

	bins := make(map[string][]map[string]any)
	exprs := make(map[string]string)
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
		if _, known := exprs[name]; !known {
			exprs[name] = l.labelExpr(n.Label)
		}
		bins[name] = append(bins[name], nodeRow(n))
		if len(bins[name]) >= l.cfg.BatchSize {
			if err := l.runNodeBatch(ctx, session, exprs[name], bins[name]); err != nil {
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
		if err := l.runNodeBatch(ctx, session, exprs[name], rows); err != nil {
			return total, err
		}
		total += len(rows)
	}
	return total, nil
}

// LoadEdges drains an edge stream. Relationship-as-node composites
// are decomposed and their node loaded alongside the auxiliary edges.
// Returns the number of edges submitted.
func (l *Neo4j) LoadEdges(ctx context.Context, src graph.EdgeSource) (int, error) {
	if src == nil {
		return 0, batch.ErrNilSource
	}
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.cfg.DatabaseName})
	defer session.Close(ctx)

	bins := make(map[string][]map[string]any)
	total := 0
	flush := func(relType string) error {
		if len(bins[relType]) == 0 {
			return nil
		}
		if err := l.runEdgeBatch(ctx, session, relType, bins[relType]); err != nil {
			return err
		}
		total += len(bins[relType])
		bins[relType] = bins[relType][:0]
		return nil
	}
	add := func(e *graph.Edge) error {
		if e.SourceID == "" || e.TargetID == "" {
			l.log.Warn("Skipping edge without endpoints", zap.String("label", e.Label))
			return nil
		}
		relType := l.relType(e.Label)
		bins[relType] = append(bins[relType], edgeRow(e))
		if len(bins[relType]) >= l.cfg.BatchSize {
			return flush(relType)
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
			expr := l.labelExpr(node.Label)
			if err := l.runNodeBatch(ctx, session, expr, []map[string]any{nodeRow(node)}); err != nil {
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
	for relType := range bins {
		if err := flush(relType); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Wipe deletes all data from the database.
func (l *Neo4j) Wipe(ctx context.Context) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.cfg.DatabaseName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	})
	return err
}

// ApplyConstraints creates a uniqueness constraint on id for each
// given type label.
func (l *Neo4j) ApplyConstraints(ctx context.Context, labels []string) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.cfg.DatabaseName})
	defer session.Close(ctx)

	for _, label := range labels {
		query := buildConstraintQuery(label)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, query, nil)
		})
		if err != nil {
			return fmt.Errorf("failed to apply constraint for %s: %w", label, err)
		}
	}
	return nil
}

func (l *Neo4j) runNodeBatch(ctx context.Context, session neo4j.SessionWithContext, labelExpr string, rows []map[string]any) error {
	query := buildNodeQuery(labelExpr)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{"batch": rows})
	})
	if err != nil {
		return fmt.Errorf("failed to load nodes for %s: %w", labelExpr, err)
	}
	l.log.Debug("Node batch loaded", zap.String("labels", labelExpr), zap.Int("rows", len(rows)))
	return nil
}

func (l *Neo4j) runEdgeBatch(ctx context.Context, session neo4j.SessionWithContext, relType string, rows []map[string]any) error {
	query := buildEdgeQuery(relType)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{"batch": rows})
	})
	if err != nil {
		return fmt.Errorf("failed to load edges for %s: %w", relType, err)
	}
	l.log.Debug("Edge batch loaded", zap.String("type", relType), zap.Int("rows", len(rows)))
	return nil
}

// labelExpr renders the colon-joined label set a node receives,
// ancestor chain included unless force mode is on.
func (l *Neo4j) labelExpr(label string) string {
	labels := []string{ontology.PascalCase(label)}
	if !l.cfg.Force {
		labels = ontology.Labels(l.ont.Ancestors(label), label)
	}
	parts := make([]string, len(labels))
	for i, lb := range labels {
		parts[i] = "`" + sanitizeLabel(lb) + "`"
	}
	return strings.Join(parts, ":")
}

func (l *Neo4j) relType(label string) string {
	if label == graph.LabelIsSourceOf || label == graph.LabelIsTargetOf {
		return label
	}
	if schema, ok := l.ont.Schema(label); ok && schema.LabelAsEdge != "" {
		return schema.LabelAsEdge
	}
	return ontology.PascalCase(label)
}

func nodeRow(n *graph.Node) map[string]any {
	props := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	return map[string]any{"id": n.ID, "props": props}
}

func edgeRow(e *graph.Edge) map[string]any {
	props := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		props[k] = v
	}
	if e.ID != "" {
		props["id"] = e.ID
	}
	return map[string]any{"sourceId": e.SourceID, "targetId": e.TargetID, "props": props}
}

func buildNodeQuery(labelExpr string) string {
	return fmt.Sprintf(`
			UNWIND $batch AS row
			MERGE (n:%s {id: row.id})
			SET n += row.props
		`, labelExpr)
}

func buildEdgeQuery(relType string) string {
	return fmt.Sprintf(`
			UNWIND $batch AS row
			MATCH (source {id: row.sourceId})
			MATCH (target {id: row.targetId})
			MERGE (source)-[r:%s]->(target)
			SET r += row.props
		`, sanitizeLabel(relType))
}

func buildConstraintQuery(label string) string {
	return fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:`%s`) REQUIRE n.id IS UNIQUE",
		sanitizeLabel(ontology.PascalCase(label)))
}

func sanitizeLabel(label string) string {
	return strings.ReplaceAll(label, "`", "")
}
