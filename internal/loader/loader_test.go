package loader

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"graphbulk/internal/batch"
	"graphbulk/internal/config"
	"graphbulk/internal/graph"
	"graphbulk/internal/ontology"
)

type stubOntology struct {
	ancestors map[string][]string
	schemas   map[string]*ontology.TypeSchema
}

func (s *stubOntology) Ancestors(label string) []string {
	if a, ok := s.ancestors[label]; ok {
		return a
	}
	return []string{label}
}

func (s *stubOntology) Schema(label string) (*ontology.TypeSchema, bool) {
	sch, ok := s.schemas[label]
	return sch, ok
}

func TestBuildNodeQuery(t *testing.T) {
	query := buildNodeQuery("`Polypeptide`:`Protein`")
	if !strings.Contains(query, "UNWIND $batch AS row") {
		t.Error("Missing UNWIND clause")
	}
	if !strings.Contains(query, "MERGE (n:`Polypeptide`:`Protein` {id: row.id})") {
		t.Error("Missing MERGE clause with label expression")
	}
	if !strings.Contains(query, "SET n += row.props") {
		t.Error("Missing property SET clause")
	}
}

func TestBuildEdgeQuery(t *testing.T) {
	query := buildEdgeQuery("INTERACTS_WITH")
	if !strings.Contains(query, "MATCH (source {id: row.sourceId})") {
		t.Error("Missing source MATCH clause")
	}
	if !strings.Contains(query, "MERGE (source)-[r:INTERACTS_WITH]->(target)") {
		t.Error("Missing MERGE clause with relationship type")
	}
}

func TestBuildConstraintQuery(t *testing.T) {
	query := buildConstraintQuery("small molecule")
	want := "CREATE CONSTRAINT IF NOT EXISTS FOR (n:`SmallMolecule`) REQUIRE n.id IS UNIQUE"
	if query != want {
		t.Errorf("Expected %q, got %q", want, query)
	}
}

func TestLabelExpr(t *testing.T) {
	ont := &stubOntology{ancestors: map[string][]string{
		"protein": {"protein", "polypeptide"},
	}}
	l := NewNeo4j(nil, config.Default(), ont, zap.NewNop())

	if got := l.labelExpr("protein"); got != "`Polypeptide`:`Protein`" {
		t.Errorf("Expected sorted backticked labels, got %q", got)
	}

	cfg := config.Default()
	cfg.Force = true
	forced := NewNeo4j(nil, cfg, ont, zap.NewNop())
	if got := forced.labelExpr("protein"); got != "`Protein`" {
		t.Errorf("Force mode uses the bare type only, got %q", got)
	}
}

func TestRelType(t *testing.T) {
	ont := &stubOntology{schemas: map[string]*ontology.TypeSchema{
		"binds": {LabelAsEdge: "BINDS_TO", UseID: true},
	}}
	l := NewNeo4j(nil, config.Default(), ont, zap.NewNop())

	if got := l.relType("binds"); got != "BINDS_TO" {
		t.Errorf("Schema override wins, got %q", got)
	}
	if got := l.relType("interacts with"); got != "InteractsWith" {
		t.Errorf("Fallback is the canonical name, got %q", got)
	}
	if got := l.relType(graph.LabelIsSourceOf); got != graph.LabelIsSourceOf {
		t.Errorf("Auxiliary labels pass through verbatim, got %q", got)
	}
}

func TestNodeRow(t *testing.T) {
	row := nodeRow(&graph.Node{
		ID:         "p1",
		Label:      "protein",
		Properties: map[string]any{"score": 4.5},
	})
	if row["id"] != "p1" {
		t.Errorf("Expected id p1, got %v", row["id"])
	}
	props, ok := row["props"].(map[string]any)
	if !ok || props["score"] != 4.5 {
		t.Errorf("Expected props map with score, got %v", row["props"])
	}
}

func TestEdgeRow_IDFoldedIntoProps(t *testing.T) {
	row := edgeRow(&graph.Edge{
		ID: "e1", SourceID: "a", TargetID: "b", Label: "binds",
		Properties: map[string]any{"kd": 1.5},
	})
	if row["sourceId"] != "a" || row["targetId"] != "b" {
		t.Errorf("Expected endpoints in row, got %v", row)
	}
	props := row["props"].(map[string]any)
	if props["id"] != "e1" || props["kd"] != 1.5 {
		t.Errorf("Expected id and kd in props, got %v", props)
	}

	anon := edgeRow(&graph.Edge{SourceID: "a", TargetID: "b", Label: "binds"})
	if _, ok := anon["props"].(map[string]any)["id"]; ok {
		t.Error("Anonymous edges must not carry an id property")
	}
}

func TestColumnOrders(t *testing.T) {
	ref := batch.InferRef(map[string]any{"mass": 2.5, "sequence": "MKT"})

	nodeCols := nodeColumns(ref)
	if !reflect.DeepEqual(nodeCols, []string{"id", "mass", "sequence", "labels"}) {
		t.Errorf("Unexpected node columns %v", nodeCols)
	}

	edgeCols := edgeColumns(ref, true)
	if !reflect.DeepEqual(edgeCols, []string{"source_id", "id", "mass", "sequence", "target_id", "label"}) {
		t.Errorf("Unexpected edge columns %v", edgeCols)
	}

	edgeCols = edgeColumns(ref, false)
	if !reflect.DeepEqual(edgeCols, []string{"source_id", "mass", "sequence", "target_id", "label"}) {
		t.Errorf("Unexpected anonymous edge columns %v", edgeCols)
	}
}

func TestValueAlignment(t *testing.T) {
	ref := batch.InferRef(map[string]any{"mass": 2.5, "sequence": "MKT"})

	nt := &pgNodeTable{ref: ref, labels: []string{"Polypeptide", "Protein"}}
	row := nodeValues(&graph.Node{
		ID:         "p1",
		Label:      "protein",
		Properties: map[string]any{"sequence": "MKT", "mass": 2.5},
	}, nt)
	if !reflect.DeepEqual(row, []any{"p1", 2.5, "MKT", []string{"Polypeptide", "Protein"}}) {
		t.Errorf("Unexpected node values %v", row)
	}

	et := &pgEdgeTable{ref: batch.InferRef(map[string]any{"kd": 1.5}), useID: false, relType: "BINDS_TO"}
	erow := edgeValues(&graph.Edge{
		ID: "ignored", SourceID: "a", TargetID: "b", Label: "binds",
		Properties: map[string]any{"kd": 1.5},
	}, et)
	if !reflect.DeepEqual(erow, []any{"a", 1.5, "b", "BINDS_TO"}) {
		t.Errorf("Unexpected edge values %v", erow)
	}
}
