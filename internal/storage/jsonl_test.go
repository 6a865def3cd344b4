package storage

import (
	"bytes"
	"strings"
	"testing"

	"graphbulk/internal/graph"
)

func TestNodeReader(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"p1","type":"protein","score":4.5}`,
		``,
		`{"id":"p2","type":"protein","score":1.0}`,
	}, "\n")

	r := NewNodeReader(strings.NewReader(input))

	n, ok := r.Next()
	if !ok {
		t.Fatal("Expected first node")
	}
	if n.ID != "p1" || n.Label != "protein" {
		t.Errorf("Unexpected identity %q/%q", n.ID, n.Label)
	}
	if n.Properties["score"] != 4.5 {
		t.Errorf("Expected score property, got %v", n.Properties)
	}
	if _, leaked := n.Properties["id"]; leaked {
		t.Error("Identity fields must not leak into properties")
	}

	if _, ok := r.Next(); !ok {
		t.Fatal("Expected second node after blank line")
	}
	if _, ok := r.Next(); ok {
		t.Error("Expected stream end")
	}
	if err := r.Err(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestNodeReader_MalformedLine(t *testing.T) {
	r := NewNodeReader(strings.NewReader(`{"id":"p1","type":"protein"}` + "\n" + `{not json`))

	if _, ok := r.Next(); !ok {
		t.Fatal("Expected first node")
	}
	if _, ok := r.Next(); ok {
		t.Error("Malformed line must stop the stream")
	}
	if err := r.Err(); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected line-numbered error, got %v", err)
	}
}

func TestEdgeReader(t *testing.T) {
	input := strings.Join([]string{
		`{"source":"a","target":"b","type":"binds","id":"e1","kd":1.5}`,
		`{"source":"p1","target":"d1","type":"perturbs","id":"r1","rel_as_node":true}`,
	}, "\n")

	r := NewEdgeReader(strings.NewReader(input))

	item, ok := r.Next()
	if !ok {
		t.Fatal("Expected first edge")
	}
	e, isEdge := item.(*graph.Edge)
	if !isEdge {
		t.Fatalf("Expected plain edge, got %T", item)
	}
	if e.SourceID != "a" || e.TargetID != "b" || e.Label != "binds" || e.ID != "e1" {
		t.Errorf("Unexpected edge %+v", e)
	}
	if e.Properties["kd"] != 1.5 {
		t.Errorf("Expected kd property, got %v", e.Properties)
	}

	item, ok = r.Next()
	if !ok {
		t.Fatal("Expected second item")
	}
	rel, isRel := item.(*graph.RelAsNode)
	if !isRel {
		t.Fatalf("Expected relationship-as-node composite, got %T", item)
	}
	if rel.Node.ID != "r1" {
		t.Errorf("Composite node keeps the edge id, got %q", rel.Node.ID)
	}
	if err := r.Err(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestEmitterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONLEmitter(&buf)

	if err := e.EmitNode(&graph.Node{
		ID: "p1", Label: "protein",
		Properties: map[string]any{"score": 4.5},
	}); err != nil {
		t.Fatalf("EmitNode: %v", err)
	}
	if err := e.EmitEdge(&graph.Edge{
		ID: "e1", SourceID: "a", TargetID: "b", Label: "binds",
		Properties: map[string]any{"kd": 1.5},
	}); err != nil {
		t.Fatalf("EmitEdge: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	nr := NewNodeReader(strings.NewReader(lines[0]))
	n, ok := nr.Next()
	if !ok || n.ID != "p1" || n.Properties["score"] != 4.5 {
		t.Errorf("Node round trip failed: %+v ok=%v", n, ok)
	}

	er := NewEdgeReader(strings.NewReader(lines[1]))
	item, ok := er.Next()
	if !ok {
		t.Fatal("Edge round trip failed")
	}
	edge := item.(*graph.Edge)
	if edge.ID != "e1" || edge.Properties["kd"] != 1.5 {
		t.Errorf("Edge round trip lost data: %+v", edge)
	}
}

func TestEmitEdge_OmitsEmptyID(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONLEmitter(&buf)
	if err := e.EmitEdge(&graph.Edge{SourceID: "a", TargetID: "b", Label: "binds"}); err != nil {
		t.Fatalf("EmitEdge: %v", err)
	}
	if strings.Contains(buf.String(), `"id"`) {
		t.Errorf("Empty edge id must be omitted: %s", buf.String())
	}
}
