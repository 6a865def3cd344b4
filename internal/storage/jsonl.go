// Package storage reads and writes the flattened JSONL interchange
// format: one entity per line, identity fields at the root and every
// other key treated as a property.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"graphbulk/internal/graph"
)

// Lines can carry long sequences or embedded documents, so the scanner
// buffer is raised well past the bufio default.
const maxLineBytes = 16 * 1024 * 1024

// NodeReader streams nodes from JSONL. It implements
// graph.NodeSource; check Err after the stream ends.
type NodeReader struct {
	scanner *bufio.Scanner
	line    int
	err     error
}

// NewNodeReader creates a reader over r.
func NewNodeReader(r io.Reader) *NodeReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &NodeReader{scanner: sc}
}

// Next returns the next node. The stream stops on the first malformed
// line; Err reports why.
func (r *NodeReader) Next() (*graph.Node, bool) {
	raw, ok := r.nextLine()
	if !ok {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		r.err = fmt.Errorf("node line %d: %w", r.line, err)
		return nil, false
	}
	n := &graph.Node{
		ID:    str(m["id"]),
		Label: str(m["type"]),
	}
	delete(m, "id")
	delete(m, "type")
	n.Properties = m
	return n, true
}

// Err returns the error that terminated the stream, if any.
func (r *NodeReader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.scanner.Err()
}

func (r *NodeReader) nextLine() ([]byte, bool) {
	if r.err != nil {
		return nil, false
	}
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		return raw, true
	}
	return nil, false
}

// EdgeReader streams edges from JSONL. It implements
// graph.EdgeSource; check Err after the stream ends.
type EdgeReader struct {
	scanner *bufio.Scanner
	line    int
	err     error
}

// NewEdgeReader creates a reader over r.
func NewEdgeReader(r io.Reader) *EdgeReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &EdgeReader{scanner: sc}
}

// Next returns the next edge item. A line with "rel_as_node": true is
// promoted to a relationship-as-node composite.
func (r *EdgeReader) Next() (graph.EdgeItem, bool) {
	if r.err != nil {
		return nil, false
	}
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			r.err = fmt.Errorf("edge line %d: %w", r.line, err)
			return nil, false
		}
		e := &graph.Edge{
			ID:       str(m["id"]),
			SourceID: str(m["source"]),
			TargetID: str(m["target"]),
			Label:    str(m["type"]),
		}
		promote, _ := m["rel_as_node"].(bool)
		delete(m, "id")
		delete(m, "source")
		delete(m, "target")
		delete(m, "type")
		delete(m, "rel_as_node")
		e.Properties = m
		if promote {
			return graph.NewRelAsNode(e), true
		}
		return e, true
	}
	return nil, false
}

// Err returns the error that terminated the stream, if any.
func (r *EdgeReader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.scanner.Err()
}

// JSONLEmitter writes entities back out in the same flattened format
// the readers accept. Safe for concurrent use.
type JSONLEmitter struct {
	w       io.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONLEmitter creates an emitter writing to w.
func NewJSONLEmitter(w io.Writer) *JSONLEmitter {
	return &JSONLEmitter{
		w:       w,
		encoder: json.NewEncoder(w),
	}
}

// EmitNode writes one node line: properties flattened into the root,
// then the identity fields so a property cannot shadow them.
func (e *JSONLEmitter) EmitNode(node *graph.Node) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]any, len(node.Properties)+2)
	for k, v := range node.Properties {
		out[k] = v
	}
	out["id"] = node.ID
	out["type"] = node.Label
	return e.encoder.Encode(out)
}

// EmitEdge writes one edge line.
func (e *JSONLEmitter) EmitEdge(edge *graph.Edge) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]any, len(edge.Properties)+4)
	for k, v := range edge.Properties {
		out[k] = v
	}
	if edge.ID != "" {
		out["id"] = edge.ID
	}
	out["source"] = edge.SourceID
	out["target"] = edge.TargetID
	out["type"] = edge.Label
	return e.encoder.Encode(out)
}

// Close closes the underlying writer if it implements io.Closer.
func (e *JSONLEmitter) Close() error {
	if c, ok := e.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
