// Package dedup tracks entity identities already seen during an
// export run so duplicates are dropped before they reach a batch.
package dedup

import (
	"graphbulk/internal/graph"
)

// Deduplicator both checks and records an identity in one call: the
// first call for an identity returns false, every later call true.
type Deduplicator interface {
	SeenNode(n *graph.Node) bool
	SeenEdge(e *graph.Edge) bool
	SeenRelAsNode(r *graph.RelAsNode) bool
}

// SeenSet is the in-memory Deduplicator. It also counts duplicates per
// label for end-of-run reporting. Not safe for concurrent use; the
// export pipeline is single-writer.
type SeenSet struct {
	nodes    map[string]struct{}
	edges    map[string]struct{}
	rels     map[string]struct{}
	dupNodes map[string]int
	dupEdges map[string]int
}

// NewSeenSet creates an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{
		nodes:    make(map[string]struct{}),
		edges:    make(map[string]struct{}),
		rels:     make(map[string]struct{}),
		dupNodes: make(map[string]int),
		dupEdges: make(map[string]int),
	}
}

func (s *SeenSet) SeenNode(n *graph.Node) bool {
	key := n.Label + "\x00" + n.ID
	if _, ok := s.nodes[key]; ok {
		s.dupNodes[n.Label]++
		return true
	}
	s.nodes[key] = struct{}{}
	return false
}

func (s *SeenSet) SeenEdge(e *graph.Edge) bool {
	// An explicit edge id is authoritative; otherwise the triple
	// (source, label, target) identifies the edge.
	key := e.ID
	if key == "" {
		key = e.SourceID + "\x00" + e.Label + "\x00" + e.TargetID
	}
	if _, ok := s.edges[key]; ok {
		s.dupEdges[e.Label]++
		return true
	}
	s.edges[key] = struct{}{}
	return false
}

// SeenRelAsNode tracks composites in their own key space: the
// composite's constituents still pass through SeenNode/SeenEdge once
// it is decomposed, so recording it there as well would swallow them.
func (s *SeenSet) SeenRelAsNode(r *graph.RelAsNode) bool {
	key := r.Node.Label + "\x00" + r.Node.ID
	if _, ok := s.rels[key]; ok {
		s.dupEdges[r.Node.Label]++
		return true
	}
	s.rels[key] = struct{}{}
	return false
}

// DuplicateNodes returns per-label duplicate node counts.
func (s *SeenSet) DuplicateNodes() map[string]int {
	out := make(map[string]int, len(s.dupNodes))
	for k, v := range s.dupNodes {
		out[k] = v
	}
	return out
}

// DuplicateEdges returns per-label duplicate edge counts.
func (s *SeenSet) DuplicateEdges() map[string]int {
	out := make(map[string]int, len(s.dupEdges))
	for k, v := range s.dupEdges {
		out[k] = v
	}
	return out
}
