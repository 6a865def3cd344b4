package graph

import "github.com/google/uuid"

// Auxiliary edge labels produced when a relationship is reified as a
// node. Backends never emit an edge id column for these.
const (
	LabelIsSourceOf = "IS_SOURCE_OF"
	LabelIsTargetOf = "IS_TARGET_OF"
	LabelIsPartOf   = "IS_PART_OF"
)

// Node is a labelled entity with an identifier and properties,
// destined to become one record in a bulk-loaded graph or table.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Edge is a directed, labelled relationship between two node
// identifiers. ID is optional; backends consult the type schema's
// use_id flag before emitting it.
type Edge struct {
	ID         string         `json:"id,omitempty"`
	SourceID   string         `json:"sourceId"`
	TargetID   string         `json:"targetId"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// RelAsNode is an edge promoted to a node plus the two auxiliary edges
// tying the node back to the original endpoints, for backends that
// cannot attach rich properties to relationships directly.
type RelAsNode struct {
	Node       *Node
	SourceEdge *Edge
	TargetEdge *Edge
}

// NewRelAsNode reifies an edge. The promoted node inherits the edge's
// label and properties; when the edge carries no identifier a UUID is
// synthesized so the node has one.
func NewRelAsNode(e *Edge) *RelAsNode {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	node := &Node{ID: id, Label: e.Label, Properties: e.Properties}
	return &RelAsNode{
		Node:       node,
		SourceEdge: &Edge{SourceID: e.SourceID, TargetID: id, Label: LabelIsSourceOf},
		TargetEdge: &Edge{SourceID: e.TargetID, TargetID: id, Label: LabelIsTargetOf},
	}
}

// Decompose returns the constituents for independent emission. The
// composite itself is discarded afterwards.
func (r *RelAsNode) Decompose() (*Node, []*Edge) {
	return r.Node, []*Edge{r.SourceEdge, r.TargetEdge}
}

// EdgeItem is an element of an edge stream: either a plain *Edge or a
// *RelAsNode composite awaiting decomposition.
type EdgeItem interface {
	edgeItem()
}

func (*Edge) edgeItem()      {}
func (*RelAsNode) edgeItem() {}
