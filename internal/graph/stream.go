package graph

// NodeSource is a single-pass cursor over nodes. Both a materialized
// slice and an unbounded producer implement it, so consumers only ever
// see one shape of input. Sources are not restartable.
type NodeSource interface {
	// Next returns the next node, or ok=false once the source is
	// exhausted.
	Next() (node *Node, ok bool)
}

// EdgeSource is a single-pass cursor over edges and rel-as-node
// composites.
type EdgeSource interface {
	Next() (item EdgeItem, ok bool)
}

type nodeSlice struct {
	nodes []*Node
	pos   int
}

// Nodes wraps a materialized slice as a NodeSource.
func Nodes(nodes ...*Node) NodeSource {
	return &nodeSlice{nodes: nodes}
}

func (s *nodeSlice) Next() (*Node, bool) {
	if s.pos >= len(s.nodes) {
		return nil, false
	}
	n := s.nodes[s.pos]
	s.pos++
	return n, true
}

type edgeSlice struct {
	items []EdgeItem
	pos   int
}

// Edges wraps a materialized slice as an EdgeSource.
func Edges(items ...EdgeItem) EdgeSource {
	return &edgeSlice{items: items}
}

func (s *edgeSlice) Next() (EdgeItem, bool) {
	if s.pos >= len(s.items) {
		return nil, false
	}
	it := s.items[s.pos]
	s.pos++
	return it, true
}

type nodeChan struct {
	ch <-chan *Node
}

// NodeChannel adapts an unbounded producer channel to a NodeSource.
// The source is exhausted when the channel is closed.
func NodeChannel(ch <-chan *Node) NodeSource {
	return &nodeChan{ch: ch}
}

func (s *nodeChan) Next() (*Node, bool) {
	n, ok := <-s.ch
	return n, ok
}

type edgeChan struct {
	ch <-chan EdgeItem
}

// EdgeChannel adapts an unbounded producer channel to an EdgeSource.
func EdgeChannel(ch <-chan EdgeItem) EdgeSource {
	return &edgeChan{ch: ch}
}

func (s *edgeChan) Next() (EdgeItem, bool) {
	it, ok := <-s.ch
	return it, ok
}
