package batch

// Registry is the append-only record of every header and part file
// produced during a run, kept in first-seen type order so the
// generated import call is deterministic.
type Registry struct {
	outDir string

	nodeTypes   []string
	edgeTypes   []string
	nodeHeaders map[string]string
	edgeHeaders map[string]string
	nodeParts   map[string][]string
	edgeParts   map[string][]string

	// collection overrides for backends that import into named
	// collections rather than labelled records.
	collections map[string]string
}

// NewRegistry creates an empty registry rooted at the output
// directory.
func NewRegistry(outDir string) *Registry {
	return &Registry{
		outDir:      outDir,
		nodeHeaders: make(map[string]string),
		edgeHeaders: make(map[string]string),
		nodeParts:   make(map[string][]string),
		edgeParts:   make(map[string][]string),
		collections: make(map[string]string),
	}
}

// OutDir returns the output directory the artifacts live in.
func (r *Registry) OutDir() string {
	return r.outDir
}

func (r *Registry) registerNodeType(typeName string) {
	if _, ok := r.nodeParts[typeName]; !ok {
		r.nodeTypes = append(r.nodeTypes, typeName)
		r.nodeParts[typeName] = nil
	}
}

func (r *Registry) registerEdgeType(typeName string) {
	if _, ok := r.edgeParts[typeName]; !ok {
		r.edgeTypes = append(r.edgeTypes, typeName)
		r.edgeParts[typeName] = nil
	}
}

// AddNodePart records a flushed node part file for a type.
func (r *Registry) AddNodePart(typeName, path string) {
	r.registerNodeType(typeName)
	r.nodeParts[typeName] = append(r.nodeParts[typeName], path)
}

// AddEdgePart records a flushed edge part file for a type.
func (r *Registry) AddEdgePart(typeName, path string) {
	r.registerEdgeType(typeName)
	r.edgeParts[typeName] = append(r.edgeParts[typeName], path)
}

// SetNodeHeader records the header artifact for a node type.
func (r *Registry) SetNodeHeader(typeName, path string) {
	r.registerNodeType(typeName)
	r.nodeHeaders[typeName] = path
}

// SetEdgeHeader records the header artifact for an edge type.
func (r *Registry) SetEdgeHeader(typeName, path string) {
	r.registerEdgeType(typeName)
	r.edgeHeaders[typeName] = path
}

// SetCollection records a backend collection name override for a type.
func (r *Registry) SetCollection(typeName, collection string) {
	r.collections[typeName] = collection
}

// Collection returns the collection a type imports into, defaulting to
// the type name itself.
func (r *Registry) Collection(typeName string) string {
	if c, ok := r.collections[typeName]; ok && c != "" {
		return c
	}
	return typeName
}

// NodeTypes returns node type names in first-seen order.
func (r *Registry) NodeTypes() []string {
	out := make([]string, len(r.nodeTypes))
	copy(out, r.nodeTypes)
	return out
}

// EdgeTypes returns edge type names in first-seen order.
func (r *Registry) EdgeTypes() []string {
	out := make([]string, len(r.edgeTypes))
	copy(out, r.edgeTypes)
	return out
}

// NodeHeader returns the header path recorded for a node type.
func (r *Registry) NodeHeader(typeName string) string {
	return r.nodeHeaders[typeName]
}

// EdgeHeader returns the header path recorded for an edge type.
func (r *Registry) EdgeHeader(typeName string) string {
	return r.edgeHeaders[typeName]
}

// NodeParts returns the part files recorded for a node type.
func (r *Registry) NodeParts(typeName string) []string {
	out := make([]string, len(r.nodeParts[typeName]))
	copy(out, r.nodeParts[typeName])
	return out
}

// EdgeParts returns the part files recorded for an edge type.
func (r *Registry) EdgeParts(typeName string) []string {
	out := make([]string, len(r.edgeParts[typeName]))
	copy(out, r.edgeParts[typeName])
	return out
}
