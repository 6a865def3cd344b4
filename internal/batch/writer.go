package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"graphbulk/internal/config"
	"graphbulk/internal/dedup"
	"graphbulk/internal/graph"
	"graphbulk/internal/ontology"
)

// Sentinel errors for the expected failure classes. Callers decide
// whether to retry a failed write call; the engine never retries.
var (
	ErrNilSource        = errors.New("nil entity source")
	ErrSchemaDivergence = errors.New("property schema divergence")
	ErrNoSchema         = errors.New("no schema recorded yet")
	ErrNodesNotWritten  = errors.New("nodes must be written before edges")
	ErrReservedColumn   = errors.New("reserved column name in schema")
	ErrTypeCollision    = errors.New("node and edge types share one canonical name")
)

type writerState int

const (
	stateCreated writerState = iota
	stateNodesWritten
	stateEdgesWritten
	stateImportReady
)

// Writer drains entity streams into per-type batched part files,
// tracking a reference property schema per type, and finally emits
// header artifacts and the bulk-load script. One Writer owns its
// output directory; concurrent exports into the same directory are
// not supported.
type Writer struct {
	cfg  config.Config
	fmtr Formatter
	ont  ontology.Ontology
	dd   dedup.Deduplicator
	log  *zap.Logger

	state writerState
	reg   *Registry

	nodeOrder   []string
	nodeRefs    map[string]*PropertyRef
	nodeLabels  map[string]string
	nodeNames   map[string]string
	nodeTypeSet map[string]bool

	edgeOrder   []string
	edgeRefs    map[string]*PropertyRef
	edgeUseID   map[string]bool
	edgeRelType map[string]string
	edgeTypeSet map[string]bool

	partIndex    map[string]int
	nodesDropped int
	edgesDropped int
}

// NewWriter creates a Writer for the configured backend, preparing
// (and, with Wipe set, clearing) the output directory.
func NewWriter(cfg config.Config, fmtr Formatter, ont ontology.Ontology, dd dedup.Deduplicator, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	w := &Writer{
		cfg:         cfg,
		fmtr:        fmtr,
		ont:         ont,
		dd:          dd,
		log:         logger.Named("batch"),
		reg:         NewRegistry(cfg.OutputDir),
		nodeRefs:    make(map[string]*PropertyRef),
		nodeLabels:  make(map[string]string),
		nodeNames:   make(map[string]string),
		nodeTypeSet: make(map[string]bool),
		edgeRefs:    make(map[string]*PropertyRef),
		edgeUseID:   make(map[string]bool),
		edgeRelType: make(map[string]string),
		edgeTypeSet: make(map[string]bool),
		partIndex:   make(map[string]int),
	}
	if cfg.Wipe {
		if err := w.wipeOutputDir(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Registry exposes the accumulated header/part record.
func (w *Writer) Registry() *Registry {
	return w.reg
}

// DroppedNodes returns how many nodes were discarded for missing ids.
func (w *Writer) DroppedNodes() int { return w.nodesDropped }

// DroppedEdges returns how many edges were discarded for missing
// endpoints.
func (w *Writer) DroppedEdges() int { return w.edgesDropped }

func (w *Writer) wipeOutputDir() error {
	patterns := []string{"*-part*", "*-header.*", "*-import-call.sh"}
	removed := 0
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(w.cfg.OutputDir, p))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return fmt.Errorf("failed to wipe %s: %w", m, err)
			}
			removed++
		}
	}
	if removed > 0 {
		w.log.Info("wiped previous export artifacts", zap.Int("files", removed))
	}
	return nil
}

// WriteNodes drains a node stream: deduplicates, bins by type label,
// flushes full bins, and flushes the remainder on exhaustion. The call
// either writes all its batches or fails before emitting the batch
// that diverged; earlier flushed parts remain on disk.
func (w *Writer) WriteNodes(src graph.NodeSource) error {
	if src == nil {
		return ErrNilSource
	}
	bins := make(map[string][]*graph.Node)
	var order []string
	for {
		n, ok := src.Next()
		if !ok {
			break
		}
		if err := w.addNode(n, bins, &order); err != nil {
			return err
		}
	}
	for _, label := range order {
		if len(bins[label]) > 0 {
			if err := w.flushNodes(label, bins[label]); err != nil {
				return err
			}
		}
	}
	if w.state == stateCreated {
		w.state = stateNodesWritten
	}
	return nil
}

func (w *Writer) addNode(n *graph.Node, bins map[string][]*graph.Node, order *[]string) error {
	if n == nil {
		return nil
	}
	if n.ID == "" {
		w.nodesDropped++
		w.log.Warn("dropping node without id", zap.String("label", n.Label))
		return nil
	}
	if w.unsafeID(n.ID) {
		w.nodesDropped++
		w.log.Warn("dropping node with formatting characters in id",
			zap.String("label", n.Label), zap.String("id", n.ID))
		return nil
	}
	if w.dd.SeenNode(n) {
		return nil
	}
	label := n.Label
	if _, ok := w.nodeRefs[label]; !ok {
		if err := w.registerNodeType(label, n); err != nil {
			return err
		}
	}
	if _, ok := bins[label]; !ok {
		*order = append(*order, label)
	}
	bins[label] = append(bins[label], n)
	if len(bins[label]) >= w.cfg.BatchSize {
		if err := w.flushNodes(label, bins[label]); err != nil {
			return err
		}
		bins[label] = bins[label][:0]
	}
	return nil
}

// registerNodeType fixes the reference schema and label field for a
// type on first sighting. The schema never advances afterwards;
// divergence in later batches is a validation failure, not an update.
func (w *Writer) registerNodeType(label string, first *graph.Node) error {
	ref := w.declaredRef(label, true)
	if ref == nil {
		ref = InferRef(first.Properties)
	}
	if err := checkReserved(ref); err != nil {
		w.log.Error("invalid schema configuration", zap.String("label", label), zap.Error(err))
		return fmt.Errorf("node type %q: %w", label, err)
	}
	typeName := ontology.PascalCase(label)
	// Part files and import directives are named by canonical type, so
	// a node type and an edge type resolving to one name would
	// interleave their parts and cross-match in the import call.
	if w.edgeTypeSet[typeName] {
		return fmt.Errorf("node type %q: canonical name %q already used by an edge type: %w",
			label, typeName, ErrTypeCollision)
	}
	w.nodeOrder = append(w.nodeOrder, label)
	w.nodeRefs[label] = ref
	w.nodeNames[label] = typeName
	w.nodeTypeSet[typeName] = true
	w.nodeLabels[label] = w.labelField(label)
	if schema, ok := w.ont.Schema(label); ok && schema.DBCollectionName != "" {
		w.reg.SetCollection(typeName, schema.DBCollectionName)
	}
	return nil
}

// declaredRef builds the reference schema from the ontology if the
// type declares properties; otherwise nil, and the schema is inferred
// from the first instance instead.
func (w *Writer) declaredRef(label string, node bool) *PropertyRef {
	schema, ok := w.ont.Schema(label)
	if !ok || len(schema.Properties) == 0 {
		return nil
	}
	return SchemaRef(schema, node, w.cfg.Strict)
}

// labelField resolves the ancestor chain once per type: deduplicated,
// alphabetically sorted, joined with the array delimiter. Force mode
// uses the bare type name only.
func (w *Writer) labelField(label string) string {
	if w.cfg.Force {
		return ontology.PascalCase(label)
	}
	return ontology.JoinLabels(w.ont.Ancestors(label), label, w.cfg.ArrayDelimiter)
}

func (w *Writer) flushNodes(label string, nodes []*graph.Node) error {
	ref := w.nodeRefs[label]
	// Validate the entire batch before touching the file: a part
	// either writes completely or not at all.
	for _, n := range nodes {
		if err := w.validate(ref, n.Properties, label, "node "+n.ID); err != nil {
			return err
		}
	}
	typeName := w.nodeNames[label]
	labels := w.nodeLabels[label]
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(w.fmtr.RenderNodeRow(n, ref, labels))
		b.WriteByte('\n')
	}
	path, err := w.nextPartFile(typeName)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write part file %s: %w", path, err)
	}
	w.reg.AddNodePart(typeName, path)
	w.log.Debug("flushed node batch",
		zap.String("type", typeName), zap.Int("rows", len(nodes)), zap.String("file", path))
	return nil
}

// WriteEdges drains an edge stream. Rel-as-node composites are
// decomposed inline: the promoted node joins the node path, the two
// auxiliary edges join the edge path, before any batching.
func (w *Writer) WriteEdges(src graph.EdgeSource) error {
	if src == nil {
		return ErrNilSource
	}
	if w.fmtr.RequiresNodesFirst() && w.state == stateCreated {
		w.log.Error("edges submitted before any nodes", zap.String("dbms", w.fmtr.Name()))
		return ErrNodesNotWritten
	}
	edgeBins := make(map[string][]*graph.Edge)
	nodeBins := make(map[string][]*graph.Node)
	var edgeOrder, nodeOrder []string
	for {
		item, ok := src.Next()
		if !ok {
			break
		}
		switch it := item.(type) {
		case *graph.Edge:
			if it == nil || w.dd.SeenEdge(it) {
				continue
			}
			if err := w.addEdge(it, edgeBins, &edgeOrder); err != nil {
				return err
			}
		case *graph.RelAsNode:
			if it == nil || it.Node == nil || w.dd.SeenRelAsNode(it) {
				continue
			}
			node, auxEdges := it.Decompose()
			if err := w.addNode(node, nodeBins, &nodeOrder); err != nil {
				return err
			}
			for _, aux := range auxEdges {
				if err := w.addEdge(aux, edgeBins, &edgeOrder); err != nil {
					return err
				}
			}
		}
	}
	for _, label := range nodeOrder {
		if len(nodeBins[label]) > 0 {
			if err := w.flushNodes(label, nodeBins[label]); err != nil {
				return err
			}
		}
	}
	for _, label := range edgeOrder {
		if len(edgeBins[label]) > 0 {
			if err := w.flushEdges(label, edgeBins[label]); err != nil {
				return err
			}
		}
	}
	w.state = stateEdgesWritten
	return nil
}

func (w *Writer) addEdge(e *graph.Edge, bins map[string][]*graph.Edge, order *[]string) error {
	if e.SourceID == "" || e.TargetID == "" {
		w.edgesDropped++
		w.log.Warn("dropping edge without endpoints",
			zap.String("label", e.Label),
			zap.String("source", e.SourceID), zap.String("target", e.TargetID))
		return nil
	}
	if w.unsafeID(e.SourceID) || w.unsafeID(e.TargetID) || w.unsafeID(e.ID) {
		w.edgesDropped++
		w.log.Warn("dropping edge with formatting characters in an identifier",
			zap.String("label", e.Label),
			zap.String("source", e.SourceID), zap.String("target", e.TargetID))
		return nil
	}
	label := e.Label
	if _, ok := w.edgeRefs[label]; !ok {
		if err := w.registerEdgeType(label, e); err != nil {
			return err
		}
	}
	if _, ok := bins[label]; !ok {
		*order = append(*order, label)
	}
	bins[label] = append(bins[label], e)
	if len(bins[label]) >= w.cfg.BatchSize {
		if err := w.flushEdges(label, bins[label]); err != nil {
			return err
		}
		bins[label] = bins[label][:0]
	}
	return nil
}

func (w *Writer) registerEdgeType(label string, first *graph.Edge) error {
	ref := w.declaredRef(label, false)
	if ref == nil {
		ref = InferRef(first.Properties)
	}
	if err := checkReserved(ref); err != nil {
		w.log.Error("invalid schema configuration", zap.String("label", label), zap.Error(err))
		return fmt.Errorf("edge type %q: %w", label, err)
	}
	useID := true
	relType := ontology.PascalCase(label)
	if isAuxLabel(label) {
		// Auxiliary rel-as-node edges keep their fixed names and
		// never carry an id column.
		useID = false
		relType = label
	} else if schema, ok := w.ont.Schema(label); ok {
		useID = schema.UseID
		if schema.LabelAsEdge != "" {
			relType = schema.LabelAsEdge
		}
		if schema.DBCollectionName != "" {
			w.reg.SetCollection(relType, schema.DBCollectionName)
		}
	}
	if w.nodeTypeSet[relType] {
		return fmt.Errorf("edge type %q: canonical name %q already used by a node type: %w",
			label, relType, ErrTypeCollision)
	}
	w.edgeOrder = append(w.edgeOrder, label)
	w.edgeRefs[label] = ref
	w.edgeUseID[label] = useID
	w.edgeRelType[label] = relType
	w.edgeTypeSet[relType] = true
	return nil
}

func (w *Writer) flushEdges(label string, edges []*graph.Edge) error {
	ref := w.edgeRefs[label]
	for _, e := range edges {
		who := fmt.Sprintf("edge %s->%s", e.SourceID, e.TargetID)
		if err := w.validate(ref, e.Properties, label, who); err != nil {
			return err
		}
	}
	relType := w.edgeRelType[label]
	useID := w.edgeUseID[label]
	var b strings.Builder
	for _, e := range edges {
		b.WriteString(w.fmtr.RenderEdgeRow(e, ref, relType, useID))
		b.WriteByte('\n')
	}
	path, err := w.nextPartFile(relType)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write part file %s: %w", path, err)
	}
	w.reg.AddEdgePart(relType, path)
	w.log.Debug("flushed edge batch",
		zap.String("type", relType), zap.Int("rows", len(edges)), zap.String("file", path))
	return nil
}

// validate compares an entity's property key set against the
// reference. Key sets must match exactly in both directions; only the
// engine-filled auto columns are exempt. Downstream bulk loaders need
// strictly rectangular tables, so a mismatch fails the whole call.
func (w *Writer) validate(ref *PropertyRef, props map[string]any, label, who string) error {
	missing, extra := ref.Diff(props)
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	w.log.Error("property schema divergence",
		zap.String("label", label),
		zap.String("entity", who),
		zap.Strings("missing_from_entity", missing),
		zap.Strings("unknown_to_schema", extra))
	return fmt.Errorf("%s of type %q: %w", who, label, ErrSchemaDivergence)
}

func (w *Writer) nextPartFile(typeName string) (string, error) {
	idx, ok := w.partIndex[typeName]
	if !ok {
		scanned, err := w.scanPartIndex(typeName)
		if err != nil {
			return "", err
		}
		idx = scanned
	}
	w.partIndex[typeName] = idx + 1
	name := fmt.Sprintf("%s-part%03d%s", typeName, idx, w.fmtr.PartFileExt())
	return filepath.Join(w.cfg.OutputDir, name), nil
}

// scanPartIndex resumes numbering after part files left by earlier
// calls. Two exports sharing one directory race on this scan; the
// output directory is single-writer by contract.
func (w *Writer) scanPartIndex(typeName string) (int, error) {
	pattern := filepath.Join(w.cfg.OutputDir, typeName+"-part*"+w.fmtr.PartFileExt())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), w.fmtr.PartFileExt())
		if n, err := strconv.Atoi(strings.TrimPrefix(base, typeName+"-part")); err == nil && n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

// WriteNodeHeaders emits one header artifact per node type seen so
// far. Existing header files are overwritten with a warning, so
// repeated calls with an unchanged schema are idempotent.
func (w *Writer) WriteNodeHeaders() error {
	if len(w.nodeRefs) == 0 {
		w.log.Error("node header write requested before any node data")
		return fmt.Errorf("node headers: %w", ErrNoSchema)
	}
	for _, label := range w.nodeOrder {
		typeName := w.nodeNames[label]
		content := w.fmtr.RenderNodeHeader(typeName, w.nodeRefs[label])
		path, err := w.writeHeader(typeName, content)
		if err != nil {
			return err
		}
		w.reg.SetNodeHeader(typeName, path)
	}
	return nil
}

// WriteEdgeHeaders emits one header artifact per edge type seen so
// far.
func (w *Writer) WriteEdgeHeaders() error {
	if len(w.edgeRefs) == 0 {
		w.log.Error("edge header write requested before any edge data")
		return fmt.Errorf("edge headers: %w", ErrNoSchema)
	}
	for _, label := range w.edgeOrder {
		relType := w.edgeRelType[label]
		content := w.fmtr.RenderEdgeHeader(relType, w.edgeRefs[label], w.edgeUseID[label])
		path, err := w.writeHeader(relType, content)
		if err != nil {
			return err
		}
		w.reg.SetEdgeHeader(relType, path)
	}
	return nil
}

func (w *Writer) writeHeader(typeName, content string) (string, error) {
	path := filepath.Join(w.cfg.OutputDir, w.fmtr.HeaderFileName(typeName))
	if _, err := os.Stat(path); err == nil {
		w.log.Warn("overwriting existing header file", zap.String("path", path))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write header file %s: %w", path, err)
	}
	return path, nil
}

// ImportCall returns the bulk-load script content. It is a pure
// function of the accumulated registry, so calling it repeatedly
// without new writes reproduces the same script.
func (w *Writer) ImportCall() string {
	return w.fmtr.ImportCall(w.reg)
}

// WriteImportCall writes the bulk-load script to the output directory
// and returns its path.
func (w *Writer) WriteImportCall() (string, error) {
	path := filepath.Join(w.cfg.OutputDir, w.fmtr.ImportScriptName())
	if err := os.WriteFile(path, []byte(w.ImportCall()), 0o755); err != nil {
		return "", fmt.Errorf("failed to write import call script: %w", err)
	}
	w.state = stateImportReady
	return path, nil
}

// unsafeID reports whether an identifier would corrupt a delimited
// row. Identifier columns are emitted unquoted, so delimiter or quote
// characters in an id cannot be escaped.
func (w *Writer) unsafeID(id string) bool {
	return strings.Contains(id, w.cfg.Delimiter) || strings.Contains(id, w.cfg.Quote)
}

func isAuxLabel(label string) bool {
	switch label {
	case graph.LabelIsSourceOf, graph.LabelIsTargetOf, graph.LabelIsPartOf:
		return true
	}
	return false
}

var reservedColumns = map[string]bool{
	"id":        true,
	"labels":    true,
	":ID":       true,
	":LABEL":    true,
	":TYPE":     true,
	":START_ID": true,
	":END_ID":   true,
	"_key":      true,
	"_from":     true,
	"_to":       true,
}

// checkReserved rejects schemas whose property names collide with the
// engine's own columns. This is a configuration error, not a data
// error, so it fails the whole registration.
func checkReserved(ref *PropertyRef) error {
	for _, name := range ref.Names() {
		if reservedColumns[name] {
			return fmt.Errorf("column %q: %w", name, ErrReservedColumn)
		}
	}
	return nil
}
