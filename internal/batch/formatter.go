// Package batch is the offline export engine: it partitions typed
// entity streams into per-type batches, validates them against a
// reference property schema, and serializes them into part files,
// headers, and a bulk-load script in a backend-specific syntax.
package batch

import (
	"fmt"
	"reflect"
	"strings"

	"graphbulk/internal/config"
	"graphbulk/internal/graph"
)

// Formatter renders homogeneous batches in one backend's syntax and
// assembles its bulk-load call. Backends are selected by the dbms
// config value, not by subclassing.
type Formatter interface {
	// Name returns the dbms selector this formatter serves.
	Name() string
	// PartFileExt is the extension of data part files.
	PartFileExt() string
	// HeaderFileName names the header artifact for a type.
	HeaderFileName(typeName string) string
	// RenderArray renders a multi-valued property in backend syntax.
	RenderArray(vals []any) string
	// RenderNodeRow renders one node under the reference schema.
	// labels is the pre-joined ancestor label field.
	RenderNodeRow(n *graph.Node, ref *PropertyRef, labels string) string
	// RenderEdgeRow renders one edge. relType is the canonical
	// relationship type; useID=false suppresses the id column.
	RenderEdgeRow(e *graph.Edge, ref *PropertyRef, relType string, useID bool) string
	// RenderNodeHeader and RenderEdgeHeader return the complete
	// header artifact content for a type.
	RenderNodeHeader(typeName string, ref *PropertyRef) string
	RenderEdgeHeader(typeName string, ref *PropertyRef, useID bool) string
	// RequiresNodesFirst reports whether the backend's import needs
	// node directives before edge directives.
	RequiresNodesFirst() bool
	// ImportCall assembles the bulk-load script from the registry.
	// It is a pure function of the registry, so repeated calls
	// without new writes reproduce the same script.
	ImportCall(reg *Registry) string
	// ImportScriptName names the emitted script file.
	ImportScriptName() string
}

// New selects the formatter for the configured dbms.
func New(cfg config.Config) (Formatter, error) {
	switch cfg.DBMS {
	case config.DBMSNeo4j:
		return newNeo4jFormatter(cfg), nil
	case config.DBMSArango:
		return newArangoFormatter(cfg), nil
	case config.DBMSPostgres:
		return newPostgresFormatter(cfg), nil
	case config.DBMSRDF:
		return newRDFFormatter(cfg), nil
	default:
		return nil, fmt.Errorf("no formatter for dbms %q", cfg.DBMS)
	}
}

// delimited holds the rendering helpers shared by the delimited-text
// backends. Formatting characters come from the immutable config.
type delimited struct {
	cfg config.Config
}

// renderValue renders a single field. Nil (absent) values become the
// empty placeholder; numeric and boolean tags are unquoted, everything
// else is quoted with the configured quote character.
func (d delimited) renderValue(v any, tag string) string {
	if v == nil {
		return ""
	}
	if vals, ok := asSlice(v); ok {
		return d.renderArray(vals, tag)
	}
	s := fmt.Sprint(v)
	if numericTag(tag) {
		return s
	}
	return d.quoteField(s)
}

func (d delimited) renderArray(vals []any, tag string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	joined := strings.Join(parts, d.cfg.ArrayDelimiter)
	if numericTag(tag) {
		return joined
	}
	return d.quoteField(joined)
}

func (d delimited) quoteField(s string) string {
	escaped := strings.ReplaceAll(s, d.cfg.Quote, `\`+d.cfg.Quote)
	return d.cfg.Quote + escaped + d.cfg.Quote
}

// asSlice normalizes any slice-typed property value to []any.
func asSlice(v any) ([]any, bool) {
	if vals, ok := v.([]any); ok {
		return vals, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
