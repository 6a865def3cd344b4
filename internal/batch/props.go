package batch

import (
	"sort"
	"strings"

	"graphbulk/internal/ontology"
)

// PropertyRef is the authoritative property schema for one type label
// within an export run: ordered column names plus a type tag per name.
// It validates and renders every entity of that type.
type PropertyRef struct {
	names []string
	types map[string]string
	// declared schemas come from the ontology in declaration order;
	// inferred schemas take the first instance's key set.
	declared bool
	// auto columns are filled by the engine (preferred_id, source,
	// version, licence) and exempt from divergence checks.
	auto map[string]bool
	// engine-supplied cell values for auto columns an entity does not
	// provide itself.
	autoVals map[string]string
}

func newRef(declared bool) *PropertyRef {
	return &PropertyRef{
		types:    make(map[string]string),
		declared: declared,
		auto:     make(map[string]bool),
		autoVals: make(map[string]string),
	}
}

func (r *PropertyRef) add(name, tag string, auto bool) {
	if _, ok := r.types[name]; ok {
		return
	}
	r.names = append(r.names, name)
	r.types[name] = tag
	if auto {
		r.auto[name] = true
	}
}

// Names returns the column names in schema order.
func (r *PropertyRef) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Type returns the type tag recorded for a column.
func (r *PropertyRef) Type(name string) string {
	return r.types[name]
}

// Has reports whether the reference knows a column.
func (r *PropertyRef) Has(name string) bool {
	_, ok := r.types[name]
	return ok
}

// Auto reports whether a column is filled by the engine rather than
// supplied by entities.
func (r *PropertyRef) Auto(name string) bool {
	return r.auto[name]
}

// Value resolves a column's cell for an entity: the entity's own value
// when present, otherwise the engine-supplied default for auto columns,
// otherwise nil.
func (r *PropertyRef) Value(props map[string]any, name string) any {
	if v, ok := props[name]; ok {
		return v
	}
	if v, ok := r.autoVals[name]; ok {
		return v
	}
	return nil
}

// Declared reports whether the schema was declared by the ontology
// rather than inferred from the first instance.
func (r *PropertyRef) Declared() bool {
	return r.declared
}

// Len returns the number of columns.
func (r *PropertyRef) Len() int {
	return len(r.names)
}

// Diff compares an entity's property key set against the reference.
// missing holds reference keys absent from props (engine-filled auto
// columns excluded), extra holds property keys the reference does not
// know. Value types are deliberately not compared: a later row whose
// value disagrees with the recorded tag renders under that tag.
func (r *PropertyRef) Diff(props map[string]any) (missing, extra []string) {
	for _, name := range r.names {
		if r.auto[name] {
			continue
		}
		if _, ok := props[name]; !ok {
			missing = append(missing, name)
		}
	}
	for k := range props {
		if !r.Has(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

// SchemaRef builds a reference schema from an ontology declaration, in
// declaration order. Node schemas gain the engine-filled preferred_id
// column, carrying the declared id namespace ("id" when the schema
// names none); strict mode adds the provenance columns.
func SchemaRef(schema *ontology.TypeSchema, node, strict bool) *PropertyRef {
	ref := newRef(true)
	for _, p := range schema.Properties {
		ref.add(p.Name, p.Type, false)
	}
	if node {
		ref.add("preferred_id", "str", true)
		pid := schema.PreferredID
		if pid == "" {
			pid = "id"
		}
		ref.autoVals["preferred_id"] = pid
	}
	if strict {
		ref.add("source", "str", true)
		ref.add("version", "str", true)
		ref.add("licence", "str", true)
	}
	return ref
}

// InferRef builds a reference schema from the first instance of a
// type: its property names (sorted, so headers are deterministic) and
// each value's runtime type tag.
func InferRef(props map[string]any) *PropertyRef {
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)

	ref := newRef(false)
	for _, name := range names {
		ref.add(name, TypeTag(props[name]), false)
	}
	return ref
}

// TypeTag names a value's runtime type for schema records.
func TypeTag(v any) string {
	switch t := v.(type) {
	case nil:
		return "str"
	case string:
		return "str"
	case bool:
		return "bool"
	case int, int32, uint, uint32:
		return "int"
	case int64, uint64:
		return "long"
	case float32:
		return "float"
	case float64:
		return "double"
	case []string:
		return "str[]"
	case []bool:
		return "bool[]"
	case []int, []int32:
		return "int[]"
	case []int64:
		return "long[]"
	case []float32:
		return "float[]"
	case []float64:
		return "double[]"
	case []any:
		if len(t) == 0 {
			return "str[]"
		}
		return TypeTag(t[0]) + "[]"
	default:
		return "str"
	}
}

// numericTag reports whether values under a type tag are emitted
// unquoted.
func numericTag(tag string) bool {
	switch strings.ToLower(strings.TrimSuffix(tag, "[]")) {
	case "int", "integer", "long", "float", "double", "dbl", "bool", "boolean":
		return true
	}
	return false
}

// arrayTag reports whether a type tag denotes a multi-valued column.
func arrayTag(tag string) bool {
	return strings.HasSuffix(tag, "[]")
}
