// Package ontology resolves type labels against a declared hierarchy:
// ancestor chains for label expansion, per-type property schemas, and
// canonical (PascalCase) naming.
package ontology

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Ontology is the lookup capability the batch engine depends on.
type Ontology interface {
	// Ancestors returns the ordered ancestor chain for a type label,
	// starting with the label itself. Unknown labels yield just the
	// label.
	Ancestors(label string) []string
	// Schema returns the declared schema for a type label, if any.
	Schema(label string) (*TypeSchema, bool)
}

// Property is one declared property column with its type tag.
type Property struct {
	Name string
	Type string
}

// TypeSchema is the declared shape of one type: its parent chain and
// the extended property schema used to build complete column
// definitions up front.
type TypeSchema struct {
	IsA              []string
	Properties       []Property
	PreferredID      string
	UseID            bool
	LabelAsEdge      string
	DBCollectionName string
}

// UnmarshalYAML decodes a type schema from its mapping node directly
// so the declaration order of properties survives (a plain map would
// lose it).
func (s *TypeSchema) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("type schema must be a mapping, got %v", value.Kind)
	}
	s.UseID = true
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		val := value.Content[i+1]
		switch key {
		case "is_a":
			if val.Kind == yaml.ScalarNode {
				s.IsA = []string{val.Value}
			} else if err := val.Decode(&s.IsA); err != nil {
				return fmt.Errorf("is_a: %w", err)
			}
		case "properties":
			if val.Kind != yaml.MappingNode {
				return fmt.Errorf("properties of %q must be a mapping", key)
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				s.Properties = append(s.Properties, Property{
					Name: val.Content[j].Value,
					Type: val.Content[j+1].Value,
				})
			}
		case "preferred_id":
			s.PreferredID = val.Value
		case "use_id":
			if err := val.Decode(&s.UseID); err != nil {
				return fmt.Errorf("use_id: %w", err)
			}
		case "label_as_edge":
			s.LabelAsEdge = val.Value
		case "db_collection_name":
			s.DBCollectionName = val.Value
		}
	}
	return nil
}

// Tree is a YAML-backed Ontology implementation.
type Tree struct {
	types map[string]*TypeSchema
	order []string
}

// Load reads a schema file from disk.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Tree from schema YAML. Top-level keys are type
// labels in sentence case; declaration order is preserved.
func Parse(data []byte) (*Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema yaml: %w", err)
	}
	t := &Tree{types: make(map[string]*TypeSchema)}
	if len(doc.Content) == 0 {
		return t, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema root must be a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		label := root.Content[i].Value
		schema := &TypeSchema{}
		if err := root.Content[i+1].Decode(schema); err != nil {
			return nil, fmt.Errorf("type %q: %w", label, err)
		}
		t.types[label] = schema
		t.order = append(t.order, label)
	}
	return t, nil
}

// Types returns the declared type labels in declaration order.
func (t *Tree) Types() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Schema returns the declared schema for a label.
func (t *Tree) Schema(label string) (*TypeSchema, bool) {
	s, ok := t.types[label]
	return s, ok
}

// Ancestors walks is_a chains upward from the label. The label itself
// comes first; a seen-set guards against cycles in a malformed file.
func (t *Tree) Ancestors(label string) []string {
	chain := []string{label}
	seen := map[string]bool{label: true}

	queue := []string{label}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		schema, ok := t.types[cur]
		if !ok {
			continue
		}
		for _, parent := range schema.IsA {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			chain = append(chain, parent)
			queue = append(queue, parent)
		}
	}
	return chain
}

// PascalCase normalizes a sentence-case type label to its canonical
// form, e.g. "small molecule" -> "SmallMolecule". Underscores, dots
// and dashes are treated as word breaks too.
func PascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '.' || r == '-'
	})
	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// Labels normalizes an ancestor chain for label expansion: each entry
// is PascalCased, duplicates removed, and the result alphabetically
// sorted. An empty chain falls back to the label itself.
func Labels(ancestors []string, label string) []string {
	if len(ancestors) == 0 {
		ancestors = []string{label}
	}
	seen := make(map[string]bool, len(ancestors))
	labels := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		p := PascalCase(a)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		labels = append(labels, p)
	}
	sort.Strings(labels)
	return labels
}

// JoinLabels renders the ancestor-label field as a single delimited
// string.
func JoinLabels(ancestors []string, label, delim string) string {
	return strings.Join(Labels(ancestors, label), delim)
}
