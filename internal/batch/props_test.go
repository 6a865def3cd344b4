package batch

import (
	"reflect"
	"testing"

	"graphbulk/internal/ontology"
)

func TestTypeTag(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{"hello", "str"},
		{nil, "str"},
		{true, "bool"},
		{42, "int"},
		{int64(42), "long"},
		{float32(1.5), "float"},
		{1.5, "double"},
		{[]string{"a"}, "str[]"},
		{[]int{1}, "int[]"},
		{[]float64{1.5}, "double[]"},
		{[]any{1.5, 2.5}, "double[]"},
		{[]any{}, "str[]"},
		{struct{}{}, "str"},
	}
	for _, c := range cases {
		if got := TypeTag(c.value); got != c.want {
			t.Errorf("TypeTag(%v) = %q, want %q", c.value, got, c.want)
		}
	}
}

func TestInferRef_SortedNames(t *testing.T) {
	ref := InferRef(map[string]any{
		"taxon": 9606,
		"score": 4.5,
		"name":  "p53",
	})
	want := []string{"name", "score", "taxon"}
	if !reflect.DeepEqual(ref.Names(), want) {
		t.Errorf("Expected sorted names %v, got %v", want, ref.Names())
	}
	if ref.Type("score") != "double" {
		t.Errorf("Expected double tag for score, got %q", ref.Type("score"))
	}
	if ref.Declared() {
		t.Error("Inferred ref must not report declared")
	}
}

func TestDiff(t *testing.T) {
	ref := InferRef(map[string]any{"score": 4.5, "taxon": 9606})

	missing, extra := ref.Diff(map[string]any{"score": 1.0, "taxon": 1})
	if len(missing) != 0 || len(extra) != 0 {
		t.Errorf("Identical key set must not diverge, got missing=%v extra=%v", missing, extra)
	}

	missing, extra = ref.Diff(map[string]any{"score": 1.0})
	if !reflect.DeepEqual(missing, []string{"taxon"}) {
		t.Errorf("Expected taxon missing, got %v", missing)
	}
	if len(extra) != 0 {
		t.Errorf("Expected no extra keys, got %v", extra)
	}

	missing, extra = ref.Diff(map[string]any{"score": 1.0, "taxon": 1, "rogue": "x"})
	if len(missing) != 0 {
		t.Errorf("Expected nothing missing, got %v", missing)
	}
	if !reflect.DeepEqual(extra, []string{"rogue"}) {
		t.Errorf("Expected rogue extra, got %v", extra)
	}
}

func TestDiff_AutoColumnsExempt(t *testing.T) {
	ref := newRef(true)
	ref.add("score", "double", false)
	ref.add("preferred_id", "str", true)

	missing, extra := ref.Diff(map[string]any{"score": 1.0})
	if len(missing) != 0 || len(extra) != 0 {
		t.Errorf("Auto columns must not count as missing, got missing=%v extra=%v", missing, extra)
	}

	// A supplied value for an auto column is fine too.
	missing, extra = ref.Diff(map[string]any{"score": 1.0, "preferred_id": "uniprot"})
	if len(missing) != 0 || len(extra) != 0 {
		t.Errorf("Supplied auto column must not count as extra, got missing=%v extra=%v", missing, extra)
	}
}

func TestSchemaRef_PreferredID(t *testing.T) {
	ref := SchemaRef(&ontology.TypeSchema{
		Properties:  []ontology.Property{{Name: "sequence", Type: "str"}},
		PreferredID: "uniprot",
	}, true, false)

	if !ref.Auto("preferred_id") {
		t.Error("preferred_id must be an auto column")
	}
	if got := ref.Value(map[string]any{}, "preferred_id"); got != "uniprot" {
		t.Errorf("Expected declared id namespace, got %v", got)
	}
	if got := ref.Value(map[string]any{"preferred_id": "refseq"}, "preferred_id"); got != "refseq" {
		t.Errorf("Entity-supplied value must win, got %v", got)
	}
	if got := ref.Value(map[string]any{}, "sequence"); got != nil {
		t.Errorf("Absent plain columns resolve to nil, got %v", got)
	}

	ref = SchemaRef(&ontology.TypeSchema{}, true, false)
	if got := ref.Value(map[string]any{}, "preferred_id"); got != "id" {
		t.Errorf("Undeclared id namespace defaults to id, got %v", got)
	}
}

func TestNumericTag(t *testing.T) {
	for _, tag := range []string{"int", "integer", "long", "float", "double", "dbl", "bool", "boolean", "int[]", "double[]"} {
		if !numericTag(tag) {
			t.Errorf("Expected %q to be numeric", tag)
		}
	}
	for _, tag := range []string{"str", "string", "str[]", ""} {
		if numericTag(tag) {
			t.Errorf("Expected %q to be non-numeric", tag)
		}
	}
}
