package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `
named thing:
  properties:
    name: str

biological entity:
  is_a: named thing

polypeptide:
  is_a: biological entity

protein:
  is_a: polypeptide
  preferred_id: uniprot
  db_collection_name: proteins
  properties:
    sequence: str
    mass: double
    taxon: long

interacts with:
  is_a: association
  label_as_edge: INTERACTS_WITH
  use_id: false
  properties:
    score: double
`

func TestParse_PreservesPropertyOrder(t *testing.T) {
	tree, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	schema, ok := tree.Schema("protein")
	require.True(t, ok)

	names := make([]string, 0, len(schema.Properties))
	for _, p := range schema.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"sequence", "mass", "taxon"}, names)
	assert.Equal(t, "double", schema.Properties[1].Type)
	assert.Equal(t, "uniprot", schema.PreferredID)
	assert.Equal(t, "proteins", schema.DBCollectionName)
	assert.True(t, schema.UseID)
}

func TestParse_EdgeSchemaFlags(t *testing.T) {
	tree, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	schema, ok := tree.Schema("interacts with")
	require.True(t, ok)
	assert.False(t, schema.UseID)
	assert.Equal(t, "INTERACTS_WITH", schema.LabelAsEdge)
}

func TestAncestors(t *testing.T) {
	tree, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	chain := tree.Ancestors("protein")
	assert.Equal(t, []string{"protein", "polypeptide", "biological entity", "named thing"}, chain)
}

func TestAncestors_UnknownLabel(t *testing.T) {
	tree, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	assert.Equal(t, []string{"mystery"}, tree.Ancestors("mystery"))
}

func TestAncestors_CycleGuard(t *testing.T) {
	cyclic := `
a:
  is_a: b
b:
  is_a: a
`
	tree, err := Parse([]byte(cyclic))
	require.NoError(t, err)

	chain := tree.Ancestors("a")
	assert.Equal(t, []string{"a", "b"}, chain)
}

func TestTypes_DeclarationOrder(t *testing.T) {
	tree, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	types := tree.Types()
	require.Len(t, types, 5)
	assert.Equal(t, "named thing", types[0])
	assert.Equal(t, "interacts with", types[4])
}

func TestLabels(t *testing.T) {
	got := Labels([]string{"protein", "polypeptide", "biological entity", "polypeptide"}, "protein")
	assert.Equal(t, []string{"BiologicalEntity", "Polypeptide", "Protein"}, got,
		"labels are canonical, deduplicated and sorted")

	assert.Equal(t, []string{"Mystery"}, Labels(nil, "mystery"),
		"an empty chain falls back to the label itself")

	joined := JoinLabels([]string{"protein", "polypeptide"}, "protein", "|")
	assert.Equal(t, "Polypeptide|Protein", joined)
}

func TestPascalCase(t *testing.T) {
	cases := map[string]string{
		"protein":              "Protein",
		"small molecule":       "SmallMolecule",
		"gene_to_disease":      "GeneToDisease",
		"side.effect":          "SideEffect",
		"already-pascal Ready": "AlreadyPascalReady",
		"":                     "",
	}
	for in, want := range cases {
		if got := PascalCase(in); got != want {
			t.Errorf("PascalCase(%q) = %q, want %q", in, got, want)
		}
	}
}
