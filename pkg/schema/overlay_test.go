package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/hierarchy"
	"github.com/ajitpratap0/tabular/pkg/tokenize"
)

func buildHierarchy(t *testing.T, input string) (*hierarchy.Result, memory.Allocator) {
	t.Helper()
	ctx := context.Background()
	mem := memory.NewGoAllocator()
	tree, err := tokenize.New().Tokenize(ctx, []byte(input))
	require.NoError(t, err)
	require.NoError(t, tokenize.NewOrienter().Orient(ctx, tree))
	ct, err := coltree.Reduce(tree, coltree.Options{NullLiterals: []string{"null"}})
	require.NoError(t, err)
	res, err := hierarchy.Build(ct, tree, mem, hierarchy.BuildOptions{})
	require.NoError(t, err)
	return res, mem
}

func TestOverlayFlat(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"a":1,"b":"x"}]`)

	Flat(map[string]Entry{"a": {Type: coltree.TypeFloat64}}).Apply(res.Root, mem)

	st := res.Root.ListChild()
	assert.Equal(t, coltree.TypeFloat64, st.Child("a").Type)
	assert.Equal(t, coltree.TypeString, st.Child("b").Type)
}

func TestOverlayFlatReachesNestedFields(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"o":{"a":1},"a":2}]`)

	Flat(map[string]Entry{"a": {Type: coltree.TypeFloat64}}).Apply(res.Root, mem)

	st := res.Root.ListChild()
	assert.Equal(t, coltree.TypeFloat64, st.Child("a").Type)
	assert.Equal(t, coltree.TypeFloat64, st.Child("o").Child("a").Type)
}

func TestOverlayPositional(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"a":1,"b":2,"c":3}]`)

	Positional(
		Entry{Type: coltree.TypeFloat64},
		Entry{Type: coltree.TypeString},
	).Apply(res.Root, mem)

	st := res.Root.ListChild()
	assert.Equal(t, coltree.TypeFloat64, st.Child("a").Type)
	assert.Equal(t, coltree.TypeString, st.Child("b").Type)
	// No third entry: the inferred type stays.
	assert.Equal(t, coltree.TypeInt64, st.Child("c").Type)
}

func TestOverlayNested(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"o":{"a":1,"b":2},"a":3}]`)

	Nested(map[string]Entry{
		"o": {Children: Nested(map[string]Entry{
			"a": {Type: coltree.TypeFloat64},
		})},
	}).Apply(res.Root, mem)

	st := res.Root.ListChild()
	o := st.Child("o")
	assert.Equal(t, coltree.TypeFloat64, o.Child("a").Type)
	assert.Equal(t, coltree.TypeInt64, o.Child("b").Type)
	// The nested shape does not leak across siblings.
	assert.Equal(t, coltree.TypeInt64, st.Child("a").Type)
}

func TestOverlayDecimalReallocates(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"p":"1.25"},{"p":"2.50"}]`)

	Flat(map[string]Entry{"p": {Type: coltree.TypeDecimal, Scale: 2}}).Apply(res.Root, mem)

	p := res.Root.ListChild().Child("p")
	assert.Equal(t, coltree.TypeDecimal, p.Type)
	assert.Equal(t, int32(2), p.Scale)
	assert.Len(t, p.Fixed, 32)
	assert.Nil(t, p.Lengths)
}

func TestOverlayIgnoresUnknownNames(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"a":1}]`)

	Flat(map[string]Entry{"missing": {Type: coltree.TypeFloat64}}).Apply(res.Root, mem)

	assert.Equal(t, coltree.TypeInt64, res.Root.ListChild().Child("a").Type)
}

func TestOverlayNeverRetypesNestedColumns(t *testing.T) {
	res, mem := buildHierarchy(t, `[{"o":{"a":1}}]`)

	Flat(map[string]Entry{"o": {Type: coltree.TypeString}}).Apply(res.Root, mem)

	assert.Equal(t, hierarchy.KindStruct, res.Root.ListChild().Child("o").Kind)
}

func TestParseType(t *testing.T) {
	cases := []struct {
		in    string
		want  coltree.DType
		scale int32
	}{
		{"int8", coltree.TypeInt8, 0},
		{"int64", coltree.TypeInt64, 0},
		{"uint64", coltree.TypeUint64, 0},
		{"float64", coltree.TypeFloat64, 0},
		{"bool", coltree.TypeBool, 0},
		{"string", coltree.TypeString, 0},
		{"decimal(4)", coltree.TypeDecimal, 4},
	}
	for _, tc := range cases {
		dt, scale, err := ParseType(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, dt)
		assert.Equal(t, tc.scale, scale)
	}

	for _, bad := range []string{"int32", "decimal", "decimal()", "decimal(x)", ""} {
		_, _, err := ParseType(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flat":{"a":"float64","p":"decimal(2)"}}`), 0o644))

	o, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, o)

	res, mem := buildHierarchy(t, `[{"a":1,"p":"1.00"}]`)
	o.Apply(res.Root, mem)
	st := res.Root.ListChild()
	assert.Equal(t, coltree.TypeFloat64, st.Child("a").Type)
	assert.Equal(t, coltree.TypeDecimal, st.Child("p").Type)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	doc := `nested:
  o:
    children:
      a:
        type: float64
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	o, err := LoadFile(path)
	require.NoError(t, err)

	res, mem := buildHierarchy(t, `[{"o":{"a":1}}]`)
	o.Apply(res.Root, mem)
	assert.Equal(t, coltree.TypeFloat64, res.Root.ListChild().Child("o").Child("a").Type)
}

func TestLoadFilePositionalYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yml")
	require.NoError(t, os.WriteFile(path, []byte("positional: [float64, string]\n"), 0o644))

	o, err := LoadFile(path)
	require.NoError(t, err)

	res, mem := buildHierarchy(t, `[{"a":1,"b":2}]`)
	o.Apply(res.Root, mem)
	st := res.Root.ListChild()
	assert.Equal(t, coltree.TypeFloat64, st.Child("a").Type)
	assert.Equal(t, coltree.TypeString, st.Child("b").Type)
}

func TestDocumentRejectsMultipleShapes(t *testing.T) {
	doc := &Document{
		Positional: []string{"int64"},
		Flat:       map[string]string{"a": "int64"},
	}
	_, err := doc.Overlay()
	assert.Error(t, err)
}
