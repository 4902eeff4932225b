package hierarchy

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/node"
	"github.com/ajitpratap0/tabular/pkg/tokenize"
)

func buildJSON(t *testing.T, input string, opts BuildOptions) (*Result, *node.Tree, error) {
	t.Helper()
	ctx := context.Background()
	tree, err := tokenize.New().Tokenize(ctx, []byte(input))
	require.NoError(t, err)
	require.NoError(t, tokenize.NewOrienter().Orient(ctx, tree))
	ct, err := coltree.Reduce(tree, coltree.Options{NullLiterals: []string{"null"}})
	require.NoError(t, err)
	res, err := Build(ct, tree, memory.NewGoAllocator(), opts)
	return res, tree, err
}

func TestBuildScalarRecord(t *testing.T) {
	res, _, err := buildJSON(t, `[{"a":1,"b":"x"},{"a":2,"b":"y"}]`, BuildOptions{})
	require.NoError(t, err)

	root := res.Root
	assert.Equal(t, KindList, root.Kind)
	assert.Equal(t, 1, root.Rows)
	require.Len(t, root.ChildOffsets, 3)

	st := root.ListChild()
	require.NotNil(t, st)
	assert.Equal(t, KindStruct, st.Kind)
	assert.Equal(t, 2, st.Rows)
	assert.Equal(t, []string{"a", "b"}, st.Names)

	a := st.Child("a")
	require.NotNil(t, a)
	assert.Equal(t, KindString, a.Kind)
	assert.Equal(t, coltree.TypeInt64, a.Type)
	assert.Len(t, a.Fixed, 16)

	b := st.Child("b")
	require.NotNil(t, b)
	assert.Equal(t, coltree.TypeString, b.Type)
	assert.Len(t, b.Lengths, 3)
	assert.Nil(t, b.Fixed)
}

func TestBuildFieldNamesNeverMaterialize(t *testing.T) {
	res, tree, err := buildJSON(t, `[{"a":1}]`, BuildOptions{})
	require.NoError(t, err)

	for i, n := range tree.Nodes {
		if n.Category == node.CategoryFieldName {
			assert.Nil(t, res.ByColumn[n.Column], "field-name node %d has storage", i)
		}
	}
}

func TestBuildDropsErrorColumn(t *testing.T) {
	res, tree, err := buildJSON(t, `[{"a":[1],"k":1},{"a":{"b":2},"k":2}]`, BuildOptions{})
	require.NoError(t, err)

	st := res.Root.ListChild()
	require.NotNil(t, st)
	assert.Nil(t, st.Child("a"))
	require.NotNil(t, st.Child("k"))
	assert.Positive(t, res.Dropped)

	// Every node living under the dropped column is flagged so no pass
	// touches it.
	for i, n := range tree.Nodes {
		if res.Ignored[i] {
			continue
		}
		col := res.ByColumn[n.Column]
		if n.Category.IsLeaf() && col != nil {
			assert.NotNil(t, col.Validity, "leaf node %d writes to unallocated storage", i)
		}
	}
}

func TestBuildAbortsOnErrorColumn(t *testing.T) {
	_, _, err := buildJSON(t, `[{"a":[1]},{"a":{"b":2}}]`, BuildOptions{ErrorColumnAbort: true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedColumn))
}

func TestBuildNameCollision(t *testing.T) {
	mem := memory.NewGoAllocator()
	input := []byte("x")

	// Two distinct columns resolve to the same name under one struct: the
	// nested column wins and the leaf is discarded.
	ct := &coltree.Tree{Columns: []coltree.Column{
		{ID: 0, Category: node.CategoryStruct, Parent: node.NoColumn, MaxRows: 1},
		{ID: 1, Category: node.CategoryValue, Parent: 0, MaxRows: 1,
			Name: node.ByteRange{Begin: 0, End: 1}, HasName: true, Type: coltree.TypeInt64},
		{ID: 2, Category: node.CategoryStruct, Parent: 0, MaxRows: 1,
			Name: node.ByteRange{Begin: 0, End: 1}, HasName: true},
	}}
	tree := &node.Tree{
		Input: input,
		Nodes: []node.Node{
			{Category: node.CategoryStruct, Parent: node.NoParent, Column: 0},
			{Category: node.CategoryValue, Parent: 0, Column: 1},
			{Category: node.CategoryStruct, Parent: 0, Column: 2},
		},
	}

	res, err := Build(ct, tree, mem, BuildOptions{})
	require.NoError(t, err)

	x := res.Root.Child("x")
	require.NotNil(t, x)
	assert.Equal(t, KindStruct, x.Kind)
	assert.Nil(t, res.ByColumn[1])
	assert.True(t, res.Ignored[1])
	assert.False(t, res.Ignored[2])
}

func TestBuildCollisionLeafArrivesSecond(t *testing.T) {
	mem := memory.NewGoAllocator()
	ct := &coltree.Tree{Columns: []coltree.Column{
		{ID: 0, Category: node.CategoryStruct, Parent: node.NoColumn, MaxRows: 1},
		{ID: 1, Category: node.CategoryList, Parent: 0, MaxRows: 1,
			Name: node.ByteRange{Begin: 0, End: 1}, HasName: true},
		{ID: 2, Category: node.CategoryValue, Parent: 0, MaxRows: 1,
			Name: node.ByteRange{Begin: 0, End: 1}, HasName: true, Type: coltree.TypeInt64},
	}}
	tree := &node.Tree{
		Input: []byte("x"),
		Nodes: []node.Node{
			{Category: node.CategoryStruct, Parent: node.NoParent, Column: 0},
			{Category: node.CategoryList, Parent: 0, Column: 1},
			{Category: node.CategoryValue, Parent: 0, Column: 2},
		},
	}

	res, err := Build(ct, tree, mem, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindList, res.Root.Child("x").Kind)
	assert.Nil(t, res.ByColumn[2])
	assert.True(t, res.Ignored[2])
}

func TestBuildCollisionConflictingNesting(t *testing.T) {
	mem := memory.NewGoAllocator()
	ct := &coltree.Tree{Columns: []coltree.Column{
		{ID: 0, Category: node.CategoryStruct, Parent: node.NoColumn, MaxRows: 1},
		{ID: 1, Category: node.CategoryList, Parent: 0, MaxRows: 1,
			Name: node.ByteRange{Begin: 0, End: 1}, HasName: true},
		{ID: 2, Category: node.CategoryStruct, Parent: 0, MaxRows: 1,
			Name: node.ByteRange{Begin: 0, End: 1}, HasName: true},
	}}
	tree := &node.Tree{
		Input: []byte("x"),
		Nodes: []node.Node{
			{Category: node.CategoryStruct, Parent: node.NoParent, Column: 0},
			{Category: node.CategoryList, Parent: 0, Column: 1},
			{Category: node.CategoryStruct, Parent: 0, Column: 2},
		},
	}

	_, err := Build(ct, tree, mem, BuildOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructuralConflict))
}

func TestBitmap(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := NewBitmap(mem, 70)

	assert.Equal(t, 70, b.Len())
	assert.False(t, b.Get(0))

	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(69)
	assert.True(t, b.Get(0))
	assert.True(t, b.Get(63))
	assert.True(t, b.Get(64))
	assert.True(t, b.Get(69))
	assert.False(t, b.Get(1))
	assert.Equal(t, 4, b.CountSet())
}

func TestColumnRetype(t *testing.T) {
	mem := memory.NewGoAllocator()
	c := &Column{Kind: KindString, Rows: 4, Type: coltree.TypeString}
	c.allocate(mem)
	require.Len(t, c.Lengths, 5)

	c.Retype(mem, coltree.TypeFloat64, 0)
	assert.Nil(t, c.Lengths)
	assert.Len(t, c.Fixed, 32)

	c.Retype(mem, coltree.TypeDecimal, 2)
	assert.Len(t, c.Fixed, 64)
	assert.Equal(t, int32(2), c.Scale)

	c.Retype(mem, coltree.TypeBool, 0)
	assert.Nil(t, c.Fixed)
	require.NotNil(t, c.Bools)
	assert.Equal(t, 4, c.Bools.Len())
}
