package coltree

import (
	"sort"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/node"
)

// Options controls the reduction.
type Options struct {
	// NullLiterals is the set of unquoted tokens classified as null during
	// type inference.
	NullLiterals []string
}

// Reduce groups nodes by column identity into a column tree, merges member
// categories, infers leaf types and propagates list-owned row cardinality to
// descendants. The node tree is not modified.
func Reduce(tree *node.Tree, opts Options) (*Tree, error) {
	numCols := tree.NumColumns()
	if numCols == 0 {
		return &Tree{}, nil
	}

	// Stable sort of node indices by column id. Group order within a column
	// preserves document order, which makes the representative node (first
	// of each group) deterministic.
	order := make([]int32, len(tree.Nodes))
	for i := range order {
		order[i] = int32(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return tree.Nodes[order[i]].Column < tree.Nodes[order[j]].Column
	})

	cols := make([]Column, numCols)
	for i := range cols {
		cols[i] = Column{ID: int32(i), Parent: node.NoColumn, MaxRows: 0}
	}

	// Group reductions: max row offset and merged category, plus the
	// representative node per group.
	rep := make([]int32, numCols)
	seen := make([]bool, numCols)
	for _, ni := range order {
		n := tree.Nodes[ni]
		c := &cols[n.Column]
		if !seen[n.Column] {
			seen[n.Column] = true
			rep[n.Column] = ni
			c.Category = n.Category
			c.MaxRows = n.Row + 1
			continue
		}
		c.Category = mergeCategory(c.Category, n.Category)
		if n.Row+1 > c.MaxRows {
			c.MaxRows = n.Row + 1
		}
	}
	for id := range cols {
		if !seen[id] {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"column id %d has no member nodes; ids must partition the node set", id)
		}
	}

	// Representative node supplies the parent link and the display name.
	// A FieldName parent is collapsed: it labels the column, and the
	// grandparent (the owning struct) becomes the structural parent.
	for id := range cols {
		n := tree.Nodes[rep[id]]
		if n.Parent == node.NoParent {
			continue
		}
		parent := tree.Nodes[n.Parent]
		if parent.Category == node.CategoryFieldName {
			cols[id].Name = parent.Range
			cols[id].HasName = true
			if parent.Parent != node.NoParent {
				cols[id].Parent = tree.Nodes[parent.Parent].Column
			}
			continue
		}
		cols[id].Parent = parent.Column
	}

	// Row-count inheritance. A list's row dimension counts element
	// instances, which is exactly the group max of its single child column
	// (list children share one column identity by orientation). Struct
	// descendants nested inside a list must report that same cardinality
	// even when sparse rows left them with fewer member nodes.
	elems := make([]int32, numCols)
	for id := range cols {
		p := cols[id].Parent
		if p != node.NoColumn && cols[p].Category == node.CategoryList {
			if cols[id].MaxRows > elems[p] {
				elems[p] = cols[id].MaxRows
			}
		}
	}
	inherited := make([]int32, numCols)
	for id := range cols {
		inherited[id] = cols[id].MaxRows
		for p := cols[id].Parent; p != node.NoColumn; p = cols[p].Parent {
			if cols[p].Category == node.CategoryList {
				inherited[id] = elems[p]
				break
			}
		}
	}
	for id := range cols {
		cols[id].MaxRows = inherited[id]
	}

	ct := &Tree{Columns: cols}
	inferTypes(ct, tree, order, opts.NullLiterals)
	return ct, nil
}
