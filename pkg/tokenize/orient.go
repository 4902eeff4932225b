package tokenize

import (
	"context"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/node"
	stringpool "github.com/ajitpratap0/tabular/pkg/strings"
)

// Orienter assigns dense column ids and per-column row offsets to a node
// tree in place. Two nodes share a column id exactly when they sit under
// the same parent column with the same label: an object key, the value
// slot under that key, or the element slot of a list.
type Orienter struct{}

// NewOrienter returns a ready Orienter.
func NewOrienter() *Orienter { return &Orienter{} }

// Label discriminator prefixes. They keep a field named "element" from
// colliding with a list's element slot under the same parent.
const (
	labelField   = 'f'
	labelValue   = 'v'
	labelElement = 'e'
)

type columnKey struct {
	parent int32
	label  string
}

// Orient implements node.Orienter. Nodes must be in depth-first preorder,
// parents before children, which is what the tokenizer produces.
func (o *Orienter) Orient(ctx context.Context, tree *node.Tree) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "orient canceled")
	}
	columns := make(map[columnKey]int32)
	var nextRow []int32

	assign := func(key columnKey) int32 {
		if id, ok := columns[key]; ok {
			return id
		}
		id := int32(len(nextRow))
		columns[key] = id
		nextRow = append(nextRow, 0)
		return id
	}

	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if n.Parent == node.NoParent {
			n.Column = assign(columnKey{parent: node.NoColumn, label: string(labelElement)})
			n.Row = nextRow[n.Column]
			nextRow[n.Column]++
			continue
		}
		parent := &tree.Nodes[n.Parent]
		if parent.Column == node.NoColumn {
			return errors.Newf(errors.ErrorTypeInternal,
				"node %d precedes its parent %d", i, n.Parent)
		}

		var key columnKey
		switch parent.Category {
		case node.CategoryStruct:
			if n.Category != node.CategoryFieldName {
				return errors.Newf(errors.ErrorTypeInternal,
					"node %d: object child is not a field name", i)
			}
			key = columnKey{parent: parent.Column, label: string(labelField) + stringpool.BytesToString(tree.Text(*n))}
		case node.CategoryFieldName:
			key = columnKey{parent: parent.Column, label: string(labelValue)}
		case node.CategoryList:
			key = columnKey{parent: parent.Column, label: string(labelElement)}
		default:
			return errors.Newf(errors.ErrorTypeInternal,
				"node %d: parent category %s cannot own children", i, parent.Category)
		}
		n.Column = assign(key)

		// List elements count per column in document order; everything
		// else sits on its parent's row.
		if parent.Category == node.CategoryList {
			n.Row = nextRow[n.Column]
			nextRow[n.Column]++
		} else {
			n.Row = parent.Row
		}
	}
	return nil
}
