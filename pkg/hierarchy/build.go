package hierarchy

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/node"
	stringpool "github.com/ajitpratap0/tabular/pkg/strings"
)

// BuildOptions controls hierarchy construction.
type BuildOptions struct {
	// ErrorColumnAbort aborts the conversion when an Error-merged column
	// is encountered, instead of dropping it and its subtree.
	ErrorColumnAbort bool
}

// Result is the completed hierarchy plus per-node bookkeeping the
// materializer needs.
type Result struct {
	Root *Column

	// ByColumn maps column id to its hierarchy node; nil entries are
	// skipped or discarded columns.
	ByColumn []*Column

	// Ignored flags nodes whose column lost a name collision; such nodes
	// must not materialize.
	Ignored []bool

	// Dropped counts columns removed under the error-column policy or a
	// name collision.
	Dropped int
}

// Build walks the column tree in parent-before-child order and materializes
// the addressable hierarchy with storage sized by each column's row count.
// Columns whose merged category is Error or FieldName are skipped entirely,
// together with any subtree hanging off them.
func Build(ct *coltree.Tree, tree *node.Tree, mem memory.Allocator, opts BuildOptions) (*Result, error) {
	log := logger.Get()

	res := &Result{
		ByColumn: make([]*Column, len(ct.Columns)),
		Ignored:  make([]bool, len(tree.Nodes)),
	}

	// Children lists give the dependency order for free: a BFS from the
	// root visits every parent before its children.
	children := make([][]int32, len(ct.Columns))
	rootID := node.NoColumn
	for i := range ct.Columns {
		p := ct.Columns[i].Parent
		if p == node.NoColumn {
			if rootID != node.NoColumn {
				return nil, errors.New(errors.ErrorTypeInternal, "column tree has multiple roots")
			}
			rootID = int32(i)
			continue
		}
		children[p] = append(children[p], int32(i))
	}
	if rootID == node.NoColumn {
		if len(ct.Columns) == 0 {
			return nil, errors.New(errors.ErrorTypeData, "empty input produced no columns")
		}
		return nil, errors.New(errors.ErrorTypeInternal, "column tree has no root")
	}

	discarded := make(map[int32]bool)
	queue := []int32{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		col := &ct.Columns[id]

		switch col.Category {
		case node.CategoryFieldName:
			// Labels only; never materialized. Its subtree was re-parented
			// during reduction, so nothing hangs below it.
			continue
		case node.CategoryError:
			if opts.ErrorColumnAbort {
				return nil, errors.Newf(errors.ErrorTypeUnsupportedColumn,
					"column %d merged to the error category", id)
			}
			log.Debug("dropping error-merged column", zap.Int32("column", id))
			discarded[id] = true
			// The subtree, if any, is skipped with it.
			continue
		}

		hc := &Column{
			Kind:  kindOf(col.Category),
			Rows:  int(col.MaxRows),
			Type:  col.Type,
			Scale: col.Scale,
		}

		if id == rootID {
			hc.allocate(mem)
			res.Root = hc
			res.ByColumn[id] = hc
			queue = append(queue, children[id]...)
			continue
		}

		parent := res.ByColumn[col.Parent]
		if parent == nil {
			if discarded[col.Parent] {
				// Parent was dropped under the error policy; drop the
				// subtree with it.
				discarded[id] = true
				continue
			}
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"column %d resolved to a skipped parent %d", id, col.Parent)
		}

		name := ListElementName
		if parent.Kind != KindList && col.HasName {
			name = stringpool.BytesToString(tree.RangeText(col.Name))
		}

		existing := parent.Child(name)
		switch {
		case existing == nil:
			hc.allocate(mem)
			parent.putChild(name, hc)
			res.ByColumn[id] = hc

		case hc.Kind == KindString || hc.Kind == KindUnknown:
			// Incoming leaf loses to whatever is already there; its member
			// nodes are flagged ignored below.
			discarded[id] = true
			continue

		case existing.Kind == KindString || existing.Kind == KindUnknown:
			// Nested replaces a same-named leaf at the same position. The
			// old leaf's nodes become ignored; we can only flag them by
			// column id, so find and discard the leaf's id.
			for _, sib := range children[col.Parent] {
				if res.ByColumn[sib] == existing {
					discarded[sib] = true
					res.ByColumn[sib] = nil
				}
			}
			hc.allocate(mem)
			parent.replaceChild(name, hc)
			res.ByColumn[id] = hc

		case existing.Kind == hc.Kind:
			// Same nested kind under distinct column ids cannot occur with
			// correct upstream assignment; treat as already merged.
			res.ByColumn[id] = existing

		default:
			return nil, errors.Newf(errors.ErrorTypeStructuralConflict,
				"field %q is both a list and a struct", name)
		}

		queue = append(queue, children[id]...)
	}

	// One pass over the nodes turns discarded column ids into ignored
	// flags for the materializer.
	res.Dropped = len(discarded)
	if len(discarded) > 0 {
		for i := range tree.Nodes {
			if discarded[tree.Nodes[i].Column] {
				res.Ignored[i] = true
			}
		}
	}

	if res.Root == nil {
		return nil, errors.New(errors.ErrorTypeUnsupportedColumn, "root column cannot be materialized")
	}
	return res, nil
}

func kindOf(c node.Category) Kind {
	switch c {
	case node.CategoryStruct:
		return KindStruct
	case node.CategoryList:
		return KindList
	case node.CategoryString, node.CategoryValue:
		return KindString
	}
	return KindUnknown
}
