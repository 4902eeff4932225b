// Package materialize fills the column hierarchy's validity bitmaps, scalar
// and string values, and list boundaries. The work is organized as six
// ordered passes; each pass is a flat parallel operation over all nodes or
// all columns, and each node writes only to its own (column, row) address,
// so passes are embarrassingly parallel within themselves. Two barriers are
// load-bearing: string offsets must be scanned and the byte buffer
// allocated before any byte fill, and list boundaries must all land before
// gap closing.
package materialize

import (
	"sort"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/decimal"
	"github.com/ajitpratap0/tabular/pkg/hierarchy"
	"github.com/ajitpratap0/tabular/pkg/node"
	stringpool "github.com/ajitpratap0/tabular/pkg/strings"
)

// Runner executes fn over [0, n) split into chunks, and returns only after
// every chunk has finished. The join is the pass barrier.
type Runner interface {
	ForEach(n int, fn func(lo, hi int))
}

// Options configures materialization.
type Options struct {
	// NullLiterals is the set of unquoted tokens treated as null.
	NullLiterals []string

	// NewCaster builds the fixed-point caster for a decimal column's
	// scale. Nil falls back to decimal.NewFixed128.
	NewCaster func(scale int32) decimal.Caster
}

// Materialize runs all passes over the hierarchy in order.
func Materialize(tree *node.Tree, hier *hierarchy.Result, mem memory.Allocator, run Runner, opts Options) {
	if opts.NewCaster == nil {
		opts.NewCaster = func(scale int32) decimal.Caster { return decimal.NewFixed128(scale) }
	}

	m := &materializer{tree: tree, hier: hier, mem: mem, opts: opts}

	m.presenceAndCast(run)
	m.stringLengths(run)
	m.stringOffsets(run) // barrier: offsets and byte buffers before any fill
	m.stringBytes(run)
	m.listBoundaries(run)
	m.closeGaps(run) // barrier: all boundaries before the running max
}

type materializer struct {
	tree *node.Tree
	hier *hierarchy.Result
	mem  memory.Allocator
	opts Options

	// stringCols and listCols are collected once presence is known.
	stringCols []*hierarchy.Column
	listCols   []*hierarchy.Column

	// byColRow orders node indices by (column, row) for the adjacency
	// comparisons of the boundary pass.
	byColRow []int32
}

// target resolves the hierarchy column a node writes to, or nil when the
// node is ignored or its column was skipped.
func (m *materializer) target(i int) *hierarchy.Column {
	if m.hier.Ignored[i] {
		return nil
	}
	return m.hier.ByColumn[m.tree.Nodes[i].Column]
}

// presenceAndCast is pass 1: nesting nodes mark presence; leaf nodes either
// cast into fixed-width storage or mark presence for the string passes.
// Cast failures leave the row null without escalation.
func (m *materializer) presenceAndCast(run Runner) {
	casters := m.buildCasters()
	run.ForEach(len(m.tree.Nodes), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			n := m.tree.Nodes[i]
			col := m.target(i)
			if col == nil {
				continue
			}
			switch n.Category {
			case node.CategoryStruct, node.CategoryList:
				col.Validity.Set(int(n.Row))
			case node.CategoryString, node.CategoryValue:
				if col.Kind != hierarchy.KindString {
					continue
				}
				text := m.tree.Text(n)
				if n.Category == node.CategoryValue && m.isNull(text) {
					continue
				}
				if !col.Type.IsFixedWidth() {
					col.Validity.Set(int(n.Row))
					continue
				}
				if m.castScalar(col, int(n.Row), text, casters) {
					col.Validity.Set(int(n.Row))
				}
			}
		}
	})
}

func (m *materializer) isNull(text []byte) bool {
	s := stringpool.BytesToString(text)
	for _, lit := range m.opts.NullLiterals {
		if s == lit {
			return true
		}
	}
	return false
}

// buildCasters pre-builds one fixed-point caster per decimal scale in use.
func (m *materializer) buildCasters() map[int32]decimal.Caster {
	casters := make(map[int32]decimal.Caster)
	var walk func(c *hierarchy.Column)
	walk = func(c *hierarchy.Column) {
		if c == nil {
			return
		}
		if c.Type == coltree.TypeDecimal {
			if _, ok := casters[c.Scale]; !ok {
				casters[c.Scale] = m.opts.NewCaster(c.Scale)
			}
		}
		for _, name := range c.Names {
			walk(c.Child(name))
		}
	}
	walk(m.hier.Root)
	return casters
}

// castScalar parses token text into the column's resolved fixed-width type.
// Quoted tokens are quote-trimmed first; escapes inside numeric text simply
// fail the parse.
func (m *materializer) castScalar(col *hierarchy.Column, row int, text []byte, casters map[int32]decimal.Caster) bool {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	if len(text) == 0 {
		return false
	}
	s := stringpool.BytesToString(text)
	switch col.Type {
	case coltree.TypeInt64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false
		}
		arrow.Int64Traits.CastFromBytes(col.Fixed)[row] = v
	case coltree.TypeUint64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return false
		}
		arrow.Uint64Traits.CastFromBytes(col.Fixed)[row] = v
	case coltree.TypeFloat64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false
		}
		arrow.Float64Traits.CastFromBytes(col.Fixed)[row] = v
	case coltree.TypeBool:
		switch s {
		case "true":
			col.Bools.Set(row)
		case "false":
		default:
			return false
		}
	case coltree.TypeInt8:
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return false
		}
		col.Fixed[row] = byte(int8(v))
	case coltree.TypeDecimal:
		return casters[col.Scale].Cast(text, col.Fixed[row*16:(row+1)*16])
	default:
		return false
	}
	return true
}

// stringLengths is pass 2: decoded byte length of every valid string leaf.
func (m *materializer) stringLengths(run Runner) {
	run.ForEach(len(m.tree.Nodes), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			n := m.tree.Nodes[i]
			if !n.Category.IsLeaf() {
				continue
			}
			col := m.target(i)
			if col == nil || col.Kind != hierarchy.KindString || col.Lengths == nil {
				continue
			}
			if !col.Validity.Get(int(n.Row)) {
				continue
			}
			col.Lengths[n.Row] = int32(decodedLen(m.tree.Text(n)))
		}
	})
}

// stringOffsets is pass 3: per string column, exclusive-scan the lengths
// into byte offsets and allocate the byte buffer. This must complete before
// any write from the byte-fill pass; the pass join provides that barrier.
func (m *materializer) stringOffsets(run Runner) {
	m.collectColumns()
	run.ForEach(len(m.stringCols), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			col := m.stringCols[i]
			col.Offsets = allocInt32(m.mem, col.Rows+1)
			var total int32
			for r := 0; r < col.Rows; r++ {
				col.Offsets[r] = total
				total += col.Lengths[r]
			}
			col.Offsets[col.Rows] = total
			if total > 0 {
				col.Bytes = m.mem.Allocate(int(total))
			}
		}
	})
}

// stringBytes is pass 4: re-decode each valid string leaf directly into the
// byte buffer at its resolved offset. No intermediate decoded text is kept.
func (m *materializer) stringBytes(run Runner) {
	run.ForEach(len(m.tree.Nodes), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			n := m.tree.Nodes[i]
			if !n.Category.IsLeaf() {
				continue
			}
			col := m.target(i)
			if col == nil || col.Kind != hierarchy.KindString || col.Offsets == nil {
				continue
			}
			if !col.Validity.Get(int(n.Row)) {
				continue
			}
			decodeInto(col.Bytes[col.Offsets[n.Row]:], m.tree.Text(n))
		}
	})
}

// listBoundaries is pass 5: with nodes ordered by (column, row), the first
// and last child of each (column, parent row) group are found by adjacency
// comparison; the group writes its half-open element range into the parent
// list's child offsets.
func (m *materializer) listBoundaries(run Runner) {
	order := m.sortedByColRow()
	nodes := m.tree.Nodes
	run.ForEach(len(order), func(lo, hi int) {
		for k := lo; k < hi; k++ {
			i := order[k]
			n := nodes[i]
			if n.Parent == node.NoParent {
				continue
			}
			pn := nodes[n.Parent]
			if pn.Category != node.CategoryList {
				continue
			}
			if m.hier.Ignored[i] || m.target(int(n.Parent)) == nil {
				continue
			}
			parent := m.hier.ByColumn[pn.Column]

			first := k == 0 || !sameGroup(nodes, order[k-1], i)
			last := k == len(order)-1 || !sameGroup(nodes, i, order[k+1])

			if first {
				// Skip the write when the previous group is the adjacent
				// parent row: its last-child write already produced the
				// same value, and the duplicate would be a racing store.
				prevAdjacent := k > 0 &&
					nodes[order[k-1]].Column == n.Column &&
					nodes[nodes[order[k-1]].Parent].Row == pn.Row-1
				if !prevAdjacent {
					parent.ChildOffsets[pn.Row] = n.Row
				}
			}
			if last {
				parent.ChildOffsets[pn.Row+1] = n.Row + 1
			}
		}
	})
}

func sameGroup(nodes []node.Node, a, b int32) bool {
	na, nb := nodes[a], nodes[b]
	return na.Column == nb.Column && nodes[na.Parent].Row == nodes[nb.Parent].Row
}

// closeGaps is pass 6: an inclusive running maximum over each list column's
// child offsets carries the last explicit boundary forward across rows that
// never saw a child.
func (m *materializer) closeGaps(run Runner) {
	run.ForEach(len(m.listCols), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			offsets := m.listCols[i].ChildOffsets
			var max int32
			for r := range offsets {
				if offsets[r] > max {
					max = offsets[r]
				} else {
					offsets[r] = max
				}
			}
		}
	})
}

func (m *materializer) collectColumns() {
	var walk func(c *hierarchy.Column)
	walk = func(c *hierarchy.Column) {
		if c == nil {
			return
		}
		switch {
		case c.Kind == hierarchy.KindList:
			m.listCols = append(m.listCols, c)
		case c.Kind == hierarchy.KindString && c.Lengths != nil:
			m.stringCols = append(m.stringCols, c)
		}
		for _, name := range c.Names {
			walk(c.Child(name))
		}
	}
	walk(m.hier.Root)
}

func (m *materializer) sortedByColRow() []int32 {
	if m.byColRow != nil {
		return m.byColRow
	}
	nodes := m.tree.Nodes
	order := make([]int32, len(nodes))
	for i := range order {
		order[i] = int32(i)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := nodes[order[i]], nodes[order[j]]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Row < b.Row
	})
	m.byColRow = order
	return order
}

func allocInt32(mem memory.Allocator, n int) []int32 {
	buf := mem.Allocate(n * 4)
	for i := range buf {
		buf[i] = 0
	}
	return arrow.Int32Traits.CastFromBytes(buf)
}
