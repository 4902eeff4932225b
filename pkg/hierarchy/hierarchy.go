// Package hierarchy materializes the addressable, named, storage-bearing
// column tree built from a reduced column tree. Each node owns its storage
// exclusively; parent references are integer-keyed lookups into an arena,
// never ownership edges, so no cycles can arise.
package hierarchy

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/tabular/pkg/coltree"
)

// Kind classifies a hierarchy node.
type Kind uint8

const (
	// KindUnknown marks a column that was never observed with a concrete
	// category (placeholder leaf).
	KindUnknown Kind = iota
	// KindStruct is a nested object column.
	KindStruct
	// KindList is a nested array column.
	KindList
	// KindString is a scalar leaf; its resolved DType decides whether it
	// stores variable-length text or a fixed-width buffer.
	KindString
)

// ListElementName is the sentinel display name for columns whose parent is
// a List, and for the root.
const ListElementName = "element"

// Column is one node of the materialized hierarchy. Exactly one storage
// shape is populated, depending on Kind and Type: a fixed-width buffer, the
// string triple (lengths, offsets, bytes), or a list child-offset array.
type Column struct {
	Kind Kind
	Rows int
	Type coltree.DType

	// Scale applies to TypeDecimal only.
	Scale int32

	// Names preserves first-seen child order; Children is the lookup index.
	Names    []string
	Children map[string]*Column

	Validity *Bitmap

	// Fixed-width values, Rows*Type.ByteWidth() bytes.
	Fixed []byte

	// Bool values, bit-packed in Arrow layout so the buffer moves into the
	// output array untouched.
	Bools *Bitmap

	// String storage. Lengths has Rows+1 entries and is filled per row by
	// the measurement pass; Offsets and Bytes exist only after the offset
	// barrier.
	Lengths []int32
	Offsets []int32
	Bytes   []byte

	// List child boundaries, allocated with Rows+2 entries; the logical
	// array is the Rows+1 prefix.
	ChildOffsets []int32
}

// Child returns the named child, or nil.
func (c *Column) Child(name string) *Column {
	if c.Children == nil {
		return nil
	}
	return c.Children[name]
}

// ListChild returns a list column's single child, or nil if no element was
// ever observed.
func (c *Column) ListChild() *Column {
	return c.Child(ListElementName)
}

// putChild inserts a child preserving first-seen order.
func (c *Column) putChild(name string, child *Column) {
	if c.Children == nil {
		c.Children = make(map[string]*Column)
	}
	if _, ok := c.Children[name]; !ok {
		c.Names = append(c.Names, name)
	}
	c.Children[name] = child
}

// replaceChild swaps the child under name, keeping its position in Names.
func (c *Column) replaceChild(name string, child *Column) {
	c.Children[name] = child
}

// allocate sizes the column's storage for its row count. Fixed-width leaves
// get one values buffer; string leaves get a zero-initialized length array
// (offsets and bytes are deferred to the materialization barrier); lists get
// a zero-initialized child-offset array.
func (c *Column) allocate(mem memory.Allocator) {
	c.Validity = NewBitmap(mem, c.Rows)
	switch c.Kind {
	case KindList:
		c.ChildOffsets = allocInt32(mem, c.Rows+2)
	case KindString:
		switch {
		case c.Type == coltree.TypeBool:
			c.Bools = NewBitmap(mem, c.Rows)
		case c.Type.IsFixedWidth():
			c.Fixed = allocBytes(mem, c.Rows*c.Type.ByteWidth())
		default:
			c.Lengths = allocInt32(mem, c.Rows+1)
		}
	}
}

// Retype swaps a leaf's resolved type, reallocating value storage. Used by
// schema overlays before materialization begins.
func (c *Column) Retype(mem memory.Allocator, t coltree.DType, scale int32) {
	if c.Type == t && (t != coltree.TypeDecimal || c.Scale == scale) {
		return
	}
	c.Type = t
	c.Scale = scale
	c.Fixed = nil
	c.Bools = nil
	c.Lengths = nil
	c.Offsets = nil
	c.Bytes = nil
	switch {
	case t == coltree.TypeBool:
		c.Bools = NewBitmap(mem, c.Rows)
	case t.IsFixedWidth():
		c.Fixed = allocBytes(mem, c.Rows*t.ByteWidth())
	default:
		c.Lengths = allocInt32(mem, c.Rows+1)
	}
}

func allocBytes(mem memory.Allocator, n int) []byte {
	if n == 0 {
		return nil
	}
	buf := mem.Allocate(n)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

func allocInt32(mem memory.Allocator, n int) []int32 {
	if n == 0 {
		return nil
	}
	return arrow.Int32Traits.CastFromBytes(allocBytes(mem, n*4))
}
