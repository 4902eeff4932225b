// Package node defines the flat node-tree data model produced by the
// tokenization stage. The tree is an immutable, index-addressed slice of
// nodes: every parsed record fragment (scalar, nesting boundary, field name)
// is one Node carrying a byte range into the raw input and, once the
// orientation step has run, a column identity and an intra-column row offset.
package node

// Category classifies a node in the flat tree.
type Category uint8

const (
	// CategoryStruct marks the opening of an object.
	CategoryStruct Category = iota
	// CategoryList marks the opening of an array.
	CategoryList
	// CategoryString marks a quoted scalar. The byte range includes the quotes.
	CategoryString
	// CategoryValue marks an unquoted scalar (number, boolean, null literal).
	CategoryValue
	// CategoryFieldName marks an object key. It never materializes directly;
	// it only supplies a label for its value column.
	CategoryFieldName
	// CategoryError marks a fragment the tokenizer could not classify.
	CategoryError
)

// String returns a short tag for logging.
func (c Category) String() string {
	switch c {
	case CategoryStruct:
		return "struct"
	case CategoryList:
		return "list"
	case CategoryString:
		return "string"
	case CategoryValue:
		return "value"
	case CategoryFieldName:
		return "field_name"
	case CategoryError:
		return "error"
	}
	return "unknown"
}

// IsLeaf reports whether the category is a scalar-bearing leaf.
func (c Category) IsLeaf() bool {
	return c == CategoryString || c == CategoryValue
}

// IsNested reports whether the category owns children.
func (c Category) IsNested() bool {
	return c == CategoryStruct || c == CategoryList
}

// Sentinel ids for absent references.
const (
	NoParent = int32(-1)
	NoColumn = int32(-1)
)

// ByteRange is a half-open [Begin, End) window into the raw input.
type ByteRange struct {
	Begin int32
	End   int32
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int { return int(r.End - r.Begin) }

// Node is one parsed record fragment. Parent is an index into the owning
// tree's node slice, NoParent for the root. Column and Row are assigned by
// the orientation step; Row is unique and contiguous (0-based) per column.
type Node struct {
	Category Category
	Parent   int32
	Level    int32
	Range    ByteRange
	Column   int32
	Row      int32
}

// Tree is the immutable flat node tree together with the raw input it
// indexes into. It is produced once by the tokenizer and read-only from
// then on.
type Tree struct {
	Nodes []Node
	Input []byte
}

// Text returns the raw bytes covered by a node's range.
func (t *Tree) Text(n Node) []byte {
	return t.Input[n.Range.Begin:n.Range.End]
}

// RangeText returns the raw bytes covered by an arbitrary range.
func (t *Tree) RangeText(r ByteRange) []byte {
	return t.Input[r.Begin:r.End]
}

// NumColumns returns the number of distinct column identities, assuming
// column ids are dense and 0-based as the orientation contract requires.
func (t *Tree) NumColumns() int {
	max := NoColumn
	for i := range t.Nodes {
		if t.Nodes[i].Column > max {
			max = t.Nodes[i].Column
		}
	}
	return int(max + 1)
}
