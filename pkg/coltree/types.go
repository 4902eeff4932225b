// Package coltree reduces a flat node tree into a column-level tree and
// infers one target primitive type per leaf column. The reduction is
// expressed as flat bulk operations (stable sort, group max, group reduce)
// rather than per-node recursion; recursion only reappears downstream over
// the much smaller final column count.
package coltree

import "github.com/ajitpratap0/tabular/pkg/node"

// DType is the storage type resolved for a leaf column, either by inference
// or by a schema overlay.
type DType uint8

const (
	// TypeUnknown means no type has been resolved yet.
	TypeUnknown DType = iota
	// TypeInt8 is the narrowest integer placeholder used for columns with
	// zero valid entries.
	TypeInt8
	// TypeInt64 is a 64-bit signed integer.
	TypeInt64
	// TypeUint64 is a 64-bit unsigned integer.
	TypeUint64
	// TypeFloat64 is a 64-bit float.
	TypeFloat64
	// TypeBool is a boolean stored as one byte.
	TypeBool
	// TypeString is variable-length UTF-8 text.
	TypeString
	// TypeDecimal is a scaled 128-bit integer; only reachable through a
	// schema overlay, never inferred.
	TypeDecimal
	// TypeUnsupported marks a column that cannot be materialized without
	// an overlay (datetime-like content).
	TypeUnsupported
)

// String returns the canonical spelling, matching what schema overlays parse.
func (t DType) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeDecimal:
		return "decimal"
	case TypeUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// ByteWidth returns the fixed storage width in bytes, or 0 for
// variable-length and unresolved types.
func (t DType) ByteWidth() int {
	switch t {
	case TypeInt8:
		return 1
	case TypeBool:
		return 1
	case TypeInt64, TypeUint64, TypeFloat64:
		return 8
	case TypeDecimal:
		return 16
	}
	return 0
}

// IsFixedWidth reports whether values occupy a fixed-width buffer.
func (t DType) IsFixedWidth() bool { return t.ByteWidth() > 0 }

// Column is one group of nodes sharing a column identity, reduced to a
// merged category, a parent link, a display-name range and a row count.
type Column struct {
	ID       int32
	Category node.Category
	Parent   int32 // parent column id, node.NoColumn for the root
	Name     node.ByteRange
	HasName  bool
	MaxRows  int32
	Type     DType

	// Scale is only meaningful for TypeDecimal, set by a schema overlay.
	Scale int32
}

// Tree is the reduced column tree. Columns are indexed by column id; the
// slice covers every id exactly once (column ids partition the node set).
type Tree struct {
	Columns []Column
}

// mergeCategory folds two node categories into one. The rule is commutative
// and associative:
//   - identical categories merge to themselves
//   - a leaf merging with a nested category yields the nested category
//   - two differing leaf categories yield String
//   - a FieldName merging with a leaf yields Error
//   - two differing nested categories yield Error
func mergeCategory(a, b node.Category) node.Category {
	if a == b {
		return a
	}
	if a > b {
		a, b = b, a
	}
	switch {
	case a.IsNested() && b.IsLeaf():
		return a
	case a.IsLeaf() && b.IsLeaf():
		return node.CategoryString
	case b == node.CategoryFieldName && a.IsLeaf():
		return node.CategoryError
	case a.IsNested() && b.IsNested():
		return node.CategoryError
	}
	return node.CategoryError
}
