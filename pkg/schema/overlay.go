// Package schema applies user-supplied type overlays onto an inferred
// column hierarchy. An overlay comes in one of three shapes: a positional
// type list matched by ordinal position among siblings, a flat name-to-type
// map matched by field name at any depth, or a nested map matched
// recursively with per-entry child schemas. The shape is a tagged variant;
// each application site switches on it directly.
package schema

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/hierarchy"
)

type shape uint8

const (
	shapeNone shape = iota
	shapePositional
	shapeFlat
	shapeNested
)

// Entry is one override: a target type and, for nested shapes, the overlay
// to carry into the column's children.
type Entry struct {
	Type     coltree.DType
	Scale    int32
	Children *Overlay
}

// Overlay is a tagged variant over the three supported shapes.
type Overlay struct {
	kind       shape
	positional []Entry
	named      map[string]Entry
}

// Positional builds an overlay matched by ordinal position among siblings.
func Positional(entries ...Entry) *Overlay {
	return &Overlay{kind: shapePositional, positional: entries}
}

// Flat builds an overlay matched by field name regardless of nesting.
func Flat(entries map[string]Entry) *Overlay {
	return &Overlay{kind: shapeFlat, named: entries}
}

// Nested builds an overlay matched recursively by field name.
func Nested(entries map[string]Entry) *Overlay {
	return &Overlay{kind: shapeNested, named: entries}
}

// Apply walks the hierarchy and replaces inferred leaf types with overlay
// entries. Entries that reference columns absent from the hierarchy are
// silently ignored. Apply must run before value materialization so casts
// target the overridden types directly.
func (o *Overlay) Apply(root *hierarchy.Column, mem memory.Allocator) {
	if o == nil || root == nil {
		return
	}
	// The root list is the records dimension; overlays address the record
	// fields below it, so matching starts at the element column.
	target := root
	if target.Kind == hierarchy.KindList && target.ListChild() != nil {
		target = target.ListChild()
	}
	o.applyChildren(target, mem)
}

// applyChildren matches the overlay against the children of col.
func (o *Overlay) applyChildren(col *hierarchy.Column, mem memory.Allocator) {
	if col == nil {
		return
	}
	switch o.kind {
	case shapePositional:
		for i, name := range col.Names {
			if i >= len(o.positional) {
				break
			}
			o.applyEntry(o.positional[i], col.Child(name), mem)
		}
	case shapeFlat:
		for _, name := range col.Names {
			child := col.Child(name)
			if e, ok := o.named[name]; ok {
				o.applyLeaf(e, child, mem)
			}
			// The flat shape keeps matching by name at every depth.
			o.applyChildren(child, mem)
		}
	case shapeNested:
		for _, name := range col.Names {
			child := col.Child(name)
			e, ok := o.named[name]
			if !ok {
				continue
			}
			o.applyEntry(e, child, mem)
		}
	}
}

func (o *Overlay) applyEntry(e Entry, child *hierarchy.Column, mem memory.Allocator) {
	if child == nil {
		return
	}
	o.applyLeaf(e, child, mem)
	if e.Children != nil {
		e.Children.applyChildren(child, mem)
	}
}

// applyLeaf overrides the resolved type of a scalar leaf. Nested columns
// only propagate; their own kind never changes.
func (o *Overlay) applyLeaf(e Entry, child *hierarchy.Column, mem memory.Allocator) {
	if child == nil || e.Type == coltree.TypeUnknown {
		return
	}
	if child.Kind != hierarchy.KindString && child.Kind != hierarchy.KindUnknown {
		return
	}
	child.Retype(mem, e.Type, e.Scale)
}

// ParseType resolves an overlay type spelling: int8, int64, uint64,
// float64, bool, string, or decimal(scale).
func ParseType(s string) (coltree.DType, int32, error) {
	switch s {
	case "int8":
		return coltree.TypeInt8, 0, nil
	case "int64":
		return coltree.TypeInt64, 0, nil
	case "uint64":
		return coltree.TypeUint64, 0, nil
	case "float64":
		return coltree.TypeFloat64, 0, nil
	case "bool":
		return coltree.TypeBool, 0, nil
	case "string":
		return coltree.TypeString, 0, nil
	}
	if strings.HasPrefix(s, "decimal(") && strings.HasSuffix(s, ")") {
		scale, err := strconv.ParseInt(s[len("decimal("):len(s)-1], 10, 32)
		if err != nil {
			return coltree.TypeUnknown, 0, errors.Newf(errors.ErrorTypeSchema,
				"invalid decimal scale in %q", s)
		}
		return coltree.TypeDecimal, int32(scale), nil
	}
	return coltree.TypeUnknown, 0, errors.Newf(errors.ErrorTypeSchema,
		"unknown overlay type %q", s)
}

func (s shape) String() string {
	switch s {
	case shapePositional:
		return "positional"
	case shapeFlat:
		return "flat"
	case shapeNested:
		return "nested"
	}
	return "none"
}
