// Package assemble converts a filled column hierarchy into Arrow arrays.
// Buffers are handed over by reference; nothing is copied, so the hierarchy
// must not be reused after assembly.
package assemble

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/hierarchy"
)

// Table is the assembled output: the root array plus the display-name tree
// that mirrors its layout.
type Table struct {
	Root  arrow.Array
	Names NameNode
}

// Release drops the table's reference to the root array.
func (t *Table) Release() {
	if t.Root != nil {
		t.Root.Release()
		t.Root = nil
	}
}

// Rows reports the number of top-level records, the length of the struct
// nested under the root list. The root list itself always has length one.
func (t *Table) Rows() int {
	list, ok := t.Root.(*array.List)
	if !ok {
		return t.Root.Len()
	}
	return list.ListValues().Len()
}

// Record views the root as a record batch. The root must be a list of
// structs; each struct field becomes one top-level column.
func (t *Table) Record() (arrow.Record, error) {
	list, ok := t.Root.(*array.List)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "root array is not a list")
	}
	st, ok := list.ListValues().(*array.Struct)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInternal, "root list element is not a struct")
	}
	stType := st.DataType().(*arrow.StructType)
	fields := make([]arrow.Field, st.NumField())
	cols := make([]arrow.Array, st.NumField())
	for i := range fields {
		fields[i] = stType.Field(i)
		cols[i] = st.Field(i)
	}
	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(st.Len())), nil
}

// Assemble walks the hierarchy and builds the root Arrow array together
// with its name tree. Columns whose resolved type is still unsupported
// abort the conversion; an overlay must have overridden them by now.
func Assemble(root *hierarchy.Column, mem memory.Allocator) (*Table, error) {
	data, names, err := assembleColumn(root, hierarchy.ListElementName, mem)
	if err != nil {
		return nil, err
	}
	defer data.Release()
	return &Table{Root: array.MakeFromData(data), Names: names}, nil
}

func assembleColumn(col *hierarchy.Column, name string, mem memory.Allocator) (arrow.ArrayData, NameNode, error) {
	switch col.Kind {
	case hierarchy.KindStruct:
		return assembleStruct(col, name, mem)
	case hierarchy.KindList:
		return assembleList(col, name, mem)
	default:
		return assembleLeaf(col, name, mem)
	}
}

func assembleStruct(col *hierarchy.Column, name string, mem memory.Allocator) (arrow.ArrayData, NameNode, error) {
	fields := make([]arrow.Field, 0, len(col.Names))
	children := make([]arrow.ArrayData, 0, len(col.Names))
	node := NameNode{Name: name}
	for _, childName := range col.Names {
		child := col.Children[childName]
		data, childNode, err := assembleColumn(child, childName, mem)
		if err != nil {
			releaseAll(children)
			return nil, NameNode{}, err
		}
		if data.Len() != col.Rows {
			data.Release()
			releaseAll(children)
			return nil, NameNode{}, errors.Newf(errors.ErrorTypeInternal,
				"struct field %q has %d rows, parent has %d", childName, data.Len(), col.Rows)
		}
		fields = append(fields, arrow.Field{Name: childName, Type: data.DataType(), Nullable: true})
		children = append(children, data)
		node.Children = append(node.Children, childNode)
	}
	defer releaseAll(children)

	validity, nulls := validityBuffer(col)
	data := array.NewData(arrow.StructOf(fields...), col.Rows,
		[]*memory.Buffer{validity}, children, nulls, 0)
	return data, node, nil
}

func assembleList(col *hierarchy.Column, name string, mem memory.Allocator) (arrow.ArrayData, NameNode, error) {
	var (
		child     arrow.ArrayData
		childNode NameNode
		err       error
	)
	if elem := col.ListChild(); elem != nil {
		child, childNode, err = assembleColumn(elem, hierarchy.ListElementName, mem)
		if err != nil {
			return nil, NameNode{}, err
		}
	} else {
		// A list that never held an element still needs a typed child.
		child = emptyInt8(mem)
		childNode = NameNode{Name: hierarchy.ListElementName}
	}
	defer child.Release()

	offsets := col.ChildOffsets[:col.Rows+1]
	validity, nulls := validityBuffer(col)
	data := array.NewData(arrow.ListOf(child.DataType()), col.Rows,
		[]*memory.Buffer{validity, memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(offsets))},
		[]arrow.ArrayData{child}, nulls, 0)

	node := NameNode{Name: name, Children: []NameNode{{Name: "offsets"}, childNode}}
	return data, node, nil
}

func assembleLeaf(col *hierarchy.Column, name string, mem memory.Allocator) (arrow.ArrayData, NameNode, error) {
	t := col.Type
	if col.Kind == hierarchy.KindUnknown || t == coltree.TypeUnknown {
		// Placeholder for a column that was never observed with a value.
		t = coltree.TypeInt8
	}

	validity, nulls := validityBuffer(col)
	switch t {
	case coltree.TypeInt8, coltree.TypeInt64, coltree.TypeUint64, coltree.TypeFloat64:
		var values *memory.Buffer
		if col.Fixed != nil {
			values = memory.NewBufferBytes(col.Fixed)
		} else {
			values = memory.NewResizableBuffer(mem)
			values.Resize(col.Rows * t.ByteWidth())
		}
		data := array.NewData(primitiveType(t), col.Rows,
			[]*memory.Buffer{validity, values}, nil, nulls, 0)
		return data, NameNode{Name: name}, nil

	case coltree.TypeBool:
		var values *memory.Buffer
		if col.Bools != nil {
			values = memory.NewBufferBytes(col.Bools.Bytes())
		} else {
			values = memory.NewResizableBuffer(mem)
		}
		data := array.NewData(arrow.FixedWidthTypes.Boolean, col.Rows,
			[]*memory.Buffer{validity, values}, nil, nulls, 0)
		return data, NameNode{Name: name}, nil

	case coltree.TypeDecimal:
		var values *memory.Buffer
		if col.Fixed != nil {
			values = memory.NewBufferBytes(col.Fixed)
		} else {
			values = memory.NewResizableBuffer(mem)
			values.Resize(col.Rows * t.ByteWidth())
		}
		dt := &arrow.Decimal128Type{Precision: 38, Scale: col.Scale}
		data := array.NewData(dt, col.Rows,
			[]*memory.Buffer{validity, values}, nil, nulls, 0)
		return data, NameNode{Name: name}, nil

	case coltree.TypeString:
		// Text columns with no nulls drop their validity mask entirely.
		if nulls == 0 {
			validity = nil
		}
		var offsets *memory.Buffer
		if col.Offsets != nil {
			offsets = memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(col.Offsets[:col.Rows+1]))
		} else {
			buf := memory.NewResizableBuffer(mem)
			buf.Resize((col.Rows + 1) * 4)
			offsets = buf
		}
		values := memory.NewBufferBytes(col.Bytes)
		data := array.NewData(arrow.BinaryTypes.String, col.Rows,
			[]*memory.Buffer{validity, offsets, values}, nil, nulls, 0)
		node := NameNode{Name: name, Children: []NameNode{{Name: "offsets"}, {Name: "bytes"}}}
		return data, node, nil
	}

	return nil, NameNode{}, errors.Newf(errors.ErrorTypeUnsupportedColumn,
		"column %q resolved to an unsupported type; override it with a schema", name)
}

// validityBuffer wraps the column's null mask as an Arrow buffer and counts
// the unset rows.
func validityBuffer(col *hierarchy.Column) (*memory.Buffer, int) {
	if col.Validity == nil {
		return nil, 0
	}
	nulls := col.Rows - col.Validity.CountSet()
	return memory.NewBufferBytes(col.Validity.Bytes()), nulls
}

func primitiveType(t coltree.DType) arrow.DataType {
	switch t {
	case coltree.TypeInt8:
		return arrow.PrimitiveTypes.Int8
	case coltree.TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case coltree.TypeUint64:
		return arrow.PrimitiveTypes.Uint64
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

func emptyInt8(mem memory.Allocator) arrow.ArrayData {
	return array.NewData(arrow.PrimitiveTypes.Int8, 0,
		[]*memory.Buffer{nil, memory.NewResizableBuffer(mem)}, nil, 0, 0)
}

func releaseAll(data []arrow.ArrayData) {
	for _, d := range data {
		d.Release()
	}
}
