package parquet

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
	stringpool "github.com/ajitpratap0/dremel/pkg/strings"
	"github.com/ajitpratap0/dremel/pkg/table"
)

// ToRecord materializes every row of store into one Arrow record. The
// caller must release the record. A nil mem uses memory.DefaultAllocator.
func ToRecord(store *table.Store, mem memory.Allocator) (arrow.Record, error) {
	if store == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "store is required")
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	as, err := ToArrowSchema(store.Schema())
	if err != nil {
		return nil, err
	}
	rows, err := store.Rows()
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(mem, as)
	defer b.Release()

	fields := store.Schema().Fields()
	for r, row := range rows {
		for i, node := range fields {
			if err := appendCell(b.Field(i), node, row[i]); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot convert row").
					WithDetail("row", r).
					WithDetail("path", node.Path())
			}
		}
	}
	return b.NewRecord(), nil
}

func appendCell(b array.Builder, node *schema.Node, cell table.Cell) error {
	switch node.Kind() {
	case schema.KindLeaf:
		v := cellValue(cell)
		if !node.Repeated() {
			return appendValue(b, v)
		}
		lb, err := builderAs[*array.ListBuilder](b, node)
		if err != nil {
			return err
		}
		values, _ := v.([]any)
		lb.Append(true)
		for _, x := range values {
			if err := appendValue(lb.ValueBuilder(), x); err != nil {
				return err
			}
		}
		return nil

	case schema.KindGroup:
		if !node.Repeated() {
			sb, err := builderAs[*array.StructBuilder](b, node)
			if err != nil {
				return err
			}
			g, _ := cell.(table.Group)
			return appendGroup(sb, node, g.Row)
		}
		lb, err := builderAs[*array.ListBuilder](b, node)
		if err != nil {
			return err
		}
		sb, err := builderAs[*array.StructBuilder](lb.ValueBuilder(), node)
		if err != nil {
			return err
		}
		lb.Append(true)
		rg, _ := cell.(table.RepeatedGroup)
		for _, row := range rg {
			if err := appendGroup(sb, node, row); err != nil {
				return err
			}
		}
		return nil

	case schema.KindMap:
		if !node.Repeated() {
			mb, err := builderAs[*array.MapBuilder](b, node)
			if err != nil {
				return err
			}
			m, _ := cell.(table.Map)
			return appendMap(mb, m)
		}
		lb, err := builderAs[*array.ListBuilder](b, node)
		if err != nil {
			return err
		}
		mb, err := builderAs[*array.MapBuilder](lb.ValueBuilder(), node)
		if err != nil {
			return err
		}
		lb.Append(true)
		rm, _ := cell.(table.RepeatedMap)
		for _, m := range rm {
			if err := appendMap(mb, m); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.New(errors.ErrorTypeInternal, "unknown schema node kind").
			WithDetail("path", node.Path())
	}
}

func appendGroup(sb *array.StructBuilder, node *schema.Node, row table.Row) error {
	children := node.Children()
	if row == nil {
		// missing group rows are written as nulls
		row = make(table.Row, len(children))
	}
	if len(row) != len(children) {
		return errors.New(errors.ErrorTypeValidation, "row arity does not match schema").
			WithDetail("path", node.Path()).
			WithDetail("arity", len(row))
	}
	sb.Append(true)
	for i, child := range children {
		if err := appendCell(sb.FieldBuilder(i), child, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func appendMap(mb *array.MapBuilder, m table.Map) error {
	mb.Append(true)
	for _, p := range m {
		if err := appendValue(mb.KeyBuilder(), p.Key); err != nil {
			return err
		}
		if err := appendValue(mb.ItemBuilder(), p.Value); err != nil {
			return err
		}
	}
	return nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	ok := true
	switch b := b.(type) {
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.(bool); ok {
			b.Append(x)
		}
	case *array.Int32Builder:
		var x int32
		if x, ok = v.(int32); ok {
			b.Append(x)
		}
	case *array.Int64Builder:
		var x int64
		if x, ok = v.(int64); ok {
			b.Append(x)
		}
	case *array.Float32Builder:
		var x float32
		if x, ok = v.(float32); ok {
			b.Append(x)
		}
	case *array.Float64Builder:
		var x float64
		if x, ok = v.(float64); ok {
			b.Append(x)
		}
	case *array.StringBuilder:
		var x string
		if x, ok = v.(string); ok {
			b.Append(x)
		}
	case *array.BinaryBuilder:
		var x []byte
		if x, ok = v.([]byte); ok {
			b.Append(x)
		}
	case *array.TimestampBuilder:
		var x time.Time
		if x, ok = v.(time.Time); ok {
			unit := b.Type().(*arrow.TimestampType).Unit
			ts, err := arrow.TimestampFromTime(x, unit)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "timestamp out of range")
			}
			b.Append(ts)
		}
	default:
		return errors.New(errors.ErrorTypeCapability, "unsupported arrow builder").
			WithDetail("builder", fmt.Sprintf("%T", b))
	}
	if !ok {
		return errors.New(errors.ErrorTypeData, "value does not match arrow type").
			WithDetail("value", fmt.Sprintf("%T", v)).
			WithDetail("type", b.Type().String())
	}
	return nil
}

func builderAs[T array.Builder](b array.Builder, node *schema.Node) (T, error) {
	t, ok := b.(T)
	if !ok {
		return t, errors.New(errors.ErrorTypeInternal, "arrow builder does not match schema node").
			WithDetail("path", node.Path()).
			WithDetail("builder", fmt.Sprintf("%T", b))
	}
	return t, nil
}

func cellValue(cell table.Cell) any {
	if s, ok := cell.(table.Scalar); ok {
		return s.Value
	}
	return nil
}

// AppendRecord adds every row of rec to store. Top-level columns and
// struct children are matched by name; columns without a schema field
// are ignored. Rows added before a failing row stay in the store.
func AppendRecord(store *table.Store, rec arrow.Record) error {
	if store == nil || rec == nil {
		return errors.New(errors.ErrorTypeValidation, "store and record are required")
	}

	fields := store.Schema().Fields()
	cols := make([]arrow.Array, len(fields))
	for i, node := range fields {
		idx := rec.Schema().FieldIndices(node.Name())
		if len(idx) == 0 {
			return errors.New(errors.ErrorTypeNotFound, "record has no column for field").
				WithDetail("path", node.Path())
		}
		cols[i] = rec.Column(idx[0])
	}

	rr := &recordReader{intern: stringpool.NewIntern()}
	for r := 0; r < int(rec.NumRows()); r++ {
		row := make(table.Row, len(fields))
		for i, node := range fields {
			cell, err := rr.cellAt(node, cols[i], r)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "cannot read record row").
					WithDetail("row", r).
					WithDetail("path", node.Path())
			}
			row[i] = cell
		}
		if err := store.AddRow(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "cannot add record row").
				WithDetail("row", r)
		}
	}
	return nil
}

// recordReader copies cells out of Arrow arrays. Strings are interned per
// record, so dictionary-encoded columns share one copy of each value.
type recordReader struct {
	intern *stringpool.Intern
}

// cellAt reads the cell of node at position i of arr. Null lists, maps
// and structs become nil cells, which the store reads as empty or null.
func (rr *recordReader) cellAt(node *schema.Node, arr arrow.Array, i int) (table.Cell, error) {
	if arr.IsNull(i) && !(node.IsLeaf() && !node.Repeated()) {
		return nil, nil
	}

	switch node.Kind() {
	case schema.KindLeaf:
		if !node.Repeated() {
			v, err := rr.valueAt(arr, i)
			return table.Scalar{Value: v}, err
		}
		list, err := arrayAs[*array.List](arr, node)
		if err != nil {
			return nil, err
		}
		start, end := list.ValueOffsets(i)
		values := make([]any, 0, end-start)
		for j := start; j < end; j++ {
			v, err := rr.valueAt(list.ListValues(), int(j))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return table.Scalar{Value: values}, nil

	case schema.KindGroup:
		if !node.Repeated() {
			st, err := arrayAs[*array.Struct](arr, node)
			if err != nil {
				return nil, err
			}
			row, err := rr.groupAt(node, st, i)
			if err != nil {
				return nil, err
			}
			return table.Group{Row: row}, nil
		}
		list, err := arrayAs[*array.List](arr, node)
		if err != nil {
			return nil, err
		}
		st, err := arrayAs[*array.Struct](list.ListValues(), node)
		if err != nil {
			return nil, err
		}
		start, end := list.ValueOffsets(i)
		rg := make(table.RepeatedGroup, 0, end-start)
		for j := start; j < end; j++ {
			if st.IsNull(int(j)) {
				return nil, errors.New(errors.ErrorTypeCapability, "null repeated group element").
					WithDetail("path", node.Path())
			}
			row, err := rr.groupAt(node, st, int(j))
			if err != nil {
				return nil, err
			}
			rg = append(rg, row)
		}
		return rg, nil

	case schema.KindMap:
		if !node.Repeated() {
			m, err := arrayAs[*array.Map](arr, node)
			if err != nil {
				return nil, err
			}
			return rr.mapAt(m, i)
		}
		list, err := arrayAs[*array.List](arr, node)
		if err != nil {
			return nil, err
		}
		m, err := arrayAs[*array.Map](list.ListValues(), node)
		if err != nil {
			return nil, err
		}
		start, end := list.ValueOffsets(i)
		rm := make(table.RepeatedMap, 0, end-start)
		for j := start; j < end; j++ {
			entries, err := rr.mapAt(m, int(j))
			if err != nil {
				return nil, err
			}
			rm = append(rm, entries)
		}
		return rm, nil

	default:
		return nil, errors.New(errors.ErrorTypeInternal, "unknown schema node kind").
			WithDetail("path", node.Path())
	}
}

func (rr *recordReader) groupAt(node *schema.Node, st *array.Struct, i int) (table.Row, error) {
	fields := st.DataType().(*arrow.StructType)
	row := make(table.Row, 0, len(node.Children()))
	for _, child := range node.Children() {
		idx, ok := fields.FieldIdx(child.Name())
		if !ok {
			return nil, errors.New(errors.ErrorTypeNotFound, "struct has no field for child").
				WithDetail("path", child.Path())
		}
		cell, err := rr.cellAt(child, st.Field(idx), i)
		if err != nil {
			return nil, err
		}
		row = append(row, cell)
	}
	return row, nil
}

func (rr *recordReader) mapAt(m *array.Map, i int) (table.Map, error) {
	if m.IsNull(i) {
		return table.Map{}, nil
	}
	start, end := m.ValueOffsets(i)
	entries := make(table.Map, 0, end-start)
	for j := start; j < end; j++ {
		k, err := rr.valueAt(m.Keys(), int(j))
		if err != nil {
			return nil, err
		}
		v, err := rr.valueAt(m.Items(), int(j))
		if err != nil {
			return nil, err
		}
		entries = append(entries, table.Pair{Key: k, Value: v})
	}
	return entries, nil
}

// valueAt copies a primitive value out of arr so it outlives the record.
func (rr *recordReader) valueAt(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int32:
		return a.Value(i), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Float32:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return rr.intern.Get(a.Value(i)), nil
	case *array.LargeString:
		return rr.intern.Get(a.Value(i)), nil
	case *array.Binary:
		return bytes.Clone(a.Value(i)), nil
	case *array.LargeBinary:
		return bytes.Clone(a.Value(i)), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC(), nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported arrow array").
			WithDetail("type", arr.DataType().String())
	}
}

func arrayAs[T arrow.Array](arr arrow.Array, node *schema.Node) (T, error) {
	t, ok := arr.(T)
	if !ok {
		return t, errors.New(errors.ErrorTypeCapability, "arrow array does not match schema node").
			WithDetail("path", node.Path()).
			WithDetail("type", arr.DataType().String())
	}
	return t, nil
}
