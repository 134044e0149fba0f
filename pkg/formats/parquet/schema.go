// Package parquet bridges tabular stores and Apache Arrow / Parquet.
//
// Schemas map one to one onto Arrow types:
//
//	leaf              primitive
//	repeated leaf     list<primitive>
//	group             struct
//	repeated group    list<struct>
//	map               map<primitive, primitive>
//	repeated map      list<map>
//
// A store is converted to a single Arrow record with ToRecord, and Arrow
// records are appended to a store with AppendRecord. WriteFile and
// ReadFile move whole stores through Parquet files with pqarrow.
package parquet

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// elementName names the element field of generated list types.
const elementName = "element"

// ToArrowSchema converts sch to the equivalent Arrow schema.
func ToArrowSchema(sch *schema.Schema) (*arrow.Schema, error) {
	if sch == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "schema is required")
	}
	fields, err := toArrowFields(sch.Fields())
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

func toArrowFields(nodes []*schema.Node) ([]arrow.Field, error) {
	fields := make([]arrow.Field, 0, len(nodes))
	for _, n := range nodes {
		f, err := toArrowField(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func toArrowField(n *schema.Node) (arrow.Field, error) {
	var elem arrow.Field

	switch n.Kind() {
	case schema.KindLeaf:
		t, err := toArrowType(n.Type())
		if err != nil {
			return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeCapability, "cannot convert leaf").
				WithDetail("path", n.Path())
		}
		elem = arrow.Field{Type: t, Nullable: n.Nullable()}

	case schema.KindGroup:
		children, err := toArrowFields(n.Children())
		if err != nil {
			return arrow.Field{}, err
		}
		elem = arrow.Field{Type: arrow.StructOf(children...)}

	case schema.KindMap:
		key, err := toArrowType(n.Key().Type())
		if err != nil {
			return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeCapability, "cannot convert map key").
				WithDetail("path", n.Path())
		}
		value, err := toArrowType(n.Value().Type())
		if err != nil {
			return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeCapability, "cannot convert map value").
				WithDetail("path", n.Path())
		}
		mt := arrow.MapOf(key, value)
		mt.SetItemNullable(n.Value().Nullable())
		elem = arrow.Field{Type: mt}

	default:
		return arrow.Field{}, errors.New(errors.ErrorTypeInternal, "unknown schema node kind").
			WithDetail("path", n.Path())
	}

	if !n.Repeated() {
		elem.Name = n.Name()
		return elem, nil
	}
	elem.Name = elementName
	return arrow.Field{Name: n.Name(), Type: arrow.ListOfField(elem)}, nil
}

func toArrowType(t schema.ElementType) (arrow.DataType, error) {
	switch t {
	case schema.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case schema.TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case schema.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case schema.TypeFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case schema.TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case schema.TypeString:
		return arrow.BinaryTypes.String, nil
	case schema.TypeBytes:
		return arrow.BinaryTypes.Binary, nil
	case schema.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported element type").
			WithDetail("type", t.String())
	}
}

// FromArrowSchema converts an Arrow schema to a schema.
//
// Nullability of list, struct and map fields is not kept: a null list or
// map reads as empty, and the non-repeated leaves below a nullable struct
// become nullable. Types without a mapping are capability errors.
func FromArrowSchema(as *arrow.Schema) (*schema.Schema, error) {
	if as == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "arrow schema is required")
	}
	fields := make([]schema.Field, 0, as.NumFields())
	for _, f := range as.Fields() {
		field, err := fromArrowField(f.Name, f, false, f.Name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return schema.New(fields...)
}

// fromArrowField converts f. nullable is set below nullable structs.
func fromArrowField(name string, f arrow.Field, nullable bool, path string) (schema.Field, error) {
	switch dt := f.Type.(type) {
	case *arrow.ListType:
		elem := dt.ElemField()
		if _, nested := elem.Type.(*arrow.ListType); nested {
			return schema.Field{}, unsupported(path, f.Type)
		}
		field, err := fromArrowField(name, elem, false, path)
		if err != nil {
			return schema.Field{}, err
		}
		return field.AsRepeated(), nil

	case *arrow.MapType:
		key, err := fromArrowType(dt.KeyType(), path)
		if err != nil {
			return schema.Field{}, err
		}
		value, err := fromArrowType(dt.ItemType(), path)
		if err != nil {
			return schema.Field{}, err
		}
		v := schema.Leaf(schema.MapValueName, value)
		if dt.ItemField().Nullable {
			v = v.AsNullable()
		}
		return schema.MapOf(name, schema.Leaf(schema.MapKeyName, key), v), nil

	case *arrow.StructType:
		children := make([]schema.Field, 0, dt.NumFields())
		for _, c := range dt.Fields() {
			child, err := fromArrowField(c.Name, c, nullable || f.Nullable, path+schema.PathSeparator+c.Name)
			if err != nil {
				return schema.Field{}, err
			}
			children = append(children, child)
		}
		return schema.Group(name, children...), nil

	default:
		t, err := fromArrowType(f.Type, path)
		if err != nil {
			return schema.Field{}, err
		}
		leaf := schema.Leaf(name, t)
		if nullable || f.Nullable {
			leaf = leaf.AsNullable()
		}
		return leaf, nil
	}
}

func fromArrowType(dt arrow.DataType, path string) (schema.ElementType, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return schema.TypeBool, nil
	case arrow.INT32:
		return schema.TypeInt32, nil
	case arrow.INT64:
		return schema.TypeInt64, nil
	case arrow.FLOAT32:
		return schema.TypeFloat32, nil
	case arrow.FLOAT64:
		return schema.TypeFloat64, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return schema.TypeString, nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return schema.TypeBytes, nil
	case arrow.TIMESTAMP:
		return schema.TypeTimestamp, nil
	default:
		return schema.TypeInvalid, unsupported(path, dt)
	}
}

func unsupported(path string, dt arrow.DataType) error {
	return errors.New(errors.ErrorTypeCapability, "unsupported arrow type").
		WithDetail("path", path).
		WithDetail("type", dt.String())
}
