package schema

// Field describes one field of a schema before it is compiled into a
// Schema. Fields are plain values; the helpers below return modified
// copies so descriptions can be written inline:
//
//	s, err := schema.New(
//	    schema.Leaf("id", schema.TypeInt64),
//	    schema.Map("attrs", schema.TypeString, schema.TypeInt64),
//	    schema.Group("items",
//	        schema.Leaf("sku", schema.TypeString),
//	        schema.Leaf("qty", schema.TypeInt32).AsNullable(),
//	    ).AsRepeated(),
//	)
type Field struct {
	Name     string
	Kind     Kind
	Type     ElementType
	Repeated bool
	Nullable bool

	// Children of a KindGroup field, in order.
	Children []Field

	// Key and Value leaves of a KindMap field.
	Key   *Field
	Value *Field
}

// Leaf describes a required, non-repeated leaf.
func Leaf(name string, t ElementType) Field {
	return Field{Name: name, Kind: KindLeaf, Type: t}
}

// Group describes a nested group.
func Group(name string, children ...Field) Field {
	return Field{Name: name, Kind: KindGroup, Children: children}
}

// Map describes a map with leaf keys and leaf values. The value leaf is
// nullable.
func Map(name string, key, value ElementType) Field {
	k := Leaf(MapKeyName, key)
	v := Leaf(MapValueName, value).AsNullable()
	return Field{Name: name, Kind: KindMap, Key: &k, Value: &v}
}

// MapOf describes a map from explicit key and value leaf descriptions.
// Their names are replaced with MapKeyName and MapValueName.
func MapOf(name string, key, value Field) Field {
	key.Name = MapKeyName
	value.Name = MapValueName
	return Field{Name: name, Kind: KindMap, Key: &key, Value: &value}
}

// AsRepeated returns a copy of f that may occur 0..N times per parent.
func (f Field) AsRepeated() Field {
	f.Repeated = true
	return f
}

// AsNullable returns a copy of f whose leaf values may be null.
func (f Field) AsNullable() Field {
	f.Nullable = true
	return f
}
