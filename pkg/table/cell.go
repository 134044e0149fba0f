package table

import (
	"bytes"
	"reflect"
	"time"
)

// Row is one schema-shaped record. Its length always equals the number of
// fields at its level of the schema.
type Row []Cell

// Cell is one position of a Row. The set of variants is closed:
// Scalar, Group, RepeatedGroup, Map and RepeatedMap.
type Cell interface {
	cell()
}

// Scalar holds the value of a leaf. Repeated leaves hold a []any (nil is
// read back as an empty list); nullable leaves may hold nil.
type Scalar struct {
	Value any
}

// Group holds the fields of a non-repeated group.
type Group struct {
	Row Row
}

// RepeatedGroup holds the occurrences of a repeated group.
type RepeatedGroup []Row

// Pair is one map entry.
type Pair struct {
	Key   any
	Value any
}

// Map holds the entries of a non-repeated map, in insertion order.
type Map []Pair

// RepeatedMap holds the occurrences of a repeated map.
type RepeatedMap []Map

func (Scalar) cell()        {}
func (Group) cell()         {}
func (RepeatedGroup) cell() {}
func (Map) cell()           {}
func (RepeatedMap) cell()   {}

// Get returns the map value for key and whether it was present. Bytes
// keys match by content and timestamp keys by instant.
func (m Map) Get(key any) (any, bool) {
	for _, p := range m {
		if keyEqual(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

func keyEqual(a, b any) bool {
	switch x := a.(type) {
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
