// Package container provides the typed value containers that back every
// schema path of a store.
//
// A container is selected from a closed set of element types at
// construction time. Depth 0 containers hold scalars of one element type,
// optionally nullable. A depth n container holds depth n-1 containers and
// is used for leaves below n repeated ancestors.
//
// Append accepts loosely typed input and converts it to the container's
// element type:
//
//	c, _ := container.New(schema.TypeInt64, false, 0, 0)
//	_ = c.Append(42)          // int is widened to int64
//	_ = c.Append("7")         // numeric strings are parsed
//
//	l, _ := container.New(schema.TypeString, false, 1, 0)
//	_ = l.Append([]any{"a", "b"})
//	_ = l.Append(nil)         // empty list
package container

import (
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// Container is a growable, index-addressable sequence of values of one
// element type.
type Container interface {
	// Type returns the element type of the scalars at depth 0.
	Type() schema.ElementType
	// Nullable reports whether the scalars at depth 0 may be null.
	Nullable() bool
	// Depth is 0 for flat containers and n for containers of depth n-1
	// containers.
	Depth() int
	Len() int
	// Get returns the scalar (or nil) at i for flat containers and the
	// child Container at i otherwise. It panics when i is out of range.
	Get(i int) any
	Append(v any) error
	AppendAll(values ...any) error
	RemoveAt(i int) error
	// Slice returns a copy of the range [offset, offset+count), clamped to
	// the container's length. A negative count means "to the end".
	Slice(offset, count int) Container
	// Values returns the elements as a fresh slice.
	Values() []any
	Clear()
	// MemoryUsage is an estimate of the bytes held by the values.
	MemoryUsage() int64
}

// Factory creates empty containers.
type Factory interface {
	New(t schema.ElementType, nullable bool, depth, capacity int) (Container, error)
}

type defaultFactory struct{}

func (defaultFactory) New(t schema.ElementType, nullable bool, depth, capacity int) (Container, error) {
	return New(t, nullable, depth, capacity)
}

// Default is the factory backed by New.
var Default Factory = defaultFactory{}

// New returns an empty container of element type t nested depth levels
// deep. capacity is a hint for the outermost container.
func New(t schema.ElementType, nullable bool, depth, capacity int) (Container, error) {
	if depth < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "container depth must not be negative").
			WithDetail("depth", depth)
	}
	if capacity < 0 {
		capacity = 0
	}
	if depth > 0 {
		if !t.Valid() {
			return nil, errors.New(errors.ErrorTypeCapability, "unsupported element type").
				WithDetail("type", t.String())
		}
		return newList(t, nullable, depth, capacity), nil
	}

	switch t {
	case schema.TypeBool:
		return newTyped(t, nullable, capacity, toBool, func(bool) int64 { return 1 }), nil
	case schema.TypeInt32:
		return newTyped(t, nullable, capacity, toInt32, func(int32) int64 { return 4 }), nil
	case schema.TypeInt64:
		return newTyped(t, nullable, capacity, toInt64, func(int64) int64 { return 8 }), nil
	case schema.TypeFloat32:
		return newTyped(t, nullable, capacity, toFloat32, func(float32) int64 { return 4 }), nil
	case schema.TypeFloat64:
		return newTyped(t, nullable, capacity, toFloat64, func(float64) int64 { return 8 }), nil
	case schema.TypeString:
		return newTyped(t, nullable, capacity, toString, func(s string) int64 { return int64(len(s)) + 16 }), nil
	case schema.TypeBytes:
		return newTyped(t, nullable, capacity, toBytes, func(b []byte) int64 { return int64(len(b)) + 24 }), nil
	case schema.TypeTimestamp:
		return newTyped(t, nullable, capacity, toTimestamp, timestampSize), nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported element type").
			WithDetail("type", t.String())
	}
}

// MustNew is New for callers that pass a known-valid element type.
func MustNew(t schema.ElementType, nullable bool, depth, capacity int) Container {
	c, err := New(t, nullable, depth, capacity)
	if err != nil {
		panic(err)
	}
	return c
}

// IsNullable reports whether the scalars held by c, at any depth, may be
// null.
func IsNullable(c Container) bool {
	return c != nil && c.Nullable()
}

// ToSlice converts a Container into plain []any trees. Other values are
// returned unchanged.
func ToSlice(v any) any {
	c, ok := v.(Container)
	if !ok {
		return v
	}
	out := make([]any, c.Len())
	for i := range out {
		if c.Depth() == 0 {
			out[i] = c.Get(i)
		} else {
			out[i] = ToSlice(c.Get(i))
		}
	}
	return out
}

func clamp(offset, count, length int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > length {
		offset = length
	}
	if count < 0 || offset+count > length {
		count = length - offset
	}
	return offset, count
}

func rangeError(i, length int) error {
	return errors.New(errors.ErrorTypeRange, "container index out of range").
		WithDetail("index", i).
		WithDetail("length", length)
}
