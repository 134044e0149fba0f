package container

import (
	"fmt"
	"reflect"

	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// List is a container of depth-1 containers. Appended containers are held
// by reference, so a child can keep growing after it was appended.
type List struct {
	typ      schema.ElementType
	nullable bool
	depth    int
	items    []Container
}

func newList(t schema.ElementType, nullable bool, depth, capacity int) *List {
	return &List{
		typ:      t,
		nullable: nullable,
		depth:    depth,
		items:    make([]Container, 0, capacity),
	}
}

func (l *List) Type() schema.ElementType { return l.typ }
func (l *List) Nullable() bool           { return l.nullable }
func (l *List) Depth() int               { return l.depth }
func (l *List) Len() int                 { return len(l.items) }

func (l *List) Get(i int) any { return l.items[i] }

// Item is Get without the interface conversion.
func (l *List) Item(i int) Container { return l.items[i] }

// Append adds one child list. v may be a Container of depth Depth()-1, a
// slice whose elements are converted recursively, or nil for an empty
// list.
func (l *List) Append(v any) error {
	child, err := l.child(v)
	if err != nil {
		return err
	}
	l.items = append(l.items, child)
	return nil
}

func (l *List) child(v any) (Container, error) {
	switch x := v.(type) {
	case nil:
		return MustNew(l.typ, l.nullable, l.depth-1, 0), nil
	case Container:
		if x.Depth() != l.depth-1 || x.Type() != l.typ {
			return nil, errors.New(errors.ErrorTypeValidation, "child container shape mismatch").
				WithDetail("want_depth", l.depth-1).
				WithDetail("depth", x.Depth()).
				WithDetail("want_type", l.typ.String()).
				WithDetail("type", x.Type().String())
		}
		return x, nil
	case []any:
		c := MustNew(l.typ, l.nullable, l.depth-1, len(x))
		if err := c.AppendAll(x...); err != nil {
			return nil, err
		}
		return c, nil
	case []byte:
		return nil, errors.New(errors.ErrorTypeValidation, "cannot append bytes as a list").
			WithDetail("depth", l.depth)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.New(errors.ErrorTypeValidation, "expected a list value").
			WithDetail("depth", l.depth).
			WithDetail("value_type", fmt.Sprintf("%T", v))
	}
	c := MustNew(l.typ, l.nullable, l.depth-1, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if err := c.Append(rv.Index(i).Interface()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (l *List) AppendAll(values ...any) error {
	for _, v := range values {
		if err := l.Append(v); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) RemoveAt(i int) error {
	if i < 0 || i >= len(l.items) {
		return rangeError(i, len(l.items))
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

// Slice deep-copies the selected children into a new List.
func (l *List) Slice(offset, count int) Container {
	offset, count = clamp(offset, count, len(l.items))
	out := newList(l.typ, l.nullable, l.depth, count)
	for _, c := range l.items[offset : offset+count] {
		out.items = append(out.items, c.Slice(0, -1))
	}
	return out
}

func (l *List) Values() []any {
	out := make([]any, len(l.items))
	for i, c := range l.items {
		out[i] = c
	}
	return out
}

func (l *List) Clear() {
	l.items = l.items[:0]
}

func (l *List) MemoryUsage() int64 {
	total := int64(len(l.items) * 16)
	for _, c := range l.items {
		total += c.MemoryUsage()
	}
	return total
}
