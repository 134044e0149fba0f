package container

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// typed is the flat container for element type T. valid is only
// maintained for nullable containers.
type typed[T any] struct {
	typ      schema.ElementType
	nullable bool
	values   []T
	valid    []bool
	convert  func(any) (T, error)
	size     func(T) int64
}

func newTyped[T any](t schema.ElementType, nullable bool, capacity int, convert func(any) (T, error), size func(T) int64) *typed[T] {
	c := &typed[T]{
		typ:      t,
		nullable: nullable,
		values:   make([]T, 0, capacity),
		convert:  convert,
		size:     size,
	}
	if nullable {
		c.valid = make([]bool, 0, capacity)
	}
	return c
}

func (c *typed[T]) Type() schema.ElementType { return c.typ }
func (c *typed[T]) Nullable() bool           { return c.nullable }
func (c *typed[T]) Depth() int               { return 0 }
func (c *typed[T]) Len() int                 { return len(c.values) }

// Get returns the value at i. Bytes are copied so callers cannot edit
// the container through a returned value.
func (c *typed[T]) Get(i int) any {
	if c.nullable && !c.valid[i] {
		return nil
	}
	if b, ok := any(c.values[i]).([]byte); ok {
		return bytes.Clone(b)
	}
	return c.values[i]
}

func (c *typed[T]) Append(v any) error {
	if v == nil {
		if !c.nullable {
			return errors.New(errors.ErrorTypeValidation, "null value for non-nullable container").
				WithDetail("type", c.typ.String())
		}
		var zero T
		c.values = append(c.values, zero)
		c.valid = append(c.valid, false)
		return nil
	}

	val, err := c.convert(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "cannot convert value").
			WithDetail("type", c.typ.String()).
			WithDetail("value_type", fmt.Sprintf("%T", v))
	}
	c.values = append(c.values, val)
	if c.nullable {
		c.valid = append(c.valid, true)
	}
	return nil
}

func (c *typed[T]) AppendAll(values ...any) error {
	for _, v := range values {
		if err := c.Append(v); err != nil {
			return err
		}
	}
	return nil
}

func (c *typed[T]) RemoveAt(i int) error {
	if i < 0 || i >= len(c.values) {
		return rangeError(i, len(c.values))
	}
	c.values = append(c.values[:i], c.values[i+1:]...)
	if c.nullable {
		c.valid = append(c.valid[:i], c.valid[i+1:]...)
	}
	return nil
}

func (c *typed[T]) Slice(offset, count int) Container {
	offset, count = clamp(offset, count, len(c.values))
	out := newTyped(c.typ, c.nullable, count, c.convert, c.size)
	out.values = append(out.values, c.values[offset:offset+count]...)
	if c.nullable {
		out.valid = append(out.valid, c.valid[offset:offset+count]...)
	}
	return out
}

func (c *typed[T]) Values() []any {
	out := make([]any, len(c.values))
	for i := range c.values {
		out[i] = c.Get(i)
	}
	return out
}

func (c *typed[T]) Clear() {
	c.values = c.values[:0]
	if c.nullable {
		c.valid = c.valid[:0]
	}
}

func (c *typed[T]) MemoryUsage() int64 {
	total := int64(len(c.valid))
	for _, v := range c.values {
		total += c.size(v)
	}
	return total
}

// Converters below widen or parse loosely typed input. Narrowing integer
// conversions fail when the value does not fit.

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("expected int, got %T", v)
	}
}

func toInt32(v any) (int32, error) {
	if x, ok := v.(int32); ok {
		return x, nil
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%d overflows int32", n)
	}
	return int32(n), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		n, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("expected float, got %T", v)
		}
		return float64(n), nil
	}
}

func toFloat32(v any) (float32, error) {
	switch x := v.(type) {
	case float32:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(x, 32)
		return float32(f), err
	default:
		f, err := toFloat64(v)
		return float32(f), err
	}
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
}

// toTimestamp normalizes to UTC. Integers are Unix microseconds.
func toTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected timestamp, got %T", v)
		}
		return time.UnixMicro(n).UTC(), nil
	}
}

func timestampSize(time.Time) int64 { return 24 }
