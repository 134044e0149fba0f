package columnar

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// Chunk section flags
const (
	flagValues byte = 1 << iota
	flagDictionary
	flagRepetition
	flagDefinition
)

// EncodeChunk serializes a chunk.
//
// Layout: path, element type, section flags, then the present sections in
// the order repetition levels, definition levels, values, dictionary and
// indexes.
func EncodeChunk(c *Chunk) ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "chunk is required")
	}
	var buf bytes.Buffer

	writeString(&buf, c.Path)
	buf.WriteByte(byte(c.Type))

	var flags byte
	if c.Values != nil {
		flags |= flagValues
	}
	if c.Dictionary != nil {
		flags |= flagDictionary
	}
	if c.RepetitionLevels != nil {
		flags |= flagRepetition
	}
	if c.DefinitionLevels != nil {
		flags |= flagDefinition
	}
	buf.WriteByte(flags)

	if c.RepetitionLevels != nil {
		writeLevels(&buf, c.RepetitionLevels)
	}
	if c.DefinitionLevels != nil {
		writeLevels(&buf, c.DefinitionLevels)
	}
	if c.Values != nil {
		if err := writeValues(&buf, c.Values); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot encode values").
				WithDetail("path", c.Path)
		}
	}
	if c.Dictionary != nil {
		if err := writeValues(&buf, c.Dictionary); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot encode dictionary").
				WithDetail("path", c.Path)
		}
		writeUvarint(&buf, uint64(len(c.Indexes)))
		for _, idx := range c.Indexes {
			writeUvarint(&buf, uint64(idx)) // #nosec G115 - indexes are non-negative
		}
	}
	return buf.Bytes(), nil
}

// DecodeChunk parses the output of EncodeChunk.
func DecodeChunk(data []byte) (*Chunk, error) {
	r := bytes.NewReader(data)
	c, err := decodeChunk(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "corrupt chunk")
	}
	if r.Len() != 0 {
		return nil, errors.New(errors.ErrorTypeData, "trailing bytes after chunk").
			WithDetail("path", c.Path).
			WithDetail("bytes", r.Len())
	}
	return c, nil
}

func decodeChunk(r *bytes.Reader) (*Chunk, error) {
	path, err := readString(r)
	if err != nil {
		return nil, err
	}
	t, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	c := &Chunk{Path: path, Type: schema.ElementType(t)}
	if !c.Type.Valid() {
		return nil, fmt.Errorf("invalid element type %d", t)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	if flags&flagRepetition != 0 {
		if c.RepetitionLevels, err = readLevels(r); err != nil {
			return nil, err
		}
	}
	if flags&flagDefinition != 0 {
		if c.DefinitionLevels, err = readLevels(r); err != nil {
			return nil, err
		}
	}
	if flags&flagValues != 0 {
		if c.Values, err = readValues(r, c.Type); err != nil {
			return nil, err
		}
	}
	if flags&flagDictionary != 0 {
		if c.Dictionary, err = readValues(r, c.Type); err != nil {
			return nil, err
		}
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		c.Indexes = make([]int32, n)
		for i := range c.Indexes {
			idx, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, err
			}
			if idx >= uint64(c.Dictionary.Len()) {
				return nil, fmt.Errorf("dictionary index %d out of range", idx)
			}
			c.Indexes[i] = int32(idx) // #nosec G115 - bounded by the dictionary size
		}
	}
	return c, nil
}

func writeLevels(buf *bytes.Buffer, levels []int) {
	writeUvarint(buf, uint64(len(levels)))
	for _, l := range levels {
		writeUvarint(buf, uint64(l)) // #nosec G115 - levels are non-negative
	}
}

func readLevels(r *bytes.Reader) ([]int, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	levels := make([]int, n)
	for i := range levels {
		l, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		levels[i] = int(l) // #nosec G115 - levels are bounded by schema depth
	}
	return levels, nil
}

func writeValues(buf *bytes.Buffer, c container.Container) error {
	if c.Depth() != 0 {
		return fmt.Errorf("cannot encode nested container of depth %d", c.Depth())
	}
	writeUvarint(buf, uint64(c.Len()))
	nullable := c.Nullable()
	if nullable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	for i := 0; i < c.Len(); i++ {
		v := c.Get(i)
		if nullable {
			if v == nil {
				buf.WriteByte(0)
				continue
			}
			buf.WriteByte(1)
		}
		if err := writeValue(buf, c.Type(), v); err != nil {
			return err
		}
	}
	return nil
}

func writeValue(buf *bytes.Buffer, t schema.ElementType, v any) error {
	switch t {
	case schema.TypeBool:
		if v.(bool) {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case schema.TypeInt32:
		writeVarint(buf, int64(v.(int32)))
	case schema.TypeInt64:
		writeVarint(buf, v.(int64))
	case schema.TypeFloat32, schema.TypeFloat64:
		// compression handles redundancy
		return binary.Write(buf, binary.LittleEndian, v)
	case schema.TypeString:
		writeString(buf, v.(string))
	case schema.TypeBytes:
		b := v.([]byte)
		writeUvarint(buf, uint64(len(b)))
		buf.Write(b)
	case schema.TypeTimestamp:
		ts := v.(time.Time)
		writeVarint(buf, ts.Unix())
		writeUvarint(buf, uint64(ts.Nanosecond())) // #nosec G115 - nanoseconds are non-negative
	default:
		return fmt.Errorf("unsupported element type %s", t)
	}
	return nil
}

func readValues(r *bytes.Reader, t schema.ElementType) (container.Container, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	nullable := flag == 1

	c, err := container.New(t, nullable, 0, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if nullable {
			present, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if present == 0 {
				_ = c.Append(nil)
				continue
			}
		}
		v, err := readValue(r, t)
		if err != nil {
			return nil, err
		}
		if err := c.Append(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func readValue(r *bytes.Reader, t schema.ElementType) (any, error) {
	switch t {
	case schema.TypeBool:
		b, err := r.ReadByte()
		return b == 1, err
	case schema.TypeInt32:
		v, err := binary.ReadVarint(r)
		return int32(v), err // #nosec G115 - written from an int32
	case schema.TypeInt64:
		return binary.ReadVarint(r)
	case schema.TypeFloat32:
		var f float32
		err := binary.Read(r, binary.LittleEndian, &f)
		return f, err
	case schema.TypeFloat64:
		var f float64
		err := binary.Read(r, binary.LittleEndian, &f)
		return f, err
	case schema.TypeString:
		return readString(r)
	case schema.TypeBytes:
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		_, err = io.ReadFull(r, b)
		return b, err
	case schema.TypeTimestamp:
		sec, err := binary.ReadVarint(r)
		if err != nil {
			return nil, err
		}
		nsec, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		return time.Unix(sec, int64(nsec)).UTC(), nil // #nosec G115 - below one second
	default:
		return nil, fmt.Errorf("unsupported element type %s", t)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readCount(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// readCount reads a length prefix and rejects lengths that cannot fit in
// the remaining input, since every element takes at least one byte.
func readCount(r *bytes.Reader) (int, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()) {
		return 0, fmt.Errorf("length %d exceeds remaining %d bytes", n, r.Len())
	}
	return int(n), nil // #nosec G115 - bounded by the input size
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}

// writeVarint writes a zigzag encoded variable-length integer, readable
// with binary.ReadVarint.
func writeVarint(buf *bytes.Buffer, v int64) {
	uv := uint64(v<<1) ^ uint64(v>>63) // #nosec G115 - intentional zigzag encoding
	writeUvarint(buf, uv)
}
