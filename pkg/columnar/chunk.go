package columnar

import (
	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/levels"
	"github.com/ajitpratap0/dremel/pkg/merge"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// minDictionaryValues is the smallest column considered for dictionary
// encoding.
const minDictionaryValues = 16

// Chunk is the physical form of one leaf column.
type Chunk struct {
	Path string
	Type schema.ElementType

	// Values holds the present values when the chunk is not dictionary
	// encoded.
	Values container.Container

	Dictionary container.Container
	Indexes    []int32

	// Levels are nil for leaves without repeated ancestors; definition
	// levels are also nil for required leaves.
	RepetitionLevels []int
	DefinitionLevels []int
}

// Flatten turns the column of node into a chunk. threshold is the
// distinct/total ratio under which string and bytes values are dictionary
// encoded; 0 disables dictionaries.
func Flatten(node *schema.Node, col container.Container, threshold float64) (*Chunk, error) {
	if node == nil || col == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "node and column are required")
	}
	if !node.IsLeaf() {
		return nil, errors.New(errors.ErrorTypeValidation, "only leaves can be flattened").
			WithDetail("path", node.Path())
	}

	dense, rls, dls, err := levels.Unpack(node, col)
	if err != nil {
		return nil, err
	}

	present := dense
	if dls != nil || node.Nullable() {
		if present, dls, err = levels.UnpackDefinitions(node, dense, dls); err != nil {
			return nil, err
		}
	}
	if present == col {
		// never hand out the live column
		present = col.Slice(0, -1)
	}

	chunk := &Chunk{
		Path:             node.Path(),
		Type:             node.Type(),
		Values:           present,
		RepetitionLevels: rls,
		DefinitionLevels: dls,
	}
	if useDictionary(present, threshold) {
		chunk.Dictionary, chunk.Indexes = encodeDictionary(present)
		chunk.Values = nil
	}
	return chunk, nil
}

// Fragment returns the chunk as input for the merge pipeline.
func (c *Chunk) Fragment() *merge.Fragment {
	return &merge.Fragment{
		Values:           c.Values,
		Dictionary:       c.Dictionary,
		Indexes:          c.Indexes,
		DefinitionLevels: c.DefinitionLevels,
		RepetitionLevels: c.RepetitionLevels,
	}
}

// ValueCount returns the number of present values.
func (c *Chunk) ValueCount() int {
	if c.Dictionary != nil {
		return len(c.Indexes)
	}
	if c.Values == nil {
		return 0
	}
	return c.Values.Len()
}

func useDictionary(values container.Container, threshold float64) bool {
	if threshold <= 0 || values.Len() < minDictionaryValues {
		return false
	}
	if t := values.Type(); t != schema.TypeString && t != schema.TypeBytes {
		return false
	}
	unique := make(map[string]struct{})
	for i := 0; i < values.Len(); i++ {
		unique[dictionaryKey(values.Get(i))] = struct{}{}
	}
	ratio := float64(len(unique)) / float64(values.Len())
	return ratio < threshold
}

func encodeDictionary(values container.Container) (container.Container, []int32) {
	dict := container.MustNew(values.Type(), false, 0, 0)
	codes := make(map[string]int32)
	indexes := make([]int32, 0, values.Len())

	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		key := dictionaryKey(v)
		code, exists := codes[key]
		if !exists {
			code = int32(dict.Len()) // #nosec G115 - bounded by the column length
			codes[key] = code
			_ = dict.Append(v)
		}
		indexes = append(indexes, code)
	}
	return dict, indexes
}

func dictionaryKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}
