// Package merge turns a decoded column fragment into final column values.
//
// A fragment read from storage may carry dictionary indexes, definition
// levels and repetition levels. Apply resolves them in a fixed order:
//
//  1. dictionary indexes are materialized into values,
//  2. definition levels insert nulls,
//  3. repetition levels regroup the padded sequence into nested lists.
//
// Indexes refer to dictionary entries before nulls exist, and repetition
// boundaries are defined over the null-padded sequence, so the order
// cannot change.
package merge

import (
	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/levels"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// Fragment is one decoded piece of a column.
type Fragment struct {
	// Values holds plain values, or values already decoded ahead of the
	// dictionary entries.
	Values container.Container
	// Dictionary holds distinct values referenced by Indexes.
	Dictionary container.Container
	Indexes    []int32

	DefinitionLevels []int
	RepetitionLevels []int

	// MaxValues caps the number of dictionary indexes consumed. Zero means
	// no cap.
	MaxValues int
}

// plain reports whether the fragment carries nothing to resolve.
func (f *Fragment) plain() bool {
	return f.Dictionary == nil && f.Indexes == nil &&
		f.DefinitionLevels == nil && f.RepetitionLevels == nil
}

// Apply resolves f against node. A plain fragment returns f.Values
// unchanged. Otherwise each stage produces a new container owned by the
// next stage; f.Dictionary is never modified.
//
// The result is flat when node has no repeated ancestors and a container
// of depth MaxRepetitionLevel otherwise, one element per record.
func Apply(node *schema.Node, f *Fragment) (container.Container, error) {
	if node == nil || f == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "node and fragment are required")
	}
	if !node.IsLeaf() {
		return nil, errors.New(errors.ErrorTypeValidation, "fragments apply to leaves only").
			WithDetail("path", node.Path())
	}

	values := f.Values
	if values == nil {
		var err error
		if values, err = container.New(node.Type(), true, 0, len(f.Indexes)); err != nil {
			return nil, err
		}
	}
	if f.plain() {
		return values, nil
	}
	if values.Depth() != 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "fragment values must be flat").
			WithDetail("path", node.Path()).
			WithDetail("depth", values.Depth())
	}

	if f.Dictionary != nil && f.Indexes != nil {
		var err error
		if values, err = materialize(node, values, f); err != nil {
			return nil, err
		}
	}

	if f.DefinitionLevels != nil {
		var err error
		if values, err = levels.PackDefinitions(node, values, f.DefinitionLevels); err != nil {
			return nil, err
		}
	}

	if f.RepetitionLevels != nil {
		var err error
		if values, err = levels.Pack(node, values, f.RepetitionLevels, f.DefinitionLevels); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// materialize appends the dictionary entries named by f.Indexes after the
// existing values, into a fresh container.
func materialize(node *schema.Node, values container.Container, f *Fragment) (container.Container, error) {
	indexes := f.Indexes
	if f.MaxValues > 0 {
		indexes = levels.TrimTail(indexes, f.MaxValues)
	}

	out := values.Slice(0, -1)
	for i, idx := range indexes {
		if idx < 0 || int(idx) >= f.Dictionary.Len() {
			return nil, errors.New(errors.ErrorTypeData, "dictionary index out of range").
				WithDetail("path", node.Path()).
				WithDetail("position", i).
				WithDetail("index", idx).
				WithDetail("dictionary_size", f.Dictionary.Len())
		}
		if err := out.Append(f.Dictionary.Get(int(idx))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot append dictionary value").
				WithDetail("path", node.Path()).
				WithDetail("position", i)
		}
	}
	return out, nil
}
