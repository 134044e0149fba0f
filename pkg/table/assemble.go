package table

import (
	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/metrics"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// lookupFunc resolves the value of a leaf at the current record and
// nesting position.
type lookupFunc func(leaf *schema.Node) (any, error)

// Row materializes the row at index.
func (s *Store) Row(index int) (Row, error) {
	row, err := s.row(index)
	if err != nil {
		s.metrics.Error(metrics.OpRow)
		return nil, err
	}
	s.metrics.RowMaterialized()
	return row, nil
}

// Rows materializes every row.
func (s *Store) Rows() ([]Row, error) {
	rows := make([]Row, 0, s.rowCount)
	for i := 0; i < s.rowCount; i++ {
		row, err := s.Row(i)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) row(index int) (Row, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	get := func(leaf *schema.Node) (any, error) {
		c := s.columns[leaf.ID()]
		if c == nil {
			return nil, errors.New(errors.ErrorTypeNotFound, "column does not exist for path").
				WithDetail("path", leaf.Path())
		}
		if index >= c.Len() {
			return nil, errors.New(errors.ErrorTypeData, "column is shorter than the row count").
				WithDetail("path", leaf.Path()).
				WithDetail("length", c.Len()).
				WithDetail("row_count", s.rowCount)
		}
		return c.Get(index), nil
	}
	return s.assemble(s.schema.Fields(), get)
}

func (s *Store) assemble(nodes []*schema.Node, get lookupFunc) (Row, error) {
	row := make(Row, len(nodes))
	for i, node := range nodes {
		cell, err := s.assembleCell(node, get)
		if err != nil {
			return nil, err
		}
		row[i] = cell
	}
	return row, nil
}

func (s *Store) assembleCell(node *schema.Node, get lookupFunc) (Cell, error) {
	if node.Depth() > s.maxDepth {
		return nil, depthError(node, s.maxDepth)
	}

	switch node.Kind() {
	case schema.KindLeaf:
		v, err := get(node)
		if err != nil {
			return nil, err
		}
		return Scalar{Value: container.ToSlice(v)}, nil

	case schema.KindMap:
		keys, err := nestedAt(node.Key(), get)
		if err != nil {
			return nil, err
		}
		values, err := nestedAt(node.Value(), get)
		if err != nil {
			return nil, err
		}
		if !node.Repeated() {
			return zipMap(node, keys, values)
		}
		if keys.Len() != values.Len() {
			return nil, mapMismatch(node, keys.Len(), values.Len())
		}
		maps := make(RepeatedMap, keys.Len())
		for i := range maps {
			m, err := zipMap(node, keys.Get(i).(container.Container), values.Get(i).(container.Container))
			if err != nil {
				return nil, err
			}
			maps[i] = m
		}
		return maps, nil

	case schema.KindGroup:
		if !node.Repeated() {
			row, err := s.assemble(node.Children(), get)
			if err != nil {
				return nil, err
			}
			return Group{Row: row}, nil
		}
		return s.assembleRepeated(node, get)

	default:
		return nil, errors.New(errors.ErrorTypeInternal, "unknown schema node kind").
			WithDetail("path", node.Path())
	}
}

// assembleRepeated slices every descendant leaf at the group's nesting
// level and assembles one child row per occurrence. The occurrence count
// is the shortest leaf sequence, zero for a group without leaves.
func (s *Store) assembleRepeated(node *schema.Node, get lookupFunc) (Cell, error) {
	leaves := node.Leaves()
	seqs := make(map[schema.PathID]container.Container, len(leaves))
	count := 0
	for i, leaf := range leaves {
		seq, err := nestedAt(leaf, get)
		if err != nil {
			return nil, err
		}
		seqs[leaf.ID()] = seq
		if i == 0 || seq.Len() < count {
			count = seq.Len()
		}
	}

	group := make(RepeatedGroup, 0, count)
	for k := 0; k < count; k++ {
		sub := func(leaf *schema.Node) (any, error) {
			seq, ok := seqs[leaf.ID()]
			if !ok {
				return nil, errors.New(errors.ErrorTypeInternal, "leaf outside repeated group").
					WithDetail("path", leaf.Path()).
					WithDetail("group", node.Path())
			}
			return seq.Get(k), nil
		}
		row, err := s.assemble(node.Children(), sub)
		if err != nil {
			return nil, err
		}
		group = append(group, row)
	}
	return group, nil
}

// nestedAt resolves a leaf value that must be a list at this position.
func nestedAt(leaf *schema.Node, get lookupFunc) (container.Container, error) {
	v, err := get(leaf)
	if err != nil {
		return nil, err
	}
	c, ok := v.(container.Container)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, "expected a nested sequence").
			WithDetail("path", leaf.Path())
	}
	return c, nil
}

func zipMap(node *schema.Node, keys, values container.Container) (Map, error) {
	if keys.Len() != values.Len() {
		return nil, mapMismatch(node, keys.Len(), values.Len())
	}
	m := make(Map, keys.Len())
	for i := range m {
		m[i] = Pair{Key: keys.Get(i), Value: values.Get(i)}
	}
	return m, nil
}

func mapMismatch(node *schema.Node, keys, values int) error {
	return errors.New(errors.ErrorTypeData, "map key and value sequences differ in length").
		WithDetail("path", node.Path()).
		WithDetail("keys", keys).
		WithDetail("values", values)
}

func depthError(node *schema.Node, maxDepth int) error {
	return errors.New(errors.ErrorTypeValidation, "schema nesting exceeds max depth").
		WithDetail("path", node.Path()).
		WithDetail("max_depth", maxDepth)
}
