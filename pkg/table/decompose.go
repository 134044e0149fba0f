package table

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/metrics"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// AddRow decomposes row into the leaf columns and increments the row
// count by one. If appending to any column fails, the entries already
// appended for this row are removed again.
func (s *Store) AddRow(row Row) error {
	if err := s.addRow(row); err != nil {
		s.metrics.Error(metrics.OpAddRow)
		return err
	}
	s.rowCount++
	s.metrics.RowAdded(s.rowCount)
	return nil
}

// AddRows adds rows in order and stops at the first failure.
func (s *Store) AddRows(rows ...Row) error {
	for i, row := range rows {
		if err := s.AddRow(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "cannot add row").
				WithDetail("row", i)
		}
	}
	return nil
}

func (s *Store) addRow(row Row) error {
	if row == nil {
		return errors.New(errors.ErrorTypeValidation, "row is required").
			WithDetail("param", "row")
	}

	// per leaf value at record level, indexed by PathID
	values := make([]any, s.schema.Len())
	if err := s.decompose(s.schema.Fields(), row, values); err != nil {
		return err
	}

	leaves := s.schema.Leaves()
	for i, leaf := range leaves {
		col, err := s.Values(leaf, true)
		if err == nil {
			err = col.Append(values[leaf.ID()])
		}
		if err != nil {
			s.rollback(leaves[:i])
			s.logger.Warn("rolled back partially added row",
				zap.String("path", leaf.Path()),
				zap.Error(err))
			return errors.Wrap(err, errors.ErrorTypeValidation, "cannot append row value").
				WithDetail("path", leaf.Path())
		}
	}
	return nil
}

func (s *Store) rollback(appended []*schema.Node) {
	for _, leaf := range appended {
		if col := s.columns[leaf.ID()]; col != nil && col.Len() > 0 {
			_ = col.RemoveAt(col.Len() - 1)
		}
	}
}

// decompose writes the value of every leaf below nodes into out.
func (s *Store) decompose(nodes []*schema.Node, row Row, out []any) error {
	if len(row) != len(nodes) {
		parent := "<root>"
		if len(nodes) > 0 && nodes[0].Parent() != nil {
			parent = nodes[0].Parent().Path()
		}
		return errors.New(errors.ErrorTypeValidation, "row arity does not match schema").
			WithDetail("path", parent).
			WithDetail("arity", len(row)).
			WithDetail("fields", len(nodes))
	}
	for i, node := range nodes {
		if err := s.decomposeCell(node, row[i], out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) decomposeCell(node *schema.Node, cell Cell, out []any) error {
	if node.Depth() > s.maxDepth {
		return depthError(node, s.maxDepth)
	}
	if isNull(cell) && !node.IsLeaf() {
		// absent groups and maps: every leaf below is null or empty
		for _, leaf := range node.Leaves() {
			out[leaf.ID()] = nil
		}
		return nil
	}

	switch node.Kind() {
	case schema.KindLeaf:
		v, ok := cell.(Scalar)
		if !ok && cell != nil {
			return cellMismatch(node, cell)
		}
		out[node.ID()] = v.Value
		return nil

	case schema.KindMap:
		keyID, valueID := node.Key().ID(), node.Value().ID()
		if !node.Repeated() {
			m, ok := cell.(Map)
			if !ok {
				return cellMismatch(node, cell)
			}
			out[keyID], out[valueID] = splitMap(m)
			return nil
		}
		rm, ok := cell.(RepeatedMap)
		if !ok {
			return cellMismatch(node, cell)
		}
		keys, values := make([]any, len(rm)), make([]any, len(rm))
		for i, m := range rm {
			keys[i], values[i] = splitMap(m)
		}
		out[keyID], out[valueID] = keys, values
		return nil

	case schema.KindGroup:
		if !node.Repeated() {
			g, ok := cell.(Group)
			if !ok {
				return cellMismatch(node, cell)
			}
			return s.decompose(node.Children(), g.Row, out)
		}
		rg, ok := cell.(RepeatedGroup)
		if !ok {
			return cellMismatch(node, cell)
		}
		return s.transpose(node, rg, out)

	default:
		return errors.New(errors.ErrorTypeInternal, "unknown schema node kind").
			WithDetail("path", node.Path())
	}
}

// transpose turns the occurrences of a repeated group into one sequence
// per descendant leaf, so every leaf column receives a single entry for
// the whole group.
func (s *Store) transpose(node *schema.Node, rg RepeatedGroup, out []any) error {
	leaves := node.Leaves()
	seqs := make([][]any, len(leaves))
	for i := range seqs {
		seqs[i] = make([]any, 0, len(rg))
	}
	for k, item := range rg {
		if err := s.decompose(node.Children(), item, out); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "invalid repeated group item").
				WithDetail("path", node.Path()).
				WithDetail("item", k)
		}
		for i, leaf := range leaves {
			seqs[i] = append(seqs[i], out[leaf.ID()])
		}
	}
	for i, leaf := range leaves {
		out[leaf.ID()] = seqs[i]
	}
	return nil
}

func splitMap(m Map) ([]any, []any) {
	keys, values := make([]any, len(m)), make([]any, len(m))
	for i, p := range m {
		keys[i], values[i] = p.Key, p.Value
	}
	return keys, values
}

func isNull(cell Cell) bool {
	if cell == nil {
		return true
	}
	v, ok := cell.(Scalar)
	return ok && v.Value == nil
}

func cellMismatch(node *schema.Node, cell Cell) error {
	return errors.New(errors.ErrorTypeValidation, "cell does not match schema node").
		WithDetail("path", node.Path()).
		WithDetail("kind", node.Kind().String()).
		WithDetail("repeated", node.Repeated()).
		WithDetail("cell", fmt.Sprintf("%T", cell))
}
