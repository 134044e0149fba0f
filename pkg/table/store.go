// Package table implements the in-memory tabular store that backs nested
// rows with one value container per schema leaf.
//
// Rows are decomposed into their leaf values on write and reassembled by
// walking the schema on read. Leaves below n repeated ancestors are
// stored in containers of depth n, one element per top-level row:
//
//	s, _ := schema.New(
//	    schema.Leaf("id", schema.TypeInt64),
//	    schema.Map("attrs", schema.TypeString, schema.TypeInt64),
//	)
//	store, _ := table.NewStore(s)
//	_ = store.AddRow(table.Row{
//	    table.Scalar{Value: 1},
//	    table.Map{{Key: "x", Value: 1}},
//	})
//	row, _ := store.Row(0)
//
// A Store is not safe for concurrent mutation. Reads that do not create
// columns may run concurrently with each other.
package table

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/logger"
	"github.com/ajitpratap0/dremel/pkg/merge"
	"github.com/ajitpratap0/dremel/pkg/metrics"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

// Store maps every schema leaf to its value container.
type Store struct {
	schema   *schema.Schema
	columns  []container.Container // indexed by schema.PathID
	rowCount int

	factory  container.Factory
	logger   *zap.Logger
	metrics  *metrics.StoreMetrics
	maxDepth int
	capacity int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Debug events cover column creation, loads
// and removals.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logger.OrNop(l) }
}

// WithMetrics records store operations on collector under the given
// store name.
func WithMetrics(collector *metrics.Collector, name string) Option {
	return func(s *Store) { s.metrics = collector.ForStore(name) }
}

// WithMaxDepth bounds the recursion of row assembly and decomposition.
// It defaults to the schema's max depth.
func WithMaxDepth(depth int) Option {
	return func(s *Store) { s.maxDepth = depth }
}

// WithFactory replaces the container factory.
func WithFactory(f container.Factory) Option {
	return func(s *Store) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithCapacity sets the capacity hint for new containers.
func WithCapacity(n int) Option {
	return func(s *Store) { s.capacity = n }
}

// NewStore creates an empty store for sch.
func NewStore(sch *schema.Schema, opts ...Option) (*Store, error) {
	if sch == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "schema is required").
			WithDetail("param", "schema")
	}
	s := &Store{
		schema:   sch,
		columns:  make([]container.Container, sch.Len()),
		factory:  container.Default,
		logger:   zap.NewNop(),
		maxDepth: sch.MaxDepth(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxDepth <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "max depth must be positive").
			WithDetail("max_depth", s.maxDepth)
	}
	return s, nil
}

// Schema returns the store's schema.
func (s *Store) Schema() *schema.Schema { return s.schema }

// RowCount returns the number of top-level rows.
func (s *Store) RowCount() int { return s.rowCount }

// Values returns the live container of a leaf. A missing container is
// created when createIfMissing is set and reported as not found otherwise.
func (s *Store) Values(node *schema.Node, createIfMissing bool) (container.Container, error) {
	if err := s.checkLeaf(node); err != nil {
		return nil, err
	}
	if c := s.columns[node.ID()]; c != nil {
		return c, nil
	}
	if !createIfMissing {
		return nil, errors.New(errors.ErrorTypeNotFound, "column does not exist for path").
			WithDetail("path", node.Path())
	}

	c, err := s.factory.New(node.Type(), node.Nullable(), node.MaxRepetitionLevel(), s.capacity)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCapability, "cannot create column").
			WithDetail("path", node.Path())
	}
	s.columns[node.ID()] = c
	s.logger.Debug("created column",
		zap.String("path", node.Path()),
		zap.Stringer("type", node.Type()),
		zap.Int("depth", c.Depth()))
	return c, nil
}

func (s *Store) checkNode(node *schema.Node) error {
	if node == nil {
		return errors.New(errors.ErrorTypeValidation, "schema node is required").
			WithDetail("param", "node")
	}
	if !s.schema.Contains(node) {
		return errors.New(errors.ErrorTypeValidation, "node does not belong to the store schema").
			WithDetail("path", node.Path())
	}
	return nil
}

func (s *Store) checkLeaf(node *schema.Node) error {
	if err := s.checkNode(node); err != nil {
		return err
	}
	if !node.IsLeaf() {
		return errors.New(errors.ErrorTypeValidation, "only leaves have columns").
			WithDetail("path", node.Path()).
			WithDetail("kind", node.Kind().String())
	}
	return nil
}

// Column returns the values of a leaf in [offset, offset+count), clamped to
// the column length. offset 0 with count -1 returns the live container
// without copying; any other range is a copy.
func (s *Store) Column(node *schema.Node, offset, count int) (container.Container, error) {
	c, err := s.Values(node, false)
	if err != nil {
		s.metrics.Error(metrics.OpColumn)
		return nil, err
	}
	if offset == 0 && count == -1 {
		return c, nil
	}
	return c.Slice(offset, count), nil
}

// ColumnAs returns a range of a column as typed values. Nulls become the
// zero value of T; nested columns can be read with T = container.Container.
func ColumnAs[T any](s *Store, node *schema.Node, offset, count int) ([]T, error) {
	c, err := s.Column(node, offset, count)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		v := c.Get(i)
		if v == nil {
			var zero T
			out = append(out, zero)
			continue
		}
		t, ok := v.(T)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column value is %T, not %s", v,
				reflect.TypeOf((*T)(nil)).Elem()).
				WithDetail("path", node.Path()).
				WithDetail("index", i)
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadColumn merges a decoded fragment and appends the result to the
// leaf's column. The row count becomes the shortest column length.
func (s *Store) LoadColumn(node *schema.Node, f *merge.Fragment) error {
	if err := s.loadColumn(node, f); err != nil {
		s.metrics.Error(metrics.OpLoadColumn)
		return err
	}
	s.rowCount = s.shortestColumn()
	s.metrics.ColumnLoaded(s.rowCount)
	s.logger.Debug("loaded column",
		zap.String("path", node.Path()),
		zap.Int("row_count", s.rowCount))
	return nil
}

func (s *Store) loadColumn(node *schema.Node, f *merge.Fragment) error {
	if err := s.checkLeaf(node); err != nil {
		return err
	}
	merged, err := merge.Apply(node, f)
	if err != nil {
		return err
	}
	col, err := s.Values(node, true)
	if err != nil {
		return err
	}
	if merged.Depth() != col.Depth() {
		return errors.New(errors.ErrorTypeData, "merged column depth does not match").
			WithDetail("path", node.Path()).
			WithDetail("depth", merged.Depth()).
			WithDetail("want_depth", col.Depth())
	}

	before := col.Len()
	for i := 0; i < merged.Len(); i++ {
		v := merged.Get(i)
		if nested, ok := v.(container.Container); ok && merged == f.Values {
			// plain fragments are caller-owned
			v = nested.Slice(0, -1)
		}
		if err := col.Append(v); err != nil {
			truncate(col, before)
			return errors.Wrap(err, errors.ErrorTypeData, "cannot append merged value").
				WithDetail("path", node.Path()).
				WithDetail("index", i)
		}
	}
	return nil
}

func (s *Store) shortestColumn() int {
	n, found := 0, false
	for _, c := range s.columns {
		if c == nil {
			continue
		}
		if !found || c.Len() < n {
			n, found = c.Len(), true
		}
	}
	return n
}

func truncate(c container.Container, length int) {
	for c.Len() > length {
		_ = c.RemoveAt(c.Len() - 1)
	}
}

// RemoveRow removes the row at index from every column. A failure leaves
// the store inconsistent; it must be discarded.
func (s *Store) RemoveRow(index int) error {
	if err := s.checkIndex(index); err != nil {
		s.metrics.Error(metrics.OpRemoveRow)
		return err
	}
	for id, c := range s.columns {
		if c == nil {
			continue
		}
		if err := c.RemoveAt(index); err != nil {
			s.metrics.Error(metrics.OpRemoveRow)
			return errors.Wrap(err, errors.ErrorTypeData, "cannot remove row from column").
				WithDetail("path", s.schema.Node(schema.PathID(id)).Path()).
				WithDetail("index", index)
		}
	}
	s.rowCount--
	s.metrics.RowRemoved(s.rowCount)
	s.logger.Debug("removed row", zap.Int("index", index), zap.Int("row_count", s.rowCount))
	return nil
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= s.rowCount {
		return errors.New(errors.ErrorTypeRange, "row index out of range").
			WithDetail("index", index).
			WithDetail("row_count", s.rowCount)
	}
	return nil
}

// MemoryUsage estimates the bytes held by all columns.
func (s *Store) MemoryUsage() int64 {
	var total int64
	for _, c := range s.columns {
		if c != nil {
			total += c.MemoryUsage()
		}
	}
	return total
}
