package table

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/merge"
	"github.com/ajitpratap0/dremel/pkg/metrics"
	"github.com/ajitpratap0/dremel/pkg/schema"
)

func mustSchema(t *testing.T, fields ...schema.Field) *schema.Schema {
	t.Helper()
	s, err := schema.New(fields...)
	require.NoError(t, err)
	return s
}

func mustStore(t *testing.T, s *schema.Schema, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	store, err := NewStore(s, opts...)
	require.NoError(t, err)
	return store
}

func node(t *testing.T, s *schema.Schema, path string) *schema.Node {
	t.Helper()
	n, ok := s.Lookup(path)
	require.True(t, ok, path)
	return n
}

func nestedSchema(t *testing.T) *schema.Schema {
	return mustSchema(t,
		schema.Leaf("id", schema.TypeInt64),
		schema.Leaf("tags", schema.TypeString).AsRepeated(),
		schema.Map("attrs", schema.TypeString, schema.TypeInt64),
		schema.Group("items",
			schema.Leaf("sku", schema.TypeString),
			schema.Leaf("qty", schema.TypeInt32).AsNullable(),
			schema.Leaf("notes", schema.TypeString).AsRepeated(),
			schema.Map("props", schema.TypeString, schema.TypeString),
		).AsRepeated(),
		schema.Group("meta",
			schema.Leaf("source", schema.TypeString),
			schema.Leaf("score", schema.TypeFloat64).AsNullable(),
		),
		schema.Map("history", schema.TypeString, schema.TypeInt64).AsRepeated(),
	)
}

func nestedRows() []Row {
	return []Row{
		{
			Scalar{Value: int64(1)},
			Scalar{Value: []any{"a", "b"}},
			Map{{Key: "x", Value: int64(1)}},
			RepeatedGroup{
				{Scalar{Value: "s1"}, Scalar{Value: int32(2)}, Scalar{Value: []any{"n1"}}, Map{{Key: "k", Value: "v"}}},
				{Scalar{Value: "s2"}, Scalar{Value: nil}, Scalar{Value: []any{}}, Map{}},
			},
			Group{Row: Row{Scalar{Value: "web"}, Scalar{Value: nil}}},
			RepeatedMap{Map{{Key: "a", Value: int64(1)}}, Map{}},
		},
		{
			Scalar{Value: int64(2)},
			Scalar{Value: []any{}},
			Map{},
			RepeatedGroup{},
			Group{Row: Row{Scalar{Value: "api"}, Scalar{Value: 1.5}}},
			RepeatedMap{},
		},
	}
}

func TestMapScenario(t *testing.T) {
	s := mustSchema(t, schema.Map("m", schema.TypeString, schema.TypeInt64))
	store := mustStore(t, s)

	require.NoError(t, store.AddRow(Row{Map{{Key: "x", Value: 1}, {Key: "y", Value: 2}}}))
	require.NoError(t, store.AddRow(Row{Map{}}))
	assert.Equal(t, 2, store.RowCount())

	row, err := store.Row(0)
	require.NoError(t, err)
	assert.Equal(t, Row{Map{{Key: "x", Value: int64(1)}, {Key: "y", Value: int64(2)}}}, row)

	v, ok := row[0].(Map).Get("y")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	row, err = store.Row(1)
	require.NoError(t, err)
	assert.Equal(t, Row{Map{}}, row)
}

func TestMapGetBytesAndTimestampKeys(t *testing.T) {
	s := mustSchema(t,
		schema.Map("b", schema.TypeBytes, schema.TypeInt64),
		schema.Map("ts", schema.TypeTimestamp, schema.TypeString),
	)
	store := mustStore(t, s)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.AddRow(Row{
		Map{{Key: []byte("x"), Value: 1}, {Key: []byte("y"), Value: 2}},
		Map{{Key: at, Value: "new year"}},
	}))

	row, err := store.Row(0)
	require.NoError(t, err)

	v, ok := row[0].(Map).Get([]byte("y"))
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
	_, ok = row[0].(Map).Get([]byte("z"))
	assert.False(t, ok)
	_, ok = row[0].(Map).Get("x")
	assert.False(t, ok)

	v, ok = row[1].(Map).Get(at.In(time.FixedZone("CET", 3600)))
	assert.True(t, ok)
	assert.Equal(t, "new year", v)

	_, ok = Map{{Key: []any{1}, Value: 1}}.Get([]any{1})
	assert.True(t, ok)
}

func TestMaterializedBytesDoNotAliasStore(t *testing.T) {
	s := mustSchema(t,
		schema.Leaf("blob", schema.TypeBytes),
		schema.Leaf("blobs", schema.TypeBytes).AsRepeated(),
	)
	store := mustStore(t, s)
	require.NoError(t, store.AddRow(Row{
		Scalar{Value: []byte("one")},
		Scalar{Value: []any{[]byte("two")}},
	}))

	row, err := store.Row(0)
	require.NoError(t, err)
	row[0].(Scalar).Value.([]byte)[0] = 'X'
	row[1].(Scalar).Value.([]any)[0].([]byte)[0] = 'X'

	blob, _ := s.Lookup("blob")
	values, err := ColumnAs[[]byte](store, blob, 0, -1)
	require.NoError(t, err)
	values[0][1] = 'X'

	row, err = store.Row(0)
	require.NoError(t, err)
	assert.Equal(t, Row{
		Scalar{Value: []byte("one")},
		Scalar{Value: []any{[]byte("two")}},
	}, row)
}

func TestNestedRoundTrip(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)

	rows := nestedRows()
	require.NoError(t, store.AddRows(rows...))
	assert.Equal(t, len(rows), store.RowCount())

	got, err := store.Rows()
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	for _, row := range got {
		assert.Len(t, row, len(s.Fields()))
	}

	// one entry per record, regardless of nesting
	for _, leaf := range s.Leaves() {
		col, err := store.Values(leaf, false)
		require.NoError(t, err)
		assert.Equal(t, len(rows), col.Len(), leaf.Path())
		assert.Equal(t, leaf.MaxRepetitionLevel(), col.Depth(), leaf.Path())
	}
}

func TestNullCellsBecomeEmpty(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)

	require.NoError(t, store.AddRow(Row{
		Scalar{Value: 3},
		nil,
		nil,
		Scalar{Value: nil},
		Group{Row: Row{Scalar{Value: "cli"}, nil}},
		nil,
	}))

	row, err := store.Row(0)
	require.NoError(t, err)
	assert.Equal(t, Row{
		Scalar{Value: int64(3)},
		Scalar{Value: []any{}},
		Map{},
		RepeatedGroup{},
		Group{Row: Row{Scalar{Value: "cli"}, Scalar{Value: nil}}},
		RepeatedMap{},
	}, row)
}

func TestAddIncrementsOnce(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)

	const n = 25
	for i := 0; i < n; i++ {
		require.NoError(t, store.AddRow(nestedRows()[i%2]))
	}
	assert.Equal(t, n, store.RowCount())
}

func TestRepeatedGroupTranspose(t *testing.T) {
	s := mustSchema(t, schema.Group("g", schema.Leaf("a", schema.TypeInt64)).AsRepeated())
	store := mustStore(t, s)

	require.NoError(t, store.AddRow(Row{RepeatedGroup{{Scalar{Value: 1}}, {Scalar{Value: 2}}}}))
	require.NoError(t, store.AddRow(Row{RepeatedGroup{{Scalar{Value: 3}}}}))

	col, err := store.Column(node(t, s, "g.a"), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1), int64(2)}, []any{int64(3)}}, container.ToSlice(col))
}

func TestAddRowValidation(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)

	tests := []struct {
		name string
		row  Row
	}{
		{"nil row", nil},
		{"short row", Row{Scalar{Value: 1}}},
		{"map for leaf", Row{Map{}, nil, nil, nil, Group{Row: Row{Scalar{Value: "a"}, nil}}, nil}},
		{"scalar for repeated group", Row{Scalar{Value: 1}, nil, nil, Scalar{Value: 5}, Group{Row: Row{Scalar{Value: "a"}, nil}}, nil}},
		{"map for repeated map", Row{Scalar{Value: 1}, nil, nil, nil, Group{Row: Row{Scalar{Value: "a"}, nil}}, Map{}}},
		{"group arity", Row{Scalar{Value: 1}, nil, nil, nil, Group{Row: Row{Scalar{Value: "a"}}}, nil}},
		{"repeated group item arity", Row{Scalar{Value: 1}, nil, nil, RepeatedGroup{{Scalar{Value: "s"}}}, Group{Row: Row{Scalar{Value: "a"}, nil}}, nil}},
		{"unconvertible value", Row{Scalar{Value: "one"}, nil, nil, nil, Group{Row: Row{Scalar{Value: "a"}, nil}}, nil}},
		{"null required leaf", Row{Scalar{Value: 1}, nil, nil, nil, Group{Row: Row{nil, nil}}, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.AddRow(tt.row)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), err.Error())
			assert.Equal(t, 0, store.RowCount())
		})
	}
}

func TestAddRowRollsBack(t *testing.T) {
	s := mustSchema(t,
		schema.Leaf("a", schema.TypeInt64),
		schema.Leaf("b", schema.TypeInt64),
	)
	store := mustStore(t, s)
	require.NoError(t, store.AddRow(Row{Scalar{Value: 1}, Scalar{Value: 2}}))

	err := store.AddRow(Row{Scalar{Value: 3}, Scalar{Value: "x"}})
	require.Error(t, err)
	path, ok := errors.Detail(err, "path")
	require.True(t, ok)
	assert.Equal(t, "b", path)

	col, err := store.Values(node(t, s, "a"), false)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, col.Values())
	assert.Equal(t, 1, store.RowCount())
}

func TestRowIndexOutOfRange(t *testing.T) {
	store := mustStore(t, nestedSchema(t))
	require.NoError(t, store.AddRow(nestedRows()[0]))

	for _, index := range []int{-1, 1, 100} {
		_, err := store.Row(index)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRange))

		err = store.RemoveRow(index)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRange))
	}
}

func TestRemoveRow(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)
	rows := nestedRows()
	require.NoError(t, store.AddRows(rows...))

	require.NoError(t, store.RemoveRow(0))
	assert.Equal(t, 1, store.RowCount())

	row, err := store.Row(0)
	require.NoError(t, err)
	assert.Equal(t, rows[1], row)
}

func TestColumn(t *testing.T) {
	s := mustSchema(t, schema.Leaf("v", schema.TypeInt64).AsNullable())
	store := mustStore(t, s)
	for _, v := range []any{1, nil, 3, 4} {
		require.NoError(t, store.AddRow(Row{Scalar{Value: v}}))
	}
	n := node(t, s, "v")

	live, err := store.Column(n, 0, -1)
	require.NoError(t, err)
	live2, err := store.Values(n, false)
	require.NoError(t, err)
	assert.Same(t, live, live2)

	part, err := store.Column(n, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, int64(3), int64(4)}, part.Values())
	require.NoError(t, part.Append(5))
	assert.Equal(t, 4, live.Len())

	typed, err := ColumnAs[int64](store, n, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0, 3, 4}, typed)

	_, err = ColumnAs[string](store, n, 0, -1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestValuesStrictLookup(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)

	_, err := store.Values(node(t, s, "id"), false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "column does not exist for path")
	path, _ := errors.Detail(err, "path")
	assert.Equal(t, "id", path)

	c, err := store.Values(node(t, s, "items.notes"), true)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Depth())

	_, err = store.Values(node(t, s, "items"), true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	other := nestedSchema(t)
	_, err = store.Values(node(t, other, "id"), true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = store.Values(nil, true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestLoadColumnDictionary(t *testing.T) {
	s := mustSchema(t, schema.Leaf("name", schema.TypeString))
	store := mustStore(t, s)
	require.NoError(t, store.AddRow(Row{Scalar{Value: "pre"}}))

	dict := container.MustNew(schema.TypeString, false, 0, 3)
	require.NoError(t, dict.AppendAll("a", "b", "c"))

	n := node(t, s, "name")
	require.NoError(t, store.LoadColumn(n, &merge.Fragment{Dictionary: dict, Indexes: []int32{2, 0, 1}}))
	assert.Equal(t, 4, store.RowCount())

	got, err := ColumnAs[string](store, n, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "c", "a", "b"}, got)
}

func TestLoadColumnRepeatedGroup(t *testing.T) {
	s := mustSchema(t, schema.Group("g", schema.Leaf("a", schema.TypeInt64)).AsRepeated())
	store := mustStore(t, s)

	values := container.MustNew(schema.TypeInt64, false, 0, 3)
	require.NoError(t, values.AppendAll(1, 2, 3))

	require.NoError(t, store.LoadColumn(node(t, s, "g.a"), &merge.Fragment{
		Values:           values,
		RepetitionLevels: []int{0, 1, 0},
	}))
	assert.Equal(t, 2, store.RowCount())

	rows, err := store.Rows()
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{RepeatedGroup{{Scalar{Value: int64(1)}}, {Scalar{Value: int64(2)}}}},
		{RepeatedGroup{{Scalar{Value: int64(3)}}}},
	}, rows)
}

func TestLoadColumnRowCountIsShortest(t *testing.T) {
	s := mustSchema(t,
		schema.Leaf("a", schema.TypeInt64),
		schema.Leaf("b", schema.TypeInt64),
	)
	store := mustStore(t, s)

	load := func(path string, vs ...any) {
		c := container.MustNew(schema.TypeInt64, false, 0, len(vs))
		require.NoError(t, c.AppendAll(vs...))
		require.NoError(t, store.LoadColumn(node(t, s, path), &merge.Fragment{Values: c}))
	}
	load("a", 1, 2, 3)
	assert.Equal(t, 3, store.RowCount())

	_, err := store.Row(0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	load("b", 10, 20)
	assert.Equal(t, 2, store.RowCount())

	row, err := store.Row(1)
	require.NoError(t, err)
	assert.Equal(t, Row{Scalar{Value: int64(2)}, Scalar{Value: int64(20)}}, row)
}

func TestLoadColumnErrorsLeaveColumnUntouched(t *testing.T) {
	s := mustSchema(t, schema.Leaf("a", schema.TypeInt64))
	store := mustStore(t, s)
	require.NoError(t, store.AddRow(Row{Scalar{Value: 1}}))

	n := node(t, s, "a")
	values := container.MustNew(schema.TypeInt64, true, 0, 2)
	require.NoError(t, values.AppendAll(2, nil))
	err := store.LoadColumn(n, &merge.Fragment{Values: values, DefinitionLevels: []int{0, 0}})
	require.Error(t, err)

	got, err := ColumnAs[int64](store, n, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, got)
	assert.Equal(t, 1, store.RowCount())
}

func TestMapLengthMismatchOnRead(t *testing.T) {
	s := mustSchema(t, schema.Map("m", schema.TypeString, schema.TypeInt64))
	store := mustStore(t, s)

	keys := container.MustNew(schema.TypeString, false, 0, 2)
	require.NoError(t, keys.AppendAll("x", "y"))
	values := container.MustNew(schema.TypeInt64, false, 0, 1)
	require.NoError(t, values.AppendAll(1))

	require.NoError(t, store.LoadColumn(node(t, s, "m.key"), &merge.Fragment{Values: keys, RepetitionLevels: []int{0, 1}}))
	require.NoError(t, store.LoadColumn(node(t, s, "m.value"), &merge.Fragment{Values: values, RepetitionLevels: []int{0}}))
	require.Equal(t, 1, store.RowCount())

	_, err := store.Row(0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestChildlessRepeatedGroup(t *testing.T) {
	s := mustSchema(t,
		schema.Leaf("id", schema.TypeInt64),
		schema.Group("empty").AsRepeated(),
	)
	store := mustStore(t, s)

	require.NoError(t, store.AddRow(Row{Scalar{Value: 1}, RepeatedGroup{{}, {}}}))
	row, err := store.Row(0)
	require.NoError(t, err)
	assert.Equal(t, Row{Scalar{Value: int64(1)}, RepeatedGroup{}}, row)
}

func TestMaxDepth(t *testing.T) {
	s := mustSchema(t,
		schema.Group("a", schema.Group("b", schema.Leaf("c", schema.TypeInt64))),
	)
	store := mustStore(t, s, WithMaxDepth(2))

	err := store.AddRow(Row{Group{Row: Row{Group{Row: Row{Scalar{Value: 1}}}}}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	limit, _ := errors.Detail(err, "max_depth")
	assert.Equal(t, 2, limit)

	_, err = NewStore(s, WithMaxDepth(0))
	assert.Error(t, err)
	_, err = NewStore(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg)

	s := nestedSchema(t)
	store := mustStore(t, s, WithMetrics(collector, "orders"), WithCapacity(8))

	require.NoError(t, store.AddRows(nestedRows()...))
	_, err := store.Row(0)
	require.NoError(t, err)
	require.NoError(t, store.RemoveRow(1))
	assert.Error(t, store.AddRow(Row{}))

	count, err := testutil.GatherAndCount(reg, "test_rows_added_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, 2.0, counterValue(t, reg, "test_rows_added_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "test_rows_removed_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "test_rows_materialized_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "test_operation_errors_total"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestFormat(t *testing.T) {
	s := nestedSchema(t)
	store := mustStore(t, s)
	require.NoError(t, store.AddRows(nestedRows()...))

	out := store.Format(1)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "rows: 2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[0] {"))
	assert.Contains(t, lines[1], `"tags":["a","b"]`)
	assert.Contains(t, lines[1], `"attrs":{"x":1}`)
	assert.Equal(t, "... 1 more", lines[2])

	assert.Contains(t, store.String(), `"source":"api"`)

	data, err := MarshalRow(s.Fields(), nestedRows()[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":[]`)
}
