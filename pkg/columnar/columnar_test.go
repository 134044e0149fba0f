package columnar

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/dremel/pkg/compression"
	"github.com/ajitpratap0/dremel/pkg/config"
	"github.com/ajitpratap0/dremel/pkg/container"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
	"github.com/ajitpratap0/dremel/pkg/table"
)

func ordersSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Leaf("id", schema.TypeInt64),
		schema.Leaf("status", schema.TypeString).AsNullable(),
		schema.Leaf("created", schema.TypeTimestamp),
		schema.Leaf("payload", schema.TypeBytes).AsNullable(),
		schema.Group("items",
			schema.Leaf("sku", schema.TypeString),
			schema.Leaf("qty", schema.TypeInt32).AsNullable(),
			schema.Leaf("price", schema.TypeFloat32),
			schema.Leaf("notes", schema.TypeString).AsRepeated(),
		).AsRepeated(),
		schema.Map("attrs", schema.TypeString, schema.TypeFloat64),
		schema.Leaf("flags", schema.TypeBool).AsRepeated(),
	)
	require.NoError(t, err)
	return s
}

func orderRows(n int) []table.Row {
	base := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)
	statuses := []any{"open", "closed", nil}

	rows := make([]table.Row, 0, n)
	for i := 0; i < n; i++ {
		var payload any
		if i%2 == 0 {
			payload = []byte(fmt.Sprintf("p%d", i))
		}
		items := table.RepeatedGroup{}
		for j := 0; j < i%3; j++ {
			var qty any
			if j == 0 {
				qty = int32(i)
			}
			notes := []any{}
			if j == 1 {
				notes = []any{"gift", "fragile"}
			}
			items = append(items, table.Row{
				table.Scalar{Value: fmt.Sprintf("sku-%d", j)},
				table.Scalar{Value: qty},
				table.Scalar{Value: float32(j) + 0.5},
				table.Scalar{Value: notes},
			})
		}
		attrs := table.Map{}
		if i%4 != 0 {
			attrs = append(attrs, table.Pair{Key: "weight", Value: float64(i) * 1.25})
		}
		rows = append(rows, table.Row{
			table.Scalar{Value: int64(i - 5)},
			table.Scalar{Value: statuses[i%len(statuses)]},
			table.Scalar{Value: base.Add(time.Duration(i) * time.Hour)},
			table.Scalar{Value: payload},
			items,
			attrs,
			table.Scalar{Value: []any{i%2 == 0, true}},
		})
	}
	return rows
}

func orderStore(t *testing.T, n int) *table.Store {
	t.Helper()
	store, err := table.NewStore(ordersSchema(t), table.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, store.AddRows(orderRows(n)...))
	return store
}

func leaf(t *testing.T, s *schema.Schema, path string) *schema.Node {
	t.Helper()
	n, ok := s.Lookup(path)
	require.True(t, ok, path)
	return n
}

func TestFlattenRepeatedLeaf(t *testing.T) {
	store := orderStore(t, 4)
	node := leaf(t, store.Schema(), "items.notes")
	col, err := store.Column(node, 0, -1)
	require.NoError(t, err)

	chunk, err := Flatten(node, col, 0)
	require.NoError(t, err)
	assert.Equal(t, "items.notes", chunk.Path)
	assert.Nil(t, chunk.Dictionary)
	// rows: [], [[]], [[],[gift,fragile]], []
	assert.Equal(t, []any{"gift", "fragile"}, chunk.Values.Values())
	assert.Equal(t, []int{0, 0, 0, 1, 2, 0}, chunk.RepetitionLevels)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 0}, chunk.DefinitionLevels)
	assert.Equal(t, 2, chunk.ValueCount())
}

func TestFlattenRequiredLeafCopies(t *testing.T) {
	store := orderStore(t, 3)
	node := leaf(t, store.Schema(), "id")
	col, err := store.Column(node, 0, -1)
	require.NoError(t, err)

	chunk, err := Flatten(node, col, 0.5)
	require.NoError(t, err)
	assert.Nil(t, chunk.RepetitionLevels)
	assert.Nil(t, chunk.DefinitionLevels)
	assert.NotSame(t, col, chunk.Values)

	// loading a chunk back into its own column must terminate
	require.NoError(t, store.LoadColumn(node, chunk.Fragment()))
	assert.Equal(t, 6, col.Len())
}

func TestFlattenNullableLeaf(t *testing.T) {
	store := orderStore(t, 3)
	node := leaf(t, store.Schema(), "status")
	col, err := store.Column(node, 0, -1)
	require.NoError(t, err)

	chunk, err := Flatten(node, col, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{"open", "closed"}, chunk.Values.Values())
	assert.Equal(t, []int{1, 1, 0}, chunk.DefinitionLevels)
	assert.Nil(t, chunk.RepetitionLevels)
}

func TestFlattenDictionary(t *testing.T) {
	store := orderStore(t, 30)
	node := leaf(t, store.Schema(), "status")
	col, err := store.Column(node, 0, -1)
	require.NoError(t, err)

	chunk, err := Flatten(node, col, 0.5)
	require.NoError(t, err)
	require.NotNil(t, chunk.Dictionary)
	assert.Nil(t, chunk.Values)
	assert.Equal(t, []any{"open", "closed"}, chunk.Dictionary.Values())
	assert.Len(t, chunk.Indexes, 20)
	assert.Equal(t, []int32{0, 1, 0, 1}, chunk.Indexes[:4])
	assert.Equal(t, 20, chunk.ValueCount())

	// every payload is distinct
	store = orderStore(t, 40)
	payload := leaf(t, store.Schema(), "payload")
	col, err = store.Column(payload, 0, -1)
	require.NoError(t, err)
	chunk, err = Flatten(payload, col, 0.5)
	require.NoError(t, err)
	assert.Nil(t, chunk.Dictionary)
	assert.NotNil(t, chunk.Values)
}

func TestFlattenRejectsNonLeaf(t *testing.T) {
	s := ordersSchema(t)
	_, err := Flatten(leaf(t, s, "items"), container.MustNew(schema.TypeString, false, 0, 0), 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Flatten(nil, nil, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestChunkEncoding(t *testing.T) {
	store := orderStore(t, 24)

	for _, node := range store.Schema().Leaves() {
		for _, threshold := range []float64{0, 0.5} {
			t.Run(fmt.Sprintf("%s/%v", node.Path(), threshold), func(t *testing.T) {
				col, err := store.Column(node, 0, -1)
				require.NoError(t, err)
				chunk, err := Flatten(node, col, threshold)
				require.NoError(t, err)

				data, err := EncodeChunk(chunk)
				require.NoError(t, err)
				decoded, err := DecodeChunk(data)
				require.NoError(t, err)

				assert.Equal(t, chunk.Path, decoded.Path)
				assert.Equal(t, chunk.Type, decoded.Type)
				assert.Equal(t, chunk.RepetitionLevels, decoded.RepetitionLevels)
				assert.Equal(t, chunk.DefinitionLevels, decoded.DefinitionLevels)
				assert.Equal(t, chunk.Indexes, decoded.Indexes)
				if chunk.Values != nil {
					assert.Equal(t, chunk.Values.Values(), decoded.Values.Values())
				} else {
					assert.Nil(t, decoded.Values)
				}
				if chunk.Dictionary != nil {
					assert.Equal(t, chunk.Dictionary.Values(), decoded.Dictionary.Values())
				}
			})
		}
	}
}

func TestDecodeChunkRejectsCorruptInput(t *testing.T) {
	store := orderStore(t, 5)
	node := leaf(t, store.Schema(), "items.sku")
	col, err := store.Column(node, 0, -1)
	require.NoError(t, err)
	chunk, err := Flatten(node, col, 0)
	require.NoError(t, err)
	data, err := EncodeChunk(chunk)
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":        nil,
		"truncated":    data[:len(data)-1],
		"trailing":     append(append([]byte{}, data...), 0),
		"invalid type": append([]byte{0, 0xff}, data[2:]...),
		"huge length":  {0xff, 0xff, 0xff, 0xff, 0x0f},
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeChunk(input)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData), err.Error())
		})
	}

	_, err = EncodeChunk(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestSnapshotRoundTrip(t *testing.T) {
	rows := orderRows(40)

	for _, algorithm := range compression.Algorithms {
		t.Run(string(algorithm), func(t *testing.T) {
			store := orderStore(t, len(rows))
			cfg := config.SnapshotConfig{
				Algorithm:           algorithm,
				Level:               compression.Default,
				DictionaryThreshold: 0.5,
			}

			data, err := Snapshot(store, cfg)
			require.NoError(t, err)
			assert.Equal(t, magic, string(data[:4]))

			got, err := Inspect(data)
			require.NoError(t, err)
			assert.Equal(t, algorithm, got)

			restored, err := Restore(store.Schema(), data, table.WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)
			assert.Equal(t, store.RowCount(), restored.RowCount())

			want, err := store.Rows()
			require.NoError(t, err)
			have, err := restored.Rows()
			require.NoError(t, err)
			assert.Equal(t, want, have)
		})
	}
}

func TestSnapshotEmptyStore(t *testing.T) {
	s := ordersSchema(t)
	store, err := table.NewStore(s)
	require.NoError(t, err)

	data, err := Snapshot(store, config.Default().Snapshot)
	require.NoError(t, err)

	restored, err := Restore(s, data)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.RowCount())
}

func TestSnapshotErrors(t *testing.T) {
	store := orderStore(t, 3)

	_, err := Snapshot(nil, config.Default().Snapshot)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Snapshot(store, config.SnapshotConfig{Algorithm: "brotli"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	data, err := Snapshot(store, config.Default().Snapshot)
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		_, err := Restore(store.Schema(), []byte("NOPE\x01\x00"))
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})
	t.Run("future version", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[4] = Version + 1
		_, err := Restore(store.Schema(), bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	})
	t.Run("unknown algorithm", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[5] = byte(len(compression.Algorithms))
		_, err := Restore(store.Schema(), bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})
	t.Run("other schema", func(t *testing.T) {
		other, err := schema.New(schema.Leaf("id", schema.TypeInt64))
		require.NoError(t, err)
		_, err = Restore(other, data)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
	t.Run("type mismatch", func(t *testing.T) {
		other, err := schema.New(schema.Leaf("id", schema.TypeString))
		require.NoError(t, err)
		_, err = Restore(other, data)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	})
}
