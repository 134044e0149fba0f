package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/ajitpratap0/dremel/pkg/columnar"
	"github.com/ajitpratap0/dremel/pkg/compression"
	"github.com/ajitpratap0/dremel/pkg/formats/parquet"
	"github.com/ajitpratap0/dremel/pkg/schema"
	"github.com/ajitpratap0/dremel/pkg/table"
)

func writeParquet(t *testing.T) string {
	t.Helper()
	s, err := schema.New(
		schema.Leaf("id", schema.TypeInt64),
		schema.Leaf("tags", schema.TypeString).AsRepeated(),
		schema.Map("attrs", schema.TypeString, schema.TypeInt64),
	)
	require.NoError(t, err)
	store, err := table.NewStore(s)
	require.NoError(t, err)
	require.NoError(t, store.AddRows(
		table.Row{table.Scalar{Value: int64(1)}, table.Scalar{Value: []any{"a", "b"}}, table.Map{{Key: "x", Value: int64(1)}}},
		table.Row{table.Scalar{Value: int64(2)}, table.Scalar{Value: []any{}}, table.Map{}},
	))

	path := filepath.Join(t.TempDir(), "events.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, parquet.WriteFile(context.Background(), f, store, parquet.WriterOptions{}))
	require.NoError(t, f.Close())
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, run(t, "version"), "Dremel v"+version)
}

func TestSchemaAndHead(t *testing.T) {
	path := writeParquet(t)

	out := run(t, "schema", path)
	assert.Contains(t, out, "id: int64 (rl=0 dl=0)")
	assert.Contains(t, out, "tags: string repeated (rl=1 dl=1)")
	assert.Contains(t, out, "attrs: map (rl=0 dl=0)")

	out = run(t, "head", path, "--rows", "1")
	assert.Contains(t, out, "rows: 2")
	assert.Contains(t, out, `"tags":["a","b"]`)
	assert.Contains(t, out, "... 1 more")
}

func TestSnapshotAndRestore(t *testing.T) {
	t.Setenv("DREMEL_COMPRESSION", "lz4")
	path := writeParquet(t)
	dir := t.TempDir()
	snap := filepath.Join(dir, "events.snap")

	run(t, "snapshot", path, "--out", snap)
	data, err := os.ReadFile(snap)
	require.NoError(t, err)
	algorithm, err := columnar.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, compression.LZ4, algorithm)

	copied := filepath.Join(dir, "copy.parquet")
	run(t, "restore", snap, "--schema", path, "--out", copied)

	original := readFile(t, path)
	restored := readFile(t, copied)
	want, err := original.Rows()
	require.NoError(t, err)
	got, err := restored.Rows()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTraceWritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := writeParquet(t)
	snap := filepath.Join(t.TempDir(), "events.snap")
	out := run(t, "snapshot", path, "--out", snap, "--trace")

	assert.Contains(t, out, `"Name":"dremel.snapshot"`)
	assert.Contains(t, out, `"Name":"parquet.ReadFile"`)
	assert.Contains(t, out, `"Name":"columnar.Snapshot"`)
}

func TestInvalidConfig(t *testing.T) {
	path := writeParquet(t)
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"schema", path, "--compression", "brotli"})
	assert.Error(t, root.Execute())
}

func readFile(t *testing.T, path string) *table.Store {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	store, err := parquet.ReadFile(context.Background(), f, parquet.ReaderOptions{})
	require.NoError(t, err)
	return store
}
