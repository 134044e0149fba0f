// Package dremel is an in-memory columnar store for nested records.
//
// Records are decomposed into one flat column per leaf of the schema. Each
// column keeps its values together with repetition and definition levels,
// so repeated, optional, grouped and map-valued fields can be reassembled
// into the original records without ambiguity.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/dremel/pkg/schema"
//	    "github.com/ajitpratap0/dremel/pkg/table"
//	)
//
//	s, _ := schema.New(
//	    schema.Leaf("id", schema.TypeInt64),
//	    schema.Leaf("tags", schema.TypeString).AsRepeated(),
//	    schema.Map("attrs", schema.TypeString, schema.TypeFloat64),
//	)
//	store, _ := table.NewStore(s)
//	_ = store.AddRow(table.Row{
//	    table.Scalar{Value: int64(1)},
//	    table.Scalar{Value: []any{"a", "b"}},
//	    table.Map{{Key: "score", Value: 0.5}},
//	})
//	row, _ := store.Row(0)
//
// # Key Packages
//
//	pkg/schema          - Schema tree with maximum repetition and definition levels
//	pkg/container       - Typed value containers and the repeated List type
//	pkg/levels          - Packing and unpacking of nested values into levels
//	pkg/merge           - Dictionary, definition and repetition merging
//	pkg/table           - The store: decomposition, assembly and column access
//	pkg/columnar        - Flat column chunks, their codec and store snapshots
//	pkg/formats/parquet - Arrow schema mapping and Parquet files
//	pkg/compression     - Snapshot compression algorithms
//	pkg/config          - YAML configuration
//	pkg/errors          - Structured error handling
//	pkg/logger          - Structured logging
//	pkg/metrics         - Prometheus store metrics
//
// # Command Line
//
// The dremel command loads Parquet files into a store:
//
//	dremel schema events.parquet
//	dremel head events.parquet --rows 5
//	dremel snapshot events.parquet --out events.snap --compression zstd
//	dremel restore events.snap --schema events.parquet --out copy.parquet
//
// Every persistent flag can also be set through a DREMEL_ environment
// variable, for example DREMEL_COMPRESSION=lz4.
package dremel
