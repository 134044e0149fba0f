package columnar

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ajitpratap0/dremel/pkg/compression"
	"github.com/ajitpratap0/dremel/pkg/config"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/schema"
	"github.com/ajitpratap0/dremel/pkg/table"
)

const (
	magic = "DRML"
	// Version is the snapshot format version written by Snapshot.
	Version    byte = 1
	headerSize      = len(magic) + 2
)

// Snapshot flattens every leaf column of store and returns the compressed
// encoding. Leaves without a column are skipped.
func Snapshot(store *table.Store, cfg config.SnapshotConfig) ([]byte, error) {
	if store == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "store is required")
	}
	id := compression.ID(cfg.Algorithm)
	if id < 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported snapshot compression algorithm").
			WithDetail("algorithm", cfg.Algorithm)
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: cfg.Algorithm, Level: cfg.Level})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot create compressor")
	}

	var chunks [][]byte
	for _, leaf := range store.Schema().Leaves() {
		col, err := store.Column(leaf, 0, -1)
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		chunk, err := Flatten(leaf, col, cfg.DictionaryThreshold)
		if err != nil {
			return nil, err
		}
		encoded, err := EncodeChunk(chunk)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, encoded)
	}

	var payload bytes.Buffer
	writeUvarint(&payload, uint64(store.RowCount())) // #nosec G115 - row counts are non-negative
	writeUvarint(&payload, uint64(len(chunks)))
	for _, c := range chunks {
		writeUvarint(&payload, uint64(len(c)))
		payload.Write(c)
	}

	compressed, err := comp.Compress(payload.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot compress snapshot").
			WithDetail("algorithm", cfg.Algorithm)
	}

	out := make([]byte, 0, headerSize+len(compressed))
	out = append(out, magic...)
	out = append(out, Version, byte(id))
	return append(out, compressed...), nil
}

// Restore rebuilds a store for sch from a snapshot. opts configure the new
// store.
func Restore(sch *schema.Schema, data []byte, opts ...table.Option) (*table.Store, error) {
	comp, payload, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	raw, err := comp.Decompress(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot decompress snapshot").
			WithDetail("algorithm", comp.Algorithm())
	}

	store, err := table.NewStore(sch, opts...)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(raw)
	rowCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read snapshot row count")
	}
	n, err := readCount(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read snapshot chunk count")
	}

	for i := 0; i < n; i++ {
		size, err := readCount(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read chunk length").
				WithDetail("chunk", i)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "truncated chunk").
				WithDetail("chunk", i)
		}
		chunk, err := DecodeChunk(buf)
		if err != nil {
			return nil, err
		}
		node, ok := sch.Lookup(chunk.Path)
		if !ok || !node.IsLeaf() {
			return nil, errors.New(errors.ErrorTypeNotFound, "snapshot column is not a schema leaf").
				WithDetail("path", chunk.Path)
		}
		if node.Type() != chunk.Type {
			return nil, errors.New(errors.ErrorTypeData, "snapshot column type does not match schema").
				WithDetail("path", chunk.Path).
				WithDetail("type", chunk.Type.String()).
				WithDetail("want_type", node.Type().String())
		}
		if err := store.LoadColumn(node, chunk.Fragment()); err != nil {
			return nil, err
		}
	}

	if r.Len() != 0 {
		return nil, errors.New(errors.ErrorTypeData, "trailing bytes after snapshot chunks").
			WithDetail("bytes", r.Len())
	}
	if uint64(store.RowCount()) != rowCount { // #nosec G115 - row counts are non-negative
		return nil, errors.New(errors.ErrorTypeData, "restored row count does not match snapshot").
			WithDetail("row_count", store.RowCount()).
			WithDetail("want_row_count", rowCount)
	}
	return store, nil
}

// Inspect returns the compression algorithm of a snapshot without
// decoding it.
func Inspect(data []byte) (compression.Algorithm, error) {
	comp, _, err := readHeader(data)
	if err != nil {
		return "", err
	}
	return comp.Algorithm(), nil
}

func readHeader(data []byte) (compression.Compressor, []byte, error) {
	if len(data) < headerSize || string(data[:len(magic)]) != magic {
		return nil, nil, errors.New(errors.ErrorTypeData, "not a snapshot")
	}
	version := data[len(magic)]
	if version != Version {
		return nil, nil, errors.New(errors.ErrorTypeCapability, "unsupported snapshot version").
			WithDetail("version", version)
	}
	id := int(data[len(magic)+1])
	if id >= len(compression.Algorithms) {
		return nil, nil, errors.New(errors.ErrorTypeData, "unknown snapshot compression algorithm").
			WithDetail("algorithm_id", id)
	}
	comp, err := compression.NewCompressor(&compression.Config{
		Algorithm: compression.Algorithms[id],
		Level:     compression.Default,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot create decompressor")
	}
	return comp, data[headerSize:], nil
}
