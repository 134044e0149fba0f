package parquet

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/logger"
	"github.com/ajitpratap0/dremel/pkg/table"
	"github.com/ajitpratap0/dremel/pkg/tracing"
)

// DefaultBatchSize is the number of rows read per Arrow record.
const DefaultBatchSize = 64 * 1024

// WriterOptions configures WriteFile.
type WriterOptions struct {
	// Compression names the page codec: none, snappy, gzip, brotli, lz4
	// or zstd. Empty selects snappy.
	Compression string
	// Dictionary enables Parquet dictionary pages.
	Dictionary bool
	Allocator  memory.Allocator
	Logger     *zap.Logger
}

// ReaderOptions configures ReadFile.
type ReaderOptions struct {
	// BatchSize is the number of rows per Arrow record; 0 selects
	// DefaultBatchSize.
	BatchSize int64
	Allocator memory.Allocator
	Logger    *zap.Logger
	// StoreOptions configure the returned store.
	StoreOptions []table.Option
}

var codecs = map[string]compress.Compression{
	"":             compress.Codecs.Snappy,
	"none":         compress.Codecs.Uncompressed,
	"uncompressed": compress.Codecs.Uncompressed,
	"snappy":       compress.Codecs.Snappy,
	"gzip":         compress.Codecs.Gzip,
	"brotli":       compress.Codecs.Brotli,
	"lz4":          compress.Codecs.Lz4Raw,
	"zstd":         compress.Codecs.Zstd,
}

// Codec resolves a compression codec name.
func Codec(name string) (compress.Compression, error) {
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return compress.Codecs.Uncompressed, errors.New(errors.ErrorTypeConfig, "unsupported parquet compression").
			WithDetail("compression", name)
	}
	return c, nil
}

// WriteFile writes every row of store to w as one Parquet file.
func WriteFile(ctx context.Context, w io.Writer, store *table.Store, opts WriterOptions) (err error) {
	_, span := tracing.Start(ctx, "parquet.WriteFile", attribute.String("compression", opts.Compression))
	defer func() { tracing.End(span, err) }()

	codec, err := Codec(opts.Compression)
	if err != nil {
		return err
	}
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	log := logger.OrNop(opts.Logger)

	rec, err := ToRecord(store, mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(opts.Dictionary),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(mem),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot create parquet writer")
	}
	if rec.NumRows() > 0 {
		if err := fw.Write(rec); err != nil {
			_ = fw.Close()
			return errors.Wrap(err, errors.ErrorTypeFile, "cannot write parquet record").
				WithDetail("rows", rec.NumRows())
		}
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot close parquet writer")
	}

	span.SetAttributes(attribute.Int64("rows", rec.NumRows()))
	log.Debug("wrote parquet file",
		zap.Int64("rows", rec.NumRows()),
		zap.String("compression", codec.String()))
	return nil
}

// ReadFile reads a Parquet file into a new store whose schema is derived
// from the file's Arrow schema.
func ReadFile(ctx context.Context, r parquet.ReaderAtSeeker, opts ReaderOptions) (_ *table.Store, err error) {
	ctx, span := tracing.Start(ctx, "parquet.ReadFile")
	defer func() { tracing.End(span, err) }()

	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	log := logger.OrNop(opts.Logger)

	pf, err := file.NewParquetReader(r, file.WithReadProps(parquet.NewReaderProperties(mem)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open parquet file")
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: batch}, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot create arrow reader")
	}
	as, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot read arrow schema")
	}
	sch, err := FromArrowSchema(as)
	if err != nil {
		return nil, err
	}

	storeOpts := append([]table.Option{table.WithLogger(log)}, opts.StoreOptions...)
	store, err := table.NewStore(sch, storeOpts...)
	if err != nil {
		return nil, err
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot create record reader")
	}
	defer rr.Release()

	for rr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := AppendRecord(store, rr.Record()); err != nil {
			return nil, err
		}
	}
	if err := rr.Err(); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot read parquet records")
	}

	span.SetAttributes(
		attribute.Int64("file_rows", pf.NumRows()),
		attribute.Int("row_groups", pf.NumRowGroups()))
	log.Debug("read parquet file",
		zap.Int64("file_rows", pf.NumRows()),
		zap.Int("row_groups", pf.NumRowGroups()),
		zap.Int("rows", store.RowCount()))
	return store, nil
}
