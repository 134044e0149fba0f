package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dremel/pkg/columnar"
	"github.com/ajitpratap0/dremel/pkg/config"
	"github.com/ajitpratap0/dremel/pkg/formats/parquet"
	"github.com/ajitpratap0/dremel/pkg/logger"
	"github.com/ajitpratap0/dremel/pkg/mmap"
	"github.com/ajitpratap0/dremel/pkg/table"
	"github.com/ajitpratap0/dremel/pkg/tracing"
)

func newSchemaCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "schema FILE",
		Short: "Print the schema of a Parquet file with its maximum levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, v, func(ctx context.Context, cfg *config.Config) error {
				store, err := readStore(ctx, cfg, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), store.Schema().String())
				return nil
			})
		},
	}
}

func newHeadCommand(v *viper.Viper) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "head FILE",
		Short: "Print the first rows of a Parquet file",
		Long: `Load a Parquet file into a store and print its first rows as
reassembled nested records.

Example:
  dremel head events.parquet --rows 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, v, func(ctx context.Context, cfg *config.Config) error {
				store, err := readStore(ctx, cfg, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), store.Format(rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", table.DefaultFormatRows, "Number of rows to print")
	return cmd
}

func newSnapshotCommand(v *viper.Viper) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot FILE",
		Short: "Write a compressed snapshot of a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, v, func(ctx context.Context, cfg *config.Config) error {
				store, err := readStore(ctx, cfg, args[0])
				if err != nil {
					return err
				}

				start := time.Now()
				data, err := snapshot(ctx, store, cfg)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o600); err != nil {
					return fmt.Errorf("failed to write snapshot %s: %w", out, err)
				}

				logger.Info("wrote snapshot",
					zap.String("path", out),
					zap.Int("rows", store.RowCount()),
					zap.Int("bytes", len(data)),
					zap.Int64("memory_bytes", store.MemoryUsage()),
					zap.String("algorithm", string(cfg.Snapshot.Algorithm)),
					zap.Duration("duration", time.Since(start)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Snapshot output path (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newRestoreCommand(v *viper.Viper) *cobra.Command {
	var schemaFile, out, codec string
	cmd := &cobra.Command{
		Use:   "restore SNAPSHOT",
		Short: "Convert a snapshot back into a Parquet file",
		Long: `Restore a snapshot into a store and write it as Parquet. The
schema is taken from an existing Parquet file.

Example:
  dremel restore events.snap --schema events.parquet --out copy.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, v, func(ctx context.Context, cfg *config.Config) error {
				source, err := readStore(ctx, cfg, schemaFile)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read snapshot %s: %w", args[0], err)
				}
				store, err := restore(ctx, source, data, cfg, filepath.Base(args[0]))
				if err != nil {
					return err
				}

				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				if err := parquet.WriteFile(ctx, f, store, parquet.WriterOptions{
					Compression: codec,
					Dictionary:  true,
					Logger:      logger.Get(),
				}); err != nil {
					return err
				}

				logger.Info("restored snapshot",
					zap.String("snapshot", args[0]),
					zap.String("path", out),
					zap.Int("rows", store.RowCount()))
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "Parquet file providing the schema (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Parquet output path (required)")
	cmd.Flags().StringVar(&codec, "parquet-compression", "snappy", "Parquet page compression")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func readStore(ctx context.Context, cfg *config.Config, path string) (*table.Store, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parquet.ReadFile(ctx, f, parquet.ReaderOptions{
		Logger:       logger.Get(),
		StoreOptions: storeOptions(cfg, filepath.Base(path)),
	})
}

func snapshot(ctx context.Context, store *table.Store, cfg *config.Config) (data []byte, err error) {
	_, span := tracing.Start(ctx, "columnar.Snapshot",
		attribute.String("algorithm", string(cfg.Snapshot.Algorithm)),
		attribute.Int("rows", store.RowCount()))
	defer func() { tracing.End(span, err) }()

	data, err = columnar.Snapshot(store, cfg.Snapshot)
	span.SetAttributes(attribute.Int("bytes", len(data)))
	return data, err
}

func restore(ctx context.Context, source *table.Store, data []byte, cfg *config.Config, name string) (store *table.Store, err error) {
	_, span := tracing.Start(ctx, "columnar.Restore", attribute.Int("bytes", len(data)))
	defer func() { tracing.End(span, err) }()

	return columnar.Restore(source.Schema(), data, storeOptions(cfg, name)...)
}
