package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dremel/pkg/compression"
	"github.com/ajitpratap0/dremel/pkg/config"
	"github.com/ajitpratap0/dremel/pkg/logger"
	"github.com/ajitpratap0/dremel/pkg/metrics"
	"github.com/ajitpratap0/dremel/pkg/table"
	"github.com/ajitpratap0/dremel/pkg/tracing"
)

var version = "0.1.0"

// collector is shared by every store of the process; the default
// registerer rejects duplicate registrations.
var (
	collector     *metrics.Collector
	collectorOnce sync.Once
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DREMEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "dremel",
		Short: "Dremel - nested columnar storage engine",
		Long: `Dremel stores nested records as flat columns with repetition and
definition levels. The CLI loads Parquet files into an in-memory store to
inspect them and to build compressed snapshots.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to YAML configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Int("max-depth", 0, "Maximum schema nesting depth")
	flags.String("compression", "", "Snapshot compression ("+algorithmNames()+")")
	flags.Float64("dictionary-threshold", -1, "Distinct/total ratio below which string columns are dictionary encoded")
	flags.Bool("metrics", false, "Record store metrics")
	flags.Bool("trace", false, "Write OpenTelemetry spans to stderr")
	_ = v.BindPFlags(flags)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Dremel v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(
		newSchemaCommand(v),
		newHeadCommand(v),
		newSnapshotCommand(v),
		newRestoreCommand(v),
	)
	return root
}

// loadConfig builds the configuration from defaults, the optional config
// file, then flags and DREMEL_* environment variables.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	if level := v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if depth := v.GetInt("max-depth"); depth > 0 {
		cfg.Engine.MaxDepth = depth
	}
	if algorithm := v.GetString("compression"); algorithm != "" {
		cfg.Snapshot.Algorithm = compression.Algorithm(algorithm)
	}
	if threshold := v.GetFloat64("dictionary-threshold"); threshold >= 0 {
		cfg.Snapshot.DictionaryThreshold = threshold
	}
	if v.GetBool("metrics") {
		cfg.Metrics.Enabled = true
	}
	if v.GetBool("trace") {
		cfg.Tracing.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// runCommand loads the configuration, installs tracing and runs fn inside
// a span named after the command. Spans are flushed before it returns.
func runCommand(cmd *cobra.Command, v *viper.Viper, fn func(context.Context, *config.Config) error) (err error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	shutdown, err := tracing.Init(cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil && err == nil {
			err = fmt.Errorf("failed to flush spans: %w", serr)
		}
	}()

	ctx, span := tracing.Start(cmd.Context(), "dremel."+cmd.Name())
	defer func() { tracing.End(span, err) }()
	return fn(ctx, cfg)
}

// storeOptions turns the engine and metrics configuration into store
// options for a store named name.
func storeOptions(cfg *config.Config, name string) []table.Option {
	opts := []table.Option{
		table.WithLogger(logger.With(zap.String("store", name))),
		table.WithMaxDepth(cfg.Engine.MaxDepth),
		table.WithCapacity(cfg.Engine.InitialCapacity),
	}
	if cfg.Metrics.Enabled {
		collectorOnce.Do(func() {
			collector = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
		})
		opts = append(opts, table.WithMetrics(collector, name))
	}
	return opts
}

func algorithmNames() string {
	names := make([]string, len(compression.Algorithms))
	for i, a := range compression.Algorithms {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
