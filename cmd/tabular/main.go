package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabular/internal/pipeline"
	"github.com/ajitpratap0/tabular/pkg/compression"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/schema"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "tabular",
		Short: "Tabular - nested JSON to Arrow columnar converter",
		Long: `Tabular converts JSON documents with arbitrary nesting into strongly-typed
Arrow tables. Types are inferred per column and can be overridden with a
schema file; compressed inputs are decoded transparently.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tabular v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var (
		inputFile   string
		outputFile  string
		schemaFile  string
		configFile  string
		compressAlg string
		logLevel    string
		workers     int
		timeout     time.Duration
	)

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a JSON document to an Arrow table",
		Long: `Convert a JSON document (a top-level array or JSON lines) to an Arrow
table written in the IPC file format.

Example:
  tabular convert --input records.json.gz --output records.arrow --schema types.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(convertFlags{
				input:       inputFile,
				output:      outputFile,
				schema:      schemaFile,
				config:      configFile,
				compression: compressAlg,
				logLevel:    logLevel,
				workers:     workers,
				timeout:     timeout,
			})
		},
	}

	convertCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Path to the input document (required)")
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Path to the Arrow IPC output file (required)")
	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("output")

	convertCmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "Path to a schema overlay file (JSON or YAML)")
	convertCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	convertCmd.Flags().StringVar(&compressAlg, "compression", "auto", "Input compression (auto, none, gzip, zstd, lz4, s2, snappy)")
	convertCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	convertCmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines per parallel pass (0 = all CPUs)")
	convertCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Conversion timeout")

	root.AddCommand(convertCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type convertFlags struct {
	input       string
	output      string
	schema      string
	config      string
	compression string
	logLevel    string
	workers     int
	timeout     time.Duration
}

func runConvert(flags convertFlags) error {
	cfg := config.NewConvertConfig()
	if flags.config != "" {
		loaded, err := config.Load(flags.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.workers > 0 {
		cfg.Performance.Workers = flags.workers
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}

	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel, Encoding: "console"}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	alg, ok := compression.Parse(flags.compression)
	if !ok {
		alg = compression.Detect(flags.input)
	}
	input, err := compression.ReadFileAs(flags.input, alg)
	if err != nil {
		return err
	}

	var overlay *schema.Overlay
	if flags.schema != "" {
		overlay, err = schema.LoadFile(flags.schema)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	start := time.Now()
	engine := pipeline.New(cfg)
	table, err := engine.Convert(ctx, input, overlay)
	if err != nil {
		return err
	}
	defer table.Release()

	record, err := table.Record()
	if err != nil {
		return err
	}
	defer record.Release()

	out, err := os.Create(flags.output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	writer, err := ipc.NewFileWriter(out, ipc.WithSchema(record.Schema()))
	if err != nil {
		return fmt.Errorf("failed to open IPC writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize output file: %w", err)
	}

	log.Info("wrote Arrow table",
		zap.String("output", flags.output),
		zap.Int64("rows", record.NumRows()),
		zap.Int64("columns", record.NumCols()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
