package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecindex"
	"github.com/hupe1980/vecindex/resource"
)

var globalFlags struct {
	device      string
	pageSize    int
	cacheBytes  int64
	compression string
	ioLimit     int64
	workers     int
	logFormat   string
	logLevel    string
	jsonOutput  bool
}

var rootCmd = &cobra.Command{
	Use:   "vecindex",
	Short: "Approximate nearest neighbor indexes on page devices",
	Long: `vecindex manages HNSW and IVFFlat vector indexes stored on a page
device: a local file, a Badger directory, or an S3 / MinIO bucket.

Examples:
  vecindex --device file:items.db create -f params.yaml
  vecindex --device file:items.db build -i vectors.txt
  vecindex --device file:items.db search --k 5 "[0.1,0.2,0.3]"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&globalFlags.device, "device", "d", "", "device spec (file:, badger:, s3://, minio://)")
	pf.IntVar(&globalFlags.pageSize, "page-size", 0, "page size of a new device (default 8192)")
	pf.Int64Var(&globalFlags.cacheBytes, "cache-bytes", 0, "page cache budget in bytes (negative disables)")
	pf.StringVar(&globalFlags.compression, "compression", "none", "page compression for s3/minio devices (none, lz4, zstd)")
	pf.Int64Var(&globalFlags.ioLimit, "io-limit", 0, "IO budget in bytes per second (0 = unlimited)")
	pf.IntVar(&globalFlags.workers, "workers", 0, "build and vacuum workers (0 = GOMAXPROCS)")
	pf.StringVar(&globalFlags.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&globalFlags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&globalFlags.jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(createCmd, buildCmd, insertCmd, deleteCmd, searchCmd, vacuumCmd, inspectCmd)
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newLogger() (*vecindex.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(globalFlags.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", globalFlags.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(globalFlags.logFormat) {
	case "text":
		return vecindex.NewLogger(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return vecindex.NewLogger(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", globalFlags.logFormat)
	}
}

// env bundles what every command needs: a logger, a resource controller and
// the index options derived from the global flags.
type env struct {
	logger *vecindex.Logger
	rc     *resource.Controller
}

func newEnv() (*env, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	rc := resource.NewController(resource.Config{
		MaxBackgroundWorkers: int64(globalFlags.workers),
		IOLimitBytesPerSec:   globalFlags.ioLimit,
	})
	return &env{logger: logger, rc: rc}, nil
}

func (e *env) options() []vecindex.Option {
	opts := []vecindex.Option{
		vecindex.WithLogger(e.logger),
		vecindex.WithResourceController(e.rc),
		vecindex.WithBuildWorkers(globalFlags.workers),
	}
	if globalFlags.cacheBytes != 0 {
		opts = append(opts, vecindex.WithPageCacheSize(globalFlags.cacheBytes))
	}
	return opts
}

// openIndex opens the index on the configured device.
func openIndex(ctx context.Context) (*vecindex.Index, *env, error) {
	e, err := newEnv()
	if err != nil {
		return nil, nil, err
	}
	dev, err := openDevice(ctx, globalFlags.device, e)
	if err != nil {
		return nil, nil, err
	}
	idx, err := vecindex.Open(ctx, dev, e.options()...)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	return idx, e, nil
}
