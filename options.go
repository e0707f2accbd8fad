package vecindex

import (
	"log/slog"

	"github.com/hupe1980/vecindex/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	resource         *resource.Controller
	pageCacheBytes   int64
	buildWorkers     int
	seed             *uint64
}

// Option configures Create and Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecindex.BasicMetricsCollector{}
//	idx, _ := vecindex.Create(ctx, dev, params, vecindex.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecindex.NewJSONLogger(slog.LevelInfo)
//	idx, _ := vecindex.Open(ctx, dev, vecindex.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares memory, worker and IO limits between
// indexes. Node memory, the page cache and background workers (build,
// vacuum) are accounted against it.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithPageCacheSize sets the page cache budget in bytes. Negative disables
// the cache.
func WithPageCacheSize(bytes int64) Option {
	return func(o *options) {
		o.pageCacheBytes = bytes
	}
}

// WithBuildWorkers bounds the parallelism of Build, BulkInsert and Vacuum.
// If 0, the resource controller (or GOMAXPROCS) decides.
func WithBuildWorkers(n int) Option {
	return func(o *options) {
		o.buildWorkers = n
	}
}

// WithSeed overrides Params.Seed on Create. It has no effect on Open.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
