package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecindex"
)

var _ vecindex.MetricsCollector = (*Collector)(nil)

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every metric name. Default: "vecindex".
	Namespace string
	// ConstLabels are attached to every metric, e.g. the index name.
	ConstLabels prometheus.Labels
	// Buckets of the latency histograms. Default: prometheus.DefBuckets.
	Buckets []float64
}

// WithNamespace sets the metric name prefix.
func WithNamespace(ns string) func(o *Options) {
	return func(o *Options) {
		o.Namespace = ns
	}
}

// WithConstLabels attaches labels to every metric.
func WithConstLabels(l prometheus.Labels) func(o *Options) {
	return func(o *Options) {
		o.ConstLabels = l
	}
}

// Collector implements vecindex.MetricsCollector with Prometheus counters
// and histograms.
type Collector struct {
	latency       *prometheus.HistogramVec
	ops           *prometheus.CounterVec
	bulkItems     *prometheus.CounterVec
	searchPartial prometheus.Counter
	searchK       prometheus.Histogram
	reclaimed     prometheus.Counter
	vacuumFailed  prometheus.Counter
	built         prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer, optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{
		Namespace: "vecindex",
		Buckets:   prometheus.DefBuckets,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of index operations",
			ConstLabels: opts.ConstLabels,
			Buckets:     opts.Buckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "operations_total",
			Help:        "Total count of index operations",
			ConstLabels: opts.ConstLabels,
		}, []string{"op", "status"}),
		bulkItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "bulk_insert_items_total",
			Help:        "Vectors processed by bulk inserts",
			ConstLabels: opts.ConstLabels,
		}, []string{"status"}),
		searchPartial: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "search_partial_total",
			Help:        "Searches stopped early by deadline or budget",
			ConstLabels: opts.ConstLabels,
		}),
		searchK: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "search_k",
			Help:        "Requested neighbors per search",
			ConstLabels: opts.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 11),
		}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "vacuum_reclaimed_total",
			Help:        "Deleted vectors reclaimed by vacuum",
			ConstLabels: opts.ConstLabels,
		}),
		vacuumFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "vacuum_failures_total",
			Help:        "Items vacuum could not repair",
			ConstLabels: opts.ConstLabels,
		}),
		built: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "build_vectors_total",
			Help:        "Vectors loaded by successful builds",
			ConstLabels: opts.ConstLabels,
		}),
	}

	for _, m := range []prometheus.Collector{
		c.latency, c.ops, c.bulkItems, c.searchPartial,
		c.searchK, c.reclaimed, c.vacuumFailed, c.built,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.latency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordInsert implements vecindex.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
}

// RecordBulkInsert implements vecindex.MetricsCollector.
func (c *Collector) RecordBulkInsert(count, failed int, d time.Duration) {
	c.observe("bulk_insert", d, nil)
	c.bulkItems.WithLabelValues("ok").Add(float64(count - failed))
	c.bulkItems.WithLabelValues("error").Add(float64(failed))
}

// RecordSearch implements vecindex.MetricsCollector.
func (c *Collector) RecordSearch(k int, partial bool, d time.Duration, err error) {
	c.observe("search", d, err)
	c.searchK.Observe(float64(k))
	if partial {
		c.searchPartial.Inc()
	}
}

// RecordDelete implements vecindex.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.observe("delete", d, err)
}

// RecordVacuum implements vecindex.MetricsCollector.
func (c *Collector) RecordVacuum(reclaimed, failed int, d time.Duration, err error) {
	c.observe("vacuum", d, err)
	c.reclaimed.Add(float64(reclaimed))
	c.vacuumFailed.Add(float64(failed))
}

// RecordBuild implements vecindex.MetricsCollector.
func (c *Collector) RecordBuild(vectors int, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.built.Add(float64(vectors))
	}
}
