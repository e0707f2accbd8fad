package vecindex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// metrics/prom provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordBulkInsert is called after each bulk insert.
	// count is the number of items attempted, failed is the number that failed.
	RecordBulkInsert(count, failed int, duration time.Duration)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, partial reports whether the
	// search stopped early.
	RecordSearch(k int, partial bool, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordVacuum is called after each vacuum pass.
	RecordVacuum(reclaimed, failed int, duration time.Duration, err error)

	// RecordBuild is called after each build.
	RecordBuild(vectors int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)            {}
func (NoopMetricsCollector) RecordBulkInsert(int, int, time.Duration)     {}
func (NoopMetricsCollector) RecordSearch(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)            {}
func (NoopMetricsCollector) RecordVacuum(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	BulkInsertCount  atomic.Int64
	BulkInsertItems  atomic.Int64
	BulkInsertFailed atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchPartial    atomic.Int64
	SearchTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	VacuumCount      atomic.Int64
	VacuumReclaimed  atomic.Int64
	VacuumFailed     atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildVectors     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBulkInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBulkInsert(count, failed int, duration time.Duration) {
	b.BulkInsertCount.Add(1)
	b.BulkInsertItems.Add(int64(count))
	b.BulkInsertFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, partial bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
	if partial {
		b.SearchPartial.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordVacuum implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVacuum(reclaimed, failed int, duration time.Duration, err error) {
	b.VacuumCount.Add(1)
	b.VacuumReclaimed.Add(int64(reclaimed))
	b.VacuumFailed.Add(int64(failed))
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(vectors int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildVectors.Add(int64(vectors))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:      b.InsertCount.Load(),
		InsertErrors:     b.InsertErrors.Load(),
		InsertAvgNanos:   avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		BulkInsertCount:  b.BulkInsertCount.Load(),
		BulkInsertItems:  b.BulkInsertItems.Load(),
		BulkInsertFailed: b.BulkInsertFailed.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchPartial:    b.SearchPartial.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		VacuumCount:      b.VacuumCount.Load(),
		VacuumReclaimed:  b.VacuumReclaimed.Load(),
		VacuumFailed:     b.VacuumFailed.Load(),
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildVectors:     b.BuildVectors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount      int64
	InsertErrors     int64
	InsertAvgNanos   int64
	BulkInsertCount  int64
	BulkInsertItems  int64
	BulkInsertFailed int64
	SearchCount      int64
	SearchErrors     int64
	SearchPartial    int64
	SearchAvgNanos   int64
	DeleteCount      int64
	DeleteErrors     int64
	VacuumCount      int64
	VacuumReclaimed  int64
	VacuumFailed     int64
	BuildCount       int64
	BuildErrors      int64
	BuildVectors     int64
}
