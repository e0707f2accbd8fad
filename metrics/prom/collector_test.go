package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, WithConstLabels(prometheus.Labels{"index": "test"}))
	require.NoError(t, err)

	c.RecordInsert(time.Millisecond, nil)
	c.RecordInsert(time.Millisecond, errors.New("boom"))
	c.RecordSearch(10, true, time.Millisecond, nil)
	c.RecordBulkInsert(10, 3, time.Second)
	c.RecordVacuum(4, 1, time.Second, nil)
	c.RecordBuild(100, time.Second, nil)
	c.RecordBuild(50, time.Second, errors.New("canceled"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searchPartial))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.bulkItems.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.bulkItems.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.reclaimed))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.built))

	n, err := testutil.GatherAndCount(reg, "vecindex_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)
	_, err = NewCollector(reg)
	assert.Error(t, err)
}
