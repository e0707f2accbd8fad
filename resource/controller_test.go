package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 50))
	require.NoError(t, c.AcquireMemory(ctx, 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Blocks until the deadline.
	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(tctx, 20), context.DeadlineExceeded)
	assert.Equal(t, int64(1), c.Stats().MemoryWaits)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())
	require.NoError(t, c.AcquireMemory(ctx, 20))
	assert.Equal(t, int64(60), c.MemoryUsage())

	// Larger than the whole limit fails fast.
	assert.ErrorIs(t, c.AcquireMemory(ctx, 101), ErrMemoryLimitExceeded)
}

func TestController_MemoryUnblocks(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()
	require.NoError(t, c.AcquireMemory(ctx, 100))

	done := make(chan error, 1)
	go func() { done <- c.AcquireMemory(ctx, 30) }()

	time.Sleep(10 * time.Millisecond)
	c.ReleaseMemory(40)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("AcquireMemory did not unblock")
	}
	assert.Equal(t, int64(90), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())

	// Non-positive amounts are ignored.
	require.NoError(t, c.AcquireMemory(context.Background(), -1))
	c.ReleaseMemory(0)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})
	ctx := context.Background()
	assert.Equal(t, 2, c.Workers())

	require.NoError(t, c.AcquireBackground(ctx))
	require.NoError(t, c.AcquireBackground(ctx))
	assert.False(t, c.TryAcquireBackground())
	assert.Equal(t, int64(2), c.Stats().ActiveWorkers)

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireBackground(tctx))

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())

	assert.Positive(t, NewController(Config{}).Workers())
}

func TestController_IO(t *testing.T) {
	ctx := context.Background()

	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	require.NoError(t, c.AcquireIO(ctx, 4096))
	assert.Equal(t, int64(4096), c.Stats().IOBytes)

	// A request above the burst is split instead of rejected.
	small := NewController(Config{IOLimitBytesPerSec: 1000})
	require.NoError(t, small.AcquireIO(ctx, 1500))

	unlimited := NewController(Config{})
	require.NoError(t, unlimited.AcquireIO(ctx, 1<<30))
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller
	ctx := context.Background()

	assert.NoError(t, c.AcquireMemory(ctx, 100))
	assert.True(t, c.TryAcquireMemory(100))
	c.ReleaseMemory(100)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())

	assert.NoError(t, c.AcquireBackground(ctx))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	assert.Positive(t, c.Workers())

	assert.NoError(t, c.AcquireIO(ctx, 100))
	assert.Equal(t, Stats{}, c.Stats())
}

func TestRateLimitedIO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10000})
	ctx := context.Background()

	var buf bytes.Buffer
	w := NewRateLimitedWriter(ctx, &buf, c)
	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	r := NewRateLimitedReader(ctx, &buf, c)
	p := make([]byte, 5)
	n, err = r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p[:n]))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewRateLimitedReader(cctx, bytes.NewReader([]byte("x")), NewController(Config{IOLimitBytesPerSec: 1}))
	_, err = slow.Read(make([]byte, 100))
	assert.Error(t, err)
}
