package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned for a reservation larger than the whole
// memory limit, which could never be satisfied.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for accounted memory.
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers bounds concurrent build and vacuum workers.
	// If 0, defaults to GOMAXPROCS.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec is the page transfer budget of remote devices.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Stats is a snapshot of a Controller.
type Stats struct {
	MemoryUsed    int64
	MemoryLimit   int64
	MemoryWaits   int64
	ActiveWorkers int64
	MaxWorkers    int64
	IOBytes       int64
}

// Controller manages memory, worker slots and IO bandwidth.
type Controller struct {
	cfg Config

	memSem    *semaphore.Weighted // nil if unlimited
	memUsed   atomic.Int64
	memWaits  atomic.Int64
	bgSem     *semaphore.Weighted
	bgActive  atomic.Int64
	ioLimiter *rate.Limiter
	ioBytes   atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes, blocking until enough is released or ctx is
// done when a hard limit is configured.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return fmt.Errorf("%w: %d bytes requested, limit %d", ErrMemoryLimitExceeded, bytes, c.cfg.MemoryLimitBytes)
		}
		if !c.memSem.TryAcquire(bytes) {
			c.memWaits.Add(1)
			if err := c.memSem.Acquire(ctx, bytes); err != nil {
				return err
			}
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes without blocking and reports whether it
// succeeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// Workers returns the number of background worker slots, or GOMAXPROCS for
// a nil controller.
func (c *Controller) Workers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}
	return int(c.cfg.MaxBackgroundWorkers)
}

// AcquireBackground reserves a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.bgSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.bgActive.Add(1)
	return nil
}

// TryAcquireBackground reserves a background worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	if !c.bgSem.TryAcquire(1) {
		return false
	}
	c.bgActive.Add(1)
	return true
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgActive.Add(-1)
	c.bgSem.Release(1)
}

// AcquireIO waits until the IO limit allows bytes. Requests above the
// per-second burst are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	c.ioBytes.Add(int64(bytes))
	if c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// Stats returns a snapshot of the controller.
func (c *Controller) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		MemoryUsed:    c.memUsed.Load(),
		MemoryLimit:   c.cfg.MemoryLimitBytes,
		MemoryWaits:   c.memWaits.Load(),
		ActiveWorkers: c.bgActive.Load(),
		MaxWorkers:    c.cfg.MaxBackgroundWorkers,
		IOBytes:       c.ioBytes.Load(),
	}
}
