package resource

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxBackgroundWorkers is the maximum number of concurrent background jobs.
	// If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for background tasks.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages memory, worker slots and IO bandwidth.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	bgSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
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

// clamp caps a reservation at the limit so that a single oversized request
// waits for the whole budget instead of blocking forever.
func (c *Controller) clamp(bytes int64) int64 {
	if c.cfg.MemoryLimitBytes > 0 && bytes > c.cfg.MemoryLimitBytes {
		return c.cfg.MemoryLimitBytes
	}
	return bytes
}

// AcquireMemory reserves memory, blocking until it is available or ctx is
// done. Requests larger than the limit reserve the whole limit; release them
// with the same size.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, c.clamp(bytes)); err != nil {
			return err
		}
	}
	c.memUsed.Add(c.clamp(bytes))
	return nil
}

// TryAcquireMemory reserves memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(c.clamp(bytes)) {
		return false
	}
	c.memUsed.Add(c.clamp(bytes))
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	bytes = c.clamp(bytes)
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

// Workers returns the number of background worker slots.
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return int(c.cfg.MaxBackgroundWorkers)
}

// AcquireBackground reserves a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground reserves a background worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests above the burst size.
	for burst := c.ioLimiter.Burst(); bytes > burst; bytes -= burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// RateLimitedReader throttles reads from r to the IO limit.
func (c *Controller) RateLimitedReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, c: c, r: r}
}

// RateLimitedWriter throttles writes to w to the IO limit.
func (c *Controller) RateLimitedWriter(ctx context.Context, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}
	return &limitedWriter{ctx: ctx, c: c, w: w}
}

type limitedReader struct {
	ctx context.Context
	c   *Controller
	r   io.Reader
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.c.AcquireIO(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type limitedWriter struct {
	ctx context.Context
	c   *Controller
	w   io.Writer
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if err := l.c.AcquireIO(l.ctx, len(p)); err != nil {
		return 0, err
	}
	return l.w.Write(p)
}
