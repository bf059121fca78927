// Package resource bounds the work done by background merges and uploads.
//
// A Controller governs three resources:
//
//   - Memory: a byte budget for indexes being merged. AcquireMemory blocks
//     until the budget allows the reservation; TryAcquireMemory fails fast.
//   - Concurrency: a fixed number of background worker slots.
//   - IO: a token bucket limiting bytes per second, applied through
//     RateLimitedReader and RateLimitedWriter.
//
// A nil *Controller imposes no limits, so callers can pass one through
// unconditionally.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:     4 << 30,
//	    MaxBackgroundWorkers: 8,
//	})
//	if err := rc.AcquireMemory(ctx, size); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(size)
package resource
