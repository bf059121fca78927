package indexdb

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/internal/resource"
)

// MergeOptions bounds the work of MergeAll.
type MergeOptions struct {
	// Concurrency is the number of pairwise merges run at once.
	// If 0, merges run one at a time.
	Concurrency int

	// MemoryLimitBytes caps the combined size of the sources being merged.
	// If 0, memory is not limited.
	MemoryLimitBytes int64
}

// MergeAll merges indexes pairwise, level by level, until one remains, and
// returns it finalized. Each round merges indexes[i+1] into indexes[i] and
// closes indexes[i+1], so every merge owns its destination exclusively.
//
// MergeAll takes ownership of every index: on error all of them are closed.
// A single index is finalized and returned as is.
func MergeAll(ctx context.Context, indexes []*Index, opts MergeOptions) (*Index, error) {
	if len(indexes) == 0 {
		return nil, errs.Contractf("merge of no indexes")
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     opts.MemoryLimitBytes,
		MaxBackgroundWorkers: int64(max(opts.Concurrency, 1)),
	})

	level := append([]*Index(nil), indexes...)
	for len(level) > 1 {
		next, err := mergeLevel(ctx, rc, level)
		if err != nil {
			closeAll(level)
			return nil, err
		}
		level = next
	}

	if err := level[0].Finalize(); err != nil {
		closeAll(level)
		return nil, err
	}
	return level[0], nil
}

// mergeLevel merges neighbouring pairs. Closed sources are set to nil in
// level so a failing caller closes only what is still open.
func mergeLevel(ctx context.Context, rc *resource.Controller, level []*Index) ([]*Index, error) {
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i+1 < len(level); i += 2 {
		dst, src := level[i], level[i+1]
		if err := rc.AcquireBackground(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer rc.ReleaseBackground()

			if err := src.Finalize(); err != nil {
				return err
			}
			size := src.SizeBytes()
			if err := rc.AcquireMemory(gctx, size); err != nil {
				return err
			}
			defer rc.ReleaseMemory(size)

			if err := dst.Merge(src); err != nil {
				return err
			}
			level[i+1] = nil
			return src.Close()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := make([]*Index, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, level[i])
	}
	return next, nil
}

func closeAll(indexes []*Index) {
	for _, idx := range indexes {
		if idx != nil {
			_ = idx.Close()
		}
	}
}
