// Package parallel runs independent work units on a bounded worker pool.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers normalizes a requested worker count: values below one mean
// "one per CPU", and the pool never exceeds the number of units.
func Workers(requested, units int) int {
	n := requested
	if n < 1 {
		n = runtime.NumCPU()
	}
	if units > 0 && n > units {
		n = units
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ForEach calls fn(ctx, i) for i in [0, n) with at most workers goroutines
// in flight. The first error cancels ctx for units not yet started and is
// returned once every started unit has finished. Units observe cancellation
// only between calls; a running unit is never interrupted.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers, n))

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Parallelize divides items into contiguous ranges, one per worker, and
// runs fn on each range concurrently. Used for per-feature statistics.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWithThreshold(items, 0, fn)
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	numWorkers := Workers(0, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var g errgroup.Group
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		s, e := start, end
		g.Go(func() error {
			fn(s, e)
			return nil
		})
	}
	_ = g.Wait()
}
