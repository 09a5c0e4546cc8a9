// Package workerpool implements a generic job-channel worker pool. The
// indexer fans its per-track extraction out through RunEach; the mix
// analyzer runs its own errgroup and does not use this package.
package workerpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Run dispatches items to workers concurrent workers, each calling fn on
// one item at a time, and returns results in the same order as items. A
// single coordinator goroutine (the caller) owns ordering; fn itself must
// not mutate shared state beyond what it returns (workers share no
// mutable state beyond the persistent store).
func Run[T any, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	results := make([]R, len(items))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range jobs {
				r, err := fn(gctx, items[idx])
				if err != nil {
					return err
				}
				results[idx] = r
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RunEach is like Run but tolerates per-item failure: fn's error is
// captured alongside its result rather than aborting the whole batch,
// matching the indexer's "one failed track must not abort the batch"
// contract.
func RunEach[T any, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) []Outcome[R] {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	outcomes := make([]Outcome[R], len(items))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range jobs {
				r, err := fn(gctx, items[idx])
				outcomes[idx] = Outcome[R]{Value: r, Err: err}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	_ = g.Wait()
	return outcomes
}

// Outcome pairs a per-item result with its error, for RunEach's
// no-abort-on-failure contract.
type Outcome[R any] struct {
	Value R
	Err   error
}
