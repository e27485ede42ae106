// Package reduce implements the engine's concurrency model (spec.md
// §5, §9 redesign note): a bounded worker pool plus a typed
// all-reduce helper that combines per-worker partial results in a
// fixed, worker-index order, so repeated runs over identical inputs
// produce bit-identical state regardless of scheduling.
//
// The spec's redesign note explicitly asks for "a join-on-scope task
// pool and a typed all-reduce helper" in place of the original's
// home-grown Communicator; golang.org/x/sync/errgroup is the
// idiomatic fit (present elsewhere in the retrieval pack), so this
// package is a thin domain wrapper around errgroup rather than a new
// pool implementation.
package reduce

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes n independent tasks (task(i) for i in [0,n)) with at
// most maxWorkers concurrently, returning the first error (errgroup
// semantics: remaining tasks keep running but the first error is
// returned once all have finished or ctx is canceled).
func Run(ctx context.Context, n, maxWorkers int, task func(ctx context.Context, i int) error) error {
	if maxWorkers <= 0 {
		maxWorkers = n
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return task(ctx, i) })
	}
	return g.Wait()
}

// AllReduce runs task(i) for i in [0,n) concurrently (bounded by
// maxWorkers), collects each worker's partial result, then folds them
// together in ascending worker-index order with combine — never in
// completion order — so the final value is identical regardless of
// goroutine scheduling (spec.md §5: "every reduction ... is performed
// via all_reduce so that all workers end each round with bit-identical
// state").
func AllReduce[T any](ctx context.Context, n, maxWorkers int, identity T, task func(ctx context.Context, i int) (T, error), combine func(acc, partial T) T) (T, error) {
	partials := make([]T, n)
	err := Run(ctx, n, maxWorkers, func(ctx context.Context, i int) error {
		p, err := task(ctx, i)
		if err != nil {
			return err
		}
		partials[i] = p
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	acc := identity
	for _, p := range partials {
		acc = combine(acc, p)
	}
	return acc, nil
}

// SeedBroadcast mirrors spec.md §5's "RNG seeded from process rank 0
// and broadcast to workers": in a single process, the broadcast is
// just returning the seed chosen by the caller (typically rank 0),
// unchanged, so every worker constructs its RNG from the exact same
// value. It exists as a named seam so a future multi-process
// implementation can replace it without touching call sites.
func SeedBroadcast(rank0Seed uint64) uint64 {
	return rank0Seed
}
