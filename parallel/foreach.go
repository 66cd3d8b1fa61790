// Package parallel provides the two concurrency primitives the
// associative engine's two phases run on: a blocked ForEachRange over
// independent work items, and a non-commutative PrefixScan, both
// grounded on the block-level looping (foreach_in_range) and prefix-sum
// (prefix_sums_pointers) drivers in kalman_associative_smoother.c, built
// here on golang.org/x/sync/errgroup instead of a hand-rolled thread
// pool.
package parallel

import (
	"golang.org/x/sync/errgroup"
)

// DefaultBlocksize is used whenever a caller passes blocksize <= 0.
const DefaultBlocksize = 64

// ForEachRange calls fn(start, end) once per block of [0, n), running up
// to nthreads blocks concurrently via an errgroup (nthreads <= 0 means
// unlimited, per SetLimits/errgroup.Group.SetLimit). It blocks until
// every block has run, returning the first error encountered (if any).
func ForEachRange(n, nthreads, blocksize int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	nthreads, blocksize = SetLimits(nthreads, blocksize)
	var g errgroup.Group
	g.SetLimit(nthreads)
	for start := 0; start < n; start += blocksize {
		end := start + blocksize
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			return fn(start, end)
		})
	}
	return g.Wait()
}
