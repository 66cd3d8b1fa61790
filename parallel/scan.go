package parallel

import (
	"golang.org/x/sync/errgroup"

	"github.com/giaminhhoang/ultimate-kalman/parallel/allocset"
)

// blockScan is one block's locally-scanned slice together with the block
// index it belongs to, the unit allocset.Set.Insert registers: every
// worker goroutine below inserts its block's result into a shared
// concurrent set rather than writing a preallocated slot directly,
// mirroring concurrent_set.h's "workers hand intermediates to a shared
// set, the driver drains it once they're done" shape.
type blockScan[T any] struct {
	index int
	local []T
}

// PrefixScan computes the inclusive left-to-right scan of items under op,
// i.e. out[i] = op(op(...op(items[0], items[1])..., items[i])), without
// assuming op commutes (every caller in this module folds matrices, where
// order matters). op must be associative, since blocks are scanned
// separately and joined through carries. It is grounded on prefix_sums_pointers's block
// structure: each block is scanned independently and concurrently, the
// per-block totals are combined into carries sequentially (the only
// inherently serial step, and cheap since it touches one value per
// block), and each block's elements are then corrected by their carry
// concurrently. nthreads caps how many blocks run at once (<=0 means
// unlimited); blocksize <=0 selects DefaultBlocksize.
func PrefixScan[T any](items []T, op func(a, b T) T, nthreads, blocksize int) []T {
	n := len(items)
	if n == 0 {
		return nil
	}
	nthreads, blocksize = SetLimits(nthreads, blocksize)
	nBlocks := (n + blocksize - 1) / blocksize

	interim := allocset.New[blockScan[T]]()
	var g errgroup.Group
	g.SetLimit(nthreads)
	for b := 0; b < nBlocks; b++ {
		b := b
		g.Go(func() error {
			start := b * blocksize
			end := start + blocksize
			if end > n {
				end = n
			}
			local := make([]T, end-start)
			local[0] = items[start]
			for i := start + 1; i < end; i++ {
				local[i-start] = op(local[i-start-1], items[i])
			}
			interim.Insert(blockScan[T]{index: b, local: local})
			return nil
		})
	}
	_ = g.Wait()

	blockScans := make([][]T, nBlocks)
	interim.Drain(func(bs blockScan[T]) {
		blockScans[bs.index] = bs.local
	})

	carries := make([]T, nBlocks)
	carries[0] = blockScans[0][len(blockScans[0])-1]
	for b := 1; b < nBlocks; b++ {
		total := blockScans[b][len(blockScans[b])-1]
		carries[b] = op(carries[b-1], total)
	}

	out := make([]T, n)
	var g2 errgroup.Group
	g2.SetLimit(nthreads)
	for b := 0; b < nBlocks; b++ {
		b := b
		g2.Go(func() error {
			start := b * blocksize
			end := start + blocksize
			if end > n {
				end = n
			}
			if b == 0 {
				copy(out[start:end], blockScans[b])
				return nil
			}
			prefix := carries[b-1]
			for i := start; i < end; i++ {
				out[i] = op(prefix, blockScans[b][i-start])
			}
			return nil
		})
	}
	_ = g2.Wait()
	return out
}

// SetLimits is a construction-time knob mirroring the reference's
// parallel_set_thread_limit/parallel_set_blocksize pair: it resolves an
// Options-style (NThreads, Blocksize) pair into the (nthreads, blocksize)
// PrefixScan and ForEachRange should use. nthreads <= 0 resolves to -1
// (errgroup.Group.SetLimit's "no limit" sentinel); blocksize <= 0
// resolves to DefaultBlocksize.
func SetLimits(nthreads, blocksize int) (int, int) {
	if nthreads <= 0 {
		nthreads = -1
	}
	if blocksize <= 0 {
		blocksize = DefaultBlocksize
	}
	return nthreads, blocksize
}
