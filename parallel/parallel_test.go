package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEachRangeCoversEveryIndex(t *testing.T) {
	const n = 233
	var hits [n]int32
	err := ForEachRange(n, 4, 7, func(start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
		return nil
	})
	assert.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.Equal(t, int32(1), hits[i], "index %d", i)
	}
}

func TestPrefixScanMatchesSequentialFold(t *testing.T) {
	// Associative but non-commutative op: composition of affine maps
	// x -> p*x + q (mod 97), each encoded as p*100 + q, so the scan value
	// depends on left-to-right order while blocks may be grouped freely.
	op := func(a, b int) int {
		p1, q1 := a/100, a%100
		p2, q2 := b/100, b%100
		return (p2*p1%97)*100 + (p2*q1+q2)%97
	}
	items := make([]int, 50)
	for i := range items {
		items[i] = (i%96+1)*100 + i%97
	}

	want := make([]int, len(items))
	want[0] = items[0]
	for i := 1; i < len(items); i++ {
		want[i] = op(want[i-1], items[i])
	}

	for _, blocksize := range []int{1, 3, 8, 64, 1000} {
		got := PrefixScan(items, op, 2, blocksize)
		assert.Equal(t, want, got, "blocksize %d", blocksize)
	}
}

func TestPrefixScanSingleElement(t *testing.T) {
	got := PrefixScan([]int{42}, func(a, b int) int { return a + b }, 1, 4)
	assert.Equal(t, []int{42}, got)
}
