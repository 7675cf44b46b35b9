package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 64} {
		seen := make([]int32, 1000)
		Parallelize(len(seen), workers, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			if !assert.Equal(t, int32(1), n, "index %d with %d workers", i, workers) {
				break
			}
		}
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, 4, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThresholdRunsSequentially(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, 8, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestMapPreservesOrder(t *testing.T) {
	got := Map(50, 7, func(i int) int { return i * i })
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}
