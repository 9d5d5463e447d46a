package parallel_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/core/parallel"
)

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		seen := make([]int32, n)
		parallel.Parallelize(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "item %d of %d", i, n)
		}
	}
}

func TestParallelizeWithThresholdRunsSequentially(t *testing.T) {
	calls := 0
	parallel.ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEachCollectsErrorsByIndex(t *testing.T) {
	boom := errors.New("boom")
	errs := parallel.ForEach(5, func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	require.Len(t, errs, 5)
	assert.ErrorIs(t, errs[3], boom)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, parallel.FirstError(errs), boom)

	assert.Nil(t, parallel.ForEach(4, func(int) error { return nil }))
}
