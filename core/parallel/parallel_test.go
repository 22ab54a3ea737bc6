package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachVisitsEveryUnit(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]bool)

	err := ForEach(context.Background(), 40, 4, func(_ context.Context, i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 40)
}

func TestForEachRespectsLimit(t *testing.T) {
	var inFlight, peak int32
	err := ForEach(context.Background(), 50, 3, func(_ context.Context, i int) error {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(3))
}

func TestForEachStopsAfterError(t *testing.T) {
	boom := errors.New("boom")
	var ran int32
	err := ForEach(context.Background(), 1000, 1, func(_ context.Context, i int) error {
		atomic.AddInt32(&ran, 1)
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, atomic.LoadInt32(&ran), int32(1000))
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	err := ForEach(ctx, 10, 2, func(_ context.Context, i int) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestParallelizeCoversRange(t *testing.T) {
	hits := make([]int32, 97)
	Parallelize(len(hits), func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 2, Workers(2, 10))
	assert.Equal(t, 3, Workers(8, 3))
	assert.GreaterOrEqual(t, Workers(0, 100), 1)
}
