package reduce_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"relfit/internal/reduce"

	"github.com/stretchr/testify/require"
)

func TestRunExecutesEveryTask(t *testing.T) {
	n := 20
	done := make([]bool, n)
	var mu sync.Mutex
	err := reduce.Run(context.Background(), n, 4, func(ctx context.Context, i int) error {
		mu.Lock()
		done[i] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for i, d := range done {
		require.True(t, d, "task %d did not run", i)
	}
}

func TestRunPropagatesFirstError(t *testing.T) {
	sentinel := errors.New("boom")
	err := reduce.Run(context.Background(), 5, 2, func(ctx context.Context, i int) error {
		if i == 3 {
			return sentinel
		}
		return nil
	})
	require.ErrorIs(t, err, sentinel)
}

func TestAllReduceIsOrderIndependentOfScheduling(t *testing.T) {
	n := 100
	sum, err := reduce.AllReduce(context.Background(), n, 8, 0,
		func(ctx context.Context, i int) (int, error) { return i, nil },
		func(acc, partial int) int { return acc + partial },
	)
	require.NoError(t, err)
	require.Equal(t, (n-1)*n/2, sum)
}

func TestAllReduceDeterministicAcrossRuns(t *testing.T) {
	task := func(ctx context.Context, i int) ([]int, error) { return []int{i, i * i}, nil }
	combine := func(acc, partial []int) []int { return append(acc, partial...) }

	a, err := reduce.AllReduce(context.Background(), 10, 4, nil, task, combine)
	require.NoError(t, err)
	b, err := reduce.AllReduce(context.Background(), 10, 4, nil, task, combine)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSeedBroadcastIsIdentity(t *testing.T) {
	require.Equal(t, uint64(7), reduce.SeedBroadcast(7))
}
