package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 16)
	pool.Start(context.Background())

	var done atomic.Int64
	for i := 0; i < 16; i++ {
		require.NoError(t, pool.Submit(func(context.Context) error {
			done.Add(1)
			return nil
		}))
	}
	require.NoError(t, pool.Close())
	assert.Equal(t, int64(16), done.Load())
}

func TestWorkerPoolCollectsErrors(t *testing.T) {
	pool := NewWorkerPool(2, 4)
	pool.Start(context.Background())

	failure := errors.New("job failed")
	require.NoError(t, pool.Submit(func(context.Context) error { return nil }))
	require.NoError(t, pool.Submit(func(context.Context) error { return failure }))
	require.NoError(t, pool.Submit(func(context.Context) error { return failure }))

	err := pool.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Start(context.Background())
	require.NoError(t, pool.Close())

	assert.ErrorIs(t, pool.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, pool.Close(), ErrPoolClosed)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "BK-suggestions", CollectionName("BK"))
}
