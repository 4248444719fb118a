package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := range 5 {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Len())

	for i := range 5 {
		v, ok := q.Pop(context.Background())
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestQueue_PopWaitsForPush(t *testing.T) {
	q := New[string]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push("x")
	}()

	v, ok := q.Pop(context.Background())
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestQueue_PopCancelled(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestQueue_ConcurrentPushers(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, q.Len())
}
