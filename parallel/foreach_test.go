package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachVisitsAll(t *testing.T) {
	var seen [1000]int32
	err := ForEach(context.Background(), len(seen), 7, func(i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	require.NoError(t, err)
	for i, n := range seen {
		assert.Equal(t, int32(1), n, "index %d", i)
	}
}

func TestForEachLimit(t *testing.T) {
	var inflight, peak int32
	err := ForEach(context.Background(), 200, 3, func(i int) error {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&inflight, -1)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, peak <= 3, "peak %d", peak)
}

func TestForEachError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 100, 4, func(i int) error {
		if i == 10 {
			return boom
		}
		return nil
	})
	assert.Equal(t, boom, err)
}

func TestForEachCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err := ForEach(ctx, 100, 4, func(i int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.Equal(t, context.Canceled, err)
}

func TestForEachEmpty(t *testing.T) {
	assert.NoError(t, ForEach(context.Background(), 0, 0, func(i int) error { return nil }))
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 7}}, Chunks(7, 3))
	assert.Nil(t, Chunks(0, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, Chunks(2, 0))
}
