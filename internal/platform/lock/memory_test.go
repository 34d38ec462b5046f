package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AcquireRelease(t *testing.T) {
	m := NewMemory(time.Second)
	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, m.held())

	release()
	release()
	assert.Equal(t, 0, m.held())

	release, err = m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
}

func TestMemory_TimeoutWhileHeld(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	_, err = m.Acquire(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, 1, m.held())
}

func TestMemory_ContextCanceled(t *testing.T) {
	m := NewMemory(0)
	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_IndependentKeys(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	r1, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	r2, err := m.Acquire(context.Background(), "b")
	require.NoError(t, err)
	r2()
}

func TestMemory_MutualExclusion(t *testing.T) {
	m := NewMemory(5 * time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "k")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.held())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "acme:p1:2026-03-02", Key("acme", "p1", "2026-03-02"))
}
