package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, opts RedisOptions) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, opts), mr
}

func TestRedis_AcquireRelease(t *testing.T) {
	l, mr := newTestRedis(t, RedisOptions{Wait: 100 * time.Millisecond})

	release, err := l.Acquire(context.Background(), "acme:p1:2026-03-02")
	require.NoError(t, err)
	assert.True(t, mr.Exists("medsched:lock:acme:p1:2026-03-02"))
	assert.Equal(t, 10*time.Second, mr.TTL("medsched:lock:acme:p1:2026-03-02"))

	release()
	assert.False(t, mr.Exists("medsched:lock:acme:p1:2026-03-02"))
}

func TestRedis_TimeoutWhileHeld(t *testing.T) {
	l, _ := newTestRedis(t, RedisOptions{Wait: 60 * time.Millisecond, Retry: 5 * time.Millisecond})

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRedis_WaitsForRelease(t *testing.T) {
	l, _ := newTestRedis(t, RedisOptions{Wait: time.Second, Retry: 5 * time.Millisecond})

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	second()
}

func TestRedis_StaleReleaseKeepsNewOwner(t *testing.T) {
	l, mr := newTestRedis(t, RedisOptions{TTL: time.Second, Wait: 50 * time.Millisecond, Retry: 5 * time.Millisecond})

	stale, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	owner, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer owner()

	stale()
	assert.True(t, mr.Exists("medsched:lock:k"))
}

func TestRedis_ConnectionError(t *testing.T) {
	l, mr := newTestRedis(t, RedisOptions{Wait: 5 * time.Second})
	mr.Close()

	_, err := l.Acquire(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}
