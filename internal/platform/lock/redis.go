package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisOptions struct {
	// Prefix namespaces every key. Defaults to "medsched:lock:".
	Prefix string
	// TTL bounds how long a crashed holder can keep a key. Defaults to 10s.
	TTL time.Duration
	// Wait bounds how long Acquire polls for a held key. 0 waits until ctx is done.
	Wait time.Duration
	// Retry is the polling interval. Defaults to 25ms.
	Retry time.Duration
}

// Redis is a Locker shared by every server process pointed at the same Redis.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
}

func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "medsched:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 25 * time.Millisecond
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := r.opts.Prefix + key
	token := uuid.NewString()

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.opts.Wait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, r.opts.Wait)
	}
	defer cancel()

	ticker := time.NewTicker(r.opts.Retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, redisKey, token, r.opts.TTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return r.releaser(redisKey, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrTimeout, key)
		}
	}
}

func (r *Redis) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// A failed release leaves the key to expire at its TTL.
			_ = releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err()
		})
	}
}
