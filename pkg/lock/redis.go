package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/permalink/pkg/id"
)

// Deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Option configures a Redis locker.
type Option func(*options)

type options struct {
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		prefix:       "lock:",
		ttl:          10 * time.Second,
		pollInterval: 25 * time.Millisecond,
	}
}

// WithPrefix sets the key prefix.
// Default: "lock:"
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTTL sets how long a lock survives a holder that never unlocks.
// Default: 10s
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithPollInterval sets the wait between acquisition attempts.
// Default: 25ms
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// Redis is a distributed lock built on SET NX PX with a random token.
// Release deletes the key only if it still holds the token, so an expired
// holder cannot release a lock taken over by someone else.
type Redis struct {
	client redis.UniversalClient
	opts   *options
}

// NewRedis creates a locker on client.
func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Redis{client: client, opts: o}
}

// Lock polls until key is acquired or ctx ends.
func (r *Redis) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	k := r.opts.prefix + key
	token := id.NewULID()

	ticker := time.NewTicker(r.opts.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.opts.ttl).Result()
		if err != nil {
			return nil, errors.Join(ErrNotAcquired, fmt.Errorf("set %s: %w", k, err))
		}
		if ok {
			return r.unlocker(k, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlocker(key, token string) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("lock: release %s: %w", key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}
}
