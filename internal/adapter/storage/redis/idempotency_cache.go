package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartpay/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// Both scripts act only while the key still holds the caller's reservation,
// so a request whose reservation expired cannot clobber the next owner.
var (
	completeScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`)

	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// IdempotencyCache implements ports.IdempotencyCache. A key is claimed with
// SET NX before the handler runs and overwritten with the response after.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: keyPrefix + "idempotency:",
	}
}

func (c *IdempotencyCache) Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return ok, nil
}

// Get returns the stored entry, or nil, nil when the key is unknown.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

func (c *IdempotencyCache) Complete(ctx context.Context, key string, reservation, value []byte, ttl time.Duration) error {
	n, err := completeScript.Run(ctx, c.client, []string{c.prefix + key},
		reservation, value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis idempotency complete: %w", err)
	}
	if n == 0 {
		return ports.ErrReservationLost
	}
	return nil
}

func (c *IdempotencyCache) Release(ctx context.Context, key string, reservation []byte) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.prefix + key}, reservation).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
