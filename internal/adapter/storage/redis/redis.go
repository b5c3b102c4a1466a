package redis

import (
	"context"
	"fmt"
	"time"

	"smartpay/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "smartpay:"

const probeTTL = 5 * time.Second

// NewClient dials Redis and fails fast if it does not answer.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("redis ready for idempotency, rate limits and scan dedupe")
	return client, nil
}

// HealthCheck reports Redis healthy only when it accepts writes. A read-only
// replica answers PING but cannot hold idempotency entries or counters.
type HealthCheck struct {
	client *goredis.Client
	key    string
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client, key: keyPrefix + "health"}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, h.key, time.Now().UTC().Unix(), probeTTL).Err(); err != nil {
		return fmt.Errorf("redis write probe: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "redis" }
