package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"smartpay/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: s.Host(), Port: port}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1}, zerolog.Nop())
	assert.ErrorContains(t, err, "pinging redis")
}

func TestHealthCheck(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr(), MaxRetries: -1})
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	require.NoError(t, hc.Ping(context.Background()))
	assert.True(t, s.Exists("smartpay:health"))
	assert.Positive(t, s.TTL("smartpay:health"))

	s.Close()
	assert.ErrorContains(t, hc.Ping(context.Background()), "redis write probe")
}

func TestScanDeduper_FirstSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	dedupe := NewScanDeduper(client)
	ctx := context.Background()

	first, err := dedupe.FirstSeen(ctx, "reader-1", "04A1", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := dedupe.FirstSeen(ctx, "reader-1", "04A1", 2*time.Second)
	require.NoError(t, err)
	assert.False(t, again, "repeat within window is suppressed")

	other, err := dedupe.FirstSeen(ctx, "reader-2", "04A1", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, other, "different reader is independent")

	s.FastForward(3 * time.Second)

	afterWindow, err := dedupe.FirstSeen(ctx, "reader-1", "04A1", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, afterWindow)
}
