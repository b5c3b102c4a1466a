package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartpay/internal/adapter/http/middleware"
	redisStore "smartpay/internal/adapter/storage/redis"
	"smartpay/internal/core/ports"
	"smartpay/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(store ports.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/test", middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRedisRateLimitStore(t *testing.T) *redisStore.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func get(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisRateLimitStore(t))

	for i := 0; i < 3; i++ {
		w := get(router, "10.0.0.1:1234")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisRateLimitStore(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "10.0.0.1:1234").Code)
	}

	w := get(router, "10.0.0.1:1234")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_CountsPerClientIP(t *testing.T) {
	router := setupRateLimitRouter(newRedisRateLimitStore(t))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "10.0.0.1:1234").Code)
	}

	// a different terminal has its own counter
	assert.Equal(t, 200, get(router, "10.0.0.2:1234").Code)
}

func TestRateLimiter_StoreErrorAllowsRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRateLimitStore(ctrl)
	store.EXPECT().Allow(gomock.Any(), "10.0.0.1:test", int64(3), time.Minute).
		Return(nil, errors.New("redis down"))

	w := get(setupRateLimitRouter(store), "10.0.0.1:1234")
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules(120, time.Minute)
	assert.Equal(t, int64(120), rules[middleware.GroupRead].Limit)
	assert.Equal(t, int64(60), rules[middleware.GroupLedger].Limit)
	assert.Equal(t, int64(60), rules[middleware.GroupProvision].Limit)
	assert.Equal(t, time.Minute, rules[middleware.GroupLedger].Window)

	tiny := middleware.DefaultRateLimitRules(1, time.Second)
	assert.Equal(t, int64(1), tiny[middleware.GroupLedger].Limit)
}
