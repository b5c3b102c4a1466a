package middleware

import (
	"fmt"
	"strconv"
	"time"

	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"
	"smartpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Rate limit groups.
const (
	GroupRead      = "read"
	GroupLedger    = "ledger"
	GroupProvision = "provision"
)

// DefaultRateLimitRules derives the per-group limits from the configured
// request budget. Money-moving routes get half of it.
func DefaultRateLimitRules(requests int64, window time.Duration) map[string]RateLimitRule {
	write := requests / 2
	if write < 1 {
		write = 1
	}
	return map[string]RateLimitRule{
		GroupRead:      {Limit: requests, Window: window},
		GroupLedger:    {Limit: write, Window: window},
		GroupProvision: {Limit: write, Window: window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Requests are counted per client IP. A store failure lets the request through.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", c.ClientIP(), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}
