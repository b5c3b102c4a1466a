package handler

import (
	"net/http"
	"time"

	"smartpay/internal/adapter/http/middleware"
	"smartpay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger       ports.LedgerService
	Provisioning ports.ProvisioningService
	Catalog      ports.CatalogService

	RateLimitStore   ports.RateLimitStore // nil = rate limiting disabled
	RateLimitRules   map[string]middleware.RateLimitRule
	IdempotencyCache ports.IdempotencyCache // nil = Idempotency-Key ignored
	IdempotencyTTL   time.Duration

	HealthCheckers []ports.HealthChecker
	Realtime       http.Handler // websocket hub; nil = no /ws route
	OpenAPISpec    []byte

	MinorUnitExponent int32
	MaxBodyBytes      int64
	Mode              string // gin mode; empty = release
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.BodyLimit(deps.MaxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec(deps.OpenAPISpec))
	}

	if deps.Realtime != nil {
		r.GET("/ws", gin.WrapH(deps.Realtime))
	}

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimitRules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	idem := func(c *gin.Context) { c.Next() }
	if deps.IdempotencyCache != nil {
		idem = middleware.Idempotency(deps.IdempotencyCache, deps.IdempotencyTTL, deps.Logger)
	}

	cards := NewCardHandler(deps.Provisioning, deps.Ledger, deps.MinorUnitExponent)
	payments := NewPaymentHandler(deps.Provisioning, deps.Ledger, deps.MinorUnitExponent)
	catalog := NewCatalogHandler(deps.Catalog)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/balance/:uid", rl(middleware.GroupRead), cards.GetBalance)
		v1.GET("/transactions/:uid", rl(middleware.GroupRead), cards.ListTransactions)
		v1.GET("/products", rl(middleware.GroupRead), catalog.ListProducts)
		v1.POST("/cards/:uid", rl(middleware.GroupProvision), cards.Provision)
		v1.POST("/topup", rl(middleware.GroupLedger), idem, payments.Topup)
		v1.POST("/pay", rl(middleware.GroupLedger), idem, payments.Pay)
	}

	return r
}
