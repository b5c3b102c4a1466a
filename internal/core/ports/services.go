package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"smartpay/internal/core/domain"
)

// IdempotencyCache holds one entry per client-supplied key. Reserve is the
// only way to create an entry, so at most one request runs per key.
type IdempotencyCache interface {
	// Reserve stores value under key unless the key exists. It reports
	// whether this caller now owns the key.
	Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	// Complete replaces the owner's reservation with the final value. It
	// fails with ErrReservationLost when reservation no longer matches.
	Complete(ctx context.Context, key string, reservation, value []byte, ttl time.Duration) error
	// Release drops the owner's reservation so the key can be retried.
	Release(ctx context.Context, key string, reservation []byte) error
}

// ErrReservationLost means an idempotency reservation expired or was replaced
// before its owner finished.
var ErrReservationLost = errors.New("idempotency reservation lost")

// RateLimitStore is a fixed-window request counter.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// ScanDeduper filters repeated reads of a card that stays on a reader.
type ScanDeduper interface {
	FirstSeen(ctx context.Context, source, cardUID string, window time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService is the single writer of balances.
type LedgerService interface {
	ApplyMutation(ctx context.Context, req MutationRequest) (*domain.MutationResult, error)
	RecordDecline(ctx context.Context, req DeclineRequest) (*domain.MutationResult, error)
	GetBalance(ctx context.Context, cardUID string) (int64, error)
	GetHistory(ctx context.Context, cardUID string, limit int) ([]domain.Transaction, error)
}

// MutationRequest asks for a signed change to one wallet.
// TOPUP amounts are positive, PAYMENT amounts negative.
type MutationRequest struct {
	CardUID string
	Amount  int64
	Type    domain.TransactionType
	Reason  string
}

// DeclineRequest records an attempt refused before it reached the engine.
// Amount is the unsigned magnitude that was attempted.
type DeclineRequest struct {
	CardUID string
	Type    domain.TransactionType
	Amount  int64
	Reason  string
	Origin  string // copied onto the event, e.g. domain.OriginDevice
}

// ProvisioningService creates cards and wallets on first sight.
type ProvisioningService interface {
	EnsureWallet(ctx context.Context, cardUID string) (*domain.Wallet, error)
}

// CatalogService serves the product list.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SeedDefaults(ctx context.Context) error
}
