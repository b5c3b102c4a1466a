package postgres

import (
	"context"
	"errors"
	"fmt"
)

// errSchemaMissing means the database answers but migrations have not run.
var errSchemaMissing = errors.New("ledger schema not migrated")

// HealthCheck pings PostgreSQL and confirms the ledger tables exist, so a
// fresh database without `migrate up` reports unhealthy instead of failing
// on the first top-up.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	var ready bool
	err := h.pool.QueryRow(ctx,
		`SELECT to_regclass('wallets') IS NOT NULL AND to_regclass('transactions') IS NOT NULL`,
	).Scan(&ready)
	if err != nil {
		return fmt.Errorf("schema probe: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }
