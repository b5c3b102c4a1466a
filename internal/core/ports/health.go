package ports

//go:generate mockgen -source=health.go -destination=mocks/mock_health.go -package=mocks

import "context"

// HealthChecker is one backing service reported by GET /health: the ledger
// database, Redis, the Mongo archive or the device bus.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
