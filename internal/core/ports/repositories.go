package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"smartpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// CardRepository persists cards. Create reports false when the UID already exists.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) (bool, error)
}

// WalletRepository persists wallets.
// Methods accepting pgx.Tx run inside the ledger's unit of work and hold the row lock.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) (bool, error)
	GetByCardUID(ctx context.Context, cardUID string) (*domain.Wallet, error)
	GetByCardUIDForUpdate(ctx context.Context, tx pgx.Tx, cardUID string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, cardUID string, balance int64, updatedAt time.Time) error
}

// TransactionRepository is the append-only transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// ListByCard returns at most limit records, newest first.
	ListByCard(ctx context.Context, cardUID string, limit int) ([]domain.Transaction, error)
}

// ProductRepository persists the product catalog.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	ListActive(ctx context.Context) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
