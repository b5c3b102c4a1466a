package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts the wallet unless the card already has one.
// The unique constraint on card_uid settles concurrent first scans.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (card_uid, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (card_uid) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, w.CardUID, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByCardUID is a non-locking read.
func (r *WalletRepo) GetByCardUID(ctx context.Context, cardUID string) (*domain.Wallet, error) {
	query := `SELECT card_uid, balance, created_at, updated_at
		FROM wallets WHERE card_uid = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, cardUID), "get wallet by card")
}

// GetByCardUIDForUpdate locks the wallet row until tx ends.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByCardUIDForUpdate(ctx context.Context, tx pgx.Tx, cardUID string) (*domain.Wallet, error) {
	query := `SELECT card_uid, balance, created_at, updated_at
		FROM wallets WHERE card_uid = $1 FOR UPDATE`

	return scanWallet(tx.QueryRow(ctx, query, cardUID), "get wallet for update")
}

// UpdateBalance overwrites the balance. Validation is the engine's job.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardUID string, balance int64, updatedAt time.Time) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE card_uid = $3`

	tag, err := tx.Exec(ctx, query, balance, updatedAt, cardUID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", cardUID)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.CardUID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
