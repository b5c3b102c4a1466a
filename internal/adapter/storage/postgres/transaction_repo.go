package postgres

import (
	"context"
	"fmt"

	"smartpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a record within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, card_uid, type, amount, previous_balance, new_balance,
		status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.CardUID, t.Type, t.Amount,
		t.PreviousBalance, t.NewBalance, t.Status, t.Reason, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByCard returns up to limit records for a card, newest first.
// Ties on created_at fall back to the time-ordered id.
func (r *TransactionRepo) ListByCard(ctx context.Context, cardUID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT id, card_uid, type, amount, previous_balance, new_balance, status, reason, created_at
		FROM transactions WHERE card_uid = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cardUID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.CardUID, &t.Type, &t.Amount,
			&t.PreviousBalance, &t.NewBalance, &t.Status, &t.Reason, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}
