package postgres

import (
	"context"
	"fmt"

	"smartpay/internal/core/domain"
)

// CardRepo implements ports.CardRepository.
type CardRepo struct {
	pool Pool
}

// NewCardRepo creates a new CardRepo.
func NewCardRepo(pool Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

// Create inserts the card unless its UID is already registered.
func (r *CardRepo) Create(ctx context.Context, c *domain.Card) (bool, error) {
	query := `INSERT INTO cards (uid, owner, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, c.UID, c.Owner, c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert card: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
