package memory

import (
	"context"
	"fmt"
	"time"

	"smartpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// CardRepo implements ports.CardRepository.
type CardRepo struct{ s *Store }

func NewCardRepo(s *Store) *CardRepo { return &CardRepo{s: s} }

func (r *CardRepo) Create(ctx context.Context, c *domain.Card) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cards[c.UID]; ok {
		return false, nil
	}
	r.s.cards[c.UID] = *c
	return true, nil
}

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cards[w.CardUID]; !ok {
		return false, fmt.Errorf("insert wallet: card %s does not exist", w.CardUID)
	}
	if _, ok := r.s.wallets[w.CardUID]; ok {
		return false, nil
	}
	r.s.wallets[w.CardUID] = *w
	return true, nil
}

func (r *WalletRepo) GetByCardUID(ctx context.Context, cardUID string) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[cardUID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// GetByCardUIDForUpdate takes the row lock for the lifetime of tx, then
// returns the wallet as tx sees it.
func (r *WalletRepo) GetByCardUIDForUpdate(ctx context.Context, tx pgx.Tx, cardUID string) (*domain.Wallet, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	mt.mu.Lock()
	held := mt.holds(cardUID)
	mt.mu.Unlock()

	if !held {
		if err := r.s.lockRow(ctx, cardUID); err != nil {
			return nil, fmt.Errorf("get wallet for update: %w", err)
		}
		mt.mu.Lock()
		mt.locked = append(mt.locked, cardUID)
		mt.mu.Unlock()
	}

	mt.mu.Lock()
	staged, ok := mt.updates[cardUID]
	mt.mu.Unlock()
	if ok {
		return &staged, nil
	}
	return r.GetByCardUID(ctx, cardUID)
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardUID string, balance int64, updatedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	current, err := r.GetByCardUID(ctx, cardUID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("wallet not found: %s", cardUID)
	}
	if balance < 0 {
		return fmt.Errorf("update wallet balance: balance %d violates non-negative constraint", balance)
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	current.Balance = balance
	current.UpdatedAt = updatedAt
	mt.updates[cardUID] = *current
	return nil
}

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct{ s *Store }

func NewTransactionRepo(s *Store) *TransactionRepo { return &TransactionRepo{s: s} }

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.appends = append(mt.appends, *t)
	return nil
}

func (r *TransactionRepo) ListByCard(ctx context.Context, cardUID string, limit int) ([]domain.Transaction, error) {
	all := r.s.Transactions(cardUID)
	newestFirst(all)
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct{ s *Store }

func NewProductRepo(s *Store) *ProductRepo { return &ProductRepo{s: s} }

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.products {
		if existing.Name == p.Name {
			return fmt.Errorf("insert product: name %q already exists", p.Name)
		}
	}
	r.s.products = append(r.s.products, *p)
	return nil
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Product
	for _, p := range r.s.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProductRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.products)), nil
}

// HealthCheck implements ports.HealthChecker; the memory store is always up.
type HealthCheck struct{}

func (HealthCheck) Ping(ctx context.Context) error { return nil }
func (HealthCheck) Name() string                   { return "memory" }
