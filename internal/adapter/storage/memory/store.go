// Package memory is an in-process ledger backend. It implements the same
// repository ports as the postgres adapter, including row locks and
// all-or-nothing commits, so the engine behaves identically on both.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"smartpay/internal/core/domain"
)

// ErrForeignTx is returned when a repository receives a transaction that
// this store did not begin.
var ErrForeignTx = errors.New("memory: transaction not started by this store")

// ErrTxDone is returned by operations on a committed or rolled back transaction.
var ErrTxDone = errors.New("memory: transaction already closed")

// Store holds all tables behind one mutex. Row locks are separate so a
// long-held wallet lock never blocks reads.
type Store struct {
	mu       sync.RWMutex
	cards    map[string]domain.Card
	wallets  map[string]domain.Wallet
	txns     map[string][]domain.Transaction
	products []domain.Product

	locksMu  sync.Mutex
	rowLocks map[string]*rowLock
}

// rowLock is dropped from rowLocks when its last holder or waiter leaves.
type rowLock struct {
	sem  chan struct{}
	refs int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		cards:    make(map[string]domain.Card),
		wallets:  make(map[string]domain.Wallet),
		txns:     make(map[string][]domain.Transaction),
		rowLocks: make(map[string]*rowLock),
	}
}

// lockRow blocks until the wallet row for uid is free or ctx ends.
func (s *Store) lockRow(ctx context.Context, uid string) error {
	s.locksMu.Lock()
	rl, ok := s.rowLocks[uid]
	if !ok {
		rl = &rowLock{sem: make(chan struct{}, 1)}
		s.rowLocks[uid] = rl
	}
	rl.refs++
	s.locksMu.Unlock()

	select {
	case rl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		s.dropRowRef(uid, rl)
		return ctx.Err()
	}
}

func (s *Store) unlockRow(uid string) {
	s.locksMu.Lock()
	rl := s.rowLocks[uid]
	s.locksMu.Unlock()
	<-rl.sem
	s.dropRowRef(uid, rl)
}

func (s *Store) dropRowRef(uid string, rl *rowLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	rl.refs--
	if rl.refs == 0 {
		delete(s.rowLocks, uid)
	}
}

// rowLockCount is the number of live row lock entries.
func (s *Store) rowLockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.rowLocks)
}

func (s *Store) apply(updates map[string]domain.Wallet, appends []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for uid := range updates {
		if _, ok := s.wallets[uid]; !ok {
			return errors.New("memory: wallet vanished before commit")
		}
	}
	for uid, w := range updates {
		s.wallets[uid] = w
	}
	for _, t := range appends {
		s.txns[t.CardUID] = append(s.txns[t.CardUID], t)
	}
	return nil
}

// Card returns the stored card. Test helper.
func (s *Store) Card(uid string) (domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[uid]
	return c, ok
}

// Transactions returns every record for a card in append order. Test helper.
func (s *Store) Transactions(uid string) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, len(s.txns[uid]))
	copy(out, s.txns[uid])
	return out
}

func newestFirst(txns []domain.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID.String() > txns[j].ID.String()
	})
}
