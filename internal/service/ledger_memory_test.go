package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"smartpay/internal/adapter/storage/memory"
	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (n *recordingNotifier) Notify(e domain.LedgerEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) all() []domain.LedgerEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.LedgerEvent(nil), n.events...)
}

type memoryLedger struct {
	store    *memory.Store
	ledger   *LedgerServiceImpl
	prov     *ProvisioningServiceImpl
	notifier *recordingNotifier
}

func newMemoryLedger(t *testing.T, txRepo ports.TransactionRepository) *memoryLedger {
	t.Helper()
	store := memory.NewStore()
	if txRepo == nil {
		txRepo = memory.NewTransactionRepo(store)
	}
	walletRepo := memory.NewWalletRepo(store)
	n := &recordingNotifier{}
	return &memoryLedger{
		store:    store,
		ledger:   NewLedgerService(walletRepo, txRepo, memory.NewTransactor(store), n, testLimits, newTestLogger()),
		prov:     NewProvisioningService(memory.NewCardRepo(store), walletRepo, newTestLogger()),
		notifier: n,
	}
}

func (m *memoryLedger) provision(t *testing.T, uid string) {
	t.Helper()
	_, err := m.prov.EnsureWallet(context.Background(), uid)
	require.NoError(t, err)
}

func topup(uid string, amount int64) ports.MutationRequest {
	return ports.MutationRequest{CardUID: uid, Amount: amount, Type: domain.TransactionTypeTopup, Reason: "Admin top-up"}
}

func pay(uid string, amount int64) ports.MutationRequest {
	return ports.MutationRequest{CardUID: uid, Amount: -amount, Type: domain.TransactionTypePayment, Reason: "Product: Buy, Qty: 1"}
}

// assertChain checks that consecutive records link up and that the wallet
// equals the sum of successful effects.
func assertChain(t *testing.T, m *memoryLedger, uid string) {
	t.Helper()
	txns := m.store.Transactions(uid)

	var prevNew, sum int64
	for i, txn := range txns {
		if i > 0 {
			assert.Equal(t, prevNew, txn.PreviousBalance, "record %d does not continue the chain", i)
		}
		if txn.Status == domain.TransactionStatusSuccess {
			assert.Equal(t, txn.PreviousBalance+txn.SignedAmount(), txn.NewBalance)
		} else {
			assert.Equal(t, txn.PreviousBalance, txn.NewBalance)
		}
		sum += txn.BalanceEffect()
		prevNew = txn.NewBalance
	}

	balance, err := m.ledger.GetBalance(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, sum, balance)
	assert.GreaterOrEqual(t, balance, int64(0))
}

func TestLedger_Memory_TopupPayDecline(t *testing.T) {
	m := newMemoryLedger(t, nil)
	ctx := context.Background()
	m.provision(t, "X")

	r1, err := m.ledger.ApplyMutation(ctx, topup("X", 500))
	require.NoError(t, err)
	assert.Equal(t, int64(500), r1.NewBalance)

	r2, err := m.ledger.ApplyMutation(ctx, pay("X", 200))
	require.NoError(t, err)
	assert.Equal(t, int64(300), r2.NewBalance)

	r3, err := m.ledger.ApplyMutation(ctx, pay("X", 1000))
	require.NoError(t, err)
	assert.True(t, r3.Declined)
	assert.Equal(t, int64(700), r3.Shortfall)

	balance, err := m.ledger.GetBalance(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	history, err := m.ledger.GetHistory(ctx, "X", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.TransactionStatusFailed, history[0].Status)
	assert.Equal(t, domain.TransactionTypeTopup, history[2].Type)

	events := m.notifier.all()
	require.Len(t, events, 3)
	assert.Equal(t, r1.TransactionID.String(), events[0].TransactionID)
	assert.False(t, events[2].Succeeded())

	assertChain(t, m, "X")
}

func TestLedger_Memory_ConcurrentTopups(t *testing.T) {
	m := newMemoryLedger(t, nil)
	m.provision(t, "C")

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ledger.ApplyMutation(context.Background(), topup("C", 1)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	balance, err := m.ledger.GetBalance(context.Background(), "C")
	require.NoError(t, err)
	assert.Equal(t, int64(n), balance)
	assert.Len(t, m.store.Transactions("C"), n)
	assertChain(t, m, "C")
	assert.Equal(t, 0, m.ledger.locks.size())
}

func TestLedger_Memory_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	m := newMemoryLedger(t, nil)
	ctx := context.Background()
	m.provision(t, "P")
	_, err := m.ledger.ApplyMutation(ctx, topup("P", 1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	approved := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.ledger.ApplyMutation(ctx, pay("P", 100))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if !res.Declined {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, approved)
	balance, err := m.ledger.GetBalance(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assertChain(t, m, "P")
}

func TestLedger_Memory_IndependentCards(t *testing.T) {
	m := newMemoryLedger(t, nil)
	ctx := context.Background()
	m.provision(t, "A")
	m.provision(t, "B")

	_, err := m.ledger.ApplyMutation(ctx, topup("A", 70))
	require.NoError(t, err)
	_, err = m.ledger.ApplyMutation(ctx, topup("B", 5))
	require.NoError(t, err)

	a, _ := m.ledger.GetBalance(ctx, "A")
	b, _ := m.ledger.GetBalance(ctx, "B")
	assert.Equal(t, int64(70), a)
	assert.Equal(t, int64(5), b)
}

func TestLedger_Memory_RandomSequenceKeepsInvariants(t *testing.T) {
	m := newMemoryLedger(t, nil)
	ctx := context.Background()
	m.provision(t, "R")

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 300; i++ {
		amount := rng.Int63n(500) + 1
		req := topup("R", amount)
		if rng.Intn(2) == 0 {
			req = pay("R", amount)
		}
		_, err := m.ledger.ApplyMutation(ctx, req)
		require.NoError(t, err)
	}

	assertChain(t, m, "R")
}

func TestLedger_Memory_UnknownCard(t *testing.T) {
	m := newMemoryLedger(t, nil)

	_, err := m.ledger.ApplyMutation(context.Background(), topup("NOBODY", 10))
	require.Error(t, err)
	assert.Empty(t, m.store.Transactions("NOBODY"))
	assert.Empty(t, m.notifier.all())
}

// failingTxRepo refuses every append after the first ok calls.
type failingTxRepo struct {
	ports.TransactionRepository
	ok int
}

func (r *failingTxRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if r.ok > 0 {
		r.ok--
		return r.TransactionRepository.Create(ctx, tx, t)
	}
	return errors.New("log unavailable")
}

func TestLedger_Memory_FailedAppendLeavesWalletUntouched(t *testing.T) {
	store := memory.NewStore()
	txRepo := &failingTxRepo{TransactionRepository: memory.NewTransactionRepo(store), ok: 1}
	walletRepo := memory.NewWalletRepo(store)
	n := &recordingNotifier{}
	ledger := NewLedgerService(walletRepo, txRepo, memory.NewTransactor(store), n, testLimits, newTestLogger())
	prov := NewProvisioningService(memory.NewCardRepo(store), walletRepo, newTestLogger())

	ctx := context.Background()
	_, err := prov.EnsureWallet(ctx, "F")
	require.NoError(t, err)

	_, err = ledger.ApplyMutation(ctx, topup("F", 100))
	require.NoError(t, err)

	_, err = ledger.ApplyMutation(ctx, topup("F", 50))
	require.Error(t, err)

	balance, err := ledger.GetBalance(ctx, "F")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Len(t, store.Transactions("F"), 1)
	assert.Len(t, n.all(), 1)

	// The failed attempt released its row lock
	done := make(chan struct{})
	go func() {
		defer close(done)
		txRepo.ok = 1
		_, err := ledger.ApplyMutation(ctx, topup("F", 1))
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wallet row still locked after failed mutation")
	}
}
