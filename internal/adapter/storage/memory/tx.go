package memory

import (
	"context"
	"errors"
	"sync"

	"smartpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoSQL = errors.New("memory: SQL is not supported")

// Tx stages wallet updates and log appends until Commit.
// Rollback, or a Commit that fails, discards everything staged.
type Tx struct {
	store *Store

	mu      sync.Mutex
	locked  []string
	updates map[string]domain.Wallet
	appends []domain.Transaction
	done    bool
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

func NewTransactor(s *Store) *Transactor {
	return &Transactor{store: s}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: t.store, updates: make(map[string]domain.Wallet)}, nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, ErrForeignTx
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return nil, ErrTxDone
	}
	return mt, nil
}

func (t *Tx) holds(uid string) bool {
	for _, l := range t.locked {
		if l == uid {
			return true
		}
	}
	return false
}

func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	err := t.store.apply(t.updates, t.appends)
	t.finish()
	return err
}

func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	for _, uid := range t.locked {
		t.store.unlockRow(uid)
	}
	t.locked = nil
	t.updates = nil
	t.appends = nil
	t.done = true
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errNoSQL }
func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return errRow{} }
func (t *Tx) Conn() *pgx.Conn                                              { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }
