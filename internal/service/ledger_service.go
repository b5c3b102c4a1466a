package service

import (
	"context"
	"fmt"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"
	"smartpay/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerLimits bounds what the engine accepts.
type LedgerLimits struct {
	MaxAmount           int64
	LockTimeout         time.Duration
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// LedgerServiceImpl implements ports.LedgerService. It is the only code that
// writes wallet balances.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	notifier   ports.EventNotifier
	locks      *cardLocks
	limits     LedgerLimits
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	notifier ports.EventNotifier,
	limits LedgerLimits,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		notifier:   notifier,
		locks:      newCardLocks(),
		limits:     limits,
		log:        log,
	}
}

// ApplyMutation runs the read-check-write-log cycle for one wallet.
// An insufficient-balance PAYMENT is committed as a FAILED record and
// returned as a declined result, not as an error.
func (s *LedgerServiceImpl) ApplyMutation(ctx context.Context, req ports.MutationRequest) (*domain.MutationResult, error) {
	if err := s.validateMutation(req); err != nil {
		return nil, err
	}

	unlock, err := s.lockCard(ctx, req.CardUID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByCardUIDForUpdate(ctx, dbTx, req.CardUID)
	if err != nil {
		return nil, storageErr("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(req.CardUID)
	}

	prev := wallet.Balance
	newBalance, ok := money.AddChecked(prev, req.Amount)
	if !ok {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:              domain.NewTransactionID(),
		CardUID:         req.CardUID,
		Type:            req.Type,
		Amount:          magnitude(req.Amount),
		PreviousBalance: prev,
		CreatedAt:       now,
	}

	if newBalance < 0 {
		txn.NewBalance = prev
		txn.Status = domain.TransactionStatusFailed
		txn.Reason = apperror.ErrInsufficientBalance(txn.Amount, prev).Message
	} else {
		txn.NewBalance = newBalance
		txn.Status = domain.TransactionStatusSuccess
		txn.Reason = req.Reason

		if err := s.walletRepo.UpdateBalance(ctx, dbTx, req.CardUID, newBalance, now); err != nil {
			return nil, storageErr("update balance", err)
		}
	}

	if err := s.commit(ctx, dbTx, txn); err != nil {
		return nil, err
	}

	result := domain.NewMutationResult(txn)
	s.publish(result)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("card_uid", txn.CardUID).
		Str("type", string(txn.Type)).
		Str("status", string(txn.Status)).
		Int64("amount", txn.Amount).
		Int64("previous_balance", txn.PreviousBalance).
		Int64("new_balance", txn.NewBalance).
		Msg("mutation committed")

	return result, nil
}

// RecordDecline appends a FAILED record for an attempt that was refused
// before it reached the engine. The balance is read but never changed.
func (s *LedgerServiceImpl) RecordDecline(ctx context.Context, req ports.DeclineRequest) (*domain.MutationResult, error) {
	if req.CardUID == "" {
		return nil, apperror.Validation("card uid is required")
	}
	if !req.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction type %q", req.Type))
	}
	if req.Amount < 0 || req.Amount > s.limits.MaxAmount {
		return nil, apperror.ErrInvalidAmount()
	}

	unlock, err := s.lockCard(ctx, req.CardUID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByCardUIDForUpdate(ctx, dbTx, req.CardUID)
	if err != nil {
		return nil, storageErr("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(req.CardUID)
	}

	reason := req.Reason
	if reason == "" {
		reason = "Declined"
	}

	txn := &domain.Transaction{
		ID:              domain.NewTransactionID(),
		CardUID:         req.CardUID,
		Type:            req.Type,
		Amount:          req.Amount,
		PreviousBalance: wallet.Balance,
		NewBalance:      wallet.Balance,
		Status:          domain.TransactionStatusFailed,
		Reason:          reason,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.commit(ctx, dbTx, txn); err != nil {
		return nil, err
	}

	result := domain.NewMutationResult(txn)
	result.Origin = req.Origin
	s.publish(result)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("card_uid", txn.CardUID).
		Str("reason", reason).
		Msg("decline recorded")

	return result, nil
}

// GetBalance reads the committed balance without locking.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, cardUID string) (int64, error) {
	wallet, err := s.walletRepo.GetByCardUID(ctx, cardUID)
	if err != nil {
		return 0, storageErr("get wallet", err)
	}
	if wallet == nil {
		return 0, apperror.ErrWalletNotFound(cardUID)
	}
	return wallet.Balance, nil
}

// GetHistory returns the newest transactions for a card.
func (s *LedgerServiceImpl) GetHistory(ctx context.Context, cardUID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = s.limits.HistoryDefaultLimit
	}
	if limit > s.limits.HistoryMaxLimit {
		limit = s.limits.HistoryMaxLimit
	}

	txns, err := s.txRepo.ListByCard(ctx, cardUID, limit)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	return txns, nil
}

func (s *LedgerServiceImpl) validateMutation(req ports.MutationRequest) error {
	if req.CardUID == "" {
		return apperror.Validation("card uid is required")
	}
	switch req.Type {
	case domain.TransactionTypeTopup:
		if req.Amount <= 0 {
			return apperror.ErrInvalidAmount()
		}
	case domain.TransactionTypePayment:
		if req.Amount >= 0 {
			return apperror.ErrInvalidAmount()
		}
	default:
		return apperror.Validation(fmt.Sprintf("unknown transaction type %q", req.Type))
	}
	if req.Amount > s.limits.MaxAmount || req.Amount < -s.limits.MaxAmount {
		return apperror.ErrInvalidAmount()
	}
	return nil
}

func (s *LedgerServiceImpl) lockCard(ctx context.Context, cardUID string) (func(), error) {
	lockCtx := ctx
	if s.limits.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.limits.LockTimeout)
		defer cancel()
	}

	unlock, err := s.locks.Lock(lockCtx, cardUID)
	if err != nil {
		return nil, apperror.ErrBusy(fmt.Errorf("lock card %s: %w", cardUID, err))
	}
	return unlock, nil
}

// commit appends txn and commits the unit of work.
func (s *LedgerServiceImpl) commit(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction) error {
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return storageErr("create transaction", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return storageErr("commit tx", err)
	}
	return nil
}

func (s *LedgerServiceImpl) publish(result *domain.MutationResult) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(domain.EventFromResult(result))
}

// magnitude is |v|. Callers have already bounded v by MaxAmount.
func magnitude(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
