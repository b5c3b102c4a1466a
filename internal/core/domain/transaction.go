package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeTopup   TransactionType = "TOPUP"
	TransactionTypePayment TransactionType = "PAYMENT"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeTopup || t == TransactionTypePayment
}

// TransactionStatus is final at creation; records are never updated.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is an immutable ledger entry. Amount is the unsigned magnitude;
// the sign follows from Type.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	CardUID         string            `json:"card_uid"`
	Type            TransactionType   `json:"type"`
	Amount          int64             `json:"amount"`
	PreviousBalance int64             `json:"previous_balance"`
	NewBalance      int64             `json:"new_balance"`
	Status          TransactionStatus `json:"status"`
	Reason          string            `json:"reason"`
	CreatedAt       time.Time         `json:"created_at"`
}

// SignedAmount returns the amount with the sign of its direction.
func (t *Transaction) SignedAmount() int64 {
	if t.Type == TransactionTypePayment {
		return -t.Amount
	}
	return t.Amount
}

// BalanceEffect is what the record contributed to the wallet: the signed
// amount for SUCCESS, zero for FAILED.
func (t *Transaction) BalanceEffect() int64 {
	if t.Status != TransactionStatusSuccess {
		return 0
	}
	return t.SignedAmount()
}

// NewTransactionID returns a time-ordered identifier.
func NewTransactionID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
