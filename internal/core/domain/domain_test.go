package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionType_Valid(t *testing.T) {
	assert.True(t, TransactionTypeTopup.Valid())
	assert.True(t, TransactionTypePayment.Valid())
	assert.False(t, TransactionType("REFUND").Valid())
	assert.False(t, TransactionType("").Valid())
}

func TestTransaction_SignedAmountAndEffect(t *testing.T) {
	tests := []struct {
		name       string
		txn        Transaction
		wantSigned int64
		wantEffect int64
	}{
		{"successful topup", Transaction{Type: TransactionTypeTopup, Amount: 500, Status: TransactionStatusSuccess}, 500, 500},
		{"successful payment", Transaction{Type: TransactionTypePayment, Amount: 200, Status: TransactionStatusSuccess}, -200, -200},
		{"failed payment", Transaction{Type: TransactionTypePayment, Amount: 1000, Status: TransactionStatusFailed}, -1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSigned, tt.txn.SignedAmount())
			assert.Equal(t, tt.wantEffect, tt.txn.BalanceEffect())
		})
	}
}

func TestNewTransactionID_TimeOrdered(t *testing.T) {
	a := NewTransactionID()
	b := NewTransactionID()

	assert.Equal(t, 7, int(a.Version()))
	assert.Less(t, a.String(), b.String())
}

func TestNewMutationResult(t *testing.T) {
	now := time.Now()

	ok := NewMutationResult(&Transaction{
		ID: NewTransactionID(), CardUID: "X", Type: TransactionTypeTopup, Amount: 500,
		PreviousBalance: 0, NewBalance: 500, Status: TransactionStatusSuccess, CreatedAt: now,
	})
	assert.False(t, ok.Declined)
	assert.Zero(t, ok.Shortfall)
	assert.Equal(t, int64(500), ok.NewBalance)
	assert.Equal(t, now, ok.CommittedAt)

	declined := NewMutationResult(&Transaction{
		ID: NewTransactionID(), CardUID: "X", Type: TransactionTypePayment, Amount: 1000,
		PreviousBalance: 300, NewBalance: 300, Status: TransactionStatusFailed,
	})
	assert.True(t, declined.Declined)
	assert.Equal(t, int64(700), declined.Shortfall)
	assert.Equal(t, declined.PreviousBalance, declined.NewBalance)
}

func TestEventFromResult(t *testing.T) {
	res := &MutationResult{
		CardUID: "X", Type: TransactionTypePayment, Amount: 200, PreviousBalance: 500,
		NewBalance: 300, Status: TransactionStatusSuccess, TransactionID: NewTransactionID(),
		Reason: "Product: Buy, Qty: 2",
	}

	evt := EventFromResult(res)
	assert.Equal(t, "X", evt.CardUID)
	assert.Equal(t, res.TransactionID.String(), evt.TransactionID)
	assert.True(t, evt.Succeeded())
}

func TestNewWallet(t *testing.T) {
	now := time.Now()
	w := NewWallet("04A1", now)

	assert.Equal(t, "04A1", w.CardUID)
	assert.Zero(t, w.Balance)
	assert.Equal(t, now, w.CreatedAt)
	assert.Equal(t, now, w.UpdatedAt)
}
