package domain

import (
	"time"

	"github.com/google/uuid"
)

// MutationResult is what the ledger engine returns for every committed attempt.
// A declined payment is a result, not an error: Declined is set and the
// balances are equal.
type MutationResult struct {
	CardUID         string            `json:"card_uid"`
	Type            TransactionType   `json:"type"`
	Amount          int64             `json:"amount"`
	PreviousBalance int64             `json:"previous_balance"`
	NewBalance      int64             `json:"new_balance"`
	TransactionID   uuid.UUID         `json:"transaction_id"`
	Status          TransactionStatus `json:"status"`
	Reason          string            `json:"reason"`
	Declined        bool              `json:"declined"`
	Shortfall       int64             `json:"shortfall,omitempty"`
	CommittedAt     time.Time         `json:"committed_at"`
	Origin          string            `json:"origin,omitempty"`
}

// NewMutationResult derives a result from the record that was committed.
func NewMutationResult(t *Transaction) *MutationResult {
	res := &MutationResult{
		CardUID:         t.CardUID,
		Type:            t.Type,
		Amount:          t.Amount,
		PreviousBalance: t.PreviousBalance,
		NewBalance:      t.NewBalance,
		TransactionID:   t.ID,
		Status:          t.Status,
		Reason:          t.Reason,
		CommittedAt:     t.CreatedAt,
	}
	if t.Status == TransactionStatusFailed {
		res.Declined = true
		if t.Type == TransactionTypePayment && t.Amount > t.PreviousBalance {
			res.Shortfall = t.Amount - t.PreviousBalance
		}
	}
	return res
}

// OriginDevice marks results reported by a terminal rather than decided here.
const OriginDevice = "device"

// LedgerEvent is published after every commit, successful or declined.
type LedgerEvent struct {
	CardUID         string            `json:"card_uid" bson:"card_uid"`
	Type            TransactionType   `json:"type" bson:"type"`
	Amount          int64             `json:"amount" bson:"amount"`
	PreviousBalance int64             `json:"previous_balance" bson:"previous_balance"`
	NewBalance      int64             `json:"new_balance" bson:"new_balance"`
	Status          TransactionStatus `json:"status" bson:"status"`
	Reason          string            `json:"reason" bson:"reason"`
	TransactionID   string            `json:"transaction_id" bson:"transaction_id"`
	Timestamp       time.Time         `json:"timestamp" bson:"timestamp"`
	Origin          string            `json:"origin,omitempty" bson:"origin,omitempty"`
}

// EventFromResult builds the notification for a committed result.
func EventFromResult(r *MutationResult) LedgerEvent {
	return LedgerEvent{
		CardUID:         r.CardUID,
		Type:            r.Type,
		Amount:          r.Amount,
		PreviousBalance: r.PreviousBalance,
		NewBalance:      r.NewBalance,
		Status:          r.Status,
		Reason:          r.Reason,
		TransactionID:   r.TransactionID.String(),
		Timestamp:       r.CommittedAt,
		Origin:          r.Origin,
	}
}

// Succeeded reports whether the event moved money.
func (e LedgerEvent) Succeeded() bool {
	return e.Status == TransactionStatusSuccess
}
