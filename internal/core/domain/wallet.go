package domain

import "time"

// Wallet holds the balance of exactly one card, in minor units.
type Wallet struct {
	CardUID   string    `json:"card_uid"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet returns an empty wallet for a freshly provisioned card.
func NewWallet(cardUID string, now time.Time) *Wallet {
	return &Wallet{
		CardUID:   cardUID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
