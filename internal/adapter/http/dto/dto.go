package dto

import (
	"encoding/json"
	"time"
)

// TopupRequest is the request body for an admin top-up.
// Amount accepts a JSON number or a numeric string in major units.
type TopupRequest struct {
	UID    string      `json:"uid" binding:"required,card_uid"`
	Amount json.Number `json:"amount" binding:"required"`
}

// PayRequest is the request body for a cashier payment.
type PayRequest struct {
	UID         string      `json:"uid" binding:"required,card_uid"`
	ProductID   string      `json:"product_id" binding:"omitempty,product_ref"`
	Quantity    int         `json:"quantity" binding:"omitempty,min=1,max=1000"`
	TotalAmount json.Number `json:"total_amount" binding:"required"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	UID     string `json:"uid"`
	Balance int64  `json:"balance"`
	Display string `json:"display"` // balance rendered in major units
}

// CardResponse is returned when a card is provisioned.
type CardResponse struct {
	UID       string    `json:"uid"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// MutationResponse is the response body for a committed top-up or payment.
type MutationResponse struct {
	UID             string    `json:"uid"`
	Type            string    `json:"type"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previous_balance"`
	NewBalance      int64     `json:"new_balance"`
	Status          string    `json:"status"` // approved, declined
	Reason          string    `json:"reason"`
	TransactionID   string    `json:"transaction_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// DeclineDetails travels in the error envelope of a declined payment.
type DeclineDetails struct {
	Required      int64  `json:"required"`
	Available     int64  `json:"available"`
	TransactionID string `json:"transaction_id"`
}

// TransactionResponse is one entry of a card's history.
type TransactionResponse struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previous_balance"`
	NewBalance      int64     `json:"new_balance"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionListResponse wraps a card's history, newest first.
type TransactionListResponse struct {
	UID   string                `json:"uid"`
	Items []TransactionResponse `json:"items"`
	Count int                   `json:"count"`
}

// ProductResponse is one catalog entry.
type ProductResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}
