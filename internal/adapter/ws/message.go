package ws

import (
	"encoding/json"
	"time"

	"smartpay/internal/core/domain"
)

// Message is the frame exchanged with dashboards in both directions.
type Message struct {
	Type string          `json:"type"` // e.g. "request-balance", "topup-success"
	Data json.RawMessage `json:"data,omitempty"`
}

// Requests a dashboard can make and the replies it gets.
const (
	RequestBalance   = "request-balance"
	RequestHistory   = "request-history"
	RequestProducts  = "request-products"
	BalanceResponse  = "balance-response"
	HistoryResponse  = "history-response"
	ProductsResponse = "products-response"
	ErrorResponse    = "error"
)

// Ledger events pushed to every dashboard.
const (
	EventTopupSuccess    = "topup-success"
	EventPaymentSuccess  = "payment-success"
	EventPaymentDeclined = "payment-declined"
)

type balanceRequest struct {
	UID string `json:"uid"`
}

type historyRequest struct {
	UID   string `json:"uid"`
	Limit int    `json:"limit"`
}

type balanceReply struct {
	UID     string `json:"uid"`
	Balance int64  `json:"balance"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type historyReply struct {
	UID          string               `json:"uid"`
	Transactions []domain.Transaction `json:"transactions"`
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
}

type productsReply struct {
	Products []domain.Product `json:"products"`
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
}

type errorReply struct {
	Error string `json:"error"`
}

// MutationNotice describes a committed top-up or payment.
type MutationNotice struct {
	UID             string    `json:"uid"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previousBalance"`
	NewBalance      int64     `json:"newBalance"`
	Reason          string    `json:"reason,omitempty"`
	TransactionID   string    `json:"transactionId"`
	Timestamp       time.Time `json:"timestamp"`
}

// DeclineNotice describes a committed decline.
type DeclineNotice struct {
	UID           string    `json:"uid"`
	Reason        string    `json:"reason"`
	Required      int64     `json:"required"`
	Available     int64     `json:"available"`
	TransactionID string    `json:"transactionId"`
	Timestamp     time.Time `json:"timestamp"`
}
