package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// Subjects for one team. Readers and terminals publish on the card subjects;
// the backend publishes confirmations on topup and pay, and its own presence
// on device status.
type Subjects struct {
	CardStatus   string
	CardBalance  string
	CardTopup    string
	CardPay      string
	DeviceHealth string
	DeviceStatus string
}

func NewSubjects(teamID string) Subjects {
	prefix := fmt.Sprintf("rfid.%s.", teamID)
	return Subjects{
		CardStatus:   prefix + "card.status",
		CardBalance:  prefix + "card.balance",
		CardTopup:    prefix + "card.topup",
		CardPay:      prefix + "card.pay",
		DeviceHealth: prefix + "device.health",
		DeviceStatus: prefix + "device.status",
	}
}

// Pay statuses exchanged with terminals.
const (
	PayApproved = "approved"
	PayDeclined = "declined"
)

// cardStatusMsg is sent by a reader when a card is presented. Balance is what
// the card itself reports, if anything.
type cardStatusMsg struct {
	UID      string `json:"uid"`
	Balance  *int64 `json:"balance,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// payMsg is a terminal's view of a payment.
type payMsg struct {
	UID        string `json:"uid"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount,omitempty"`
	NewBalance *int64 `json:"newBalance,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type balanceMsg struct {
	UID        string `json:"uid"`
	NewBalance int64  `json:"new_balance"`
}

// TopupConfirmation is published after a committed top-up.
type TopupConfirmation struct {
	UID             string    `json:"uid"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previousBalance"`
	NewBalance      int64     `json:"newBalance"`
	TransactionID   string    `json:"transactionId"`
	Timestamp       time.Time `json:"timestamp"`
}

// PayConfirmation is published after a committed payment, approved or declined.
type PayConfirmation struct {
	UID             string    `json:"uid"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previousBalance"`
	NewBalance      int64     `json:"newBalance"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	TransactionID   string    `json:"transactionId"`
	Timestamp       time.Time `json:"timestamp"`
}

// Presence announces the backend on the device status subject.
type Presence struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Dashboard event names.
const (
	EventCardScanned      = "card-scanned"
	EventPaymentConfirmed = "payment-confirmed"
	EventBalanceUpdated   = "balance-updated"
	EventDeviceHealth     = "device-health"
)

// CardScanned is broadcast when a reader reports a card.
type CardScanned struct {
	UID           string    `json:"uid"`
	DeviceBalance *int64    `json:"deviceBalance,omitempty"`
	Balance       int64     `json:"balance"`
	Timestamp     time.Time `json:"timestamp"`
}

type PaymentConfirmed struct {
	UID        string    `json:"uid"`
	Status     string    `json:"status"`
	NewBalance *int64    `json:"newBalance,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type BalanceUpdated struct {
	UID        string    `json:"uid"`
	NewBalance int64     `json:"newBalance"`
	Timestamp  time.Time `json:"timestamp"`
}

type DeviceHealth struct {
	Report    json.RawMessage `json:"report"`
	Timestamp time.Time       `json:"timestamp"`
}
