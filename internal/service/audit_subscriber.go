package service

import (
	"context"

	"smartpay/internal/core/domain"

	"github.com/rs/zerolog"
)

// AuditSubscriber writes every committed ledger event to the log.
type AuditSubscriber struct {
	log zerolog.Logger
}

func NewAuditSubscriber(log zerolog.Logger) *AuditSubscriber {
	return &AuditSubscriber{log: log}
}

func (s *AuditSubscriber) Name() string { return "audit" }

func (s *AuditSubscriber) HandleEvent(_ context.Context, event domain.LedgerEvent) error {
	entry := s.log.Info()
	if !event.Succeeded() {
		entry = s.log.Warn()
	}
	entry.
		Str("tx_id", event.TransactionID).
		Str("card_uid", event.CardUID).
		Str("type", string(event.Type)).
		Str("status", string(event.Status)).
		Int64("amount", event.Amount).
		Int64("previous_balance", event.PreviousBalance).
		Int64("new_balance", event.NewBalance).
		Str("reason", event.Reason).
		Time("committed_at", event.Timestamp).
		Msg("audit")
	return nil
}
