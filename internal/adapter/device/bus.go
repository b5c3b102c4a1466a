package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	handleTimeout = 5 * time.Second
	defaultSource = "reader"
)

// Conn is the part of *nats.Conn the bus uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Broadcaster pushes a named event to every connected dashboard.
type Broadcaster interface {
	Broadcast(eventType string, data any)
}

// Bus consumes reader and terminal messages and publishes ledger
// confirmations back to them. It is also a ports.EventSubscriber.
type Bus struct {
	conn         Conn
	subjects     Subjects
	provisioning ports.ProvisioningService
	ledger       ports.LedgerService
	deduper      ports.ScanDeduper
	dedupeWindow time.Duration
	broadcaster  Broadcaster
	log          zerolog.Logger

	subs []*nats.Subscription
}

// NewBus creates a Bus. deduper may be nil, in which case every scan is
// handled.
func NewBus(
	conn Conn,
	teamID string,
	provisioning ports.ProvisioningService,
	ledger ports.LedgerService,
	deduper ports.ScanDeduper,
	dedupeWindow time.Duration,
	broadcaster Broadcaster,
	log zerolog.Logger,
) *Bus {
	return &Bus{
		conn:         conn,
		subjects:     NewSubjects(teamID),
		provisioning: provisioning,
		ledger:       ledger,
		deduper:      deduper,
		dedupeWindow: dedupeWindow,
		broadcaster:  broadcaster,
		log:          log,
	}
}

// Start subscribes to the inbound subjects and announces the backend online.
func (b *Bus) Start() error {
	for _, subj := range []string{
		b.subjects.CardStatus,
		b.subjects.CardBalance,
		b.subjects.CardPay,
		b.subjects.DeviceHealth,
	} {
		sub, err := b.conn.Subscribe(subj, b.handleMessage)
		if err != nil {
			b.unsubscribe()
			return fmt.Errorf("subscribe %s: %w", subj, err)
		}
		b.subs = append(b.subs, sub)
	}

	b.publishPresence("online")
	b.log.Info().Int("subjects", len(b.subs)).Msg("device bus started")
	return nil
}

// Close announces the backend offline and drops the subscriptions.
func (b *Bus) Close() {
	b.publishPresence("offline")
	b.unsubscribe()
}

func (b *Bus) unsubscribe() {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			b.log.Warn().Err(err).Msg("unsubscribe failed")
		}
	}
	b.subs = nil
}

func (b *Bus) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var err error
	switch msg.Subject {
	case b.subjects.CardStatus:
		err = b.handleCardStatus(ctx, msg.Data)
	case b.subjects.CardPay:
		err = b.handlePay(ctx, msg.Data)
	case b.subjects.CardBalance:
		err = b.handleBalance(msg.Data)
	case b.subjects.DeviceHealth:
		err = b.handleHealth(msg.Data)
	default:
		b.log.Warn().Str("subject", msg.Subject).Msg("unexpected device subject")
		return
	}

	if err != nil {
		b.log.Error().Err(err).Str("subject", msg.Subject).Msg("device message rejected")
	}
}

func (b *Bus) handleCardStatus(ctx context.Context, data []byte) error {
	var m cardStatusMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode card status: %w", err)
	}
	if m.UID == "" {
		return errors.New("card status without uid")
	}

	if b.deduper != nil {
		source := m.DeviceID
		if source == "" {
			source = defaultSource
		}
		first, err := b.deduper.FirstSeen(ctx, source, m.UID, b.dedupeWindow)
		if err != nil {
			// fall through and handle the scan
			b.log.Warn().Err(err).Str("card_uid", m.UID).Msg("scan dedupe unavailable")
		} else if !first {
			b.log.Debug().Str("card_uid", m.UID).Str("source", source).Msg("repeated scan dropped")
			return nil
		}
	}

	wallet, err := b.provisioning.EnsureWallet(ctx, m.UID)
	if err != nil {
		return fmt.Errorf("ensure wallet %s: %w", m.UID, err)
	}

	b.broadcaster.Broadcast(EventCardScanned, CardScanned{
		UID:           m.UID,
		DeviceBalance: m.Balance,
		Balance:       wallet.Balance,
		Timestamp:     time.Now().UTC(),
	})
	return nil
}

func (b *Bus) handlePay(ctx context.Context, data []byte) error {
	var m payMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode pay: %w", err)
	}
	if m.UID == "" {
		return errors.New("pay message without uid")
	}

	b.broadcaster.Broadcast(EventPaymentConfirmed, PaymentConfirmed{
		UID:        m.UID,
		Status:     m.Status,
		NewBalance: m.NewBalance,
		Timestamp:  time.Now().UTC(),
	})

	if m.Status != PayDeclined {
		return nil
	}

	reason := m.Reason
	if reason == "" {
		reason = "Declined by terminal"
	}
	_, err := b.ledger.RecordDecline(ctx, ports.DeclineRequest{
		CardUID: m.UID,
		Type:    domain.TransactionTypePayment,
		Amount:  m.Amount,
		Reason:  reason,
		Origin:  domain.OriginDevice,
	})
	if err != nil {
		return fmt.Errorf("record terminal decline for %s: %w", m.UID, err)
	}
	return nil
}

func (b *Bus) handleBalance(data []byte) error {
	var m balanceMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode balance: %w", err)
	}
	if m.UID == "" {
		return errors.New("balance message without uid")
	}

	b.broadcaster.Broadcast(EventBalanceUpdated, BalanceUpdated{
		UID:        m.UID,
		NewBalance: m.NewBalance,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

func (b *Bus) handleHealth(data []byte) error {
	if !json.Valid(data) {
		return errors.New("device health is not json")
	}
	b.broadcaster.Broadcast(EventDeviceHealth, DeviceHealth{
		Report:    json.RawMessage(data),
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (b *Bus) Name() string { return "device-bus" }

// HandleEvent confirms committed ledger events to the devices. Events that a
// device reported itself are not echoed back.
func (b *Bus) HandleEvent(_ context.Context, event domain.LedgerEvent) error {
	if event.Origin == domain.OriginDevice {
		return nil
	}

	switch event.Type {
	case domain.TransactionTypeTopup:
		if !event.Succeeded() {
			return nil
		}
		return b.publish(b.subjects.CardTopup, TopupConfirmation{
			UID:             event.CardUID,
			Amount:          event.Amount,
			PreviousBalance: event.PreviousBalance,
			NewBalance:      event.NewBalance,
			TransactionID:   event.TransactionID,
			Timestamp:       event.Timestamp,
		})
	case domain.TransactionTypePayment:
		conf := PayConfirmation{
			UID:             event.CardUID,
			Amount:          event.Amount,
			PreviousBalance: event.PreviousBalance,
			NewBalance:      event.NewBalance,
			Status:          PayApproved,
			TransactionID:   event.TransactionID,
			Timestamp:       event.Timestamp,
		}
		if !event.Succeeded() {
			conf.Status = PayDeclined
			conf.Reason = event.Reason
		}
		return b.publish(b.subjects.CardPay, conf)
	}
	return nil
}

func (b *Bus) publish(subj string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subj, err)
	}
	if err := b.conn.Publish(subj, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}

func (b *Bus) publishPresence(status string) {
	if err := b.publish(b.subjects.DeviceStatus, Presence{Status: status, Timestamp: time.Now().UTC()}); err != nil {
		b.log.Warn().Err(err).Str("status", status).Msg("presence not published")
	}
}
