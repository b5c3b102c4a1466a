package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartpay/internal/core/domain"
	"smartpay/internal/core/ports"

	"github.com/rs/zerolog"
)

// EventDispatcher implements ports.EventNotifier. Events are queued on a
// bounded channel and fanned out to subscribers by one worker, in commit
// order. Delivery is at most once: a full queue drops the event.
type EventDispatcher struct {
	subscribers    []ports.EventSubscriber
	queue          chan domain.LedgerEvent
	handlerTimeout time.Duration
	log            zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

// NewEventDispatcher creates a dispatcher. Start must be called before events
// are delivered.
func NewEventDispatcher(bufferSize int, handlerTimeout time.Duration, log zerolog.Logger, subscribers ...ports.EventSubscriber) *EventDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &EventDispatcher{
		subscribers:    subscribers,
		queue:          make(chan domain.LedgerEvent, bufferSize),
		handlerTimeout: handlerTimeout,
		log:            log,
		done:           make(chan struct{}),
	}
}

// Subscribe adds a subscriber. It must be called before Start.
func (d *EventDispatcher) Subscribe(sub ports.EventSubscriber) {
	d.subscribers = append(d.subscribers, sub)
}

// Start launches the delivery worker.
func (d *EventDispatcher) Start() {
	go d.run()
}

// Notify enqueues event without blocking.
func (d *EventDispatcher) Notify(event domain.LedgerEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn().Str("tx_id", event.TransactionID).Msg("event dropped: dispatcher closed")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.log.Warn().
			Str("tx_id", event.TransactionID).
			Str("card_uid", event.CardUID).
			Msg("event dropped: queue full")
	}
}

// Close stops accepting events and waits until queued ones are delivered or
// ctx is done.
func (d *EventDispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain events: %w", ctx.Err())
	}
}

func (d *EventDispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		for _, sub := range d.subscribers {
			d.deliver(sub, event)
		}
	}
}

func (d *EventDispatcher) deliver(sub ports.EventSubscriber, event domain.LedgerEvent) {
	ctx := context.Background()
	if d.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.handlerTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("subscriber", sub.Name()).
				Str("tx_id", event.TransactionID).
				Interface("panic", r).
				Msg("event subscriber panicked")
		}
	}()

	if err := sub.HandleEvent(ctx, event); err != nil {
		d.log.Error().Err(err).
			Str("subscriber", sub.Name()).
			Str("tx_id", event.TransactionID).
			Msg("event delivery failed")
	}
}
