package ports

//go:generate mockgen -source=events.go -destination=mocks/mock_events.go -package=mocks

import (
	"context"

	"smartpay/internal/core/domain"
)

// EventNotifier receives ledger events after commit. Notify must not block.
type EventNotifier interface {
	Notify(event domain.LedgerEvent)
}

// EventSubscriber is one consumer behind the notifier.
type EventSubscriber interface {
	Name() string
	HandleEvent(ctx context.Context, event domain.LedgerEvent) error
}
