package mongo

import (
	"context"
	"fmt"

	"smartpay/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventArchive keeps a copy of every ledger event. It is an event
// subscriber, so archiving never sits on the ledger's commit path.
type EventArchive struct {
	coll *gomongo.Collection
}

func NewEventArchive(coll *gomongo.Collection) *EventArchive {
	return &EventArchive{coll: coll}
}

// EnsureIndexes creates the lookup index and the unique transaction index.
func (a *EventArchive) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []gomongo.IndexModel{
		{
			Keys:    bson.D{{Key: "card_uid", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("card_uid_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetName("transaction_id_unique").SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

func (a *EventArchive) Name() string { return "mongo-archive" }

// HandleEvent inserts the event. A duplicate transaction id means the event
// is already archived and is not an error.
func (a *EventArchive) HandleEvent(ctx context.Context, event domain.LedgerEvent) error {
	_, err := a.coll.InsertOne(ctx, event)
	if err != nil {
		if gomongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("archive event %s: %w", event.TransactionID, err)
	}
	return nil
}
