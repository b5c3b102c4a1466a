// Package mongo archives ledger events in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"smartpay/config"

	"github.com/rs/zerolog"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const serverSelectionTimeout = 5 * time.Second

// Connect connects to the mongodb server and verifies it answers.
func Connect(ctx context.Context, cfg config.MongoConfig, log zerolog.Logger) (*gomongo.Client, error) {
	timeout := serverSelectionTimeout
	opts := &options.ClientOptions{ServerSelectionTimeout: &timeout}
	opts.SetAppName("smartpay")

	client, err := gomongo.Connect(ctx, opts.ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	log.Info().
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Msg("MongoDB connection established")

	return client, nil
}

// HealthCheck implements ports.HealthChecker for MongoDB.
type HealthCheck struct {
	client *gomongo.Client
}

func NewHealthCheck(client *gomongo.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Ping(ctx, nil)
}

func (h *HealthCheck) Name() string {
	return "mongodb"
}
