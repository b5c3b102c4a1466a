// Package device bridges card readers and terminals on the NATS bus to the
// ledger and to connected dashboards.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartpay/config"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Connect dials NATS. NoEcho keeps the backend from receiving the
// confirmations it publishes itself.
func Connect(cfg config.NATSConfig, log zerolog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("smartpay"),
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS connection lost")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	// if token provided
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	log.Info().
		Str("url", conn.ConnectedUrl()).
		Str("team_id", cfg.TeamID).
		Msg("NATS connection established")

	return conn, nil
}

// HealthCheck implements ports.HealthChecker for NATS.
type HealthCheck struct {
	conn *nats.Conn
}

func NewHealthCheck(conn *nats.Conn) *HealthCheck {
	return &HealthCheck{conn: conn}
}

// Ping round-trips to the server.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if !h.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return h.conn.FlushWithContext(ctx)
}

func (h *HealthCheck) Name() string {
	return "nats"
}
