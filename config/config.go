package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Events      EventsConfig      `mapstructure:"events"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // postgres, memory
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	SeedCatalog bool   `mapstructure:"seed_catalog"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrateURL is the DSN in the form the golang-migrate pgx/v5 driver expects.
func (d DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// NATSConfig configures the device bus.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	TeamID  string `mapstructure:"team_id"`

	// Repeated scans of one card from one reader inside this window are dropped.
	ScanDedupeWindow time.Duration `mapstructure:"scan_dedupe_window"`
}

// LedgerConfig bounds the ledger engine.
type LedgerConfig struct {
	MinorUnitExponent   int32         `mapstructure:"minor_unit_exponent"`
	MaxAmount           int64         `mapstructure:"max_amount"`
	LockTimeout         time.Duration `mapstructure:"lock_timeout"`
	HistoryDefaultLimit int           `mapstructure:"history_default_limit"`
	HistoryMaxLimit     int           `mapstructure:"history_max_limit"`
}

type EventsConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	if c.Ledger.MinorUnitExponent < 0 || c.Ledger.MinorUnitExponent > 8 {
		return errors.New("ledger.minor_unit_exponent must be between 0 and 8")
	}
	if c.Ledger.MaxAmount <= 0 {
		return errors.New("ledger.max_amount must be positive")
	}
	if c.Ledger.HistoryDefaultLimit <= 0 || c.Ledger.HistoryMaxLimit < c.Ledger.HistoryDefaultLimit {
		return errors.New("ledger history limits must satisfy 0 < default <= max")
	}
	if c.Events.BufferSize <= 0 {
		return errors.New("events.buffer_size must be positive")
	}
	if c.Idempotency.TTL <= 0 {
		return errors.New("idempotency.ttl must be positive")
	}
	if c.NATS.Enabled && c.NATS.TeamID == "" {
		return errors.New("nats.team_id is required when nats is enabled")
	}
	return nil
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first when present.
// Environment variables override file values. Prefix: SMARTPAY_.
// Nested keys use underscore: SMARTPAY_DATABASE_HOST, SMARTPAY_NATS_URL, etc.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9201)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("storage.seed_catalog", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "smartpay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mongo.enabled", false)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "smartpay")
	v.SetDefault("mongo.collection", "ledger_events")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.token", "")
	v.SetDefault("nats.team_id", "iot_shield_2026")
	v.SetDefault("nats.scan_dedupe_window", "2s")
	v.SetDefault("ledger.minor_unit_exponent", 0)
	v.SetDefault("ledger.max_amount", 1_000_000_000)
	v.SetDefault("ledger.lock_timeout", "3s")
	v.SetDefault("ledger.history_default_limit", 10)
	v.SetDefault("ledger.history_max_limit", 100)
	v.SetDefault("events.buffer_size", 256)
	v.SetDefault("events.handler_timeout", "5s")
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SMARTPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
