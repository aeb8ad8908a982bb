package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/coingate/internal/config"
)

const (
	backendPostgres = "postgres"
	backendMemory   = "memory"

	// advisory buckets idle this long are dropped by the janitor
	throttleIdle = 15 * time.Minute
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	LogFormat       string        `env:"APP_LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	StoreBackend    string        `env:"STORE_BACKEND" envDefault:"postgres"`

	Postgres config.PostgresConfig
	Gate     config.GateConfig
	Auth     config.AuthConfig
	Crypto   config.CryptoConfig
	Janitor  config.JanitorConfig
	Throttle config.ThrottleConfig
}

func (c *apiConfig) Validate() error {
	switch c.StoreBackend {
	case backendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("PG_DSN is required for the postgres backend")
		}
	case backendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.Throttle.RPS <= 0 || c.Throttle.Burst <= 0 {
		return errors.New("throttle rate and burst must be positive")
	}

	return config.CheckRetention(c.Gate, c.Janitor)
}
