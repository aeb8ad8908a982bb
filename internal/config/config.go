package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" envDefault:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// Tag modes accepted by GateConfig.TagMode.
const (
	TagModeHMAC   = "hmac"
	TagModeDigest = "digest"
)

// GateConfig holds the transaction gate limits.
type GateConfig struct {
	FreshnessWindow time.Duration `env:"GATE_FRESHNESS_WINDOW" envDefault:"5m"`
	RateMax         int           `env:"GATE_RATE_MAX" envDefault:"10"`
	RateWindow      time.Duration `env:"GATE_RATE_WINDOW" envDefault:"60s"`
	StoreTimeout    time.Duration `env:"GATE_STORE_TIMEOUT" envDefault:"5s"`
	TagMode         string        `env:"GATE_TAG_MODE" envDefault:"hmac"`
}

func (c *GateConfig) Validate() error {
	switch {
	case c.FreshnessWindow <= 0:
		return errors.New("freshness window must be positive")
	case c.RateMax <= 0:
		return errors.New("rate max must be positive")
	case c.RateWindow <= 0:
		return errors.New("rate window must be positive")
	case c.StoreTimeout <= 0:
		return errors.New("store timeout must be positive")
	}

	if c.TagMode != TagModeHMAC && c.TagMode != TagModeDigest {
		return fmt.Errorf("unknown tag mode %q", c.TagMode)
	}

	return nil
}

// AuthConfig points at the Supabase project that issues bearer tokens.
type AuthConfig struct {
	SupabaseURL string `env:"SUPABASE_URL" envDefault:""`
	AnonKey     string `env:"SUPABASE_ANON_KEY" envDefault:""`
	JWTSecret   string `env:"SUPABASE_JWT_SECRET" envDefault:""`
}

func (c *AuthConfig) Validate() error {
	if c.JWTSecret == "" && c.SupabaseURL == "" {
		return errors.New("either SUPABASE_JWT_SECRET or SUPABASE_URL is required")
	}

	return nil
}

// CryptoConfig carries the master secret all server keys are derived from.
// TagKeyHex, when set, is the tag key handed to signing clients instead of
// one derived from the master.
type CryptoConfig struct {
	MasterKeyHex string `env:"CRYPTO_MASTER_KEY"`
	CouponKeyID  string `env:"CRYPTO_COUPON_KEY_ID" envDefault:"k1"`
	TagKeyHex    string `env:"CRYPTO_TAG_KEY" envDefault:""`
}

func (c *CryptoConfig) Validate() error {
	master, err := c.MasterKey()
	if err != nil {
		return err
	}

	tag, err := c.TagKey()
	if err != nil {
		return err
	}

	if tag != nil && bytes.Equal(tag, master) {
		return errors.New("tag key must differ from the master key")
	}

	if c.CouponKeyID == "" {
		return errors.New("coupon key id is empty")
	}

	return nil
}

// MasterKey decodes the configured master secret.
func (c *CryptoConfig) MasterKey() ([]byte, error) {
	key, err := hex.DecodeString(c.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}

	if len(key) < 32 {
		return nil, fmt.Errorf("master key must be at least 32 bytes, got %d", len(key))
	}

	return key, nil
}

// TagKey decodes the explicit tag key; nil when none is configured.
func (c *CryptoConfig) TagKey() ([]byte, error) {
	if c.TagKeyHex == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(c.TagKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode tag key: %w", err)
	}

	if len(key) < 32 {
		return nil, fmt.Errorf("tag key must be at least 32 bytes, got %d", len(key))
	}

	return key, nil
}

// JanitorConfig controls consumed-nonce retention.
type JanitorConfig struct {
	NonceRetention time.Duration `env:"NONCE_RETENTION" envDefault:"24h"`
	PurgeSchedule  string        `env:"NONCE_PURGE_SCHEDULE" envDefault:"@every 10m"`
}

// ThrottleConfig configures the advisory per-client HTTP throttle.
type ThrottleConfig struct {
	RPS   float64 `env:"THROTTLE_RPS" envDefault:"5"`
	Burst int     `env:"THROTTLE_BURST" envDefault:"20"`
}

// CheckRetention ensures replays cannot outlive the nonce records that catch them.
func CheckRetention(gate GateConfig, janitor JanitorConfig) error {
	if janitor.NonceRetention < 2*gate.FreshnessWindow {
		return fmt.Errorf("nonce retention %s must be at least twice the freshness window %s",
			janitor.NonceRetention, gate.FreshnessWindow)
	}

	return nil
}
