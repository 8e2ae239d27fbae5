// Package config provides environment-driven configuration for approvio.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	NATSURL     string
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string

	// EscalationInterval is the scheduler cadence; EscalationBatchSize caps
	// how many overdue items one pass picks up.
	EscalationInterval  time.Duration
	EscalationBatchSize int

	// DedupTTL bounds how long inbound idempotency keys are remembered. It
	// must cover the bus's redelivery window.
	DedupTTL time.Duration

	// MaxEventDeliveries bounds redelivery attempts before an inbound event
	// is quarantined.
	MaxEventDeliveries int

	AuditQueueSize int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: Secret(envOrDefault("DATABASE_URL", "")),
		NATSURL:     envOrDefault("NATS_URL", "nats://127.0.0.1:4222"),
		Port:        envOrDefault("PORT", "3040"),
		ListenHost:  envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.EscalationInterval, err = envDuration("ESCALATION_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DedupTTL, err = envDuration("DEDUP_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EscalationBatchSize, err = envInt("ESCALATION_BATCH_SIZE", 200, 1, 5000); err != nil {
		return nil, err
	}
	if cfg.MaxEventDeliveries, err = envInt("MAX_EVENT_DELIVERIES", 6, 1, 50); err != nil {
		return nil, err
	}
	if cfg.AuditQueueSize, err = envInt("AUDIT_QUEUE_SIZE", 1000, 10, 100000); err != nil {
		return nil, err
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (e.g. \"2m\"), got %q", key, raw)
	}

	return d, nil
}

func envInt(key string, fallback, min, max int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, min, max)
	}

	return v, nil
}
