// Package idempotency guards retried operations with caller supplied keys.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInProgress is returned when another caller holds the key.
	ErrInProgress = errors.New("operation already in progress")
	// ErrNotFound is returned by Get for unknown keys.
	ErrNotFound = errors.New("idempotency key not found")
)

// Store records the outcome of keyed operations.
//
// Acquire returns (nil, true, nil) when the caller now owns the key, the
// stored payload with acquired=false when the operation already completed,
// and ErrInProgress when it is still running elsewhere.
type Store interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (payload []byte, acquired bool, err error)
	Complete(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Backends supported by Config.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config configures the idempotency store.
type Config struct {
	Backend    string `json:"backend"`
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Prefix     string `json:"prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Prefix == "" {
		c.Prefix = "dispatch:idem:"
	}
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 86400
	}
}

// TTL returns the configured retention.
func (c Config) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendRedis:
		if c.Addr == "" {
			return fmt.Errorf("idempotency: addr required for redis backend")
		}
		return nil
	default:
		return fmt.Errorf("idempotency: unknown backend %q", c.Backend)
	}
}
