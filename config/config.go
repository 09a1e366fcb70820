// Package config loads the service configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/courierdispatch/core/dispatch"
	"github.com/kilianp07/courierdispatch/core/idempotency"
	"github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/core/store"
	"github.com/kilianp07/courierdispatch/infra/mqtt"
)

type Config struct {
	Dispatch    dispatch.Config    `json:"dispatch"`
	MQTT        mqtt.Config        `json:"mqtt"`
	Metrics     metrics.Config     `json:"metrics"`
	Logging     LoggingConfig      `json:"logging"`
	Store       store.Config       `json:"store"`
	Idempotency idempotency.Config `json:"idempotency"`
	Sentry      SentryConfig       `json:"sentry"`
	Telemetry   TelemetryConfig    `json:"telemetry"`
	Fleet       FleetSyncConfig    `json:"fleet"`
	HTTP        HTTPConfig         `json:"http"`
}

// HTTPConfig configures the server exposing /metrics and the read-only API.
type HTTPConfig struct {
	// Address to listen on. Empty falls back to metrics.address, and the
	// server is disabled when both are empty.
	Address string `json:"addr"`
	// Token is the bearer token required by the decisions endpoint. Empty
	// disables authentication.
	Token string `json:"token"`
}

// ListenAddress returns the HTTP address in effect.
func (c *Config) ListenAddress() string {
	if c.HTTP.Address != "" {
		return c.HTTP.Address
	}
	return c.Metrics.Address
}

// Default returns a configuration with every default applied, suitable for
// running without a file.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Logging.SetDefaults()
	c.Store.SetDefaults()
	c.Idempotency.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Dispatch.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dispatch: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Idempotency.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Fleet.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.MQTT.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Telemetry.Enabled && !c.MQTT.Enabled() {
		errs = append(errs, errors.New("telemetry: requires mqtt.broker"))
	}
	return errors.Join(errs...)
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
