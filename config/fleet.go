package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/courierdispatch/auth"
)

// FleetSyncConfig configures periodic import of riders from the fleet API.
type FleetSyncConfig struct {
	URL             string    `json:"url"`
	IntervalSeconds int       `json:"interval_seconds"`
	Auth            auth.Conf `json:"auth"`
}

// Enabled reports whether a fleet API is configured.
func (c FleetSyncConfig) Enabled() bool { return c.URL != "" }

// Interval returns the sync period, one minute by default.
func (c FleetSyncConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Validate checks the configuration.
func (c FleetSyncConfig) Validate() error {
	if c.IntervalSeconds < 0 {
		return fmt.Errorf("fleet: interval_seconds must not be negative")
	}
	if c.Auth.AuthURL != "" && c.Auth.ClientID == "" {
		return fmt.Errorf("fleet: auth.client_id required with auth.auth_url")
	}
	return nil
}
