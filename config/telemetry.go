package config

// TelemetryConfig holds configuration for rider state ingestion.
type TelemetryConfig struct {
	Enabled bool `json:"enabled"`
	// StatePrefix is the topic root riders report on, as
	// <prefix>/<rider_id>/state.
	StatePrefix string `json:"state_topic_prefix"`
	// MaxClockSkewSeconds rejects reports timestamped further in the future.
	MaxClockSkewSeconds int `json:"max_clock_skew_seconds"`
}

// Prefix returns the state topic root, "riders" by default.
func (c TelemetryConfig) Prefix() string {
	if c.StatePrefix == "" {
		return "riders"
	}
	return c.StatePrefix
}

// MaxClockSkew returns the accepted skew in seconds, 30 by default.
func (c TelemetryConfig) MaxClockSkew() int {
	if c.MaxClockSkewSeconds <= 0 {
		return 30
	}
	return c.MaxClockSkewSeconds
}
