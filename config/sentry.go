package config

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	SampleRate       float64 `json:"sample_rate"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	// ReportInvalidRequests also reports errors caused by malformed
	// assignment requests. They are dropped by default.
	ReportInvalidRequests bool `json:"report_invalid_requests"`
}
