package metrics

import "github.com/kilianp07/courierdispatch/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// Address of the HTTP server exposing /metrics. Empty disables it.
	Address string `json:"address"`
}
