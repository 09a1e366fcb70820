package config

import (
	"fmt"
)

// LoggingConfig defines settings for the assignment decision log and the
// process log level.
type LoggingConfig struct {
	// Backend selects the decision store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the decision store.
	Path string `json:"path"`
	// Level is the minimum zerolog level, "info" by default.
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "decisions.jsonl"
	}
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "none":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}
