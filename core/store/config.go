package store

import "fmt"

// Backends supported by Config.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config selects and configures the rider store.
type Config struct {
	Backend string `json:"backend"`
	DSN     string `json:"dsn"`
	// SeedFile optionally loads candidates from a JSON file at start-up.
	SeedFile string `json:"seed_file"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("store: dsn required for postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}
