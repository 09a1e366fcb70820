package main

import (
	"errors"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker           string
	FleetSize        int
	CenterLat        float64
	CenterLng        float64
	RadiusKm         float64
	Interval         time.Duration
	OrderInterval    time.Duration
	StatePrefix      string
	RequestTopic     string
	DeclineRate      float64
	ResponseLatency  time.Duration
	AvailabilityFile string
	SeedOut          string
	Verbose          bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("broker is required"))
	}
	if c.FleetSize <= 0 {
		errs = append(errs, errors.New("fleet-size must be positive"))
	}
	if c.RadiusKm <= 0 {
		errs = append(errs, errors.New("radius must be positive"))
	}
	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if c.DeclineRate < 0 || c.DeclineRate > 1 {
		errs = append(errs, errors.New("decline-rate must be within [0,1]"))
	}
	return errors.Join(errs...)
}
