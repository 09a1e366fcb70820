package model

import (
	"fmt"
	"math"
	"time"
)

// Location is a geographic coordinate in decimal degrees together with the
// time it was last reported.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks that latitude and longitude are within their ranges.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", l.Lat)
	}
	if math.IsNaN(l.Lng) || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", l.Lng)
	}
	return nil
}

// Age returns how old the location report is relative to now. A zero
// UpdatedAt is reported as zero age.
func (l Location) Age(now time.Time) time.Duration {
	if l.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(l.UpdatedAt)
}
