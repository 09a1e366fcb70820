package model

import (
	"errors"
	"fmt"
	"slices"
)

// AssignmentCriteria tunes eligibility and scoring for a single call.
// Values are treated as immutable: helpers return modified copies.
type AssignmentCriteria struct {
	MaxDistanceKm        *float64      `json:"max_distance_km,omitempty"`
	MinRating            *float64      `json:"min_rating,omitempty"`
	RequiredVehicleTypes []VehicleType `json:"required_vehicle_types,omitempty"`
	ExcludeRiders        []string      `json:"exclude_riders,omitempty"`
	PreferredRiders      []string      `json:"preferred_riders,omitempty"`
	ConsiderPerformance  bool          `json:"consider_performance"`
	ConsiderLocation     bool          `json:"consider_location"`
	ConsiderAvailability bool          `json:"consider_availability"`
	ConsiderCapacity     bool          `json:"consider_capacity"`
}

// DefaultCriteria enables every switch and sets no limits.
func DefaultCriteria() AssignmentCriteria {
	return AssignmentCriteria{
		ConsiderPerformance:  true,
		ConsiderLocation:     true,
		ConsiderAvailability: true,
		ConsiderCapacity:     true,
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Clone returns a deep copy of c.
func (c AssignmentCriteria) Clone() AssignmentCriteria {
	out := c
	if c.MaxDistanceKm != nil {
		out.MaxDistanceKm = Float(*c.MaxDistanceKm)
	}
	if c.MinRating != nil {
		out.MinRating = Float(*c.MinRating)
	}
	out.RequiredVehicleTypes = slices.Clone(c.RequiredVehicleTypes)
	out.ExcludeRiders = slices.Clone(c.ExcludeRiders)
	out.PreferredRiders = slices.Clone(c.PreferredRiders)
	return out
}

// WithExcluded returns a copy of c with ids added to ExcludeRiders.
func (c AssignmentCriteria) WithExcluded(ids ...string) AssignmentCriteria {
	out := c.Clone()
	for _, id := range ids {
		if !slices.Contains(out.ExcludeRiders, id) {
			out.ExcludeRiders = append(out.ExcludeRiders, id)
		}
	}
	return out
}

// Excludes reports whether the rider is explicitly excluded.
func (c AssignmentCriteria) Excludes(id string) bool {
	return slices.Contains(c.ExcludeRiders, id)
}

// Prefers reports whether the rider is explicitly preferred.
func (c AssignmentCriteria) Prefers(id string) bool {
	return slices.Contains(c.PreferredRiders, id)
}

// AllowsVehicle reports whether t satisfies RequiredVehicleTypes.
func (c AssignmentCriteria) AllowsVehicle(t VehicleType) bool {
	return len(c.RequiredVehicleTypes) == 0 || slices.Contains(c.RequiredVehicleTypes, t)
}

// Validate rejects limits that cannot be satisfied by construction.
func (c AssignmentCriteria) Validate() error {
	var errs []error
	if c.MaxDistanceKm != nil && *c.MaxDistanceKm < 0 {
		errs = append(errs, fmt.Errorf("max_distance_km %v must not be negative", *c.MaxDistanceKm))
	}
	if c.MinRating != nil && (*c.MinRating < 0 || *c.MinRating > 5) {
		errs = append(errs, fmt.Errorf("min_rating %v out of range [0,5]", *c.MinRating))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
}
