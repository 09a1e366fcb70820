package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/courierdispatch/core/geo"
	"github.com/kilianp07/courierdispatch/core/model"
)

// Evaluator screens riders for an order. Every check runs even after a
// failure so the result lists all reasons.
type Evaluator struct {
	scorer         *Scorer
	speedKmh       float64
	maxLocationAge time.Duration
	blockedIsHard  bool
}

// NewEvaluator creates an Evaluator that scores eligible riders with s.
func NewEvaluator(cfg Config, s *Scorer) *Evaluator {
	return &Evaluator{
		scorer:         s,
		speedKmh:       cfg.AverageSpeedKmh,
		maxLocationAge: cfg.MaxLocationAge(),
		blockedIsHard:  cfg.BlockedIsHardReject,
	}
}

// Evaluate checks c against req and crit at time now.
//
//gocyclo:ignore
func (e *Evaluator) Evaluate(c model.Candidate, req model.OrderAssignmentRequest, crit model.AssignmentCriteria, now time.Time) RiderEligibility {
	r := c.Rider
	out := RiderEligibility{RiderID: r.ID, Eligible: true, Version: r.Version}

	if !r.Active {
		out.reject(rejectInactive, "Rider is not active")
	}
	if crit.ConsiderAvailability && !r.Available {
		out.reject(rejectUnavailable, "Rider is not available")
	}
	if !c.OnActiveShift() {
		out.reject(rejectNoShift, "Rider is not on an active shift")
	}
	if crit.MinRating != nil && r.Rating < *crit.MinRating {
		out.reject(rejectRating, fmt.Sprintf("Rider rating %.2f is below minimum %.2f", r.Rating, *crit.MinRating))
	}

	switch v := r.Vehicle; {
	case v == nil:
		out.reject(rejectNoVehicle, "Rider has no assigned vehicle")
	default:
		if !v.Active {
			out.reject(rejectNoVehicle, "Rider vehicle is not active")
		}
		if !crit.AllowsVehicle(v.Type) {
			out.reject(rejectVehicleType, fmt.Sprintf("Vehicle type %q is not allowed", v.Type))
		}
		if crit.ConsiderCapacity && !v.HasCapacity {
			out.reject(rejectCapacity, "Vehicle has no spare capacity")
		}
	}

	if crit.Excludes(r.ID) {
		out.reject(rejectExcluded, "Rider is excluded")
	}
	if !r.HasCapabilities(req.RequiredCapabilities) {
		out.reject(rejectCapabilities, "Rider lacks required capabilities")
	}
	if e.blockedIsHard && r.PreferenceFor(req.Category) == model.PreferenceBlocked {
		out.reject(rejectBlocked, fmt.Sprintf("Rider blocks %s orders", req.Category))
	}

	if r.Location == nil {
		out.reject(rejectNoLocation, "Rider location is unknown")
	} else if err := r.Location.Validate(); err != nil {
		out.reject(rejectNoLocation, "Rider location is invalid: "+err.Error())
	} else {
		out.DistanceKm = geo.DistanceKm(*r.Location, req.Pickup)
		if crit.MaxDistanceKm != nil && out.DistanceKm > *crit.MaxDistanceKm {
			out.reject(rejectDistance, fmt.Sprintf("Distance %.2f km exceeds maximum %.2f km", out.DistanceKm, *crit.MaxDistanceKm))
		}
		if crit.ConsiderLocation && e.maxLocationAge > 0 {
			if age := r.Location.Age(now); age > e.maxLocationAge {
				out.reject(rejectStale, fmt.Sprintf("Rider location is stale (%s old)", age.Round(time.Second)))
			}
		}
		out.EstimatedArrival = geo.EstimatedArrival(now, out.DistanceKm, e.speedKmh)
		out.EstimatedCompletion = geo.EstimatedCompletion(out.EstimatedArrival, req.EstimatedDurationMin)
		if w := req.TimeWindow; w != nil && !w.Latest.IsZero() && out.EstimatedArrival.After(w.Latest) {
			out.reject(rejectTimeWindow, "Estimated arrival is after the pickup window")
		}
	}

	if out.Eligible {
		b := e.scorer.Score(c, req, out.DistanceKm, crit, now)
		out.Breakdown = &b
		out.Score = b.Total
	}
	return out
}
