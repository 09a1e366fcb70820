package dispatch

import (
	"time"

	"github.com/kilianp07/courierdispatch/core/model"
)

// ScoreBreakdown reports each scoring term separately. Total is the sum of
// the terms clamped at zero.
type ScoreBreakdown struct {
	Base           float64 `json:"base"`
	Distance       float64 `json:"distance"`
	Rating         float64 `json:"rating"`
	Performance    float64 `json:"performance"`
	Category       float64 `json:"category"`
	Priority       float64 `json:"priority"`
	PreferredRider float64 `json:"preferred_rider"`
	Workload       float64 `json:"workload"`
	PeakHour       float64 `json:"peak_hour"`
	Total          float64 `json:"total"`
}

// Raw returns the unclamped sum of the terms.
func (b ScoreBreakdown) Raw() float64 {
	return b.Base + b.Distance + b.Rating + b.Performance + b.Category +
		b.Priority + b.PreferredRider + b.Workload + b.PeakHour
}

type rejection string

const (
	rejectInactive     rejection = "inactive"
	rejectUnavailable  rejection = "unavailable"
	rejectNoShift      rejection = "no_active_shift"
	rejectRating       rejection = "rating"
	rejectNoVehicle    rejection = "no_vehicle"
	rejectVehicleType  rejection = "vehicle_type"
	rejectCapacity     rejection = "capacity"
	rejectExcluded     rejection = "excluded"
	rejectNoLocation   rejection = "no_location"
	rejectDistance     rejection = "distance"
	rejectTimeWindow   rejection = "time_window"
	rejectStale        rejection = "stale_location"
	rejectCapabilities rejection = "capabilities"
	rejectBlocked      rejection = "blocked_category"
)

// RiderEligibility is the outcome of evaluating one rider for one order.
// Reasons are informational only.
type RiderEligibility struct {
	RiderID             string          `json:"rider_id"`
	Eligible            bool            `json:"eligible"`
	Score               float64         `json:"score"`
	Breakdown           *ScoreBreakdown `json:"breakdown,omitempty"`
	Reasons             []string        `json:"reasons,omitempty"`
	DistanceKm          float64         `json:"distance_km"`
	EstimatedArrival    time.Time       `json:"estimated_arrival,omitempty"`
	EstimatedCompletion time.Time       `json:"estimated_completion,omitempty"`
	Version             int64           `json:"-"`

	rejections []rejection
}

func (e *RiderEligibility) reject(code rejection, reason string) {
	e.Eligible = false
	e.rejections = append(e.rejections, code)
	e.Reasons = append(e.Reasons, reason)
}

// RankedRider is an eligible rider in ranking order.
type RankedRider struct {
	RiderID             string    `json:"rider_id"`
	Score               float64   `json:"score"`
	DistanceKm          float64   `json:"distance_km"`
	EstimatedArrival    time.Time `json:"estimated_arrival"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
	Version             int64     `json:"-"`
}

// AssignmentResult is the outcome of a single order assignment.
type AssignmentResult struct {
	OrderID             string        `json:"order_id"`
	Success             bool          `json:"success"`
	AssignedRider       string        `json:"assigned_rider,omitempty"`
	Score               float64       `json:"score"`
	Alternates          []RankedRider `json:"alternates"`
	Reason              string        `json:"reason,omitempty"`
	EstimatedPickupAt   time.Time     `json:"estimated_pickup_at,omitempty"`
	EstimatedDeliveryAt time.Time     `json:"estimated_delivery_at,omitempty"`
	EligibleCount       int           `json:"eligible_count"`
	// Evaluations holds every rider evaluation in pool order.
	Evaluations []RiderEligibility `json:"evaluations,omitempty"`
}

func failure(orderID, reason string) AssignmentResult {
	return AssignmentResult{OrderID: orderID, Reason: reason, Alternates: []RankedRider{}}
}

// BatchOutcome is the per-order entry of a batch result.
type BatchOutcome struct {
	OrderID  string           `json:"order_id"`
	Priority model.Priority   `json:"priority"`
	Success  bool             `json:"success"`
	RiderID  string           `json:"rider_id,omitempty"`
	Score    float64          `json:"score"`
	Reason   string           `json:"reason,omitempty"`
	Error    string           `json:"error,omitempty"`
	Result   AssignmentResult `json:"-"`
}

// ScoreStats summarises the winning scores of a batch.
type ScoreStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
}

// BatchAssignmentResult aggregates a batch call. Outcomes are listed in
// processing order.
type BatchAssignmentResult struct {
	Outcomes          []BatchOutcome `json:"outcomes"`
	Total             int            `json:"total"`
	Assigned          int            `json:"assigned"`
	Unassigned        int            `json:"unassigned"`
	OptimizationScore float64        `json:"optimization_score"`
	Scores            ScoreStats     `json:"scores"`
}

// Assignments maps order IDs to the assigned rider for successful outcomes.
func (r BatchAssignmentResult) Assignments() map[string]string {
	out := make(map[string]string, r.Assigned)
	for _, o := range r.Outcomes {
		if o.Success {
			out[o.OrderID] = o.RiderID
		}
	}
	return out
}
