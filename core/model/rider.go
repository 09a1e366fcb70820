package model

// VehicleType identifies the kind of vehicle a rider uses.
type VehicleType string

const (
	VehicleBicycle    VehicleType = "bicycle"
	VehicleScooter    VehicleType = "scooter"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleCar        VehicleType = "car"
	VehicleVan        VehicleType = "van"
)

// Vehicle is the vehicle currently assigned to a rider.
type Vehicle struct {
	ID          string      `json:"id"`
	Type        VehicleType `json:"type"`
	Active      bool        `json:"active"`
	HasCapacity bool        `json:"has_capacity"`
}

// PerformanceMetrics summarises a rider's history. Rates are fractions in
// [0,1], AverageRating is on a 0-5 scale.
type PerformanceMetrics struct {
	CompletionRate   float64 `json:"completion_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	AverageRating    float64 `json:"average_rating"`
}

// Preference expresses how a rider feels about an order category.
type Preference string

const (
	PreferencePreferred Preference = "preferred"
	PreferenceAccepted  Preference = "accepted"
	PreferenceAvoided   Preference = "avoided"
	PreferenceBlocked   Preference = "blocked"
)

// Rider is a read-only snapshot of a courier supplied by the caller.
// Optional parts are pointers: a nil Location means the position is
// unknown, a nil Vehicle means no vehicle is assigned.
type Rider struct {
	ID           string                  `json:"id"`
	Active       bool                    `json:"active"`
	Available    bool                    `json:"available"`
	Location     *Location               `json:"location,omitempty"`
	Rating       float64                 `json:"rating"`
	Metrics      *PerformanceMetrics     `json:"metrics,omitempty"`
	Vehicle      *Vehicle                `json:"vehicle,omitempty"`
	Preferences  map[Category]Preference `json:"preferences,omitempty"`
	Capabilities []string                `json:"capabilities,omitempty"`
	// Version is the optimistic-lock counter read together with the snapshot.
	Version int64 `json:"version"`
}

// PreferenceFor returns the rider's preference for the category, or the
// empty string when unspecified.
func (r Rider) PreferenceFor(c Category) Preference {
	return r.Preferences[c]
}

// HasCapabilities reports whether the rider covers every required tag.
func (r Rider) HasCapabilities(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(r.Capabilities))
	for _, c := range r.Capabilities {
		have[c] = struct{}{}
	}
	for _, c := range required {
		if _, ok := have[c]; !ok {
			return false
		}
	}
	return true
}

// Shift is the active-shift membership of a rider and its current load.
type Shift struct {
	ID           string `json:"id"`
	RiderID      string `json:"rider_id"`
	Active       bool   `json:"active"`
	ActiveOrders int    `json:"active_orders"`
}

// Candidate pairs a rider with its shift, if any.
type Candidate struct {
	Rider Rider  `json:"rider"`
	Shift *Shift `json:"shift,omitempty"`
}

// OnActiveShift reports whether the candidate belongs to an active shift.
func (c Candidate) OnActiveShift() bool {
	return c.Shift != nil && c.Shift.Active
}

// ActiveOrders returns the in-flight order count of the candidate's shift.
func (c Candidate) ActiveOrders() int {
	if c.Shift == nil {
		return 0
	}
	return c.Shift.ActiveOrders
}
