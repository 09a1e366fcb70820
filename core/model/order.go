package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRequest is returned when an order request fails validation.
var ErrInvalidRequest = errors.New("invalid assignment request")

// Category classifies an order.
type Category string

const (
	CategoryFood     Category = "food"
	CategoryGrocery  Category = "grocery"
	CategoryPharmacy Category = "pharmacy"
	CategoryPackage  Category = "package"
	CategoryOther    Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryGrocery, CategoryPharmacy, CategoryPackage, CategoryOther:
		return true
	}
	return false
}

// Priority of an order. Higher priorities are served first in batches and
// receive a scoring bonus.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns an ordinal for the priority, -1 when unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return -1
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return p.Rank() >= 0 }

// Urgency of a reassignment.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// TimeWindow bounds the pickup time of an order.
type TimeWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// OrderAssignmentRequest describes an order to be matched with a rider.
type OrderAssignmentRequest struct {
	OrderID              string      `json:"order_id"`
	Pickup               Location    `json:"pickup"`
	Delivery             Location    `json:"delivery"`
	Category             Category    `json:"category"`
	Priority             Priority    `json:"priority"`
	EstimatedValue       float64     `json:"estimated_value"`
	EstimatedDistanceKm  float64     `json:"estimated_distance_km"`
	EstimatedDurationMin float64     `json:"estimated_duration_min"`
	RequiredCapabilities []string    `json:"required_capabilities,omitempty"`
	TimeWindow           *TimeWindow `json:"time_window,omitempty"`
	CustomerRating       *float64    `json:"customer_rating,omitempty"`
	VendorID             string      `json:"vendor_id,omitempty"`
}

// EstimatedDuration returns the estimated delivery duration.
func (r OrderAssignmentRequest) EstimatedDuration() time.Duration {
	return time.Duration(r.EstimatedDurationMin * float64(time.Minute))
}

// Validate checks the request and returns an error wrapping
// ErrInvalidRequest listing every violation.
//
//gocyclo:ignore
func (r OrderAssignmentRequest) Validate() error {
	var errs []error
	if r.OrderID == "" {
		errs = append(errs, errors.New("order_id is required"))
	}
	if err := r.Pickup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pickup: %w", err))
	}
	if err := r.Delivery.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("delivery: %w", err))
	}
	if !r.Category.Valid() {
		errs = append(errs, fmt.Errorf("unknown category %q", r.Category))
	}
	if !r.Priority.Valid() {
		errs = append(errs, fmt.Errorf("unknown priority %q", r.Priority))
	}
	if r.EstimatedValue < 0 || math.IsNaN(r.EstimatedValue) {
		errs = append(errs, errors.New("estimated_value must not be negative"))
	}
	if r.EstimatedDistanceKm < 0 || math.IsNaN(r.EstimatedDistanceKm) {
		errs = append(errs, errors.New("estimated_distance_km must not be negative"))
	}
	if r.EstimatedDurationMin < 0 || math.IsNaN(r.EstimatedDurationMin) {
		errs = append(errs, errors.New("estimated_duration_min must not be negative"))
	}
	if w := r.TimeWindow; w != nil && !w.Earliest.IsZero() && !w.Latest.IsZero() && w.Latest.Before(w.Earliest) {
		errs = append(errs, errors.New("time_window latest is before earliest"))
	}
	if cr := r.CustomerRating; cr != nil && (*cr < 0 || *cr > 5) {
		errs = append(errs, fmt.Errorf("customer_rating %v out of range [0,5]", *cr))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
}
