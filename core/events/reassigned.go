package events

import (
	"time"

	"github.com/kilianp07/courierdispatch/core/model"
)

// OrderReassigned is published when an order moves to a replacement rider.
type OrderReassigned struct {
	OrderID         string        `json:"order_id"`
	PreviousRiderID string        `json:"previous_rider_id"`
	NewRiderID      string        `json:"new_rider_id"`
	ReassignedAt    time.Time     `json:"reassigned_at"`
	Reason          string        `json:"reason"`
	Urgency         model.Urgency `json:"urgency"`
}

// Kind implements Event.
func (OrderReassigned) Kind() string { return "reassigned" }

// Order implements Event.
func (e OrderReassigned) Order() string { return e.OrderID }

// Riders implements Event.
func (e OrderReassigned) Riders() []string { return []string{e.PreviousRiderID, e.NewRiderID} }
