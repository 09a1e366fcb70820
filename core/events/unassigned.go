package events

import "time"

// OrderUnassigned is published when a rider is taken off an order.
type OrderUnassigned struct {
	OrderID      string    `json:"order_id"`
	RiderID      string    `json:"rider_id"`
	UnassignedAt time.Time `json:"unassigned_at"`
	Reason       string    `json:"reason"`
}

// Kind implements Event.
func (OrderUnassigned) Kind() string { return "unassigned" }

// Order implements Event.
func (e OrderUnassigned) Order() string { return e.OrderID }

// Riders implements Event.
func (e OrderUnassigned) Riders() []string { return []string{e.RiderID} }
