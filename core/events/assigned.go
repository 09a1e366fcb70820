package events

import "time"

// MethodAutomatic tags assignments decided by the engine.
const MethodAutomatic = "automatic"

// OrderAssigned is published once per successful assignment.
type OrderAssigned struct {
	OrderID             string    `json:"order_id"`
	RiderID             string    `json:"rider_id"`
	AssignedAt          time.Time `json:"assigned_at"`
	Score               float64   `json:"score"`
	EstimatedPickupAt   time.Time `json:"estimated_pickup_at"`
	EstimatedDeliveryAt time.Time `json:"estimated_delivery_at"`
	Method              string    `json:"method"`
}

// Kind implements Event.
func (OrderAssigned) Kind() string { return "assigned" }

// Order implements Event.
func (e OrderAssigned) Order() string { return e.OrderID }

// Riders implements Event.
func (e OrderAssigned) Riders() []string { return []string{e.RiderID} }
