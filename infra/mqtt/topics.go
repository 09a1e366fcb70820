package mqtt

import "fmt"

// DefaultRequestTopic receives assignment and reassignment requests.
const DefaultRequestTopic = "dispatch/requests"

// OrderEventTopic is where lifecycle events of an order are published.
func OrderEventTopic(orderID, kind string) string {
	return fmt.Sprintf("dispatch/orders/%s/%s", orderID, kind)
}

// RiderAssignmentTopic notifies a rider's device of new work.
func RiderAssignmentTopic(riderID string) string {
	return fmt.Sprintf("riders/%s/assignments", riderID)
}

// ResultTopic carries the reply to a request for orderID.
func ResultTopic(orderID string) string {
	return fmt.Sprintf("dispatch/results/%s", orderID)
}
