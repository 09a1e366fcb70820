// Package events defines the dispatch events emitted on the event bus.
//
// Available event types:
//   - OrderAssigned: a rider was selected for an order
//   - OrderReassigned: an order moved from a failed rider to a new one
//   - OrderUnassigned: a rider was removed from an order
package events
