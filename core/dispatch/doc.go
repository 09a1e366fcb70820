// Package dispatch matches delivery orders with riders.
//
// An Evaluator screens each candidate for an order and collects every
// reason a rider cannot take it. Eligible riders are scored by a Scorer
// and the Engine ranks them by score, breaking ties by rider ID. The
// Engine also handles reassignment away from a failed rider and batches
// of orders sharing one pool. When an Allocator is configured the winner
// is claimed with an optimistic version check before any event is
// published.
package dispatch
