// Package metrics defines the sinks that record dispatch outcomes for
// observability. Implementations live in infra/metrics and register
// themselves in the factory registry by name.
package metrics
