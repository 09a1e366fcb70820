// Package infra contains the technical adapters of the dispatch service:
// the MQTT transport, rider and idempotency stores, metrics exporters,
// telemetry ingestion and error monitoring. These packages depend only on
// the interfaces defined in the core packages.
package infra
