// Package factory provides a generic registry used to build pluggable
// modules (metrics sinks, decision log stores, rider stores, idempotency
// stores) from their configuration.
//
// Configuration example:
//
//	metrics:
//	  sinks:
//	    - type: prometheus
//	    - type: influx
//	      conf:
//	        url: http://localhost:8086
//	        bucket: dispatch
package factory
