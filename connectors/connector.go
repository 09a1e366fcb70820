// Package connectors defines clients for upstream systems that own rider
// and shift data.
package connectors

import (
	"context"

	"github.com/kilianp07/courierdispatch/core/model"
)

// FleetSource returns the current riders and shifts known upstream.
type FleetSource interface {
	Fetch(ctx context.Context) ([]model.Candidate, error)
}
