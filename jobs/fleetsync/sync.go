// Package fleetsync mirrors upstream rider data into the rider store.
package fleetsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/courierdispatch/connectors"
	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/model"
)

// Upserter writes candidates.
type Upserter interface {
	Upsert(ctx context.Context, c model.Candidate) error
}

// Sync fetches every rider from src and upserts it. Riders that fail to
// store are reported together and do not stop the others.
func Sync(ctx context.Context, src connectors.FleetSource, dst Upserter) (int, error) {
	cs, err := src.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch fleet: %w", err)
	}
	var errs []error
	n := 0
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := dst.Upsert(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("rider %s: %w", c.Rider.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Run calls Sync immediately and then every interval until ctx is done.
func Run(ctx context.Context, interval time.Duration, src connectors.FleetSource, dst Upserter, log logger.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	once := func() {
		n, err := Sync(ctx, src, dst)
		if err != nil && ctx.Err() == nil {
			log.Errorf("fleet sync: %v", err)
		}
		log.Debugf("fleet sync stored %d riders", n)
	}
	once()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			once()
		}
	}
}
