// Package store defines the rider snapshot and allocation contracts the
// dispatch engine relies on. Writes are guarded by a per-rider version
// counter: a claim only succeeds when the version read with the snapshot
// is still current.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/courierdispatch/core/model"
)

var (
	// ErrVersionConflict is returned when a rider changed since it was read.
	ErrVersionConflict = errors.New("rider version conflict")
	// ErrNotFound is returned for unknown riders.
	ErrNotFound = errors.New("rider not found")
	// ErrAlreadyReleased is returned by Release when the order was already
	// dropped from the rider, so a retried release changes nothing.
	ErrAlreadyReleased = errors.New("order already released")
	// ErrStaleUpdate is returned by UpdateState for a report older than the
	// rider's stored location.
	ErrStaleUpdate = errors.New("state report older than stored location")
)

// SnapshotSource returns the current candidate pool.
type SnapshotSource interface {
	Candidates(ctx context.Context) ([]model.Candidate, error)
}

// Allocator persists assignment decisions.
type Allocator interface {
	// Claim records orderID as in flight for the rider when its version is
	// still expectedVersion. It returns the new version.
	Claim(ctx context.Context, riderID string, expectedVersion int64, orderID string) (int64, error)
	// Release drops orderID from the rider's in-flight orders. Orders the
	// store did not claim count against the externally loaded workload.
	// Releasing the same order twice returns ErrAlreadyReleased and leaves
	// the rider unchanged.
	Release(ctx context.Context, riderID, orderID string) error
}

// StateUpdate is a partial rider update reported by the rider's device.
// Nil fields are left unchanged. ReportedAt, when set, is the device time
// of the report.
type StateUpdate struct {
	Location   *model.Location
	Available  *bool
	Active     *bool
	ReportedAt time.Time
}

// Stale reports whether u was produced before r's stored location.
func (u StateUpdate) Stale(r model.Rider) bool {
	return !u.ReportedAt.IsZero() && r.Location != nil && u.ReportedAt.Before(r.Location.UpdatedAt)
}

// Apply copies the non-nil fields onto r. A stale update changes nothing
// and Apply reports false.
func (u StateUpdate) Apply(r *model.Rider) bool {
	if u.Stale(*r) {
		return false
	}
	if u.Location != nil {
		loc := *u.Location
		r.Location = &loc
	}
	if u.Available != nil {
		r.Available = *u.Available
	}
	if u.Active != nil {
		r.Active = *u.Active
	}
	return true
}

// RiderStore combines snapshot reads, allocation and maintenance.
type RiderStore interface {
	SnapshotSource
	Allocator
	Get(ctx context.Context, riderID string) (model.Candidate, error)
	// Upsert inserts or replaces a rider. Orders claimed through the
	// store survive the replacement.
	Upsert(ctx context.Context, c model.Candidate) error
	// UpdateState applies a partial update and bumps the version.
	UpdateState(ctx context.Context, riderID string, u StateUpdate) error
	Close() error
}
