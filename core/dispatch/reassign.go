package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
)

// RelaxCriteria returns the criteria used for a reassignment of the given
// urgency. High urgency widens the distance limit by UrgentDistanceFactor,
// starting from UrgentDefaultDistanceKm when no limit is set, and lowers
// the rating floor. crit itself is left untouched.
func (e *Engine) RelaxCriteria(crit model.AssignmentCriteria, urgency model.Urgency) model.AssignmentCriteria {
	out := crit.Clone()
	if urgency != model.UrgencyHigh {
		return out
	}
	limit := e.cfg.UrgentDefaultDistanceKm
	if out.MaxDistanceKm != nil {
		limit = *out.MaxDistanceKm
	}
	out.MaxDistanceKm = model.Float(limit * e.cfg.UrgentDistanceFactor)
	if out.MinRating != nil {
		out.MinRating = model.Float(math.Max(0, *out.MinRating-e.cfg.UrgentRatingRelief))
	}
	return out
}

// Reassign moves req away from failedRiderID. The failed rider is removed
// from the pool and excluded in a copy of crit so it can never be picked
// again. Input is validated before anything is released or published.
// OrderUnassigned is emitted once per released order and, on success,
// OrderReassigned follows the regular OrderAssigned event.
func (e *Engine) Reassign(ctx context.Context, req model.OrderAssignmentRequest, pool []model.Candidate, crit model.AssignmentCriteria, failedRiderID, reason string, urgency model.Urgency) (AssignmentResult, error) {
	if err := req.Validate(); err != nil {
		return failure(req.OrderID, ReasonInvalidRequest), err
	}
	if failedRiderID == "" {
		return failure(req.OrderID, ReasonInvalidRequest), fmt.Errorf("%w: failed rider id is required", model.ErrInvalidRequest)
	}
	if urgency == "" {
		urgency = model.UrgencyMedium
	}
	if !urgency.Valid() {
		return failure(req.OrderID, ReasonInvalidRequest), fmt.Errorf("%w: unknown urgency %q", model.ErrInvalidRequest, urgency)
	}
	if err := crit.Validate(); err != nil {
		return failure(req.OrderID, ReasonInvalidRequest), err
	}
	relaxed := e.RelaxCriteria(crit.WithExcluded(failedRiderID), urgency)
	if err := relaxed.Validate(); err != nil {
		return failure(req.OrderID, ReasonInvalidRequest), err
	}

	pub, alloc, sink, _, clock := e.collaborators()
	now := clock()

	released := true
	if alloc != nil {
		err := alloc.Release(ctx, failedRiderID, req.OrderID)
		switch {
		case errors.Is(err, store.ErrAlreadyReleased):
			released = false
			e.logger.Infof("order %s already released by rider %s", req.OrderID, failedRiderID)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			e.logger.Warnf("release rider %s for order %s: %v", failedRiderID, req.OrderID, err)
		}
	}
	if released && pub != nil {
		pub.Publish(events.OrderUnassigned{
			OrderID:      req.OrderID,
			RiderID:      failedRiderID,
			UnassignedAt: now,
			Reason:       reason,
		})
	}

	filtered := make([]model.Candidate, 0, len(pool))
	for _, c := range pool {
		if c.Rider.ID != failedRiderID {
			filtered = append(filtered, c)
		}
	}
	res, err := e.assign(ctx, req, filtered, relaxed, audit{kind: logging.KindReassign, previous: failedRiderID, urgency: urgency})
	if res.Success && pub != nil {
		pub.Publish(events.OrderReassigned{
			OrderID:         req.OrderID,
			PreviousRiderID: failedRiderID,
			NewRiderID:      res.AssignedRider,
			ReassignedAt:    now,
			Reason:          reason,
			Urgency:         urgency,
		})
	}
	if rr, ok := sink.(metrics.ReassignmentRecorder); ok {
		if serr := rr.RecordReassignment(metrics.ReassignmentRecord{
			OrderID:         req.OrderID,
			PreviousRiderID: failedRiderID,
			NewRiderID:      res.AssignedRider,
			Urgency:         string(urgency),
			Reason:          reason,
			Success:         res.Success,
			Time:            now,
		}); serr != nil {
			e.logger.Errorf("metrics error: %v", serr)
		}
	}
	return res, err
}
