package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
)

// Engine ranks riders for orders and turns the best match into an
// assignment. It keeps no state between calls apart from its
// collaborators; rider snapshots are never modified.
type Engine struct {
	cfg       Config
	evaluator *Evaluator
	scorer    *Scorer
	logger    logger.Logger

	mu        sync.RWMutex
	publisher events.Publisher
	allocator store.Allocator
	metrics   metrics.MetricsSink
	store     logging.LogStore
	clock     func() time.Time
}

// NewEngine creates an Engine. Zero config fields take their defaults.
func NewEngine(cfg Config, log logger.Logger) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if log == nil {
		log = nopLogger{}
	}
	scorer := NewScorer(cfg.Scoring, cfg.Location())
	return &Engine{
		cfg:       cfg,
		scorer:    scorer,
		evaluator: NewEvaluator(cfg, scorer),
		logger:    log,
		metrics:   metrics.NopSink{},
		clock:     time.Now,
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// SetPublisher configures where dispatch events are sent.
func (e *Engine) SetPublisher(p events.Publisher) {
	e.mu.Lock()
	e.publisher = p
	e.mu.Unlock()
}

// SetAllocator configures the store used to claim winners. Without one,
// Assign only recommends.
func (e *Engine) SetAllocator(a store.Allocator) {
	e.mu.Lock()
	e.allocator = a
	e.mu.Unlock()
}

// SetMetricsSink configures the sink receiving assignment records.
func (e *Engine) SetMetricsSink(s metrics.MetricsSink) {
	if s == nil {
		s = metrics.NopSink{}
	}
	e.mu.Lock()
	e.metrics = s
	e.mu.Unlock()
}

// SetLogStore configures the store used to persist decisions.
func (e *Engine) SetLogStore(s logging.LogStore) {
	e.mu.Lock()
	e.store = s
	e.mu.Unlock()
}

// SetClock overrides the time source, mainly for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.mu.Lock()
	e.clock = now
	e.mu.Unlock()
}

func (e *Engine) collaborators() (events.Publisher, store.Allocator, metrics.MetricsSink, logging.LogStore, func() time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.publisher, e.allocator, e.metrics, e.store, e.clock
}

// Evaluate runs the eligibility checks and scoring for a single rider.
func (e *Engine) Evaluate(c model.Candidate, req model.OrderAssignmentRequest, crit model.AssignmentCriteria) RiderEligibility {
	_, _, _, _, clock := e.collaborators()
	return e.evaluator.Evaluate(c, req, crit, clock())
}

// Rank evaluates the pool and returns the ranking without claiming,
// emitting or recording anything.
func (e *Engine) Rank(ctx context.Context, req model.OrderAssignmentRequest, pool []model.Candidate, crit model.AssignmentCriteria) (AssignmentResult, error) {
	_, _, _, _, clock := e.collaborators()
	res, _, err := e.rank(ctx, req, pool, crit, clock())
	return res, err
}

// Assign selects the best rider for req. A request or criteria that fails
// validation returns an error wrapping model.ErrInvalidRequest. No eligible
// rider is a failed result, not an error. A done context yields a failed
// result together with ctx.Err().
func (e *Engine) Assign(ctx context.Context, req model.OrderAssignmentRequest, pool []model.Candidate, crit model.AssignmentCriteria) (AssignmentResult, error) {
	return e.assign(ctx, req, pool, crit, audit{kind: logging.KindAssign})
}

type audit struct {
	kind     string
	previous string
	urgency  model.Urgency
}

func (e *Engine) assign(ctx context.Context, req model.OrderAssignmentRequest, pool []model.Candidate, crit model.AssignmentCriteria, a audit) (AssignmentResult, error) {
	pub, alloc, _, _, clock := e.collaborators()
	start := time.Now()
	now := clock()

	res, ranked, err := e.rank(ctx, req, pool, crit, now)
	if err == nil && res.Success && alloc != nil {
		res, err = e.commit(ctx, alloc, res, ranked)
	}
	if res.Success && pub != nil {
		pub.Publish(events.OrderAssigned{
			OrderID:             req.OrderID,
			RiderID:             res.AssignedRider,
			AssignedAt:          now,
			Score:               res.Score,
			EstimatedPickupAt:   res.EstimatedPickupAt,
			EstimatedDeliveryAt: res.EstimatedDeliveryAt,
			Method:              events.MethodAutomatic,
		})
	}
	e.observe(req, res, err, a, now, time.Since(start))
	return res, err
}

func (e *Engine) rank(ctx context.Context, req model.OrderAssignmentRequest, pool []model.Candidate, crit model.AssignmentCriteria, now time.Time) (AssignmentResult, []RankedRider, error) {
	if err := req.Validate(); err != nil {
		return failure(req.OrderID, ReasonInvalidRequest), nil, err
	}
	if err := crit.Validate(); err != nil {
		return failure(req.OrderID, ReasonInvalidRequest), nil, err
	}
	if err := ctx.Err(); err != nil {
		return failure(req.OrderID, ReasonCancelled), nil, err
	}

	evals := make([]RiderEligibility, 0, len(pool))
	ranked := make([]RankedRider, 0, len(pool))
	for _, c := range pool {
		ev := e.evaluator.Evaluate(c, req, crit, now)
		evals = append(evals, ev)
		if ev.Eligible {
			ranked = append(ranked, RankedRider{
				RiderID:             ev.RiderID,
				Score:               ev.Score,
				DistanceKm:          ev.DistanceKm,
				EstimatedArrival:    ev.EstimatedArrival,
				EstimatedCompletion: ev.EstimatedCompletion,
				Version:             ev.Version,
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return failure(req.OrderID, ReasonCancelled), nil, err
	}

	sortRanked(ranked)
	if len(ranked) == 0 {
		res := failure(req.OrderID, ReasonNoEligible)
		res.Evaluations = evals
		return res, nil, nil
	}
	res := e.resultFor(req.OrderID, ranked, 0)
	res.EligibleCount = len(ranked)
	res.Evaluations = evals
	return res, ranked, nil
}

// sortRanked orders by score descending, ties by ascending rider ID. NaN
// scores sort last.
func sortRanked(r []RankedRider) {
	sort.SliceStable(r, func(i, j int) bool {
		if ni, nj := math.IsNaN(r[i].Score), math.IsNaN(r[j].Score); ni || nj {
			if ni != nj {
				return nj
			}
			return r[i].RiderID < r[j].RiderID
		}
		if r[i].Score != r[j].Score {
			return r[i].Score > r[j].Score
		}
		return r[i].RiderID < r[j].RiderID
	})
}

// resultFor builds a successful result with ranked[idx] as winner and the
// riders ranked after it as alternates.
func (e *Engine) resultFor(orderID string, ranked []RankedRider, idx int) AssignmentResult {
	w := ranked[idx]
	rest := ranked[idx+1:]
	if len(rest) > e.cfg.MaxAlternates {
		rest = rest[:e.cfg.MaxAlternates]
	}
	alts := make([]RankedRider, len(rest))
	copy(alts, rest)
	return AssignmentResult{
		OrderID:             orderID,
		Success:             true,
		AssignedRider:       w.RiderID,
		Score:               w.Score,
		Alternates:          alts,
		EstimatedPickupAt:   w.EstimatedArrival,
		EstimatedDeliveryAt: w.EstimatedCompletion,
	}
}

// commit claims the winner, falling back to the next ranked rider when a
// claim loses its optimistic lock.
func (e *Engine) commit(ctx context.Context, alloc store.Allocator, res AssignmentResult, ranked []RankedRider) (AssignmentResult, error) {
	for i, r := range ranked {
		if err := ctx.Err(); err != nil {
			out := failure(res.OrderID, ReasonCancelled)
			out.EligibleCount, out.Evaluations = res.EligibleCount, res.Evaluations
			return out, err
		}
		_, err := alloc.Claim(ctx, r.RiderID, r.Version, res.OrderID)
		switch {
		case err == nil:
			out := e.resultFor(res.OrderID, ranked, i)
			out.EligibleCount, out.Evaluations = res.EligibleCount, res.Evaluations
			if i > 0 {
				e.logger.Infof("order %s claimed fallback rider %s at rank %d", res.OrderID, r.RiderID, i+1)
			}
			return out, nil
		case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrNotFound):
			commitConflicts.Inc()
			e.logger.Debugw("claim rejected", map[string]any{"order_id": res.OrderID, "rider_id": r.RiderID, "error": err.Error()})
		default:
			out := failure(res.OrderID, ReasonAllocationFailed)
			out.EligibleCount, out.Evaluations = res.EligibleCount, res.Evaluations
			return out, fmt.Errorf("claim rider %s: %w", r.RiderID, err)
		}
	}
	out := failure(res.OrderID, ReasonAllocationConflict)
	out.EligibleCount, out.Evaluations = res.EligibleCount, res.Evaluations
	return out, ErrAllocationConflict
}

// observe updates collectors, the metrics sink and the decision log.
func (e *Engine) observe(req model.OrderAssignmentRequest, res AssignmentResult, err error, a audit, now time.Time, took time.Duration) {
	_, _, sink, ls, _ := e.collaborators()

	outcome := "assigned"
	if !res.Success {
		outcome = "unassigned"
	}
	if err != nil {
		outcome = "error"
	}
	assignmentsTotal.WithLabelValues(string(req.Priority), outcome).Inc()
	assignmentDuration.WithLabelValues(a.kind).Observe(took.Seconds())
	for _, ev := range res.Evaluations {
		for _, code := range ev.rejections {
			eligibilityRejection.WithLabelValues(string(code)).Inc()
		}
		if !ev.Eligible {
			e.logger.Debugw("rider rejected", map[string]any{"order_id": req.OrderID, "rider_id": ev.RiderID, "reasons": ev.Reasons})
		}
	}

	switch {
	case err != nil:
		e.logger.Warnf("order %s: %s: %v", req.OrderID, res.Reason, err)
	case res.Success:
		e.logger.Infof("order %s assigned to %s (score %.1f, %d eligible)", req.OrderID, res.AssignedRider, res.Score, res.EligibleCount)
	default:
		e.logger.Infof("order %s not assigned: %s", req.OrderID, res.Reason)
	}

	rec := metrics.AssignmentRecord{
		OrderID:        req.OrderID,
		RiderID:        res.AssignedRider,
		Kind:           a.kind,
		Priority:       string(req.Priority),
		Category:       string(req.Category),
		Success:        res.Success,
		Score:          res.Score,
		Reason:         res.Reason,
		CandidateCount: len(res.Evaluations),
		EligibleCount:  res.EligibleCount,
		Duration:       took,
		Time:           now,
	}
	if serr := sink.RecordAssignment([]metrics.AssignmentRecord{rec}); serr != nil {
		e.logger.Errorf("metrics error: %v", serr)
	}

	if ls == nil {
		return
	}
	if lerr := ls.Append(context.Background(), toLogRecord(req, res, err, a, now)); lerr != nil {
		e.logger.Errorf("decision log error: %v", lerr)
	}
}

func toLogRecord(req model.OrderAssignmentRequest, res AssignmentResult, err error, a audit, now time.Time) logging.LogRecord {
	rec := logging.LogRecord{
		Timestamp:       now,
		Kind:            a.kind,
		OrderID:         req.OrderID,
		Priority:        string(req.Priority),
		Category:        string(req.Category),
		PreviousRiderID: a.previous,
		Urgency:         string(a.urgency),
		Candidates:      make([]logging.Candidate, 0, len(res.Evaluations)),
		Result: logging.Result{
			Success:       res.Success,
			AssignedRider: res.AssignedRider,
			Score:         res.Score,
			Reason:        res.Reason,
		},
	}
	for _, ev := range res.Evaluations {
		rec.Candidates = append(rec.Candidates, logging.Candidate{
			RiderID:    ev.RiderID,
			Eligible:   ev.Eligible,
			Score:      ev.Score,
			DistanceKm: ev.DistanceKm,
			Reasons:    ev.Reasons,
		})
	}
	for _, alt := range res.Alternates {
		rec.Result.Alternates = append(rec.Result.Alternates, alt.RiderID)
	}
	if err != nil {
		rec.Result.Error = err.Error()
	}
	return rec
}
