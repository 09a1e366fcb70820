package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/courierdispatch/core/metrics"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	decisions    *prometheus.CounterVec
	scores       *prometheus.HistogramVec
	candidates   *prometheus.HistogramVec
	reassigned   *prometheus.CounterVec
	batchOrders  *prometheus.CounterVec
	busEvents    *prometheus.CounterVec
	batchLatency prometheus.Histogram
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_decisions_total",
			Help: "Dispatch decisions by kind, category and success",
		}, []string{"kind", "category", "success"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courier_winning_score",
			Help:    "Score of the selected rider",
			Buckets: prometheus.LinearBuckets(0, 25, 10),
		}, []string{"priority"}),
		candidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courier_eligible_candidates",
			Help:    "Number of eligible riders per decision",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}, []string{"kind"}),
		reassigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_reassignments_total",
			Help: "Reassignments by urgency and success",
		}, []string{"urgency", "success"}),
		batchOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_batch_orders_total",
			Help: "Orders processed in batches by outcome",
		}, []string{"outcome"}),
		busEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_events_total",
			Help: "Dispatch events observed on the bus",
		}, []string{"kind"}),
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_batch_duration_seconds",
			Help:    "Duration of batch assignments",
			Buckets: prometheus.DefBuckets,
		}),
	}
	var err error
	if s.decisions, err = register(reg, s.decisions); err != nil {
		return nil, err
	}
	if s.scores, err = register(reg, s.scores); err != nil {
		return nil, err
	}
	if s.candidates, err = register(reg, s.candidates); err != nil {
		return nil, err
	}
	if s.reassigned, err = register(reg, s.reassigned); err != nil {
		return nil, err
	}
	if s.batchOrders, err = register(reg, s.batchOrders); err != nil {
		return nil, err
	}
	if s.busEvents, err = register(reg, s.busEvents); err != nil {
		return nil, err
	}
	if s.batchLatency, err = register(reg, s.batchLatency); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignment implements coremetrics.MetricsSink.
func (s *PromSink) RecordAssignment(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.decisions.WithLabelValues(r.Kind, r.Category, strconv.FormatBool(r.Success)).Inc()
		s.candidates.WithLabelValues(r.Kind).Observe(float64(r.EligibleCount))
		if r.Success {
			s.scores.WithLabelValues(r.Priority).Observe(r.Score)
		}
	}
	return nil
}

// RecordBatch implements coremetrics.BatchRecorder.
func (s *PromSink) RecordBatch(rec coremetrics.BatchRecord) error {
	s.batchOrders.WithLabelValues("assigned").Add(float64(rec.Assigned))
	s.batchOrders.WithLabelValues("unassigned").Add(float64(rec.Unassigned))
	s.batchLatency.Observe(rec.Duration.Seconds())
	return nil
}

// RecordReassignment implements coremetrics.ReassignmentRecorder.
func (s *PromSink) RecordReassignment(rec coremetrics.ReassignmentRecord) error {
	s.reassigned.WithLabelValues(rec.Urgency, strconv.FormatBool(rec.Success)).Inc()
	return nil
}

// RecordEvent implements coremetrics.EventRecorder.
func (s *PromSink) RecordEvent(rec coremetrics.EventRecord) error {
	s.busEvents.WithLabelValues(rec.Kind).Inc()
	return nil
}
