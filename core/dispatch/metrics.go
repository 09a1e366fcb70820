package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentsTotal     *prometheus.CounterVec
	eligibilityRejection *prometheus.CounterVec
	assignmentDuration   *prometheus.HistogramVec
	batchScore           prometheus.Gauge
	commitConflicts      prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Gauge, prometheus.Counter) {
	assigned := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Assignment decisions by order priority and outcome",
		},
		[]string{"priority", "outcome"},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_eligibility_rejections_total",
			Help: "Rider eligibility rejections by reason",
		},
		[]string{"reason"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_assignment_duration_seconds",
			Help:    "Time spent deciding an assignment",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	score := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_batch_optimization_score",
			Help: "Share of orders assigned by the last batch",
		},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_commit_conflicts_total",
			Help: "Claims rejected because the rider version changed",
		},
	)
	return assigned, rejected, dur, score, conflicts
}

func init() {
	assignmentsTotal, eligibilityRejection, assignmentDuration, batchScore, commitConflicts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentsTotal, eligibilityRejection, assignmentDuration, batchScore, commitConflicts)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentsTotal, eligibilityRejection, assignmentDuration, batchScore, commitConflicts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
