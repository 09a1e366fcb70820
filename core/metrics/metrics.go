package metrics

import "time"

// AssignmentRecord describes the outcome of one assignment decision.
type AssignmentRecord struct {
	OrderID        string
	RiderID        string
	Kind           string
	Priority       string
	Category       string
	Success        bool
	Score          float64
	Reason         string
	CandidateCount int
	EligibleCount  int
	Duration       time.Duration
	Time           time.Time
}

// MetricsSink records assignment outcomes.
type MetricsSink interface {
	RecordAssignment(records []AssignmentRecord) error
}

// BatchRecord summarises a batch call.
type BatchRecord struct {
	Orders            int
	Assigned          int
	Unassigned        int
	OptimizationScore float64
	MeanScore         float64
	Duration          time.Duration
	Time              time.Time
}

// BatchRecorder is implemented by sinks able to record batch summaries.
type BatchRecorder interface {
	RecordBatch(rec BatchRecord) error
}

// ReassignmentRecord describes a reassignment attempt.
type ReassignmentRecord struct {
	OrderID         string
	PreviousRiderID string
	NewRiderID      string
	Urgency         string
	Reason          string
	Success         bool
	Time            time.Time
}

// ReassignmentRecorder is implemented by sinks able to record reassignments.
type ReassignmentRecorder interface {
	RecordReassignment(rec ReassignmentRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment([]AssignmentRecord) error   { return nil }
func (NopSink) RecordBatch(BatchRecord) error               { return nil }
func (NopSink) RecordReassignment(ReassignmentRecord) error { return nil }
func (NopSink) RecordEvent(EventRecord) error               { return nil }

// EventRecord describes a dispatch event seen on the bus.
type EventRecord struct {
	Kind    string
	OrderID string
	RiderID string
	Time    time.Time
}

// EventRecorder is implemented by sinks able to record bus events.
type EventRecorder interface {
	RecordEvent(rec EventRecord) error
}
