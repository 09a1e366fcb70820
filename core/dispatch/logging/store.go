// Package logging persists an audit trail of dispatch decisions.
package logging

import (
	"context"
	"slices"
	"time"
)

// Kind values recorded in LogRecord.Kind.
const (
	KindAssign   = "assign"
	KindReassign = "reassign"
	KindBatch    = "batch"
)

// LogRecord captures one dispatch decision and the candidates considered.
type LogRecord struct {
	Timestamp       time.Time   `json:"timestamp"`
	Kind            string      `json:"kind"`
	OrderID         string      `json:"order_id"`
	Priority        string      `json:"priority"`
	Category        string      `json:"category"`
	PreviousRiderID string      `json:"previous_rider_id,omitempty"`
	Urgency         string      `json:"urgency,omitempty"`
	Candidates      []Candidate `json:"candidates"`
	Result          Result      `json:"result"`
}

// Candidate is the audit view of one rider evaluation.
type Candidate struct {
	RiderID    string   `json:"rider_id"`
	Eligible   bool     `json:"eligible"`
	Score      float64  `json:"score"`
	DistanceKm float64  `json:"distance_km"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Result mirrors dispatch.AssignmentResult for logging purposes.
type Result struct {
	Success       bool     `json:"success"`
	AssignedRider string   `json:"assigned_rider,omitempty"`
	Score         float64  `json:"score"`
	Alternates    []string `json:"alternates,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero values match all.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	OrderID string
	RiderID string
	Kind    string
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Matches reports whether r satisfies every filter of q.
func (q LogQuery) Matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrderID != "" && r.OrderID != q.OrderID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.RiderID != "" && !r.involves(q.RiderID) {
		return false
	}
	return true
}

func (r LogRecord) involves(riderID string) bool {
	return slices.Contains(r.riders(), riderID)
}

// riders lists, without duplicates, every rider the decision mentions:
// the assignee, the previous rider, alternates and evaluated candidates.
func (r LogRecord) riders() []string {
	ids := make([]string, 0, len(r.Candidates)+len(r.Result.Alternates)+2)
	add := func(id string) {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	add(r.Result.AssignedRider)
	add(r.PreviousRiderID)
	for _, id := range r.Result.Alternates {
		add(id)
	}
	for _, c := range r.Candidates {
		add(c.RiderID)
	}
	return ids
}
