package dispatch

import (
	"math"
	"time"

	"github.com/kilianp07/courierdispatch/core/model"
)

// Scorer computes the desirability of an eligible rider. It is pure: the
// same inputs always produce the same breakdown.
type Scorer struct {
	weights ScoringWeights
	loc     *time.Location
}

// NewScorer returns a Scorer using w. Peak hours are evaluated in loc,
// UTC when nil.
func NewScorer(w ScoringWeights, loc *time.Location) *Scorer {
	if loc == nil {
		loc = time.UTC
	}
	return &Scorer{weights: w, loc: loc}
}

// Score returns the per-term breakdown for the candidate.
func (s *Scorer) Score(c model.Candidate, req model.OrderAssignmentRequest, distanceKm float64, crit model.AssignmentCriteria, now time.Time) ScoreBreakdown {
	w := s.weights
	r := c.Rider
	b := ScoreBreakdown{
		Base:     w.Base,
		Distance: math.Max(0, w.DistanceMax-distanceKm*w.DistancePerKm),
		Category: s.categoryTerm(r.PreferenceFor(req.Category)),
		Priority: s.priorityTerm(req.Priority),
		Workload: s.workloadTerm(c),
		PeakHour: s.peakTerm(now),
	}
	if crit.ConsiderPerformance {
		b.Rating = (r.Rating - w.RatingNeutral) * w.RatingPerStar
		if m := r.Metrics; m != nil {
			b.Performance = m.CompletionRate*w.CompletionRate +
				(m.AverageRating-w.RatingNeutral)*w.MetricsRating -
				m.CancellationRate*w.CancellationRate
		}
	}
	if crit.Prefers(r.ID) {
		b.PreferredRider = w.PreferredRider
	}
	b.Total = math.Max(0, b.Raw())
	return b
}

func (s *Scorer) categoryTerm(p model.Preference) float64 {
	switch p {
	case model.PreferencePreferred:
		return s.weights.CategoryPreferred
	case model.PreferenceAccepted:
		return s.weights.CategoryAccepted
	case model.PreferenceAvoided:
		return -s.weights.CategoryAvoided
	case model.PreferenceBlocked:
		return -s.weights.CategoryBlocked
	default:
		return 0
	}
}

func (s *Scorer) priorityTerm(p model.Priority) float64 {
	switch p {
	case model.PriorityMedium:
		return s.weights.PriorityMedium
	case model.PriorityHigh:
		return s.weights.PriorityHigh
	case model.PriorityUrgent:
		return s.weights.PriorityUrgent
	default:
		return 0
	}
}

func (s *Scorer) workloadTerm(c model.Candidate) float64 {
	if c.Shift == nil {
		return 0
	}
	n := c.ActiveOrders()
	switch {
	case n == 0:
		return s.weights.IdleBonus
	case n >= s.weights.OverloadThreshold:
		return -s.weights.OverloadPenalty
	default:
		return 0
	}
}

func (s *Scorer) peakTerm(now time.Time) float64 {
	hour := now.In(s.loc).Hour()
	for _, r := range s.weights.PeakHours {
		if r.Contains(hour) {
			return s.weights.PeakBonus
		}
	}
	return 0
}
