package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/courierdispatch/core/model"
)

func TestScore_Terms(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	c := newCandidate("r1", 5, 0, 0)
	c.Rider.Metrics = &model.PerformanceMetrics{CompletionRate: 0.9, CancellationRate: 0.1, AverageRating: 4}
	c.Rider.Preferences = map[model.Category]model.Preference{model.CategoryFood: model.PreferencePreferred}
	crit := model.DefaultCriteria()
	crit.PreferredRiders = []string{"r1"}

	b := s.Score(c, newOrder("o1", model.PriorityUrgent), 5, crit, offPeak)

	assert.Equal(t, 100.0, b.Base)
	assert.Equal(t, 40.0, b.Distance)
	assert.Equal(t, 20.0, b.Rating)
	assert.InDelta(t, 0.9*20+5-0.1*30, b.Performance, 1e-9)
	assert.Equal(t, 15.0, b.Category)
	assert.Equal(t, 20.0, b.Priority)
	assert.Equal(t, 25.0, b.PreferredRider)
	assert.Equal(t, 10.0, b.Workload)
	assert.Zero(t, b.PeakHour)
	assert.InDelta(t, b.Raw(), b.Total, 1e-9)
}

func TestScore_DistanceTermFloorsAtZero(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	b := s.Score(newCandidate("r1", 3, 0, 1), newOrder("o1", model.PriorityLow), 40, model.DefaultCriteria(), offPeak)
	assert.Zero(t, b.Distance)
}

func TestScore_PerformanceIgnoredWhenDisabled(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	c := newCandidate("r1", 1, 0, 1)
	c.Rider.Metrics = &model.PerformanceMetrics{CompletionRate: 0.1, CancellationRate: 0.9, AverageRating: 1}
	crit := model.DefaultCriteria()
	crit.ConsiderPerformance = false
	b := s.Score(c, newOrder("o1", model.PriorityLow), 1, crit, offPeak)
	assert.Zero(t, b.Rating)
	assert.Zero(t, b.Performance)
}

func TestScore_ClampedAtZero(t *testing.T) {
	w := DefaultScoringWeights()
	w.Base = 0
	s := NewScorer(w, time.UTC)
	c := newCandidate("r1", 0, 0, 5)
	c.Rider.Preferences = map[model.Category]model.Preference{model.CategoryFood: model.PreferenceBlocked}
	b := s.Score(c, newOrder("o1", model.PriorityLow), 30, model.DefaultCriteria(), offPeak)
	assert.Less(t, b.Raw(), 0.0)
	assert.Zero(t, b.Total)
}

func TestScore_Preferences(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	tests := map[model.Preference]float64{
		model.PreferencePreferred: 15,
		model.PreferenceAccepted:  5,
		model.PreferenceAvoided:   -10,
		model.PreferenceBlocked:   -50,
		"":                        0,
	}
	for pref, want := range tests {
		c := newCandidate("r1", 3, 0, 1)
		if pref != "" {
			c.Rider.Preferences = map[model.Category]model.Preference{model.CategoryFood: pref}
		}
		b := s.Score(c, newOrder("o1", model.PriorityLow), 1, model.DefaultCriteria(), offPeak)
		assert.Equal(t, want, b.Category, "preference %q", pref)
	}
}

func TestScore_Workload(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	for active, want := range map[int]float64{0: 10, 1: 0, 2: 0, 3: -15, 7: -15} {
		b := s.Score(newCandidate("r1", 3, 0, active), newOrder("o1", model.PriorityLow), 1, model.DefaultCriteria(), offPeak)
		assert.Equal(t, want, b.Workload, "active orders %d", active)
	}
}

func TestScore_PeakHours(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for hour, want := range map[int]float64{10: 0, 11: 5, 14: 5, 15: 0, 17: 0, 18: 5, 21: 5, 22: 0} {
		b := s.Score(newCandidate("r1", 3, 0, 1), newOrder("o1", model.PriorityLow), 1, model.DefaultCriteria(), day.Add(time.Duration(hour)*time.Hour))
		assert.Equal(t, want, b.PeakHour, "hour %d", hour)
	}
}

func TestScore_PeakHoursUseServiceTimezone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewScorer(DefaultScoringWeights(), paris)
	// 10:30 UTC in March is 11:30 in Paris.
	now := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	b := s.Score(newCandidate("r1", 3, 0, 1), newOrder("o1", model.PriorityLow), 1, model.DefaultCriteria(), now)
	assert.Equal(t, 5.0, b.PeakHour)
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	c := newCandidate("r1", 4.2, 0, 2)
	c.Rider.Metrics = &model.PerformanceMetrics{CompletionRate: 0.8, CancellationRate: 0.05, AverageRating: 4.4}
	first := s.Score(c, newOrder("o1", model.PriorityHigh), 3.3, model.DefaultCriteria(), offPeak)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, s.Score(c, newOrder("o1", model.PriorityHigh), 3.3, model.DefaultCriteria(), offPeak))
	}
}

func TestScore_DistanceMonotonic(t *testing.T) {
	s := NewScorer(DefaultScoringWeights(), time.UTC)
	c := newCandidate("r1", 4, 0, 1)
	prev := s.Score(c, newOrder("o1", model.PriorityLow), 0, model.DefaultCriteria(), offPeak).Total
	for d := 0.5; d <= 40; d += 0.5 {
		cur := s.Score(c, newOrder("o1", model.PriorityLow), d, model.DefaultCriteria(), offPeak).Total
		assert.LessOrEqual(t, cur, prev, "distance %.1f", d)
		prev = cur
	}
}

func TestScoringWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultScoringWeights().Validate())

	w := DefaultScoringWeights()
	w.DistancePerKm = -1
	assert.Error(t, w.Validate())

	w = DefaultScoringWeights()
	w.PriorityUrgent = 1
	assert.Error(t, w.Validate())

	w = DefaultScoringWeights()
	w.PeakHours = []HourRange{{Start: 20, End: 18}}
	assert.Error(t, w.Validate())
}
