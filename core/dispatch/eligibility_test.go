package dispatch

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/model"
)

func newTestEvaluator(t *testing.T, mutate func(*Config)) *Evaluator {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	return NewEvaluator(cfg, NewScorer(cfg.Scoring, cfg.Location()))
}

func TestEvaluate_EligibleRiderIsScored(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	res := ev.Evaluate(newCandidate("r1", 4, 2, 1), newOrder("o1", model.PriorityLow), model.DefaultCriteria(), offPeak)

	require.True(t, res.Eligible, "reasons: %v", res.Reasons)
	assert.Empty(t, res.Reasons)
	require.NotNil(t, res.Breakdown)
	assert.Equal(t, res.Breakdown.Total, res.Score)
	assert.InDelta(t, 2.0, res.DistanceKm, 1e-6)
	// 2 km at 25 km/h is 4m48s.
	assert.WithinDuration(t, offPeak.Add(288*time.Second), res.EstimatedArrival, time.Millisecond)
	assert.Equal(t, res.EstimatedArrival.Add(20*time.Minute), res.EstimatedCompletion)
}

func TestEvaluate_CollectsEveryReason(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	c := newCandidate("r1", 2, 5, 0)
	c.Rider.Active = false
	c.Rider.Available = false
	c.Shift.Active = false
	c.Rider.Vehicle.HasCapacity = false
	crit := model.DefaultCriteria()
	crit.MinRating = model.Float(4)
	crit.MaxDistanceKm = model.Float(3)
	crit.ExcludeRiders = []string{"r1"}

	res := ev.Evaluate(c, newOrder("o1", model.PriorityLow), crit, offPeak)

	assert.False(t, res.Eligible)
	assert.Zero(t, res.Score)
	assert.Nil(t, res.Breakdown)
	assert.ElementsMatch(t, []rejection{
		rejectInactive, rejectUnavailable, rejectNoShift, rejectRating,
		rejectCapacity, rejectExcluded, rejectDistance,
	}, res.rejections)
	assert.Len(t, res.Reasons, 7)
}

func TestEvaluate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Candidate, *model.OrderAssignmentRequest, *model.AssignmentCriteria)
		cfg    func(*Config)
		want   rejection
	}{
		{
			name:   "no vehicle",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) { c.Rider.Vehicle = nil },
			want:   rejectNoVehicle,
		},
		{
			name:   "inactive vehicle",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) { c.Rider.Vehicle.Active = false },
			want:   rejectNoVehicle,
		},
		{
			name: "vehicle type",
			mutate: func(_ *model.Candidate, _ *model.OrderAssignmentRequest, cr *model.AssignmentCriteria) {
				cr.RequiredVehicleTypes = []model.VehicleType{model.VehicleCar, model.VehicleVan}
			},
			want: rejectVehicleType,
		},
		{
			name:   "no shift",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) { c.Shift = nil },
			want:   rejectNoShift,
		},
		{
			name:   "no location",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) { c.Rider.Location = nil },
			want:   rejectNoLocation,
		},
		{
			name: "nan location",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) {
				c.Rider.Location.Lat = math.NaN()
			},
			want: rejectNoLocation,
		},
		{
			name: "infinite location",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) {
				c.Rider.Location.Lng = math.Inf(1)
			},
			want: rejectNoLocation,
		},
		{
			name: "time window",
			mutate: func(_ *model.Candidate, o *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) {
				o.TimeWindow = &model.TimeWindow{Earliest: offPeak, Latest: offPeak.Add(time.Minute)}
			},
			want: rejectTimeWindow,
		},
		{
			name: "capabilities",
			mutate: func(_ *model.Candidate, o *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) {
				o.RequiredCapabilities = []string{"cold_chain"}
			},
			want: rejectCapabilities,
		},
		{
			name: "stale location",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) {
				c.Rider.Location.UpdatedAt = offPeak.Add(-time.Hour)
			},
			cfg:  func(c *Config) { c.MaxLocationAgeSeconds = 600 },
			want: rejectStale,
		},
		{
			name: "blocked category as hard reject",
			mutate: func(c *model.Candidate, _ *model.OrderAssignmentRequest, _ *model.AssignmentCriteria) {
				c.Rider.Preferences = map[model.Category]model.Preference{model.CategoryFood: model.PreferenceBlocked}
			},
			cfg:  func(c *Config) { c.BlockedIsHardReject = true },
			want: rejectBlocked,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newTestEvaluator(t, tt.cfg)
			c := newCandidate("r1", 4, 2, 0)
			o := newOrder("o1", model.PriorityMedium)
			crit := model.DefaultCriteria()
			tt.mutate(&c, &o, &crit)
			res := ev.Evaluate(c, o, crit, offPeak)
			assert.False(t, res.Eligible)
			assert.Equal(t, []rejection{tt.want}, res.rejections)
			assert.Len(t, res.Reasons, 1)
		})
	}
}

func TestEvaluate_SwitchesDisableChecks(t *testing.T) {
	ev := newTestEvaluator(t, func(c *Config) { c.MaxLocationAgeSeconds = 60 })
	c := newCandidate("r1", 4, 2, 0)
	c.Rider.Available = false
	c.Rider.Vehicle.HasCapacity = false
	c.Rider.Location.UpdatedAt = offPeak.Add(-time.Hour)

	crit := model.DefaultCriteria()
	crit.ConsiderAvailability = false
	crit.ConsiderCapacity = false
	crit.ConsiderLocation = false

	res := ev.Evaluate(c, newOrder("o1", model.PriorityLow), crit, offPeak)
	assert.True(t, res.Eligible, "reasons: %v", res.Reasons)
}

func TestEvaluate_BlockedIsOnlyPenaltyByDefault(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	c := newCandidate("r1", 4, 2, 0)
	c.Rider.Preferences = map[model.Category]model.Preference{model.CategoryFood: model.PreferenceBlocked}
	res := ev.Evaluate(c, newOrder("o1", model.PriorityLow), model.DefaultCriteria(), offPeak)
	require.True(t, res.Eligible)
	assert.Equal(t, -50.0, res.Breakdown.Category)
}

func TestEvaluate_MaxDistanceScenario(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	crit := model.DefaultCriteria()
	crit.MaxDistanceKm = model.Float(3)
	res := ev.Evaluate(newCandidate("C", 5, 5, 0), newOrder("o1", model.PriorityUrgent), crit, offPeak)
	assert.False(t, res.Eligible)
	assert.Contains(t, res.rejections, rejectDistance)
}

func TestEvaluate_DoesNotMutateSnapshot(t *testing.T) {
	ev := newTestEvaluator(t, nil)
	c := newCandidate("r1", 4, 2, 0)
	before := *c.Rider.Location
	shift := *c.Shift
	_ = ev.Evaluate(c, newOrder("o1", model.PriorityLow), model.DefaultCriteria(), offPeak)
	assert.Equal(t, before, *c.Rider.Location)
	assert.Equal(t, shift, *c.Shift)
}
