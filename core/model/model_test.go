package model

import (
	"errors"
	"testing"
	"time"
)

func validOrder() OrderAssignmentRequest {
	return OrderAssignmentRequest{
		OrderID:              "o1",
		Pickup:               Location{Lat: 48.85, Lng: 2.35},
		Delivery:             Location{Lat: 48.86, Lng: 2.36},
		Category:             CategoryFood,
		Priority:             PriorityMedium,
		EstimatedValue:       20,
		EstimatedDistanceKm:  2,
		EstimatedDurationMin: 15,
	}
}

func TestOrderValidate(t *testing.T) {
	if err := validOrder().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := validOrder()
	bad.Pickup.Lat = 91
	bad.Priority = "asap"
	bad.EstimatedDurationMin = -1
	err := bad.Validate()
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest got %v", err)
	}
}

func TestOrderValidateTimeWindow(t *testing.T) {
	o := validOrder()
	now := time.Now()
	o.TimeWindow = &TimeWindow{Earliest: now, Latest: now.Add(-time.Minute)}
	if err := o.Validate(); err == nil {
		t.Fatalf("expected inverted window to be rejected")
	}
}

func TestPriorityRank(t *testing.T) {
	order := []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if Priority("unknown").Valid() {
		t.Fatalf("unknown priority reported valid")
	}
}

func TestCriteriaWithExcludedDoesNotMutate(t *testing.T) {
	c := DefaultCriteria()
	c.ExcludeRiders = []string{"a"}
	c.MaxDistanceKm = Float(3)

	out := c.WithExcluded("b", "a")
	if len(c.ExcludeRiders) != 1 {
		t.Fatalf("original criteria mutated: %v", c.ExcludeRiders)
	}
	if !out.Excludes("a") || !out.Excludes("b") || len(out.ExcludeRiders) != 2 {
		t.Fatalf("unexpected exclusions: %v", out.ExcludeRiders)
	}
	*out.MaxDistanceKm = 10
	if *c.MaxDistanceKm != 3 {
		t.Fatalf("max distance aliased between copies")
	}
}

func TestRiderHasCapabilities(t *testing.T) {
	r := Rider{Capabilities: []string{"cold_chain", "fragile"}}
	if !r.HasCapabilities([]string{"fragile"}) {
		t.Fatalf("expected capability match")
	}
	if r.HasCapabilities([]string{"fragile", "alcohol"}) {
		t.Fatalf("expected missing capability")
	}
}
