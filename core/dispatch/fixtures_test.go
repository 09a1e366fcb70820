package dispatch

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/core/geo"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
)

// offPeak is outside every default peak hour range.
var offPeak = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

var pickup = model.Location{Lat: 0, Lng: 0}

// kmNorth returns a location distKm north of pickup.
func kmNorth(distKm float64) *model.Location {
	deg := distKm / (geo.EarthRadiusKm * math.Pi / 180)
	return &model.Location{Lat: deg, Lng: 0, UpdatedAt: offPeak}
}

func newOrder(id string, p model.Priority) model.OrderAssignmentRequest {
	return model.OrderAssignmentRequest{
		OrderID:              id,
		Pickup:               pickup,
		Delivery:             model.Location{Lat: 0.01, Lng: 0.01},
		Category:             model.CategoryFood,
		Priority:             p,
		EstimatedValue:       25,
		EstimatedDistanceKm:  1.5,
		EstimatedDurationMin: 20,
	}
}

// newCandidate returns an eligible rider with no performance history.
func newCandidate(id string, rating, distKm float64, activeOrders int) model.Candidate {
	return model.Candidate{
		Rider: model.Rider{
			ID:        id,
			Active:    true,
			Available: true,
			Location:  kmNorth(distKm),
			Rating:    rating,
			Vehicle:   &model.Vehicle{ID: "veh-" + id, Type: model.VehicleScooter, Active: true, HasCapacity: true},
			Version:   1,
		},
		Shift: &model.Shift{ID: "shift-" + id, RiderID: id, Active: true, ActiveOrders: activeOrders},
	}
}

func newTestEngine(t *testing.T) (*Engine, *recordingPublisher) {
	t.Helper()
	eng, err := NewEngine(Config{}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	eng.SetClock(func() time.Time { return offPeak })
	pub := &recordingPublisher{}
	eng.SetPublisher(pub)
	return eng, pub
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind()
	}
	return out
}

// fakeAllocator rejects claims for riders listed in conflicts.
type fakeAllocator struct {
	mu        sync.Mutex
	conflicts map[string]bool
	claims    []string
	releases  []string
}

func (f *fakeAllocator) Claim(_ context.Context, riderID string, version int64, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts[riderID] {
		return 0, store.ErrVersionConflict
	}
	f.claims = append(f.claims, riderID)
	return version + 1, nil
}

// Release reports ErrAlreadyReleased for a rider/order pair seen before.
func (f *fakeAllocator) Release(_ context.Context, riderID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.releases {
		if r == riderID+"/"+orderID {
			return store.ErrAlreadyReleased
		}
	}
	f.releases = append(f.releases, riderID+"/"+orderID)
	return nil
}
