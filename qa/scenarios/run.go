package scenarios

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/courierdispatch/core/dispatch"
	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
	"github.com/kilianp07/courierdispatch/infra/logger"
	"github.com/kilianp07/courierdispatch/infra/metrics"
	"github.com/kilianp07/courierdispatch/infra/store/memory"
)

// scenarioClock is a Monday morning outside the default peak hours.
var scenarioClock = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// flakyAllocator rejects the first n claims per rider with a version
// conflict.
type flakyAllocator struct {
	store.Allocator
	mu   sync.Mutex
	fail map[string]int
}

func (f *flakyAllocator) Claim(ctx context.Context, riderID string, v int64, orderID string) (int64, error) {
	f.mu.Lock()
	if f.fail[riderID] > 0 {
		f.fail[riderID]--
		f.mu.Unlock()
		return 0, store.ErrVersionConflict
	}
	f.mu.Unlock()
	return f.Allocator.Claim(ctx, riderID, v, orderID)
}

func RunScenario(t *testing.T, sc *Scenario) {
	ctx := context.Background()
	sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	seed := make([]model.Candidate, len(sc.Riders))
	for i, r := range sc.Riders {
		seed[i] = r.ToModel()
	}
	st := memory.New(seed...)
	fail := make(map[string]int, len(sc.FailClaims))
	for id, n := range sc.FailClaims {
		fail[id] = n
	}

	eng, err := dispatch.NewEngine(dispatch.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	eng.SetClock(func() time.Time { return scenarioClock })
	eng.SetAllocator(&flakyAllocator{Allocator: st, fail: fail})
	eng.SetMetricsSink(sink)
	var evs []events.Event
	eng.SetPublisher(events.PublisherFunc(func(e events.Event) { evs = append(evs, e) }))

	crit := sc.Criteria.ToModel()
	orders := make(map[string]model.OrderAssignmentRequest, len(sc.Orders))
	reqs := make([]model.OrderAssignmentRequest, len(sc.Orders))
	for i, o := range sc.Orders {
		reqs[i] = o.ToModel()
		orders[o.ID] = reqs[i]
	}

	final := make(map[string]string, len(sc.Orders))
	snapshot := func() []model.Candidate {
		pool, err := st.Candidates(ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		return pool
	}

	if sc.Batch {
		res, err := eng.BatchAssign(ctx, reqs, snapshot(), crit)
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		for _, o := range res.Outcomes {
			final[o.OrderID] = o.RiderID
		}
	} else {
		for _, req := range reqs {
			res, err := eng.Assign(ctx, req, snapshot(), crit)
			if err != nil && !errors.Is(err, dispatch.ErrAllocationConflict) {
				t.Fatalf("assign %s: %v", req.OrderID, err)
			}
			final[req.OrderID] = res.AssignedRider
		}
	}

	for _, ra := range sc.Reassign {
		req, ok := orders[ra.Order]
		if !ok {
			t.Fatalf("reassign of unknown order %s", ra.Order)
		}
		res, err := eng.Reassign(ctx, req, snapshot(), crit, ra.FailedRider, ra.Reason, model.Urgency(ra.Urgency))
		if err != nil {
			t.Fatalf("reassign %s: %v", ra.Order, err)
		}
		final[ra.Order] = res.AssignedRider
	}

	for id, want := range sc.Expected.Riders {
		if got := final[id]; got != want {
			t.Errorf("scenario %s: order %s assigned to %q, want %q", sc.Name, id, got, want)
		}
	}

	// Every rider carries its initial load plus the orders it ended up with.
	for _, r := range sc.Riders {
		want := r.ActiveOrders
		for _, rider := range final {
			if rider == r.ID {
				want++
			}
		}
		c, err := st.Get(ctx, r.ID)
		if err != nil {
			t.Fatalf("get %s: %v", r.ID, err)
		}
		if c.Shift.ActiveOrders != want {
			t.Errorf("scenario %s: rider %s has %d active orders, want %d", sc.Name, r.ID, c.Shift.ActiveOrders, want)
		}
	}

	assigned := 0
	for _, e := range evs {
		if e.Kind() == "assigned" {
			assigned++
		}
	}
	if assigned < countAssigned(final) {
		t.Errorf("scenario %s: %d assigned events for %d assignments", sc.Name, assigned, countAssigned(final))
	}
}

func countAssigned(final map[string]string) int {
	n := 0
	for _, r := range final {
		if r != "" {
			n++
		}
	}
	return n
}
