package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/courierdispatch/core/events"
	coremetrics "github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records every
// dispatch event on sinks implementing EventRecorder. It stops when the
// context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.EventRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				r := coremetrics.EventRecord{Kind: ev.Kind(), OrderID: ev.Order(), Time: time.Now()}
				if riders := ev.Riders(); len(riders) > 0 {
					r.RiderID = riders[len(riders)-1]
				}
				_ = rec.RecordEvent(r)
			}
		}
	}()
}
