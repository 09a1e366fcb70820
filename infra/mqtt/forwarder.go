package mqtt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/internal/eventbus"
)

// JSONPublisher publishes a JSON encoded value. Client implements it.
type JSONPublisher interface {
	PublishJSON(topic, class string, v any) error
}

// Envelope wraps every event forwarded to the broker.
type Envelope struct {
	MessageID string       `json:"message_id"`
	Kind      string       `json:"kind"`
	OrderID   string       `json:"order_id"`
	SentAt    time.Time    `json:"sent_at"`
	Event     events.Event `json:"event"`
}

// EventForwarder relays dispatch events from the bus to MQTT topics.
type EventForwarder struct {
	pub    JSONPublisher
	logger logger.Logger
	now    func() time.Time
}

// NewEventForwarder creates a forwarder publishing through pub.
func NewEventForwarder(pub JSONPublisher, log logger.Logger) *EventForwarder {
	return &EventForwarder{pub: pub, logger: log, now: time.Now}
}

// Start subscribes to bus and forwards events until ctx is canceled or the
// bus is closed. The returned channel is closed when forwarding stops.
func (f *EventForwarder) Start(ctx context.Context, bus eventbus.EventBus[events.Event]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				f.Forward(ev)
			}
		}
	}()
	return done
}

// Forward publishes ev on the order topic. Assignments are also pushed to
// the chosen rider's topic. Publish failures are logged and do not stop
// forwarding.
func (f *EventForwarder) Forward(ev events.Event) {
	env := Envelope{
		MessageID: uuid.NewString(),
		Kind:      ev.Kind(),
		OrderID:   ev.Order(),
		SentAt:    f.now().UTC(),
		Event:     ev,
	}
	if err := f.pub.PublishJSON(OrderEventTopic(ev.Order(), ev.Kind()), "event", env); err != nil {
		f.logger.Errorf("forward %s for order %s: %v", ev.Kind(), ev.Order(), err)
	}

	var rider string
	switch e := ev.(type) {
	case events.OrderAssigned:
		rider = e.RiderID
	case events.OrderReassigned:
		rider = e.NewRiderID
	default:
		return
	}
	if err := f.pub.PublishJSON(RiderAssignmentTopic(rider), "assignment", env); err != nil {
		f.logger.Errorf("notify rider %s for order %s: %v", rider, ev.Order(), err)
	}
}
