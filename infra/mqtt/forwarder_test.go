package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/infra/logger"
	"github.com/kilianp07/courierdispatch/internal/eventbus"
)

type published struct {
	topic string
	class string
	body  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishJSON(topic, class string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, class, b})
	return f.err
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.topic)
	}
	return out
}

func TestForwardAssignedNotifiesRider(t *testing.T) {
	pub := &fakePublisher{}
	f := NewEventForwarder(pub, logger.NopLogger{})
	f.Forward(events.OrderAssigned{OrderID: "o1", RiderID: "r1", Score: 181, Method: events.MethodAutomatic})

	require.Equal(t, []string{"dispatch/orders/o1/assigned", "riders/r1/assignments"}, pub.topics())

	var env struct {
		MessageID string         `json:"message_id"`
		Kind      string         `json:"kind"`
		OrderID   string         `json:"order_id"`
		Event     map[string]any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(pub.msgs[0].body, &env))
	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, "assigned", env.Kind)
	assert.Equal(t, "o1", env.OrderID)
	assert.Equal(t, "r1", env.Event["rider_id"])
	assert.Equal(t, "event", pub.msgs[0].class)
	assert.Equal(t, "assignment", pub.msgs[1].class)
}

func TestForwardReassignedTargetsNewRider(t *testing.T) {
	pub := &fakePublisher{}
	f := NewEventForwarder(pub, logger.NopLogger{})
	f.Forward(events.OrderReassigned{OrderID: "o1", PreviousRiderID: "r1", NewRiderID: "r2"})
	assert.Equal(t, []string{"dispatch/orders/o1/reassigned", "riders/r2/assignments"}, pub.topics())
}

func TestForwardUnassignedOnlyOrderTopic(t *testing.T) {
	pub := &fakePublisher{}
	f := NewEventForwarder(pub, logger.NopLogger{})
	f.Forward(events.OrderUnassigned{OrderID: "o1", RiderID: "r1", Reason: "rider_cancelled"})
	assert.Equal(t, []string{"dispatch/orders/o1/unassigned"}, pub.topics())
}

func TestForwardContinuesOnError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	f := NewEventForwarder(pub, logger.NopLogger{})
	f.Forward(events.OrderAssigned{OrderID: "o1", RiderID: "r1"})
	assert.Len(t, pub.topics(), 2)
}

func TestForwarderStartStopsWithContext(t *testing.T) {
	bus := eventbus.New[events.Event]()
	defer bus.Close()
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := NewEventForwarder(pub, logger.NopLogger{}).Start(ctx, bus)

	bus.Publish(events.OrderAssigned{OrderID: "o1", RiderID: "r1"})
	require.Eventually(t, func() bool { return len(pub.topics()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop")
	}
}
