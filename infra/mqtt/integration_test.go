//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/infra/logger"
	"github.com/kilianp07/courierdispatch/test/util"
)

// TestForwarderAgainstMosquitto verifies events reach a real broker.
func TestForwarderAgainstMosquitto(t *testing.T) {
	ctx := context.Background()
	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto unavailable: %v", err)
	}
	defer cleanup()

	listener, err := NewClient(Config{Broker: broker, ClientID: "listener"})
	require.NoError(t, err)
	defer listener.Disconnect()

	got := make(chan Envelope, 1)
	require.NoError(t, listener.Subscribe(RiderAssignmentTopic("r1"), func(_ paho.Client, m paho.Message) {
		var env struct {
			Envelope
			Event json.RawMessage `json:"event"`
		}
		if json.Unmarshal(m.Payload(), &env) == nil {
			got <- env.Envelope
		}
	}))

	pub, err := NewClient(Config{Broker: broker, ClientID: "dispatcher"})
	require.NoError(t, err)
	defer pub.Disconnect()

	NewEventForwarder(pub, logger.NopLogger{}).Forward(events.OrderAssigned{OrderID: "o1", RiderID: "r1"})

	select {
	case env := <-got:
		require.Equal(t, "o1", env.OrderID)
		require.Equal(t, "assigned", env.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for assignment")
	}
}
