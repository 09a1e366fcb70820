package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/courierdispatch/core/geo"
	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/model"
	dispatchmqtt "github.com/kilianp07/courierdispatch/infra/mqtt"
)

// OrderBook remembers generated orders so riders can ask for a
// reassignment with the full request.
type OrderBook struct {
	mu     sync.Mutex
	orders map[string]model.OrderAssignmentRequest
}

func NewOrderBook() *OrderBook {
	return &OrderBook{orders: make(map[string]model.OrderAssignmentRequest)}
}

func (b *OrderBook) Put(o model.OrderAssignmentRequest) {
	b.mu.Lock()
	b.orders[o.OrderID] = o
	b.mu.Unlock()
}

func (b *OrderBook) Get(id string) (model.OrderAssignmentRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	return o, ok
}

var (
	categories = []model.Category{model.CategoryFood, model.CategoryFood, model.CategoryGrocery, model.CategoryPharmacy, model.CategoryPackage}
	priorities = []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent}
)

// OrderGenerator publishes assignment requests at a fixed pace.
type OrderGenerator struct {
	Broker   string
	Topic    string
	Center   model.Location
	RadiusKm float64
	Interval time.Duration
	Book     *OrderBook
	Logger   logger.Logger

	rng    *rand.Rand
	seq    int
	client paho.Client
}

// Next builds a random order inside the service area.
func (g *OrderGenerator) Next() model.OrderAssignmentRequest {
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g.seq++
	pickup := randomPoint(g.rng, g.Center, g.RadiusKm)
	tripKm := 0.5 + g.rng.Float64()*4
	delivery := geo.Destination(pickup, tripKm, g.rng.Float64()*360)
	return model.OrderAssignmentRequest{
		OrderID:              fmt.Sprintf("sim-%06d", g.seq),
		Pickup:               pickup,
		Delivery:             delivery,
		Category:             categories[g.rng.Intn(len(categories))],
		Priority:             priorities[g.rng.Intn(len(priorities))],
		EstimatedValue:       float64(10 + g.rng.Intn(60)),
		EstimatedDistanceKm:  tripKm,
		EstimatedDurationMin: tripKm / geo.DefaultSpeedKmh * 60,
	}
}

// Publish records o in the book and sends an assignment request for it.
func (g *OrderGenerator) Publish(o model.OrderAssignmentRequest) error {
	g.Book.Put(o)
	return publishJSON(g.client, g.Topic, dispatchmqtt.Request{
		RequestID: uuid.NewString(),
		Type:      dispatchmqtt.RequestAssign,
		Order:     o,
	})
}

// Run connects and publishes one order per Interval until ctx is done.
func (g *OrderGenerator) Run(ctx context.Context) error {
	if g.Interval <= 0 {
		<-ctx.Done()
		return nil
	}
	cli, err := mqttClientFactory(g.Broker, "sim-orders")
	if err != nil {
		return err
	}
	g.client = cli
	defer cli.Disconnect(250)

	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o := g.Next()
			if err := g.Publish(o); err != nil {
				g.Logger.Errorf("publish order %s: %v", o.OrderID, err)
			}
		}
	}
}

func publishJSON(cli paho.Client, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := cli.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
