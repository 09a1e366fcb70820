package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/courierdispatch/core/geo"
	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/model"
	dispatchmqtt "github.com/kilianp07/courierdispatch/infra/mqtt"
)

// DeclineReason is sent with reassignment requests raised by riders.
const DeclineReason = "rider_declined"

// SimulatedRider reports its state over MQTT and answers assignments.
type SimulatedRider struct {
	ID           string
	Vehicle      model.VehicleType
	Rating       float64
	Location     model.Location
	Availability [24]float64

	Broker       string
	StatePrefix  string
	RequestTopic string
	Interval     time.Duration
	Strategy     ResponseStrategy
	Book         *OrderBook
	Logger       logger.Logger

	client    paho.Client
	mu        sync.Mutex
	available bool
	accepted  []string
}

// Run connects to the broker, publishes state every Interval and listens
// for assignments until ctx is done.
func (r *SimulatedRider) Run(ctx context.Context) error {
	cli, err := mqttClientFactory(r.Broker, "sim-"+r.ID)
	if err != nil {
		return err
	}
	r.client = cli
	topic := dispatchmqtt.RiderAssignmentTopic(r.ID)
	if token := cli.Subscribe(topic, 0, r.onAssignment(ctx)); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	r.tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			cli.Disconnect(250)
			return nil
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

func (r *SimulatedRider) tick(now time.Time) {
	r.step(now)
	if err := r.publishState(now); err != nil {
		r.Logger.Errorf("%s: publish state: %v", r.ID, err)
	}
}

// step moves the rider up to 200 m and rolls its availability for the
// current hour.
func (r *SimulatedRider) step(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rngMu.Lock()
	dist, brg := rng.Float64()*0.2, rng.Float64()*360
	rngMu.Unlock()
	r.Location = geo.Destination(r.Location, dist, brg)
	r.available = chance(r.Availability[now.Hour()])
}

type stateReport struct {
	RiderID   string  `json:"rider_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Available bool    `json:"available"`
	Active    bool    `json:"active"`
	TS        int64   `json:"ts"`
}

func (r *SimulatedRider) publishState(now time.Time) error {
	r.mu.Lock()
	rep := stateReport{
		RiderID:   r.ID,
		Lat:       r.Location.Lat,
		Lng:       r.Location.Lng,
		Available: r.available,
		Active:    true,
		TS:        now.Unix(),
	}
	r.mu.Unlock()
	return publishJSON(r.client, fmt.Sprintf("%s/%s/state", r.StatePrefix, r.ID), rep)
}

func (r *SimulatedRider) onAssignment(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		var env struct {
			Kind    string `json:"kind"`
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal(msg.Payload(), &env); err != nil {
			r.Logger.Warnf("%s: decode assignment: %v", r.ID, err)
			return
		}
		go r.respond(ctx, env.OrderID)
	}
}

// respond either keeps the order or asks the service to reassign it.
func (r *SimulatedRider) respond(ctx context.Context, orderID string) {
	if r.Strategy.Accept(ctx, r.ID, orderID) {
		r.mu.Lock()
		r.accepted = append(r.accepted, orderID)
		r.mu.Unlock()
		return
	}
	order, ok := r.Book.Get(orderID)
	if !ok {
		r.Logger.Warnf("%s: declined unknown order %s", r.ID, orderID)
		return
	}
	req := dispatchmqtt.Request{
		RequestID:     uuid.NewString(),
		Type:          dispatchmqtt.RequestReassign,
		Order:         order,
		FailedRiderID: r.ID,
		Reason:        DeclineReason,
		Urgency:       model.UrgencyHigh,
	}
	if err := publishJSON(r.client, r.RequestTopic, req); err != nil {
		r.Logger.Errorf("%s: request reassignment of %s: %v", r.ID, orderID, err)
		return
	}
	r.Logger.Infof("%s declined order %s", r.ID, orderID)
}

// Accepted returns the orders the rider kept.
func (r *SimulatedRider) Accepted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.accepted...)
}
