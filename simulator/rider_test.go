package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/infra/logger"
	dispatchmqtt "github.com/kilianp07/courierdispatch/infra/mqtt"
)

type stubToken struct{ err error }

func (t *stubToken) Wait() bool                       { return true }
func (t *stubToken) WaitTimeout(d time.Duration) bool { return true }
func (t *stubToken) Done() <-chan struct{}            { ch := make(chan struct{}); close(ch); return ch }
func (t *stubToken) Error() error                     { return t.err }

type published struct {
	topic   string
	payload []byte
}

type stubClient struct {
	mu           sync.Mutex
	subs         map[string]paho.MessageHandler
	pubs         []published
	disconnected int
}

func (c *stubClient) IsConnected() bool      { return c.disconnected == 0 }
func (c *stubClient) IsConnectionOpen() bool { return c.disconnected == 0 }
func (c *stubClient) Connect() paho.Token    { return &stubToken{} }
func (c *stubClient) Disconnect(uint)        { c.mu.Lock(); c.disconnected++; c.mu.Unlock() }
func (c *stubClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	c.pubs = append(c.pubs, published{topic: topic, payload: payload.([]byte)})
	c.mu.Unlock()
	return &stubToken{}
}
func (c *stubClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	if c.subs == nil {
		c.subs = map[string]paho.MessageHandler{}
	}
	c.subs[topic] = cb
	c.mu.Unlock()
	return &stubToken{}
}
func (c *stubClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &stubToken{}
}
func (c *stubClient) Unsubscribe(...string) paho.Token        { return &stubToken{} }
func (c *stubClient) AddRoute(string, paho.MessageHandler)    {}
func (c *stubClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func (c *stubClient) published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.pubs...)
}

type stubMessage struct{ payload []byte }

func (m stubMessage) Duplicate() bool   { return false }
func (m stubMessage) Qos() byte         { return 0 }
func (m stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string     { return "" }
func (m stubMessage) MessageID() uint16 { return 0 }
func (m stubMessage) Payload() []byte   { return m.payload }
func (m stubMessage) Ack()              {}

type fixedStrategy bool

func (f fixedStrategy) Accept(context.Context, string, string) bool { return bool(f) }

func newRider(sc *stubClient, strat ResponseStrategy, book *OrderBook) *SimulatedRider {
	return &SimulatedRider{
		ID:           "rider0001",
		Location:     paris,
		Availability: FlatAvailability(),
		StatePrefix:  "riders",
		RequestTopic: dispatchmqtt.DefaultRequestTopic,
		Interval:     time.Hour,
		Strategy:     strat,
		Book:         book,
		Logger:       logger.NopLogger{},
		client:       sc,
	}
}

func TestPublishState(t *testing.T) {
	sc := &stubClient{}
	r := newRider(sc, fixedStrategy(true), NewOrderBook())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.step(now)
	if err := r.publishState(now); err != nil {
		t.Fatal(err)
	}
	pubs := sc.published()
	if len(pubs) != 1 || pubs[0].topic != "riders/rider0001/state" {
		t.Fatalf("unexpected publications %+v", pubs)
	}
	var rep stateReport
	if err := json.Unmarshal(pubs[0].payload, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.RiderID != "rider0001" || !rep.Available || rep.TS != now.Unix() {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestDeclineRequestsReassignment(t *testing.T) {
	sc := &stubClient{}
	book := NewOrderBook()
	book.Put(model.OrderAssignmentRequest{OrderID: "sim-000001", Category: model.CategoryFood, Priority: model.PriorityHigh})
	r := newRider(sc, fixedStrategy(false), book)

	r.respond(context.Background(), "sim-000001")

	pubs := sc.published()
	if len(pubs) != 1 || pubs[0].topic != dispatchmqtt.DefaultRequestTopic {
		t.Fatalf("unexpected publications %+v", pubs)
	}
	req, err := dispatchmqtt.DecodeRequest(pubs[0].payload)
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != dispatchmqtt.RequestReassign || req.FailedRiderID != "rider0001" || req.Reason != DeclineReason {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Order.OrderID != "sim-000001" {
		t.Fatalf("order not carried over: %+v", req.Order)
	}
}

func TestAcceptKeepsOrder(t *testing.T) {
	sc := &stubClient{}
	r := newRider(sc, fixedStrategy(true), NewOrderBook())
	r.respond(context.Background(), "sim-000002")
	if len(sc.published()) != 0 {
		t.Fatal("accepting must not publish")
	}
	if got := r.Accepted(); len(got) != 1 || got[0] != "sim-000002" {
		t.Fatalf("unexpected accepted orders %v", got)
	}
}

func TestRunSubscribesToAssignments(t *testing.T) {
	sc := &stubClient{}
	mqttClientFactory = func(b, c string) (paho.Client, error) { return sc, nil }
	defer func() { mqttClientFactory = realMQTTClient }()

	r := newRider(nil, fixedStrategy(true), NewOrderBook())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	topic := dispatchmqtt.RiderAssignmentTopic("rider0001")
	deadline := time.Now().Add(time.Second)
	for {
		sc.mu.Lock()
		h := sc.subs[topic]
		sc.mu.Unlock()
		if h != nil {
			h(nil, stubMessage{[]byte(`{"kind":"assigned","order_id":"sim-000003"}`)})
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("rider did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for len(r.Accepted()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("assignment not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if sc.disconnected == 0 {
		t.Fatal("expected disconnect on shutdown")
	}
}

func TestOrderGeneratorPublishesRequests(t *testing.T) {
	sc := &stubClient{}
	book := NewOrderBook()
	g := &OrderGenerator{Topic: "dispatch/requests", Center: paris, RadiusKm: 2, Book: book, client: sc}

	o := g.Next()
	if err := o.Validate(); err != nil {
		t.Fatalf("generated order is invalid: %v", err)
	}
	if err := g.Publish(o); err != nil {
		t.Fatal(err)
	}
	if _, ok := book.Get(o.OrderID); !ok {
		t.Fatal("order not recorded")
	}
	req, err := dispatchmqtt.DecodeRequest(sc.published()[0].payload)
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != dispatchmqtt.RequestAssign || req.Order.OrderID != o.OrderID {
		t.Fatalf("unexpected request %+v", req)
	}
	if g.Next().OrderID == o.OrderID {
		t.Fatal("order ids must be unique")
	}
}
