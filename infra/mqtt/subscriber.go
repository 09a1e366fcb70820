package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/model"
)

// Request types accepted on the request topic.
const (
	RequestAssign   = "assign"
	RequestReassign = "reassign"
)

// Request is an assignment or reassignment request received over MQTT.
type Request struct {
	RequestID     string                       `json:"request_id"`
	Type          string                       `json:"type"`
	Order         model.OrderAssignmentRequest `json:"order"`
	Criteria      model.AssignmentCriteria     `json:"-"`
	FailedRiderID string                       `json:"failed_rider_id,omitempty"`
	Reason        string                       `json:"reason,omitempty"`
	Urgency       model.Urgency                `json:"urgency,omitempty"`
}

// Reply is published on ResultTopic once a request has been handled.
type Reply struct {
	RequestID string    `json:"request_id"`
	OrderID   string    `json:"order_id"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	HandledAt time.Time `json:"handled_at"`
}

// DecodeRequest parses payload. Criteria fields absent from the payload keep
// the values of model.DefaultCriteria and a missing type means assign.
func DecodeRequest(payload []byte) (Request, error) {
	var raw struct {
		Request
		Criteria json.RawMessage `json:"criteria"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	req := raw.Request
	req.Criteria = model.DefaultCriteria()
	if len(raw.Criteria) > 0 && string(raw.Criteria) != "null" {
		if err := json.Unmarshal(raw.Criteria, &req.Criteria); err != nil {
			return Request{}, fmt.Errorf("decode criteria: %w", err)
		}
	}
	if req.Type == "" {
		req.Type = RequestAssign
	}
	switch req.Type {
	case RequestAssign:
	case RequestReassign:
		if req.FailedRiderID == "" {
			return Request{}, fmt.Errorf("%w: reassign requires failed_rider_id", model.ErrInvalidRequest)
		}
	default:
		return Request{}, fmt.Errorf("%w: unknown request type %q", model.ErrInvalidRequest, req.Type)
	}
	return req, nil
}

// RequestHandler serves a decoded request and returns the value to reply
// with.
type RequestHandler func(ctx context.Context, req Request) (any, error)

// Subscriber is the subset of Client used by RequestSubscriber.
type Subscriber interface {
	JSONPublisher
	Subscribe(topic string, h paho.MessageHandler) error
}

// RequestSubscriber consumes requests from the broker and publishes a
// Reply for each of them.
type RequestSubscriber struct {
	client  Subscriber
	topic   string
	handler RequestHandler
	logger  logger.Logger
	ctx     context.Context
	now     func() time.Time
}

// NewRequestSubscriber creates a subscriber for topic. An empty topic
// selects DefaultRequestTopic.
func NewRequestSubscriber(client Subscriber, topic string, h RequestHandler, log logger.Logger) *RequestSubscriber {
	if topic == "" {
		topic = DefaultRequestTopic
	}
	return &RequestSubscriber{client: client, topic: topic, handler: h, logger: log, now: time.Now}
}

// Start subscribes to the request topic. Handlers run with ctx.
func (s *RequestSubscriber) Start(ctx context.Context) error {
	s.ctx = ctx
	if err := s.client.Subscribe(s.topic, s.onMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	s.logger.Infof("listening for dispatch requests on %s", s.topic)
	return nil
}

func (s *RequestSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	s.handle(msg.Payload())
}

func (s *RequestSubscriber) handle(payload []byte) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := DecodeRequest(payload)
	if err != nil {
		s.logger.Warnf("dropping malformed request: %v", err)
		return
	}
	reply := Reply{RequestID: req.RequestID, OrderID: req.Order.OrderID}
	res, err := s.handler(ctx, req)
	if err != nil {
		reply.Error = err.Error()
	}
	reply.Result = res
	reply.HandledAt = s.now().UTC()
	if err := s.client.PublishJSON(ResultTopic(req.Order.OrderID), "result", reply); err != nil {
		s.logger.Errorf("publish reply for order %s: %v", req.Order.OrderID, err)
	}
}
