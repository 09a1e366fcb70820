// Package app assembles the dispatch engine and its infrastructure from
// configuration and exposes the operations served over MQTT and the CLI.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	dispatchapi "github.com/kilianp07/courierdispatch/api/dispatch"
	ridersapi "github.com/kilianp07/courierdispatch/api/riders"
	"github.com/kilianp07/courierdispatch/app/plugins"
	"github.com/kilianp07/courierdispatch/auth"
	"github.com/kilianp07/courierdispatch/config"
	"github.com/kilianp07/courierdispatch/connectors"
	"github.com/kilianp07/courierdispatch/connectors/fleet"
	"github.com/kilianp07/courierdispatch/core/dispatch"
	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/core/events"
	"github.com/kilianp07/courierdispatch/core/idempotency"
	coremetrics "github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/monitoring"
	"github.com/kilianp07/courierdispatch/core/store"
	"github.com/kilianp07/courierdispatch/infra/logger"
	"github.com/kilianp07/courierdispatch/infra/metrics"
	inframon "github.com/kilianp07/courierdispatch/infra/monitoring"
	"github.com/kilianp07/courierdispatch/infra/mqtt"
	"github.com/kilianp07/courierdispatch/infra/telemetry"
	"github.com/kilianp07/courierdispatch/internal/eventbus"
	"github.com/kilianp07/courierdispatch/internal/fixtures"
	"github.com/kilianp07/courierdispatch/jobs/fleetsync"
)

// ErrReassignmentInProgress is returned when the same reassignment is
// already being handled by another caller.
var ErrReassignmentInProgress = fmt.Errorf("reassignment in progress: %w", idempotency.ErrInProgress)

// Broker is the MQTT connection used by the service. *mqtt.Client
// implements it.
type Broker interface {
	PublishJSON(topic, class string, v any) error
	Subscribe(topic string, h paho.MessageHandler) error
	Disconnect()
}

// Option customises a Service. Mainly used to inject test doubles.
type Option func(*Service)

// WithRiderStore replaces the configured rider store.
func WithRiderStore(st store.RiderStore) Option {
	return func(s *Service) { s.store = st }
}

// WithIdempotencyStore replaces the configured idempotency store.
func WithIdempotencyStore(st idempotency.Store) Option {
	return func(s *Service) { s.idem = st }
}

// WithBroker replaces the MQTT connection built from cfg.MQTT.
func WithBroker(b Broker) Option {
	return func(s *Service) { s.broker = b }
}

// WithFleetSource replaces the fleet API client built from cfg.Fleet.
func WithFleetSource(src connectors.FleetSource) Option {
	return func(s *Service) { s.fleet = src }
}

// Service orchestrates the dispatch engine and its collaborators.
type Service struct {
	cfg    *config.Config
	engine *dispatch.Engine
	store  store.RiderStore
	idem   idempotency.Store
	logs   logging.LogStore
	sink   coremetrics.MetricsSink
	bus    *eventbus.Bus[events.Event]
	broker Broker
	fleet  connectors.FleetSource
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	logger.SetDefaultLevel(cfg.Logging.Level)
	s := &Service{cfg: cfg, log: logger.New("service")}
	for _, o := range opts {
		o(s)
	}

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	monitoring.Init(mon)

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	if s.store == nil {
		if s.store, err = plugins.NewRiderStore(ctx, cfg.Store); err != nil {
			return nil, fmt.Errorf("rider store: %w", err)
		}
	}
	if cfg.Store.SeedFile != "" {
		if err := s.seed(ctx, cfg.Store.SeedFile); err != nil {
			_ = s.store.Close()
			return nil, err
		}
	}
	if s.idem == nil {
		if s.idem, err = plugins.NewIdempotencyStore(ctx, cfg.Idempotency); err != nil {
			_ = s.store.Close()
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
	}
	if s.logs, err = plugins.NewLogStore(cfg.Logging.Backend, cfg.Logging.Path); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("decision log: %w", err)
	}

	s.engine, err = dispatch.NewEngine(cfg.Dispatch, logger.New("dispatch"))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}
	s.bus = eventbus.New[events.Event]()
	s.engine.SetPublisher(s.bus)
	s.engine.SetAllocator(s.store)
	s.engine.SetMetricsSink(s.sink)
	if s.logs != nil {
		s.engine.SetLogStore(s.logs)
	}

	if s.broker == nil && cfg.MQTT.Enabled() {
		client, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.broker = client
	}
	if s.fleet == nil && cfg.Fleet.Enabled() {
		var fopts []fleet.Option
		if cfg.Fleet.Auth.Enabled() {
			fopts = append(fopts, fleet.WithAuth(auth.NewClientCred(cfg.Fleet.Auth)))
		}
		s.fleet = fleet.NewClient(cfg.Fleet.URL, fopts...)
	}
	return s, nil
}

func (s *Service) seed(ctx context.Context, path string) error {
	cs, err := fixtures.LoadCandidates(path)
	if err != nil {
		return fmt.Errorf("seed riders: %w", err)
	}
	for _, c := range cs {
		if err := s.store.Upsert(ctx, c); err != nil {
			return fmt.Errorf("seed rider %s: %w", c.Rider.ID, err)
		}
	}
	s.log.Infof("seeded %d riders from %s", len(cs), path)
	return nil
}

// Engine exposes the dispatch engine.
func (s *Service) Engine() *dispatch.Engine { return s.engine }

// Store exposes the rider store.
func (s *Service) Store() store.RiderStore { return s.store }

// Bus exposes the event bus dispatch events are published on.
func (s *Service) Bus() eventbus.EventBus[events.Event] { return s.bus }

// AssignOrder ranks the current rider pool for req and commits the best
// rider still available. When every ranked rider was claimed concurrently
// the pool is read again, up to dispatch.commit_attempts times.
func (s *Service) AssignOrder(ctx context.Context, req model.OrderAssignmentRequest, crit model.AssignmentCriteria) (dispatch.AssignmentResult, error) {
	attempts := s.engine.Config().CommitAttempts
	var (
		res dispatch.AssignmentResult
		err error
	)
	for i := 0; i < attempts; i++ {
		pool, perr := s.store.Candidates(ctx)
		if perr != nil {
			monitoring.CaptureException(perr, map[string]string{"module": "store", "order_id": req.OrderID})
			return dispatch.AssignmentResult{OrderID: req.OrderID, Alternates: []dispatch.RankedRider{}, Reason: dispatch.ReasonAllocationFailed},
				fmt.Errorf("read riders: %w", perr)
		}
		res, err = s.engine.Assign(ctx, req, pool, crit)
		if !errors.Is(err, dispatch.ErrAllocationConflict) {
			return res, err
		}
		s.log.Warnf("order %s: every ranked rider was claimed concurrently (attempt %d/%d)", req.OrderID, i+1, attempts)
	}
	return res, err
}

// ReassignOrder moves req away from failedRiderID. Calls are idempotent on
// order id, reason and failed rider: once a reassignment has completed,
// repeating it returns the stored result without touching the store.
// Allocation conflicts are not retried here since the failed rider has
// already been released.
func (s *Service) ReassignOrder(ctx context.Context, req model.OrderAssignmentRequest, crit model.AssignmentCriteria, failedRiderID, reason string, urgency model.Urgency) (dispatch.AssignmentResult, error) {
	key := reassignKey(req.OrderID, reason, failedRiderID)
	ttl := s.cfg.Idempotency.TTL()
	payload, acquired, err := s.idem.Acquire(ctx, key, ttl)
	if errors.Is(err, idempotency.ErrInProgress) {
		return dispatch.AssignmentResult{OrderID: req.OrderID, Alternates: []dispatch.RankedRider{}}, fmt.Errorf("%w: %s", ErrReassignmentInProgress, key)
	}
	if err != nil {
		return dispatch.AssignmentResult{OrderID: req.OrderID, Alternates: []dispatch.RankedRider{}}, fmt.Errorf("idempotency: %w", err)
	}
	if !acquired {
		var res dispatch.AssignmentResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return res, fmt.Errorf("decode stored reassignment %s: %w", key, err)
		}
		s.log.Infof("reassignment %s already handled, returning stored result", key)
		return res, nil
	}

	pool, err := s.store.Candidates(ctx)
	if err != nil {
		s.abandon(key)
		return dispatch.AssignmentResult{OrderID: req.OrderID, Alternates: []dispatch.RankedRider{}, Reason: dispatch.ReasonAllocationFailed},
			fmt.Errorf("read riders: %w", err)
	}
	res, err := s.engine.Reassign(ctx, req, pool, crit, failedRiderID, reason, urgency)
	if err != nil {
		s.abandon(key)
		return res, err
	}
	data, merr := json.Marshal(res)
	if merr == nil {
		merr = s.idem.Complete(ctx, key, data, ttl)
	}
	if merr != nil {
		s.log.Errorf("store reassignment %s: %v", key, merr)
		monitoring.CaptureException(merr, map[string]string{"module": "idempotency", "order_id": req.OrderID})
	}
	return res, nil
}

func (s *Service) abandon(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.idem.Abandon(ctx, key); err != nil {
		s.log.Errorf("abandon %s: %v", key, err)
	}
}

func reassignKey(orderID, reason, failedRiderID string) string {
	return orderID + ":" + reason + ":" + failedRiderID
}

// Batch assigns orders from a single snapshot of the rider pool, highest
// priority first.
func (s *Service) Batch(ctx context.Context, orders []model.OrderAssignmentRequest, crit model.AssignmentCriteria) (dispatch.BatchAssignmentResult, error) {
	pool, err := s.store.Candidates(ctx)
	if err != nil {
		return dispatch.BatchAssignmentResult{Outcomes: []dispatch.BatchOutcome{}}, fmt.Errorf("read riders: %w", err)
	}
	return s.engine.BatchAssign(ctx, orders, pool, crit)
}

// HandleRequest serves a request received over MQTT.
func (s *Service) HandleRequest(ctx context.Context, req mqtt.Request) (any, error) {
	switch req.Type {
	case mqtt.RequestReassign:
		return s.ReassignOrder(ctx, req.Order, req.Criteria, req.FailedRiderID, req.Reason, req.Urgency)
	default:
		return s.AssignOrder(ctx, req.Order, req.Criteria)
	}
}

// Handlers returns the read-only HTTP API mounted next to /metrics.
func (s *Service) Handlers() map[string]http.Handler {
	h := map[string]http.Handler{
		"/api/riders/status": ridersapi.NewStatusHandler(s.store),
	}
	if s.logs != nil {
		h["/api/dispatch/decisions"] = dispatchapi.NewLogHandler(s.logs, s.cfg.HTTP.Token)
	}
	return h
}

// Run starts the background components and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer monitoring.Recover()

	metrics.StartEventCollector(ctx, s.bus, s.sink)

	if s.broker != nil {
		mqtt.NewEventForwarder(s.broker, logger.New("mqtt_forwarder")).Start(ctx, s.bus)
		sub := mqtt.NewRequestSubscriber(s.broker, s.cfg.MQTT.RequestTopic, s.HandleRequest, logger.New("mqtt_requests"))
		if err := sub.Start(ctx); err != nil {
			return err
		}
		if s.cfg.Telemetry.Enabled {
			if err := telemetry.NewManager(s.cfg.Telemetry, s.broker, s.store).Start(ctx); err != nil {
				return err
			}
		}
	}
	if s.fleet != nil {
		go func() {
			defer monitoring.Recover()
			fleetsync.Run(ctx, s.cfg.Fleet.Interval(), s.fleet, s.store, logger.New("fleet_sync"))
		}()
	}
	if addr := s.cfg.ListenAddress(); addr != "" {
		metrics.StartServer(ctx, addr, s.Handlers(), s.log)
	}

	s.log.Infof("dispatch service running")
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.broker != nil {
		s.broker.Disconnect()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.logs != nil {
		errs = append(errs, s.logs.Close())
	}
	if c, ok := s.idem.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
