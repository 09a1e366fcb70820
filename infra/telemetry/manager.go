// Package telemetry ingests the state riders' devices push over MQTT and
// writes it to the rider store so later snapshots see fresh positions.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/courierdispatch/config"
	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
	"github.com/kilianp07/courierdispatch/infra/logger"
)

var (
	stateUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_state_updates_total",
		Help: "Rider state reports by result",
	}, []string{"result"})
	lastUpdate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_last_update_timestamp_seconds",
		Help: "Unix timestamp of the last applied rider state report",
	})
)

func init() {
	prometheus.MustRegister(stateUpdates, lastUpdate)
}

// Subscriber is implemented by the MQTT client.
type Subscriber interface {
	Subscribe(topic string, h paho.MessageHandler) error
}

// StateWriter persists partial rider updates.
type StateWriter interface {
	UpdateState(ctx context.Context, riderID string, u store.StateUpdate) error
}

// Manager applies rider state reports to the store.
type Manager struct {
	cfg   config.TelemetryConfig
	sub   Subscriber
	store StateWriter
	log   logger.Logger
	now   func() time.Time
	ctx   context.Context
}

// NewManager prepares telemetry ingestion.
func NewManager(cfg config.TelemetryConfig, sub Subscriber, st StateWriter) *Manager {
	return &Manager{
		cfg:   cfg,
		sub:   sub,
		store: st,
		log:   logger.New("telemetry"),
		now:   time.Now,
	}
}

// Start subscribes to <prefix>/+/state. Reports are applied with ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx = ctx
	topic := strings.TrimSuffix(m.cfg.Prefix(), "/") + "/+/state"
	if err := m.sub.Subscribe(topic, m.onPush); err != nil {
		return fmt.Errorf("subscribe state: %w", err)
	}
	m.log.Infof("listening for rider state on %s", topic)
	return nil
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.process(ctx, msg.Payload(), msg.Topic()); err != nil {
		m.log.Warnf("rider state from %s: %v", msg.Topic(), err)
	}
}

// extractID returns the rider segment of <prefix>/<rider_id>/state.
func extractID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 && parts[len(parts)-1] == "state" {
		return parts[len(parts)-2]
	}
	return ""
}

type stateMessage struct {
	RiderID   string   `json:"rider_id"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Available *bool    `json:"available"`
	Active    *bool    `json:"active"`
	TS        *int64   `json:"ts"`
}

var errStale = errors.New("report timestamp too far in the future")

func (m *Manager) process(ctx context.Context, payload []byte, topic string) error {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		stateUpdates.WithLabelValues("invalid").Inc()
		return err
	}
	if msg.RiderID == "" {
		msg.RiderID = extractID(topic)
	}
	if msg.RiderID == "" {
		stateUpdates.WithLabelValues("invalid").Inc()
		return errors.New("missing rider id")
	}
	now := m.now()
	ts := now
	if msg.TS != nil {
		ts = time.Unix(*msg.TS, 0)
		if ts.Sub(now) > time.Duration(m.cfg.MaxClockSkew())*time.Second {
			stateUpdates.WithLabelValues("invalid").Inc()
			return errStale
		}
	}

	u := store.StateUpdate{Available: msg.Available, Active: msg.Active, ReportedAt: ts.UTC()}
	if msg.Lat != nil && msg.Lng != nil {
		loc := model.Location{Lat: *msg.Lat, Lng: *msg.Lng, UpdatedAt: ts.UTC()}
		if err := loc.Validate(); err != nil {
			stateUpdates.WithLabelValues("invalid").Inc()
			return err
		}
		u.Location = &loc
	}
	if err := m.store.UpdateState(ctx, msg.RiderID, u); err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			stateUpdates.WithLabelValues("stale").Inc()
			m.log.Debugf("dropping out of order report for rider %s at %s", msg.RiderID, ts.UTC())
			return nil
		}
		if errors.Is(err, store.ErrNotFound) {
			stateUpdates.WithLabelValues("unknown_rider").Inc()
		} else {
			stateUpdates.WithLabelValues("error").Inc()
		}
		return err
	}
	stateUpdates.WithLabelValues("applied").Inc()
	lastUpdate.SetToCurrentTime()
	return nil
}
