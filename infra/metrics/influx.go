package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/infra/logger"
)

// InfluxSink writes dispatch decisions to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAssignment writes each decision as an assignment_decision point.
// Points of one call are sent in a single request.
func (s *InfluxSink) RecordAssignment(recs []coremetrics.AssignmentRecord) error {
	points := make([]*write.Point, 0, len(recs))
	for _, r := range recs {
		p := write.NewPointWithMeasurement("assignment_decision").
			AddTag("kind", r.Kind).
			AddTag("priority", r.Priority).
			AddTag("category", r.Category).
			AddTag("success", strconv.FormatBool(r.Success)).
			AddField("order_id", r.OrderID).
			AddField("score", round3(r.Score)).
			AddField("candidates", r.CandidateCount).
			AddField("eligible", r.EligibleCount).
			AddField("duration_ms", millis(r.Duration)).
			SetTime(r.Time)
		if r.RiderID != "" {
			p.AddTag("rider_id", r.RiderID)
		}
		if r.Reason != "" {
			p.AddField("reason", r.Reason)
		}
		points = append(points, p)
	}
	return s.write(10*time.Second, points...)
}

func (s *InfluxSink) RecordBatch(rec coremetrics.BatchRecord) error {
	return s.write(5*time.Second, write.NewPointWithMeasurement("batch_assignment").
		AddTag("component", "batch_optimizer").
		AddField("orders", rec.Orders).
		AddField("assigned", rec.Assigned).
		AddField("unassigned", rec.Unassigned).
		AddField("optimization_score", round3(rec.OptimizationScore)).
		AddField("mean_score", round3(rec.MeanScore)).
		AddField("duration_ms", millis(rec.Duration)).
		SetTime(rec.Time))
}

func (s *InfluxSink) RecordReassignment(rec coremetrics.ReassignmentRecord) error {
	return s.write(5*time.Second, write.NewPointWithMeasurement("reassignment").
		AddTag("urgency", rec.Urgency).
		AddTag("success", strconv.FormatBool(rec.Success)).
		AddTag("previous_rider_id", rec.PreviousRiderID).
		AddField("order_id", rec.OrderID).
		AddField("new_rider_id", rec.NewRiderID).
		AddField("reason", rec.Reason).
		SetTime(rec.Time))
}

func (s *InfluxSink) RecordEvent(rec coremetrics.EventRecord) error {
	return s.write(5*time.Second, write.NewPointWithMeasurement("dispatch_event").
		AddTag("kind", rec.Kind).
		AddField("order_id", rec.OrderID).
		AddField("rider_id", rec.RiderID).
		SetTime(rec.Time))
}

func (s *InfluxSink) write(timeout time.Duration, points ...*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write %s: %w", points[0].Name(), err)
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func millis(d time.Duration) float64 { return round3(d.Seconds() * 1000) }
