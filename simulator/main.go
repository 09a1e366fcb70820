// Command simulator drives the dispatch service over MQTT with a fleet of
// simulated riders and a stream of random orders.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/model"
	infralogger "github.com/kilianp07/courierdispatch/infra/logger"
	dispatchmqtt "github.com/kilianp07/courierdispatch/infra/mqtt"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		infralogger.SetDefaultLevel("warn")
	}
	logg := infralogger.New("simulator")

	prof := FlatAvailability()
	if cfg.AvailabilityFile != "" {
		data, err := os.ReadFile(cfg.AvailabilityFile)
		if err != nil {
			log.Fatalf("availability file: %v", err)
		}
		if prof, err = LoadAvailabilityProfile(data); err != nil {
			log.Fatalf("availability file: %v", err)
		}
	}

	center := model.Location{Lat: cfg.CenterLat, Lng: cfg.CenterLng}
	riders := GenerateFleet(FleetConfig{
		Size:         cfg.FleetSize,
		Center:       center,
		RadiusKm:     cfg.RadiusKm,
		Availability: prof,
	})
	if cfg.SeedOut != "" {
		if err := writeSeed(cfg.SeedOut, riders); err != nil {
			log.Fatalf("seed file: %v", err)
		}
		logg.Infof("wrote %d riders to %s", len(riders), cfg.SeedOut)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	book := NewOrderBook()
	gen := &OrderGenerator{
		Broker:   cfg.Broker,
		Topic:    cfg.RequestTopic,
		Center:   center,
		RadiusKm: cfg.RadiusKm,
		Interval: cfg.OrderInterval,
		Book:     book,
		Logger:   logg,
	}
	strat := RandomDecline{Delay: cfg.ResponseLatency, DeclineRate: cfg.DeclineRate}
	runFleet(ctx, riders, cfg, strat, book, gen, logg)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.IntVar(&cfg.FleetSize, "fleet-size", 10, "number of riders")
	flag.Float64Var(&cfg.CenterLat, "lat", 48.8566, "service area centre latitude")
	flag.Float64Var(&cfg.CenterLng, "lng", 2.3522, "service area centre longitude")
	flag.Float64Var(&cfg.RadiusKm, "radius", 5, "service area radius in km")
	flag.DurationVar(&cfg.Interval, "interval", 10*time.Second, "rider state publish interval")
	flag.DurationVar(&cfg.OrderInterval, "order-interval", 5*time.Second, "order generation interval, 0 disables orders")
	flag.StringVar(&cfg.StatePrefix, "state-prefix", "riders", "rider state topic prefix")
	flag.StringVar(&cfg.RequestTopic, "request-topic", dispatchmqtt.DefaultRequestTopic, "dispatch request topic")
	flag.Float64Var(&cfg.DeclineRate, "decline-rate", 0.1, "probability a rider declines an assignment")
	flag.DurationVar(&cfg.ResponseLatency, "response-latency", time.Second, "delay before a rider answers")
	flag.StringVar(&cfg.AvailabilityFile, "availability-file", "", "hourly availability JSON")
	flag.StringVar(&cfg.SeedOut, "seed-out", "", "write the generated fleet as a rider seed file")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	return cfg
}

func writeSeed(path string, riders []SimulatedRider) error {
	data, err := json.MarshalIndent(Candidates(riders), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runFleet(ctx context.Context, riders []SimulatedRider, cfg Config, strat ResponseStrategy, book *OrderBook, gen *OrderGenerator, logg logger.Logger) {
	var wg sync.WaitGroup
	for i := range riders {
		r := &riders[i]
		r.Broker = cfg.Broker
		r.StatePrefix = cfg.StatePrefix
		r.RequestTopic = cfg.RequestTopic
		r.Interval = cfg.Interval
		r.Strategy = strat
		r.Book = book
		r.Logger = logg
		wg.Add(1)
		go func(r *SimulatedRider) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				logg.Errorf("%s: %v", r.ID, err)
			}
		}(r)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gen.Run(ctx); err != nil {
			logg.Errorf("order generator: %v", err)
		}
	}()
	wg.Wait()
}
