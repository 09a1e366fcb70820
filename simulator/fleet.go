package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/courierdispatch/core/geo"
	"github.com/kilianp07/courierdispatch/core/model"
)

var fleetRng = rand.New(rand.NewSource(time.Now().UnixNano()))

var vehicleMix = []model.VehicleType{
	model.VehicleBicycle,
	model.VehicleScooter,
	model.VehicleScooter,
	model.VehicleMotorcycle,
	model.VehicleCar,
}

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size         int
	Center       model.Location
	RadiusKm     float64
	Availability [24]float64
}

// GenerateFleet creates Size riders with IDs rider0001..riderNNNN spread
// uniformly over the disc of RadiusKm around Center.
func GenerateFleet(cfg FleetConfig) []SimulatedRider {
	if cfg.Size <= 0 {
		return nil
	}
	rs := make([]SimulatedRider, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		rs[i] = SimulatedRider{
			ID:           fmt.Sprintf("rider%04d", i+1),
			Vehicle:      vehicleMix[fleetRng.Intn(len(vehicleMix))],
			Rating:       math.Round((3.5+fleetRng.Float64()*1.5)*10) / 10,
			Location:     randomPoint(fleetRng, cfg.Center, cfg.RadiusKm),
			Availability: cfg.Availability,
		}
	}
	return rs
}

// randomPoint draws a point uniformly within radiusKm of center.
func randomPoint(r *rand.Rand, center model.Location, radiusKm float64) model.Location {
	d := radiusKm * math.Sqrt(r.Float64())
	return geo.Destination(center, d, r.Float64()*360)
}

// Candidates converts the fleet into store records so the dispatch
// service can be seeded with the same riders.
func Candidates(rs []SimulatedRider) []model.Candidate {
	out := make([]model.Candidate, 0, len(rs))
	now := time.Now().UTC()
	for i := range rs {
		r := &rs[i]
		loc := r.Location
		loc.UpdatedAt = now
		out = append(out, model.Candidate{
			Rider: model.Rider{
				ID:        r.ID,
				Active:    true,
				Available: true,
				Location:  &loc,
				Rating:    r.Rating,
				Vehicle:   &model.Vehicle{ID: "veh-" + r.ID, Type: r.Vehicle, Active: true, HasCapacity: true},
			},
			Shift: &model.Shift{ID: "shift-" + r.ID, RiderID: r.ID, Active: true},
		})
	}
	return out
}

// LoadAvailabilityProfile reads an hourly availability profile mapping
// "0".."23" to the probability a rider is available during that hour.
func LoadAvailabilityProfile(data []byte) ([24]float64, error) {
	var m map[string]float64
	var prof [24]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return prof, err
	}
	for h, v := range m {
		var hour int
		if _, err := fmt.Sscanf(h, "%d", &hour); err != nil {
			continue
		}
		if hour >= 0 && hour < 24 {
			prof[hour] = v
		}
	}
	return prof, nil
}

// FlatAvailability keeps every rider available all day.
func FlatAvailability() [24]float64 {
	var prof [24]float64
	for i := range prof {
		prof[i] = 1
	}
	return prof
}
