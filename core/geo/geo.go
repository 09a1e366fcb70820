// Package geo provides the great-circle distance and travel time estimates
// used by the dispatch engine.
package geo

import (
	"math"
	"time"

	"github.com/kilianp07/courierdispatch/core/model"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0
	// DefaultSpeedKmh is the average courier speed used for arrival estimates.
	DefaultSpeedKmh = 25.0
)

// DistanceKm returns the haversine distance between a and b in kilometres.
// Callers are expected to pass validated coordinates.
func DistanceKm(a, b model.Location) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// EstimatedArrival returns now plus the travel time for distanceKm at
// speedKmh. A non-positive speed falls back to DefaultSpeedKmh.
func EstimatedArrival(now time.Time, distanceKm, speedKmh float64) time.Time {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	hours := distanceKm / speedKmh
	return now.Add(time.Duration(hours * float64(time.Hour)))
}

// EstimatedCompletion returns arrival plus durationMinutes.
func EstimatedCompletion(arrival time.Time, durationMinutes float64) time.Time {
	return arrival.Add(time.Duration(durationMinutes * float64(time.Minute)))
}

// Destination returns the point reached from origin after distanceKm along
// the initial bearing, in degrees clockwise from north.
func Destination(origin model.Location, distanceKm, bearingDeg float64) model.Location {
	d := distanceKm / EarthRadiusKm
	brg := toRadians(bearingDeg)
	lat1 := toRadians(origin.Lat)
	lng1 := toRadians(origin.Lng)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lng2 := lng1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	lng := math.Mod(lng2*180/math.Pi+540, 360) - 180
	return model.Location{Lat: lat2 * 180 / math.Pi, Lng: lng}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
