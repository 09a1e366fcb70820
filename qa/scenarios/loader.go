// Package scenarios replays YAML dispatch scenarios against the engine
// backed by the in-memory rider store.
package scenarios

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/courierdispatch/core/geo"
	"github.com/kilianp07/courierdispatch/core/model"
)

// RiderDef describes a rider placed KmNorth of the origin.
type RiderDef struct {
	ID           string   `yaml:"id"`
	KmNorth      float64  `yaml:"km_north"`
	Rating       float64  `yaml:"rating"`
	Unavailable  bool     `yaml:"unavailable"`
	Vehicle      string   `yaml:"vehicle"`
	ActiveOrders int      `yaml:"active_orders"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

func (r RiderDef) ToModel() model.Candidate {
	vt := model.VehicleType(r.Vehicle)
	if vt == "" {
		vt = model.VehicleScooter
	}
	rating := r.Rating
	if rating == 0 {
		rating = 4.5
	}
	loc := model.Location{Lat: r.KmNorth / (geo.EarthRadiusKm * math.Pi / 180)}
	return model.Candidate{
		Rider: model.Rider{
			ID:           r.ID,
			Active:       true,
			Available:    !r.Unavailable,
			Location:     &loc,
			Rating:       rating,
			Vehicle:      &model.Vehicle{ID: "veh-" + r.ID, Type: vt, Active: true, HasCapacity: true},
			Capabilities: r.Capabilities,
		},
		Shift: &model.Shift{ID: "shift-" + r.ID, RiderID: r.ID, Active: true, ActiveOrders: r.ActiveOrders},
	}
}

// OrderDef describes an order picked up at the origin.
type OrderDef struct {
	ID           string   `yaml:"id"`
	Priority     string   `yaml:"priority"`
	Category     string   `yaml:"category"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

func (o OrderDef) ToModel() model.OrderAssignmentRequest {
	p := model.Priority(o.Priority)
	if p == "" {
		p = model.PriorityMedium
	}
	c := model.Category(o.Category)
	if c == "" {
		c = model.CategoryFood
	}
	return model.OrderAssignmentRequest{
		OrderID:              o.ID,
		Delivery:             model.Location{Lat: 0.01, Lng: 0.01},
		Category:             c,
		Priority:             p,
		EstimatedValue:       20,
		EstimatedDistanceKm:  1.5,
		EstimatedDurationMin: 20,
		RequiredCapabilities: o.Capabilities,
	}
}

// CriteriaDef overrides the default criteria.
type CriteriaDef struct {
	MaxDistanceKm *float64 `yaml:"max_distance_km"`
	MinRating     *float64 `yaml:"min_rating"`
	Vehicles      []string `yaml:"vehicles"`
	Exclude       []string `yaml:"exclude"`
	Preferred     []string `yaml:"preferred"`
}

func (c CriteriaDef) ToModel() model.AssignmentCriteria {
	crit := model.DefaultCriteria()
	crit.MaxDistanceKm = c.MaxDistanceKm
	crit.MinRating = c.MinRating
	for _, v := range c.Vehicles {
		crit.RequiredVehicleTypes = append(crit.RequiredVehicleTypes, model.VehicleType(v))
	}
	crit.ExcludeRiders = c.Exclude
	crit.PreferredRiders = c.Preferred
	return crit
}

// ReassignDef moves Order away from FailedRider after the assignments.
type ReassignDef struct {
	Order       string `yaml:"order"`
	FailedRider string `yaml:"failed_rider"`
	Reason      string `yaml:"reason"`
	Urgency     string `yaml:"urgency"`
}

// Expected lists the rider each order must end up with; an empty rider
// means the order stays unassigned.
type Expected struct {
	Riders map[string]string `yaml:"riders"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Riders      []RiderDef     `yaml:"riders"`
	Orders      []OrderDef     `yaml:"orders"`
	Batch       bool           `yaml:"batch"`
	Criteria    CriteriaDef    `yaml:"criteria"`
	FailClaims  map[string]int `yaml:"fail_claims,omitempty"`
	Reassign    []ReassignDef  `yaml:"reassign,omitempty"`
	Expected    Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
