package dispatch

import (
	"errors"
	"fmt"
	"time"
	// Peak hours are evaluated in a configurable zone; embed the database
	// so minimal images can resolve it.
	_ "time/tzdata"
)

// HourRange is an inclusive range of wall-clock hours.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether hour lies in the range.
func (r HourRange) Contains(hour int) bool { return hour >= r.Start && hour <= r.End }

// ScoringWeights holds the tuning values of the scoring terms. Penalties
// are stored as positive magnitudes and subtracted by the scorer.
type ScoringWeights struct {
	Base float64 `json:"base"`

	DistanceMax   float64 `json:"distance_max"`
	DistancePerKm float64 `json:"distance_per_km"`

	RatingNeutral float64 `json:"rating_neutral"`
	RatingPerStar float64 `json:"rating_per_star"`

	CompletionRate   float64 `json:"completion_rate"`
	MetricsRating    float64 `json:"metrics_rating"`
	CancellationRate float64 `json:"cancellation_rate"`

	CategoryPreferred float64 `json:"category_preferred"`
	CategoryAccepted  float64 `json:"category_accepted"`
	CategoryAvoided   float64 `json:"category_avoided"`
	CategoryBlocked   float64 `json:"category_blocked"`

	PriorityMedium float64 `json:"priority_medium"`
	PriorityHigh   float64 `json:"priority_high"`
	PriorityUrgent float64 `json:"priority_urgent"`

	PreferredRider float64 `json:"preferred_rider"`

	IdleBonus         float64 `json:"idle_bonus"`
	OverloadPenalty   float64 `json:"overload_penalty"`
	OverloadThreshold int     `json:"overload_threshold"`

	PeakBonus float64     `json:"peak_bonus"`
	PeakHours []HourRange `json:"peak_hours"`
}

// DefaultScoringWeights returns the reference weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Base:              100,
		DistanceMax:       50,
		DistancePerKm:     2,
		RatingNeutral:     3,
		RatingPerStar:     10,
		CompletionRate:    20,
		MetricsRating:     5,
		CancellationRate:  30,
		CategoryPreferred: 15,
		CategoryAccepted:  5,
		CategoryAvoided:   10,
		CategoryBlocked:   50,
		PriorityMedium:    5,
		PriorityHigh:      10,
		PriorityUrgent:    20,
		PreferredRider:    25,
		IdleBonus:         10,
		OverloadPenalty:   15,
		OverloadThreshold: 3,
		PeakBonus:         5,
		PeakHours:         []HourRange{{Start: 11, End: 14}, {Start: 18, End: 21}},
	}
}

func (w ScoringWeights) isZero() bool {
	return w.Base == 0 && w.DistanceMax == 0 && w.DistancePerKm == 0 &&
		w.RatingPerStar == 0 && w.CompletionRate == 0 && w.CategoryPreferred == 0 &&
		w.PriorityUrgent == 0 && w.PreferredRider == 0 && w.IdleBonus == 0 &&
		w.OverloadThreshold == 0 && w.PeakBonus == 0 && len(w.PeakHours) == 0
}

// Validate rejects weights that would flip the direction of a term or the
// relative ordering of graded bonuses.
//
//gocyclo:ignore
func (w ScoringWeights) Validate() error {
	var errs []error
	nonNegative := map[string]float64{
		"base":               w.Base,
		"distance_max":       w.DistanceMax,
		"distance_per_km":    w.DistancePerKm,
		"rating_per_star":    w.RatingPerStar,
		"completion_rate":    w.CompletionRate,
		"metrics_rating":     w.MetricsRating,
		"cancellation_rate":  w.CancellationRate,
		"category_preferred": w.CategoryPreferred,
		"category_accepted":  w.CategoryAccepted,
		"category_avoided":   w.CategoryAvoided,
		"category_blocked":   w.CategoryBlocked,
		"priority_medium":    w.PriorityMedium,
		"preferred_rider":    w.PreferredRider,
		"idle_bonus":         w.IdleBonus,
		"overload_penalty":   w.OverloadPenalty,
		"peak_bonus":         w.PeakBonus,
	}
	for _, name := range sortedKeys(nonNegative) {
		if nonNegative[name] < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if w.RatingNeutral < 0 || w.RatingNeutral > 5 {
		errs = append(errs, fmt.Errorf("rating_neutral %v out of range [0,5]", w.RatingNeutral))
	}
	if w.CategoryPreferred < w.CategoryAccepted {
		errs = append(errs, errors.New("category_preferred must be >= category_accepted"))
	}
	if w.CategoryBlocked < w.CategoryAvoided {
		errs = append(errs, errors.New("category_blocked must be >= category_avoided"))
	}
	if w.PriorityHigh < w.PriorityMedium || w.PriorityUrgent < w.PriorityHigh {
		errs = append(errs, errors.New("priority bonuses must grow with priority"))
	}
	if w.OverloadThreshold < 1 {
		errs = append(errs, errors.New("overload_threshold must be at least 1"))
	}
	for _, r := range w.PeakHours {
		if r.Start < 0 || r.End > 23 || r.Start > r.End {
			errs = append(errs, fmt.Errorf("invalid peak hour range %d-%d", r.Start, r.End))
		}
	}
	return errors.Join(errs...)
}

// Config defines dispatch-related settings.
type Config struct {
	Scoring         ScoringWeights `json:"scoring"`
	AverageSpeedKmh float64        `json:"average_speed_kmh"`
	// Timezone used to evaluate peak hours, e.g. "Europe/Paris".
	Timezone      string `json:"timezone"`
	MaxAlternates int    `json:"max_alternates"`
	// MaxLocationAgeSeconds rejects stale rider positions when positive.
	MaxLocationAgeSeconds int  `json:"max_location_age_seconds"`
	BlockedIsHardReject   bool `json:"blocked_is_hard_reject"`

	UrgentDistanceFactor    float64 `json:"urgent_distance_factor"`
	UrgentDefaultDistanceKm float64 `json:"urgent_default_distance_km"`
	UrgentRatingRelief      float64 `json:"urgent_rating_relief"`

	// CommitAttempts bounds how many fresh snapshots the service tries
	// when every ranked rider lost its optimistic lock.
	CommitAttempts int `json:"commit_attempts"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults applies default values to zero fields.
func (c *Config) SetDefaults() {
	if c.Scoring.isZero() {
		c.Scoring = DefaultScoringWeights()
	}
	if c.AverageSpeedKmh <= 0 {
		c.AverageSpeedKmh = 25
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.MaxAlternates <= 0 {
		c.MaxAlternates = 5
	}
	if c.UrgentDistanceFactor <= 0 {
		c.UrgentDistanceFactor = 1.5
	}
	if c.UrgentDefaultDistanceKm <= 0 {
		c.UrgentDefaultDistanceKm = 10
	}
	if c.UrgentRatingRelief <= 0 {
		c.UrgentRatingRelief = 0.5
	}
	if c.CommitAttempts <= 0 {
		c.CommitAttempts = 3
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if c.MaxLocationAgeSeconds < 0 {
		errs = append(errs, errors.New("max_location_age_seconds must not be negative"))
	}
	if c.UrgentDistanceFactor < 1 {
		errs = append(errs, errors.New("urgent_distance_factor must be >= 1"))
	}
	return errors.Join(errs...)
}

// Location returns the time zone used for peak hours.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxLocationAge returns the freshness limit, zero when disabled.
func (c Config) MaxLocationAge() time.Duration {
	return time.Duration(c.MaxLocationAgeSeconds) * time.Second
}
