package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/app"
	"github.com/kilianp07/courierdispatch/config"
	"github.com/kilianp07/courierdispatch/core/model"
)

const seedRiders = `[
 {"rider": {"id": "near", "active": true, "available": true, "rating": 4.6,
            "location": {"lat": 48.8570, "lng": 2.3522},
            "vehicle": {"id": "v-near", "type": "scooter", "active": true, "has_capacity": true}},
  "shift": {"id": "s-near", "rider_id": "near", "active": true}},
 {"rider": {"id": "far", "active": true, "available": true, "rating": 4.9,
            "location": {"lat": 48.8900, "lng": 2.3522},
            "vehicle": {"id": "v-far", "type": "motorcycle", "active": true, "has_capacity": true}},
  "shift": {"id": "s-far", "rider_id": "far", "active": true}}
]`

// newConfig returns a configuration seeded with two riders north of the
// pickup point and a sqlite decision log in a temporary directory.
func newConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "riders.json")
	require.NoError(t, os.WriteFile(seed, []byte(seedRiders), 0o600))

	cfg := config.Default()
	cfg.Dispatch.Timezone = "UTC"
	cfg.Store.SeedFile = seed
	cfg.Logging.Backend = "sqlite"
	cfg.Logging.Path = filepath.Join(dir, "decisions.db")
	cfg.Logging.Level = "warn"
	return cfg
}

func newService(t *testing.T, cfg *config.Config, opts ...app.Option) *app.Service {
	t.Helper()
	svc, err := app.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func testOrder(id string) model.OrderAssignmentRequest {
	return model.OrderAssignmentRequest{
		OrderID:              id,
		Pickup:               model.Location{Lat: 48.8566, Lng: 2.3522},
		Delivery:             model.Location{Lat: 48.8600, Lng: 2.3600},
		Category:             model.CategoryFood,
		Priority:             model.PriorityMedium,
		EstimatedValue:       25,
		EstimatedDistanceKm:  1.2,
		EstimatedDurationMin: 15,
	}
}
