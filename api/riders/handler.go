// Package riders exposes the rider pool as seen by the dispatcher.
package riders

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
)

// Status is the API view of one rider.
type Status struct {
	RiderID      string            `json:"rider_id"`
	Active       bool              `json:"active"`
	Available    bool              `json:"available"`
	OnShift      bool              `json:"on_shift"`
	ActiveOrders int               `json:"active_orders"`
	Rating       float64           `json:"rating"`
	VehicleType  model.VehicleType `json:"vehicle_type,omitempty"`
	Location     *model.Location   `json:"location,omitempty"`
	Version      int64             `json:"version"`
}

// NewStatusHandler returns an HTTP handler exposing rider status via
// GET /api/riders/status. The optional boolean filters available and
// on_shift narrow the list.
func NewStatusHandler(src store.SnapshotSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		available, err := boolFilter(r, "available")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		onShift, err := boolFilter(r, "on_shift")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cs, err := src.Candidates(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		entries := make([]Status, 0, len(cs))
		for _, c := range cs {
			if available != nil && c.Rider.Available != *available {
				continue
			}
			if onShift != nil && c.OnActiveShift() != *onShift {
				continue
			}
			entries = append(entries, toStatus(c))
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func boolFilter(r *http.Request, name string) (*bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func toStatus(c model.Candidate) Status {
	s := Status{
		RiderID:      c.Rider.ID,
		Active:       c.Rider.Active,
		Available:    c.Rider.Available,
		OnShift:      c.OnActiveShift(),
		ActiveOrders: c.ActiveOrders(),
		Rating:       c.Rider.Rating,
		Location:     c.Rider.Location,
		Version:      c.Rider.Version,
	}
	if c.Rider.Vehicle != nil {
		s.VehicleType = c.Rider.Vehicle.Type
	}
	return s
}
