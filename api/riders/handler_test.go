package riders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/infra/store/memory"
)

func pool() *memory.Store {
	return memory.New(
		model.Candidate{
			Rider: model.Rider{ID: "r1", Active: true, Available: true, Rating: 4.8, Vehicle: &model.Vehicle{ID: "v1", Type: model.VehicleScooter}},
			Shift: &model.Shift{ID: "s1", RiderID: "r1", Active: true, ActiveOrders: 2},
		},
		model.Candidate{Rider: model.Rider{ID: "r2", Active: true, Available: false}},
	)
}

func list(t *testing.T, h http.Handler, url string) (int, []Status) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	var out []Status
	if rr.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	}
	return rr.Code, out
}

func TestStatusHandler(t *testing.T) {
	h := NewStatusHandler(pool())

	code, all := list(t, h, "/api/riders/status")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].RiderID)
	assert.Equal(t, 2, all[0].ActiveOrders)
	assert.True(t, all[0].OnShift)
	assert.Equal(t, model.VehicleScooter, all[0].VehicleType)
	assert.Equal(t, int64(1), all[0].Version)

	_, avail := list(t, h, "/api/riders/status?available=false")
	require.Len(t, avail, 1)
	assert.Equal(t, "r2", avail[0].RiderID)

	_, shift := list(t, h, "/api/riders/status?on_shift=true")
	require.Len(t, shift, 1)
	assert.Equal(t, "r1", shift[0].RiderID)

	code, _ = list(t, h, "/api/riders/status?available=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
}

type failingSource struct{}

func (failingSource) Candidates(context.Context) ([]model.Candidate, error) {
	return nil, errors.New("db down")
}

func TestStatusHandlerErrors(t *testing.T) {
	code, _ := list(t, NewStatusHandler(failingSource{}), "/api/riders/status")
	assert.Equal(t, http.StatusInternalServerError, code)

	rr := httptest.NewRecorder()
	NewStatusHandler(pool()).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/riders/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
