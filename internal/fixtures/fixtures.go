// Package fixtures reads rider and order lists from JSON files. Used for
// store seeding and by the offline CLI commands.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kilianp07/courierdispatch/core/model"
)

// LoadCandidates reads a JSON array of candidates from path.
func LoadCandidates(path string) ([]model.Candidate, error) {
	var cs []model.Candidate
	if err := readJSON(path, &cs); err != nil {
		return nil, err
	}
	for i, c := range cs {
		if c.Rider.ID == "" {
			return nil, fmt.Errorf("%s: candidate %d has no rider id", path, i)
		}
	}
	return cs, nil
}

// LoadOrder reads a single order from path.
func LoadOrder(path string) (model.OrderAssignmentRequest, error) {
	var o model.OrderAssignmentRequest
	err := readJSON(path, &o)
	return o, err
}

// LoadOrders reads a JSON array of orders from path.
func LoadOrders(path string) ([]model.OrderAssignmentRequest, error) {
	var orders []model.OrderAssignmentRequest
	err := readJSON(path, &orders)
	return orders, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadCriteria reads criteria from path. Fields absent from the file keep
// their model.DefaultCriteria values.
func LoadCriteria(path string) (model.AssignmentCriteria, error) {
	crit := model.DefaultCriteria()
	err := readJSON(path, &crit)
	return crit, err
}
