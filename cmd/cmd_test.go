package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/dispatch"
	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
)

const ridersJSON = `[
 {"rider": {"id": "r1", "active": true, "available": true, "rating": 4.8,
            "location": {"lat": 0.005, "lng": 0},
            "vehicle": {"id": "v1", "type": "scooter", "active": true, "has_capacity": true}},
  "shift": {"id": "s1", "rider_id": "r1", "active": true}},
 {"rider": {"id": "r2", "active": true, "available": false, "rating": 4.9,
            "location": {"lat": 0.001, "lng": 0},
            "vehicle": {"id": "v2", "type": "bicycle", "active": true, "has_capacity": true}},
  "shift": {"id": "s2", "rider_id": "r2", "active": true}}
]`

const orderJSON = `{"order_id": "o1", "pickup": {"lat": 0, "lng": 0}, "delivery": {"lat": 0.01, "lng": 0},
 "category": "food", "priority": "high", "estimated_value": 20,
 "estimated_distance_km": 1, "estimated_duration_min": 15}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	return executeWith(t, "dispatch:\n  timezone: UTC\n", args...)
}

func executeWith(t *testing.T, config string, args ...string) ([]byte, error) {
	t.Helper()
	cfg := writeFixture(t, "config.yaml", config)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--config", cfg))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		cfgPath = "config.yaml"
		explain = false
		criteriaFile = ""
		exportOpts.format, exportOpts.start, exportOpts.order = "json", "", ""
	})
	err := rootCmd.Execute()
	return out.Bytes(), err
}

func TestAssignCommand(t *testing.T) {
	riders := writeFixture(t, "riders.json", ridersJSON)
	order := writeFixture(t, "order.json", orderJSON)

	out, err := execute(t, "assign", "--order", order, "--riders", riders)
	require.NoError(t, err)
	var res dispatch.AssignmentResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "r1", res.AssignedRider)
	assert.Equal(t, 1, res.EligibleCount)
	assert.Empty(t, res.Evaluations)
}

func TestAssignCommandExplain(t *testing.T) {
	riders := writeFixture(t, "riders.json", ridersJSON)
	order := writeFixture(t, "order.json", orderJSON)

	out, err := execute(t, "assign", "--order", order, "--riders", riders, "--explain")
	require.NoError(t, err)
	var res dispatch.AssignmentResult
	require.NoError(t, json.Unmarshal(out, &res))
	require.Len(t, res.Evaluations, 2)
	assert.Equal(t, "r2", res.Evaluations[1].RiderID)
	assert.False(t, res.Evaluations[1].Eligible)
	assert.NotEmpty(t, res.Evaluations[1].Reasons)
}

func TestBatchCommand(t *testing.T) {
	riders := writeFixture(t, "riders.json", ridersJSON)
	orders := writeFixture(t, "orders.json", "["+orderJSON+`,{"order_id": "o2", "pickup": {"lat": 0, "lng": 0},
 "delivery": {"lat": 0.01, "lng": 0}, "category": "food", "priority": "urgent", "estimated_value": 10,
 "estimated_distance_km": 1, "estimated_duration_min": 15}]`)

	out, err := execute(t, "batch", "--orders", orders, "--riders", riders)
	require.NoError(t, err)
	var res dispatch.BatchAssignmentResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Assigned)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "o2", res.Outcomes[0].OrderID)
	assert.True(t, res.Outcomes[0].Success)
}

func TestAssignCommandMissingFile(t *testing.T) {
	order := writeFixture(t, "order.json", orderJSON)
	_, err := execute(t, "assign", "--order", order, "--riders", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDecisionsExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	st, err := logging.NewJSONLStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.Append(ctx, logging.LogRecord{Kind: logging.KindAssign, OrderID: "o1", Result: logging.Result{Success: true, AssignedRider: "r1"}}))
	require.NoError(t, st.Append(ctx, logging.LogRecord{Kind: logging.KindAssign, OrderID: "o2"}))
	require.NoError(t, st.Close())

	out, err := executeWith(t, "logging:\n  backend: jsonl\n  path: "+path+"\n",
		"decisions", "export", "--format", "csv", "--order", "o1")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "o1", rows[1][2])
	assert.Equal(t, "r1", rows[1][8])
}

func TestDecisionsExportBadTime(t *testing.T) {
	_, err := execute(t, "decisions", "export", "--start", "yesterday")
	assert.ErrorContains(t, err, "--start")
}
