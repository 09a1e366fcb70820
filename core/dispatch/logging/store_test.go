package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(base time.Time) []LogRecord {
	return []LogRecord{
		{
			Timestamp: base,
			Kind:      KindAssign,
			OrderID:   "o1",
			Priority:  "high",
			Candidates: []Candidate{
				{RiderID: "r1", Eligible: true, Score: 150},
				{RiderID: "r2", Eligible: false, Reasons: []string{"rider is not available"}},
			},
			Result: Result{Success: true, AssignedRider: "r1", Score: 150},
		},
		{
			Timestamp:       base.Add(time.Minute),
			Kind:            KindReassign,
			OrderID:         "o1",
			PreviousRiderID: "r1",
			Urgency:         "high",
			Result:          Result{Success: true, AssignedRider: "r3", Alternates: []string{"r4"}},
		},
		{
			Timestamp: base.Add(2 * time.Minute),
			Kind:      KindBatch,
			OrderID:   "o2",
			Result:    Result{Success: false, Reason: "No eligible riders available"},
		},
	}
}

func TestStores_AppendQuery(t *testing.T) {
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	defer func() { _ = jsonl.Close() }()
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "decisions.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer func() { _ = sqlite.Close() }()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stores := map[string]LogStore{"jsonl": jsonl, "sqlite": sqlite}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range sampleRecords(base) {
				if err := store.Append(ctx, r); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			cases := []struct {
				name string
				q    LogQuery
				want int
			}{
				{"all", LogQuery{}, 3},
				{"by order", LogQuery{OrderID: "o1"}, 2},
				{"by kind", LogQuery{Kind: KindBatch}, 1},
				{"rider as candidate", LogQuery{RiderID: "r2"}, 1},
				{"rider as previous", LogQuery{RiderID: "r1"}, 2},
				{"rider as alternate", LogQuery{RiderID: "r4"}, 1},
				{"time range", LogQuery{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)}, 1},
			}
			for _, c := range cases {
				out, err := store.Query(ctx, c.q)
				if err != nil {
					t.Fatalf("%s: query: %v", c.name, err)
				}
				if len(out) != c.want {
					t.Errorf("%s: expected %d records got %d", c.name, c.want, len(out))
				}
			}
		})
	}
}

func TestJSONLStore_AppendAfterClose(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "decisions.jsonl"))
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Append(context.Background(), LogRecord{OrderID: "o1"}); err == nil {
		t.Fatal("expected error appending to a closed store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRecordRiders(t *testing.T) {
	r := sampleRecords(time.Now())[1]
	r.Candidates = []Candidate{{RiderID: "r3"}, {RiderID: "r5"}}
	got := r.riders()
	want := []string{"r3", "r1", "r4", "r5"}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}
}
