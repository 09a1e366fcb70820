// Package dispatch exposes the assignment decision log over HTTP.
package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
)

// NewLogHandler returns an HTTP handler exposing assignment decisions via
// GET /api/dispatch/decisions. Requests must include an Authorization
// header with "Bearer <token>" when token is non-empty.
//
// Supported filters: start and end (RFC3339), order_id, rider_id and kind
// (assign, reassign or batch).
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (logging.LogQuery, error) {
	v := r.URL.Query()
	q := logging.LogQuery{
		OrderID: v.Get("order_id"),
		RiderID: v.Get("rider_id"),
		Kind:    v.Get("kind"),
	}
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		s := v.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = t
	}
	switch q.Kind {
	case "", logging.KindAssign, logging.KindReassign, logging.KindBatch:
	default:
		return q, fmt.Errorf("unknown kind %q", q.Kind)
	}
	return q, nil
}
