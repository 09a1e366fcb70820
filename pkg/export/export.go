// Package export writes decision log records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []logging.LogRecord) error {
	if recs == nil {
		recs = []logging.LogRecord{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(recs)
}

var csvHeader = []string{
	"timestamp", "kind", "order_id", "priority", "category", "previous_rider_id",
	"urgency", "success", "assigned_rider", "score", "eligible", "candidates", "alternates", "reason",
}

// WriteCSV writes one row per decision. Candidate details are reduced to
// counts; use WriteJSON for the full evaluation.
func WriteCSV(w io.Writer, recs []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		eligible := 0
		for _, c := range r.Candidates {
			if c.Eligible {
				eligible++
			}
		}
		reason := r.Result.Reason
		if r.Result.Error != "" {
			reason = r.Result.Error
		}
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Kind,
			r.OrderID,
			r.Priority,
			r.Category,
			r.PreviousRiderID,
			r.Urgency,
			strconv.FormatBool(r.Result.Success),
			r.Result.AssignedRider,
			strconv.FormatFloat(r.Result.Score, 'f', -1, 64),
			strconv.Itoa(eligible),
			strconv.Itoa(len(r.Candidates)),
			strings.Join(r.Result.Alternates, " "),
			reason,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches to WriteJSON or WriteCSV by format name.
func Write(w io.Writer, format string, recs []logging.LogRecord) error {
	switch strings.ToLower(format) {
	case "json":
		return WriteJSON(w, recs)
	case "csv":
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
