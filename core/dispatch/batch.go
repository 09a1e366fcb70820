package dispatch

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/core/metrics"
	"github.com/kilianp07/courierdispatch/core/model"
)

// BatchAssign resolves orders against a shared pool. Orders are processed
// by descending priority, keeping input order for equal priorities, and a
// rider assigned in this call is withheld from every later order. Each
// order's failure is reported in its outcome; only a done context stops
// the batch early, in which case the remaining orders are reported as
// cancelled and ctx.Err() is returned alongside the partial result.
func (e *Engine) BatchAssign(ctx context.Context, orders []model.OrderAssignmentRequest, pool []model.Candidate, crit model.AssignmentCriteria) (BatchAssignmentResult, error) {
	_, _, sink, _, clock := e.collaborators()
	start := time.Now()

	sorted := make([]model.OrderAssignmentRequest, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority.Rank() > sorted[j].Priority.Rank()
	})

	claimed := make(map[string]struct{})
	out := BatchAssignmentResult{Outcomes: make([]BatchOutcome, 0, len(sorted)), Total: len(sorted)}
	var winning []float64
	var ctxErr error

	for _, req := range sorted {
		o := BatchOutcome{OrderID: req.OrderID, Priority: req.Priority}
		if ctxErr != nil {
			o.Reason = ReasonCancelled
			out.Outcomes = append(out.Outcomes, o)
			continue
		}

		available := make([]model.Candidate, 0, len(pool))
		for _, c := range pool {
			if _, taken := claimed[c.Rider.ID]; !taken {
				available = append(available, c)
			}
		}

		res, err := e.assign(ctx, req, available, crit, audit{kind: logging.KindBatch})
		o.Result = res
		o.Reason = res.Reason
		if err != nil {
			o.Error = err.Error()
			if isContextErr(err) {
				ctxErr = err
			}
		}
		if res.Success {
			o.Success = true
			o.RiderID = res.AssignedRider
			o.Score = res.Score
			claimed[res.AssignedRider] = struct{}{}
			winning = append(winning, res.Score)
		}
		out.Outcomes = append(out.Outcomes, o)
	}

	out.Assigned = len(winning)
	out.Unassigned = out.Total - out.Assigned
	if out.Total > 0 {
		out.OptimizationScore = float64(out.Assigned) / float64(out.Total)
	}
	out.Scores = scoreStats(winning)
	batchScore.Set(out.OptimizationScore)

	e.logger.Infof("batch of %d orders: %d assigned, %d unassigned", out.Total, out.Assigned, out.Unassigned)
	if br, ok := sink.(metrics.BatchRecorder); ok {
		if err := br.RecordBatch(metrics.BatchRecord{
			Orders:            out.Total,
			Assigned:          out.Assigned,
			Unassigned:        out.Unassigned,
			OptimizationScore: out.OptimizationScore,
			MeanScore:         out.Scores.Mean,
			Duration:          time.Since(start),
			Time:              clock(),
		}); err != nil {
			e.logger.Errorf("metrics error: %v", err)
		}
	}
	return out, ctxErr
}

func scoreStats(xs []float64) ScoreStats {
	if len(xs) == 0 {
		return ScoreStats{}
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	s := ScoreStats{
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		if sd := stat.StdDev(sorted, nil); !math.IsNaN(sd) {
			s.StdDev = sd
		}
	}
	return s
}
