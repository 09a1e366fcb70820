package dispatch

import "errors"

// Failure reasons reported in AssignmentResult.Reason.
const (
	ReasonNoEligible         = "No eligible riders available"
	ReasonCancelled          = "assignment cancelled"
	ReasonAllocationConflict = "every ranked rider was claimed concurrently"
	ReasonInvalidRequest     = "invalid request"
	ReasonAllocationFailed   = "allocation failed"
)

// ErrAllocationConflict is returned when every ranked rider lost its
// optimistic lock. Callers should re-read the pool and try again.
var ErrAllocationConflict = errors.New("allocation conflict")
