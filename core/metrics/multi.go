package metrics

import "errors"

// MultiSink fans records out to multiple sinks. Every sink is attempted;
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordAssignment(recs []AssignmentRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordBatch forwards to sinks implementing BatchRecorder.
func (m *MultiSink) RecordBatch(rec BatchRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if br, ok := s.(BatchRecorder); ok {
			if err := br.RecordBatch(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordReassignment forwards to sinks implementing ReassignmentRecorder.
func (m *MultiSink) RecordReassignment(rec ReassignmentRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if rr, ok := s.(ReassignmentRecorder); ok {
			if err := rr.RecordReassignment(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordEvent forwards to sinks implementing EventRecorder.
func (m *MultiSink) RecordEvent(rec EventRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if er, ok := s.(EventRecorder); ok {
			if err := er.RecordEvent(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
