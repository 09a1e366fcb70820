// Package monitoring forwards unexpected errors and panics to an error
// tracking backend.
package monitoring

import (
	"sync/atomic"
	"time"
)

// Monitor is an error tracking backend.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

// holder keeps atomic.Value's concrete type constant across Monitor
// implementations.
type holder struct{ Monitor }

var current atomic.Value

func init() { current.Store(holder{NopMonitor{}}) }

func active() Monitor { return current.Load().(holder).Monitor }

// Init installs m for the whole process. A nil m is ignored.
func Init(m Monitor) {
	if m != nil {
		current.Store(holder{m})
	}
}

// CaptureException reports err, if any, with tags.
func CaptureException(err error, tags map[string]string) {
	if err != nil {
		active().CaptureException(err, tags)
	}
}

// Recover reports a panic and re-panics. Defer it directly at the top of
// a goroutine.
func Recover() {
	if r := recover(); r != nil {
		m := active()
		m.CapturePanic(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

func Flush(d time.Duration) { active().Flush(d) }
