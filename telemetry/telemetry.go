// Package telemetry records hardware work done on behalf of a query or an
// update. Counters are fire-and-forget: they never fail and never block.
package telemetry

import (
	"fmt"
	"sync/atomic"
)

// Metric identifies a class of hardware work.
type Metric int

const (
	CPU Metric = iota
	VectorRead
	PayloadRead
	PayloadWrite
	IndexWrite

	numMetrics
)

func (m Metric) String() string {
	switch m {
	case CPU:
		return "cpu"
	case VectorRead:
		return "vector_read"
	case PayloadRead:
		return "payload_read"
	case PayloadWrite:
		return "payload_write"
	case IndexWrite:
		return "index_write"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// Metrics lists every metric in declaration order.
func Metrics() []Metric {
	out := make([]Metric, 0, numMetrics)
	for m := CPU; m < numMetrics; m++ {
		out = append(out, m)
	}
	return out
}

// Counter receives hardware measurements.
type Counter interface {
	Add(m Metric, n uint64)
}

type disposable struct{}

func (disposable) Add(Metric, uint64) {}

// Disposable returns a counter that drops every measurement.
func Disposable() Counter { return disposable{} }

// Accumulator sums measurements in memory. The zero value is ready to use
// and safe for concurrent use.
type Accumulator struct {
	values [numMetrics]atomic.Uint64
}

// Add implements Counter. Unknown metrics are ignored.
func (a *Accumulator) Add(m Metric, n uint64) {
	if m < 0 || m >= numMetrics {
		return
	}
	a.values[m].Add(n)
}

// Get returns the current value of m.
func (a *Accumulator) Get(m Metric) uint64 {
	if m < 0 || m >= numMetrics {
		return 0
	}
	return a.values[m].Load()
}

// Snapshot returns all current values keyed by metric.
func (a *Accumulator) Snapshot() map[Metric]uint64 {
	out := make(map[Metric]uint64, numMetrics)
	for m := CPU; m < numMetrics; m++ {
		out[m] = a.values[m].Load()
	}
	return out
}

// Tee returns a counter forwarding every measurement to all of cs.
// Nil counters are skipped.
func Tee(cs ...Counter) Counter {
	var out multi
	for _, c := range cs {
		if c != nil {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return disposable{}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type multi []Counter

func (m multi) Add(metric Metric, n uint64) {
	for _, c := range m {
		c.Add(metric, n)
	}
}
