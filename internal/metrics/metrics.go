// Package metrics is a minimal backend-agnostic metrics facade.
//
// The pipeline and sinks record counters and histograms through package-level
// functions; a process wires a concrete backend once at startup with
// SetBackend. The default backend is a nop, so instrumented code costs
// almost nothing when metrics are disabled.
package metrics

import "sync"

// Labels attaches dimensions to a metric sample.
type Labels map[string]string

// Backend receives metric samples. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer samples.
type Flusher interface {
	Flush() error
}

// Metric names emitted by the pipeline.
const (
	RecordsTotal         = "xmlstream_records_total"
	ParseErrorsTotal     = "xmlstream_parse_errors_total"
	BatchesTotal         = "xmlstream_batches_total"
	SinkDurationSecondsH = "xmlstream_sink_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	current Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Passing nil restores the nop.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		current = nopBackend{}
		return
	}
	current = b
}

func backend() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// IncCounter adds delta to a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	backend().IncCounter(name, delta, labels)
}

// ObserveHistogram records one histogram sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend if it buffers samples.
func Flush() error {
	if f, ok := backend().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
