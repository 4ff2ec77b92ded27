package metrics

import (
	"sync/atomic"
	"testing"
)

type recordingBackend struct {
	counts  atomic.Int64
	samples atomic.Int64
	flushes atomic.Int64
}

func (b *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	b.counts.Add(int64(delta))
}

func (b *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	b.samples.Add(1)
}

func (b *recordingBackend) Flush() error {
	b.flushes.Add(1)
	return nil
}

func TestSetBackendRoutesSamples(t *testing.T) {
	b := &recordingBackend{}
	SetBackend(b)
	defer SetBackend(nil)

	IncCounter(RecordsTotal, 3, Labels{"kind": "jsonl"})
	ObserveHistogram(SinkDurationSecondsH, 0.5, nil)
	if err := Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if got := b.counts.Load(); got != 3 {
		t.Errorf("counter=%d, want 3", got)
	}
	if got := b.samples.Load(); got != 1 {
		t.Errorf("samples=%d, want 1", got)
	}
	if got := b.flushes.Load(); got != 1 {
		t.Errorf("flushes=%d, want 1", got)
	}
}

func TestNopBackendIsSilent(t *testing.T) {
	SetBackend(nil)

	// Must not panic and Flush must succeed without a Flusher installed.
	IncCounter(BatchesTotal, 1, nil)
	ObserveHistogram(SinkDurationSecondsH, 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("flush on nop: %v", err)
	}
}
