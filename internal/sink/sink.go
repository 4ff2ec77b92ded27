// Package sink consumes the record stream produced by the pipeline.
//
// Every sink drains its source exactly once, pulling one record at a time.
// Cancellation is observed between records: a sink finishes the record in
// flight, flushes or commits whatever it accepted, and returns a nil error,
// because an interrupted run is a clean (if early) success.
package sink

import (
	"context"

	"xmlstream/internal/transformer"
)

// Source is a pull-based record sequence. Next returns io.EOF at the end of
// the sequence; any other error aborts the sink.
type Source interface {
	Next() (transformer.Record, error)
}

// Sink writes a record sequence to its destination and reports how many
// records it accepted.
type Sink interface {
	Write(ctx context.Context, src Source) (int64, error)
}
