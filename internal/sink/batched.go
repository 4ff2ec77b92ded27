package sink

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"xmlstream/internal/metrics"
	"xmlstream/internal/sink/db"
)

// DefaultBatchSize matches the historical default of the converter.
const DefaultBatchSize = 500

// Batched accumulates records and commits them to a db.Repository one batch
// at a time. For M records and batch size B it performs exactly ceil(M/B)
// commits; a crash between commits loses at most the in-flight batch.
type Batched struct {
	repo  db.Repository
	table string
	size  int
}

// NewBatched wraps repo. A non-positive size falls back to
// DefaultBatchSize; an empty table falls back to "records".
func NewBatched(repo db.Repository, table string, size int) *Batched {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if table == "" {
		table = "records"
	}
	return &Batched{repo: repo, table: table, size: size}
}

// Write ensures the table exists, then drains src. The final partial batch
// is committed on exhaustion and on cancellation, so accepted records are
// never dropped.
func (s *Batched) Write(ctx context.Context, src Source) (int64, error) {
	if err := s.repo.EnsureTable(ctx, s.table); err != nil {
		return 0, err
	}

	// Commits run detached from cancellation: once a record is accepted
	// into the buffer it must reach the database even when the run is
	// interrupted, otherwise the final partial batch is silently lost.
	flushCtx := context.WithoutCancel(ctx)

	var written int64
	buf := make([]db.Row, 0, s.size)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		start := time.Now()
		n, err := s.repo.InsertRows(flushCtx, s.table, buf)
		if err != nil {
			return fmt.Errorf("batched sink: %w", err)
		}
		written += n
		buf = buf[:0]
		metrics.IncCounter(metrics.BatchesTotal, 1, nil)
		metrics.ObserveHistogram(metrics.SinkDurationSecondsH,
			time.Since(start).Seconds(), metrics.Labels{"sink": "db"})
		return nil
	}

	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Records already accepted into the buffer are complete; commit
			// them before surfacing the source failure.
			if ferr := flush(); ferr != nil {
				return written, ferr
			}
			return written, err
		}

		js, err := json.Marshal(rec.Value)
		if err != nil {
			return written, fmt.Errorf("batched sink: encode record: %w", err)
		}
		buf = append(buf, db.Row{Tag: rec.Tag, JSON: string(js)})
		metrics.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "db"})

		if len(buf) >= s.size {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

var _ Sink = (*Batched)(nil)
