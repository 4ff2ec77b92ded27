package sink

import (
	"context"
	"io"
	"strings"
	"testing"

	"xmlstream/internal/jsonval"
	"xmlstream/internal/transformer"
)

// sliceSource serves a fixed set of records, ending with io.EOF or an
// injected error.
type sliceSource struct {
	recs []transformer.Record
	err  error
	pos  int
}

func (s *sliceSource) Next() (transformer.Record, error) {
	if s.pos >= len(s.recs) {
		if s.err != nil {
			return transformer.Record{}, s.err
		}
		return transformer.Record{}, io.EOF
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

func rec(tag string, keyvals ...string) transformer.Record {
	obj := jsonval.NewObject()
	obj.Set(transformer.TagKey, jsonval.String(tag))
	for i := 0; i+1 < len(keyvals); i += 2 {
		obj.Set(keyvals[i], jsonval.String(keyvals[i+1]))
	}
	return transformer.Record{Tag: tag, Value: obj.Value()}
}

// countingWriter tracks Flush calls to verify per-record durability.
type countingWriter struct {
	strings.Builder
	flushes int
}

func (w *countingWriter) Flush() error {
	w.flushes++
	return nil
}

func TestJSONLCompact(t *testing.T) {
	t.Parallel()

	w := &countingWriter{}
	src := &sliceSource{recs: []transformer.Record{
		rec("host", "status", "up"),
		rec("host", "status", "down"),
	}}

	n, err := NewJSONL(w, false).Write(context.Background(), src)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 2 {
		t.Fatalf("n=%d, want 2", n)
	}

	lines := strings.Split(strings.TrimRight(w.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != `{"_tag":"host","status":"up"}` {
		t.Errorf("line[0]=%s", lines[0])
	}
	if w.flushes != 2 {
		t.Errorf("flushes=%d, want one per record", w.flushes)
	}
}

func TestJSONLPretty(t *testing.T) {
	t.Parallel()

	var w strings.Builder
	src := &sliceSource{recs: []transformer.Record{rec("a", "k", "v")}}

	if _, err := NewJSONL(&w, true).Write(context.Background(), src); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "{\n  \"_tag\": \"a\",\n  \"k\": \"v\"\n}\n"
	if w.String() != want {
		t.Errorf("got %q, want %q", w.String(), want)
	}
}

func TestJSONLSourceErrorPropagates(t *testing.T) {
	t.Parallel()

	var w strings.Builder
	src := &sliceSource{
		recs: []transformer.Record{rec("a")},
		err:  io.ErrUnexpectedEOF,
	}

	n, err := NewJSONL(&w, false).Write(context.Background(), src)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("err=%v, want ErrUnexpectedEOF", err)
	}
	if n != 1 {
		t.Fatalf("n=%d, want the record written before the failure", n)
	}
}
