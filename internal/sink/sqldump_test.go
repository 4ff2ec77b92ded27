package sink

import (
	"context"
	"io"
	"strings"
	"testing"

	"xmlstream/internal/transformer"
)

// unescapeSQLLiteral inverts escapeSQL the way a MySQL literal parser
// would: a backslash consumes the next byte verbatim.
func unescapeSQLLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func TestEscapeSQLRoundTrip(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		``,
		`plain`,
		`it's`,
		`path\to\file`,
		`mix '\' of \' both`,
		`trailing backslash \`,
		`{"k":"v\\'"}`,
	} {
		esc := escapeSQL(in)
		if strings.ContainsAny(strings.ReplaceAll(strings.ReplaceAll(esc, `\\`, ``), `\'`, ``), `'`) {
			t.Errorf("escapeSQL(%q) = %q leaves a bare quote", in, esc)
		}
		if got := unescapeSQLLiteral(esc); got != in {
			t.Errorf("round trip of %q: escaped %q, unescaped %q", in, esc, got)
		}
	}
}

func TestSQLDumpShape(t *testing.T) {
	t.Parallel()

	var w strings.Builder
	src := &sliceSource{recs: []transformer.Record{
		rec("host", "name", "o'brien"),
		rec("host", "name", "plain"),
	}}

	n, err := NewSQLDump(&w, "scan_hosts").Write(context.Background(), src)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 2 {
		t.Fatalf("n=%d, want 2", n)
	}

	out := w.String()
	if !strings.Contains(out, "CREATE TABLE IF NOT EXISTS `scan_hosts`") {
		t.Error("missing schema statement")
	}
	if !strings.HasSuffix(out, "SET FOREIGN_KEY_CHECKS=1;\n") {
		t.Error("missing footer")
	}
	if got := strings.Count(out, "INSERT INTO `scan_hosts`"); got != 2 {
		t.Errorf("got %d INSERT statements, want 2", got)
	}
	if !strings.Contains(out, `o\'brien`) {
		t.Error("quote in record value not escaped")
	}
	if !strings.Contains(out, "CAST('") {
		t.Error("json column not wrapped in CAST")
	}
}

func TestSQLDumpFooterOnSourceError(t *testing.T) {
	t.Parallel()

	var w strings.Builder
	src := &sliceSource{
		recs: []transformer.Record{rec("host", "name", "a")},
		err:  io.ErrUnexpectedEOF,
	}

	n, err := NewSQLDump(&w, "hosts").Write(context.Background(), src)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("err=%v, want the source error", err)
	}
	if n != 1 {
		t.Fatalf("n=%d, want the record written before the failure", n)
	}
	if !strings.HasSuffix(w.String(), "SET FOREIGN_KEY_CHECKS=1;\n") {
		t.Fatal("dump not closed with the footer on source error")
	}
}

func TestSQLDumpDefaultTable(t *testing.T) {
	t.Parallel()

	var w strings.Builder
	src := &sliceSource{}
	if _, err := NewSQLDump(&w, "").Write(context.Background(), src); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(w.String(), "`records`") {
		t.Error("empty table name should fall back to records")
	}
}
