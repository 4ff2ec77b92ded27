package config

import (
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	in := `{
  "job": "nmap_import",
  "source": {"kind": "file", "file": {"path": "scan.xml"}},
  "parser": {"mode": "nmap", "lenient": true},
  "sink": {"kind": "sqlite", "db": {"dsn": "scan.db", "table": "hosts", "batch_size": 200}}
}`
	p, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Job != "nmap_import" {
		t.Errorf("job=%q", p.Job)
	}
	if p.Source.Kind != "file" || p.Source.File == nil || p.Source.File.Path != "scan.xml" {
		t.Errorf("source=%+v", p.Source)
	}
	if p.Parser.Mode != "nmap" || !p.Parser.Lenient {
		t.Errorf("parser=%+v", p.Parser)
	}
	if p.Sink.DB == nil || p.Sink.DB.BatchSize != 200 {
		t.Errorf("sink=%+v", p.Sink)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := Decode(strings.NewReader(`{"jobb": "typo"}`)); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		p         Pipeline
		wantError bool
		wantPath  string
	}{
		{
			name: "empty config is runnable",
			p:    Pipeline{},
		},
		{
			name: "file source without path",
			p: Pipeline{
				Source: Source{Kind: "file"},
			},
			wantError: true,
			wantPath:  "source.file.path",
		},
		{
			name: "unknown source kind",
			p: Pipeline{
				Source: Source{Kind: "ftp"},
			},
			wantError: true,
			wantPath:  "source.kind",
		},
		{
			name: "unknown parser mode",
			p: Pipeline{
				Parser: Parser{Mode: "pcap"},
			},
			wantError: true,
			wantPath:  "parser.mode",
		},
		{
			name: "nmap mode with foreign record tag warns",
			p: Pipeline{
				Parser: Parser{Mode: "nmap", RecordTag: "port"},
			},
			wantPath: "parser.record_tag",
		},
		{
			name: "db sink without dsn",
			p: Pipeline{
				Sink: Sink{Kind: "postgres", DB: &DBSink{}},
			},
			wantError: true,
			wantPath:  "sink.db.dsn",
		},
		{
			name: "negative batch size",
			p: Pipeline{
				Sink: Sink{Kind: "sqlite", DB: &DBSink{DSN: "x.db", BatchSize: -1}},
			},
			wantError: true,
			wantPath:  "sink.db.batch_size",
		},
		{
			name: "unknown sink kind",
			p: Pipeline{
				Sink: Sink{Kind: "kafka"},
			},
			wantError: true,
			wantPath:  "sink.kind",
		},
		{
			name: "complete db config",
			p: Pipeline{
				Source: Source{Kind: "file", File: &FileSource{Path: "a.xml"}},
				Parser: Parser{Mode: "nmap"},
				Sink:   Sink{Kind: "mssql", DB: &DBSink{DSN: "sqlserver://..."}},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			issues := ValidatePipeline(tc.p)
			if got := HasError(issues); got != tc.wantError {
				t.Fatalf("HasError=%v, want %v (issues: %v)", got, tc.wantError, issues)
			}
			if tc.wantPath == "" {
				return
			}
			found := false
			for _, iss := range issues {
				if iss.Path == tc.wantPath {
					found = true
				}
			}
			if !found {
				t.Fatalf("no issue at path %q (issues: %v)", tc.wantPath, issues)
			}
		})
	}
}
