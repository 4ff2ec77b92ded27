package config

import "fmt"

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path names the offending field in
// dotted JSON notation.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

var dbKinds = map[string]bool{
	"sqlite":   true,
	"postgres": true,
	"mssql":    true,
}

var fileKinds = map[string]bool{
	"jsonl":       true,
	"mongo-jsonl": true,
	"mysql-sql":   true,
}

// ValidatePipeline checks p and returns every issue found. Callers should
// refuse to run when any issue has SeverityError; warnings are advisory.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	switch p.Source.Kind {
	case "", "stdin":
		if p.Source.File != nil {
			warnf("source.file", "ignored for stdin source")
		}
	case "file":
		if p.Source.File == nil || p.Source.File.Path == "" {
			errf("source.file.path", "required for file source")
		}
	default:
		errf("source.kind", "unknown kind %q", p.Source.Kind)
	}

	switch p.Parser.Mode {
	case "", "generic":
	case "nmap":
		if p.Parser.RecordTag != "" && p.Parser.RecordTag != "host" {
			warnf("parser.record_tag", "nmap mode extracts %q elements, not %q",
				"host", p.Parser.RecordTag)
		}
	default:
		errf("parser.mode", "unknown mode %q", p.Parser.Mode)
	}

	switch kind := p.Sink.Kind; {
	case kind == "":
		// defaults to jsonl on stdout
	case fileKinds[kind]:
		if p.Sink.DB != nil {
			warnf("sink.db", "ignored for %s sink", kind)
		}
	case dbKinds[kind]:
		if p.Sink.DB == nil || p.Sink.DB.DSN == "" {
			errf("sink.db.dsn", "required for %s sink", kind)
		}
		if p.Sink.DB != nil && p.Sink.DB.BatchSize < 0 {
			errf("sink.db.batch_size", "must not be negative")
		}
		if p.Sink.File != nil {
			warnf("sink.file", "ignored for %s sink", kind)
		}
	default:
		errf("sink.kind", "unknown kind %q", p.Sink.Kind)
	}

	return issues
}

// HasError reports whether any issue is fatal.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
