// Command xmlstream converts large XML documents into streams of JSON
// records. It reads a file or stdin, extracts one record per matched
// element, and writes JSON lines, a MySQL dump, or batches into a database.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/klauspost/pgzip"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"xmlstream/internal/config"
	"xmlstream/internal/metrics"
	"xmlstream/internal/metrics/datadog"
	"xmlstream/internal/pipeline"
	"xmlstream/internal/sink"
	"xmlstream/internal/sink/db"

	// register all database backends with the sink factory.
	_ "xmlstream/internal/sink/db/all"

	xmlparser "xmlstream/internal/parser/xml"
)

func main() {
	// SIGINT/SIGTERM cancel the context; the stream ends cleanly at the
	// next record boundary and sinks flush what they accepted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(runMain(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, appDeps{
		openFile:    func(path string) (io.ReadCloser, error) { return os.Open(path) },
		createFile:  func(path string) (io.WriteCloser, error) { return os.Create(path) },
		newRepo:     db.New,
		initMetrics: initMetrics,
		stdinIsTTY:  func() bool { return isatty.IsTerminal(os.Stdin.Fd()) },
	}))
}

// appDeps carries the side-effecting collaborators of runMain so tests can
// substitute fakes.
type appDeps struct {
	openFile    func(path string) (io.ReadCloser, error)
	createFile  func(path string) (io.WriteCloser, error)
	newRepo     func(ctx context.Context, cfg db.Config) (db.Repository, error)
	initMetrics func(ctx context.Context, jobName, backendName string) (func(), error)
	stdinIsTTY  func() bool
}

func runMain(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("xmlstream", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath    = fs.String("config", "", "pipeline config JSON path (flags override it)")
		validate   = fs.Bool("validate", false, "validate the configuration and exit")
		input      = fs.String("input", "", "input XML path; empty or - reads stdin (gzip detected)")
		output     = fs.String("output", "", "output path; empty or - writes stdout")
		format     = fs.String("format", "", "jsonl | mongo-jsonl | mysql-sql | sqlite | postgres | mssql (default jsonl)")
		mode       = fs.String("mode", "", "generic | nmap (default generic)")
		recordTag  = fs.String("record-tag", "", "record boundary element; empty emits every element in generic mode")
		pretty     = fs.Bool("pretty", false, "indent JSON output (jsonl formats only)")
		lenient    = fs.Bool("lenient", false, "tolerate malformed XML, reporting skipped fragments")
		dsn        = fs.String("db", "", "database DSN for sqlite/postgres/mssql formats")
		table      = fs.String("table", "", "destination table name (default records)")
		batch      = fs.Int("batch", 0, "rows per database transaction (default 500)")
		metricsFlg = fs.String("metrics-backend", "", "metrics backend: datadog or none (default none)")
		verbose    = fs.Bool("v", false, "enable verbose logs")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	var p config.Pipeline
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(stderr, "read config: %v\n", err)
			return 1
		}
		p = loaded
	}
	mergeFlags(&p, fs, *input, *output, *format, *mode, *recordTag, *pretty, *lenient, *dsn, *table, *batch)

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 2
	}
	if *validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	if p.Source.Kind != "file" && deps.stdinIsTTY != nil && deps.stdinIsTTY() {
		fmt.Fprintln(stderr, "reading XML from the terminal; pass -input or pipe a document")
	}

	cleanup, err := deps.initMetrics(ctx, jobName(p), metricsBackendName(*metricsFlg))
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	n, err := run(ctx, p, stdin, stdout, stderr, deps)
	if err != nil {
		warnf(stderr, "%v", err)
		if errors.Is(err, xmlparser.ErrMalformed) {
			return 2
		}
		return 1
	}
	if *verbose {
		log.Printf("wrote %d records", n)
	}
	return 0
}

// mergeFlags overlays explicitly-set flags onto the file config. A flag the
// user typed always wins; defaults never clobber file values.
func mergeFlags(p *config.Pipeline, fs *flag.FlagSet, input, output, format, mode, recordTag string, pretty, lenient bool, dsn, table string, batch int) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["input"] || p.Source.Kind == "" {
		if input == "" || input == "-" {
			p.Source = config.Source{Kind: "stdin"}
		} else {
			p.Source = config.Source{Kind: "file", File: &config.FileSource{Path: input}}
		}
	}
	if set["output"] && output != "" && output != "-" {
		p.Sink.File = &config.FileSink{Path: output}
	}
	if set["format"] {
		p.Sink.Kind = format
	}
	if set["mode"] {
		p.Parser.Mode = mode
	}
	if set["record-tag"] {
		p.Parser.RecordTag = recordTag
	}
	if set["pretty"] {
		p.Sink.Pretty = pretty
	}
	if set["lenient"] {
		p.Parser.Lenient = lenient
	}
	if set["db"] || set["table"] || set["batch"] {
		if p.Sink.DB == nil {
			p.Sink.DB = &config.DBSink{}
		}
		if set["db"] {
			p.Sink.DB.DSN = dsn
		}
		if set["table"] {
			p.Sink.DB.Table = table
		}
		if set["batch"] {
			p.Sink.DB.BatchSize = batch
		}
	}
}

func run(ctx context.Context, p config.Pipeline, stdin io.Reader, stdout, stderr io.Writer, deps appDeps) (int64, error) {
	in := stdin
	if p.Source.Kind == "file" {
		f, err := deps.openFile(p.Source.File.Path)
		if err != nil {
			return 0, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	r, err := maybeGunzip(in)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}

	stream, err := pipeline.Stream(ctx, r, pipeline.Options{
		RecordTag: p.Parser.RecordTag,
		Mode:      pipeline.Mode(p.Parser.Mode),
		Lenient:   p.Parser.Lenient,
		OnParseErr: func(offset int64, err error) {
			warnf(stderr, "parse error at byte %d: %v", offset, err)
			metrics.IncCounter(metrics.ParseErrorsTotal, 1, nil)
		},
	})
	if err != nil {
		return 0, err
	}

	snk, closeSink, err := buildSink(ctx, p, stdout, deps)
	if err != nil {
		return 0, err
	}
	defer closeSink()

	return snk.Write(ctx, stream)
}

// buildSink constructs the configured sink plus a cleanup that flushes and
// closes whatever the sink writes to.
func buildSink(ctx context.Context, p config.Pipeline, stdout io.Writer, deps appDeps) (sink.Sink, func(), error) {
	kind := p.Sink.Kind
	if kind == "" {
		kind = "jsonl"
	}
	table := "records"
	batchSize := 0
	if p.Sink.DB != nil {
		if p.Sink.DB.Table != "" {
			table = p.Sink.DB.Table
		}
		batchSize = p.Sink.DB.BatchSize
	}

	switch kind {
	case "sqlite", "postgres", "mssql":
		repo, err := deps.newRepo(ctx, db.Config{Kind: kind, DSN: p.Sink.DB.DSN, Table: table})
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", kind, err)
		}
		return sink.NewBatched(repo, table, batchSize), repo.Close, nil
	}

	w, closeOut, err := openOutput(p, stdout, deps)
	if err != nil {
		return nil, nil, err
	}
	switch kind {
	case "jsonl", "mongo-jsonl":
		return sink.NewJSONL(w, p.Sink.Pretty), closeOut, nil
	case "mysql-sql":
		return sink.NewSQLDump(w, table), closeOut, nil
	default:
		closeOut()
		return nil, nil, fmt.Errorf("unknown sink kind %q", kind)
	}
}

func openOutput(p config.Pipeline, stdout io.Writer, deps appDeps) (io.Writer, func(), error) {
	if p.Sink.File == nil || p.Sink.File.Path == "" {
		return stdout, func() {}, nil
	}
	f, err := deps.createFile(p.Sink.File.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	bw := bufio.NewWriter(f)
	return bw, func() {
		_ = bw.Flush()
		_ = f.Close()
	}, nil
}

// maybeGunzip sniffs the gzip magic so compressed scans work without a
// separate flag or a .gz extension check.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	magic, err := br.Peek(2)
	if err != nil {
		// Too short to be gzip; let the parser report the real problem.
		return br, nil
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip input: %w", err)
		}
		return zr, nil
	}
	return br, nil
}

func jobName(p config.Pipeline) string {
	if p.Job != "" {
		return p.Job
	}
	return "xmlstream"
}

// metricsBackendName resolves flag then env, defaulting to none.
func metricsBackendName(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv("METRICS_BACKEND")
}

// Seams for initMetrics tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (io.Closer, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b metrics.Backend) { metrics.SetBackend(b) }
	logPrintf         = log.Printf
)

// initMetrics wires the selected backend into the metrics package and
// returns the cleanup that flushes buffered series. The nop backend stays
// in place when metrics are disabled or the backend fails to start.
func initMetrics(ctx context.Context, jobName, backendName string) (func(), error) {
	switch backendName {
	case "", "none":
		return func() {}, nil

	case "datadog":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName: jobName,
			Tags:    datadog.ParseTagsCSV(os.Getenv("DD_TAGS")),
		})
		if err != nil {
			logPrintf("metrics: datadog init failed: %v; metrics disabled", err)
			return func() {}, nil
		}
		if mb, ok := b.(metrics.Backend); ok {
			setMetricsBackend(mb)
		}
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: close: %v", err)
			}
		}, nil

	default:
		return nil, fmt.Errorf("unknown metrics backend %q", backendName)
	}
}

var warnPrefix = color.New(color.FgYellow, color.Bold).Sprint("[!]")

// warnf prints a highlighted diagnostic, degrading gracefully on Windows
// consoles and non-TTY writers.
func warnf(w io.Writer, format string, a ...any) {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	fmt.Fprintf(w, "%s "+format+"\n", append([]any{warnPrefix}, a...)...)
}
