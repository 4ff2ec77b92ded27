// Package pipeline drives the parse→transform stage and exposes the result
// as a pull-based record sequence for the sinks.
package pipeline

import (
	"context"
	"fmt"
	"io"

	xmlparser "xmlstream/internal/parser/xml"
	"xmlstream/internal/transformer"
)

// Mode selects the transform applied to matched elements.
type Mode string

const (
	// ModeGeneric applies the structural element→JSON mapping to every
	// matched element.
	ModeGeneric Mode = "generic"
	// ModeNmap applies the host extraction to <host> elements; other matched
	// elements are skipped.
	ModeNmap Mode = "nmap"
)

// Options configures one streaming run.
type Options struct {
	// RecordTag delimits one record. Empty means every element in generic
	// mode; nmap mode defaults it to the host tag.
	RecordTag string

	Mode    Mode
	Lenient bool

	// OnParseErr receives skipped-fragment diagnostics in lenient mode.
	OnParseErr func(offset int64, err error)
}

// state tracks the pipeline lifecycle: records flow while running, draining
// lets sinks flush buffered work, closed is terminal.
type state uint8

const (
	stateInit state = iota
	stateRunning
	stateClosed
)

// RecordStream is the lazy record sequence handed to a sink. Next returns
// io.EOF on exhaustion and after cancellation; sink and parser errors
// surface as-is.
type RecordStream struct {
	elems *xmlparser.ElementStream
	mode  Mode
	st    state
}

// Stream starts a run over r. The context provides cooperative cancellation:
// it is checked between records, so an in-flight record always completes and
// partial records are never emitted.
func Stream(ctx context.Context, r io.Reader, opts Options) (*RecordStream, error) {
	switch opts.Mode {
	case ModeGeneric, ModeNmap:
	case "":
		opts.Mode = ModeGeneric
	default:
		return nil, fmt.Errorf("pipeline: unsupported mode %q", opts.Mode)
	}
	if opts.Mode == ModeNmap && opts.RecordTag == "" {
		opts.RecordTag = transformer.HostTag
	}

	elems := xmlparser.Parse(ctx, r, xmlparser.Options{
		RecordTag:  opts.RecordTag,
		Lenient:    opts.Lenient,
		OnParseErr: opts.OnParseErr,
	})
	return &RecordStream{elems: elems, mode: opts.Mode, st: stateInit}, nil
}

// Next pulls one element from the parser, transforms it and returns the
// record. Element subtrees are released as soon as the record is built.
func (s *RecordStream) Next() (transformer.Record, error) {
	if s.st == stateClosed {
		return transformer.Record{}, io.EOF
	}
	s.st = stateRunning

	for {
		el, err := s.elems.Next()
		if err != nil {
			s.st = stateClosed
			if err == io.EOF {
				return transformer.Record{}, io.EOF
			}
			return transformer.Record{}, err
		}

		switch s.mode {
		case ModeNmap:
			if el.Tag != transformer.HostTag {
				continue
			}
			return transformer.HostRecord(el), nil
		default:
			return transformer.GenericRecord(el), nil
		}
	}
}

// Closed reports whether the stream reached its terminal state.
func (s *RecordStream) Closed() bool { return s.st == stateClosed }
