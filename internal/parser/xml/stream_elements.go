// Package xml implements the incremental, memory-bounded XML reader that
// surfaces record elements as they complete.
//
// The parser walks the token stream of encoding/xml with an explicit element
// stack. Subtrees are materialized only where a downstream consumer can see
// them: inside a record-tag match, or one element at a time when no filter is
// set. Emitted subtrees are detached from their ancestors immediately, so
// peak memory tracks document depth and the current record's size, never the
// total document size.
package xml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrMalformed wraps well-formedness violations reported in strict mode.
var ErrMalformed = errors.New("malformed xml")

// Attr is one attribute of an element, in document order.
type Attr struct {
	Name  string
	Value string
}

// Element is one completed XML subtree. It exists only between being
// returned from ElementStream.Next and the next call; consumers must not
// retain it.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
	Text     string // trimmed character data before the first child
}

// Attr returns the named attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Find returns the first direct child with the given tag, or nil.
func (e *Element) Find(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// FindAll returns all direct children with the given tag in document order.
func (e *Element) FindAll(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Options controls what Parse surfaces and how it treats bad input.
type Options struct {
	// RecordTag names the record-boundary element. Empty means every element
	// is a record (each emitted without its already-emitted descendants).
	RecordTag string

	// Lenient switches the decoder to best-effort mode: common malformations
	// are tolerated, and a residual hard syntax error ends the stream cleanly
	// after being reported through OnParseErr instead of failing the run.
	Lenient bool

	// OnParseErr is invoked with the input byte offset for problems that are
	// skipped rather than surfaced. May be nil.
	OnParseErr func(offset int64, err error)
}

// ElementStream is a pull-based sequence of completed elements.
// Next returns io.EOF at end of input and after cancellation.
type ElementStream struct {
	ctx   context.Context
	dec   *xml.Decoder
	opts  Options
	stack []frame
	done  bool
	err   error
}

type frame struct {
	name     string
	elem     *Element // nil when the subtree is not being captured
	text     strings.Builder
	sawChild bool
}

// Parse begins incremental parsing of r. The returned stream is not safe for
// concurrent use; the pipeline pulls from it on a single logical thread.
func Parse(ctx context.Context, r io.Reader, opts Options) *ElementStream {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	if opts.Lenient {
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}
	return &ElementStream{ctx: ctx, dec: dec, opts: opts}
}

// Next advances to the next completed record element.
//
// Invariants:
//   - elements are emitted in end-tag document order;
//   - an emitted element is detached from its ancestors, so no subtree is
//     traversed twice;
//   - on cancellation the stream ends before the next node, never yielding a
//     partial one.
func (s *ElementStream) Next() (*Element, error) {
	if s.done {
		return nil, s.endErr()
	}
	if err := s.ctx.Err(); err != nil {
		// Cooperative stop: end the sequence cleanly, no partial node.
		s.finish(nil)
		return nil, io.EOF
	}

	for {
		tok, err := s.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.finish(nil)
				return nil, io.EOF
			}
			if s.opts.Lenient {
				// Best effort: report, drop the partial subtree, end cleanly.
				if s.opts.OnParseErr != nil {
					s.opts.OnParseErr(s.dec.InputOffset(), err)
				}
				s.finish(nil)
				return nil, io.EOF
			}
			s.finish(fmt.Errorf("%w at byte %d: %v", ErrMalformed, s.dec.InputOffset(), err))
			return nil, s.err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			s.push(t)

		case xml.CharData:
			s.text(t)

		case xml.EndElement:
			if el := s.pop(t.Name.Local); el != nil {
				return el, nil
			}

		default:
			// Comments, directives and processing instructions carry no
			// record data.
		}
	}
}

func (s *ElementStream) push(t xml.StartElement) {
	capture := s.opts.RecordTag == "" ||
		t.Name.Local == s.opts.RecordTag ||
		s.inCaptureScope()

	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1].sawChild = true
	}

	f := frame{name: t.Name.Local}
	if capture {
		el := &Element{Tag: t.Name.Local}
		if len(t.Attr) > 0 {
			el.Attrs = make([]Attr, 0, len(t.Attr))
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					// Namespace declarations are not element data.
					continue
				}
				el.Attrs = append(el.Attrs, Attr{Name: attrName(a.Name), Value: a.Value})
			}
		}
		f.elem = el
	}
	s.stack = append(s.stack, f)
}

// attrName qualifies namespaced attributes so two attributes differing only
// in namespace cannot collide on one element.
func attrName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

func (s *ElementStream) text(t xml.CharData) {
	if len(s.stack) == 0 {
		return
	}
	top := &s.stack[len(s.stack)-1]
	if top.elem == nil || top.sawChild {
		return
	}
	top.text.Write(t)
}

// pop closes the named element and returns it when it is a record boundary.
// In lenient mode a stray end tag that matches nothing on the stack is
// dropped; a mismatched one closes intermediate frames without emitting them.
func (s *ElementStream) pop(name string) *Element {
	if len(s.stack) == 0 {
		return nil
	}
	if s.stack[len(s.stack)-1].name != name {
		if !s.stackContains(name) {
			return nil
		}
		for len(s.stack) > 0 && s.stack[len(s.stack)-1].name != name {
			s.closeTop(false)
		}
		if len(s.stack) == 0 {
			return nil
		}
	}
	return s.closeTop(true)
}

func (s *ElementStream) closeTop(mayEmit bool) *Element {
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	if top.elem == nil {
		return nil
	}
	top.elem.Text = strings.TrimSpace(top.text.String())

	emit := mayEmit &&
		(s.opts.RecordTag == "" || top.elem.Tag == s.opts.RecordTag)
	if emit {
		// Emission releases the subtree: it is never attached to a parent,
		// so ancestors cannot traverse it again.
		return top.elem
	}

	if len(s.stack) > 0 {
		if parent := s.stack[len(s.stack)-1].elem; parent != nil {
			parent.Children = append(parent.Children, top.elem)
		}
	}
	return nil
}

func (s *ElementStream) inCaptureScope() bool {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].elem != nil {
			return true
		}
	}
	return false
}

func (s *ElementStream) stackContains(name string) bool {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].name == name {
			return true
		}
	}
	return false
}

func (s *ElementStream) finish(err error) {
	s.done = true
	s.err = err
	s.stack = nil
}

func (s *ElementStream) endErr() error {
	if s.err != nil {
		return s.err
	}
	return io.EOF
}
