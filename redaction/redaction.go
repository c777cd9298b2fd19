// Package redaction masks every keyword occurrence found by an automaton.
//
// Overlapping and adjacent matches are merged into one span before masking,
// so each covered character is replaced exactly once and the output keeps the
// character count of the input.
package redaction

import (
	"bytes"
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/jtarchie/scrub/automaton"
)

// DefaultMask replaces each redacted character.
const DefaultMask = '*'

const (
	// buffers for texts up to this many bytes are returned to the pool
	maxPooledText = 256
	// match buffers that grew past this are dropped instead of pooled
	maxPooledMatches = 64
)

// Option configures a Redactor.
type Option func(*Redactor)

// WithMask sets the character written over matched text.
func WithMask(mask rune) Option {
	return func(r *Redactor) {
		r.mask = mask
	}
}

// Redactor is safe for concurrent use once its automaton is no longer
// receiving inserts.
type Redactor struct {
	matcher *automaton.Automaton
	mask    rune

	matches sync.Pool
	buffers sync.Pool
}

func New(matcher *automaton.Automaton, opts ...Option) (*Redactor, error) {
	if matcher == nil {
		return nil, fmt.Errorf("redactor requires an automaton: %w", automaton.ErrInvalidArgument)
	}

	r := &Redactor{
		matcher: matcher,
		mask:    DefaultMask,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.mask == utf8.RuneError || !unicode.IsPrint(r.mask) {
		return nil, fmt.Errorf("mask %q is not printable: %w", r.mask, automaton.ErrInvalidArgument)
	}

	r.matches.New = func() any {
		buffer := make([]automaton.Match, 0, maxPooledMatches)

		return &buffer
	}
	r.buffers.New = func() any {
		return bytes.NewBuffer(make([]byte, 0, maxPooledText))
	}

	return r, nil
}

// Mask returns the masking character.
func (r *Redactor) Mask() rune {
	return r.mask
}

// Matcher returns the automaton the redactor scans with.
func (r *Redactor) Matcher() *automaton.Automaton {
	return r.matcher
}

// Spans returns the merged spans that Redact would mask, ordered by start.
func (r *Redactor) Spans(text string) []automaton.Interval {
	matches := r.acquireMatches()
	defer r.releaseMatches(matches)

	*matches = r.matcher.ScanInto(text, *matches)

	return Merge(*matches)
}

// Redact returns text with every matched character replaced by the mask.
// Text without matches is returned unchanged.
func (r *Redactor) Redact(text string) string {
	spans := r.Spans(text)
	if len(spans) == 0 {
		return text
	}

	buffer := r.acquireBuffer(len(text))
	defer r.releaseBuffer(buffer)

	w := &spanWriter{
		text:   text,
		buffer: buffer,
		mask:   r.mask,
	}

	for _, span := range spans {
		w.copyUntil(span.Start)
		w.maskThrough(span.End)
	}

	w.copyUntil(-1)

	return buffer.String()
}

// Merge collapses sorted matches into the spans they cover. Matches that
// overlap or touch the current span extend it.
func Merge(matches []automaton.Match) []automaton.Interval {
	if len(matches) == 0 {
		return nil
	}

	var spans []automaton.Interval

	current := matches[0].Interval

	for _, match := range matches[1:] {
		if match.Start <= current.End+1 {
			current.End = max(current.End, match.End)

			continue
		}

		spans = append(spans, current)
		current = match.Interval
	}

	return append(spans, current)
}

func (r *Redactor) acquireMatches() *[]automaton.Match {
	return r.matches.Get().(*[]automaton.Match) //nolint: forcetypeassert
}

func (r *Redactor) releaseMatches(matches *[]automaton.Match) {
	if cap(*matches) > maxPooledMatches {
		return
	}

	*matches = (*matches)[:0]
	r.matches.Put(matches)
}

func (r *Redactor) acquireBuffer(size int) *bytes.Buffer {
	if size > maxPooledText {
		return bytes.NewBuffer(make([]byte, 0, size))
	}

	buffer := r.buffers.Get().(*bytes.Buffer) //nolint: forcetypeassert
	buffer.Reset()

	return buffer
}

func (r *Redactor) releaseBuffer(buffer *bytes.Buffer) {
	if buffer.Cap() > maxPooledText {
		return
	}

	r.buffers.Put(buffer)
}

// spanWriter copies text into buffer rune by rune, tracking both the byte
// offset and the rune position that match spans refer to.
type spanWriter struct {
	text     string
	buffer   *bytes.Buffer
	mask     rune
	offset   int
	position int
}

// copyUntil copies untouched runes up to, not including, position end.
// A negative end copies the rest of the text.
func (w *spanWriter) copyUntil(end int) {
	start := w.offset

	for w.offset < len(w.text) && (end < 0 || w.position < end) {
		_, size := utf8.DecodeRuneInString(w.text[w.offset:])
		w.offset += size
		w.position++
	}

	w.buffer.WriteString(w.text[start:w.offset])
}

// maskThrough writes one mask rune for every rune up to and including end.
func (w *spanWriter) maskThrough(end int) {
	for w.offset < len(w.text) && w.position <= end {
		_, size := utf8.DecodeRuneInString(w.text[w.offset:])
		w.offset += size
		w.position++

		w.buffer.WriteRune(w.mask)
	}
}
