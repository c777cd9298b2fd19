package redaction

import (
	"github.com/jtarchie/scrub/automaton"
)

// RedactValues masks every occurrence of the given values in text. Values are
// compared exactly; empty values are skipped. It builds a fresh automaton per
// call, so prefer a shared Redactor when the values are known up front.
func RedactValues(text string, values []string) string {
	if len(values) == 0 || text == "" {
		return text
	}

	matcher := automaton.New(automaton.WithCaseInsensitive(false))

	err := matcher.InsertAll(values...)
	if err != nil {
		return text
	}

	if matcher.Len() == 0 {
		return text
	}

	redactor, err := New(matcher)
	if err != nil {
		return text
	}

	return redactor.Redact(text)
}
