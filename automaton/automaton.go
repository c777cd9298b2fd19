// Package automaton finds every occurrence of many keywords in a text in a
// single pass, using a trie with failure links (Aho-Corasick).
//
// Keywords are inserted first. The failure links are computed once, either by
// an explicit Build call or lazily by the first scan; after that the automaton
// is read-only and safe to share between goroutines.
package automaton

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/samber/lo"
)

var (
	// ErrInvalidArgument is returned when a required value is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFinalized is returned when a keyword is inserted after the failure
	// links were built.
	ErrFinalized = errors.New("automaton already built")
)

// Option configures an Automaton.
type Option func(*Automaton)

// WithCaseInsensitive folds keywords and scanned text to lower case before
// comparing them. Enabled by default.
func WithCaseInsensitive(enabled bool) Option {
	return func(a *Automaton) {
		a.caseInsensitive = enabled
	}
}

type Automaton struct {
	caseInsensitive bool

	mu       sync.Mutex
	built    atomic.Bool
	states   []state
	keywords map[string]struct{}
}

func New(opts ...Option) *Automaton {
	a := &Automaton{
		caseInsensitive: true,
		states:          []state{newState(true, 0)},
		keywords:        map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// CaseInsensitive reports whether the automaton folds case.
func (a *Automaton) CaseInsensitive() bool {
	return a.caseInsensitive
}

func (a *Automaton) fold(c rune) rune {
	if a.caseInsensitive {
		return unicode.ToLower(c)
	}

	return c
}

// Insert adds keyword to the trie. Empty keywords are ignored and inserting
// the same keyword twice has no further effect.
func (a *Automaton) Insert(keyword string) error {
	if keyword == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.built.Load() {
		return fmt.Errorf("could not insert keyword: %w", ErrFinalized)
	}

	current := rootState
	for _, c := range keyword {
		a.states, current = addOrGetChild(a.states, current, a.fold(c))
	}

	a.states[current].addEmit(keyword)
	a.keywords[keyword] = struct{}{}

	return nil
}

// InsertAll inserts every keyword, stopping at the first error.
func (a *Automaton) InsertAll(keywords ...string) error {
	for _, keyword := range keywords {
		err := a.Insert(keyword)
		if err != nil {
			return err
		}
	}

	return nil
}

// Built reports whether the failure links have been computed.
func (a *Automaton) Built() bool {
	return a.built.Load()
}

// Len returns the number of distinct keywords inserted.
func (a *Automaton) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.keywords)
}

// States returns the number of trie states, including the root.
func (a *Automaton) States() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.states)
}

// Keywords returns the inserted keywords in ascending order.
func (a *Automaton) Keywords() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	keywords := lo.Keys(a.keywords)
	slices.Sort(keywords)

	return keywords
}

// Build computes the failure links. It runs at most once; later calls return
// immediately.
//
// States are visited breadth first, so the failure target of a state is always
// shallower and has already inherited the emits of its own failure chain.
func (a *Automaton) Build() {
	if a.built.Load() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.built.Load() {
		return
	}

	queue := make([]stateID, 0, len(a.states))

	for _, child := range a.states[rootState].children() {
		a.states[child].fail = rootState
		queue = append(queue, child)
	}

	for head := 0; head < len(queue); head++ {
		current := queue[head]

		for _, c := range a.states[current].transitions() {
			target := a.states[current].next[c]
			queue = append(queue, target)

			// the root resolves every character, so this terminates
			trace := a.states[current].failure()
			next, ok := a.states[trace].transition(trace, c, false)

			for !ok {
				trace = a.states[trace].failure()
				next, ok = a.states[trace].transition(trace, c, false)
			}

			a.states[target].fail = next
			a.states[target].addEmits(a.states[next].emits)
		}
	}

	a.built.Store(true)
}

// step advances from current on c, following failure links on a miss.
func (a *Automaton) step(current stateID, c rune) stateID {
	for {
		next, ok := a.states[current].transition(current, c, false)
		if ok {
			return next
		}

		current = a.states[current].failure()
	}
}

// Scan returns every keyword occurrence in text, ordered by start then end.
// Positions are rune indices.
func (a *Automaton) Scan(text string) []Match {
	return a.ScanInto(text, nil)
}

// ScanInto behaves like Scan but appends into dst after truncating it, so a
// caller can reuse one buffer across scans.
func (a *Automaton) ScanInto(text string, dst []Match) []Match {
	a.Build()

	dst = dst[:0]
	current := rootState
	position := 0

	for _, c := range text {
		current = a.step(current, a.fold(c))

		for _, keyword := range a.states[current].emits {
			dst = append(dst, newMatch(position, keyword))
		}

		position++
	}

	slices.SortFunc(dst, CompareMatches)

	return dst
}

// ContainsAny reports whether any keyword occurs in text. It stops at the
// first occurrence.
func (a *Automaton) ContainsAny(text string) bool {
	a.Build()

	current := rootState

	for _, c := range text {
		current = a.step(current, a.fold(c))

		if len(a.states[current].emits) > 0 {
			return true
		}
	}

	return false
}
