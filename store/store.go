// Package store persists named sets of keywords to feed into an automaton.
// The automaton itself is never stored; it is rebuilt from the keyword sets
// each time a process starts.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
)

var (
	// ErrNotFound is returned when a keyword does not exist in a set.
	ErrNotFound = errors.New("keyword not found")
	// ErrEmptyKeyword is returned when adding an empty keyword.
	ErrEmptyKeyword = errors.New("keyword must not be empty")
)

// DefaultSet is used when no set name is given.
const DefaultSet = "default"

// Store is the interface for keyword storage backends.
// Backends that write to disk must not keep keywords readable at rest unless
// the DSN says otherwise.
type Store interface {
	// Add stores keyword in set. Adding an existing keyword is a no-op.
	Add(ctx context.Context, set string, keyword string) error

	// Remove deletes keyword from set.
	// Returns ErrNotFound if the keyword is not in the set.
	Remove(ctx context.Context, set string, keyword string) error

	// List returns the keywords of set in ascending order.
	// An unknown set is empty, not an error.
	List(ctx context.Context, set string) ([]string, error)

	// Sets returns the names of all non-empty sets in ascending order.
	Sets(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// InitFunc is the constructor function for a store backend.
type InitFunc func(dsn string, logger *slog.Logger) (Store, error)

var drivers = map[string]InitFunc{}

// Register adds a store backend by name.
// Called from init() in backend packages.
func Register(name string, init InitFunc) {
	drivers[name] = init
}

// New creates a new Store from the named backend and DSN.
func New(name string, dsn string, logger *slog.Logger) (Store, error) {
	init, ok := drivers[name]
	if !ok {
		available := make([]string, 0, len(drivers))
		for k := range drivers {
			available = append(available, k)
		}

		slices.Sort(available)

		return nil, fmt.Errorf("unknown store backend %q (available: %v): %w", name, available, errors.ErrUnsupported)
	}

	return init(dsn, logger)
}

// GetFromDSN extracts the backend name from the DSN scheme and creates a Store.
// The DSN format is "<backend>://<path>?<params>", e.g. "sqlite://keywords.db?key=passphrase".
func GetFromDSN(dsn string, logger *slog.Logger) (Store, error) {
	uri, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("could not parse store DSN: %w", err)
	}

	return New(uri.Scheme, dsn, logger)
}

// Each iterates over all registered backends.
func Each(f func(string, InitFunc)) {
	for name, init := range drivers {
		f(name, init)
	}
}

// SetName returns set, or DefaultSet when set is empty.
func SetName(set string) string {
	if set == "" {
		return DefaultSet
	}

	return set
}

// LoadSets returns the union of the keywords in every named set.
func LoadSets(ctx context.Context, s Store, sets []string) ([]string, error) {
	if len(sets) == 0 {
		sets = []string{DefaultSet}
	}

	var keywords []string

	for _, set := range sets {
		list, err := s.List(ctx, set)
		if err != nil {
			return nil, fmt.Errorf("could not list keyword set %q: %w", set, err)
		}

		keywords = append(keywords, list...)
	}

	slices.Sort(keywords)

	return slices.Compact(keywords), nil
}
