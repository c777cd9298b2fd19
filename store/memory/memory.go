// Package memory is an in-process keyword store. Nothing survives the
// process; it backs tests and servers that load keywords from flags.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jtarchie/scrub/store"
	"github.com/samber/lo"
)

type Memory struct {
	mu     sync.RWMutex
	sets   map[string]map[string]struct{}
	logger *slog.Logger
}

func init() {
	store.Register("memory", New)
}

// New creates an empty store. The DSN is "memory://".
func New(_ string, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return &Memory{
		sets:   map[string]map[string]struct{}{},
		logger: logger.WithGroup("store.memory"),
	}, nil
}

func (m *Memory) Add(_ context.Context, set string, keyword string) error {
	if keyword == "" {
		return store.ErrEmptyKeyword
	}

	set = store.SetName(set)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sets[set]; !ok {
		m.sets[set] = map[string]struct{}{}
	}

	m.sets[set][keyword] = struct{}{}
	m.logger.Debug("keyword.added", "set", set)

	return nil
}

func (m *Memory) Remove(_ context.Context, set string, keyword string) error {
	set = store.SetName(set)

	m.mu.Lock()
	defer m.mu.Unlock()

	keywords, ok := m.sets[set]
	if !ok {
		return store.ErrNotFound
	}

	if _, ok := keywords[keyword]; !ok {
		return store.ErrNotFound
	}

	delete(keywords, keyword)

	if len(keywords) == 0 {
		delete(m.sets, set)
	}

	m.logger.Debug("keyword.removed", "set", set)

	return nil
}

func (m *Memory) List(_ context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keywords := lo.Keys(m.sets[store.SetName(set)])
	slices.Sort(keywords)

	return keywords, nil
}

func (m *Memory) Sets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sets := lo.Keys(m.sets)
	slices.Sort(sets)

	return sets, nil
}

func (m *Memory) Close() error {
	return nil
}
