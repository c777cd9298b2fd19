// Package file is a keyword store kept in a plain YAML document:
//
//	sets:
//	  default:
//	    - hunter2
//	  customers:
//	    - ACME Corp
//
// Keywords are stored unencrypted, so the file should be protected like any
// other secret material.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/jtarchie/scrub/store"
	"github.com/samber/lo"
)

type document struct {
	Sets map[string][]string `yaml:"sets"`
}

type File struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

func init() {
	store.Register("file", New)
}

// New creates a store backed by the YAML file in the DSN "file://<path>".
// The file is created on the first write.
func New(dsn string, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := strings.TrimPrefix(dsn, "file://")
	if path == "" {
		return nil, fmt.Errorf("DSN must contain a path: got %q", dsn)
	}

	f := &File{
		path:   path,
		logger: logger.WithGroup("store.file"),
	}

	// fail early on an unreadable document
	_, err := f.read()
	if err != nil {
		return nil, err
	}

	f.logger.Info("store.file.initialized", "path", path)

	return f, nil
}

func (f *File) read() (*document, error) {
	doc := &document{Sets: map[string][]string{}}

	contents, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not read keyword file: %w", err)
	}

	err = yaml.UnmarshalWithOptions(contents, doc, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal keyword file %q: %w", f.path, err)
	}

	if doc.Sets == nil {
		doc.Sets = map[string][]string{}
	}

	return doc, nil
}

// write replaces the file atomically.
func (f *File) write(doc *document) error {
	for set, keywords := range doc.Sets {
		if len(keywords) == 0 {
			delete(doc.Sets, set)

			continue
		}

		slices.Sort(keywords)
		doc.Sets[set] = slices.Compact(keywords)
	}

	contents, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("could not marshal keyword file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".scrub-*")
	if err != nil {
		return fmt.Errorf("could not create temporary keyword file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, err = tmp.Write(contents)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("could not write keyword file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("could not close keyword file: %w", err)
	}

	err = os.Rename(tmp.Name(), f.path)
	if err != nil {
		return fmt.Errorf("could not replace keyword file: %w", err)
	}

	return nil
}

func (f *File) Add(_ context.Context, set string, keyword string) error {
	if keyword == "" {
		return store.ErrEmptyKeyword
	}

	set = store.SetName(set)

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}

	if slices.Contains(doc.Sets[set], keyword) {
		return nil
	}

	doc.Sets[set] = append(doc.Sets[set], keyword)

	err = f.write(doc)
	if err != nil {
		return err
	}

	f.logger.Info("keyword.added", "set", set)

	return nil
}

func (f *File) Remove(_ context.Context, set string, keyword string) error {
	set = store.SetName(set)

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}

	if !slices.Contains(doc.Sets[set], keyword) {
		return store.ErrNotFound
	}

	doc.Sets[set] = lo.Without(doc.Sets[set], keyword)

	err = f.write(doc)
	if err != nil {
		return err
	}

	f.logger.Info("keyword.removed", "set", set)

	return nil
}

func (f *File) List(_ context.Context, set string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	keywords := lo.Uniq(lo.Compact(doc.Sets[store.SetName(set)]))
	slices.Sort(keywords)

	return keywords, nil
}

func (f *File) Sets(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	sets := lo.Filter(lo.Keys(doc.Sets), func(set string, _ int) bool {
		return len(lo.Compact(doc.Sets[set])) > 0
	})
	slices.Sort(sets)

	return sets, nil
}

func (f *File) Close() error {
	return nil
}
