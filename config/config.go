// Package config assembles a redactor from a YAML file, command line flags,
// keyword list files and keyword stores.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/jtarchie/scrub/automaton"
	"github.com/jtarchie/scrub/redaction"
	"github.com/jtarchie/scrub/store"
	"github.com/samber/lo"
)

// ErrNoFiles is returned when a keyword file pattern matches nothing.
var ErrNoFiles = errors.New("no keyword files matched")

type Config struct {
	// CaseInsensitive defaults to true when unset.
	CaseInsensitive *bool    `json:"case_insensitive,omitempty" yaml:"case_insensitive,omitempty"`
	Mask            string   `json:"mask,omitempty"             validate:"omitempty,len=1" yaml:"mask,omitempty"`
	Keywords        []string `json:"keywords,omitempty"         yaml:"keywords,omitempty"`
	Files           []string `json:"files,omitempty"            validate:"dive,required"   yaml:"files,omitempty"`
	Store           string   `json:"store,omitempty"            validate:"omitempty,contains=://" yaml:"store,omitempty"`
	Sets            []string `json:"sets,omitempty"             validate:"dive,required"   yaml:"sets,omitempty"`
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	var config Config

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	err = yaml.UnmarshalWithOptions(contents, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("could not validate config: %w", err)
	}

	return nil
}

// Merge layers other on top of c. Scalars set in other win; lists are
// appended.
func (c *Config) Merge(other Config) {
	if other.CaseInsensitive != nil {
		c.CaseInsensitive = other.CaseInsensitive
	}

	if other.Mask != "" {
		c.Mask = other.Mask
	}

	if other.Store != "" {
		c.Store = other.Store
	}

	c.Keywords = append(c.Keywords, other.Keywords...)
	c.Files = append(c.Files, other.Files...)
	c.Sets = append(c.Sets, other.Sets...)
}

// IsCaseInsensitive resolves the case folding setting.
func (c *Config) IsCaseInsensitive() bool {
	return c.CaseInsensitive == nil || *c.CaseInsensitive
}

// MaskRune resolves the mask character.
func (c *Config) MaskRune() rune {
	if c.Mask == "" {
		return redaction.DefaultMask
	}

	mask, _ := utf8.DecodeRuneInString(c.Mask)

	return mask
}

// LoadKeywords collects inline keywords, keyword files and store sets into a
// de-duplicated list.
func (c *Config) LoadKeywords(ctx context.Context, logger *slog.Logger) ([]string, error) {
	keywords := lo.Compact(c.Keywords)

	fromFiles, err := c.fileKeywords()
	if err != nil {
		return nil, err
	}

	fromStore, err := c.storeKeywords(ctx, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("keywords.loaded",
		"inline", len(keywords),
		"files", len(fromFiles),
		"store", len(fromStore),
	)

	keywords = append(keywords, fromFiles...)
	keywords = append(keywords, fromStore...)

	return lo.Uniq(keywords), nil
}

func (c *Config) fileKeywords() ([]string, error) {
	var keywords []string

	for _, pattern := range c.Files {
		paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("could not expand keyword file pattern %q: %w", pattern, err)
		}

		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoFiles, pattern)
		}

		for _, path := range paths {
			list, err := ReadKeywordFile(path)
			if err != nil {
				return nil, err
			}

			keywords = append(keywords, list...)
		}
	}

	return keywords, nil
}

func (c *Config) storeKeywords(ctx context.Context, logger *slog.Logger) ([]string, error) {
	if c.Store == "" {
		return nil, nil
	}

	client, err := store.GetFromDSN(c.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open keyword store: %w", err)
	}
	defer func() { _ = client.Close() }()

	keywords, err := store.LoadSets(ctx, client, c.Sets)
	if err != nil {
		return nil, fmt.Errorf("could not load keyword sets: %w", err)
	}

	return keywords, nil
}

// ReadKeywordFile reads one keyword per line. Blank lines and lines starting
// with '#' are skipped.
func ReadKeywordFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open keyword file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var keywords []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		keywords = append(keywords, line)
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("could not read keyword file %q: %w", path, err)
	}

	return keywords, nil
}

// Build loads the keywords and returns a redactor over a finalized automaton.
func (c *Config) Build(ctx context.Context, logger *slog.Logger) (*redaction.Redactor, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}

	keywords, err := c.LoadKeywords(ctx, logger)
	if err != nil {
		return nil, err
	}

	matcher := automaton.New(automaton.WithCaseInsensitive(c.IsCaseInsensitive()))

	err = matcher.InsertAll(keywords...)
	if err != nil {
		return nil, fmt.Errorf("could not insert keywords: %w", err)
	}

	matcher.Build()

	logger.Info("automaton.built",
		"keywords", matcher.Len(),
		"states", matcher.States(),
		"case_insensitive", matcher.CaseInsensitive(),
	)

	redactor, err := redaction.New(matcher, redaction.WithMask(c.MaskRune()))
	if err != nil {
		return nil, fmt.Errorf("could not create redactor: %w", err)
	}

	return redactor, nil
}
