package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jtarchie/scrub/config"
	"github.com/jtarchie/scrub/redaction"
)

// Matcher holds the flags shared by every command that builds an automaton.
// Flags are layered on top of the optional config file.
type Matcher struct {
	Config        string   `env:"SCRUB_CONFIG"         help:"Path to a YAML config file"                          short:"c" type:"existingfile"`
	Keyword       []string `help:"Keyword to match (repeatable)"                                                short:"k"`
	KeywordFile   []string `env:"SCRUB_KEYWORD_FILES"  help:"Keyword list file or doublestar glob (repeatable)"  short:"f"`
	Store         string   `env:"SCRUB_STORE"          help:"Keyword store DSN (e.g., 'sqlite://keywords.db?key=passphrase')"`
	Set           []string `env:"SCRUB_SETS"           help:"Keyword store set to load (repeatable, defaults to 'default')"`
	CaseSensitive bool     `env:"SCRUB_CASE_SENSITIVE" help:"Match keywords case-sensitively"`
	Mask          string   `env:"SCRUB_MASK"           help:"Character written over redacted text (defaults to '*')"`
}

// Resolve returns the config file merged with the flags.
func (m *Matcher) Resolve() (*config.Config, error) {
	cfg := &config.Config{}

	if m.Config != "" {
		loaded, err := config.Load(m.Config)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	flags := config.Config{
		Mask:     m.Mask,
		Keywords: m.Keyword,
		Files:    m.KeywordFile,
		Store:    m.Store,
		Sets:     m.Set,
	}

	if m.CaseSensitive {
		disabled := false
		flags.CaseInsensitive = &disabled
	}

	cfg.Merge(flags)

	return cfg, nil
}

// Redactor builds a redactor from the resolved config.
func (m *Matcher) Redactor(ctx context.Context, logger *slog.Logger) (*redaction.Redactor, error) {
	cfg, err := m.Resolve()
	if err != nil {
		return nil, err
	}

	if cfg.Store != "" {
		logger.Debug("matcher.store", "dsn", redactURL(cfg.Store), "sets", cfg.Sets)
	}

	redactor, err := cfg.Build(ctx, logger)
	if err != nil {
		return nil, redactError(fmt.Errorf("could not build matcher: %w", err), cfg.Store)
	}

	return redactor, nil
}
