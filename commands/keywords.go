package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jtarchie/scrub/config"
	"github.com/jtarchie/scrub/store"
)

type Keywords struct {
	Add    KeywordsAdd    `cmd:"" help:"Add keywords to a set"`
	Remove KeywordsRemove `cmd:"" help:"Remove keywords from a set"`
	List   KeywordsList   `cmd:"" help:"List the keywords of a set"`
	Sets   KeywordsSets   `cmd:"" help:"List the non-empty sets"`
}

type StoreFlags struct {
	Store string `env:"SCRUB_STORE" help:"Keyword store DSN (e.g., 'sqlite://keywords.db?key=passphrase')" required:""`
}

func (f *StoreFlags) open(logger *slog.Logger) (store.Store, error) {
	logger.Debug("store.open", "dsn", redactURL(f.Store))

	client, err := store.GetFromDSN(f.Store, logger)
	if err != nil {
		return nil, redactError(fmt.Errorf("could not open keyword store: %w", err), f.Store)
	}

	return client, nil
}

type KeywordsAdd struct {
	StoreFlags `embed:""`

	Set      string   `default:"default"                               help:"Set to add to"                     short:"s"`
	File     []string `help:"Read keywords from a list file (repeatable)" short:"f"                               type:"existingfile"`
	Keywords []string `arg:""                                          help:"Keywords to add"                   optional:""`
}

func (c *KeywordsAdd) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger)
}

func (c *KeywordsAdd) Execute(ctx context.Context, logger *slog.Logger) error {
	logger = logger.WithGroup("keywords.add")

	keywords := c.Keywords

	for _, path := range c.File {
		list, err := config.ReadKeywordFile(path)
		if err != nil {
			return err
		}

		keywords = append(keywords, list...)
	}

	if len(keywords) == 0 {
		return fmt.Errorf("nothing to add: %w", store.ErrEmptyKeyword)
	}

	client, err := c.open(logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	for _, keyword := range keywords {
		err = client.Add(ctx, c.Set, keyword)
		if err != nil {
			return fmt.Errorf("could not add keyword: %w", err)
		}
	}

	logger.Info("keywords.added", "set", store.SetName(c.Set), "count", len(keywords))

	return nil
}

type KeywordsRemove struct {
	StoreFlags `embed:""`

	Set      string   `default:"default" help:"Set to remove from" short:"s"`
	Keywords []string `arg:""            help:"Keywords to remove"`
}

func (c *KeywordsRemove) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger)
}

func (c *KeywordsRemove) Execute(ctx context.Context, logger *slog.Logger) error {
	logger = logger.WithGroup("keywords.remove")

	client, err := c.open(logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	for _, keyword := range c.Keywords {
		err = client.Remove(ctx, c.Set, keyword)
		if err != nil {
			return fmt.Errorf("could not remove keyword: %w", err)
		}
	}

	logger.Info("keywords.removed", "set", store.SetName(c.Set), "count", len(c.Keywords))

	return nil
}

type KeywordsList struct {
	StoreFlags `embed:""`

	Set string `default:"default" help:"Set to list" short:"s"`
}

func (c *KeywordsList) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger, os.Stdout)
}

func (c *KeywordsList) Execute(ctx context.Context, logger *slog.Logger, stdout io.Writer) error {
	logger = logger.WithGroup("keywords.list")

	client, err := c.open(logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	keywords, err := client.List(ctx, c.Set)
	if err != nil {
		return fmt.Errorf("could not list keywords: %w", err)
	}

	for _, keyword := range keywords {
		_, err = fmt.Fprintln(stdout, keyword)
		if err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}
	}

	return nil
}

type KeywordsSets struct {
	StoreFlags `embed:""`
}

func (c *KeywordsSets) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger, os.Stdout)
}

func (c *KeywordsSets) Execute(ctx context.Context, logger *slog.Logger, stdout io.Writer) error {
	logger = logger.WithGroup("keywords.sets")

	client, err := c.open(logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	sets, err := client.Sets(ctx)
	if err != nil {
		return fmt.Errorf("could not list sets: %w", err)
	}

	for _, set := range sets {
		_, err = fmt.Fprintln(stdout, set)
		if err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}
	}

	return nil
}
