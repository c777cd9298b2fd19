package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrNoMatch is returned by Contains when no input holds a keyword, so the
// process exits non-zero like grep.
var ErrNoMatch = errors.New("no keyword found")

type Contains struct {
	Matcher `embed:""`

	Paths []string `arg:"" help:"Files or doublestar globs to check (reads stdin when empty)" optional:""`
	Quiet bool     `help:"Do not print the paths that contain a keyword"                      short:"q"`
}

func (c *Contains) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger, os.Stdin, os.Stdout)
}

func (c *Contains) Execute(ctx context.Context, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	logger = logger.WithGroup("contains")

	redactor, err := c.Redactor(ctx, logger)
	if err != nil {
		return err
	}

	matcher := redactor.Matcher()

	if len(c.Paths) == 0 {
		contents, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}

		if !matcher.ContainsAny(string(contents)) {
			return ErrNoMatch
		}

		return c.report(stdout, stdinPath)
	}

	paths, err := expandPaths(c.Paths)
	if err != nil {
		return err
	}

	var found int

	for _, path := range paths {
		contents, err := readInput(path)
		if err != nil {
			return err
		}

		if !matcher.ContainsAny(contents) {
			continue
		}

		found++

		err = c.report(stdout, path)
		if err != nil {
			return err
		}
	}

	logger.Debug("contains.completed", "files", len(paths), "found", found)

	if found == 0 {
		return ErrNoMatch
	}

	return nil
}

func (c *Contains) report(stdout io.Writer, path string) error {
	if c.Quiet {
		return nil
	}

	_, err := fmt.Fprintln(stdout, path)
	if err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}

	return nil
}
