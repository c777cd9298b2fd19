package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jtarchie/scrub/redaction"
	"github.com/schollz/progressbar/v3"
)

type Redact struct {
	Matcher `embed:""`

	Paths    []string `arg:""                                                 help:"Files or doublestar globs to redact (reads stdin when empty)" optional:""`
	InPlace  bool     `help:"Rewrite files instead of printing them"          short:"i"                                                          xor:"output"`
	Diff     bool     `help:"Print a unified diff instead of the redacted text" short:"d"                                                        xor:"output"`
	Progress bool     `help:"Show a progress bar on stderr while processing files"`
}

func (c *Redact) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger, os.Stdin, os.Stdout)
}

// Execute redacts the configured inputs, reading stdin when no paths were
// given.
func (c *Redact) Execute(ctx context.Context, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	logger = logger.WithGroup("redact")

	if c.InPlace && len(c.Paths) == 0 {
		return fmt.Errorf("--in-place requires at least one path: %w", errNoPaths)
	}

	redactor, err := c.Redactor(ctx, logger)
	if err != nil {
		return err
	}

	if len(c.Paths) == 0 {
		contents, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}

		return c.emit(stdout, stdinPath, string(contents), redactor.Redact(string(contents)))
	}

	paths, err := expandPaths(c.Paths)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if c.Progress {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("redacting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var changed int

	for _, path := range paths {
		original, err := readInput(path)
		if err != nil {
			return err
		}

		redacted := redactor.Redact(original)
		if redacted != original {
			changed++
		}

		switch {
		case c.InPlace:
			if redacted != original {
				err = writeOutput(path, redacted)
				if err != nil {
					return err
				}

				logger.Info("file.redacted", "path", path)
			}
		default:
			err = c.emit(stdout, path, original, redacted)
			if err != nil {
				return err
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	logger.Info("redact.completed", "files", len(paths), "changed", changed)

	return nil
}

func (c *Redact) emit(stdout io.Writer, path string, original, redacted string) error {
	if !c.Diff {
		_, err := io.WriteString(stdout, redacted)
		if err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}

		return nil
	}

	diff, err := redaction.Diff(path, original, redacted)
	if err != nil {
		return fmt.Errorf("could not diff %q: %w", path, err)
	}

	_, err = io.WriteString(stdout, diff)
	if err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}

	return nil
}
