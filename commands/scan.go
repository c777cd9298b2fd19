package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"
	"github.com/jtarchie/scrub/automaton"
)

type Scan struct {
	Matcher `embed:""`

	Paths  []string `arg:""                 help:"Files or doublestar globs to scan (reads stdin when empty)" optional:""`
	Format string   `default:"text"         enum:"text,json,yaml"                                              help:"Output format (text, json, yaml)"`
	Filter string   `help:"Expression each match must satisfy, e.g. 'Keyword == \"hers\" && Start > 10'"`
}

// ScanResult is one reported match.
type ScanResult struct {
	Path    string `json:"path"    yaml:"path"`
	Start   int    `json:"start"   yaml:"start"`
	End     int    `json:"end"     yaml:"end"`
	Keyword string `json:"keyword" yaml:"keyword"`
}

// filterEnv is the environment visible to --filter expressions.
type filterEnv struct {
	Start   int
	End     int
	Keyword string
	Path    string
}

func (c *Scan) Run(logger *slog.Logger) error {
	return c.Execute(context.Background(), logger, os.Stdin, os.Stdout)
}

func (c *Scan) Execute(ctx context.Context, logger *slog.Logger, stdin io.Reader, stdout io.Writer) error {
	logger = logger.WithGroup("scan")

	var program *vm.Program

	if c.Filter != "" {
		var err error

		program, err = expr.Compile(c.Filter, expr.Env(filterEnv{}), expr.AsBool())
		if err != nil {
			return fmt.Errorf("could not compile filter: %w", err)
		}
	}

	redactor, err := c.Redactor(ctx, logger)
	if err != nil {
		return err
	}

	matcher := redactor.Matcher()
	results := []ScanResult{}

	collect := func(path string, text string) error {
		for _, match := range matcher.Scan(text) {
			keep, err := c.keep(program, path, match)
			if err != nil {
				return err
			}

			if keep {
				results = append(results, ScanResult{
					Path:    path,
					Start:   match.Start,
					End:     match.End,
					Keyword: match.Keyword,
				})
			}
		}

		return nil
	}

	if len(c.Paths) == 0 {
		contents, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}

		err = collect(stdinPath, string(contents))
		if err != nil {
			return err
		}
	} else {
		paths, err := expandPaths(c.Paths)
		if err != nil {
			return err
		}

		for _, path := range paths {
			contents, err := readInput(path)
			if err != nil {
				return err
			}

			err = collect(path, contents)
			if err != nil {
				return err
			}
		}
	}

	logger.Info("scan.completed", "matches", len(results))

	return c.write(stdout, results)
}

func (c *Scan) keep(program *vm.Program, path string, match automaton.Match) (bool, error) {
	if program == nil {
		return true, nil
	}

	output, err := expr.Run(program, filterEnv{
		Start:   match.Start,
		End:     match.End,
		Keyword: match.Keyword,
		Path:    path,
	})
	if err != nil {
		return false, fmt.Errorf("could not evaluate filter: %w", err)
	}

	keep, _ := output.(bool)

	return keep, nil
}

func (c *Scan) write(stdout io.Writer, results []ScanResult) error {
	switch c.Format {
	case "json":
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(results)
		if err != nil {
			return fmt.Errorf("could not encode JSON: %w", err)
		}
	case "yaml":
		contents, err := yaml.Marshal(results)
		if err != nil {
			return fmt.Errorf("could not encode YAML: %w", err)
		}

		_, err = stdout.Write(contents)
		if err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}
	default:
		for _, result := range results {
			_, err := fmt.Fprintf(stdout, "%s:%d:%d:%s\n", result.Path, result.Start, result.End, result.Keyword)
			if err != nil {
				return fmt.Errorf("could not write output: %w", err)
			}
		}
	}

	return nil
}
