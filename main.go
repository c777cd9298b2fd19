package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/jtarchie/scrub/commands"
	_ "github.com/jtarchie/scrub/store/file"
	_ "github.com/jtarchie/scrub/store/memory"
	_ "github.com/jtarchie/scrub/store/sqlite"
	"github.com/lmittmann/tint"
)

type CLI struct {
	Redact   commands.Redact   `cmd:"" help:"Mask every keyword in files or stdin"`
	Scan     commands.Scan     `cmd:"" help:"Report every keyword occurrence"`
	Contains commands.Contains `cmd:"" help:"Exit non-zero unless a keyword occurs"`
	Keywords commands.Keywords `cmd:"" help:"Manage keywords in a store"`
	Server   commands.Server   `cmd:"" help:"Run the redaction API server"`

	LogLevel  slog.Level `default:"info"                                  help:"Set the log level (debug, info, warn, error)"`
	AddSource bool       `help:"Add source code location to log messages"`
	LogFormat string     `default:"text"                                  enum:"text,json"                                    help:"Set the log format (text, json)"`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("scrub"),
		kong.Description("Find and redact many keywords in one pass."),
	)

	if cli.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     cli.LogLevel,
			AddSource: cli.AddSource,
		})))
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:     cli.LogLevel,
			AddSource: cli.AddSource,
		})))
	}

	err := ctx.Run(slog.Default())
	ctx.FatalIfErrorf(err)
}
