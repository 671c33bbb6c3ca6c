// Command nestsim runs the nest incubation simulation: the admin API server,
// world archive export and offline inspection of stored nests.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

// CLI is the command-line grammar.
type CLI struct {
	Config    string `short:"c" help:"Configuration file path; empty uses the built-in defaults" type:"path"`
	Verbose   bool   `short:"v" help:"Enable verbose logging"`
	LogFormat string `name:"log-format" help:"Log output format (text|json)" enum:"text,json" default:"text"`

	Serve   ServeCmd   `cmd:"" help:"Load nests and serve the admin API until interrupted"`
	Export  ExportCmd  `cmd:"" help:"Write every stored nest to the archive store"`
	Inspect InspectCmd `cmd:"" help:"List stored nests or describe one of them"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitCode lets kong's --help and usage errors end run without exiting
// the process.
type exitCode int

func run(args []string, stdout, stderr io.Writer) (code int) {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("nestsim"),
		kong.Description("Nest box egg incubation simulator."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}
	logger := newLogger(stderr, cli.Verbose, cli.LogFormat)
	slog.SetDefault(logger)

	if err := kctx.Run(&Global{Logger: logger, Stdout: stdout}, &cli); err != nil {
		logger.Error("Command failed", slog.String("command", kctx.Command()), slog.String("error", err.Error()))
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

func newLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// usageError marks failures caused by bad arguments rather than runtime
// faults.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }
