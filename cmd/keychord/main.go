// Package main is the entry point for keychord.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/dshills/keychord/internal/app"
	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/input/source"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownTimeout bounds the wait for running callbacks after a signal.
const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	if needsTerminal(opts) && !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: the terminal source needs an interactive terminal (use -source evdev or -source script)")
		return 1
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		sig, ok := <-signals
		if !ok {
			return
		}
		application.Logger().Info("signal received, stopping", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Shutdown(ctx); err != nil {
			application.Logger().Warn("callbacks still running at exit", "error", err)
		}
	}()

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// needsTerminal reports whether any monitor will read the terminal.
func needsTerminal(opts app.Options) bool {
	if opts.Source != "" {
		kind, err := source.ParseKind(opts.Source)
		return err == nil && kind == source.KindTerminal
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		// app.New reports the error.
		return false
	}
	for _, m := range cfg.Monitors {
		if kind, err := source.ParseKind(m.Source); err == nil && kind == source.KindTerminal {
			return true
		}
	}
	return false
}

func parseFlags() app.Options {
	var opts app.Options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (TOML or YAML)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogFormat, "log-format", "", "Log format (text, json)")
	flag.BoolVar(&opts.DisplayKeys, "display-keys", false, "Echo every recognized chord")
	flag.BoolVar(&opts.DisplayKeys, "d", false, "Echo every recognized chord (shorthand)")
	flag.StringVar(&opts.Source, "source", "", "Read keys from a single source (terminal, evdev, script)")
	flag.StringVar(&opts.Script, "script", "", "Replay file for -source script")
	flag.StringVar(&opts.Device, "device", "", "Input device for -source evdev (default: first keyboard)")
	flag.BoolVar(&opts.Watch, "watch", false, "Reload bindings when the configuration file changes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "keychord - run callbacks on keyboard chords\n\n")
		fmt.Fprintf(os.Stderr, "Usage: keychord [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  keychord -d                         Echo chords typed in this terminal\n")
		fmt.Fprintf(os.Stderr, "  keychord -c keychord.toml -watch    Run configured bindings, reload on change\n")
		fmt.Fprintf(os.Stderr, "  keychord -source evdev -d           Read the first keyboard device\n")
		fmt.Fprintf(os.Stderr, "  keychord -source script -script keys.yaml -d\n")
		fmt.Fprintf(os.Stderr, "\nPress ctrl+c to stop.\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("keychord %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log settings
	switch strings.ToLower(opts.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}
	switch strings.ToLower(opts.LogFormat) {
	case "", "text", "json":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log format %q (must be text or json)\n", opts.LogFormat)
		os.Exit(1)
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %s\n", strings.Join(flag.Args(), " "))
		os.Exit(1)
	}

	return opts
}
