// Command hexpat lexes, parses and evaluates pattern files against binary
// data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootArgs struct {
	logLevel string
	config   string
}

// log is set up once the root flags are parsed.
var log = zap.NewNop()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "hexpat: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("hexpat", flag.ExitOnError)
	fs.StringVar(&rootArgs.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.StringVar(&rootArgs.config, "config", "", "config file with one flag per line")

	root := &ffcli.Command{
		Name:       "hexpat",
		ShortUsage: "hexpat [flags] <command> [command flags]",
		ShortHelp:  "Inspect binary data with pattern files",
		LongHelp: `Flags may also be set through HEXPAT_* environment variables
(HEXPAT_LOG_LEVEL) or a plain config file given with -config.`,
		FlagSet: fs,
		Options: []ff.Option{
			ff.WithEnvVarPrefix("HEXPAT"),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
		},
		Subcommands: []*ffcli.Command{
			tokensCmd(),
			parseCmd(),
			evalCmd(),
			detectCmd(),
		},
		Exec: func(context.Context, []string) error { return flag.ErrHelp },
	}

	if err := root.Parse(args); err != nil {
		return err
	}
	l, err := newLogger(rootArgs.logLevel)
	if err != nil {
		return err
	}
	defer l.Sync()
	log = l
	return root.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
