package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/evaluator"
	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/pattern"
	"github.com/sansecio/hexpat/provider"
)

var evalArgs struct {
	endian       string
	patternLimit uint64
	arrayLimit   uint64
	depth        int
	base         uint64
	maxEntries   int
	jobs         int
	timeout      time.Duration
	defines      map[string]any
}

func evalCmd() *ffcli.Command {
	def := evaluator.DefaultConfig()
	evalArgs.defines = map[string]any{}

	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	fs.StringVar(&evalArgs.endian, "endian", "little", "default byte order (little, big)")
	fs.Uint64Var(&evalArgs.patternLimit, "pattern-limit", def.PatternLimit, "maximum number of patterns")
	fs.Uint64Var(&evalArgs.arrayLimit, "array-limit", def.ArrayLimit, "maximum array entries and loop iterations")
	fs.IntVar(&evalArgs.depth, "depth", def.RecursionDepth, "maximum nesting of types and function calls")
	fs.Uint64Var(&evalArgs.base, "base", 0, "base address of the data")
	fs.IntVar(&evalArgs.maxEntries, "max-entries", 16, "array entries to print; 0 prints all")
	fs.IntVar(&evalArgs.jobs, "j", runtime.GOMAXPROCS(0), "data files evaluated in parallel")
	fs.DurationVar(&evalArgs.timeout, "timeout", 0, "abort an evaluation after this long; 0 disables")
	fs.Func("D", "set an in variable, name=value (repeatable)", func(s string) error {
		name, v, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected name=value, got %q", s)
		}
		evalArgs.defines[name] = parseDefine(v)
		return nil
	})

	return &ffcli.Command{
		Name:       "eval",
		ShortUsage: "hexpat eval [flags] <pattern file> <data file>...",
		ShortHelp:  "Evaluate a pattern file against data files and print the pattern tree",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("HEXPAT")},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return flag.ErrHelp
			}
			return runEval(ctx, args[0], args[1:])
		},
	}
}

// parseDefine interprets a -D value as an integer, float, bool or string.
func parseDefine(v string) any {
	if i, err := strconv.ParseInt(v, 0, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(v, 0, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

func evalConfig() (evaluator.Config, error) {
	cfg := evaluator.Config{
		PatternLimit:       evalArgs.patternLimit,
		ArrayLimit:         evalArgs.arrayLimit,
		RecursionDepth:     evalArgs.depth,
		StringDisplayLimit: evaluator.DefaultConfig().StringDisplayLimit,
	}
	switch evalArgs.endian {
	case "little":
		cfg.DefaultEndian = binary.LittleEndian
	case "big":
		cfg.DefaultEndian = binary.BigEndian
	default:
		return cfg, fmt.Errorf("invalid endian %q", evalArgs.endian)
	}
	return cfg, nil
}

func runEval(ctx context.Context, patternFile string, dataFiles []string) error {
	cfg, err := evalConfig()
	if err != nil {
		return err
	}
	prog, err := parser.New().ParseFile(patternFile)
	if err != nil {
		return err
	}

	// Each file renders into its own buffer; output keeps argument order.
	outputs := make([]bytes.Buffer, len(dataFiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(evalArgs.jobs, 1))
	for i, path := range dataFiles {
		g.Go(func() error {
			if err := evalFile(ctx, &outputs[i], prog, cfg, path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	err = g.Wait()

	for i, path := range dataFiles {
		if outputs[i].Len() == 0 {
			continue
		}
		if len(dataFiles) > 1 {
			fmt.Printf("==> %s <==\n", path)
		}
		os.Stdout.Write(outputs[i].Bytes())
	}
	return err
}

func evalFile(ctx context.Context, w *bytes.Buffer, prog *ast.Program, cfg evaluator.Config, path string) error {
	src, err := provider.LoadFile(path, provider.WithBaseAddress(evalArgs.base), provider.ReadOnly())
	if err != nil {
		return err
	}
	if evalArgs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, evalArgs.timeout)
		defer cancel()
	}

	start := time.Now()
	e := evaluator.New(src,
		evaluator.WithConfig(cfg),
		evaluator.WithLogger(log.With(zap.String("file", path))),
		evaluator.WithInVariables(evalArgs.defines))
	tree, err := e.Evaluate(ctx, prog)
	for _, line := range e.Console() {
		fmt.Fprintf(w, "> %s\n", line)
	}
	if err != nil {
		return err
	}
	log.Debug("evaluated",
		zap.String("file", path),
		zap.Int("patterns", tree.Len()),
		zap.Duration("elapsed", time.Since(start)))

	if err := pattern.Print(w, tree, pattern.PrintOptions{MaxEntries: evalArgs.maxEntries}); err != nil {
		return err
	}
	out := e.OutVariables()
	for _, name := range slices.Sorted(maps.Keys(out)) {
		fmt.Fprintf(w, "out %s = %v\n", name, out[name])
	}
	return nil
}
