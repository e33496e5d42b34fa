package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sansecio/hexpat/evaluator"
	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/provider"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file (profiles lexing, parsing and evaluation)")
	iterations = flag.Int("n", 100, "number of iterations")
	dataFile   = flag.String("data", "", "data file to evaluate the pattern against")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: parse-bench [flags] <pattern file>\n")
		os.Exit(1)
	}
	patternFile := flag.Arg(0)

	content, err := os.ReadFile(patternFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading pattern: %v\n", err)
		os.Exit(1)
	}
	source := string(content)

	var src *provider.Memory
	if *dataFile != "" {
		src, err = provider.LoadFile(*dataFile, provider.ReadOnly())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Benchmarking %s (%d bytes, %d iterations)\n\n", patternFile, len(content), *iterations)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating profile: %v\n", err)
			os.Exit(1)
		}
		pprof.StartCPUProfile(f)
	}

	var lexDuration, parseDuration, evalDuration time.Duration
	var tokens, patterns int
	for range *iterations {
		start := time.Now()
		toks, err := parser.Lex(patternFile, source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error lexing: %v\n", err)
			os.Exit(1)
		}
		lexDuration += time.Since(start)
		tokens = len(toks)

		start = time.Now()
		prog, err := parser.New().Parse(toks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing: %v\n", err)
			os.Exit(1)
		}
		parseDuration += time.Since(start)

		if src == nil {
			continue
		}
		start = time.Now()
		tree, err := evaluator.New(src).Evaluate(context.Background(), prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error evaluating: %v\n", err)
			os.Exit(1)
		}
		evalDuration += time.Since(start)
		patterns = tree.Len()
	}

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}

	n := time.Duration(max(*iterations, 1))
	fmt.Printf("tokens:   %d\n", tokens)
	fmt.Printf("lex:      %v/op\n", lexDuration/n)
	fmt.Printf("parse:    %v/op\n", parseDuration/n)
	if src != nil {
		fmt.Printf("patterns: %d\n", patterns)
		fmt.Printf("evaluate: %v/op\n", evalDuration/n)
	}
}
