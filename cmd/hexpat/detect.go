package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/magic"
	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/provider"
)

func detectCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "detect",
		ShortUsage: "hexpat detect <data file> <pattern file>...",
		ShortHelp:  "List the pattern files whose magic signatures match the data",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) < 2 {
				return flag.ErrHelp
			}
			return runDetect(args[0], args[1:])
		},
	}
}

func runDetect(dataFile string, patternFiles []string) error {
	programs := make(map[string]*ast.Program, len(patternFiles))
	for _, path := range patternFiles {
		prog, err := parser.New().ParseFile(path)
		if err != nil {
			return err
		}
		programs[path] = prog
	}
	m, err := magic.Compile(programs)
	if err != nil {
		return err
	}
	log.Debug("compiled signatures", zap.Int("programs", m.Len()))

	src, err := provider.LoadFile(dataFile, provider.ReadOnly())
	if err != nil {
		return err
	}
	matched, err := m.MatchSource(src)
	if err != nil {
		return err
	}
	for _, name := range matched {
		fmt.Println(name)
	}
	return nil
}
