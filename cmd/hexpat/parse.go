package main

import (
	"context"
	"flag"
	"fmt"
	"maps"
	"slices"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/parser"
)

func parseCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "parse",
		ShortUsage: "hexpat parse <pattern file>...",
		ShortHelp:  "Parse pattern files and summarise their declarations",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return flag.ErrHelp
			}
			for _, path := range args {
				prog, err := parser.New().ParseFile(path)
				if err != nil {
					return err
				}
				printSummary(path, prog)
			}
			return nil
		},
	}
}

func printSummary(path string, prog *ast.Program) {
	fmt.Printf("%s: %d statements, %d types, %d functions\n",
		path, len(prog.Statements), len(prog.Types), len(prog.Functions))
	for _, p := range prog.Pragmas {
		fmt.Printf("  #pragma %s %s\n", p.Name, p.Value)
	}
	for _, name := range slices.Sorted(maps.Keys(prog.Types)) {
		t := prog.Types[name]
		kind := "type"
		switch t.Type.(type) {
		case *ast.Struct:
			kind = "struct"
		case *ast.Union:
			kind = "union"
		case *ast.Enum:
			kind = "enum"
		case *ast.Bitfield:
			kind = "bitfield"
		case nil:
			kind = "forward"
		}
		fmt.Printf("  %-8s %s\n", kind, name)
	}
	for _, name := range slices.Sorted(maps.Keys(prog.Functions)) {
		fmt.Printf("  fn       %s(%d)\n", name, len(prog.Functions[name].Params))
	}
}
