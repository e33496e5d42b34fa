package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sansecio/hexpat/parser"
)

func tokensCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "tokens",
		ShortUsage: "hexpat tokens <pattern file>",
		ShortHelp:  "Print the tokens of a pattern file",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			return runTokens(args[0])
		},
	}
}

func runTokens(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tokens, err := parser.Lex(path, string(content))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, tok := range tokens {
		fmt.Fprintf(tw, "%d:%d\t%s\t%s\n", tok.Loc.Line, tok.Loc.Column, tok.Kind, tok)
	}
	return tw.Flush()
}
