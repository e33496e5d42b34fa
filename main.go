package main

import (
	"fmt"
	"os"

	"github.com/sansecio/hexpat/parser"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <pattern-file>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]

	p := parser.New()

	prog, err := p.ParseFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", filename, err)
		os.Exit(1)
	}

	// Print summary
	fmt.Printf("Parsed %d statements from %s\n", len(prog.Statements), filename)

	for name, t := range prog.Types {
		fmt.Printf("  - type %s (%s)\n", name, t.DisplayName())
	}
	for name, fn := range prog.Functions {
		fmt.Printf("  - fn %s (params: %d, statements: %d)\n", name, len(fn.Params), len(fn.Body))
	}
}
