package pattern

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PrintOptions controls Print.
type PrintOptions struct {
	// MaxEntries limits how many array entries are listed; zero lists all.
	MaxEntries int
}

// Print writes one line per pattern: name, type, range, size and value.
// Hidden and tree-hidden patterns are skipped; inline containers list their
// children in their place.
func Print(w io.Writer, t *Tree, opts PrintOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tRANGE\tSIZE\tVALUE")
	for _, p := range t.Roots() {
		printPattern(tw, t, p, 0, opts)
	}
	return tw.Flush()
}

func printPattern(w io.Writer, t *Tree, p Pattern, depth int, opts PrintOptions) {
	b := p.Common()
	if b.Visibility == Hidden || b.Visibility == TreeHidden {
		return
	}
	if !b.Inline {
		fmt.Fprintf(w, "%s%s\t%s\t0x%X-0x%X\t%d\t%s\n",
			strings.Repeat("  ", depth), b.Label(), b.TypeName, b.Offset, b.End(), b.Size, t.Format(p))
		depth++
	}

	if a, ok := p.(*StaticArray); ok {
		n := a.Count
		if opts.MaxEntries > 0 {
			n = min(n, uint64(opts.MaxEntries))
		}
		for i := range n {
			printPattern(w, t, a.Entry(i), depth, opts)
		}
		printRemainder(w, depth, a.Count-n)
		return
	}

	children := p.Children()
	shown := len(children)
	if _, ok := p.(*DynamicArray); ok && opts.MaxEntries > 0 {
		shown = min(shown, opts.MaxEntries)
	}
	for _, c := range children[:shown] {
		printPattern(w, t, c, depth, opts)
	}
	printRemainder(w, depth, uint64(len(children)-shown))
}

func printRemainder(w io.Writer, depth int, n uint64) {
	if n > 0 {
		fmt.Fprintf(w, "%s... %d more\t\t\t\t\n", strings.Repeat("  ", depth), n)
	}
}
