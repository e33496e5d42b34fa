// Package magic selects the pattern programs that apply to a buffer using
// the byte signatures in their `#pragma magic` directives.
//
// A signature lists hex bytes and `??` wildcards in brackets, optionally
// followed by an offset:
//
//	#pragma magic [ 4D 5A ?? 00 ] @ 0x00
//
// Without an offset the signature may match anywhere in the buffer. A
// negative offset counts from the end of the buffer.
package magic

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	ahocorasick "github.com/pgavlin/aho-corasick"
	regexp "github.com/wasilibs/go-re2"
	"github.com/wasilibs/go-re2/experimental"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/provider"
)

type signatureGrammar struct {
	Tokens []*tokenGrammar `parser:"BytesOpen @@+ BytesClose"`
	At     *offsetGrammar  `parser:"( At @@ )?"`
}

type tokenGrammar struct {
	Byte     *string `parser:"( @HexByte"`
	Wildcard bool    `parser:"| @Wildcard )"`
}

type offsetGrammar struct {
	Negative bool   `parser:"@Minus?"`
	Value    string `parser:"@Int"`
}

var signatureParser = participle.MustBuild[signatureGrammar](
	participle.Lexer(lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Whitespace", Pattern: `\s+`},
			{Name: "BytesOpen", Pattern: `\[`, Action: lexer.Push("Bytes")},
			{Name: "At", Pattern: `@`},
			{Name: "Minus", Pattern: `-`},
			{Name: "Int", Pattern: `0[xX][0-9A-Fa-f']+|0[bB][01']+|0[oO][0-7']+|[0-9][0-9']*`},
		},
		"Bytes": {
			{Name: "Whitespace", Pattern: `\s+`},
			{Name: "HexByte", Pattern: `[0-9A-Fa-f]{2}`},
			{Name: "Wildcard", Pattern: `\?\?`},
			{Name: "BytesClose", Pattern: `\]`, Action: lexer.Pop()},
		},
	})),
	participle.Elide("Whitespace"),
)

// minAtomLength is the shortest literal run used to prefilter unanchored
// signatures. Shorter runs match too often to be worth it.
const minAtomLength = 3

// Signature is one compiled `#pragma magic` value.
type Signature struct {
	// Pattern is the RE2 expression matching the signature bytes.
	Pattern string
	// Offset is where the signature must start; see Anchored and FromEnd.
	Offset   uint64
	Anchored bool
	FromEnd  bool

	re *regexp.Regexp
	// atom is the longest run of literal bytes in the signature.
	atom []byte
}

// ParseSignature compiles a `#pragma magic` value.
func ParseSignature(s string) (*Signature, error) {
	g, err := signatureParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}

	sig := &Signature{Pattern: signatureRegex(g.Tokens), atom: longestLiteral(g.Tokens)}
	if g.At != nil {
		off, err := strconv.ParseUint(strings.ReplaceAll(g.At.Value, "'", ""), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q: %w", g.At.Value, err)
		}
		sig.Offset, sig.Anchored, sig.FromEnd = off, true, g.At.Negative
	}

	expr := "(?s)" + sig.Pattern
	if sig.Anchored {
		expr = `(?s)\A` + sig.Pattern
	}
	if sig.re, err = experimental.CompileLatin1(expr); err != nil {
		return nil, fmt.Errorf("compiling signature: %w", err)
	}
	return sig, nil
}

// signatureRegex turns signature tokens into a byte regex. Runs of wildcards
// are coalesced.
func signatureRegex(tokens []*tokenGrammar) string {
	var sb strings.Builder
	for i := 0; i < len(tokens); i++ {
		if t := tokens[i]; !t.Wildcard {
			b, _ := strconv.ParseUint(*t.Byte, 16, 8)
			fmt.Fprintf(&sb, "\\x%02x", b)
			continue
		}
		count := 1
		for i+count < len(tokens) && tokens[i+count].Wildcard {
			count++
		}
		if count == 1 {
			sb.WriteByte('.')
		} else {
			fmt.Fprintf(&sb, ".{%d}", count)
		}
		i += count - 1
	}
	return sb.String()
}

// longestLiteral returns the longest run of non-wildcard bytes, the first
// one on ties.
func longestLiteral(tokens []*tokenGrammar) []byte {
	var best, run []byte
	for _, t := range tokens {
		if t.Wildcard {
			run = nil
			continue
		}
		b, _ := strconv.ParseUint(*t.Byte, 16, 8)
		run = append(run, byte(b))
		if len(run) > len(best) {
			best = slices.Clone(run)
		}
	}
	return best
}

// Match reports whether buf carries the signature.
func (s *Signature) Match(buf []byte) bool {
	if !s.Anchored {
		return s.re.Match(buf)
	}
	start := s.Offset
	if s.FromEnd {
		if start > uint64(len(buf)) {
			return false
		}
		start = uint64(len(buf)) - start
	}
	if start > uint64(len(buf)) {
		return false
	}
	return s.re.Match(buf[start:])
}

// sigRef identifies signature j of program i.
type sigRef struct {
	program, signature int
}

// Matcher holds the signatures of a set of programs. Unanchored signatures
// with a long enough literal run are only confirmed with their regex after
// an Aho-Corasick pass finds that run in the buffer.
type Matcher struct {
	names      []string
	signatures [][]*Signature

	atoms    *ahocorasick.AhoCorasick
	atomRefs [][]sigRef
	// direct signatures are checked on every buffer.
	direct []sigRef
}

// Compile collects the magic signatures of programs, keyed by name. Programs
// without a signature never match. Invalid signatures are reported together.
func Compile(programs map[string]*ast.Program) (*Matcher, error) {
	m := &Matcher{}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(programs)) {
		var sigs []*Signature
		for _, p := range programs[name].Pragmas {
			if p.Name != "magic" {
				continue
			}
			sig, err := ParseSignature(p.Value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %s: %w", name, p.Loc, err))
				continue
			}
			sigs = append(sigs, sig)
		}
		if len(sigs) > 0 {
			m.names = append(m.names, name)
			m.signatures = append(m.signatures, sigs)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	m.buildAtoms()
	return m, nil
}

func (m *Matcher) buildAtoms() {
	var patterns [][]byte
	index := map[string]int{}
	for i, sigs := range m.signatures {
		for j, sig := range sigs {
			ref := sigRef{program: i, signature: j}
			if sig.Anchored || len(sig.atom) < minAtomLength {
				m.direct = append(m.direct, ref)
				continue
			}
			k, ok := index[string(sig.atom)]
			if !ok {
				k = len(patterns)
				index[string(sig.atom)] = k
				patterns = append(patterns, sig.atom)
				m.atomRefs = append(m.atomRefs, nil)
			}
			m.atomRefs[k] = append(m.atomRefs[k], ref)
		}
	}
	if len(patterns) > 0 {
		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{MatchKind: ahocorasick.StandardMatch})
		ac := builder.BuildByte(patterns)
		m.atoms = &ac
	}
}

// Len returns the number of programs with at least one signature.
func (m *Matcher) Len() int { return len(m.names) }

// Match returns the sorted names of the programs with a signature matching
// buf.
func (m *Matcher) Match(buf []byte) []string {
	hit := make([]bool, len(m.names))
	confirm := func(r sigRef) {
		if !hit[r.program] && m.signatures[r.program][r.signature].Match(buf) {
			hit[r.program] = true
		}
	}
	for _, r := range m.direct {
		confirm(r)
	}
	if m.atoms != nil {
		seen := make([]bool, len(m.atomRefs))
		iter := m.atoms.IterOverlappingByte(buf)
		for match := iter.Next(); match != nil; match = iter.Next() {
			k := match.Pattern()
			if seen[k] {
				continue
			}
			seen[k] = true
			for _, r := range m.atomRefs[k] {
				confirm(r)
			}
		}
	}

	var matched []string
	for i, ok := range hit {
		if ok {
			matched = append(matched, m.names[i])
		}
	}
	return matched
}

// MatchSource reads the whole source and matches it.
func (m *Matcher) MatchSource(src provider.ByteSource) ([]string, error) {
	buf := make([]byte, src.Size())
	if err := src.Read(src.BaseAddress()+src.PageAddress(), buf); err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return m.Match(buf), nil
}
