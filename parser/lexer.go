package parser

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sansecio/hexpat/ast"
)

// LexError reports malformed source text.
type LexError struct {
	Message string
	Loc     ast.Location
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Message)
}

// Rules are tried in order; the first match wins, so longer operators and the
// unterminated variants come after their well-formed counterparts.
var lexDef = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n\f\v]+`},
	{Name: "DocLineComment", Pattern: `///[^\n]*`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "DocBlockComment", Pattern: `/\*\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "UnterminatedComment", Pattern: `/\*(?s:.)*`},
	{Name: "Directive", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(?:[^"\\\n]|\\.)*"`},
	{Name: "UnterminatedString", Pattern: `"(?:[^"\\\n]|\\.)*`},
	{Name: "Char", Pattern: `'(?:[^'\\\n]|\\.)*'`},
	{Name: "UnterminatedChar", Pattern: `'(?:[^'\\\n]|\\.)*`},
	{Name: "HexNumber", Pattern: `0[xX][0-9a-zA-Z_']*`},
	{Name: "Number", Pattern: `[0-9](?:[eE][+-][0-9]|\.[0-9]|[0-9a-zA-Z_'])*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `::|<<|>>|<=|>=|==|!=|&&|\|\||\^\^|[-+*/%&|^~!<>=@$?:]`},
	{Name: "Separator", Pattern: `[(){}\[\],;.]`},
	{Name: "Invalid", Pattern: `.`},
})

var symbols = func() map[lexer.TokenType]string {
	m := make(map[lexer.TokenType]string)
	for name, typ := range lexDef.Symbols() {
		m[typ] = name
	}
	return m
}()

type tokenizer struct {
	name   string
	tokens []Token
	doc    []string
	errs   []error
}

// Lex converts source into a token stream terminated by an EndOfProgram
// token. All lexical errors are collected and returned joined; no tokens are
// returned in that case.
func Lex(name, source string) ([]Token, error) {
	source = strings.ReplaceAll(source, "\r\n", "\n")

	lex, err := lexDef.Lex(name, strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("creating lexer: %w", err)
	}

	t := &tokenizer{name: name}
	var last lexer.Position
	for {
		tok, err := lex.Next()
		if err != nil {
			t.errs = append(t.errs, &LexError{Message: err.Error(), Loc: t.loc(last, 0)})
			break
		}
		if tok.EOF() {
			last = tok.Pos
			break
		}
		last = tok.Pos
		t.convert(tok)
	}

	if len(t.errs) > 0 {
		return nil, errors.Join(t.errs...)
	}
	t.tokens = append(t.tokens, Token{Kind: KindEndOfProgram, Loc: t.loc(last, 0), Doc: t.takeDoc()})
	return t.tokens, nil
}

func (t *tokenizer) loc(pos lexer.Position, length int) ast.Location {
	return ast.Location{Source: t.name, Line: pos.Line, Column: pos.Column, Length: length}
}

func (t *tokenizer) errorf(tok lexer.Token, format string, args ...any) {
	t.errs = append(t.errs, &LexError{Message: fmt.Sprintf(format, args...), Loc: t.loc(tok.Pos, len(tok.Value))})
}

func (t *tokenizer) takeDoc() string {
	if len(t.doc) == 0 {
		return ""
	}
	doc := strings.Join(t.doc, "\n")
	t.doc = nil
	return doc
}

func (t *tokenizer) emit(tok lexer.Token, out Token) {
	out.Text = tok.Value
	out.Loc = t.loc(tok.Pos, len(tok.Value))
	out.Doc = t.takeDoc()
	t.tokens = append(t.tokens, out)
}

func (t *tokenizer) convert(tok lexer.Token) {
	switch symbols[tok.Type] {
	case "Whitespace", "LineComment", "BlockComment":

	case "DocLineComment":
		t.doc = append(t.doc, strings.TrimSpace(strings.TrimPrefix(tok.Value, "///")))

	case "DocBlockComment":
		body := strings.TrimSuffix(strings.TrimPrefix(tok.Value, "/**"), "*/")
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
			if line != "" {
				t.doc = append(t.doc, line)
			}
		}

	case "UnterminatedComment":
		t.errorf(tok, "unterminated block comment")

	case "Directive":
		body := strings.TrimSpace(strings.TrimPrefix(tok.Value, "#"))
		name, rest, _ := strings.Cut(body, " ")
		t.emit(tok, Token{Kind: KindDirective, Ident: name, Literal: ast.Constant{Kind: ast.ConstString, Str: strings.TrimSpace(rest)}})

	case "String":
		s, err := unescape(tok.Value[1 : len(tok.Value)-1])
		if err != nil {
			t.errorf(tok, "%v", err)
			return
		}
		t.emit(tok, Token{Kind: KindString, Literal: ast.Constant{Kind: ast.ConstString, Str: s}})

	case "UnterminatedString":
		t.errorf(tok, "unterminated string literal")

	case "Char":
		r, err := parseChar(tok.Value[1 : len(tok.Value)-1])
		if err != nil {
			t.errorf(tok, "%v", err)
			return
		}
		t.emit(tok, Token{Kind: KindInteger, Literal: ast.Constant{Kind: ast.ConstChar, Int: big.NewInt(int64(r))}})

	case "UnterminatedChar":
		t.errorf(tok, "unterminated character literal")

	case "HexNumber", "Number":
		c, ok := parseNumber(tok.Value)
		if !ok {
			t.errorf(tok, "malformed number %q", tok.Value)
			return
		}
		t.emit(tok, Token{Kind: KindInteger, Literal: c})

	case "Ident":
		t.emit(tok, identToken(tok.Value))

	case "Operator":
		t.emit(tok, Token{Kind: KindOperator, Operator: operators[tok.Value]})

	case "Separator":
		t.emit(tok, Token{Kind: KindSeparator, Separator: separators[tok.Value]})

	default:
		t.errorf(tok, "unexpected character %q", tok.Value)
	}
}

func identToken(word string) Token {
	if kw, ok := keywords[word]; ok {
		return Token{Kind: KindKeyword, Keyword: kw}
	}
	if vt, ok := ast.LookupValueType(word); ok {
		return Token{Kind: KindValueType, ValueType: vt}
	}
	switch word {
	case "true":
		return Token{Kind: KindInteger, Literal: ast.BoolConst(true)}
	case "false":
		return Token{Kind: KindInteger, Literal: ast.BoolConst(false)}
	case "sizeof", "addressof":
		return Token{Kind: KindOperator, Operator: operators[word]}
	}
	return Token{Kind: KindIdentifier, Ident: word}
}

// parseNumber parses integer and floating literals. Integers without a suffix
// are signed; a trailing u/U makes them unsigned. Floats may carry an f/d
// suffix.
func parseNumber(text string) (ast.Constant, bool) {
	s := strings.ReplaceAll(text, "'", "")
	if s == "" || strings.HasSuffix(text, "'") {
		return ast.Constant{}, false
	}

	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base, s = 16, s[2:]
		case 'b', 'B':
			base, s = 2, s[2:]
		case 'o', 'O':
			base, s = 8, s[2:]
		}
	}

	if base == 10 && strings.ContainsAny(s, ".eEfFdD") {
		f := strings.TrimRight(s, "fFdD")
		if len(s)-len(f) > 1 {
			return ast.Constant{}, false
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ast.Constant{}, false
		}
		return ast.Constant{Kind: ast.ConstFloat, Float: v}, true
	}

	kind := ast.ConstSigned
	if strings.HasSuffix(s, "u") || strings.HasSuffix(s, "U") {
		kind = ast.ConstUnsigned
		s = s[:len(s)-1]
	}
	if s == "" {
		return ast.Constant{}, false
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.BitLen() > 128 {
		return ast.Constant{}, false
	}
	if kind == ast.ConstSigned && v.BitLen() > 127 {
		kind = ast.ConstUnsigned
	}
	return ast.Constant{Kind: kind, Int: v}, true
}

func parseChar(body string) (rune, error) {
	s, err := unescape(body)
	if err != nil {
		return 0, err
	}
	if len(s) == 1 {
		return rune(s[0]), nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if s == "" || r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("invalid character literal '%s'", body)
	}
	return r, nil
}

// unescape resolves backslash escapes. \xNN yields a raw byte, \uNNNN the
// UTF-8 encoding of the code point.
func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New("invalid escape sequence at end of literal")
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\\', '"', '\'':
			b.WriteByte(s[i])
		case 'x':
			if i+3 > len(s) {
				return "", fmt.Errorf("invalid escape sequence \\x%s", s[i+1:])
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("invalid escape sequence \\x%s", s[i+1:i+3])
			}
			b.WriteByte(byte(v))
			i += 2
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("invalid escape sequence \\u%s", s[i+1:])
			}
			v, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("invalid escape sequence \\u%s", s[i+1:i+5])
			}
			b.WriteRune(rune(v))
			i += 4
		default:
			return "", fmt.Errorf("invalid escape sequence \\%c", s[i])
		}
	}
	return b.String(), nil
}
