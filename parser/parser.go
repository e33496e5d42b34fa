// Package parser provides the lexer and the recursive-descent parser of the
// pattern language.
package parser

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/sansecio/hexpat/ast"
)

// Error is a syntax error. Parsing stops at the first one.
type Error struct {
	Message string
	Loc     ast.Location
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Message)
}

// Parser turns a token stream into an ast.Program. A Parser may be reused but
// not shared between goroutines.
type Parser struct {
	toks    []Token
	pos     int
	program *ast.Program

	// namespaces is a stack of fully qualified namespace paths; the last
	// entry is the namespace declarations are currently placed in.
	namespaces [][]string
}

// New creates a new parser.
func New() *Parser {
	return &Parser{}
}

// ParseString lexes and parses source. name is used in locations.
func (p *Parser) ParseString(name, source string) (*ast.Program, error) {
	tokens, err := Lex(name, source)
	if err != nil {
		return nil, err
	}
	return p.Parse(tokens)
}

// ParseFile lexes and parses the pattern file at path.
func (p *Parser) ParseFile(path string) (*ast.Program, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return p.ParseString(path, string(content))
}

// Parse builds the program for tokens. No partial program is returned on
// error.
func (p *Parser) Parse(tokens []Token) (*ast.Program, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != KindEndOfProgram {
		tokens = append(tokens[:len(tokens):len(tokens)], Token{Kind: KindEndOfProgram})
	}
	p.toks = tokens
	p.pos = 0
	p.namespaces = [][]string{nil}
	p.program = &ast.Program{
		Types:     make(map[string]*ast.TypeDecl),
		Functions: make(map[string]*ast.FunctionDefinition),
	}

	for !p.atEnd() {
		nodes, err := p.parseTopStatement()
		if err != nil {
			return nil, err
		}
		p.program.Statements = append(p.program.Statements, nodes...)
	}
	return p.program, nil
}

// Token cursor

func (p *Parser) peek() Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.peek().Kind == KindEndOfProgram
}

// matcher is a single-token predicate used by sequence and lookahead.
type matcher func(Token) bool

func sep(s Separator) matcher {
	return func(t Token) bool { return t.Kind == KindSeparator && t.Separator == s }
}

func op(o ast.Operator) matcher {
	return func(t Token) bool { return t.Kind == KindOperator && t.Operator == o }
}

func kw(k Keyword) matcher {
	return func(t Token) bool { return t.Kind == KindKeyword && t.Keyword == k }
}

func kind(k Kind) matcher {
	return func(t Token) bool { return t.Kind == k }
}

func not(m matcher) matcher {
	return func(t Token) bool { return !m(t) }
}

func anyOf(ms ...matcher) matcher {
	return func(t Token) bool {
		for _, m := range ms {
			if m(t) {
				return true
			}
		}
		return false
	}
}

// sequence consumes the upcoming tokens if all of ms match, otherwise it
// leaves the cursor where it was.
func (p *Parser) sequence(ms ...matcher) bool {
	save := p.pos
	for _, m := range ms {
		if !m(p.peek()) {
			p.pos = save
			return false
		}
		p.next()
	}
	return true
}

// lookahead reports whether the upcoming tokens match ms without consuming.
func (p *Parser) lookahead(ms ...matcher) bool {
	for i, m := range ms {
		if !m(p.peekN(i)) {
			return false
		}
	}
	return true
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...), Loc: tok.Loc}
}

func (p *Parser) expected(what string) error {
	tok := p.peek()
	return p.errorf(tok, "expected %s, got %s", what, tok)
}

func (p *Parser) expectSep(s Separator) (Token, error) {
	if !sep(s)(p.peek()) {
		return Token{}, p.expected(fmt.Sprintf("'%s'", s))
	}
	return p.next(), nil
}

func (p *Parser) expectOp(o ast.Operator) (Token, error) {
	if !op(o)(p.peek()) {
		return Token{}, p.expected(fmt.Sprintf("'%s'", o))
	}
	return p.next(), nil
}

func (p *Parser) expectIdent(what string) (Token, error) {
	if p.peek().Kind != KindIdentifier {
		return Token{}, p.expected(what)
	}
	return p.next(), nil
}

func (p *Parser) expectSemicolon() error {
	_, err := p.expectSep(SepSemicolon)
	return err
}

func at(tok Token) ast.Position {
	return ast.Position{Location: tok.Loc}
}

// Namespaces and the type table

func (p *Parser) currentNamespace() []string {
	return p.namespaces[len(p.namespaces)-1]
}

func (p *Parser) qualify(name string) string {
	ns := p.currentNamespace()
	if len(ns) == 0 {
		return name
	}
	return strings.Join(ns, "::") + "::" + name
}

// lookupType resolves name from the innermost namespace outwards.
func (p *Parser) lookupType(name string) (*ast.TypeDecl, bool) {
	ns := p.currentNamespace()
	for i := len(ns); i > 0; i-- {
		if d, ok := p.program.Types[strings.Join(ns[:i], "::")+"::"+name]; ok {
			return d, true
		}
	}
	d, ok := p.program.Types[name]
	return d, ok
}

// declareType returns the table entry for a type about to be defined. A
// pending forward declaration is reused so every earlier reference sees the
// completed body.
func (p *Parser) declareType(tok Token, name string) (*ast.TypeDecl, error) {
	qualified := p.qualify(name)
	if d, ok := p.program.Types[qualified]; ok {
		if !d.IsForward() {
			return nil, p.errorf(tok, "redefinition of type '%s'", qualified)
		}
		d.Position = at(tok)
		return d, nil
	}
	d := &ast.TypeDecl{Position: at(tok), Name: qualified, Forward: true}
	p.program.Types[qualified] = d
	return d, nil
}

func (p *Parser) parseQualifiedName() (Token, string, error) {
	first, err := p.expectIdent("identifier")
	if err != nil {
		return Token{}, "", err
	}
	parts := []string{first.Ident}
	for p.lookahead(op(ast.OpScope), kind(KindIdentifier)) {
		p.next()
		parts = append(parts, p.next().Ident)
	}
	return first, strings.Join(parts, "::"), nil
}

// Top level

func (p *Parser) parseTopStatement() ([]ast.Node, error) {
	tok := p.peek()
	switch {
	case tok.Kind == KindDirective:
		return nil, p.parseDirective()
	case sep(SepSemicolon)(tok):
		p.next()
		return nil, nil
	case kw(KwUsing)(tok):
		return p.single(p.parseUsing())
	case kw(KwStruct)(tok):
		return p.single(p.parseStruct())
	case kw(KwUnion)(tok):
		return p.single(p.parseUnion())
	case kw(KwEnum)(tok):
		return p.single(p.parseEnum())
	case kw(KwBitfield)(tok):
		return p.single(p.parseBitfield())
	case kw(KwFn)(tok):
		return p.single(p.parseFunctionDefinition())
	case kw(KwNamespace)(tok):
		return p.parseNamespace()
	case tok.Kind == KindIdentifier && p.isCallAhead():
		return p.single(p.parseCallStatement())
	case tok.Kind == KindIdentifier && p.isAssignmentAhead():
		return p.single(p.parseAssignment(true))
	case tok.Kind == KindIdentifier || tok.Kind == KindValueType || kw(KwBigEndian)(tok) || kw(KwLittleEndian)(tok):
		return p.single(p.parseDeclaration(ctxTop))
	}
	return nil, p.expected("declaration")
}

func (p *Parser) single(n ast.Node, err error) ([]ast.Node, error) {
	if err != nil {
		return nil, err
	}
	return []ast.Node{n}, nil
}

func (p *Parser) parseDirective() error {
	tok := p.next()
	if tok.Ident != "pragma" {
		return p.errorf(tok, "unsupported directive '#%s'", tok.Ident)
	}
	body := tok.Literal.Str
	name, value, _ := strings.Cut(body, " ")
	if name == "" {
		return p.errorf(tok, "expected pragma name")
	}
	p.program.Pragmas = append(p.program.Pragmas, ast.Pragma{Name: name, Value: strings.TrimSpace(value), Loc: tok.Loc})
	return nil
}

// isCallAhead reports whether an identifier path followed by '(' comes next.
func (p *Parser) isCallAhead() bool {
	i := 0
	for p.peekN(i).Kind == KindIdentifier {
		if op(ast.OpScope)(p.peekN(i + 1)) {
			i += 2
			continue
		}
		return sep(SepLParen)(p.peekN(i + 1))
	}
	return false
}

// isAssignmentAhead reports whether `name =` or `name op=` comes next.
func (p *Parser) isAssignmentAhead() bool {
	first := p.peek()
	if first.Kind != KindIdentifier && !op(ast.OpDollar)(first) {
		return false
	}
	if op(ast.OpAssign)(p.peekN(1)) {
		return true
	}
	_, ok := compoundOps[p.peekN(1).Operator]
	return ok && p.peekN(1).Kind == KindOperator && op(ast.OpAssign)(p.peekN(2))
}

var compoundOps = map[ast.Operator]struct{}{
	ast.OpPlus:       {},
	ast.OpMinus:      {},
	ast.OpStar:       {},
	ast.OpSlash:      {},
	ast.OpPercent:    {},
	ast.OpBitAnd:     {},
	ast.OpBitOr:      {},
	ast.OpBitXor:     {},
	ast.OpShiftLeft:  {},
	ast.OpShiftRight: {},
}

func (p *Parser) parseNamespace() ([]ast.Node, error) {
	p.next()
	_, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSep(SepLBrace); err != nil {
		return nil, err
	}

	ns := append(append([]string(nil), p.currentNamespace()...), strings.Split(name, "::")...)
	p.namespaces = append(p.namespaces, ns)
	defer func() { p.namespaces = p.namespaces[:len(p.namespaces)-1] }()

	var nodes []ast.Node
	for !sep(SepRBrace)(p.peek()) {
		if p.atEnd() {
			return nil, p.expected("'}'")
		}
		n, err := p.parseTopStatement()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n...)
	}
	p.next()
	p.sequence(sep(SepSemicolon))
	return nodes, nil
}

func (p *Parser) parseUsing() (ast.Node, error) {
	p.next()
	nameTok, err := p.expectIdent("type name")
	if err != nil {
		return nil, err
	}

	if p.sequence(sep(SepSemicolon)) {
		qualified := p.qualify(nameTok.Ident)
		if d, ok := p.program.Types[qualified]; ok {
			return d, nil
		}
		d := &ast.TypeDecl{Position: at(nameTok), Name: qualified, Forward: true}
		p.program.Types[qualified] = d
		return d, nil
	}

	if _, err := p.expectOp(ast.OpAssign); err != nil {
		return nil, err
	}
	decl, err := p.declareType(nameTok, nameTok.Ident)
	if err != nil {
		return nil, err
	}
	target, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if err := p.parseAttributes(&decl.Attributable); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	decl.Complete(target)
	return decl, nil
}

// parseType parses `[be|le] (builtin | name[::name…])`.
func (p *Parser) parseType(allowAuto bool) (*ast.TypeDecl, error) {
	start := p.peek()
	var endian binary.ByteOrder
	switch {
	case p.sequence(kw(KwBigEndian)):
		endian = binary.BigEndian
	case p.sequence(kw(KwLittleEndian)):
		endian = binary.LittleEndian
	}

	tok := p.peek()
	switch tok.Kind {
	case KindValueType:
		p.next()
		if tok.ValueType == ast.Auto && !allowAuto {
			return nil, p.errorf(tok, "'auto' is only allowed as a function parameter type")
		}
		return &ast.TypeDecl{Position: at(start), Type: &ast.BuiltinType{Position: at(tok), Type: tok.ValueType}, Endian: endian}, nil

	case KindIdentifier:
		nameTok, name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		decl, ok := p.lookupType(name)
		if !ok {
			return nil, p.errorf(nameTok, "unknown type '%s'", name)
		}
		if endian != nil {
			return &ast.TypeDecl{Position: at(start), Type: decl, Endian: endian}, nil
		}
		return decl, nil
	}
	return nil, p.expected("type")
}

func (p *Parser) parseTypeBody(parseMember func() ([]ast.Node, error)) ([]ast.Node, error) {
	if _, err := p.expectSep(SepLBrace); err != nil {
		return nil, err
	}
	var members []ast.Node
	for !sep(SepRBrace)(p.peek()) {
		if p.atEnd() {
			return nil, p.expected("'}'")
		}
		nodes, err := parseMember()
		if err != nil {
			return nil, err
		}
		members = append(members, nodes...)
	}
	p.next()
	return members, nil
}

func (p *Parser) finishTypeDefinition(decl *ast.TypeDecl, body ast.Node) (ast.Node, error) {
	if err := p.parseAttributes(&decl.Attributable); err != nil {
		return nil, err
	}
	p.sequence(sep(SepSemicolon))
	decl.Complete(body)
	return decl, nil
}

func (p *Parser) parseStruct() (ast.Node, error) {
	kwTok := p.next()
	nameTok, err := p.expectIdent("struct name")
	if err != nil {
		return nil, err
	}
	decl, err := p.declareType(nameTok, nameTok.Ident)
	if err != nil {
		return nil, err
	}

	s := &ast.Struct{Position: at(kwTok)}
	if p.sequence(op(ast.OpColon)) {
		for {
			tok := p.peek()
			parent, err := p.parseType(false)
			if err != nil {
				return nil, err
			}
			if parent == decl {
				return nil, p.errorf(tok, "struct '%s' cannot inherit from itself", decl.Name)
			}
			s.Inherits = append(s.Inherits, parent)
			if !p.sequence(sep(SepComma)) {
				break
			}
		}
	}

	s.Members, err = p.parseTypeBody(p.parseMember)
	if err != nil {
		return nil, err
	}
	return p.finishTypeDefinition(decl, s)
}

func (p *Parser) parseUnion() (ast.Node, error) {
	kwTok := p.next()
	nameTok, err := p.expectIdent("union name")
	if err != nil {
		return nil, err
	}
	decl, err := p.declareType(nameTok, nameTok.Ident)
	if err != nil {
		return nil, err
	}
	u := &ast.Union{Position: at(kwTok)}
	u.Members, err = p.parseTypeBody(p.parseMember)
	if err != nil {
		return nil, err
	}
	return p.finishTypeDefinition(decl, u)
}

func (p *Parser) parseEnum() (ast.Node, error) {
	kwTok := p.next()
	nameTok, err := p.expectIdent("enum name")
	if err != nil {
		return nil, err
	}
	decl, err := p.declareType(nameTok, nameTok.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(ast.OpColon); err != nil {
		return nil, err
	}
	typeTok := p.peek()
	underlying, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if bt, ok := underlying.Builtin(); !ok || !bt.IsInteger() {
		return nil, p.errorf(typeTok, "enum underlying type must be an integer type")
	}

	e := &ast.Enum{Position: at(kwTok), Underlying: underlying}
	if _, err := p.expectSep(SepLBrace); err != nil {
		return nil, err
	}
	for !p.sequence(sep(SepRBrace)) {
		entryTok, err := p.expectIdent("enum entry name")
		if err != nil {
			return nil, err
		}
		entry := ast.EnumEntry{Name: entryTok.Ident}
		if p.sequence(op(ast.OpAssign)) {
			if entry.Value, err = p.parseExpression(); err != nil {
				return nil, err
			}
		}
		e.Entries = append(e.Entries, entry)
		if !p.sequence(sep(SepComma)) {
			if _, err := p.expectSep(SepRBrace); err != nil {
				return nil, err
			}
			break
		}
	}
	return p.finishTypeDefinition(decl, e)
}

func (p *Parser) parseBitfield() (ast.Node, error) {
	kwTok := p.next()
	nameTok, err := p.expectIdent("bitfield name")
	if err != nil {
		return nil, err
	}
	decl, err := p.declareType(nameTok, nameTok.Ident)
	if err != nil {
		return nil, err
	}

	b := &ast.Bitfield{Position: at(kwTok)}
	if _, err := p.expectSep(SepLBrace); err != nil {
		return nil, err
	}
	for !p.sequence(sep(SepRBrace)) {
		if p.atEnd() {
			return nil, p.expected("'}'")
		}
		if p.sequence(sep(SepSemicolon)) {
			continue
		}
		field, err := p.parseBitfieldField()
		if err != nil {
			return nil, err
		}
		b.Fields = append(b.Fields, field)
	}
	return p.finishTypeDefinition(decl, b)
}

func (p *Parser) parseBitfieldField() (*ast.BitfieldField, error) {
	start := p.peek()
	field := &ast.BitfieldField{Position: at(start), Doc: start.Doc}

	switch {
	case p.lookahead(func(t Token) bool { return t.Kind == KindValueType && t.ValueType == ast.Padding }, op(ast.OpColon)):
		p.next()
		field.Padding = true
	case p.lookahead(kind(KindIdentifier), op(ast.OpColon)):
		field.Name = p.next().Ident
	default:
		typ, err := p.parseType(false)
		if err != nil {
			return nil, err
		}
		if !isBitfieldFieldType(typ) {
			return nil, p.errorf(start, "bitfield fields must be bool, integer or enum typed")
		}
		nameTok, err := p.expectIdent("bitfield field name")
		if err != nil {
			return nil, err
		}
		field.Type = typ
		field.Name = nameTok.Ident
	}

	if _, err := p.expectOp(ast.OpColon); err != nil {
		return nil, err
	}
	size, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	field.Size = size
	if err := p.parseAttributes(&field.Attributable); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return field, nil
}

func isBitfieldFieldType(d *ast.TypeDecl) bool {
	if bt, ok := d.Builtin(); ok {
		return bt.IsInteger() || bt == ast.Boolean
	}
	for t := d; t != nil; {
		switch n := t.Type.(type) {
		case *ast.Enum:
			return true
		case *ast.TypeDecl:
			t = n
		default:
			return false
		}
	}
	return false
}

// Attributes

// parseAttributes parses an optional `[[name, name("arg", …), …]]` block.
func (p *Parser) parseAttributes(dst *ast.Attributable) error {
	for p.sequence(sep(SepLBracket), sep(SepLBracket)) {
		for {
			nameTok, name, err := p.parseQualifiedName()
			if err != nil {
				return err
			}
			attr := &ast.Attribute{Position: at(nameTok), Name: name}
			if p.sequence(sep(SepLParen)) {
				for !p.sequence(sep(SepRParen)) {
					tok := p.next()
					switch tok.Kind {
					case KindString:
						attr.Args = append(attr.Args, tok.Literal.Str)
					case KindInteger:
						attr.Args = append(attr.Args, tok.Literal.String())
					case KindIdentifier:
						p.pos--
						_, arg, err := p.parseQualifiedName()
						if err != nil {
							return err
						}
						attr.Args = append(attr.Args, arg)
					default:
						return p.errorf(tok, "expected attribute argument, got %s", tok)
					}
					if !p.sequence(sep(SepComma)) {
						if _, err := p.expectSep(SepRParen); err != nil {
							return err
						}
						break
					}
				}
			}
			dst.AddAttribute(attr)
			if !p.sequence(sep(SepComma)) {
				break
			}
		}
		if !p.sequence(sep(SepRBracket), sep(SepRBracket)) {
			return p.expected("']]'")
		}
	}
	return nil
}

// Functions

func (p *Parser) parseFunctionDefinition() (ast.Node, error) {
	kwTok := p.next()
	nameTok, err := p.expectIdent("function name")
	if err != nil {
		return nil, err
	}
	name := p.qualify(nameTok.Ident)
	if _, ok := p.program.Functions[name]; ok {
		return nil, p.errorf(nameTok, "redefinition of function '%s'", name)
	}

	fn := &ast.FunctionDefinition{Position: at(kwTok), Name: name}
	if _, err := p.expectSep(SepLParen); err != nil {
		return nil, err
	}
	for !p.sequence(sep(SepRParen)) {
		typ, err := p.parseType(true)
		if err != nil {
			return nil, err
		}
		paramTok, err := p.expectIdent("parameter name")
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: paramTok.Ident, Type: typ}
		if bt, ok := typ.Builtin(); ok && bt == ast.Auto {
			param.Type = nil
		}
		fn.Params = append(fn.Params, param)
		if !p.sequence(sep(SepComma)) {
			if _, err := p.expectSep(SepRParen); err != nil {
				return nil, err
			}
			break
		}
	}

	// Registered before the body so functions can recurse.
	p.program.Functions[name] = fn
	fn.Body, err = p.parseBlock(p.parseFunctionStatement)
	if err != nil {
		return nil, err
	}
	p.sequence(sep(SepSemicolon))
	return fn, nil
}

func (p *Parser) parseBlock(item func() ([]ast.Node, error)) ([]ast.Node, error) {
	return p.parseTypeBody(item)
}

// parseBody parses either a braced block or a single item.
func (p *Parser) parseBody(item func() ([]ast.Node, error)) ([]ast.Node, error) {
	if sep(SepLBrace)(p.peek()) {
		return p.parseBlock(item)
	}
	return item()
}

func (p *Parser) parseFunctionStatement() ([]ast.Node, error) {
	tok := p.peek()
	switch {
	case sep(SepSemicolon)(tok):
		p.next()
		return nil, nil
	case kw(KwIf)(tok):
		return p.single(p.parseConditional(p.parseFunctionStatement))
	case kw(KwWhile)(tok):
		return p.single(p.parseWhile())
	case kw(KwFor)(tok):
		return p.single(p.parseFor())
	case kw(KwReturn)(tok), kw(KwBreak)(tok), kw(KwContinue)(tok):
		return p.single(p.parseControlFlow())
	case p.isAssignmentAhead():
		return p.single(p.parseAssignment(true))
	case tok.Kind == KindIdentifier && p.isCallAhead():
		return p.single(p.parseCallStatement())
	}
	return p.single(p.parseDeclaration(ctxFunction))
}

func (p *Parser) parseControlFlow() (ast.Node, error) {
	tok := p.next()
	stmt := &ast.ControlFlowStatement{Position: at(tok)}
	switch tok.Keyword {
	case KwReturn:
		stmt.Kind = ast.FlowReturn
		if !sep(SepSemicolon)(p.peek()) {
			v, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			stmt.Value = v
		}
	case KwBreak:
		stmt.Kind = ast.FlowBreak
	case KwContinue:
		stmt.Kind = ast.FlowContinue
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseCondition() (ast.Node, error) {
	if _, err := p.expectSep(SepLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSep(SepRParen); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) parseConditional(item func() ([]ast.Node, error)) (ast.Node, error) {
	kwTok := p.next()
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	stmt := &ast.ConditionalStatement{Position: at(kwTok), Cond: cond}
	if stmt.True, err = p.parseBody(item); err != nil {
		return nil, err
	}
	if p.sequence(kw(KwElse)) {
		if kw(KwIf)(p.peek()) {
			elseIf, err := p.parseConditional(item)
			if err != nil {
				return nil, err
			}
			stmt.False = []ast.Node{elseIf}
		} else if stmt.False, err = p.parseBody(item); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Node, error) {
	kwTok := p.next()
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(p.parseFunctionStatement)
	if err != nil {
		return nil, err
	}
	return &ast.WhileStatement{Position: at(kwTok), Cond: cond, Body: body}, nil
}

// parseFor parses `for (init, cond, step) body`; ';' is accepted in place of
// ','.
func (p *Parser) parseFor() (ast.Node, error) {
	kwTok := p.next()
	if _, err := p.expectSep(SepLParen); err != nil {
		return nil, err
	}
	clauseEnd := anyOf(sep(SepComma), sep(SepSemicolon))

	var init ast.Node
	var err error
	if p.isAssignmentAhead() {
		init, err = p.parseAssignment(false)
	} else {
		init, err = p.parseLocalVariable()
	}
	if err != nil {
		return nil, err
	}
	if !p.sequence(clauseEnd) {
		return nil, p.expected("','")
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.sequence(clauseEnd) {
		return nil, p.expected("','")
	}
	post, err := p.parseAssignment(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSep(SepRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBody(p.parseFunctionStatement)
	if err != nil {
		return nil, err
	}
	loop := &ast.WhileStatement{Position: at(kwTok), Cond: cond, Body: body, Post: post}
	return &ast.CompoundStatement{Position: at(kwTok), Statements: []ast.Node{init, loop}}, nil
}

// parseLocalVariable parses `Type name = expr` without a trailing ';'.
func (p *Parser) parseLocalVariable() (ast.Node, error) {
	start := p.peek()
	typ, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(ast.OpAssign); err != nil {
		return nil, err
	}
	init, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.VariableDecl{Position: at(start), Name: nameTok.Ident, Type: typ, Init: init}, nil
}

func (p *Parser) parseAssignment(withSemicolon bool) (ast.Node, error) {
	tok := p.next()
	name := tok.Ident
	if op(ast.OpDollar)(tok) {
		name = "$"
	} else if tok.Kind != KindIdentifier {
		return nil, p.errorf(tok, "expected assignment target, got %s", tok)
	}

	a := &ast.Assignment{Position: at(tok), Name: name}
	if !p.sequence(op(ast.OpAssign)) {
		opTok := p.next()
		if _, ok := compoundOps[opTok.Operator]; !ok || opTok.Kind != KindOperator {
			return nil, p.errorf(opTok, "expected assignment operator, got %s", opTok)
		}
		if _, err := p.expectOp(ast.OpAssign); err != nil {
			return nil, err
		}
		a.Op = opTok.Operator
	}
	v, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	a.Value = v
	if withSemicolon {
		if err := p.expectSemicolon(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (p *Parser) parseCallStatement() (ast.Node, error) {
	call, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return call, nil
}
