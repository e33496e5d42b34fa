package parser

import (
	"strings"

	"github.com/sansecio/hexpat/ast"
)

// Binary operators from loosest to tightest binding. The ternary sits above
// and unary/cast/factor below this table.
var binaryLevels = [][]ast.Operator{
	{ast.OpBoolOr},
	{ast.OpBoolXor},
	{ast.OpBoolAnd},
	{ast.OpBitOr},
	{ast.OpBitXor},
	{ast.OpBitAnd},
	{ast.OpEqual, ast.OpNotEqual},
	{ast.OpGreater, ast.OpLess, ast.OpGreaterEqual, ast.OpLessEqual},
	{ast.OpShiftLeft, ast.OpShiftRight},
	{ast.OpPlus, ast.OpMinus},
	{ast.OpStar, ast.OpSlash, ast.OpPercent},
}

func (p *Parser) parseExpression() (ast.Node, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (ast.Node, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if !p.sequence(op(ast.OpTernary)) {
		return cond, nil
	}
	t, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(ast.OpColon); err != nil {
		return nil, err
	}
	f, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &ast.TernaryExpression{Position: at(tok), Cond: cond, True: t, False: f}, nil
}

func (p *Parser) parseBinary(level int) (ast.Node, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != KindOperator || !containsOp(binaryLevels[level], tok.Operator) {
			return left, nil
		}
		// `a += b` is an assignment, never a binary expression.
		if op(ast.OpAssign)(p.peekN(1)) {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.MathematicalExpression{Position: at(tok), Op: tok.Operator, Left: left, Right: right}
	}
}

func containsOp(ops []ast.Operator, o ast.Operator) bool {
	for _, c := range ops {
		if c == o {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() (ast.Node, error) {
	tok := p.peek()
	if p.sequence(anyOf(op(ast.OpMinus), op(ast.OpPlus), op(ast.OpBitNot), op(ast.OpBoolNot))) {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.MathematicalExpression{Position: at(tok), Op: tok.Operator, Right: operand}, nil
	}
	return p.parseCast()
}

// parseCast parses `type(expr)` for builtin types.
func (p *Parser) parseCast() (ast.Node, error) {
	tok := p.peek()
	endianPrefix := kw(KwBigEndian)(tok) || kw(KwLittleEndian)(tok)
	typeTok := tok
	if endianPrefix {
		typeTok = p.peekN(1)
	}
	if typeTok.Kind != KindValueType {
		return p.parseFactor()
	}
	typ, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSep(SepLParen); err != nil {
		return nil, err
	}
	v, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSep(SepRParen); err != nil {
		return nil, err
	}
	return &ast.Cast{Position: at(tok), Type: typ, Value: v}, nil
}

func (p *Parser) parseFactor() (ast.Node, error) {
	tok := p.peek()
	switch {
	case tok.Kind == KindInteger || tok.Kind == KindString:
		p.next()
		return &ast.Literal{Position: at(tok), Value: tok.Literal}, nil

	case sep(SepLParen)(tok):
		p.next()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSep(SepRParen); err != nil {
			return nil, err
		}
		return e, nil

	case op(ast.OpSizeOf)(tok) || op(ast.OpAddressOf)(tok):
		return p.parseTypeOperator()

	case op(ast.OpDollar)(tok):
		p.next()
		return &ast.RValue{Position: at(tok), Path: []ast.PathPart{{Name: "$"}}}, nil

	case kw(KwThis)(tok) || kw(KwParent)(tok):
		p.next()
		rv := &ast.RValue{Position: at(tok), Path: []ast.PathPart{{Name: tok.Keyword.String()}}}
		return rv, p.parseRValueTail(rv)

	case tok.Kind == KindIdentifier && p.isCallAhead():
		return p.parseFunctionCall()

	case tok.Kind == KindIdentifier:
		nameTok, name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		if i := strings.LastIndex(name, "::"); i >= 0 {
			typeName := name[:i]
			decl, ok := p.lookupType(typeName)
			if !ok {
				return nil, p.errorf(nameTok, "unknown type '%s'", typeName)
			}
			return &ast.ScopeResolution{Position: at(nameTok), Type: decl, Name: name[i+2:]}, nil
		}
		rv := &ast.RValue{Position: at(nameTok), Path: []ast.PathPart{{Name: name}}}
		return rv, p.parseRValueTail(rv)
	}
	return nil, p.expected("expression")
}

// parseRValueTail parses `.member` and `[index]` suffixes.
func (p *Parser) parseRValueTail(rv *ast.RValue) error {
	for {
		switch {
		case p.sequence(sep(SepDot)):
			tok := p.next()
			switch {
			case tok.Kind == KindIdentifier:
				rv.Path = append(rv.Path, ast.PathPart{Name: tok.Ident})
			case kw(KwParent)(tok):
				rv.Path = append(rv.Path, ast.PathPart{Name: "parent"})
			default:
				return p.errorf(tok, "expected member name, got %s", tok)
			}
		case p.sequence(sep(SepLBracket)):
			idx, err := p.parseExpression()
			if err != nil {
				return err
			}
			if _, err := p.expectSep(SepRBracket); err != nil {
				return err
			}
			rv.Path = append(rv.Path, ast.PathPart{Index: idx})
		default:
			return nil
		}
	}
}

func (p *Parser) parseFunctionCall() (ast.Node, error) {
	nameTok, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	call := &ast.FunctionCall{
		Position: at(nameTok),
		Name:     name,
		Scope:    append([]string(nil), p.currentNamespace()...),
	}
	if _, err := p.expectSep(SepLParen); err != nil {
		return nil, err
	}
	for !p.sequence(sep(SepRParen)) {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.sequence(sep(SepComma)) {
			if _, err := p.expectSep(SepRParen); err != nil {
				return nil, err
			}
			break
		}
	}
	return call, nil
}

// parseTypeOperator parses `sizeof(x)` and `addressof(x)`. A name that
// resolves to a type is taken as a type.
func (p *Parser) parseTypeOperator() (ast.Node, error) {
	tok := p.next()
	if _, err := p.expectSep(SepLParen); err != nil {
		return nil, err
	}
	n := &ast.TypeOperator{Position: at(tok), Op: tok.Operator}
	if p.isTypeAhead() {
		typ, err := p.parseType(false)
		if err != nil {
			return nil, err
		}
		n.Type = typ
	} else {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		n.Expr = e
	}
	if _, err := p.expectSep(SepRParen); err != nil {
		return nil, err
	}
	if n.Op == ast.OpAddressOf && n.Type != nil {
		return nil, p.errorf(tok, "addressof requires a variable, not a type")
	}
	return n, nil
}

func (p *Parser) isTypeAhead() bool {
	tok := p.peek()
	switch {
	case tok.Kind == KindValueType, kw(KwBigEndian)(tok), kw(KwLittleEndian)(tok):
		return true
	case tok.Kind != KindIdentifier:
		return false
	}
	save := p.pos
	defer func() { p.pos = save }()
	_, name, err := p.parseQualifiedName()
	if err != nil {
		return false
	}
	if _, ok := p.lookupType(name); !ok {
		return false
	}
	return sep(SepRParen)(p.peek())
}
