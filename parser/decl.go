package parser

import (
	"github.com/sansecio/hexpat/ast"
)

// declContext selects which declaration forms are accepted.
type declContext uint8

const (
	ctxTop declContext = iota
	ctxMember
	ctxFunction
)

func (c declContext) String() string {
	switch c {
	case ctxTop:
		return "placement"
	case ctxMember:
		return "member"
	default:
		return "local variable"
	}
}

// parseMember parses one item of a struct or union body.
func (p *Parser) parseMember() ([]ast.Node, error) {
	tok := p.peek()
	switch {
	case sep(SepSemicolon)(tok):
		p.next()
		return nil, nil
	case kw(KwIf)(tok):
		return p.single(p.parseConditional(p.parseMember))
	case kw(KwReturn)(tok), kw(KwBreak)(tok), kw(KwContinue)(tok):
		return p.single(p.parseControlFlow())
	case p.isAssignmentAhead():
		return p.single(p.parseAssignment(true))
	case tok.Kind == KindIdentifier && p.isCallAhead():
		return p.single(p.parseCallStatement())
	}
	return p.single(p.parseDeclaration(ctxMember))
}

// parseDeclaration parses variable, array, pointer and padding declarations.
func (p *Parser) parseDeclaration(ctx declContext) (ast.Node, error) {
	start := p.peek()
	doc := start.Doc
	typ, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	builtin, isBuiltin := typ.Builtin()

	if isBuiltin && builtin == ast.Padding {
		return p.parsePadding(start, typ, ctx)
	}

	if p.sequence(op(ast.OpStar)) {
		return p.parsePointer(start, typ, ctx)
	}

	nameTok, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}

	if sep(SepLBracket)(p.peek()) {
		return p.parseArray(start, typ, nameTok, ctx)
	}

	v := &ast.VariableDecl{Position: at(start), Name: nameTok.Ident, Type: typ, Doc: doc}

	if ctx == ctxMember && sep(SepComma)(p.peek()) {
		if isBuiltin && builtin == ast.String {
			return nil, p.errorf(start, "'str' cannot be used as a member type, use a char array")
		}
		multi := &ast.MultiVariableDecl{Position: at(start), Variables: []*ast.VariableDecl{v}}
		for p.sequence(sep(SepComma)) {
			tok, err := p.expectIdent("variable name")
			if err != nil {
				return nil, err
			}
			multi.Variables = append(multi.Variables, &ast.VariableDecl{Position: at(tok), Name: tok.Ident, Type: typ, Doc: doc})
		}
		var attrs ast.Attributable
		if err := p.parseAttributes(&attrs); err != nil {
			return nil, err
		}
		for _, mv := range multi.Variables {
			mv.Attributes = append(mv.Attributes, attrs.Attributes...)
		}
		if err := p.expectSemicolon(); err != nil {
			return nil, err
		}
		return multi, nil
	}

	switch {
	case p.sequence(op(ast.OpAt)):
		if v.Placement, err = p.parseExpression(); err != nil {
			return nil, err
		}
	case p.sequence(op(ast.OpAssign)):
		if v.Init, err = p.parseExpression(); err != nil {
			return nil, err
		}
	case ctx == ctxTop && p.sequence(kw(KwIn)):
		v.Direction = ast.DirIn
	case ctx == ctxTop && p.sequence(kw(KwOut)):
		v.Direction = ast.DirOut
	case ctx == ctxTop:
		return nil, p.expected("'@', '=', 'in' or 'out'")
	}

	if v.Init == nil && v.Direction == ast.DirNone && ctx != ctxFunction && isBuiltin && builtin == ast.String {
		return nil, p.errorf(start, "'str' cannot be used as a %s type, use a char array", ctx)
	}

	if err := p.parseAttributes(&v.Attributable); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return v, nil
}

// parsePadding parses `padding[size];`.
func (p *Parser) parsePadding(start Token, typ *ast.TypeDecl, ctx declContext) (ast.Node, error) {
	if ctx != ctxMember {
		return nil, p.errorf(start, "padding is only allowed inside struct and union bodies")
	}
	if _, err := p.expectSep(SepLBracket); err != nil {
		return nil, err
	}
	size, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSep(SepRBracket); err != nil {
		return nil, err
	}
	a := &ast.ArrayVariableDecl{Position: at(start), Name: "padding", Type: typ, Size: size}
	if err := p.parseAttributes(&a.Attributable); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return a, nil
}

// parseArray parses the `[size]`, `[while(cond)]` or `[]` suffix and the rest
// of an array declaration.
func (p *Parser) parseArray(start Token, typ *ast.TypeDecl, nameTok Token, ctx declContext) (ast.Node, error) {
	if bt, ok := typ.Builtin(); ok && bt == ast.String {
		return nil, p.errorf(start, "'str' cannot be used as an array element type, use char")
	}
	p.next()

	a := &ast.ArrayVariableDecl{Position: at(start), Name: nameTok.Ident, Type: typ, Doc: start.Doc}
	switch {
	case p.sequence(sep(SepRBracket)):
	case p.sequence(kw(KwWhile)):
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		a.Size, a.While = cond, true
		if _, err := p.expectSep(SepRBracket); err != nil {
			return nil, err
		}
	default:
		size, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		a.Size = size
		if _, err := p.expectSep(SepRBracket); err != nil {
			return nil, err
		}
	}

	if p.sequence(op(ast.OpAt)) {
		placement, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		a.Placement = placement
	} else if ctx == ctxTop {
		return nil, p.expected("'@'")
	}

	if err := p.parseAttributes(&a.Attributable); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return a, nil
}

// parsePointer parses `T *name : SizeType [@ expr];` after the '*'.
func (p *Parser) parsePointer(start Token, typ *ast.TypeDecl, ctx declContext) (ast.Node, error) {
	nameTok, err := p.expectIdent("pointer name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(ast.OpColon); err != nil {
		return nil, err
	}
	sizeTok := p.peek()
	sizeType, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if bt, ok := sizeType.Builtin(); !ok || !bt.IsUnsigned() {
		return nil, p.errorf(sizeTok, "pointer size type must be an unsigned integer type")
	}

	ptr := &ast.PointerVariableDecl{Position: at(start), Name: nameTok.Ident, Type: typ, SizeType: sizeType, Doc: start.Doc}
	if p.sequence(op(ast.OpAt)) {
		if ptr.Placement, err = p.parseExpression(); err != nil {
			return nil, err
		}
	} else if ctx == ctxTop {
		return nil, p.expected("'@'")
	}

	if err := p.parseAttributes(&ptr.Attributable); err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return ptr, nil
}
