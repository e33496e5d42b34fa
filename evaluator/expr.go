package evaluator

import (
	"encoding/binary"
	"math"
	"math/big"
	"strings"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
)

func (s *state) eval(node ast.Node) (value, error) {
	switch n := node.(type) {
	case *ast.Literal:
		return constantValue(n.Value), nil
	case *ast.RValue:
		if n.IsDollar() {
			return uintValue(*s.dollar()), nil
		}
		return s.lookup(n)
	case *ast.ScopeResolution:
		return s.enumerator(n.Type, n.Name, n)
	case *ast.MathematicalExpression:
		if n.Left == nil {
			return s.unary(n)
		}
		return s.binary(n)
	case *ast.TernaryExpression:
		ok, err := s.evalBool(n.Cond)
		if err != nil {
			return value{}, err
		}
		if ok {
			return s.eval(n.True)
		}
		return s.eval(n.False)
	case *ast.Cast:
		return s.castExpr(n)
	case *ast.FunctionCall:
		v, err := s.call(n)
		if err != nil {
			return value{}, err
		}
		if v.kind == kindVoid {
			return value{}, errorf(TypeMismatch, n, "function '%s' does not return a value", n.Name)
		}
		return v, nil
	case *ast.TypeOperator:
		return s.typeOperator(n)
	}
	return value{}, errorf(TypeMismatch, node, "%T is not an expression", node)
}

// evalScalar evaluates node and loads the value of a scalar pattern result.
func (s *state) evalScalar(node ast.Node) (value, error) {
	v, err := s.eval(node)
	if err != nil {
		return value{}, err
	}
	return s.scalar(v, node)
}

func (s *state) scalar(v value, node ast.Node) (value, error) {
	if v.kind != kindPattern {
		return v, nil
	}
	return s.load(v.p, node)
}

// load reads the value of a scalar pattern. Containers are returned as is.
func (s *state) load(p pattern.Pattern, node ast.Node) (value, error) {
	var (
		v   value
		err error
	)
	switch t := p.(type) {
	case *pattern.Unsigned:
		var i *big.Int
		if i, err = t.Value(s.reader); err == nil {
			v = unsignedOf(i)
		}
	case *pattern.Signed:
		var i *big.Int
		if i, err = t.Value(s.reader); err == nil {
			v = signedOf(i)
		}
	case *pattern.Enum:
		var i *big.Int
		if i, err = t.Value(s.reader); err == nil {
			v = unsignedOf(i)
		}
	case *pattern.Float:
		var f float64
		if f, err = t.Value(s.reader); err == nil {
			v = floatOf(f)
		}
	case *pattern.Boolean:
		var b bool
		if b, err = t.Value(s.reader); err == nil {
			v = boolOf(b)
		}
	case *pattern.Character:
		var c byte
		if c, err = t.Value(s.reader); err == nil {
			v = charOf(rune(c))
		}
	case *pattern.WideCharacter:
		var c uint16
		if c, err = t.Value(s.reader); err == nil {
			v = charOf(rune(c))
		}
	case *pattern.String:
		var str string
		if str, err = t.Value(s.reader); err == nil {
			v = stringOf(str)
		}
	case *pattern.WideString:
		var str string
		if str, err = t.Value(s.reader); err == nil {
			v = stringOf(str)
		}
	case *pattern.BitfieldField:
		var i *big.Int
		if i, err = t.Value(s.reader); err == nil {
			switch t.Kind {
			case pattern.FieldBoolean:
				v = boolOf(i.Sign() != 0)
			case pattern.FieldSigned:
				v = signedOf(i)
			default:
				v = unsignedOf(i)
			}
		}
	case *pattern.Pointer:
		var addr uint64
		if addr, err = t.Address(s.reader); err == nil {
			v = uintValue(addr)
		}
	default:
		return patternOf(p), nil
	}
	if err != nil {
		b := p.Common()
		return value{}, outOfBounds(node, b.Offset, "reading '%s': %v", b.Name, err)
	}
	return v, nil
}

func (s *state) evalInt(node ast.Node) (*big.Int, error) {
	v, err := s.evalScalar(node)
	if err != nil {
		return nil, err
	}
	i, ok := v.integer()
	if !ok {
		return nil, errorf(TypeMismatch, node, "expected an integer, got a %s", v.kind)
	}
	return i, nil
}

// evalUint evaluates an offset, size or count.
func (s *state) evalUint(node ast.Node) (uint64, error) {
	v, err := s.eval(node)
	if err != nil {
		return 0, err
	}
	return s.toOffset(v, node)
}

func (s *state) toOffset(v value, node ast.Node) (uint64, error) {
	v, err := s.scalar(v, node)
	if err != nil {
		return 0, err
	}
	i, ok := v.integer()
	if !ok {
		return 0, errorf(TypeMismatch, node, "expected an integer, got a %s", v.kind)
	}
	if i.Sign() < 0 || !i.IsUint64() {
		return 0, outOfBounds(node, s.size, "value %s is not a valid offset", i)
	}
	return i.Uint64(), nil
}

func (s *state) evalBool(node ast.Node) (bool, error) {
	v, err := s.evalScalar(node)
	if err != nil {
		return false, err
	}
	b, ok := v.truthy()
	if !ok {
		return false, errorf(TypeMismatch, node, "a %s cannot be used as a condition", v.kind)
	}
	return b, nil
}

// convert casts v to the declared type of a variable. A nil type accepts any
// value.
func (s *state) convert(v value, typ *ast.TypeDecl, node ast.Node) (value, error) {
	if typ == nil {
		return v, nil
	}
	t, err := s.resolve(typ, s.cfg.DefaultEndian)
	if err != nil {
		return value{}, err
	}
	vt, ok := s.builtinOf(t)
	if !ok {
		if v.kind != kindPattern {
			return value{}, errorf(TypeMismatch, node, "cannot assign a %s to a variable of type '%s'", v.kind, t.name)
		}
		return v, nil
	}
	if vt == ast.Auto {
		return v, nil
	}
	sv, err := s.scalar(v, node)
	if err != nil {
		return value{}, err
	}
	out, ok := cast(sv, vt, false)
	if !ok {
		return value{}, errorf(TypeMismatch, node, "cannot convert a %s to '%s'", sv.kind, t.name)
	}
	return out, nil
}

// builtinOf returns the builtin type t stands for. Enums stand for their
// underlying type.
func (s *state) builtinOf(t resolved) (ast.ValueType, bool) {
	switch body := t.body.(type) {
	case *ast.BuiltinType:
		return body.Type, true
	case *ast.Enum:
		u, err := s.resolve(body.Underlying, t.order)
		if err != nil {
			return ast.InvalidType, false
		}
		if bt, ok := u.body.(*ast.BuiltinType); ok && bt.Type.IsInteger() {
			return bt.Type, true
		}
	}
	return ast.InvalidType, false
}

func (s *state) unary(n *ast.MathematicalExpression) (value, error) {
	v, err := s.evalScalar(n.Right)
	if err != nil {
		return value{}, err
	}
	switch n.Op {
	case ast.OpPlus:
		if v.isNumeric() {
			return v, nil
		}
	case ast.OpMinus:
		switch {
		case v.kind == kindFloat:
			return floatOf(-v.f), nil
		case v.isInteger():
			return signedOf(new(big.Int).Neg(v.i)), nil
		}
	case ast.OpBitNot:
		switch {
		case v.kind == kindSigned:
			return signedOf(new(big.Int).Not(v.i)), nil
		case v.isInteger():
			return unsignedOf(new(big.Int).Not(v.i)), nil
		}
	case ast.OpBoolNot:
		if b, ok := v.truthy(); ok {
			return boolOf(!b), nil
		}
	}
	return value{}, errorf(TypeMismatch, n, "operator %s cannot be applied to a %s", n.Op, v.kind)
}

func (s *state) binary(n *ast.MathematicalExpression) (value, error) {
	switch n.Op {
	case ast.OpBoolAnd, ast.OpBoolOr:
		l, err := s.evalBool(n.Left)
		if err != nil {
			return value{}, err
		}
		if l == (n.Op == ast.OpBoolOr) {
			return boolOf(l), nil
		}
		r, err := s.evalBool(n.Right)
		if err != nil {
			return value{}, err
		}
		return boolOf(r), nil
	}

	l, err := s.evalScalar(n.Left)
	if err != nil {
		return value{}, err
	}
	r, err := s.evalScalar(n.Right)
	if err != nil {
		return value{}, err
	}
	return operate(n, l, r)
}

func operate(n *ast.MathematicalExpression, l, r value) (value, error) {
	if l.kind == kindString || r.kind == kindString {
		return stringOperation(n, l, r)
	}
	if !l.isNumeric() || !r.isNumeric() {
		return value{}, errorf(TypeMismatch, n, "operator %s cannot be applied to a %s and a %s", n.Op, l.kind, r.kind)
	}
	if n.Op == ast.OpBoolXor {
		lb, _ := l.truthy()
		rb, _ := r.truthy()
		return boolOf(lb != rb), nil
	}
	if l.kind == kindFloat || r.kind == kindFloat {
		return floatOperation(n, l.float(), r.float())
	}
	return intOperation(n, l, r)
}

func compare(op ast.Operator, c int) (value, bool) {
	switch op {
	case ast.OpEqual:
		return boolOf(c == 0), true
	case ast.OpNotEqual:
		return boolOf(c != 0), true
	case ast.OpGreater:
		return boolOf(c > 0), true
	case ast.OpLess:
		return boolOf(c < 0), true
	case ast.OpGreaterEqual:
		return boolOf(c >= 0), true
	case ast.OpLessEqual:
		return boolOf(c <= 0), true
	}
	return value{}, false
}

func stringOperation(n *ast.MathematicalExpression, l, r value) (value, error) {
	text := func(v value) (string, bool) {
		switch v.kind {
		case kindString, kindChar:
			return v.text(), true
		}
		return "", false
	}
	a, okA := text(l)
	b, okB := text(r)
	if okA && okB {
		if n.Op == ast.OpPlus {
			return stringOf(a + b), nil
		}
		if v, ok := compare(n.Op, strings.Compare(a, b)); ok {
			return v, nil
		}
	}
	if n.Op == ast.OpStar && l.kind == kindString && r.isInteger() && r.i.Sign() >= 0 && r.i.IsInt64() {
		return stringOf(strings.Repeat(l.s, int(r.i.Int64()))), nil
	}
	return value{}, errorf(TypeMismatch, n, "operator %s cannot be applied to a %s and a %s", n.Op, l.kind, r.kind)
}

func floatOperation(n *ast.MathematicalExpression, a, b float64) (value, error) {
	switch n.Op {
	case ast.OpPlus:
		return floatOf(a + b), nil
	case ast.OpMinus:
		return floatOf(a - b), nil
	case ast.OpStar:
		return floatOf(a * b), nil
	case ast.OpSlash, ast.OpPercent:
		if b == 0 {
			return value{}, errorf(DivByZero, n, "division by zero")
		}
		if n.Op == ast.OpSlash {
			return floatOf(a / b), nil
		}
		return floatOf(math.Mod(a, b)), nil
	}
	c := 0
	switch {
	case a < b:
		c = -1
	case a > b:
		c = 1
	}
	if v, ok := compare(n.Op, c); ok {
		return v, nil
	}
	return value{}, errorf(TypeMismatch, n, "operator %s cannot be applied to floating point values", n.Op)
}

// maxShift caps shift amounts; every value fits in 128 bits.
const maxShift = 128

func intOperation(n *ast.MathematicalExpression, l, r value) (value, error) {
	a, b := l.i, r.i
	if v, ok := compare(n.Op, a.Cmp(b)); ok {
		return v, nil
	}

	out := new(big.Int)
	switch n.Op {
	case ast.OpPlus:
		out.Add(a, b)
	case ast.OpMinus:
		out.Sub(a, b)
	case ast.OpStar:
		out.Mul(a, b)
	case ast.OpSlash, ast.OpPercent:
		if b.Sign() == 0 {
			return value{}, errorf(DivByZero, n, "division by zero")
		}
		if n.Op == ast.OpSlash {
			out.Quo(a, b)
		} else {
			out.Rem(a, b)
		}
	case ast.OpShiftLeft, ast.OpShiftRight:
		if b.Sign() < 0 {
			return value{}, errorf(TypeMismatch, n, "negative shift amount %s", b)
		}
		shift := uint(maxShift)
		if b.IsUint64() && b.Uint64() < maxShift {
			shift = uint(b.Uint64())
		}
		if n.Op == ast.OpShiftLeft {
			out.Lsh(a, shift)
		} else {
			out.Rsh(a, shift)
		}
	case ast.OpBitAnd:
		out.And(a, b)
	case ast.OpBitOr:
		out.Or(a, b)
	case ast.OpBitXor:
		out.Xor(a, b)
	default:
		return value{}, errorf(TypeMismatch, n, "operator %s cannot be applied to integers", n.Op)
	}
	if l.kind == kindSigned || r.kind == kindSigned {
		return signedOf(out), nil
	}
	return unsignedOf(out), nil
}

func (s *state) castExpr(n *ast.Cast) (value, error) {
	t, err := s.resolve(n.Type, s.cfg.DefaultEndian)
	if err != nil {
		return value{}, err
	}
	vt, ok := s.builtinOf(t)
	if !ok || vt == ast.Auto || vt == ast.Padding {
		return value{}, errorf(BadCast, n, "cannot cast to '%s'", t.name)
	}
	v, err := s.evalScalar(n.Value)
	if err != nil {
		return value{}, err
	}
	out, ok := cast(v, vt, t.explicit && t.order == binary.BigEndian)
	if !ok {
		return value{}, errorf(BadCast, n, "cannot cast a %s to '%s'", v.kind, t.name)
	}
	return out, nil
}

func (s *state) typeOperator(n *ast.TypeOperator) (value, error) {
	if n.Op == ast.OpSizeOf && n.Type != nil {
		size, err := s.sizeOfType(n.Type, n)
		if err != nil {
			return value{}, err
		}
		return uintValue(size), nil
	}

	v, err := s.eval(n.Expr)
	if err != nil {
		return value{}, err
	}
	if n.Op == ast.OpAddressOf {
		if v.kind != kindPattern {
			return value{}, errorf(TypeMismatch, n, "addressof requires a pattern, got a %s", v.kind)
		}
		return uintValue(v.p.Common().Offset), nil
	}

	switch v.kind {
	case kindPattern:
		return uintValue(v.p.Common().Size), nil
	case kindString:
		return uintValue(uint64(len(v.s))), nil
	case kindBool, kindChar:
		return uintValue(1), nil
	}
	if rv, ok := n.Expr.(*ast.RValue); ok && len(rv.Path) == 1 {
		if local, ok := s.variable(rv.Path[0].Name); ok && local.typ != nil {
			if bt, ok := local.typ.Builtin(); ok && bt.Size() > 0 {
				return uintValue(bt.Size()), nil
			}
		}
	}
	return value{}, errorf(TypeMismatch, n, "cannot take the size of a %s", v.kind)
}

// sizeOfType returns the size of a value of decl. Types without a fixed size
// are placed at the cursor without adding anything to the tree.
func (s *state) sizeOfType(decl *ast.TypeDecl, node ast.Node) (uint64, error) {
	if bt, ok := decl.Builtin(); ok && bt.Size() > 0 {
		return bt.Size(), nil
	}
	cursor, patterns, dry := s.cursor, s.patterns, s.dryRun
	defer func() { s.cursor, s.patterns, s.dryRun = cursor, patterns, dry }()
	p, err := s.placeType(decl, "", *s.dollar(), s.cfg.DefaultEndian, node)
	if IsKind(err, OutOfBounds) {
		// Static sizes do not depend on the data. Measure again without
		// bounds checks.
		s.cursor, s.patterns, s.dryRun = cursor, patterns, true
		p, err = s.placeType(decl, "", *s.dollar(), s.cfg.DefaultEndian, node)
	}
	if err != nil {
		return 0, err
	}
	return p.Common().Size, nil
}
