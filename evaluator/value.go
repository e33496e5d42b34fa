package evaluator

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
)

type valueKind uint8

const (
	kindVoid valueKind = iota
	kindUnsigned
	kindSigned
	kindFloat
	kindBool
	kindChar
	kindString
	kindPattern
)

var valueKindNames = [...]string{
	kindVoid:     "void",
	kindUnsigned: "unsigned integer",
	kindSigned:   "signed integer",
	kindFloat:    "floating point",
	kindBool:     "boolean",
	kindChar:     "character",
	kindString:   "string",
	kindPattern:  "pattern",
}

func (k valueKind) String() string { return valueKindNames[k] }

// value is the result of an expression. Integers are kept in i, wrapped to
// 128 bits; bool and char values use i as well.
type value struct {
	kind valueKind
	i    *big.Int
	f    float64
	s    string
	p    pattern.Pattern
}

var one = big.NewInt(1)

func unsignedOf(v *big.Int) value {
	return value{kind: kindUnsigned, i: wrapUnsigned(v, 128)}
}

func uintValue(v uint64) value {
	return value{kind: kindUnsigned, i: new(big.Int).SetUint64(v)}
}

func signedOf(v *big.Int) value {
	return value{kind: kindSigned, i: wrapSigned(v, 128)}
}

func floatOf(f float64) value { return value{kind: kindFloat, f: f} }

func boolOf(b bool) value {
	v := value{kind: kindBool, i: new(big.Int)}
	if b {
		v.i.SetInt64(1)
	}
	return v
}

func charOf(c rune) value {
	return value{kind: kindChar, i: big.NewInt(int64(c))}
}

func stringOf(s string) value { return value{kind: kindString, s: s} }

func patternOf(p pattern.Pattern) value { return value{kind: kindPattern, p: p} }

// wrapUnsigned truncates v to its low bits, two's complement for negatives.
func wrapUnsigned(v *big.Int, bits uint) *big.Int {
	mask := new(big.Int).Sub(new(big.Int).Lsh(one, bits), one)
	return new(big.Int).And(v, mask)
}

func wrapSigned(v *big.Int, bits uint) *big.Int {
	u := wrapUnsigned(v, bits)
	if u.Bit(int(bits-1)) == 1 {
		u.Sub(u, new(big.Int).Lsh(one, bits))
	}
	return u
}

func (v value) isInteger() bool {
	switch v.kind {
	case kindUnsigned, kindSigned, kindBool, kindChar:
		return true
	}
	return false
}

func (v value) isNumeric() bool {
	return v.isInteger() || v.kind == kindFloat
}

func (v value) float() float64 {
	if v.kind == kindFloat {
		return v.f
	}
	f, _ := new(big.Float).SetInt(v.i).Float64()
	return f
}

// integer returns the value as an integer, truncating floats.
func (v value) integer() (*big.Int, bool) {
	switch {
	case v.isInteger():
		return v.i, true
	case v.kind == kindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, false
		}
		i, _ := big.NewFloat(math.Trunc(v.f)).Int(nil)
		return i, true
	}
	return nil, false
}

func (v value) truthy() (bool, bool) {
	switch {
	case v.isInteger():
		return v.i.Sign() != 0, true
	case v.kind == kindFloat:
		return v.f != 0, true
	case v.kind == kindString:
		return v.s != "", true
	}
	return false, false
}

// goValue converts v for callers outside the package.
func (v value) goValue() any {
	switch v.kind {
	case kindUnsigned, kindSigned:
		return new(big.Int).Set(v.i)
	case kindFloat:
		return v.f
	case kindBool:
		return v.i.Sign() != 0
	case kindChar:
		return rune(v.i.Int64())
	case kindString:
		return v.s
	case kindPattern:
		return v.p
	}
	return nil
}

// fromGo converts an in-variable supplied by the caller.
func fromGo(x any) (value, error) {
	switch t := x.(type) {
	case nil:
		return value{}, fmt.Errorf("nil value")
	case int:
		return signedOf(big.NewInt(int64(t))), nil
	case int8:
		return signedOf(big.NewInt(int64(t))), nil
	case int16:
		return signedOf(big.NewInt(int64(t))), nil
	case int32:
		return signedOf(big.NewInt(int64(t))), nil
	case int64:
		return signedOf(big.NewInt(t)), nil
	case uint:
		return uintValue(uint64(t)), nil
	case uint8:
		return uintValue(uint64(t)), nil
	case uint16:
		return uintValue(uint64(t)), nil
	case uint32:
		return uintValue(uint64(t)), nil
	case uint64:
		return uintValue(t), nil
	case *big.Int:
		if t.Sign() < 0 {
			return signedOf(t), nil
		}
		return unsignedOf(t), nil
	case float32:
		return floatOf(float64(t)), nil
	case float64:
		return floatOf(t), nil
	case bool:
		return boolOf(t), nil
	case string:
		return stringOf(t), nil
	}
	return value{}, fmt.Errorf("unsupported type %T", x)
}

func constantValue(c ast.Constant) value {
	switch c.Kind {
	case ast.ConstUnsigned:
		return unsignedOf(c.Int)
	case ast.ConstSigned:
		return signedOf(c.Int)
	case ast.ConstFloat:
		return floatOf(c.Float)
	case ast.ConstBool:
		return boolOf(c.Int.Sign() != 0)
	case ast.ConstChar:
		return charOf(rune(c.Int.Int64()))
	}
	return stringOf(c.Str)
}

// text renders a scalar value the way std::print shows it.
func (v value) text() string {
	switch v.kind {
	case kindUnsigned, kindSigned:
		return v.i.String()
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case kindBool:
		if v.i.Sign() != 0 {
			return "true"
		}
		return "false"
	case kindChar:
		return string(rune(v.i.Int64()))
	case kindString:
		return v.s
	}
	return ""
}

// cast converts a scalar to the builtin type t. swap reverses the byte order
// of integer results, as `be u32(x)` does.
func cast(v value, t ast.ValueType, swap bool) (value, bool) {
	switch {
	case t.IsInteger():
		i, ok := v.integer()
		if !ok {
			return value{}, false
		}
		bits := uint(t.Size() * 8)
		u := wrapUnsigned(i, bits)
		if swap {
			u = swapBytes(u, t.Size())
		}
		if t.IsUnsigned() {
			return value{kind: kindUnsigned, i: u}, true
		}
		return value{kind: kindSigned, i: wrapSigned(u, bits)}, true
	case t == ast.Float:
		if !v.isNumeric() {
			return value{}, false
		}
		return floatOf(float64(float32(v.float()))), true
	case t == ast.Double:
		if !v.isNumeric() {
			return value{}, false
		}
		return floatOf(v.float()), true
	case t == ast.Boolean:
		b, ok := v.truthy()
		return boolOf(b), ok
	case t == ast.Character, t == ast.Character16:
		i, ok := v.integer()
		if !ok {
			return value{}, false
		}
		return value{kind: kindChar, i: wrapUnsigned(i, uint(t.Size()*8))}, true
	case t == ast.String:
		switch v.kind {
		case kindString:
			return v, true
		case kindChar:
			return stringOf(v.text()), true
		}
	}
	return value{}, false
}

func swapBytes(v *big.Int, size uint64) *big.Int {
	buf := make([]byte, size)
	v.FillBytes(buf)
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return new(big.Int).SetBytes(buf)
}

// zeroValue is the initial value of a local of builtin type t.
func zeroValue(t ast.ValueType) value {
	switch {
	case t.IsUnsigned():
		return value{kind: kindUnsigned, i: new(big.Int)}
	case t.IsSigned():
		return value{kind: kindSigned, i: new(big.Int)}
	case t.IsFloat():
		return floatOf(0)
	case t == ast.Boolean:
		return boolOf(false)
	case t == ast.Character, t == ast.Character16:
		return charOf(0)
	case t == ast.String:
		return stringOf("")
	}
	return value{}
}
