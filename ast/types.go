package ast

import (
	"fmt"
	"math/big"
	"strconv"
)

// Location identifies a span of pattern source.
type Location struct {
	Source string
	Line   int
	Column int
	Length int
}

func (l Location) String() string {
	if l.Source == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Source, l.Line, l.Column)
}

// ValueType enumerates the builtin types of the language.
type ValueType uint8

const (
	InvalidType ValueType = iota
	Unsigned8
	Unsigned16
	Unsigned32
	Unsigned64
	Unsigned128
	Signed8
	Signed16
	Signed32
	Signed64
	Signed128
	Float
	Double
	Boolean
	Character
	Character16
	String
	Padding
	Auto
)

var valueTypeNames = [...]string{
	InvalidType: "<invalid>",
	Unsigned8:   "u8",
	Unsigned16:  "u16",
	Unsigned32:  "u32",
	Unsigned64:  "u64",
	Unsigned128: "u128",
	Signed8:     "s8",
	Signed16:    "s16",
	Signed32:    "s32",
	Signed64:    "s64",
	Signed128:   "s128",
	Float:       "float",
	Double:      "double",
	Boolean:     "bool",
	Character:   "char",
	Character16: "char16",
	String:      "str",
	Padding:     "padding",
	Auto:        "auto",
}

var valueTypesByName = func() map[string]ValueType {
	m := make(map[string]ValueType, len(valueTypeNames))
	for t, name := range valueTypeNames {
		if ValueType(t) != InvalidType {
			m[name] = ValueType(t)
		}
	}
	return m
}()

// LookupValueType returns the builtin type spelled name.
func LookupValueType(name string) (ValueType, bool) {
	t, ok := valueTypesByName[name]
	return t, ok
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "ValueType(" + strconv.Itoa(int(t)) + ")"
}

// Size returns the byte width of t, or 0 for types without a fixed width
// (str, padding, auto).
func (t ValueType) Size() uint64 {
	switch t {
	case Unsigned8, Signed8, Boolean, Character:
		return 1
	case Unsigned16, Signed16, Character16:
		return 2
	case Unsigned32, Signed32, Float:
		return 4
	case Unsigned64, Signed64, Double:
		return 8
	case Unsigned128, Signed128:
		return 16
	default:
		return 0
	}
}

func (t ValueType) IsUnsigned() bool { return t >= Unsigned8 && t <= Unsigned128 }
func (t ValueType) IsSigned() bool   { return t >= Signed8 && t <= Signed128 }
func (t ValueType) IsInteger() bool  { return t.IsUnsigned() || t.IsSigned() }
func (t ValueType) IsFloat() bool    { return t == Float || t == Double }

// ConstKind discriminates Constant.
type ConstKind uint8

const (
	ConstUnsigned ConstKind = iota
	ConstSigned
	ConstFloat
	ConstBool
	ConstChar
	ConstString
)

// Constant is a literal scalar produced by the lexer. Integers, bools and
// characters live in Int; floats in Float; strings in Str.
type Constant struct {
	Kind  ConstKind
	Int   *big.Int
	Float float64
	Str   string
}

// UnsignedConst returns an unsigned integer constant.
func UnsignedConst(v uint64) Constant {
	return Constant{Kind: ConstUnsigned, Int: new(big.Int).SetUint64(v)}
}

// SignedConst returns a signed integer constant.
func SignedConst(v int64) Constant {
	return Constant{Kind: ConstSigned, Int: big.NewInt(v)}
}

// BoolConst returns a boolean constant.
func BoolConst(v bool) Constant {
	c := Constant{Kind: ConstBool, Int: new(big.Int)}
	if v {
		c.Int.SetInt64(1)
	}
	return c
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstBool:
		if c.Int.Sign() != 0 {
			return "true"
		}
		return "false"
	case ConstChar:
		return strconv.QuoteRune(rune(c.Int.Int64()))
	case ConstString:
		return strconv.Quote(c.Str)
	default:
		return c.Int.String()
	}
}

// Operator enumerates language operators.
type Operator uint8

const (
	OpNone Operator = iota
	OpPlus
	OpMinus
	OpStar
	OpSlash
	OpPercent
	OpShiftLeft
	OpShiftRight
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpEqual
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpBoolAnd
	OpBoolOr
	OpBoolXor
	OpBoolNot
	OpAssign
	OpAt
	OpScope
	OpDollar
	OpTernary
	OpColon
	OpSizeOf
	OpAddressOf
)

var operatorNames = [...]string{
	OpNone:         "<none>",
	OpPlus:         "+",
	OpMinus:        "-",
	OpStar:         "*",
	OpSlash:        "/",
	OpPercent:      "%",
	OpShiftLeft:    "<<",
	OpShiftRight:   ">>",
	OpBitAnd:       "&",
	OpBitOr:        "|",
	OpBitXor:       "^",
	OpBitNot:       "~",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpGreater:      ">",
	OpLess:         "<",
	OpGreaterEqual: ">=",
	OpLessEqual:    "<=",
	OpBoolAnd:      "&&",
	OpBoolOr:       "||",
	OpBoolXor:      "^^",
	OpBoolNot:      "!",
	OpAssign:       "=",
	OpAt:           "@",
	OpScope:        "::",
	OpDollar:       "$",
	OpTernary:      "?",
	OpColon:        ":",
	OpSizeOf:       "sizeof",
	OpAddressOf:    "addressof",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "Operator(" + strconv.Itoa(int(o)) + ")"
}
