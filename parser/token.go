package parser

import (
	"fmt"
	"strconv"

	"github.com/sansecio/hexpat/ast"
)

// Kind is the category of a Token.
type Kind uint8

const (
	KindEndOfProgram Kind = iota
	KindKeyword
	KindValueType
	KindOperator
	KindSeparator
	KindInteger
	KindString
	KindIdentifier
	KindDirective
)

var kindNames = [...]string{
	KindEndOfProgram: "end of program",
	KindKeyword:      "keyword",
	KindValueType:    "value type",
	KindOperator:     "operator",
	KindSeparator:    "separator",
	KindInteger:      "integer",
	KindString:       "string",
	KindIdentifier:   "identifier",
	KindDirective:    "directive",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Keyword enumerates reserved words.
type Keyword uint8

const (
	KwNone Keyword = iota
	KwStruct
	KwUnion
	KwEnum
	KwBitfield
	KwUsing
	KwFn
	KwNamespace
	KwIn
	KwOut
	KwIf
	KwElse
	KwWhile
	KwFor
	KwReturn
	KwBreak
	KwContinue
	KwThis
	KwParent
	KwBigEndian
	KwLittleEndian
)

var keywords = map[string]Keyword{
	"struct":    KwStruct,
	"union":     KwUnion,
	"enum":      KwEnum,
	"bitfield":  KwBitfield,
	"using":     KwUsing,
	"fn":        KwFn,
	"namespace": KwNamespace,
	"in":        KwIn,
	"out":       KwOut,
	"if":        KwIf,
	"else":      KwElse,
	"while":     KwWhile,
	"for":       KwFor,
	"return":    KwReturn,
	"break":     KwBreak,
	"continue":  KwContinue,
	"this":      KwThis,
	"parent":    KwParent,
	"be":        KwBigEndian,
	"le":        KwLittleEndian,
}

var keywordNames = func() map[Keyword]string {
	m := make(map[Keyword]string, len(keywords))
	for name, kw := range keywords {
		m[kw] = name
	}
	return m
}()

func (k Keyword) String() string {
	if name, ok := keywordNames[k]; ok {
		return name
	}
	return "Keyword(" + strconv.Itoa(int(k)) + ")"
}

// Separator enumerates punctuation.
type Separator uint8

const (
	SepNone Separator = iota
	SepLParen
	SepRParen
	SepLBrace
	SepRBrace
	SepLBracket
	SepRBracket
	SepComma
	SepSemicolon
	SepDot
)

var separators = map[string]Separator{
	"(": SepLParen,
	")": SepRParen,
	"{": SepLBrace,
	"}": SepRBrace,
	"[": SepLBracket,
	"]": SepRBracket,
	",": SepComma,
	";": SepSemicolon,
	".": SepDot,
}

var separatorNames = func() map[Separator]string {
	m := make(map[Separator]string, len(separators))
	for s, sep := range separators {
		m[sep] = s
	}
	return m
}()

func (s Separator) String() string {
	if name, ok := separatorNames[s]; ok {
		return name
	}
	return "Separator(" + strconv.Itoa(int(s)) + ")"
}

var operators = map[string]ast.Operator{
	"+":         ast.OpPlus,
	"-":         ast.OpMinus,
	"*":         ast.OpStar,
	"/":         ast.OpSlash,
	"%":         ast.OpPercent,
	"<<":        ast.OpShiftLeft,
	">>":        ast.OpShiftRight,
	"&":         ast.OpBitAnd,
	"|":         ast.OpBitOr,
	"^":         ast.OpBitXor,
	"~":         ast.OpBitNot,
	"==":        ast.OpEqual,
	"!=":        ast.OpNotEqual,
	">":         ast.OpGreater,
	"<":         ast.OpLess,
	">=":        ast.OpGreaterEqual,
	"<=":        ast.OpLessEqual,
	"&&":        ast.OpBoolAnd,
	"||":        ast.OpBoolOr,
	"^^":        ast.OpBoolXor,
	"!":         ast.OpBoolNot,
	"=":         ast.OpAssign,
	"@":         ast.OpAt,
	"::":        ast.OpScope,
	"$":         ast.OpDollar,
	"?":         ast.OpTernary,
	":":         ast.OpColon,
	"sizeof":    ast.OpSizeOf,
	"addressof": ast.OpAddressOf,
}

// Token is a single lexeme. Which of the value fields is meaningful depends on
// Kind: Keyword, ValueType, Operator, Separator, Ident (identifiers and
// directive names) or Literal (integer and string tokens).
type Token struct {
	Kind      Kind
	Keyword   Keyword
	ValueType ast.ValueType
	Operator  ast.Operator
	Separator Separator
	Ident     string
	Literal   ast.Constant
	Text      string
	Loc       ast.Location
	Doc       string
}

func (t Token) String() string {
	switch t.Kind {
	case KindEndOfProgram:
		return "end of program"
	case KindKeyword:
		return fmt.Sprintf("keyword '%s'", t.Keyword)
	case KindValueType:
		return fmt.Sprintf("type '%s'", t.ValueType)
	case KindOperator:
		return fmt.Sprintf("'%s'", t.Operator)
	case KindSeparator:
		return fmt.Sprintf("'%s'", t.Separator)
	case KindInteger:
		return fmt.Sprintf("literal %s", t.Literal)
	case KindString:
		return fmt.Sprintf("string %s", t.Literal)
	case KindIdentifier:
		return fmt.Sprintf("identifier '%s'", t.Ident)
	case KindDirective:
		return fmt.Sprintf("directive '#%s'", t.Ident)
	}
	return t.Text
}
