package evaluator

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	ahocorasick "github.com/pgavlin/aho-corasick"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/pattern"
)

type builtin struct {
	// max is -1 for variadic functions.
	min, max int
	fn       func(s *state, c *ast.FunctionCall, args []value) (value, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"std::print":   {1, -1, builtinPrint(false)},
		"std::warning": {1, -1, builtinPrint(true)},
		"std::assert":  {2, 2, builtinAssert},
		"std::error":   {1, 1, builtinError},

		"std::mem::read_u8":       {1, 1, readFixed(1)},
		"std::mem::read_u16":      {1, 1, readFixed(2)},
		"std::mem::read_u32":      {1, 1, readFixed(4)},
		"std::mem::read_u64":      {1, 1, readFixed(8)},
		"std::mem::read_unsigned": {2, 2, readInteger(false)},
		"std::mem::read_signed":   {2, 2, readInteger(true)},
		"std::mem::read_string":   {2, 2, readString},
		"std::mem::size":          {0, 0, memSize},
		"std::mem::base_address":  {0, 0, baseAddress},
		"std::mem::eof":           {0, 0, eof},
		"std::mem::find_sequence": {2, -1, findSequence},

		"std::string::length":    {1, 1, stringLength},
		"std::string::at":        {2, 2, stringAt},
		"std::string::substr":    {3, 3, substr},
		"std::string::to_string": {1, 1, toStringBuiltin},
	}
}

func builtinPrint(warning bool) func(*state, *ast.FunctionCall, []value) (value, error) {
	return func(s *state, c *ast.FunctionCall, args []value) (value, error) {
		f, err := s.evalString(args[0], c)
		if err != nil {
			return value{}, err
		}
		line, err := s.format(f, args[1:], c)
		if err != nil {
			return value{}, err
		}
		s.print(line, warning)
		return value{}, nil
	}
}

// format substitutes `{}` placeholders. A placeholder may carry one of the
// specs x, X, #x, #X, o, b or d after a colon; `{{` and `}}` are literal
// braces.
func (s *state) format(f string, args []value, c *ast.FunctionCall) (string, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(f); i++ {
		ch := f[i]
		switch {
		case (ch == '{' || ch == '}') && i+1 < len(f) && f[i+1] == ch:
			b.WriteByte(ch)
			i++
		case ch == '{':
			end := strings.IndexByte(f[i:], '}')
			if end < 0 || next >= len(args) {
				b.WriteString(f[i:])
				return b.String(), nil
			}
			text, err := s.formatArg(args[next], strings.TrimPrefix(f[i+1:i+end], ":"), c)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
			next++
			i += end
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

func (s *state) formatArg(v value, spec string, c *ast.FunctionCall) (string, error) {
	verb := map[string]string{"x": "%x", "X": "%X", "#x": "%#x", "#X": "%#X", "o": "%o", "b": "%b", "d": "%d"}[spec]
	if verb == "" {
		return s.toString(v, c)
	}
	sv, err := s.scalar(v, c)
	if err != nil {
		return "", err
	}
	if !sv.isInteger() {
		return s.toString(v, c)
	}
	return fmt.Sprintf(verb, sv.i), nil
}

// toString renders a value for the console. Scalar patterns show their value,
// other patterns their formatted value.
func (s *state) toString(v value, node ast.Node) (string, error) {
	if v.kind == kindPattern {
		switch v.p.(type) {
		case *pattern.Enum, *pattern.Struct, *pattern.Union, *pattern.StaticArray,
			*pattern.DynamicArray, *pattern.Bitfield, *pattern.Padding, *pattern.Error:
			return pattern.Format(v.p, s.reader), nil
		}
		sv, err := s.load(v.p, node)
		if err != nil {
			return "", err
		}
		v = sv
	}
	return v.text(), nil
}

func (s *state) evalString(v value, node ast.Node) (string, error) {
	sv, err := s.scalar(v, node)
	if err != nil {
		return "", err
	}
	if sv.kind != kindString && sv.kind != kindChar {
		return "", errorf(TypeMismatch, node, "expected a string, got a %s", sv.kind)
	}
	return sv.text(), nil
}

func builtinAssert(s *state, c *ast.FunctionCall, args []value) (value, error) {
	cond, err := s.scalar(args[0], c)
	if err != nil {
		return value{}, err
	}
	ok, valid := cond.truthy()
	if !valid {
		return value{}, errorf(TypeMismatch, c, "a %s cannot be used as a condition", cond.kind)
	}
	if ok {
		return value{}, nil
	}
	msg, err := s.toString(args[1], c)
	if err != nil {
		return value{}, err
	}
	return value{}, errorf(UserAbort, c, "assertion failed: %s", msg)
}

func builtinError(s *state, c *ast.FunctionCall, args []value) (value, error) {
	msg, err := s.toString(args[0], c)
	if err != nil {
		return value{}, err
	}
	return value{}, errorf(UserAbort, c, "%s", msg)
}

// readUint reads size bytes at a pattern offset.
func (s *state) readUint(node ast.Node, offset, size uint64, order binary.ByteOrder) (*big.Int, error) {
	if err := s.checkBounds(node, offset, size); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if err := s.reader.ReadAt(offset, buf); err != nil {
		return nil, outOfBounds(node, offset, "reading %d bytes: %v", size, err)
	}
	if order == binary.LittleEndian {
		for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
	return new(big.Int).SetBytes(buf), nil
}

func readFixed(size uint64) func(*state, *ast.FunctionCall, []value) (value, error) {
	return func(s *state, c *ast.FunctionCall, args []value) (value, error) {
		addr, err := s.toOffset(args[0], c)
		if err != nil {
			return value{}, err
		}
		v, err := s.readUint(c, addr, size, s.cfg.DefaultEndian)
		if err != nil {
			return value{}, err
		}
		return unsignedOf(v), nil
	}
}

func readInteger(signed bool) func(*state, *ast.FunctionCall, []value) (value, error) {
	return func(s *state, c *ast.FunctionCall, args []value) (value, error) {
		addr, err := s.toOffset(args[0], c)
		if err != nil {
			return value{}, err
		}
		size, err := s.toOffset(args[1], c)
		if err != nil {
			return value{}, err
		}
		if size == 0 || size > 16 {
			return value{}, errorf(TypeMismatch, c, "cannot read an integer of %d bytes", size)
		}
		v, err := s.readUint(c, addr, size, s.cfg.DefaultEndian)
		if err != nil {
			return value{}, err
		}
		if signed {
			return signedOf(wrapSigned(v, uint(size*8))), nil
		}
		return unsignedOf(v), nil
	}
}

func readString(s *state, c *ast.FunctionCall, args []value) (value, error) {
	addr, err := s.toOffset(args[0], c)
	if err != nil {
		return value{}, err
	}
	size, err := s.toOffset(args[1], c)
	if err != nil {
		return value{}, err
	}
	if err := s.checkBounds(c, addr, size); err != nil {
		return value{}, err
	}
	buf := make([]byte, size)
	if err := s.reader.ReadAt(addr, buf); err != nil {
		return value{}, outOfBounds(c, addr, "reading %d bytes: %v", size, err)
	}
	return stringOf(string(buf)), nil
}

func memSize(s *state, _ *ast.FunctionCall, _ []value) (value, error) {
	return uintValue(s.size), nil
}

func baseAddress(s *state, _ *ast.FunctionCall, _ []value) (value, error) {
	return uintValue(s.src.BaseAddress()), nil
}

func eof(s *state, _ *ast.FunctionCall, _ []value) (value, error) {
	return boolOf(*s.dollar() >= s.size), nil
}

// findSequence returns the offset of the occurrence-th match of the given
// bytes, or -1.
func findSequence(s *state, c *ast.FunctionCall, args []value) (value, error) {
	occurrence, err := s.toOffset(args[0], c)
	if err != nil {
		return value{}, err
	}
	needle := make([]byte, len(args)-1)
	for i, arg := range args[1:] {
		b, err := s.toOffset(arg, c)
		if err != nil {
			return value{}, err
		}
		needle[i] = byte(b)
	}
	data := make([]byte, s.size)
	if err := s.reader.ReadAt(0, data); err != nil {
		return value{}, outOfBounds(c, 0, "reading data: %v", err)
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{MatchKind: ahocorasick.StandardMatch})
	ac := builder.BuildByte([][]byte{needle})
	iter := ac.IterOverlappingByte(data)
	for match := iter.Next(); match != nil; match = iter.Next() {
		if occurrence == 0 {
			return uintValue(uint64(match.Start())), nil
		}
		occurrence--
	}
	return signedOf(big.NewInt(-1)), nil
}

func stringLength(s *state, c *ast.FunctionCall, args []value) (value, error) {
	str, err := s.evalString(args[0], c)
	if err != nil {
		return value{}, err
	}
	return uintValue(uint64(len(str))), nil
}

func stringAt(s *state, c *ast.FunctionCall, args []value) (value, error) {
	str, err := s.evalString(args[0], c)
	if err != nil {
		return value{}, err
	}
	i, err := s.toOffset(args[1], c)
	if err != nil {
		return value{}, err
	}
	if i >= uint64(len(str)) {
		return value{}, errorf(OutOfBounds, c, "index %d is out of range for a string of length %d", i, len(str))
	}
	return charOf(rune(str[i])), nil
}

// substr clamps pos and length to the string.
func substr(s *state, c *ast.FunctionCall, args []value) (value, error) {
	str, err := s.evalString(args[0], c)
	if err != nil {
		return value{}, err
	}
	pos, err := s.toOffset(args[1], c)
	if err != nil {
		return value{}, err
	}
	n, err := s.toOffset(args[2], c)
	if err != nil {
		return value{}, err
	}
	pos = min(pos, uint64(len(str)))
	end := pos + min(n, uint64(len(str))-pos)
	return stringOf(str[pos:end]), nil
}

func toStringBuiltin(s *state, c *ast.FunctionCall, args []value) (value, error) {
	str, err := s.toString(args[0], c)
	if err != nil {
		return value{}, err
	}
	return stringOf(str), nil
}
