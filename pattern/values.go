package pattern

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Unsigned is an unsigned integer of 1 to 16 bytes.
type Unsigned struct {
	Base
}

func (u *Unsigned) Common() *Base       { return &u.Base }
func (u *Unsigned) Children() []Pattern { return nil }
func (u *Unsigned) Accept(v Visitor)    { v.VisitUnsigned(u) }
func (u *Unsigned) Clone() Pattern      { return &Unsigned{Base: u.clone()} }

// Value reads the integer.
func (u *Unsigned) Value(r Reader) (*big.Int, error) {
	return readUint(r, u.Offset, u.Size, u.ByteOrder())
}

func (u *Unsigned) format(r Reader) string {
	v, err := u.Value(r)
	if err != nil {
		return unreadable(err)
	}
	return fmt.Sprintf("%s (%s)", v, hexValue(v, u.Size*2))
}

// Signed is a two's complement integer of 1 to 16 bytes.
type Signed struct {
	Base
}

func (s *Signed) Common() *Base       { return &s.Base }
func (s *Signed) Children() []Pattern { return nil }
func (s *Signed) Accept(v Visitor)    { v.VisitSigned(s) }
func (s *Signed) Clone() Pattern      { return &Signed{Base: s.clone()} }

// Value reads the sign-extended integer.
func (s *Signed) Value(r Reader) (*big.Int, error) {
	raw, err := readUint(r, s.Offset, s.Size, s.ByteOrder())
	if err != nil {
		return nil, err
	}
	return signExtend(raw, uint(s.Size*8)), nil
}

func (s *Signed) format(r Reader) string {
	raw, err := readUint(r, s.Offset, s.Size, s.ByteOrder())
	if err != nil {
		return unreadable(err)
	}
	return fmt.Sprintf("%s (%s)", signExtend(raw, uint(s.Size*8)), hexValue(raw, s.Size*2))
}

// Float is an IEEE-754 float (4 bytes) or double (8 bytes).
type Float struct {
	Base
}

func (f *Float) Common() *Base       { return &f.Base }
func (f *Float) Children() []Pattern { return nil }
func (f *Float) Accept(v Visitor)    { v.VisitFloat(f) }
func (f *Float) Clone() Pattern      { return &Float{Base: f.clone()} }

// Value reads the number, widened to float64.
func (f *Float) Value(r Reader) (float64, error) {
	raw, err := readUint(r, f.Offset, f.Size, f.ByteOrder())
	if err != nil {
		return 0, err
	}
	if f.Size == 4 {
		return float64(math.Float32frombits(uint32(raw.Uint64()))), nil
	}
	return math.Float64frombits(raw.Uint64()), nil
}

func (f *Float) format(r Reader) string {
	raw, err := readUint(r, f.Offset, f.Size, f.ByteOrder())
	if err != nil {
		return unreadable(err)
	}
	v, _ := f.Value(r)
	return fmt.Sprintf("%e (%s)", v, hexValue(raw, f.Size*2))
}

// Boolean is a one byte truth value; any non-zero byte is true.
type Boolean struct {
	Base
}

func (b *Boolean) Common() *Base       { return &b.Base }
func (b *Boolean) Children() []Pattern { return nil }
func (b *Boolean) Accept(v Visitor)    { v.VisitBoolean(b) }
func (b *Boolean) Clone() Pattern      { return &Boolean{Base: b.clone()} }

func (b *Boolean) Value(r Reader) (bool, error) {
	var buf [1]byte
	if err := r.ReadAt(b.Offset, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

func (b *Boolean) format(r Reader) string {
	v, err := b.Value(r)
	if err != nil {
		return unreadable(err)
	}
	if v {
		return "true"
	}
	return "false"
}

// Character is a single byte character.
type Character struct {
	Base
}

func (c *Character) Common() *Base       { return &c.Base }
func (c *Character) Children() []Pattern { return nil }
func (c *Character) Accept(v Visitor)    { v.VisitCharacter(c) }
func (c *Character) Clone() Pattern      { return &Character{Base: c.clone()} }

func (c *Character) Value(r Reader) (byte, error) {
	var buf [1]byte
	if err := r.ReadAt(c.Offset, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *Character) format(r Reader) string {
	v, err := c.Value(r)
	if err != nil {
		return unreadable(err)
	}
	return "'" + escapeByte(v, '\'') + "'"
}

// WideCharacter is a UTF-16 code unit.
type WideCharacter struct {
	Base
}

func (c *WideCharacter) Common() *Base       { return &c.Base }
func (c *WideCharacter) Children() []Pattern { return nil }
func (c *WideCharacter) Accept(v Visitor)    { v.VisitWideCharacter(c) }
func (c *WideCharacter) Clone() Pattern      { return &WideCharacter{Base: c.clone()} }

func (c *WideCharacter) Value(r Reader) (uint16, error) {
	v, err := readUint(r, c.Offset, 2, c.ByteOrder())
	if err != nil {
		return 0, err
	}
	return uint16(v.Uint64()), nil
}

func (c *WideCharacter) format(r Reader) string {
	v, err := c.Value(r)
	if err != nil {
		return unreadable(err)
	}
	return "'" + escapeRune(rune(v), '\'') + "'"
}

// String is a fixed size byte string. Trailing NULs are not displayed.
type String struct {
	Base
	// DisplayLimit truncates the formatted value; zero means no limit.
	DisplayLimit uint64
}

func (s *String) Common() *Base       { return &s.Base }
func (s *String) Children() []Pattern { return nil }
func (s *String) Accept(v Visitor)    { v.VisitString(s) }

func (s *String) Clone() Pattern {
	c := *s
	c.Base = s.clone()
	return &c
}

// Value reads the string without trailing NULs.
func (s *String) Value(r Reader) (string, error) {
	buf, err := Bytes(s, r)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

func (s *String) format(r Reader) string {
	v, err := s.Value(r)
	if err != nil {
		return unreadable(err)
	}
	var b strings.Builder
	truncated := s.DisplayLimit > 0 && uint64(len(v)) > s.DisplayLimit
	if truncated {
		v = v[:s.DisplayLimit]
	}
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		b.WriteString(escapeByte(v[i], '"'))
	}
	b.WriteByte('"')
	if truncated {
		b.WriteString(" [truncated]")
	}
	return b.String()
}

// WideString is a fixed size UTF-16 string.
type WideString struct {
	Base
	DisplayLimit uint64
}

func (s *WideString) Common() *Base       { return &s.Base }
func (s *WideString) Children() []Pattern { return nil }
func (s *WideString) Accept(v Visitor)    { v.VisitWideString(s) }

func (s *WideString) Clone() Pattern {
	c := *s
	c.Base = s.clone()
	return &c
}

// Value decodes the string, dropping trailing NUL code units.
func (s *WideString) Value(r Reader) (string, error) {
	buf, err := Bytes(s, r)
	if err != nil {
		return "", err
	}
	units := make([]uint16, len(buf)/2)
	order := s.ByteOrder()
	for i := range units {
		units[i] = order.Uint16(buf[i*2:])
	}
	for len(units) > 0 && units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}
	return string(utf16.Decode(units)), nil
}

func (s *WideString) format(r Reader) string {
	v, err := s.Value(r)
	if err != nil {
		return unreadable(err)
	}
	runes := []rune(v)
	truncated := s.DisplayLimit > 0 && uint64(len(runes)) > s.DisplayLimit
	if truncated {
		runes = runes[:s.DisplayLimit]
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range runes {
		b.WriteString(escapeRune(c, '"'))
	}
	b.WriteByte('"')
	if truncated {
		b.WriteString(" [truncated]")
	}
	return b.String()
}

// EnumEntry maps a raw value to an enumerator name.
type EnumEntry struct {
	Name  string
	Value *big.Int
}

// Enum is an integer displayed through its enumerator name.
type Enum struct {
	Base
	Entries []EnumEntry
}

func (e *Enum) Common() *Base       { return &e.Base }
func (e *Enum) Children() []Pattern { return nil }
func (e *Enum) Accept(v Visitor)    { v.VisitEnum(e) }

func (e *Enum) Clone() Pattern {
	c := *e
	c.Base = e.clone()
	return &c
}

// Value reads the raw underlying integer.
func (e *Enum) Value(r Reader) (*big.Int, error) {
	return readUint(r, e.Offset, e.Size, e.ByteOrder())
}

// Lookup returns the first enumerator whose value is v.
func (e *Enum) Lookup(v *big.Int) (string, bool) {
	return lookupEnum(e.Entries, v)
}

func (e *Enum) format(r Reader) string {
	v, err := e.Value(r)
	if err != nil {
		return unreadable(err)
	}
	return formatEnum(e.TypeName, e.Entries, v, e.Size*2)
}

func lookupEnum(entries []EnumEntry, v *big.Int) (string, bool) {
	for _, entry := range entries {
		if entry.Value.Cmp(v) == 0 {
			return entry.Name, true
		}
	}
	return "", false
}

func formatEnum(typeName string, entries []EnumEntry, v *big.Int, digits uint64) string {
	name, ok := lookupEnum(entries, v)
	if !ok {
		name = "???"
	}
	return fmt.Sprintf("%s::%s (%s)", typeName, name, hexValue(v, digits))
}

// Padding is skipped space. It has no value.
type Padding struct {
	Base
}

func (p *Padding) Common() *Base        { return &p.Base }
func (p *Padding) Children() []Pattern  { return nil }
func (p *Padding) Accept(v Visitor)     { v.VisitPadding(p) }
func (p *Padding) Clone() Pattern       { return &Padding{Base: p.clone()} }
func (p *Padding) format(Reader) string { return "" }

// Error marks a location evaluation could not complete, such as a read past
// the end of the source.
type Error struct {
	Base
	Message string
}

func (e *Error) Common() *Base        { return &e.Base }
func (e *Error) Children() []Pattern  { return nil }
func (e *Error) Accept(v Visitor)     { v.VisitError(e) }
func (e *Error) format(Reader) string { return e.Message }

func (e *Error) Clone() Pattern {
	c := *e
	c.Base = e.clone()
	return &c
}

func escapeByte(c, quote byte) string {
	switch {
	case c == quote || c == '\\':
		return `\` + string(rune(c))
	case c >= 0x20 && c < 0x7f:
		return string(rune(c))
	}
	return fmt.Sprintf(`\x%02X`, c)
}

func escapeRune(c rune, quote byte) string {
	switch {
	case c < 0x80:
		return escapeByte(byte(c), quote)
	case unicode.IsPrint(c):
		return string(c)
	}
	return fmt.Sprintf(`\u%04X`, c)
}
