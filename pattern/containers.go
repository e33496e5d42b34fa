package pattern

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"
)

const containerValue = "{ ... }"

// Struct is a record of sequentially placed members.
type Struct struct {
	Base
	Members []Pattern
}

func (s *Struct) Common() *Base        { return &s.Base }
func (s *Struct) Children() []Pattern  { return s.Members }
func (s *Struct) Accept(v Visitor)     { v.VisitStruct(s) }
func (s *Struct) format(Reader) string { return containerValue }

func (s *Struct) Clone() Pattern {
	return &Struct{Base: s.clone(), Members: cloneAll(s.Members)}
}

// Member returns the member called name.
func (s *Struct) Member(name string) (Pattern, bool) {
	return findMember(s.Members, name)
}

// Union overlays all members at its own offset.
type Union struct {
	Base
	Members []Pattern
}

func (u *Union) Common() *Base        { return &u.Base }
func (u *Union) Children() []Pattern  { return u.Members }
func (u *Union) Accept(v Visitor)     { v.VisitUnion(u) }
func (u *Union) format(Reader) string { return containerValue }

func (u *Union) Clone() Pattern {
	return &Union{Base: u.clone(), Members: cloneAll(u.Members)}
}

func (u *Union) Member(name string) (Pattern, bool) {
	return findMember(u.Members, name)
}

// StaticArray is Count copies of Template laid out back to back. Entries are
// produced on demand, so the array costs a single pattern regardless of
// Count.
type StaticArray struct {
	Base
	Template Pattern
	Count    uint64
}

func (a *StaticArray) Common() *Base        { return &a.Base }
func (a *StaticArray) Accept(v Visitor)     { v.VisitStaticArray(a) }
func (a *StaticArray) format(Reader) string { return containerValue }

func (a *StaticArray) Clone() Pattern {
	return &StaticArray{Base: a.clone(), Template: a.Template.Clone(), Count: a.Count}
}

// Stride returns the size of one entry.
func (a *StaticArray) Stride() uint64 {
	return a.Template.Common().Size
}

// Entry returns a fresh pattern for entry i.
func (a *StaticArray) Entry(i uint64) Pattern {
	e := a.Template.Clone()
	Move(e, a.Offset+i*a.Stride())
	e.Common().Name = "[" + strconv.FormatUint(i, 10) + "]"
	return e
}

// Children materializes every entry, cloning the template Count times.
// Use Entry to visit large arrays.
func (a *StaticArray) Children() []Pattern {
	out := make([]Pattern, a.Count)
	for i := range out {
		out[i] = a.Entry(uint64(i))
	}
	return out
}

// DynamicArray holds individually evaluated entries, sorted by offset.
type DynamicArray struct {
	Base
	Entries []Pattern
}

func (a *DynamicArray) Common() *Base        { return &a.Base }
func (a *DynamicArray) Children() []Pattern  { return a.Entries }
func (a *DynamicArray) Accept(v Visitor)     { v.VisitDynamicArray(a) }
func (a *DynamicArray) format(Reader) string { return containerValue }

func (a *DynamicArray) Clone() Pattern {
	return &DynamicArray{Base: a.clone(), Entries: cloneAll(a.Entries)}
}

// Bitfield is a container whose fields address bit ranges.
type Bitfield struct {
	Base
	Fields []*BitfieldField
}

func (b *Bitfield) Common() *Base        { return &b.Base }
func (b *Bitfield) Accept(v Visitor)     { v.VisitBitfield(b) }
func (b *Bitfield) format(Reader) string { return containerValue }

func (b *Bitfield) Children() []Pattern {
	out := make([]Pattern, len(b.Fields))
	for i, f := range b.Fields {
		out[i] = f
	}
	return out
}

func (b *Bitfield) Clone() Pattern {
	c := &Bitfield{Base: b.clone()}
	for _, f := range b.Fields {
		c.Fields = append(c.Fields, f.Clone().(*BitfieldField))
	}
	return c
}

// Field returns the field called name.
func (b *Bitfield) Field(name string) (*BitfieldField, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// FieldKind is the value type of a bitfield field.
type FieldKind uint8

const (
	FieldUnsigned FieldKind = iota
	FieldSigned
	FieldBoolean
	FieldEnum
)

// BitfieldField is BitSize bits of its container starting at BitOffset.
// Bits are numbered from the least significant bit of the container for
// little endian containers and from the most significant one for big endian
// containers, so the field's first byte is always ContainerOffset +
// BitOffset/8.
type BitfieldField struct {
	Base
	Kind            FieldKind
	BitOffset       uint64
	BitSize         uint64
	ContainerOffset uint64
	ContainerSize   uint64
	Entries         []EnumEntry
}

func (f *BitfieldField) Common() *Base       { return &f.Base }
func (f *BitfieldField) Children() []Pattern { return nil }
func (f *BitfieldField) Accept(v Visitor)    { v.VisitBitfieldField(f) }

func (f *BitfieldField) Clone() Pattern {
	c := *f
	c.Base = f.clone()
	return &c
}

// Raw reads the field bits as an unsigned number.
func (f *BitfieldField) Raw(r Reader) (*big.Int, error) {
	container, err := readUint(r, f.ContainerOffset, f.ContainerSize, f.ByteOrder())
	if err != nil {
		return nil, err
	}
	shift := f.BitOffset
	if f.ByteOrder() == binary.BigEndian {
		shift = f.ContainerSize*8 - f.BitOffset - f.BitSize
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(f.BitSize)), big.NewInt(1))
	return new(big.Int).And(new(big.Int).Rsh(container, uint(shift)), mask), nil
}

// Value returns the field value, sign-extended for signed fields.
func (f *BitfieldField) Value(r Reader) (*big.Int, error) {
	raw, err := f.Raw(r)
	if err != nil {
		return nil, err
	}
	if f.Kind == FieldSigned {
		return signExtend(raw, uint(f.BitSize)), nil
	}
	return raw, nil
}

func (f *BitfieldField) format(r Reader) string {
	raw, err := f.Raw(r)
	if err != nil {
		return unreadable(err)
	}
	digits := (f.BitSize + 3) / 4
	switch f.Kind {
	case FieldBoolean:
		if raw.Sign() != 0 {
			return "true"
		}
		return "false"
	case FieldEnum:
		return formatEnum(f.TypeName, f.Entries, raw, digits)
	case FieldSigned:
		return fmt.Sprintf("%s (%s)", signExtend(raw, uint(f.BitSize)), hexValue(raw, digits))
	}
	return fmt.Sprintf("%s (%s)", raw, hexValue(raw, digits))
}

// Pointer is an address stored in the source together with the pattern
// placed at that address.
type Pointer struct {
	Base
	Pointee Pattern
	// PointerBase is added to the stored address to find the pointee.
	PointerBase int64
}

func (p *Pointer) Common() *Base    { return &p.Base }
func (p *Pointer) Accept(v Visitor) { v.VisitPointer(p) }

func (p *Pointer) Children() []Pattern {
	if p.Pointee == nil {
		return nil
	}
	return []Pattern{p.Pointee}
}

func (p *Pointer) Clone() Pattern {
	c := &Pointer{Base: p.clone(), PointerBase: p.PointerBase}
	if p.Pointee != nil {
		c.Pointee = p.Pointee.Clone()
	}
	return c
}

// Address reads the stored address.
func (p *Pointer) Address(r Reader) (uint64, error) {
	v, err := readUint(r, p.Offset, p.Size, p.ByteOrder())
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// Rebase moves the pointee to the stored address plus base.
func (p *Pointer) Rebase(base int64, r Reader) error {
	addr, err := p.Address(r)
	if err != nil {
		return err
	}
	p.PointerBase = base
	if p.Pointee != nil {
		Move(p.Pointee, addr+uint64(base))
	}
	return nil
}

func (p *Pointer) format(r Reader) string {
	addr, err := p.Address(r)
	if err != nil {
		return unreadable(err)
	}
	return fmt.Sprintf("*(0x%X)", addr+uint64(p.PointerBase))
}

// Move relocates p and everything placed relative to it so that p starts at
// offset. Pointees are left where they are.
func Move(p Pattern, offset uint64) {
	shift(p, offset-p.Common().Offset)
}

func shift(p Pattern, delta uint64) {
	if delta == 0 {
		return
	}
	b := p.Common()
	b.Offset += delta
	b.extent = nil
	switch v := p.(type) {
	case *Struct:
		for _, m := range v.Members {
			shift(m, delta)
		}
	case *Union:
		for _, m := range v.Members {
			shift(m, delta)
		}
	case *DynamicArray:
		for _, e := range v.Entries {
			shift(e, delta)
		}
	case *StaticArray:
		shift(v.Template, delta)
	case *Bitfield:
		for _, f := range v.Fields {
			shift(f, delta)
		}
	case *BitfieldField:
		v.ContainerOffset += delta
	}
}

func cloneAll(ps []Pattern) []Pattern {
	if ps == nil {
		return nil
	}
	out := make([]Pattern, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

func findMember(ps []Pattern, name string) (Pattern, bool) {
	for _, p := range ps {
		if p.Common().Name == name {
			return p, true
		}
	}
	return nil, false
}
