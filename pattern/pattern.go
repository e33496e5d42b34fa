// Package pattern implements the tree of typed, addressed values produced by
// evaluating a pattern program.
//
// Patterns never cache the bytes they describe. Values are read through a
// Reader whenever they are formatted or compared, so edits to the underlying
// source are reflected without re-evaluation.
package pattern

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync/atomic"
)

// Reader reads the bytes behind patterns. Offsets are pattern offsets, not
// byte source addresses.
type Reader interface {
	ReadAt(offset uint64, out []byte) error
}

// Visibility controls how a pattern is presented. It has no effect on
// evaluation.
type Visibility uint8

const (
	Visible Visibility = iota
	// Hidden patterns are neither highlighted nor shown in the tree.
	Hidden
	HighlightHidden
	TreeHidden
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case HighlightHidden:
		return "highlight_hidden"
	case TreeHidden:
		return "tree_hidden"
	default:
		return "visible"
	}
}

// Formatter replaces the formatted value of a pattern.
type Formatter func(p Pattern) (string, error)

// Pattern is implemented by every pattern variant.
type Pattern interface {
	// Common returns the fields shared by all variants.
	Common() *Base
	// Children returns the direct children; nil for scalars.
	Children() []Pattern
	// Clone returns a deep copy keeping the original color.
	Clone() Pattern
	Accept(v Visitor)

	format(r Reader) string
}

// Base holds the fields common to all patterns.
type Base struct {
	Offset   uint64
	Size     uint64
	Name     string
	TypeName string
	Comment  string
	Color    uint32
	Endian   binary.ByteOrder

	// DisplayName overrides Name in presentation (hex::spec_name, name).
	DisplayName string
	Visibility  Visibility
	// Local patterns are evaluator variables, not part of the tree.
	Local bool
	// Inline containers show their children at their own level.
	Inline bool

	Favorite         bool
	Group            string
	Visualizer       []string
	InlineVisualizer []string
	Formatter        Formatter

	manualColor bool
	// extent covers the pattern and all descendants; set by NewTree.
	extent *span
}

type span struct {
	start, end uint64
}

// NewBase returns a Base at offset with the next palette color.
func NewBase(offset, size uint64) Base {
	return Base{Offset: offset, Size: size, Color: NextColor()}
}

// End returns the first offset past the pattern.
func (b *Base) End() uint64 {
	return b.Offset + b.Size
}

// Contains reports whether offset lies inside the pattern.
func (b *Base) Contains(offset uint64) bool {
	return offset >= b.Offset && offset-b.Offset < b.Size
}

// Label returns the display name, falling back to the variable name.
func (b *Base) Label() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.Name
}

// SetColor assigns an explicit color.
func (b *Base) SetColor(c uint32) {
	b.Color = c
	b.manualColor = true
}

// ManualColor reports whether the color was set explicitly.
func (b *Base) ManualColor() bool { return b.manualColor }

// ByteOrder returns the pattern's endianness, little endian if unset.
func (b *Base) ByteOrder() binary.ByteOrder {
	if b.Endian == nil {
		return binary.LittleEndian
	}
	return b.Endian
}

func (b *Base) clone() Base {
	c := *b
	c.Visualizer = append([]string(nil), b.Visualizer...)
	c.InlineVisualizer = append([]string(nil), b.InlineVisualizer...)
	return c
}

// Format returns the string shown for p's value, honoring a custom formatter.
func Format(p Pattern, r Reader) string {
	if f := p.Common().Formatter; f != nil {
		s, err := f(p)
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		return s
	}
	return p.format(r)
}

// Bytes reads the raw bytes of p.
func Bytes(p Pattern, r Reader) ([]byte, error) {
	b := p.Common()
	buf := make([]byte, b.Size)
	if err := r.ReadAt(b.Offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Palette holds the default pattern colors as ARGB.
var Palette = [...]uint32{
	0x70B4771F, 0x700E7FFF, 0x702CA02C, 0x702827D6, 0x70BD6794,
	0x704B568C, 0x70C277E3, 0x707F7F7F, 0x7022BDBC, 0x70CFBE17,
}

var paletteIndex atomic.Uint32

// NextColor returns the next palette color. It is safe for concurrent use;
// the sequence is not deterministic across goroutines.
func NextColor() uint32 {
	i := paletteIndex.Add(1) - 1
	return Palette[i%uint32(len(Palette))]
}

// ResetPalette restarts the color rotation.
func ResetPalette() {
	paletteIndex.Store(0)
}

// readUint reads size bytes at offset as an unsigned integer.
func readUint(r Reader, offset, size uint64, order binary.ByteOrder) (*big.Int, error) {
	buf := make([]byte, size)
	if err := r.ReadAt(offset, buf); err != nil {
		return nil, err
	}
	if order != binary.BigEndian {
		for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
	return new(big.Int).SetBytes(buf), nil
}

// signExtend interprets the low bits of v as a two's complement number.
func signExtend(v *big.Int, bits uint) *big.Int {
	if bits == 0 || v.Bit(int(bits-1)) == 0 {
		return v
	}
	return new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), bits))
}

func hexValue(raw *big.Int, digits uint64) string {
	return fmt.Sprintf("0x%0*X", int(digits), raw)
}

func unreadable(err error) string {
	return fmt.Sprintf("<unreadable: %v>", err)
}
