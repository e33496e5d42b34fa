package evaluator

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/pattern"
	"github.com/sansecio/hexpat/provider"
)

func evaluate(t *testing.T, data []byte, source string, opts ...Option) (*pattern.Tree, *Evaluator) {
	t.Helper()
	prog, err := parser.New().ParseString("test", source)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	e := New(provider.NewMemory(data), opts...)
	tree, err := e.Evaluate(context.Background(), prog)
	if err != nil {
		t.Fatalf("failed to evaluate: %v", err)
	}
	return tree, e
}

func mustFail(t *testing.T, data []byte, source string, kind Kind) *Error {
	t.Helper()
	prog, err := parser.New().ParseString("test", source)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	_, err = New(provider.NewMemory(data)).Evaluate(context.Background(), prog)
	if err == nil {
		t.Fatalf("expected %s error", kind)
	}
	var eerr *Error
	if !errors.As(err, &eerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if eerr.Kind != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, eerr.Kind, err)
	}
	return eerr
}

func root(t *testing.T, tree *pattern.Tree, name string) pattern.Pattern {
	t.Helper()
	for _, p := range tree.Roots() {
		if p.Common().Name == name {
			return p
		}
	}
	t.Fatalf("no root pattern %q", name)
	return nil
}

// member follows a path of struct, union and bitfield member names.
func member(t *testing.T, p pattern.Pattern, path ...string) pattern.Pattern {
	t.Helper()
	for _, name := range path {
		var (
			next pattern.Pattern
			ok   bool
		)
		switch c := p.(type) {
		case *pattern.Struct:
			next, ok = c.Member(name)
		case *pattern.Union:
			next, ok = c.Member(name)
		case *pattern.Bitfield:
			var f *pattern.BitfieldField
			if f, ok = c.Field(name); ok {
				next = f
			}
		case *pattern.Pointer:
			next, ok = member(t, c.Pointee, name), true
		}
		if !ok {
			t.Fatalf("%q has no member %q", p.Common().Name, name)
		}
		p = next
	}
	return p
}

func integer(t *testing.T, tree *pattern.Tree, p pattern.Pattern) uint64 {
	t.Helper()
	var (
		v   *big.Int
		err error
	)
	switch n := p.(type) {
	case *pattern.Unsigned:
		v, err = n.Value(tree.Reader())
	case *pattern.Signed:
		v, err = n.Value(tree.Reader())
	case *pattern.Enum:
		v, err = n.Value(tree.Reader())
	case *pattern.BitfieldField:
		v, err = n.Value(tree.Reader())
	default:
		t.Fatalf("%q is a %T, not an integer", p.Common().Name, p)
	}
	if err != nil {
		t.Fatalf("reading %q: %v", p.Common().Name, err)
	}
	return v.Uint64()
}

func TestScenarioStruct(t *testing.T) {
	tree, _ := evaluate(t, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01, 0x00, 0x02}, `
struct Header {
    u32 magic;
    u16 version;
    u16 count;
};
Header hdr @ 0x0;
`)
	hdr := root(t, tree, "hdr")
	if hdr.Common().Size != 8 || hdr.Common().TypeName != "Header" {
		t.Errorf("hdr: size %d type %q", hdr.Common().Size, hdr.Common().TypeName)
	}
	for _, tt := range []struct {
		name string
		want uint64
	}{
		{"magic", 0xEFBEADDE},
		{"version", 0x0100},
		{"count", 0x0200},
	} {
		if got := integer(t, tree, member(t, hdr, tt.name)); got != tt.want {
			t.Errorf("hdr.%s = 0x%X, want 0x%X", tt.name, got, tt.want)
		}
	}
}

func TestScenarioPointer(t *testing.T) {
	data := make([]byte, 0x20)
	data[0] = 0x10
	data[0x10] = 0x2A
	tree, _ := evaluate(t, data, `
u32 target @ 0x10;
u32 *p : u16 @ 0x00;
`)
	p, ok := root(t, tree, "p").(*pattern.Pointer)
	if !ok {
		t.Fatalf("p is %T", root(t, tree, "p"))
	}
	if p.Size != 2 || p.TypeName != "u32*" {
		t.Errorf("pointer: size %d type %q", p.Size, p.TypeName)
	}
	if p.Pointee.Common().Offset != 0x10 {
		t.Errorf("pointee offset = 0x%X, want 0x10", p.Pointee.Common().Offset)
	}
	if got := integer(t, tree, p.Pointee); got != 42 {
		t.Errorf("pointee value = %d, want 42", got)
	}
	if got := tree.Format(p); got != "*(0x10)" {
		t.Errorf("pointer formats as %q", got)
	}
}

func TestScenarioEnum(t *testing.T) {
	source := `
enum Color : u8 { Red = 1, Green = 2, Blue = 4 };
Color c @ 0x0;
`
	for _, tt := range []struct {
		data byte
		want string
	}{
		{0x02, "Color::Green (0x02)"},
		{0x03, "Color::??? (0x03)"},
		{0x04, "Color::Blue (0x04)"},
	} {
		tree, _ := evaluate(t, []byte{tt.data}, source)
		if got := tree.Format(root(t, tree, "c")); got != tt.want {
			t.Errorf("byte 0x%02X: got %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestImplicitEnumValues(t *testing.T) {
	tree, _ := evaluate(t, []byte{0x0B}, `
enum E : u8 { A = 10, B, C = 0x20, D };
E e @ 0;
`)
	e := root(t, tree, "e").(*pattern.Enum)
	var got []string
	for _, entry := range e.Entries {
		got = append(got, entry.Name+"="+entry.Value.String())
	}
	want := []string{"A=10", "B=11", "C=32", "D=33"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}
	if got := tree.Format(e); got != "E::B (0x0B)" {
		t.Errorf("formatted %q", got)
	}
}

func TestScenarioBitfield(t *testing.T) {
	tree, _ := evaluate(t, []byte{0xA5, 0x3C}, `
bitfield Flags { a : 3; b : 5; c : 8; };
Flags f @ 0x0;
`)
	f := root(t, tree, "f").(*pattern.Bitfield)
	if f.Size != 2 || len(f.Fields) != 3 {
		t.Fatalf("bitfield: size %d, %d fields", f.Size, len(f.Fields))
	}
	for _, tt := range []struct {
		name string
		want uint64
	}{
		{"a", 0b101},
		{"b", 0b10100},
		{"c", 0x3C},
	} {
		if got := integer(t, tree, member(t, f, tt.name)); got != tt.want {
			t.Errorf("f.%s = %#b, want %#b", tt.name, got, tt.want)
		}
	}
	if off := member(t, f, "c").Common().Offset; off != 1 {
		t.Errorf("c starts at byte %d, want 1", off)
	}
}

func TestTypedBitfieldFields(t *testing.T) {
	tree, _ := evaluate(t, []byte{0b1111_0101}, `
enum Mode : u8 { Off, On, Auto };
bitfield B {
    bool flag : 1;
    Mode mode : 2;
    padding : 1;
    s8 delta : 4;
};
B b @ 0;
`)
	b := root(t, tree, "b").(*pattern.Bitfield)
	if len(b.Fields) != 3 {
		t.Fatalf("%d fields, want 3", len(b.Fields))
	}
	if got := tree.Format(member(t, b, "flag")); got != "true" {
		t.Errorf("flag = %q", got)
	}
	mode := member(t, b, "mode").(*pattern.BitfieldField)
	if mode.Kind != pattern.FieldEnum || integer(t, tree, mode) != 2 {
		t.Errorf("mode: kind %d value %d", mode.Kind, integer(t, tree, mode))
	}
	delta := member(t, b, "delta").(*pattern.BitfieldField)
	if delta.BitOffset != 4 || delta.Kind != pattern.FieldSigned {
		t.Errorf("delta: bit offset %d kind %d", delta.BitOffset, delta.Kind)
	}
	v, err := delta.Value(tree.Reader())
	if err != nil || v.Int64() != -1 {
		t.Errorf("delta = %v, %v; want -1", v, err)
	}
}

func TestScenarioWhileArray(t *testing.T) {
	tree, _ := evaluate(t, []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x05, 0x06, 0x07}, `
struct Node { u8 kind; u8 data; };
Node list[while($ < 0x100 && std::mem::read_u8($) != 0)] @ 0x0;
`)
	list, ok := root(t, tree, "list").(*pattern.DynamicArray)
	if !ok {
		t.Fatalf("list is %T", root(t, tree, "list"))
	}
	if len(list.Entries) != 2 || list.Size != 4 {
		t.Fatalf("list: %d entries, size %d", len(list.Entries), list.Size)
	}
	if got := integer(t, tree, member(t, list.Entries[1], "data")); got != 4 {
		t.Errorf("list[1].data = %d, want 4", got)
	}
	if list.Entries[1].Common().Name != "[1]" {
		t.Errorf("entry name %q", list.Entries[1].Common().Name)
	}
}

func TestWhileArrayStopsAtEndOfData(t *testing.T) {
	tree, _ := evaluate(t, []byte{1, 2, 3, 4, 5}, `
u16 words[while(true)] @ 0;
`)
	words, ok := root(t, tree, "words").(*pattern.StaticArray)
	if !ok {
		t.Fatalf("words is %T", root(t, tree, "words"))
	}
	if words.Count != 2 || words.Size != 4 {
		t.Errorf("words: %d entries, size %d", words.Count, words.Size)
	}
}

func TestScenarioNamespaceForward(t *testing.T) {
	tree, _ := evaluate(t, []byte{0x04, 0x00, 0x00, 0x00, 0x07}, `
namespace n { using T; struct U { T* p : u32; }; struct T { u8 x; }; }
n::U v @ 0x0;
`)
	p := member(t, root(t, tree, "v"), "p").(*pattern.Pointer)
	if p.Pointee.Common().TypeName != "n::T" {
		t.Errorf("pointee type %q, want n::T", p.Pointee.Common().TypeName)
	}
	if got := integer(t, tree, member(t, p.Pointee, "x")); got != 7 {
		t.Errorf("v.p.x = %d, want 7", got)
	}
}

func TestEndianness(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	tree, _ := evaluate(t, data, `
be u32 big @ 0;
le u32 little @ 0;
u32 plain @ 0;
`)
	for name, want := range map[string]string{
		"big":    "16909060 (0x01020304)",
		"little": "67305985 (0x04030201)",
		"plain":  "67305985 (0x04030201)",
	} {
		if got := tree.Format(root(t, tree, name)); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	tree, _ = evaluate(t, data, `
#pragma endian big
struct S { u16 a; le u16 b; };
S s @ 0;
`)
	s := root(t, tree, "s")
	if got := integer(t, tree, member(t, s, "a")); got != 0x0102 {
		t.Errorf("a = 0x%X, want 0x0102", got)
	}
	if got := integer(t, tree, member(t, s, "b")); got != 0x0403 {
		t.Errorf("b = 0x%X, want 0x0403", got)
	}
}

func TestOutOfBoundsBecomesErrorPattern(t *testing.T) {
	tree, _ := evaluate(t, []byte{0xAA, 0xBB}, `
u32 wide @ 0;
u8 ok @ 1;
u8 far @ 0x100;
`)
	roots := tree.Roots()
	if len(roots) != 3 {
		t.Fatalf("%d roots, want 3", len(roots))
	}
	wide, isErr := roots[0].(*pattern.Error)
	if !isErr || wide.Name != "wide" || wide.Offset != 0 || wide.Size != 0 {
		t.Errorf("wide: %T %+v", roots[0], roots[0].Common())
	}
	if wide != nil && wide.TypeName != "u32" {
		t.Errorf("wide type %q", wide.TypeName)
	}
	if got := integer(t, tree, roots[1]); got != 0xBB {
		t.Errorf("ok = 0x%X", got)
	}
	far, isErr := roots[2].(*pattern.Error)
	if !isErr || far.Offset != 2 {
		t.Errorf("far: %T %+v", roots[2], roots[2].Common())
	}
}

func TestUnsizedArrays(t *testing.T) {
	tree, _ := evaluate(t, []byte("hi\x00rest"), `
char name[] @ 0;
u8 bytes[] @ 0;
`)
	name := root(t, tree, "name").(*pattern.String)
	if name.Size != 3 {
		t.Errorf("name size %d, want 3", name.Size)
	}
	if v, _ := name.Value(tree.Reader()); v != "hi" {
		t.Errorf("name = %q", v)
	}
	if b := root(t, tree, "bytes").(*pattern.StaticArray); b.Count != 3 {
		t.Errorf("bytes has %d entries, want 3", b.Count)
	}

	tree, _ = evaluate(t, []byte{1, 2}, `u8 a[] @ 0;`)
	if _, ok := tree.Roots()[0].(*pattern.Error); !ok {
		t.Errorf("unterminated array is %T", tree.Roots()[0])
	}
}

func TestStrings(t *testing.T) {
	data := append([]byte("hello"), 'A', 0, 'B', 0)
	tree, _ := evaluate(t, data, `
char greeting[5] @ 0;
char16 wide[2] @ 5;
`)
	if got := tree.Format(root(t, tree, "greeting")); got != `"hello"` {
		t.Errorf("greeting = %s", got)
	}
	wide := root(t, tree, "wide").(*pattern.WideString)
	if v, _ := wide.Value(tree.Reader()); v != "AB" {
		t.Errorf("wide = %q", v)
	}
	if wide.TypeName != "char16[2]" {
		t.Errorf("wide type %q", wide.TypeName)
	}
}

func TestZeroLengthArray(t *testing.T) {
	tree, _ := evaluate(t, []byte{1, 2, 3}, `
struct Empty {};
u8 none[0] @ 1;
Empty e @ 2;
`)
	for _, name := range []string{"none", "e"} {
		p := root(t, tree, name)
		if p.Common().Size != 0 || len(p.Children()) != 0 {
			t.Errorf("%s: size %d, %d children", name, p.Common().Size, len(p.Children()))
		}
	}
}

func TestUnionAndInheritance(t *testing.T) {
	tree, _ := evaluate(t, []byte{0x78, 0x56, 0x34, 0x12, 0xFF}, `
union Word { u8 low; u32 full; u16 half; };
struct Base { u8 tag; };
struct Derived : Base { u8 value; };
Word w @ 0;
Derived d @ 3;
`)
	w := root(t, tree, "w").(*pattern.Union)
	if w.Size != 4 {
		t.Errorf("union size %d, want 4", w.Size)
	}
	for _, m := range w.Members {
		if m.Common().Offset != 0 {
			t.Errorf("union member %s at 0x%X", m.Common().Name, m.Common().Offset)
		}
	}
	if got := integer(t, tree, member(t, w, "full")); got != 0x12345678 {
		t.Errorf("full = 0x%X", got)
	}

	d := root(t, tree, "d").(*pattern.Struct)
	var names []string
	for _, m := range d.Members {
		names = append(names, m.Common().Name)
	}
	if diff := cmp.Diff([]string{"tag", "value"}, names); diff != "" {
		t.Errorf("members (-want +got):\n%s", diff)
	}
	if got := integer(t, tree, member(t, d, "value")); got != 0xFF {
		t.Errorf("value = 0x%X", got)
	}
}

func TestConditionalMembers(t *testing.T) {
	source := `
enum Kind : u8 { Narrow = 1, Wide };
struct Rec {
    Kind kind;
    if (kind == Kind::Wide) {
        u16 value;
    } else {
        u8 value;
    }
};
Rec r @ 0;
`
	tree, _ := evaluate(t, []byte{0x02, 0x34, 0x12}, source)
	if got := integer(t, tree, member(t, root(t, tree, "r"), "value")); got != 0x1234 {
		t.Errorf("wide value = 0x%X", got)
	}
	tree, _ = evaluate(t, []byte{0x01, 0x34, 0x12}, source)
	r := root(t, tree, "r")
	if got := integer(t, tree, member(t, r, "value")); got != 0x34 || r.Common().Size != 2 {
		t.Errorf("narrow value = 0x%X, size %d", got, r.Common().Size)
	}
}

func TestDollarAndPlacementInStruct(t *testing.T) {
	tree, _ := evaluate(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, `
struct S {
    u8 a;
    $ += 2;
    u8 b;
    u8 last @ 7;
    u8 c;
    u8 tail[last - 7];
};
S s @ 0;
`)
	s := root(t, tree, "s")
	for name, want := range map[string]uint64{"a": 0, "b": 3, "c": 4, "tail": 5} {
		if off := member(t, s, name).Common().Offset; off != want {
			t.Errorf("%s at %d, want %d", name, off, want)
		}
	}
	if _, ok := s.(*pattern.Struct).Member("last"); ok {
		t.Error("last is placed outside s and must not be a member")
	}
	if s.Common().Size != 6 {
		t.Errorf("struct size %d, want 6", s.Common().Size)
	}
}

func TestSizeofNearEndOfData(t *testing.T) {
	tree, _ := evaluate(t, make([]byte, 10), `
struct H { u32 a; u32 b; };
struct P { u8 lo; u16 *next : u8; };
u8 x @ 0x9;
u8 y @ sizeof(H);
u8 z @ sizeof(P) + 5;
`)
	y, ok := root(t, tree, "y").(*pattern.Unsigned)
	if !ok {
		t.Fatalf("y is %T, want *pattern.Unsigned", root(t, tree, "y"))
	}
	if y.Offset != 8 || y.Size != 1 {
		t.Errorf("y at 0x%X size %d", y.Offset, y.Size)
	}
	if off := root(t, tree, "z").Common().Offset; off != 7 {
		t.Errorf("z at 0x%X, want 0x7", off)
	}
}

func TestThisAndParent(t *testing.T) {
	tree, _ := evaluate(t, []byte{3, 2, 0xAA, 0xBB, 0xCC}, `
struct Inner { u8 data[parent.count]; };
struct Outer {
    u8 skip;
    u8 count;
    Inner inner;
    u32 size = sizeof(this);
};
Outer o @ 0;
`)
	inner := member(t, root(t, tree, "o"), "inner")
	if inner.Common().Size != 2 {
		t.Errorf("inner size %d, want 2", inner.Common().Size)
	}
}

func TestFunctions(t *testing.T) {
	_, e := evaluate(t, nil, `
fn add(u32 a, u32 b) { return a + b; };
fn sum(u32 n) {
    u32 s = 0;
    for (u32 i = 0, i < n, i += 1) {
        s += i;
    }
    return s;
};
fn firstAbove(u32 n) {
    u32 i = 0;
    while (true) {
        if (i > n) break;
        i += 1;
    }
    return i;
};
namespace util {
    fn twice(auto v) { return v * 2; };
    fn quad(u32 v) { return twice(twice(v)); };
}
u32 total out;
u32 series out;
u32 above out;
s32 scaled out;
total = add(2, 3);
series = sum(5);
above = firstAbove(3);
scaled = util::quad(-3);
`)
	want := map[string]int64{"total": 5, "series": 10, "above": 4, "scaled": -12}
	out := e.OutVariables()
	for name, v := range want {
		got, ok := out[name].(*big.Int)
		if !ok || got.Int64() != v {
			t.Errorf("%s = %v, want %d", name, out[name], v)
		}
	}
}

func TestInVariables(t *testing.T) {
	_, e := evaluate(t, nil, `
u32 limit in;
bool verbose in;
u64 doubled out;
doubled = limit * 2;
`, WithInVariables(map[string]any{"limit": 21, "verbose": true}))
	got, ok := e.OutVariables()["doubled"].(*big.Int)
	if !ok || got.Int64() != 42 {
		t.Errorf("doubled = %v", e.OutVariables()["doubled"])
	}
}

func TestConsole(t *testing.T) {
	_, e := evaluate(t, []byte{7}, `
u8 x @ 0;
std::print("value {} and {:#x}", x, 255);
std::warning("careful: " + "hot");
std::print("{{literal}}");
`)
	want := []string{"value 7 and 0xff", "careful: hot", "{literal}"}
	if diff := cmp.Diff(want, e.Console()); diff != "" {
		t.Errorf("console (-want +got):\n%s", diff)
	}
}

func TestMemoryBuiltins(t *testing.T) {
	_, e := evaluate(t, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xBE, 0xEF}, `
u64 first out;
u64 second out;
s64 missing out;
u16 word out;
s8 negative out;
u64 size out;
str text out;
first = std::mem::find_sequence(0, 0xBE, 0xEF);
second = std::mem::find_sequence(1, 0xBE, 0xEF);
missing = std::mem::find_sequence(0, 0x00);
word = std::mem::read_u16(1);
negative = std::mem::read_signed(0, 1);
size = std::mem::size();
text = std::string::substr(std::string::to_string(size), 0, 10);
`)
	out := e.OutVariables()
	want := map[string]int64{"first": 2, "second": 4, "missing": -1, "word": 0xBEAD, "negative": -34, "size": 6}
	for name, v := range want {
		got, ok := out[name].(*big.Int)
		if !ok || got.Int64() != v {
			t.Errorf("%s = %v, want %d", name, out[name], v)
		}
	}
	if out["text"] != "6" {
		t.Errorf("text = %v", out["text"])
	}
}

func TestFindSequenceOverlapping(t *testing.T) {
	_, e := evaluate(t, []byte{0xAA, 0xAA, 0xAA, 0x01}, `
u64 second out;
s64 third out;
second = std::mem::find_sequence(1, 0xAA, 0xAA);
third = std::mem::find_sequence(2, 0xAA, 0xAA);
`)
	out := e.OutVariables()
	if got, ok := out["second"].(*big.Int); !ok || got.Int64() != 1 {
		t.Errorf("second = %v, want 1", out["second"])
	}
	if got, ok := out["third"].(*big.Int); !ok || got.Int64() != -1 {
		t.Errorf("third = %v, want -1", out["third"])
	}
}

func TestAttributes(t *testing.T) {
	tree, _ := evaluate(t, []byte{1, 2, 3, 4}, `
struct S {
    /// The first byte.
    u8 a [[name("Alpha")]];
    u8 b [[hidden, comment("secret")]];
    u8 c [[color("FF0000"), hex::favorite, hex::group("g")]];
    u8 d [[hex::visualize("hex_viewer", "x"), frobnicate]];
};
S s @ 0;
`)
	s := root(t, tree, "s")
	a := member(t, s, "a").Common()
	if a.DisplayName != "Alpha" || a.Comment != "The first byte." {
		t.Errorf("a: display %q comment %q", a.DisplayName, a.Comment)
	}
	b := member(t, s, "b").Common()
	if b.Visibility != pattern.Hidden || b.Comment != "secret" {
		t.Errorf("b: visibility %s comment %q", b.Visibility, b.Comment)
	}
	c := member(t, s, "c").Common()
	if c.Color != 0x700000FF || !c.ManualColor() || !c.Favorite || c.Group != "g" {
		t.Errorf("c: color %08X favorite %t group %q", c.Color, c.Favorite, c.Group)
	}
	d := member(t, s, "d").Common()
	if diff := cmp.Diff([]string{"hex_viewer", "x"}, d.Visualizer); diff != "" {
		t.Errorf("visualizer (-want +got):\n%s", diff)
	}
}

func TestSingleColor(t *testing.T) {
	tree, _ := evaluate(t, []byte{1, 2, 3}, `
struct S { u8 a; u8 b; u8 c; } [[single_color]];
S s @ 0;
`)
	s := root(t, tree, "s")
	for _, m := range s.Children() {
		if m.Common().Color != s.Common().Color {
			t.Errorf("%s has color %08X, struct %08X", m.Common().Name, m.Common().Color, s.Common().Color)
		}
	}
}

func TestFormatterAttribute(t *testing.T) {
	tree, _ := evaluate(t, []byte{5, 0x10, 0x20}, `
fn show(u8 v) { return "v=" + std::string::to_string(v); };
fn pair(auto p) { return std::string::to_string(p.lo + p.hi); };
struct Pair { u8 lo; u8 hi; } [[format("pair")]];
u8 x @ 0 [[format("show")]];
Pair p @ 1;
`)
	if got := tree.Format(root(t, tree, "x")); got != "v=5" {
		t.Errorf("x formats as %q", got)
	}
	if got := tree.Format(root(t, tree, "p")); got != "48" {
		t.Errorf("p formats as %q", got)
	}
}

func TestFormatterDoesNotPrint(t *testing.T) {
	tree, e := evaluate(t, []byte{9}, `
fn show(u8 v) { std::print("formatting {}", v); return "shown"; };
u8 x @ 0 [[format("show")]];
std::print("done");
`)
	x := root(t, tree, "x")
	for range 3 {
		if got := tree.Format(x); got != "shown" {
			t.Fatalf("x formats as %q", got)
		}
	}
	if diff := cmp.Diff([]string{"done"}, e.Console()); diff != "" {
		t.Errorf("console (-want +got):\n%s", diff)
	}
}

func TestPointerBase(t *testing.T) {
	data := make([]byte, 0x20)
	data[0] = 0x02
	data[0x12] = 0x99
	tree, _ := evaluate(t, data, `
fn relative(u32 addr) { return addr + 0x10; };
u8 *p : u8 @ 0 [[pointer_base("relative")]];
`)
	p := root(t, tree, "p").(*pattern.Pointer)
	if p.PointerBase != 0x10 || p.Pointee.Common().Offset != 0x12 {
		t.Errorf("base %d, pointee at 0x%X", p.PointerBase, p.Pointee.Common().Offset)
	}
	if got := integer(t, tree, p.Pointee); got != 0x99 {
		t.Errorf("pointee = 0x%X", got)
	}
}

func TestSizeofAndAddressof(t *testing.T) {
	_, e := evaluate(t, make([]byte, 16), `
struct H { u16 a; u8 b; };
H h @ 2;
u32 typeSize out;
u32 varSize out;
u32 addr out;
u32 builtinSize out;
typeSize = sizeof(H);
varSize = sizeof(h);
addr = addressof(h.b);
builtinSize = sizeof(u64);
`)
	want := map[string]int64{"typeSize": 3, "varSize": 3, "addr": 4, "builtinSize": 8}
	out := e.OutVariables()
	for name, v := range want {
		if got, ok := out[name].(*big.Int); !ok || got.Int64() != v {
			t.Errorf("%s = %v, want %d", name, out[name], v)
		}
	}
}

func TestExpressions(t *testing.T) {
	for _, tt := range []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"-7 / 2", "-3"},
		{"-7 % 2", "-1"},
		{"1 << 4 | 1", "17"},
		{"0xF0 >> 4 & 0x3", "3"},
		{"~0u & 0xFF", "255"},
		{"3 > 2 && 2 > 1", "true"},
		{"true ^^ true", "false"},
		{"1 == 2 ? 10 : 20", "20"},
		{"1.5 * 2", "3"},
		{"u8(0x1234)", "52"},
		{"s8(0xFF)", "-1"},
		{"be u16(0x1234)", "13330"},
		{"\"ab\" + \"cd\"", "abcd"},
		{"\"abc\" < \"abd\"", "true"},
	} {
		t.Run(tt.expr, func(t *testing.T) {
			_, e := evaluate(t, nil, "std::print(\"{}\", "+tt.expr+");")
			if got := e.Console(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("%s = %v, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluationErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		source string
		kind   Kind
		msg    string
	}{
		{"div by zero", "u8 a @ 1 / 0;", DivByZero, "division by zero"},
		{"mod by zero", "u8 a @ 0; u8 b @ 4 % (a - a);", DivByZero, "division by zero"},
		{"array limit", "#pragma array_limit 4\nu8 a[8] @ 0;", Limit, "limit of 4"},
		{"pattern limit", "#pragma pattern_limit 3\nstruct S { u8 a; u8 b; u8 c; };\nS s @ 0;", Limit, "pattern count"},
		{"recursion", "struct Node { u8 v; Node *next : u8; };\nNode n @ 0;", Limit, "recursion depth"},
		{"forward", "using T;\nT t @ 0;", BadForwardDecl, "never defined"},
		{"bad pragma", "#pragma endian middle\nu8 a @ 0;", TypeMismatch, "pragma endian"},
		{"assert", "std::assert(1 == 2, \"math is broken\");", UserAbort, "assertion failed: math is broken"},
		{"error", "std::error(\"stop\");", UserAbort, "stop"},
		{"unknown variable", "u8 a @ missing;", Unknown, "unknown variable 'missing'"},
		{"bad cast", "u8 a @ u32(\"x\");", BadCast, "cannot cast"},
		{"loop limit", "#pragma array_limit 10\nfn spin() { while (true) { } };\nspin();", Limit, "loop"},
		{"assign to pattern", "u8 a @ 0;\na = 3;", TypeMismatch, "cannot assign"},
		{"cursor before type", "struct S { u8 a; $ = 0; u8 b; };\nS s @ 4;", TypeMismatch, "before the start of the type"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := mustFail(t, make([]byte, 16), tt.source, tt.kind)
			if !strings.Contains(err.Message, tt.msg) {
				t.Errorf("message %q does not contain %q", err.Message, tt.msg)
			}
		})
	}
}

func TestErrorLocation(t *testing.T) {
	err := mustFail(t, nil, "\n\nu8 a @ 1 / 0;", DivByZero)
	if err.Loc.Line != 3 {
		t.Errorf("error at line %d, want 3", err.Loc.Line)
	}
	if !strings.HasPrefix(err.Error(), "test:3:") {
		t.Errorf("error string %q", err.Error())
	}
}

func TestCancellation(t *testing.T) {
	prog, err := parser.New().ParseString("test", "u8 a @ 0;")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(provider.NewMemory([]byte{1})).Evaluate(ctx, prog)
	if !IsKind(err, Interrupted) {
		t.Fatalf("expected Interrupted, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error does not wrap context.Canceled: %v", err)
	}
}

// TestTreeInvariants checks the structural guarantees of the tree over a
// program using every container kind.
func TestTreeInvariants(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 7)
	}
	data[0x20] = 0x30
	data[0x3C] = 2
	tree, _ := evaluate(t, data, `
bitfield Bits { a : 3; b : 7; c : 6; };
union U { u8 x; u32 y; u16 z; };
struct Inner { u16 p; Bits bits; };
struct Outer {
    u32 magic;
    Inner inner;
    U u;
    u8 tail[4];
    u16 *ptr : u8;
};
Outer o @ 0x10;
u8 header[8] @ 0;
struct Placed {
    u8 len;
    u8 far @ 0x3C;
    u8 copy[far];
    $ += 1;
    u8 last;
};
Placed pl @ 0x30;
`)
	size := uint64(len(data))
	tree.Walk(func(p pattern.Pattern, _ int) bool {
		b := p.Common()
		if !b.Local && b.Offset+b.Size > size {
			t.Errorf("%s [0x%X, +%d) exceeds the data", b.Name, b.Offset, b.Size)
		}
		switch c := p.(type) {
		case *pattern.Struct:
			for _, m := range c.Members {
				if m.Common().Offset < b.Offset || m.Common().End() > b.End() {
					t.Errorf("member %s lies outside %s", m.Common().Name, b.Name)
				}
			}
		case *pattern.Union:
			for _, m := range c.Members {
				if m.Common().Offset != b.Offset {
					t.Errorf("union member %s at 0x%X", m.Common().Name, m.Common().Offset)
				}
			}
		case *pattern.Bitfield:
			used := make([]bool, b.Size*8)
			for _, f := range c.Fields {
				for bit := f.BitOffset; bit < f.BitOffset+f.BitSize; bit++ {
					if bit >= uint64(len(used)) || used[bit] {
						t.Errorf("field %s overlaps or overflows at bit %d", f.Name, bit)
						continue
					}
					used[bit] = true
				}
			}
		case *pattern.Pointer:
			addr, err := c.Address(tree.Reader())
			if err != nil || c.Pointee.Common().Offset != addr {
				t.Errorf("pointer %s: address 0x%X, pointee at 0x%X (%v)", b.Name, addr, c.Pointee.Common().Offset, err)
			}
		}
		return true
	})

	pl := root(t, tree, "pl").(*pattern.Struct)
	if _, ok := pl.Member("far"); ok {
		t.Error("placed member far must not be a child of pl")
	}
	if n := member(t, pl, "copy").(*pattern.StaticArray).Count; n != 2 {
		t.Errorf("copy has %d entries, want 2", n)
	}
	if got := member(t, pl, "last").Common().Offset; got != 0x34 || pl.Size != 5 {
		t.Errorf("last at 0x%X, pl size %d", got, pl.Size)
	}

	inner := member(t, root(t, tree, "o"), "inner")
	bits := member(t, inner, "bits")
	color, ok := tree.HighlightAt(bits.Common().Offset)
	if !ok || color != member(t, bits, "a").Common().Color {
		t.Errorf("highlight at bitfield = %08X, %t", color, ok)
	}
	if color, _ := tree.HighlightAt(0x10); color != member(t, root(t, tree, "o"), "magic").Common().Color {
		t.Errorf("highlight at magic = %08X", color)
	}
}

func TestCloneEqualsOriginal(t *testing.T) {
	tree, _ := evaluate(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, `
struct S { u16 a; u8 b[2]; u32 c; };
S s @ 0;
`)
	s := root(t, tree, "s")
	clone := s.Clone()
	for _, key := range []pattern.SortKey{pattern.SortName, pattern.SortStart, pattern.SortEnd, pattern.SortSize, pattern.SortValue, pattern.SortType} {
		if pattern.Compare(s, clone, key, tree.Reader()) != 0 {
			t.Errorf("clone differs by %s", key)
		}
	}
	if !slices.EqualFunc(s.Children(), clone.Children(), func(a, b pattern.Pattern) bool {
		return pattern.Equal(a, b, tree.Reader())
	}) {
		t.Error("clone children differ")
	}
}

func TestConcurrentFormatting(t *testing.T) {
	tree, _ := evaluate(t, []byte{9}, `
fn show(u8 v) { std::print("formatting"); return v * 2; };
u8 x @ 0 [[format("show")]];
`)
	x := root(t, tree, "x")
	done := make(chan string)
	for range 8 {
		go func() { done <- tree.Format(x) }()
	}
	for range 8 {
		if got := <-done; got != "18" {
			t.Errorf("formatted %q", got)
		}
	}
}
