package parser

import "testing"

func FuzzParse(f *testing.F) {
	seeds := []string{
		`struct Header { u32 magic; u16 version; u16 count; }; Header hdr @ 0x0;`,
		`u32 target @ 0x10; u32 *p : u16 @ 0x00;`,
		`enum Color : u8 { Red = 1, Green = 2, Blue = 4 }; Color c @ 0x0;`,
		`bitfield Flags { a : 3; b : 5; c : 8; }; Flags f @ 0x0;`,
		`struct Node { u8 kind; u8 data; }; Node list[while($ < 0x100 && std::mem::read_u8($) != 0)] @ 0x0;`,
		`namespace n { using T; struct U { T* p : u32; }; struct T { u8 x; }; } n::U v @ 0x0;`,
		`fn f(auto x) { for (u8 i = 0, i < 4, i += 1) { x = x * 2; } return x; }; u8 a @ f(1);`,
		`#pragma endian big
		be u32 x @ 0 [[name("X"), color("FF00FF")]];`,
		`struct S { u8 len; char s[len]; padding[2]; if (len > 2) u16 tail; else u8 t; };`,
		`u8 x @ "str" + 'c' + 1.5e3 + 0b1010u + ~0 ? sizeof(u32) : addressof(x);`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		p := New()
		p.ParseString("fuzz", input) //nolint:errcheck
	})
}
