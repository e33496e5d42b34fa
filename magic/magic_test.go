package magic

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/provider"
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		in       string
		pattern  string
		offset   uint64
		anchored bool
		fromEnd  bool
	}{
		{"[ 4D 5A ]", `\x4d\x5a`, 0, false, false},
		{"[4d 5a ?? 00] @ 0x00", `\x4d\x5a.\x00`, 0, true, false},
		{"[ 7F ?? ?? ?? 02 ] @ 16", `\x7f.{3}\x02`, 16, true, false},
		{"[ 50 4B 05 06 ] @ -22", `\x50\x4b\x05\x06`, 22, true, true},
		{"[ 00 ] @ 0b1'0000", `\x00`, 16, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sig, err := ParseSignature(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if sig.Pattern != tt.pattern {
				t.Errorf("pattern = %q, want %q", sig.Pattern, tt.pattern)
			}
			if sig.Offset != tt.offset || sig.Anchored != tt.anchored || sig.FromEnd != tt.fromEnd {
				t.Errorf("offset %d anchored %v from end %v", sig.Offset, sig.Anchored, sig.FromEnd)
			}
		})
	}
}

func TestParseSignatureErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"[ ]",
		"[ 4D 5 ]",
		"[ 4D ZZ ]",
		"4D 5A",
		"[ 4D ] @",
		"[ 4D ] @ 0x",
	} {
		if _, err := ParseSignature(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestSignatureMatch(t *testing.T) {
	buf := []byte{'M', 'Z', 0x90, 0x00, 'P', 'K', 0x05, 0x06}
	tests := []struct {
		sig  string
		want bool
	}{
		{"[ 4D 5A ] @ 0", true},
		{"[ 4D 5A ] @ 1", false},
		{"[ 5A ?? 00 ]", true},
		{"[ 5A ?? 01 ]", false},
		{"[ 50 4B 05 06 ] @ -4", true},
		{"[ 50 4B 05 06 ] @ -5", false},
		{"[ 4D ] @ -100", false},
		{"[ 4D ] @ 100", false},
		{"[ 90 ]", true},
		{"[ ?? ?? ] @ 6", true},
		{"[ ?? ?? ] @ 7", false},
	}
	for _, tt := range tests {
		sig, err := ParseSignature(tt.sig)
		if err != nil {
			t.Fatalf("%s: %v", tt.sig, err)
		}
		if got := sig.Match(buf); got != tt.want {
			t.Errorf("%s: match = %v, want %v", tt.sig, got, tt.want)
		}
	}
}

func compile(t *testing.T, sources map[string]string) *Matcher {
	t.Helper()
	programs := make(map[string]*ast.Program, len(sources))
	for name, src := range sources {
		prog, err := parser.New().ParseString(name, src)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		programs[name] = prog
	}
	m, err := Compile(programs)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMatcher(t *testing.T) {
	m := compile(t, map[string]string{
		"pe.hexpat":  "#pragma magic [ 4D 5A ] @ 0x00\nu16 mz @ 0;\n",
		"elf.hexpat": "#pragma magic [ 7F 45 4C 46 ] @ 0x00\n",
		"zip.hexpat": "#pragma magic [ 50 4B 03 04 ] @ 0x00\n#pragma magic [ 50 4B 05 06 ] @ -22\n",
		"any.hexpat": "#pragma magic [ DE AD ]\n",
		"raw.hexpat": "u8 x @ 0;\n",
	})
	if m.Len() != 4 {
		t.Errorf("Len = %d, want 4", m.Len())
	}

	empty := make([]byte, 22)
	copy(empty, []byte{0x50, 0x4B, 0x05, 0x06})
	tests := []struct {
		name string
		buf  []byte
		want []string
	}{
		{"pe", []byte{'M', 'Z', 0, 0}, []string{"pe.hexpat"}},
		{"elf", []byte{0x7F, 'E', 'L', 'F', 2}, []string{"elf.hexpat"}},
		{"empty zip", empty, []string{"zip.hexpat"}},
		{"pe with marker", []byte{'M', 'Z', 0xDE, 0xAD}, []string{"any.hexpat", "pe.hexpat"}},
		{"nothing", []byte{1, 2, 3}, nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, m.Match(tt.buf)); diff != "" {
				t.Errorf("matches (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLongestLiteral(t *testing.T) {
	for in, want := range map[string][]byte{
		"[ 4D 5A ]":                {0x4D, 0x5A},
		"[ 01 ?? 02 03 04 ?? 05 ]": {0x02, 0x03, 0x04},
		"[ 01 02 ?? 03 04 ]":       {0x01, 0x02},
		"[ ?? ?? ]":                nil,
	} {
		sig, err := ParseSignature(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if diff := cmp.Diff(want, sig.atom); diff != "" {
			t.Errorf("%s: atom (-want +got):\n%s", in, diff)
		}
	}
}

func TestMatcherPrefilter(t *testing.T) {
	m := compile(t, map[string]string{
		"a.hexpat":     "#pragma magic [ 11 22 33 ?? 55 ]\n",
		"b.hexpat":     "#pragma magic [ 11 22 33 ?? 66 ]\n",
		"short.hexpat": "#pragma magic [ 77 ?? 88 ]\n",
		"head.hexpat":  "#pragma magic [ 11 22 33 ] @ 0\n",
	})
	if len(m.atomRefs) != 1 || len(m.atomRefs[0]) != 2 {
		t.Errorf("expected one shared atom for two signatures, got %v", m.atomRefs)
	}
	if len(m.direct) != 2 {
		t.Errorf("expected two directly checked signatures, got %d", len(m.direct))
	}

	tests := []struct {
		name string
		buf  []byte
		want []string
	}{
		{"atom without match", []byte{0, 0x11, 0x22, 0x33, 0, 0x44}, nil},
		{"first", []byte{0, 0x11, 0x22, 0x33, 0, 0x55}, []string{"a.hexpat"}},
		{"second occurrence", []byte{0x11, 0x22, 0x33, 0, 0, 0x11, 0x22, 0x33, 0, 0x66}, []string{"b.hexpat", "head.hexpat"}},
		{"short", []byte{0x77, 0, 0x88}, []string{"short.hexpat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, m.Match(tt.buf)); diff != "" {
				t.Errorf("matches (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatchSource(t *testing.T) {
	m := compile(t, map[string]string{"pe": "#pragma magic [ 4D 5A ] @ 0\n"})
	src := provider.NewMemory([]byte{'M', 'Z'}, provider.WithBaseAddress(0x400000))
	got, err := m.MatchSource(src)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"pe"}, got); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
}

func TestCompileReportsEveryInvalidSignature(t *testing.T) {
	programs := map[string]*ast.Program{}
	for name, src := range map[string]string{
		"a": "#pragma magic [ 4D 5 ]\n",
		"b": "#pragma magic nonsense\n",
		"c": "#pragma magic [ 4D ]\n",
	} {
		prog, err := parser.New().ParseString(name, src)
		if err != nil {
			t.Fatal(err)
		}
		programs[name] = prog
	}
	_, err := Compile(programs)
	if err == nil {
		t.Fatal("expected error")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 2 {
		t.Errorf("expected two joined errors, got %v", err)
	}
}

func BenchmarkMatch(b *testing.B) {
	programs := map[string]*ast.Program{}
	for i := range 50 {
		programs[string(rune('a'+i%26))+string(rune('a'+i/26))] = &ast.Program{
			Pragmas: []ast.Pragma{{Name: "magic", Value: "[ 13 37 ?? " + string("0123456789ABCDEF"[i%16]) + "0 ]"}},
		}
	}
	m, err := Compile(programs)
	if err != nil {
		b.Fatal(err)
	}
	buf := make([]byte, 1<<20)
	for b.Loop() {
		m.Match(buf)
	}
}
