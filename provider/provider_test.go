package provider

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory([]byte{1, 2, 3, 4}, WithBaseAddress(0x1000))

	buf := make([]byte, 2)
	if err := m.Read(0x1001, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if buf[0] != 2 || buf[1] != 3 {
		t.Errorf("expected [2 3], got %v", buf)
	}

	if err := m.Write(0x1002, []byte{9}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := m.Read(0x1002, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if buf[0] != 9 {
		t.Errorf("write not visible, got %v", buf)
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory([]byte{1, 2, 3, 4}, WithBaseAddress(0x10))
	tests := []struct {
		name string
		addr uint64
		n    int
	}{
		{"before base", 0x0f, 1},
		{"past end", 0x13, 2},
		{"far past end", 0x100, 1},
		{"overflow", ^uint64(0), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Read(tt.addr, make([]byte, tt.n))
			if !errors.Is(err, ErrOutOfRange) {
				t.Errorf("expected ErrOutOfRange, got %v", err)
			}
		})
	}
	if err := m.Read(0x14, nil); err != nil {
		t.Errorf("empty read at end must succeed, got %v", err)
	}
}

func TestMemoryReadOnly(t *testing.T) {
	m := NewMemory([]byte{0}, ReadOnly())
	if m.IsWritable() {
		t.Error("expected read-only source")
	}
	if err := m.Write(0, []byte{1}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestMemoryPages(t *testing.T) {
	m := NewMemory(make([]byte, 10), WithPageSize(4), WithBaseAddress(0x100))
	if n := m.PageCount(); n != 3 {
		t.Fatalf("expected 3 pages, got %d", n)
	}
	m.SetCurrentPage(2)
	if m.PageAddress() != 8 || m.Size() != 2 {
		t.Errorf("expected last page at 8 with size 2, got %d/%d", m.PageAddress(), m.Size())
	}
	m.SetCurrentPage(7)
	if m.PageAddress() != 8 {
		t.Errorf("expected out of range page to clamp, got address %d", m.PageAddress())
	}
	m.SetCurrentPage(1)
	r, ok := m.RegionValidity(0x105)
	if !ok || r.Address != 0x104 || r.Size != 4 {
		t.Errorf("expected valid region [0x104, 0x108), got %v %v", r, ok)
	}
	r, ok = m.RegionValidity(0x10)
	if ok || r.End() != 0x104 {
		t.Errorf("expected invalid region ending at 0x104, got %v %v", r, ok)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte{0xDE, 0xAD}, 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if m.Size() != 2 {
		t.Errorf("expected size 2, got %d", m.Size())
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
