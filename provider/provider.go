// Package provider defines the byte source that pattern programs are
// evaluated against, plus an in-memory implementation.
package provider

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrOutOfRange is returned when an access falls outside the source.
var ErrOutOfRange = errors.New("address out of range")

// ErrReadOnly is returned by Write on a source that is not writable.
var ErrReadOnly = errors.New("source is read-only")

// ByteSource provides bytes to the evaluator. Addresses passed to Read and
// Write are absolute: base address + page address + offset.
type ByteSource interface {
	// Size is the size of the current page.
	Size() uint64
	BaseAddress() uint64
	// PageAddress is the offset of the current page within the source.
	PageAddress() uint64
	PageCount() uint32
	SetCurrentPage(n uint32)
	Read(addr uint64, out []byte) error
	Write(addr uint64, in []byte) error
	IsReadable() bool
	IsWritable() bool
	// RegionValidity returns the contiguous span containing addr and whether
	// bytes in it can be read.
	RegionValidity(addr uint64) (Region, bool)
}

// Region is a span of absolute addresses.
type Region struct {
	Address uint64
	Size    uint64
}

// End returns the first address past r.
func (r Region) End() uint64 {
	return r.Address + r.Size
}

// Contains reports whether addr lies in r.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Address && addr-r.Address < r.Size
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%X, 0x%X)", r.Address, r.End())
}

// Option configures a Memory source.
type Option func(*Memory)

// WithBaseAddress sets the address of the first byte.
func WithBaseAddress(base uint64) Option {
	return func(m *Memory) { m.base = base }
}

// WithPageSize splits the data into pages of size bytes. Zero means a single
// page.
func WithPageSize(size uint64) Option {
	return func(m *Memory) { m.pageSize = size }
}

// ReadOnly makes Write fail with ErrReadOnly.
func ReadOnly() Option {
	return func(m *Memory) { m.readOnly = true }
}

// Memory is a ByteSource backed by a byte slice. It is safe for concurrent
// use; writes are visible to subsequent reads immediately.
type Memory struct {
	mu       sync.RWMutex
	data     []byte
	base     uint64
	pageSize uint64
	page     uint32
	readOnly bool

	// last region handed out by RegionValidity
	region      Region
	regionValid bool
	haveRegion  bool
}

// NewMemory returns a source over data. The slice is not copied.
func NewMemory(data []byte, opts ...Option) *Memory {
	m := &Memory{data: data}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadFile reads the file at path into a Memory source.
func LoadFile(path string, opts ...Option) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return NewMemory(data, opts...), nil
}

func (m *Memory) pageBounds() (start, size uint64) {
	total := uint64(len(m.data))
	if m.pageSize == 0 {
		return 0, total
	}
	start = uint64(m.page) * m.pageSize
	if start >= total {
		return total, 0
	}
	return start, min(m.pageSize, total-start)
}

func (m *Memory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, size := m.pageBounds()
	return size
}

func (m *Memory) BaseAddress() uint64 {
	return m.base
}

func (m *Memory) PageAddress() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, _ := m.pageBounds()
	return start
}

func (m *Memory) PageCount() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pageSize == 0 || len(m.data) == 0 {
		return 1
	}
	return uint32((uint64(len(m.data)) + m.pageSize - 1) / m.pageSize)
}

// SetCurrentPage selects page n; out of range pages are clamped to the last.
func (m *Memory) SetCurrentPage(n uint32) {
	count := m.PageCount()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = min(n, count-1)
	m.haveRegion = false
}

// span converts an absolute address range into data indices.
func (m *Memory) span(addr uint64, n int) (int, error) {
	if addr < m.base {
		return 0, fmt.Errorf("0x%X: %w", addr, ErrOutOfRange)
	}
	off := addr - m.base
	if off > uint64(len(m.data)) || uint64(n) > uint64(len(m.data))-off {
		return 0, fmt.Errorf("0x%X+%d: %w", addr, n, ErrOutOfRange)
	}
	return int(off), nil
}

func (m *Memory) Read(addr uint64, out []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	off, err := m.span(addr, len(out))
	if err != nil {
		return fmt.Errorf("reading %d bytes: %w", len(out), err)
	}
	copy(out, m.data[off:])
	return nil
}

func (m *Memory) Write(addr uint64, in []byte) error {
	if m.readOnly {
		return ErrReadOnly
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off, err := m.span(addr, len(in))
	if err != nil {
		return fmt.Errorf("writing %d bytes: %w", len(in), err)
	}
	copy(m.data[off:], in)
	return nil
}

func (m *Memory) IsReadable() bool { return true }

func (m *Memory) IsWritable() bool { return !m.readOnly }

// RegionValidity reports the current page as the valid region. Addresses
// outside it get the invalid gap up to or after the page.
func (m *Memory) RegionValidity(addr uint64) (Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.haveRegion && m.region.Contains(addr) {
		return m.region, m.regionValid
	}

	start, size := m.pageBounds()
	page := Region{Address: m.base + start, Size: size}
	var r Region
	var valid bool
	switch {
	case page.Contains(addr):
		r, valid = page, true
	case addr < page.Address:
		r = Region{Address: 0, Size: page.Address}
	default:
		r = Region{Address: page.End(), Size: ^uint64(0) - page.End()}
	}
	m.region, m.regionValid, m.haveRegion = r, valid, true
	return r, valid
}
