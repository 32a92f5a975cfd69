package mmap

import (
	"os"
	"sync/atomic"
	"unsafe"
)

// Mapping is an anonymous, private, read-write memory reservation.
// It lives outside the Go heap and is never scanned by the garbage collector.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
	// unmap is the platform-specific function to release the memory.
	unmap func([]byte) error
}

// PageSize returns the operating system page size.
func PageSize() int {
	return os.Getpagesize()
}

// RoundUp rounds size up to a multiple of the page size.
func RoundUp(size int) int {
	ps := PageSize()
	return (size + ps - 1) &^ (ps - 1)
}

// MapAnon reserves size bytes (rounded up to whole pages) of zeroed memory.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	size = RoundUp(size)

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Close releases the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the reserved memory.
// The slice is valid only until Close is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Base returns the address of the first byte of the mapping.
func (m *Mapping) Base() unsafe.Pointer {
	if len(m.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(m.data))
}

// Addr returns the address of the first byte as an integer.
func (m *Mapping) Addr() uintptr {
	return uintptr(m.Base())
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Contains reports whether addr lies inside the mapping.
func (m *Mapping) Contains(addr uintptr) bool {
	base := m.Addr()
	return addr >= base && addr < base+uintptr(m.size)
}

// Sub returns a view of size bytes starting off bytes into m.
// The view shares m's memory and closing it releases nothing.
func (m *Mapping) Sub(off, size int) (*Mapping, error) {
	if off < 0 || size <= 0 || off > m.size-size {
		return nil, ErrInvalidSize
	}
	return &Mapping{data: m.data[off : off+size : off+size], size: size}, nil
}

// Reserver obtains and returns address space.
// Implementations decorate the OS reservation with accounting or bookkeeping.
type Reserver interface {
	Reserve(size int) (*Mapping, error)
	Release(m *Mapping) error
}

// OS is the Reserver backed directly by the operating system.
var OS Reserver = osReserver{}

type osReserver struct{}

func (osReserver) Reserve(size int) (*Mapping, error) { return MapAnon(size) }
func (osReserver) Release(m *Mapping) error           { return m.Close() }
