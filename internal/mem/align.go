package mem

import (
	"unsafe"
)

// WordSize is the size of a machine word in bytes.
const WordSize = unsafe.Sizeof(uintptr(0))

// IsPowerOfTwo reports whether x is a non-zero power of two.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && x&(x-1) == 0
}

// AlignUp rounds x up to a multiple of align, which must be a power of two.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// AlignDown rounds x down to a multiple of align, which must be a power of two.
func AlignDown(x, align uintptr) uintptr {
	return x &^ (align - 1)
}

// Add returns p offset by n bytes.
func Add(p unsafe.Pointer, n uintptr) unsafe.Pointer {
	return unsafe.Add(p, n) //nolint:gosec // off-heap address arithmetic
}

// Bytes views n bytes starting at p as a slice.
func Bytes(p unsafe.Pointer, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n) //nolint:gosec // off-heap view
}

// Copy copies n bytes from src to dst. The ranges may overlap.
func Copy(dst, src unsafe.Pointer, n int) {
	if n <= 0 || dst == src {
		return
	}
	copy(Bytes(dst, n), Bytes(src, n))
}

// Zero clears n bytes starting at p.
func Zero(p unsafe.Pointer, n int) {
	clear(Bytes(p, n))
}
