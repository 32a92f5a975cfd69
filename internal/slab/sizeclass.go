package slab

import (
	"sync"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/bitmap"
	"github.com/hupe1980/fastalloc/internal/mem"
)

const (
	// SlabSize is the size and alignment of every slab (8 pages of 4 KiB).
	SlabSize = 8 * 4096
	// MaxSize is the largest request served by a size class.
	MaxSize = 1024
	// NumClasses is the number of size classes.
	NumClasses = len(classSizes)
)

var classSizes = [...]int{
	8, 16, 24, 32, 48, 64, 80, 96, 112, 128,
	160, 192, 224, 256, 288, 320, 352, 384, 416, 448,
	480, 512, 544, 576, 608, 640, 672, 704, 736, 768,
	800, 832, 864, 896, 928, 960, 992, 1024,
}

var headerSize = int(mem.AlignUp(unsafe.Sizeof(header{}), mem.WordSize))

// classLookup maps every request size in [0, MaxSize] to its class.
var classLookup = sync.OnceValue(func() *[MaxSize + 1]uint8 {
	var t [MaxSize + 1]uint8
	c := 0
	for size := range t {
		for classSizes[c] < size {
			c++
		}
		t[size] = uint8(c)
	}
	return &t
})

// classElems holds the number of elements a slab of each class holds.
var classElems = sync.OnceValue(func() *[NumClasses]int {
	var t [NumClasses]int
	for c, size := range classSizes {
		t[c] = elemsFor(size)
	}
	return &t
})

// elemsFor returns the largest n such that n elements plus an n-bit bitmap
// plus the header fit in one slab.
func elemsFor(size int) int {
	avail := SlabSize - headerSize
	n := avail * 8 / (size*8 + 1)
	for n*size+bitmap.WordsFor(n)*8 > avail {
		n--
	}
	return n
}

// ClassOf returns the class serving size. It panics if size exceeds MaxSize.
func ClassOf(size int) int {
	if size < 0 || size > MaxSize {
		panic("slab: size outside the class range must go to the fallback allocator")
	}
	return int(classLookup()[size])
}

// ClassSize returns the element size of class c.
func ClassSize(c int) int {
	return classSizes[c]
}

// ElemsPerSlab returns the number of elements a slab of class c holds.
func ElemsPerSlab(c int) int {
	return classElems()[c]
}
