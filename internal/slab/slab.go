package slab

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/bitmap"
	"github.com/hupe1980/fastalloc/internal/blockpool"
	"github.com/hupe1980/fastalloc/internal/mem"
)

const (
	// DefaultReuseThreshold is the peak occupancy a slab must have reached
	// before it is returned to the block pool on becoming empty.
	DefaultReuseThreshold = 10

	recentCap = 10
	slabMagic = 0x51AB51AB
	noSlot    = ^uint16(0)
	slabAlign = uintptr(SlabSize)
)

// ErrMisalignedPool is returned when the block pool does not hand out
// units of exactly SlabSize aligned to SlabSize.
var ErrMisalignedPool = errors.New("slab: block pool units must be SlabSize-sized and SlabSize-aligned")

// header sits at the end of each slab unit.
type header struct {
	magic    uint32
	owner    uint32
	class    uint8
	cacheLen uint8
	live     uint32
	peak     uint32
	base     unsafe.Pointer
	prev     *header
	next     *header
	bits     bitmap.Bitmap
	recent   [recentCap]uint16
}

func headerOf(ptr unsafe.Pointer) *header {
	off := int(uintptr(ptr) & (slabAlign - 1))
	return (*header)(unsafe.Add(ptr, SlabSize-headerSize-off))
}

// take returns a free slot or noSlot.
func (h *header) take() uint16 {
	if h.cacheLen > 0 {
		h.cacheLen--
		slot := h.recent[h.cacheLen]
		if h.bits.Test(int(slot)) {
			panic("slab: recency cache holds an occupied slot")
		}
		h.bits.Set(int(slot), true)
		return slot
	}
	if i := h.bits.FindFreeAndSet(); i != bitmap.NotFound {
		return uint16(i)
	}
	return noSlot
}

// Config tunes the allocator.
type Config struct {
	// ReuseThreshold is the peak number of live elements a slab must have
	// reached before it is destroyed on becoming empty. Slabs below it stay
	// cached in their chain.
	ReuseThreshold int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{ReuseThreshold: DefaultReuseThreshold}
}

// Allocator serves requests up to MaxSize from per-class slab chains.
// An Allocator is owned by a single heap and is not safe for concurrent use.
type Allocator struct {
	pool      *blockpool.Pool
	owner     uint32
	threshold uint32
	heads     [NumClasses]*header
	slabs     int
}

// New creates an allocator that takes ownership of pool.
// owner is stamped into every slab so frees can be routed back.
func New(pool *blockpool.Pool, owner uint32, cfg Config) (*Allocator, error) {
	if pool.UnitSize() != SlabSize || pool.Align() != SlabSize {
		return nil, ErrMisalignedPool
	}
	if cfg.ReuseThreshold < 0 {
		cfg.ReuseThreshold = DefaultReuseThreshold
	}
	return &Allocator{
		pool:      pool,
		owner:     owner,
		threshold: uint32(cfg.ReuseThreshold),
	}, nil
}

// Alloc returns an element of the smallest class that fits size.
// The content is unspecified. size must not exceed MaxSize.
func (a *Allocator) Alloc(size int) (unsafe.Pointer, error) {
	c := ClassOf(size)

	var last *header
	for h := a.heads[c]; h != nil; h = h.next {
		if slot := h.take(); slot != noSlot {
			return a.hand(h, slot), nil
		}
		last = h
	}

	h, err := a.newSlab(c)
	if err != nil {
		return nil, err
	}
	if last == nil {
		a.heads[c] = h
	} else {
		last.next = h
		h.prev = last
	}
	return a.hand(h, h.take()), nil
}

func (a *Allocator) hand(h *header, slot uint16) unsafe.Pointer {
	h.live++
	h.peak = max(h.peak, h.live)
	return unsafe.Add(h.base, int(slot)*classSizes[h.class])
}

func (a *Allocator) newSlab(c int) (*header, error) {
	unit, err := a.pool.Alloc()
	if err != nil {
		return nil, err
	}
	if uintptr(unit)%slabAlign != 0 {
		panic("slab: block pool returned a misaligned unit")
	}

	n := ElemsPerSlab(c)
	size := classSizes[c]
	words := unsafe.Slice((*uint64)(mem.Add(unit, uintptr(n*size))), bitmap.WordsFor(n))

	h := headerOf(unit)
	*h = header{
		magic: slabMagic,
		owner: a.owner,
		class: uint8(c),
		base:  unit,
		bits:  bitmap.Init(words, n),
	}
	a.slabs++
	return h, nil
}

// Free returns ptr to its slab. It panics on a pointer that is not a live
// element of a slab owned by this allocator.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	h := a.validate(ptr)

	slot := int((uintptr(ptr) - uintptr(h.base)) / uintptr(classSizes[h.class]))
	if !h.bits.Test(slot) {
		panic(fmt.Sprintf("slab: double free of %p", ptr))
	}
	h.bits.Set(slot, false)
	if h.cacheLen < recentCap {
		h.recent[h.cacheLen] = uint16(slot)
		h.cacheLen++
	}
	h.live--

	if h.live == 0 && h.peak >= a.threshold {
		a.destroy(h)
	}
}

func (a *Allocator) validate(ptr unsafe.Pointer) *header {
	h := headerOf(ptr)
	if h.magic != slabMagic {
		panic(fmt.Sprintf("slab: %p is not a slab element", ptr))
	}
	if h.owner != a.owner {
		panic(fmt.Sprintf("slab: %p belongs to heap %d, not %d", ptr, h.owner, a.owner))
	}
	size := uintptr(classSizes[h.class])
	off := uintptr(ptr) - uintptr(h.base)
	if off%size != 0 || off/size >= uintptr(h.bits.Len()) {
		panic(fmt.Sprintf("slab: %p is not the start of an element", ptr))
	}
	return h
}

func (a *Allocator) destroy(h *header) {
	if h.prev != nil {
		h.prev.next = h.next
	} else {
		a.heads[h.class] = h.next
	}
	if h.next != nil {
		h.next.prev = h.prev
	}

	unit := h.base
	h.magic = 0
	a.slabs--
	a.pool.Free(unit)
}

// Owns reports whether ptr is an element of a slab stamped with this
// allocator's owner. ptr must lie in slab memory.
func (a *Allocator) Owns(ptr unsafe.Pointer) bool {
	h := headerOf(ptr)
	return h.magic == slabMagic && h.owner == a.owner
}

// Owner returns the owner stamped into the slab holding ptr.
// ptr must lie in slab memory.
func Owner(ptr unsafe.Pointer) uint32 {
	return headerOf(ptr).owner
}

// UsableSize returns the class size of the slab holding ptr.
// ptr must lie in slab memory.
func UsableSize(ptr unsafe.Pointer) int {
	return classSizes[headerOf(ptr).class]
}

// Slabs returns the number of slabs currently in class c's chain.
func (a *Allocator) Slabs(c int) int {
	n := 0
	for h := a.heads[c]; h != nil; h = h.next {
		n++
	}
	return n
}

// Stats describes allocator occupancy.
type Stats struct {
	Slabs int
	Live  int
	Pool  blockpool.Stats
}

// Stats returns the current occupancy.
func (a *Allocator) Stats() Stats {
	s := Stats{Slabs: a.slabs, Pool: a.pool.Stats()}
	for _, head := range a.heads {
		for h := head; h != nil; h = h.next {
			s.Live += int(h.live)
		}
	}
	return s
}

// Close releases the block pool. Elements must not be used afterwards.
func (a *Allocator) Close() error {
	a.heads = [NumClasses]*header{}
	a.slabs = 0
	return a.pool.Close()
}
