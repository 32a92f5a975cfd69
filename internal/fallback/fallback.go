package fallback

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/conv"
	"github.com/hupe1980/fastalloc/internal/mem"
	"github.com/hupe1980/fastalloc/internal/mmap"
)

const (
	// Align is the alignment of every chunk and every returned pointer.
	Align = 16
	// HeaderSize is the chunk header padded to Align.
	HeaderSize = (int(unsafe.Sizeof(chunk{})) + Align - 1) &^ (Align - 1)
	// MinChunk is the smallest chunk worth splitting off.
	MinChunk = HeaderSize + Align

	// DefaultRegionSize is the size of the first region.
	DefaultRegionSize = 10 << 20
	// DefaultMaxRegions bounds the number of regions.
	DefaultMaxRegions = 64

	usedBit  = uintptr(1)
	flagMask = uintptr(Align - 1)
)

var (
	// ErrRegionLimit is returned when no chunk fits and MaxRegions regions
	// are already reserved.
	ErrRegionLimit = errors.New("fallback: max regions exceeded")
	// ErrTooLarge is returned for requests whose chunk size overflows.
	ErrTooLarge = errors.New("fallback: request too large")
)

// chunk is the boundary tag in front of every block of region memory.
// attr holds the chunk size including the header; the low bits are flags.
type chunk struct {
	attr uintptr
	prev *chunk
	next *chunk
}

func (c *chunk) size() uintptr { return c.attr &^ flagMask }
func (c *chunk) used() bool { return c.attr&usedBit != 0 }
func (c *chunk) setSize(n uintptr) { c.attr = n | c.attr&flagMask }
func (c *chunk) setUsed(u bool) {
	if u {
		c.attr |= usedBit
	} else {
		c.attr &^= usedBit
	}
}

func (c *chunk) payload() unsafe.Pointer {
	return mem.Add(unsafe.Pointer(c), uintptr(HeaderSize))
}

func chunkOf(ptr unsafe.Pointer) *chunk {
	return (*chunk)(unsafe.Add(ptr, -HeaderSize))
}

type region struct {
	mapping *mmap.Mapping
	first   *chunk
}

func (r *region) contains(addr uintptr) bool {
	return r.mapping.Contains(addr)
}

// Config tunes the allocator.
type Config struct {
	// RegionSize is the minimum size of the first region.
	RegionSize int
	// MaxRegions bounds the number of regions.
	MaxRegions int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{RegionSize: DefaultRegionSize, MaxRegions: DefaultMaxRegions}
}

// Allocator is a first-fit boundary-tag allocator over a bounded list of
// regions. It is owned by a single heap and is not safe for concurrent use.
type Allocator struct {
	regions  []*region
	reserved int
	max      int
	reserver mmap.Reserver
}

// New creates an allocator and reserves its first region from r.
func New(cfg Config, r mmap.Reserver) (*Allocator, error) {
	if cfg.RegionSize <= 0 {
		cfg.RegionSize = DefaultRegionSize
	}
	if cfg.MaxRegions <= 0 {
		cfg.MaxRegions = DefaultMaxRegions
	}
	if r == nil {
		r = mmap.OS
	}

	a := &Allocator{max: cfg.MaxRegions, reserver: r}
	if _, err := a.grow(uintptr(max(cfg.RegionSize, MinChunk))); err != nil {
		return nil, err
	}
	return a, nil
}

// grow reserves a region of at least size bytes whose single free chunk
// spans all of it.
func (a *Allocator) grow(size uintptr) (*region, error) {
	if len(a.regions) >= a.max {
		return nil, ErrRegionLimit
	}

	n, err := conv.UintptrToInt(size)
	if err != nil {
		return nil, ErrTooLarge
	}
	m, err := a.reserver.Reserve(n)
	if err != nil {
		return nil, fmt.Errorf("fallback: reserve %d bytes: %w", size, err)
	}

	first := (*chunk)(m.Base())
	*first = chunk{attr: mem.AlignDown(uintptr(m.Size()), Align)}

	r := &region{mapping: m, first: first}
	a.regions = append(a.regions, r)
	a.reserved += m.Size()
	return r, nil
}

// chunkSize returns the chunk size needed to serve size bytes.
func chunkSize(size int) (uintptr, error) {
	n, err := conv.IntToUintptr(size)
	if err != nil || n > ^uintptr(0)-uintptr(HeaderSize+Align) {
		return 0, ErrTooLarge
	}
	need := mem.AlignUp(n, Align) + uintptr(HeaderSize)
	return max(need, uintptr(MinChunk)), nil
}

// Alloc returns at least size bytes aligned to Align.
// The content is unspecified.
func (a *Allocator) Alloc(size int) (unsafe.Pointer, error) {
	need, err := chunkSize(size)
	if err != nil {
		return nil, err
	}

	for _, r := range a.regions {
		if c := fit(r, need); c != nil {
			return c.payload(), nil
		}
	}

	r, err := a.grow(max(uintptr(a.reserved), need))
	if err != nil {
		return nil, err
	}
	return fit(r, need).payload(), nil
}

// fit takes the first free chunk of r holding need bytes, splitting off the
// remainder when it is large enough to stand alone.
func fit(r *region, need uintptr) *chunk {
	for c := r.first; c != nil; c = c.next {
		if c.used() || c.size() < need {
			continue
		}
		if rest := c.size() - need; rest >= uintptr(MinChunk) {
			split := (*chunk)(mem.Add(unsafe.Pointer(c), need))
			*split = chunk{attr: rest, prev: c, next: c.next}
			if c.next != nil {
				c.next.prev = split
			}
			c.next = split
			c.setSize(need)
		}
		c.setUsed(true)
		return c
	}
	return nil
}

// Free returns ptr's chunk to its region and merges it with free
// neighbours. It panics if ptr is not a live allocation of this allocator.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	c := a.validate(ptr)
	c.setUsed(false)

	if n := c.next; n != nil && !n.used() {
		c.setSize(c.size() + n.size())
		c.next = n.next
		if c.next != nil {
			c.next.prev = c
		}
	}
	if p := c.prev; p != nil && !p.used() {
		p.setSize(p.size() + c.size())
		p.next = c.next
		if p.next != nil {
			p.next.prev = p
		}
	}
}

func (a *Allocator) validate(ptr unsafe.Pointer) *chunk {
	addr := uintptr(ptr)
	if addr%Align != 0 || a.regionOf(addr-uintptr(HeaderSize)) == nil {
		panic(fmt.Sprintf("fallback: %p was not allocated here", ptr))
	}
	c := chunkOf(ptr)
	if !c.used() {
		panic(fmt.Sprintf("fallback: double free of %p", ptr))
	}
	return c
}

func (a *Allocator) regionOf(addr uintptr) *region {
	for _, r := range a.regions {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

// Resize tries to serve size bytes from ptr's chunk without moving it.
// A shrinking chunk gives its tail back when the tail can stand alone.
// Resize reports whether ptr still serves size bytes.
func (a *Allocator) Resize(ptr unsafe.Pointer, size int) bool {
	c := a.validate(ptr)
	need, err := chunkSize(size)
	if err != nil || need > c.size() {
		return false
	}
	rest := c.size() - need
	if rest < uintptr(MinChunk) {
		return true
	}

	tail := (*chunk)(mem.Add(unsafe.Pointer(c), need))
	*tail = chunk{attr: rest | usedBit, prev: c, next: c.next}
	if c.next != nil {
		c.next.prev = tail
	}
	c.next = tail
	c.setSize(need)
	a.Free(tail.payload())
	return true
}

// Realloc resizes ptr's allocation, preserving min(old, new) bytes.
// It resizes in place when it can. Otherwise the new chunk is allocated
// before the old one is released, so the data is never overwritten by a
// split header.
func (a *Allocator) Realloc(ptr unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if a.Resize(ptr, size) {
		return ptr, nil
	}

	out, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	mem.Copy(out, ptr, min(size, UsableSize(ptr)))
	a.Free(ptr)
	return out, nil
}

// UsableSize returns the payload capacity of the chunk holding ptr.
// ptr must be a live allocation of some fallback allocator.
func UsableSize(ptr unsafe.Pointer) int {
	return int(chunkOf(ptr).size()) - HeaderSize
}

// Owns reports whether ptr lies in one of the allocator's regions.
func (a *Allocator) Owns(ptr unsafe.Pointer) bool {
	return a.regionOf(uintptr(ptr)) != nil
}

// Regions returns the number of reserved regions.
func (a *Allocator) Regions() int {
	return len(a.regions)
}

// ChunkInfo describes one chunk.
type ChunkInfo struct {
	Region int
	Addr   uintptr
	Size   int // including the header
	Used   bool
}

// Walk calls fn for every chunk in address order until fn returns false.
func (a *Allocator) Walk(fn func(ChunkInfo) bool) {
	for i, r := range a.regions {
		for c := r.first; c != nil; c = c.next {
			info := ChunkInfo{Region: i, Addr: uintptr(unsafe.Pointer(c)), Size: int(c.size()), Used: c.used()}
			if !fn(info) {
				return
			}
		}
	}
}

// Close releases every region. Allocations must not be used afterwards.
func (a *Allocator) Close() error {
	var errs []error
	for _, r := range a.regions {
		if err := a.reserver.Release(r.mapping); err != nil {
			errs = append(errs, err)
		}
	}
	a.regions = nil
	a.reserved = 0
	return errors.Join(errs...)
}
