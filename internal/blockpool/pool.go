package blockpool

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/mem"
	"github.com/hupe1980/fastalloc/internal/mmap"
)

var (
	// ErrExhausted is returned when the pool already holds MaxBlocks blocks
	// and none of them has a free unit.
	ErrExhausted = errors.New("blockpool: max blocks exceeded")
	// ErrInvalidConfig is returned for a unit size or alignment the pool
	// cannot honour.
	ErrInvalidConfig = errors.New("blockpool: invalid config")
)

const (
	// DefaultInitialBlockSize is the size of the first block (4096 pages).
	DefaultInitialBlockSize = 0x1000 * 4096
	// DefaultMaxBlocks bounds the number of blocks per pool.
	DefaultMaxBlocks = 64

	slotSize = unsafe.Sizeof(uintptr(0))
)

// Config describes the units a pool hands out.
type Config struct {
	// UnitSize is rounded up to a multiple of the machine word.
	UnitSize int
	// Align is the alignment of every unit and must be a power of two.
	// Zero means word alignment.
	Align int
	// InitialBlockSize is the size of the first block. Each further block
	// is twice the size of the previous one.
	InitialBlockSize int
	// MaxBlocks bounds the number of blocks.
	MaxBlocks int
}

// DefaultConfig returns a config for units of the given size.
func DefaultConfig(unitSize int) Config {
	return Config{
		UnitSize:         unitSize,
		InitialBlockSize: DefaultInitialBlockSize,
		MaxBlocks:        DefaultMaxBlocks,
	}
}

// block is one reservation: [pad][units...][free-unit cache].
// The cache holds unit offsets from the mapping base.
type block struct {
	mapping  *mmap.Mapping
	start    uintptr // first unit, aligned to Config.Align
	limit    uintptr // end of the last unit
	units    int
	bump     int            // units handed out by bump allocation
	cache    unsafe.Pointer // LIFO stack of freed unit addresses, capacity == units
	cacheLen int
}

func (b *block) push(p unsafe.Pointer) {
	if b.cacheLen >= b.units {
		panic("blockpool: free cache overflow")
	}
	*(*uintptr)(mem.Add(b.cache, uintptr(b.cacheLen)*slotSize)) = uintptr(p) - b.mapping.Addr()
	b.cacheLen++
}

func (b *block) pop() unsafe.Pointer {
	b.cacheLen--
	off := *(*uintptr)(mem.Add(b.cache, uintptr(b.cacheLen)*slotSize))
	return mem.Add(b.mapping.Base(), off)
}

// Pool hands out fixed-size units carved from a growing list of blocks.
// A Pool is not safe for concurrent use.
type Pool struct {
	unit     uintptr
	align    uintptr
	next     int // size of the next block to reserve
	max      int
	blocks   []*block
	reserver mmap.Reserver
}

// New creates a pool and reserves its first block from r.
func New(cfg Config, r mmap.Reserver) (*Pool, error) {
	if cfg.UnitSize <= 0 {
		return nil, fmt.Errorf("%w: unit size %d", ErrInvalidConfig, cfg.UnitSize)
	}
	if cfg.Align == 0 {
		cfg.Align = int(mem.WordSize)
	}
	if cfg.Align < 0 || !mem.IsPowerOfTwo(uintptr(cfg.Align)) {
		return nil, fmt.Errorf("%w: alignment %d", ErrInvalidConfig, cfg.Align)
	}
	if cfg.InitialBlockSize <= 0 {
		cfg.InitialBlockSize = DefaultInitialBlockSize
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = DefaultMaxBlocks
	}
	if r == nil {
		r = mmap.OS
	}

	p := &Pool{
		unit:     mem.AlignUp(uintptr(cfg.UnitSize), mem.WordSize),
		align:    uintptr(max(cfg.Align, int(mem.WordSize))),
		next:     cfg.InitialBlockSize,
		max:      cfg.MaxBlocks,
		reserver: r,
	}

	if _, err := p.grow(); err != nil {
		return nil, err
	}
	return p, nil
}

// grow reserves a new block, at least big enough for one unit.
func (p *Pool) grow() (*block, error) {
	if len(p.blocks) >= p.max {
		return nil, ErrExhausted
	}

	minSize := int(p.unit + p.align + slotSize)
	size := max(p.next, minSize)

	m, err := p.reserver.Reserve(size)
	if err != nil {
		return nil, fmt.Errorf("blockpool: reserve %d bytes: %w", size, err)
	}

	base := m.Addr()
	start := mem.AlignUp(base, p.align)
	avail := base + uintptr(m.Size()) - start
	units := int(avail / (p.unit + slotSize))

	b := &block{
		mapping: m,
		start:   start,
		limit:   start + uintptr(units)*p.unit,
		units:   units,
	}
	b.cache = mem.Add(m.Base(), b.limit-base)

	p.blocks = append(p.blocks, b)
	p.next = size * 2
	return b, nil
}

// Alloc returns an unused unit. The unit's content is unspecified.
func (p *Pool) Alloc() (unsafe.Pointer, error) {
	for _, b := range p.blocks {
		if ptr := p.take(b); ptr != nil {
			return ptr, nil
		}
	}

	b, err := p.grow()
	if err != nil {
		return nil, err
	}
	return p.take(b), nil
}

func (p *Pool) take(b *block) unsafe.Pointer {
	if b.cacheLen > 0 {
		return b.pop()
	}
	if b.bump < b.units {
		off := b.start - b.mapping.Addr() + uintptr(b.bump)*p.unit
		b.bump++
		return mem.Add(b.mapping.Base(), off)
	}
	return nil
}

// Free returns a unit to the block it came from.
// It panics if ptr was not handed out by this pool.
func (p *Pool) Free(ptr unsafe.Pointer) {
	b := p.find(uintptr(ptr))
	if b == nil {
		panic(fmt.Sprintf("blockpool: free of foreign pointer %p", ptr))
	}
	if (uintptr(ptr)-b.start)%p.unit != 0 {
		panic(fmt.Sprintf("blockpool: free of misaligned pointer %p", ptr))
	}
	b.push(ptr)
}

// Owns reports whether ptr lies inside one of the pool's units.
func (p *Pool) Owns(ptr unsafe.Pointer) bool {
	return p.find(uintptr(ptr)) != nil
}

func (p *Pool) find(addr uintptr) *block {
	for _, b := range p.blocks {
		if addr >= b.start && addr < b.limit {
			return b
		}
	}
	return nil
}

// UnitSize returns the size of every unit.
func (p *Pool) UnitSize() int { return int(p.unit) }

// Align returns the alignment of every unit.
func (p *Pool) Align() int { return int(p.align) }

// Blocks returns the number of reserved blocks.
func (p *Pool) Blocks() int { return len(p.blocks) }

// Stats describes pool occupancy.
type Stats struct {
	Blocks        int
	Units         int // units the blocks can hold
	Free          int // units in free caches or never handed out
	BytesReserved int
}

// Stats returns the current occupancy.
func (p *Pool) Stats() Stats {
	var s Stats
	s.Blocks = len(p.blocks)
	for _, b := range p.blocks {
		s.Units += b.units
		s.Free += b.cacheLen + b.units - b.bump
		s.BytesReserved += b.mapping.Size()
	}
	return s
}

// Close releases every block. Units must not be used afterwards.
func (p *Pool) Close() error {
	var errs []error
	for _, b := range p.blocks {
		if err := p.reserver.Release(b.mapping); err != nil {
			errs = append(errs, err)
		}
	}
	p.blocks = nil
	return errors.Join(errs...)
}
