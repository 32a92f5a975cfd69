package fastalloc

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/blockpool"
	"github.com/hupe1980/fastalloc/internal/conv"
	"github.com/hupe1980/fastalloc/internal/fallback"
	"github.com/hupe1980/fastalloc/internal/mem"
	"github.com/hupe1980/fastalloc/internal/rtree"
	"github.com/hupe1980/fastalloc/internal/slab"
	"github.com/hupe1980/fastalloc/internal/span"
)

// MaxSmallSize is the largest request served by a size class.
// Larger requests are served by the large-object allocator.
const MaxSmallSize = slab.MaxSize

// Heap is an allocator instance owned by a single goroutine at a time.
//
// Alloc, Realloc, UsableSize and Close must only be called by the owner.
// Free may be called by any owner with any pointer from any heap: frees of
// pointers owned by another heap are queued for that heap and applied on
// its next Alloc or local Free.
type Heap struct {
	id     uint32
	opts   options
	logger *Logger
	spans  *span.Registry

	slabs *slab.Allocator
	large *fallback.Allocator // nil until the first large allocation
	tree  *rtree.Tree         // nil until the first large allocation

	deferred *deferredQueue
	scratch  []unsafe.Pointer
	closed   bool
}

// New creates a heap. The first block of slab memory is reserved eagerly;
// large-object memory is reserved on first use.
func New(optFns ...Option) (*Heap, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(nil)
	}

	h := &Heap{
		opts:     o,
		spans:    span.Global(),
		deferred: newDeferredQueue(o.deferredCapacity),
	}

	id, err := heaps.register(h)
	if err != nil {
		return nil, err
	}
	h.id = id
	h.logger = o.logger.WithHeap(id)

	pool, err := blockpool.New(blockpool.Config{
		UnitSize:         slab.SlabSize,
		Align:            slab.SlabSize,
		InitialBlockSize: o.slabPoolSize,
		MaxBlocks:        o.maxBlocks,
	}, h.reserver(span.KindSlab))
	if err != nil {
		heaps.unregister(id)
		h.logger.LogHeap("create", err)
		return nil, err
	}

	h.slabs, err = slab.New(pool, id, slab.Config{ReuseThreshold: o.reuseThreshold})
	if err != nil {
		heaps.unregister(id)
		return nil, errors.Join(err, pool.Close())
	}

	h.logger.LogHeap("created", nil)
	return h, nil
}

// ID returns the heap's id, unique among live heaps.
func (h *Heap) ID() uint32 {
	return h.id
}

// Alloc returns a pointer to at least size bytes of memory.
// The memory is not zeroed. Blocks up to MaxSmallSize bytes are aligned to
// at least 8 bytes, larger blocks to 16 bytes.
func (h *Heap) Alloc(size int) (unsafe.Pointer, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}

	h.drain()
	return h.alloc(size)
}

func (h *Heap) alloc(size int) (unsafe.Pointer, error) {
	if size > MaxSmallSize {
		return h.allocLarge(size)
	}
	return h.slabs.Alloc(size)
}

func (h *Heap) ensureLarge() error {
	if h.large != nil {
		return nil
	}

	tree, err := rtree.New(rtree.Config{
		BlockSize: h.opts.metadataPoolSize,
		MaxBlocks: h.opts.maxBlocks,
	}, h.reserver(span.KindMeta))
	if err != nil {
		return err
	}

	large, err := fallback.New(fallback.Config{
		RegionSize: h.opts.largeRegionSize,
		MaxRegions: h.opts.maxRegions,
	}, h.reserver(span.KindLarge))
	if err != nil {
		return errors.Join(err, tree.Close())
	}

	h.tree, h.large = tree, large
	return nil
}

func (h *Heap) allocLarge(size int) (unsafe.Pointer, error) {
	n, err := conv.IntToUintptr(size)
	if err != nil {
		return nil, err
	}
	if err := h.ensureLarge(); err != nil {
		return nil, err
	}

	p, err := h.large.Alloc(size)
	if err != nil {
		if errors.Is(err, ErrRegionLimit) {
			h.logger.LogLimit("large regions", size, err)
		}
		return nil, err
	}
	if err := h.tree.Push(uintptr(p), n); err != nil {
		h.large.Free(p)
		return nil, err
	}
	return p, nil
}

// Free releases ptr. A nil ptr is a no-op.
//
// Freeing a pointer owned by another heap queues it for that heap and
// returns ErrDeferredQueueFull if the owner's queue is at capacity; the
// caller may retry later. Freeing a pointer that no heap handed out, or
// freeing it twice, panics.
func (h *Heap) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}
	if h.closed {
		return ErrClosed
	}

	s := h.lookup(ptr)
	if s.Owner != h.id {
		return h.freeRemote(s.Owner, ptr)
	}

	h.drain()
	h.freeLocal(s.Kind, ptr)
	return nil
}

func (h *Heap) lookup(ptr unsafe.Pointer) span.Span {
	s, ok := h.spans.Lookup(uintptr(ptr))
	if !ok {
		panic(fmt.Sprintf("fastalloc: %p was not allocated by any heap", ptr))
	}
	if s.Kind == span.KindMeta {
		panic(fmt.Sprintf("fastalloc: %p points into allocator metadata", ptr))
	}
	return s
}

func (h *Heap) freeLocal(kind span.Kind, ptr unsafe.Pointer) {
	switch kind {
	case span.KindSlab:
		h.slabs.Free(ptr)
	case span.KindLarge:
		h.freeLarge(ptr)
	}
}

func (h *Heap) freeLarge(ptr unsafe.Pointer) {
	if !h.tree.Contains(uintptr(ptr)) {
		panic(fmt.Sprintf("fastalloc: double free of %p", ptr))
	}
	h.tree.Remove(uintptr(ptr))
	h.large.Free(ptr)
}

func (h *Heap) freeRemote(owner uint32, ptr unsafe.Pointer) error {
	target := heaps.lookup(owner)
	if target == nil {
		panic(fmt.Sprintf("fastalloc: %p belongs to closed heap %d", ptr, owner))
	}
	if !target.deferred.push(ptr) {
		h.logger.LogLimit("deferred queue", 1, ErrDeferredQueueFull)
		return ErrDeferredQueueFull
	}
	return nil
}

// drain applies frees other heaps queued for h.
func (h *Heap) drain() {
	if h.deferred.size() == 0 {
		return
	}
	h.scratch = h.deferred.takeAll(h.scratch[:0])
	for i, ptr := range h.scratch {
		h.freeLocal(h.lookup(ptr).Kind, ptr)
		h.scratch[i] = nil
	}
}

// Realloc resizes the block at ptr to size bytes, preserving
// min(old, new) bytes of content. A nil ptr behaves like Alloc; a zero size
// frees ptr and returns nil.
//
// The block stays in place when it can: a small block whose size class is
// unchanged, or a large block whose chunk still fits. Blocks owned by
// another heap are copied into this heap and the original is queued for
// its owner.
func (h *Heap) Realloc(ptr unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if ptr == nil {
		return h.Alloc(size)
	}
	if h.closed {
		return nil, ErrClosed
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return nil, h.Free(ptr)
	}

	s := h.lookup(ptr)
	if s.Owner != h.id {
		return h.move(ptr, h.UsableSize(ptr), size, func() error {
			return h.freeRemote(s.Owner, ptr)
		})
	}

	h.drain()

	if s.Kind == span.KindSlab {
		old := slab.UsableSize(ptr)
		if size <= MaxSmallSize && slab.ClassSize(slab.ClassOf(size)) == old {
			return ptr, nil
		}
		return h.move(ptr, old, size, func() error {
			h.slabs.Free(ptr)
			return nil
		})
	}

	oldSize, ok := h.tree.Size(uintptr(ptr))
	if !ok {
		panic(fmt.Sprintf("fastalloc: realloc of freed pointer %p", ptr))
	}
	if size > MaxSmallSize && h.large.Resize(ptr, size) {
		h.tree.Update(uintptr(ptr), uintptr(size))
		return ptr, nil
	}
	return h.move(ptr, conv.MustUintptrToInt(oldSize), size, func() error {
		h.freeLarge(ptr)
		return nil
	})
}

// move allocates size bytes, copies min(old, size) bytes from ptr and
// releases ptr with release. If release fails the new block is freed and
// ptr stays valid.
func (h *Heap) move(ptr unsafe.Pointer, old, size int, release func() error) (unsafe.Pointer, error) {
	out, err := h.alloc(size)
	if err != nil {
		return nil, err
	}
	mem.Copy(out, ptr, min(old, size))

	if err := release(); err != nil {
		s := h.lookup(out)
		h.freeLocal(s.Kind, out)
		return nil, err
	}
	return out, nil
}

// UsableSize returns the number of bytes usable at ptr: the size class for
// small blocks, the requested size for large blocks of this heap and the
// chunk capacity for large blocks of other heaps. A nil ptr has size 0.
func (h *Heap) UsableSize(ptr unsafe.Pointer) int {
	if ptr == nil {
		return 0
	}

	s := h.lookup(ptr)
	if s.Kind == span.KindSlab {
		return slab.UsableSize(ptr)
	}
	if s.Owner == h.id && h.tree != nil {
		if size, ok := h.tree.Size(uintptr(ptr)); ok {
			return conv.MustUintptrToInt(size)
		}
	}
	return fallback.UsableSize(ptr)
}

// AllocBytes returns a byte slice of length size backed by heap memory.
// Its capacity is the usable size of the block. Release it with FreeBytes.
func (h *Heap) AllocBytes(size int) ([]byte, error) {
	p, err := h.Alloc(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), h.UsableSize(p))[:size], nil
}

// FreeBytes releases a slice returned by AllocBytes, or any reslice of it
// that starts at the same element.
func (h *Heap) FreeBytes(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	return h.Free(unsafe.Pointer(unsafe.SliceData(b)))
}

// Stats describes a heap.
type Stats struct {
	ID            uint32
	Slabs         int   // slabs in use
	SmallObjects  int   // live blocks of MaxSmallSize bytes or less
	LargeObjects  int   // live blocks above MaxSmallSize bytes
	Regions       int   // large-object regions
	Deferred      int   // frees queued by other heaps, not yet applied
	ReservedBytes int64 // address space reserved from the OS
}

// Stats returns a snapshot of the heap's occupancy.
func (h *Heap) Stats() Stats {
	ss := h.slabs.Stats()
	st := Stats{
		ID:           h.id,
		Slabs:        ss.Slabs,
		SmallObjects: ss.Live,
		Deferred:     h.deferred.size(),
	}
	if h.large != nil {
		st.LargeObjects = h.tree.Len()
		st.Regions = h.large.Regions()
	}
	for _, s := range h.spans.Owned(h.id) {
		st.ReservedBytes += int64(s.Limit - s.Base)
	}
	return st
}

// Close applies queued frees and releases all memory of the heap.
// Every block handed out by the heap becomes invalid.
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}
	h.drain()
	h.closed = true
	heaps.unregister(h.id)

	var errs []error
	if h.tree != nil {
		errs = append(errs, h.tree.Close(), h.large.Close())
		h.tree, h.large = nil, nil
	}
	errs = append(errs, h.slabs.Close())

	err := errors.Join(errs...)
	h.logger.LogHeap("close", err)
	return err
}
