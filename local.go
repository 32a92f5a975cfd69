package fastalloc

import (
	"sync"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/fallback"
	"github.com/hupe1980/fastalloc/internal/slab"
	"github.com/hupe1980/fastalloc/internal/span"
)

// idle holds heaps not currently owned by any goroutine.
var idle struct {
	mu    sync.Mutex
	heaps []*Heap
	opts  []Option
}

// SetDefaultOptions sets the options Acquire uses for the heaps it creates.
// Heaps created earlier keep their options.
func SetDefaultOptions(opts ...Option) {
	idle.mu.Lock()
	defer idle.mu.Unlock()

	idle.opts = opts
}

// Acquire hands the caller exclusive ownership of an idle heap, creating one
// if none is idle. Return it with Release.
func Acquire() (*Heap, error) {
	idle.mu.Lock()
	if n := len(idle.heaps); n > 0 {
		h := idle.heaps[n-1]
		idle.heaps[n-1] = nil
		idle.heaps = idle.heaps[:n-1]
		idle.mu.Unlock()
		return h, nil
	}
	opts := idle.opts
	idle.mu.Unlock()

	return New(opts...)
}

// acquireOwner takes the idle heap with the given id, if it is idle.
func acquireOwner(id uint32) *Heap {
	idle.mu.Lock()
	defer idle.mu.Unlock()

	for i, h := range idle.heaps {
		if h.id == id {
			last := len(idle.heaps) - 1
			idle.heaps[i] = idle.heaps[last]
			idle.heaps[last] = nil
			idle.heaps = idle.heaps[:last]
			return h
		}
	}
	return nil
}

// ownerOf returns the id of the heap owning ptr, 0 if none.
func ownerOf(ptr unsafe.Pointer) uint32 {
	s, _ := span.Global().Lookup(uintptr(ptr))
	return s.Owner
}

// Release gives up ownership of h. Closed heaps are dropped.
func Release(h *Heap) {
	if h == nil || h.closed {
		return
	}
	idle.mu.Lock()
	defer idle.mu.Unlock()

	idle.heaps = append(idle.heaps, h)
}

// Malloc allocates size bytes from a borrowed heap.
func Malloc(size int) (unsafe.Pointer, error) {
	h, err := Acquire()
	if err != nil {
		return nil, err
	}
	defer Release(h)

	return h.Alloc(size)
}

// Free releases ptr. If the owning heap is idle the block is freed directly,
// otherwise it is queued for the owner.
func Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}

	h := acquireOwner(ownerOf(ptr))
	if h == nil {
		var err error
		if h, err = Acquire(); err != nil {
			return err
		}
	}
	defer Release(h)

	return h.Free(ptr)
}

// Realloc resizes ptr using a borrowed heap, preferring the owner of ptr.
func Realloc(ptr unsafe.Pointer, size int) (unsafe.Pointer, error) {
	var h *Heap
	if ptr != nil {
		h = acquireOwner(ownerOf(ptr))
	}
	if h == nil {
		var err error
		if h, err = Acquire(); err != nil {
			return nil, err
		}
	}
	defer Release(h)

	return h.Realloc(ptr, size)
}

// UsableSize returns the number of bytes usable at ptr.
func UsableSize(ptr unsafe.Pointer) int {
	if ptr == nil {
		return 0
	}
	s, ok := span.Global().Lookup(uintptr(ptr))
	if !ok {
		panic("fastalloc: pointer was not allocated by any heap")
	}
	if s.Kind == span.KindSlab {
		return slab.UsableSize(ptr)
	}

	if h := acquireOwner(s.Owner); h != nil {
		defer Release(h)
		return h.UsableSize(ptr)
	}
	return fallback.UsableSize(ptr)
}
