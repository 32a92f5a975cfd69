// Package fastalloc provides an off-heap memory allocator for Go.
//
// Memory comes straight from anonymous OS mappings and is invisible to the
// garbage collector. Blocks must be freed explicitly and must not hold
// pointers into the Go heap.
//
// # Quick Start
//
//	h, _ := fastalloc.New()
//	defer h.Close()
//
//	p, _ := h.Alloc(256)
//	defer h.Free(p)
//
// Byte-slice views are available for code that works on []byte:
//
//	buf, _ := h.AllocBytes(4096)
//	defer h.FreeBytes(buf)
//
// # Heaps and Owners
//
// A Heap is owned by one goroutine at a time. Its hot paths take no locks.
// Any owner may free any block: a block owned by another heap is queued for
// that heap and reclaimed on its next Alloc or local Free.
//
//	g.Go(func() error {
//	    h, _ := fastalloc.Acquire()
//	    defer fastalloc.Release(h)
//	    return h.Free(ptrFromAnotherHeap)
//	})
//
// The package-level Malloc, Free, Realloc and UsableSize borrow an idle heap
// per call.
//
// # Size Classes
//
// Requests up to MaxSmallSize bytes are served from 32 KiB slabs, one chain
// per size class. Larger requests go to a boundary-tag allocator over
// growable regions; their exact sizes are kept in a radix tree.
//
// # Limits
//
// Every OS reservation can be charged to a Budget:
//
//	budget := fastalloc.NewBudget(1 << 30)
//	h, _ := fastalloc.New(fastalloc.WithBudget(budget))
//
// Running out of budget returns ErrMemoryLimitExceeded; a refused OS
// reservation returns an error matching ErrOutOfMemory. Contract violations
// such as double frees and foreign pointers panic.
package fastalloc
