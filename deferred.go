package fastalloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// deferredQueue collects pointers other heaps want to free on behalf of the
// owning heap. Any goroutine may push; only the owner drains.
// It sits on its own cache lines so pushes do not false-share with the
// owner's hot fields.
type deferredQueue struct {
	_       cpu.CacheLinePad
	mu      sync.Mutex
	items   []unsafe.Pointer
	limit   int
	pending atomic.Int64
	_       cpu.CacheLinePad
}

func newDeferredQueue(limit int) *deferredQueue {
	return &deferredQueue{
		items: make([]unsafe.Pointer, 0, min(limit, 64)),
		limit: limit,
	}
}

// push appends p. It reports false when the queue is full.
func (q *deferredQueue) push(p unsafe.Pointer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.limit {
		return false
	}
	q.items = append(q.items, p)
	q.pending.Add(1)
	return true
}

// takeAll moves every queued pointer into dst and returns it.
func (q *deferredQueue) takeAll(dst []unsafe.Pointer) []unsafe.Pointer {
	q.mu.Lock()
	defer q.mu.Unlock()

	dst = append(dst, q.items...)
	clear(q.items)
	q.items = q.items[:0]
	q.pending.Store(0)
	return dst
}

// size returns the number of queued pointers without taking the lock.
func (q *deferredQueue) size() int {
	return int(q.pending.Load())
}
