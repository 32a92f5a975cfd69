package fastalloc

import (
	"sync"

	"github.com/hupe1980/fastalloc/internal/container"
)

// maxHeaps bounds the number of live heaps. Ids of closed heaps are reused.
const maxHeaps = 1 << 16

// registry maps heap ids to heaps so a cross-heap free can reach the
// owner's deferred queue. Lookups are lock-free; register and unregister
// serialize on the mutex.
type registry struct {
	mu    sync.Mutex
	heaps *container.SegmentedArray[Heap]
	next  uint32 // lowest id never handed out; 0 is never used
	free  []uint32
	live  int
}

func newRegistry() *registry {
	return &registry{
		heaps: container.NewSegmentedArray[Heap](),
		next:  1,
	}
}

func (r *registry) register(h *Heap) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id uint32
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if r.next >= maxHeaps {
			return 0, ErrTooManyHeaps
		}
		id = r.next
		r.next++
	}

	r.heaps.Store(id, h)
	r.live++
	return id, nil
}

func (r *registry) unregister(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == 0 || r.heaps.Load(id) == nil {
		return
	}
	r.heaps.Store(id, nil)
	r.free = append(r.free, id)
	r.live--
}

func (r *registry) lookup(id uint32) *Heap {
	return r.heaps.Load(id)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.live
}

var heaps = newRegistry()
