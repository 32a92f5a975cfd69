// Package span records which heap owns each OS reservation.
//
// Lookups are lock-free: the registry publishes a sorted, immutable slice
// through an atomic pointer and writers replace it under a mutex. Writes only
// happen when address space is reserved or released, which is rare next to
// frees that need an owner lookup.
package span

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Kind classifies what a span backs.
type Kind uint8

const (
	// KindSlab is a block of the slab unit pool.
	KindSlab Kind = iota + 1
	// KindLarge is a fallback region holding large objects.
	KindLarge
	// KindMeta is allocator metadata such as radix tree nodes.
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindSlab:
		return "slab"
	case KindLarge:
		return "large"
	case KindMeta:
		return "meta"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Span is a half-open address range [Base, Limit).
type Span struct {
	Base  uintptr
	Limit uintptr
	Owner uint32
	Kind  Kind
}

// Contains reports whether addr lies inside the span.
func (s Span) Contains(addr uintptr) bool {
	return addr >= s.Base && addr < s.Limit
}

// Registry maps addresses to spans.
type Registry struct {
	mu    sync.Mutex
	spans atomic.Pointer[[]Span]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := []Span{}
	r.spans.Store(&empty)
	return r
}

// Insert publishes s. It panics if s overlaps an existing span.
func (r *Registry) Insert(s Span) {
	if s.Limit <= s.Base {
		panic("span: empty range")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.spans.Load()
	i, _ := slices.BinarySearchFunc(old, s.Base, func(e Span, base uintptr) int {
		switch {
		case e.Base < base:
			return -1
		case e.Base > base:
			return 1
		}
		return 0
	})
	if (i > 0 && old[i-1].Limit > s.Base) || (i < len(old) && old[i].Base < s.Limit) {
		panic(fmt.Sprintf("span: %#x-%#x overlaps a registered span", s.Base, s.Limit))
	}

	next := make([]Span, 0, len(old)+1)
	next = append(next, old[:i]...)
	next = append(next, s)
	next = append(next, old[i:]...)
	r.spans.Store(&next)
}

// Remove withdraws the span starting at base and returns it.
func (r *Registry) Remove(base uintptr) (Span, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.spans.Load()
	i := r.index(old, base)
	if i < 0 || old[i].Base != base {
		return Span{}, false
	}

	removed := old[i]
	next := make([]Span, 0, len(old)-1)
	next = append(next, old[:i]...)
	next = append(next, old[i+1:]...)
	r.spans.Store(&next)
	return removed, true
}

// Lookup returns the span containing addr.
func (r *Registry) Lookup(addr uintptr) (Span, bool) {
	spans := *r.spans.Load()
	i := r.index(spans, addr)
	if i < 0 || !spans[i].Contains(addr) {
		return Span{}, false
	}
	return spans[i], true
}

// Len returns the number of registered spans.
func (r *Registry) Len() int {
	return len(*r.spans.Load())
}

// Owned returns the spans belonging to owner, in address order.
func (r *Registry) Owned(owner uint32) []Span {
	var out []Span
	for _, s := range *r.spans.Load() {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	return out
}

// index returns the position of the last span whose Base <= addr, or -1.
func (r *Registry) index(spans []Span, addr uintptr) int {
	lo, hi := 0, len(spans)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if spans[mid].Base <= addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

var global = NewRegistry()

// Global returns the process-wide registry shared by all heaps.
func Global() *Registry {
	return global
}
