// Package container implements container data structures.
package container

import (
	"sync"
	"sync/atomic"
)

const (
	// segmentBits determines the size of each segment.
	// 10 bits = 1024 slots per segment.
	segmentBits = 10
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
)

// SegmentedArray is a thread-safe, lock-free, segmented array of pointers.
// Slots are read and written atomically; growth is serialized.
type SegmentedArray[T any] struct {
	segments atomic.Pointer[[]*segment[T]]
	mu       sync.Mutex // Protects growth
}

type segment[T any] struct {
	items [segmentSize]atomic.Pointer[T]
}

// NewSegmentedArray creates a new SegmentedArray.
func NewSegmentedArray[T any]() *SegmentedArray[T] {
	sa := &SegmentedArray[T]{}
	segments := make([]*segment[T], 0)
	sa.segments.Store(&segments)
	return sa
}

// Load returns the pointer at index, nil if the slot was never set.
func (sa *SegmentedArray[T]) Load(index uint32) *T {
	segments := *sa.segments.Load()
	segIdx := int(index >> segmentBits)
	if segIdx >= len(segments) {
		return nil
	}
	return segments[segIdx].items[index&segmentMask].Load()
}

// Store sets the pointer at index, growing the array if necessary.
func (sa *SegmentedArray[T]) Store(index uint32, v *T) {
	segIdx := int(index >> segmentBits)

	// Fast path: segment exists
	if segments := *sa.segments.Load(); segIdx < len(segments) {
		segments[segIdx].items[index&segmentMask].Store(v)
		return
	}

	sa.mu.Lock()
	defer sa.mu.Unlock()

	// Reload under lock
	current := *sa.segments.Load()
	if segIdx < len(current) {
		current[segIdx].items[index&segmentMask].Store(v)
		return
	}

	grown := make([]*segment[T], segIdx+1)
	copy(grown, current)
	for i := len(current); i < len(grown); i++ {
		grown[i] = &segment[T]{}
	}
	grown[segIdx].items[index&segmentMask].Store(v)

	// Publish new segments
	sa.segments.Store(&grown)
}

// Cap returns the number of slots currently backed by segments.
func (sa *SegmentedArray[T]) Cap() int {
	return len(*sa.segments.Load()) * segmentSize
}
