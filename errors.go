package fastalloc

import (
	"errors"
	"fmt"

	"github.com/hupe1980/fastalloc/internal/blockpool"
	"github.com/hupe1980/fastalloc/internal/fallback"
	"github.com/hupe1980/fastalloc/internal/resource"
)

var (
	// ErrClosed is returned when a heap is used after Close.
	ErrClosed = errors.New("fastalloc: heap is closed")
	// ErrInvalidSize is returned for negative request sizes.
	ErrInvalidSize = errors.New("fastalloc: invalid size")
	// ErrOutOfMemory is matched by every failure to obtain memory from the OS.
	ErrOutOfMemory = errors.New("fastalloc: out of memory")
	// ErrDeferredQueueFull is returned when a cross-heap free finds the
	// owner's deferred queue at capacity.
	ErrDeferredQueueFull = errors.New("fastalloc: deferred free queue full")
	// ErrTooManyHeaps is returned when no heap id is available.
	ErrTooManyHeaps = errors.New("fastalloc: too many heaps")

	// ErrRegionLimit is returned when the large-object allocator already
	// holds its maximum number of regions.
	ErrRegionLimit = fallback.ErrRegionLimit
	// ErrTooLarge is returned for requests no region could ever hold.
	ErrTooLarge = fallback.ErrTooLarge
	// ErrBlockLimit is returned when a block pool already holds its maximum
	// number of blocks.
	ErrBlockLimit = blockpool.ErrExhausted
	// ErrMemoryLimitExceeded is returned when a reservation would exceed the
	// configured memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ReserveError reports a failed OS reservation.
//
// It matches ErrOutOfMemory with errors.Is; the platform error can be
// accessed via errors.Unwrap.
type ReserveError struct {
	Size  int
	cause error
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("fastalloc: reserve %d bytes: %v", e.Size, e.cause)
}

func (e *ReserveError) Unwrap() error { return e.cause }

// Is reports whether target is ErrOutOfMemory.
func (e *ReserveError) Is(target error) bool { return target == ErrOutOfMemory }
