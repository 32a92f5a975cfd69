package fastalloc

import (
	"github.com/hupe1980/fastalloc/internal/blockpool"
	"github.com/hupe1980/fastalloc/internal/fallback"
	"github.com/hupe1980/fastalloc/internal/mmap"
	"github.com/hupe1980/fastalloc/internal/resource"
	"github.com/hupe1980/fastalloc/internal/rtree"
	"github.com/hupe1980/fastalloc/internal/slab"
)

// DefaultDeferredCapacity is the default bound of a heap's deferred-free queue.
const DefaultDeferredCapacity = 4096

type options struct {
	logger           *Logger
	reuseThreshold   int
	slabPoolSize     int
	maxBlocks        int
	largeRegionSize  int
	maxRegions       int
	metadataPoolSize int
	deferredCapacity int
	budget           *Budget
	reserver         mmap.Reserver
}

func defaultOptions() options {
	return options{
		reuseThreshold:   slab.DefaultReuseThreshold,
		slabPoolSize:     blockpool.DefaultInitialBlockSize,
		maxBlocks:        blockpool.DefaultMaxBlocks,
		largeRegionSize:  fallback.DefaultRegionSize,
		maxRegions:       fallback.DefaultMaxRegions,
		metadataPoolSize: rtree.DefaultBlockSize,
		deferredCapacity: DefaultDeferredCapacity,
		reserver:         mmap.OS,
	}
}

// Option configures a Heap.
type Option func(*options)

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithReuseThreshold sets the peak occupancy a slab must have reached
// before it is returned to the block pool on becoming empty.
//
// Lower values release memory sooner; higher values avoid churn when a
// workload repeatedly allocates and frees a handful of objects.
func WithReuseThreshold(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.reuseThreshold = n
		}
	}
}

// WithSlabPoolSize sets the size of the first block of slab memory.
// Each further block doubles in size.
func WithSlabPoolSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.slabPoolSize = size
		}
	}
}

// WithMaxBlocks bounds the number of blocks of every block pool.
func WithMaxBlocks(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBlocks = n
		}
	}
}

// WithLargeRegionSize sets the size of the first region used for objects
// larger than the biggest size class.
func WithLargeRegionSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.largeRegionSize = size
		}
	}
}

// WithMaxRegions bounds the number of large-object regions.
func WithMaxRegions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRegions = n
		}
	}
}

// WithMetadataPoolSize sets the first block size of the pools backing the
// large-object index.
func WithMetadataPoolSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.metadataPoolSize = size
		}
	}
}

// WithDeferredCapacity bounds the queue other heaps push cross-heap frees to.
func WithDeferredCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.deferredCapacity = n
		}
	}
}

// WithBudget accounts every OS reservation of the heap against b.
// A budget may be shared by several heaps.
func WithBudget(b *Budget) Option {
	return func(o *options) {
		o.budget = b
	}
}

// WithMemoryLimit gives the heap a private budget of limit bytes.
func WithMemoryLimit(limit int64) Option {
	return func(o *options) {
		o.budget = NewBudget(limit)
	}
}

// withReserver replaces the OS reserver. Used by tests.
func withReserver(r mmap.Reserver) Option {
	return func(o *options) {
		o.reserver = r
	}
}

// Budget limits the address space reserved by the heaps sharing it.
type Budget struct {
	rc *resource.Controller
}

// NewBudget creates a budget of limit bytes. A limit of 0 only tracks usage.
func NewBudget(limit int64) *Budget {
	return &Budget{rc: resource.NewController(resource.Config{MemoryLimitBytes: limit})}
}

// Used returns the number of bytes currently reserved.
func (b *Budget) Used() int64 { return b.rc.MemoryUsage() }

// Peak returns the highest number of bytes reserved at once.
func (b *Budget) Peak() int64 { return b.rc.PeakMemoryUsage() }

// Limit returns the configured limit, 0 if unlimited.
func (b *Budget) Limit() int64 { return b.rc.MemoryLimit() }
