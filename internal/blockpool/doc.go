// Package blockpool provides fixed-size units carved from mmap-backed blocks.
//
// # Layout
//
// Each block is one OS reservation:
//
//	[alignment pad][unit 0][unit 1]...[unit N-1][free cache: N words]
//
// Units are handed out from the free cache first (most recently freed
// first), then by bumping a cursor. When every block is exhausted the pool
// reserves a new block twice the size of the previous one, up to MaxBlocks.
// Blocks are only returned to the OS by Close.
//
// # Alignment
//
// A pool configured with Align == UnitSize hands out units aligned to their
// own size. The slab allocator depends on this to find a slab header by
// masking an object address.
//
// # Concurrency
//
// A Pool belongs to a single heap and is not safe for concurrent use.
package blockpool
