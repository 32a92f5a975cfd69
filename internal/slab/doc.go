// Package slab implements the size-class allocator for small objects.
//
// # Size Classes
//
// Requests up to MaxSize (1024 bytes) map to one of 38 classes:
// 8, 16, 24, 32, 48, 64, 80, 96, 112, 128 and then every multiple of 32
// up to 1024. Larger requests belong to the fallback allocator.
//
// # Slab Layout
//
// A slab is one SlabSize unit from a block pool, aligned to SlabSize:
//
//	[element 0]...[element N-1][bitmap words][header]
//
// The header holds the class, owner id, live and peak counters, a small
// LIFO cache of recently freed slots and the chain links. Any element
// address masked down to SlabSize yields the unit, so the header is found
// without a lookup.
//
// # Reuse
//
// A slab that becomes empty is returned to the block pool only if its peak
// occupancy reached the reuse threshold. Slabs that only ever held a few
// objects stay in their chain so alternating alloc/free does not churn.
package slab
