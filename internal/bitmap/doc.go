// Package bitmap implements the per-slab occupancy bitmap.
//
// The bitmap does not own its storage: slabs place the words inside their
// own off-heap unit and hand them to Init. Bits past the logical length are
// pre-marked used, so FindFreeAndSet needs no bounds check on the tail word.
package bitmap
