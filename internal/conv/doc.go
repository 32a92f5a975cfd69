// Package conv provides safe integer type conversion utilities.
//
// These functions perform bounds checking to prevent integer overflow/underflow
// when converting between request sizes (int), addresses and sizes kept in
// allocator metadata (uintptr), and heap ids (uint32).
//
// For conversions that are provably safe by domain constraints (e.g., slot
// indices within a slab), use direct type casts instead to avoid overhead.
package conv
