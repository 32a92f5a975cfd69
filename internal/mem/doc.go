// Package mem provides alignment arithmetic and raw byte views over
// off-heap memory.
//
// # Alignment
//
// AlignUp and AlignDown require a power-of-two alignment.
//
// # Raw Views
//
// Bytes, Copy and Zero operate on unsafe.Pointer ranges that live in
// mmap-backed memory; they must never be used on Go heap objects that can
// move or be collected.
package mem
