package bitmap

import (
	"math/bits"
)

// NotFound is returned by FindFreeAndSet when every bit is used.
const NotFound = -1

const allUsed = ^uint64(0)

// Bitmap tracks n slots, one bit each; a set bit means the slot is in use.
// The words are supplied by the caller and may live in off-heap memory.
type Bitmap struct {
	words []uint64
	n     int
}

// WordsFor returns the number of 64-bit words needed to track n slots.
func WordsFor(n int) int {
	return (n + 63) / 64
}

// Init zeroes words and marks every bit at or beyond n as used,
// so only indices [0, n) can ever be handed out.
// words must hold at least WordsFor(n) entries.
func Init(words []uint64, n int) Bitmap {
	w := words[:WordsFor(n)]
	clear(w)
	if tail := n % 64; tail != 0 {
		w[len(w)-1] = allUsed << tail
	}
	return Bitmap{words: w, n: n}
}

// FindFreeAndSet marks the lowest free slot as used and returns its index,
// or NotFound.
func (b *Bitmap) FindFreeAndSet() int {
	for i, w := range b.words {
		if w == allUsed {
			continue
		}
		bit := bits.TrailingZeros64(^w)
		b.words[i] = w | 1<<bit
		return i*64 + bit
	}
	return NotFound
}

// Set marks slot i as used or free. i must be in range.
func (b *Bitmap) Set(i int, used bool) {
	mask := uint64(1) << (i & 63)
	if used {
		b.words[i>>6] |= mask
	} else {
		b.words[i>>6] &^= mask
	}
}

// Test reports whether slot i is used.
func (b *Bitmap) Test(i int) bool {
	return b.words[i>>6]&(1<<(i&63)) != 0
}

// Len returns the number of slots.
func (b *Bitmap) Len() int {
	return b.n
}

// Free returns the number of free slots.
func (b *Bitmap) Free() int {
	used := 0
	for _, w := range b.words {
		used += bits.OnesCount64(w)
	}
	return len(b.words)*64 - used
}
